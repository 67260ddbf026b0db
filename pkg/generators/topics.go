// Package generators реализует рабочие процессы генерации контента:
// темы, описания изображений и поисковые словосочетания.
//
// Каждый генератор собирается из интерфейсов (llm.Provider, events.Emitter)
// и конкретных хранилищ; вся конкуренция делегируется pkg/batch.
package generators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ilkoid/fabrika/pkg/batch"
	"github.com/ilkoid/fabrika/pkg/config"
	"github.com/ilkoid/fabrika/pkg/events"
	"github.com/ilkoid/fabrika/pkg/extract"
	"github.com/ilkoid/fabrika/pkg/llm"
	"github.com/ilkoid/fabrika/pkg/prompt"
	"github.com/ilkoid/fabrika/pkg/store"
	"github.com/ilkoid/fabrika/pkg/utils"
)

// failureSentinel — некоторые OpenAI-совместимые прокси кладут отказ
// в текст ответа вместо HTTP ошибки. Такой "успех" надо ловить до парсинга.
const failureSentinel = "❌"

// Topic — результат генерации одной темы.
type Topic struct {
	ID      int64
	Title   string
	Content string
}

// TopicGenerator генерирует темы: сначала пачку заголовков одним
// запросом, затем контент каждого заголовка конкурентно.
type TopicGenerator struct {
	chat    llm.Provider
	prompts *prompt.Loader
	store   *store.Store
	params  config.GenerationConfig
	emitter events.Emitter
}

// TopicGeneratorConfig — зависимости TopicGenerator.
type TopicGeneratorConfig struct {
	Chat    llm.Provider
	Prompts *prompt.Loader
	Store   *store.Store
	Params  config.GenerationConfig
	Emitter events.Emitter // опционально
}

// NewTopicGenerator создаёт генератор тем.
func NewTopicGenerator(cfg TopicGeneratorConfig) (*TopicGenerator, error) {
	if cfg.Chat == nil {
		return nil, fmt.Errorf("chat provider is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompt loader is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &TopicGenerator{
		chat:    cfg.Chat,
		prompts: cfg.Prompts,
		store:   cfg.Store,
		params:  cfg.Params.GetDefaults(),
		emitter: cfg.Emitter,
	}, nil
}

// GenerateTitles генерирует count заголовков тем одной генерацией.
//
// Модель обязана вернуть JSON-массив строк; недобор заголовков — ошибка,
// перебор молча усекается до count.
func (g *TopicGenerator) GenerateTitles(ctx context.Context, category string, count int, persona, additionalInfo string) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("title count must be >= 1, got %d", count)
	}
	if persona == "" {
		persona = DefaultPersona
	}

	systemPrompt, err := g.prompts.Render(prompt.TopicTitleSystem, nil)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "请根据以下信息生成%d个话题标题：\n\n角色人设：\n%s\n\n话题分类：%s\n生成数量：%d个", count, persona, category, count)
	if additionalInfo != "" {
		fmt.Fprintf(&sb, "\n附加信息：%s", additionalInfo)
	}
	sb.WriteString("\n\n请严格按照JSON数组格式输出标题列表：\n[\"标题1\", \"标题2\", \"标题3\", ...]")

	response, err := g.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			llm.SystemMessage(systemPrompt),
			llm.UserMessage(sb.String()),
		},
		MaxTokens:   g.params.Titles.MaxTokens,
		Temperature: g.params.Titles.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate titles: %w", err)
	}
	if strings.HasPrefix(response, failureSentinel) {
		return nil, fmt.Errorf("llm call failed: %s", response)
	}

	titles, err := extract.StringArray(response)
	if err != nil {
		return nil, fmt.Errorf("parse titles: %w", err)
	}
	if len(titles) < count {
		return nil, fmt.Errorf("not enough titles generated: want %d, got %d", count, len(titles))
	}
	return titles[:count], nil
}

// GenerateContent генерирует текст темы для одного заголовка.
func (g *TopicGenerator) GenerateContent(ctx context.Context, title, category, persona, additionalInfo string) (string, error) {
	if persona == "" {
		persona = DefaultPersona
	}

	systemPrompt, err := g.prompts.Render(prompt.TopicContentSystem, nil)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "请根据上述要求，为给定的话题标题\"%s\"生成详细内容。\n\n重点关注：\n- 内容与标题的高度匹配性\n- 角色专业知识的体现\n- 内容的深度和价值\n\n**AI角色人设：**\n%s\n\n**当前生成任务：**\n- 话题标题：%s\n- 话题类型：%s", title, persona, title, category)
	if additionalInfo != "" {
		fmt.Fprintf(&sb, "\n- 附加信息：%s", additionalInfo)
	}

	response, err := g.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			llm.SystemMessage(systemPrompt),
			llm.UserMessage(sb.String()),
		},
		MaxTokens:   g.params.Content.MaxTokens,
		Temperature: g.params.Content.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("generate content for '%s': %w", title, err)
	}
	if strings.HasPrefix(response, failureSentinel) {
		return "", fmt.Errorf("llm call failed: %s", response)
	}

	content, err := extract.StringField(response, "topic_content")
	if err != nil {
		return "", fmt.Errorf("parse content for '%s': %w", title, err)
	}
	return content, nil
}

// GenerateTopics генерирует контент для списка заголовков конкурентно
// и сохраняет каждую готовую тему в базу.
//
// Возвращает результаты по слотам заголовков: отказ одного заголовка
// не трогает остальные.
func (g *TopicGenerator) GenerateTopics(ctx context.Context, titles []string, category, persona string, workers int, additionalInfo string) ([]batch.Result[Topic], error) {
	started := time.Now()
	g.emit(ctx, events.EventBatchStarted, events.BatchStartedData{
		Title:   "话题生成",
		Total:   len(titles),
		Workers: workers,
	})

	results, err := batch.Run(ctx, titles, workers,
		func(ctx context.Context, index int, title string) (Topic, error) {
			content, err := g.GenerateContent(ctx, title, category, persona, additionalInfo)
			if err != nil {
				return Topic{}, err
			}

			id, err := g.store.SaveTopic(ctx, store.Topic{
				Category: category,
				Title:    title,
				Content:  content,
				Keywords: category,
			})
			if err != nil {
				return Topic{}, err
			}
			return Topic{ID: id, Title: title, Content: content}, nil
		},
		func(index int, err error) {
			if err != nil {
				g.emit(ctx, events.EventTaskFailed, events.TaskFailedData{
					Index: index, Label: titles[index], Err: err,
				})
				return
			}
			g.emit(ctx, events.EventTaskDone, events.TaskDoneData{
				Index: index, Label: titles[index],
			})
		})
	if err != nil {
		return nil, err
	}

	succeeded := len(batch.Successes(results))
	g.emit(ctx, events.EventBatchFinished, events.BatchFinishedData{
		Succeeded: succeeded,
		Failed:    len(results) - succeeded,
		Duration:  time.Since(started),
	})

	utils.Info("Topic batch finished",
		"category", category,
		"total", len(titles),
		"succeeded", succeeded,
		"duration_ms", time.Since(started).Milliseconds())
	return results, nil
}

func (g *TopicGenerator) emit(ctx context.Context, t events.EventType, data events.EventData) {
	if g.emitter == nil {
		return
	}
	g.emitter.Emit(ctx, events.Event{Type: t, Data: data, Timestamp: time.Now()})
}
