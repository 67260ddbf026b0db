package generators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ilkoid/fabrika/pkg/batch"
	"github.com/ilkoid/fabrika/pkg/config"
	"github.com/ilkoid/fabrika/pkg/events"
	"github.com/ilkoid/fabrika/pkg/llm"
	"github.com/ilkoid/fabrika/pkg/prompt"
	"github.com/ilkoid/fabrika/pkg/store"
	"github.com/ilkoid/fabrika/pkg/utils"
)

// MatchResult — словосочетания, подобранные для одного текста.
type MatchResult struct {
	RecordID int64
	Content  string
	Terms    []string
}

// ContentMatcher подбирает поисковые словосочетания под готовый контент:
// анализирует, в каких ситуациях пользователь захочет найти этот текст,
// и генерирует триггерные запросы.
type ContentMatcher struct {
	chat    llm.Provider
	prompts *prompt.Loader
	store   *store.Store
	params  config.GenerationConfig
	emitter events.Emitter
}

// ContentMatcherConfig — зависимости ContentMatcher.
type ContentMatcherConfig struct {
	Chat    llm.Provider
	Prompts *prompt.Loader
	Store   *store.Store
	Params  config.GenerationConfig
	Emitter events.Emitter // опционально
}

// NewContentMatcher создаёт генератор поисковых словосочетаний.
func NewContentMatcher(cfg ContentMatcherConfig) (*ContentMatcher, error) {
	if cfg.Chat == nil {
		return nil, fmt.Errorf("chat provider is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompt loader is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	return &ContentMatcher{
		chat:    cfg.Chat,
		prompts: cfg.Prompts,
		store:   cfg.Store,
		params:  cfg.Params.GetDefaults(),
		emitter: cfg.Emitter,
	}, nil
}

// GenerateQueryTerms генерирует словосочетания для одного текста.
//
// Ответ модели — словосочетания через "|"; пустой результат — ошибка.
func (m *ContentMatcher) GenerateQueryTerms(ctx context.Context, content string) ([]string, error) {
	systemPrompt, err := m.prompts.Render(prompt.MatcherSystem, nil)
	if err != nil {
		return nil, err
	}

	response, err := m.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			llm.SystemMessage(systemPrompt),
			llm.UserMessage(fmt.Sprintf("请为以下内容生成相关查询词条：\n\n%s", content)),
		},
		MaxTokens:   m.params.Matcher.MaxTokens,
		Temperature: m.params.Matcher.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate query terms: %w", err)
	}
	if strings.HasPrefix(response, failureSentinel) {
		return nil, fmt.Errorf("llm call failed: %s", response)
	}

	cleaned := strings.Trim(strings.TrimSpace(response), `"'`)
	var terms []string
	for _, part := range strings.Split(cleaned, "|") {
		if term := strings.TrimSpace(part); term != "" {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("no query terms in response")
	}
	return terms, nil
}

// BatchGenerate подбирает словосочетания для списка текстов конкурентно
// и сохраняет каждый результат в базу.
func (m *ContentMatcher) BatchGenerate(ctx context.Context, contents []string, matchType string, workers int) ([]batch.Result[MatchResult], error) {
	if matchType == "" {
		matchType = "general"
	}

	started := time.Now()
	m.emit(ctx, events.EventBatchStarted, events.BatchStartedData{
		Title:   "内容匹配",
		Total:   len(contents),
		Workers: workers,
	})

	results, err := batch.Run(ctx, contents, workers,
		func(ctx context.Context, index int, content string) (MatchResult, error) {
			terms, err := m.GenerateQueryTerms(ctx, content)
			if err != nil {
				return MatchResult{}, err
			}

			id, err := m.store.SaveContentMatch(ctx, store.ContentMatch{
				OriginalContent: content,
				QueryTerms:      strings.Join(terms, "\n"),
				MatchType:       matchType,
			})
			if err != nil {
				return MatchResult{}, err
			}
			return MatchResult{RecordID: id, Content: content, Terms: terms}, nil
		},
		func(index int, err error) {
			// Срез по рунам: контент китайский, резать байтами нельзя.
			label := contents[index]
			if runes := []rune(label); len(runes) > 30 {
				label = string(runes[:30])
			}
			if err != nil {
				m.emit(ctx, events.EventTaskFailed, events.TaskFailedData{
					Index: index, Label: label, Err: err,
				})
				return
			}
			m.emit(ctx, events.EventTaskDone, events.TaskDoneData{
				Index: index, Label: label,
			})
		})
	if err != nil {
		return nil, err
	}

	succeeded := len(batch.Successes(results))
	m.emit(ctx, events.EventBatchFinished, events.BatchFinishedData{
		Succeeded: succeeded,
		Failed:    len(results) - succeeded,
		Duration:  time.Since(started),
	})

	utils.Info("Match batch finished",
		"match_type", matchType,
		"total", len(contents),
		"succeeded", succeeded,
		"duration_ms", time.Since(started).Milliseconds())
	return results, nil
}

// MatchRecords конвертирует успешные результаты батча в записи store
// для CSV экспорта.
func MatchRecords(results []batch.Result[MatchResult], matchType string) []store.ContentMatch {
	if matchType == "" {
		matchType = "general"
	}
	records := make([]store.ContentMatch, 0, len(results))
	for _, r := range batch.Successes(results) {
		records = append(records, store.ContentMatch{
			OriginalContent: r.Content,
			QueryTerms:      strings.Join(r.Terms, "\n"),
			MatchType:       matchType,
		})
	}
	return records
}

func (m *ContentMatcher) emit(ctx context.Context, t events.EventType, data events.EventData) {
	if m.emitter == nil {
		return
	}
	m.emitter.Emit(ctx, events.Event{Type: t, Data: data, Timestamp: time.Now()})
}
