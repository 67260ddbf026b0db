package generators

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ilkoid/fabrika/pkg/config"
	"github.com/ilkoid/fabrika/pkg/llm"
	"github.com/ilkoid/fabrika/pkg/prompt"
	"github.com/ilkoid/fabrika/pkg/store"
)

// fakeProvider — управляемый llm.Provider для тестов.
type fakeProvider struct {
	fn    func(req llm.ChatRequest) (string, error)
	calls int64
}

func (f *fakeProvider) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	atomic.AddInt64(&f.calls, 1)
	return f.fn(req)
}

func (f *fakeProvider) Name() string { return "fake" }

var _ llm.Provider = (*fakeProvider)(nil)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testTopicGenerator(t *testing.T, p llm.Provider) *TopicGenerator {
	t.Helper()
	g, err := NewTopicGenerator(TopicGeneratorConfig{
		Chat:    p,
		Prompts: prompt.NewLoader(t.TempDir()),
		Store:   testStore(t),
		Params:  config.GenerationConfig{},
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// TestGenerateTitles тестирует парсинг массива заголовков из замусоренного ответа.
func TestGenerateTitles(t *testing.T) {
	p := &fakeProvider{fn: func(req llm.ChatRequest) (string, error) {
		return "好的！\n```json\n[\"标题一\", \"标题二\", \"标题三\", \"标题四\"]\n```", nil
	}}
	g := testTopicGenerator(t, p)

	titles, err := g.GenerateTitles(context.Background(), "美食", 3, "", "")
	if err != nil {
		t.Fatal(err)
	}
	// Перебор усекается до запрошенного количества.
	if len(titles) != 3 {
		t.Fatalf("got %d titles, want 3", len(titles))
	}
	if titles[0] != "标题一" {
		t.Errorf("titles[0] = %s", titles[0])
	}
}

// TestGenerateTitlesNotEnough тестирует ошибку при недоборе заголовков.
func TestGenerateTitlesNotEnough(t *testing.T) {
	p := &fakeProvider{fn: func(req llm.ChatRequest) (string, error) {
		return `["только один"]`, nil
	}}
	g := testTopicGenerator(t, p)

	if _, err := g.GenerateTitles(context.Background(), "美食", 5, "", ""); err == nil {
		t.Error("expected error for insufficient titles")
	}
}

// TestGenerateTitlesSentinel тестирует отлов текстового отказа прокси.
func TestGenerateTitlesSentinel(t *testing.T) {
	p := &fakeProvider{fn: func(req llm.ChatRequest) (string, error) {
		return "❌ API超时", nil
	}}
	g := testTopicGenerator(t, p)

	if _, err := g.GenerateTitles(context.Background(), "美食", 1, "", ""); err == nil {
		t.Error("expected error for sentinel response")
	}
}

// TestGenerateContent тестирует извлечение поля topic_content.
func TestGenerateContent(t *testing.T) {
	p := &fakeProvider{fn: func(req llm.ChatRequest) (string, error) {
		// Проверяем что заголовок попал в user message.
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "养猫日常") {
			return "", fmt.Errorf("unexpected request: %+v", req.Messages)
		}
		return `{"topic_content": "今天聊聊养猫的快乐"}`, nil
	}}
	g := testTopicGenerator(t, p)

	content, err := g.GenerateContent(context.Background(), "养猫日常", "生活", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if content != "今天聊聊养猫的快乐" {
		t.Errorf("content = %q", content)
	}
}

// TestGenerateTopicsConcurrent тестирует батч: порядок слотов, изоляция
// отказов и сохранение успешных тем в базу.
func TestGenerateTopicsConcurrent(t *testing.T) {
	p := &fakeProvider{fn: func(req llm.ChatRequest) (string, error) {
		userMsg := req.Messages[1].Content
		if strings.Contains(userMsg, "бракованный") {
			return "тут нет никакого JSON", nil
		}
		// Возвращаем контент, привязанный к заголовку.
		for _, title := range []string{"第一", "第二", "第三"} {
			if strings.Contains(userMsg, title) {
				return fmt.Sprintf(`{"topic_content": "内容-%s"}`, title), nil
			}
		}
		return "", fmt.Errorf("unknown title in: %s", userMsg)
	}}
	g := testTopicGenerator(t, p)

	titles := []string{"第一", "бракованный", "第二", "第三"}
	results, err := g.GenerateTopics(context.Background(), titles, "生活", "", 3, "")
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 4 {
		t.Fatalf("got %d results", len(results))
	}
	if results[1].Err == nil {
		t.Error("slot 1 must fail")
	}
	for _, i := range []int{0, 2, 3} {
		if results[i].Err != nil {
			t.Errorf("slot %d failed: %v", i, results[i].Err)
		}
		if want := "内容-" + titles[i]; results[i].Value.Content != want {
			t.Errorf("slot %d content = %q, want %q", i, results[i].Value.Content, want)
		}
	}

	saved, err := g.store.RecentTopics(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 3 {
		t.Errorf("saved %d topics, want 3", len(saved))
	}
}

// TestNewTopicGeneratorValidation тестирует обязательность зависимостей.
func TestNewTopicGeneratorValidation(t *testing.T) {
	_, err := NewTopicGenerator(TopicGeneratorConfig{})
	if err == nil {
		t.Error("expected error for missing dependencies")
	}
}
