package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestRenderBuiltin тестирует fallback на компилируемые дефолты.
func TestRenderBuiltin(t *testing.T) {
	l := NewLoader(filepath.Join(t.TempDir(), "nonexistent"))

	for _, id := range []string{TopicTitleSystem, TopicContentSystem, ImageVisionSystem, MatcherSystem} {
		t.Run(id, func(t *testing.T) {
			text, err := l.Render(id, nil)
			if err != nil {
				t.Fatalf("Render(%s): %v", id, err)
			}
			if strings.TrimSpace(text) == "" {
				t.Error("builtin prompt is empty")
			}
		})
	}
}

// TestRenderFileOverridesBuiltin тестирует приоритет файла над дефолтом.
func TestRenderFileOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	custom := "自定义提示词 {{.Name}}"
	if err := os.WriteFile(filepath.Join(dir, TopicTitleSystem+".txt"), []byte(custom), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(dir)
	got, err := l.Render(TopicTitleSystem, map[string]string{"Name": "测试"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "自定义提示词 测试" {
		t.Errorf("Render = %q", got)
	}
}

// TestRenderUnknown тестирует ошибку для неизвестного промпта.
func TestRenderUnknown(t *testing.T) {
	l := NewLoader(t.TempDir())
	if _, err := l.Render("no_such_prompt", nil); err == nil {
		t.Error("expected error for unknown prompt id")
	}
}

// TestRenderBadTemplate тестирует ошибку парсинга шаблона из файла.
func TestRenderBadTemplate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.txt"), []byte("{{.Unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(dir)
	if _, err := l.Render("broken", nil); err == nil {
		t.Error("expected parse error")
	}
}
