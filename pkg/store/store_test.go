package store

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestSaveAndRecentTopics тестирует запись и чтение тем.
func TestSaveAndRecentTopics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.SaveTopic(ctx, Topic{Category: "美食", Title: "第一", Content: "内容一", Keywords: "美食"})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.SaveTopic(ctx, Topic{Category: "旅游", Title: "第二", Content: "内容二", Keywords: "旅游, 出行"})
	if err != nil {
		t.Fatal(err)
	}
	if id2 <= id1 {
		t.Errorf("ids not increasing: %d then %d", id1, id2)
	}

	topics, err := s.RecentTopics(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 2 {
		t.Fatalf("RecentTopics len = %d, want 2", len(topics))
	}
	// Новые первыми.
	if topics[0].Title != "第二" {
		t.Errorf("topics[0].Title = %s, want 第二", topics[0].Title)
	}
	if kw := topics[0].KeywordsList(); len(kw) != 2 || kw[1] != "出行" {
		t.Errorf("KeywordsList = %v", kw)
	}
}

// TestImageDescriptions тестирует запись описаний и выборку по персонажу.
func TestImageDescriptions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	descs := []ImageDescription{
		{NumberingID: "991050001", ImageName: "cat.jpg", ImagePath: "/img/cat.jpg",
			Title: "猫", Description: "一只猫", CategoryCode: "105", Character: "穆昭"},
		{NumberingID: "992040001", ImageName: "dog.jpg", ImagePath: "/img/dog.jpg",
			Title: "狗", Description: "一只狗", CategoryCode: "204", Character: "方知衡"},
	}
	for _, d := range descs {
		if _, err := s.SaveImageDescription(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.DescriptionsByCharacter(ctx, "穆昭")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].NumberingID != "991050001" {
		t.Errorf("DescriptionsByCharacter = %+v", got)
	}

	// numbering_id уникален: повторная вставка — ошибка.
	if _, err := s.SaveImageDescription(ctx, descs[0]); err == nil {
		t.Error("expected unique constraint violation on numbering_id")
	}
}

// TestContentMatches тестирует запись подобранных словосочетаний.
func TestContentMatches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveContentMatch(ctx, ContentMatch{
		OriginalContent: "一只黑猫竖着大拇指",
		QueryTerms:      "点赞\n赞同\n支持",
		MatchType:       "general",
	})
	if err != nil {
		t.Fatal(err)
	}
	if id < 1 {
		t.Errorf("id = %d", id)
	}
}
