package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ilkoid/fabrika/pkg/store"
)

// TestWriteDescriptionsCSV тестирует BOM, заголовок и порядок колонок.
func TestWriteDescriptionsCSV(t *testing.T) {
	dir := t.TempDir()

	descs := []store.ImageDescription{
		{NumberingID: "991050001", ImageName: "cat.jpg", ImagePath: "/img/cat.jpg",
			Title: "猫", Description: "一只猫, 带逗号", CategoryCode: "105", Character: "穆昭",
			CreatedAt: time.Date(2026, 8, 23, 15, 4, 5, 0, time.UTC)},
	}

	path, err := WriteDescriptionsCSV(dir, "穆昭", descs)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(path, "image_descriptions_穆昭_") {
		t.Errorf("unexpected filename: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		t.Error("file must start with UTF-8 BOM")
	}

	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want header + 1 row", len(records))
	}

	wantHeader := []string{"序号ID", "图片名称", "图片路径", "图片标题", "图片描述", "分类代码", "角色", "生成时间"}
	for i, col := range wantHeader {
		if records[0][i] != col {
			t.Errorf("header[%d] = %s, want %s", i, records[0][i], col)
		}
	}
	if records[1][0] != "991050001" || records[1][6] != "穆昭" {
		t.Errorf("row = %v", records[1])
	}
	if records[1][4] != "一只猫, 带逗号" {
		t.Errorf("description with comma mangled: %q", records[1][4])
	}
	if records[1][7] != "2026-08-23 15:04:05" {
		t.Errorf("created at = %q", records[1][7])
	}
}

// TestWriteMatchesCSV тестирует экспорт словосочетаний.
func TestWriteMatchesCSV(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteMatchesCSV(dir, []store.ContentMatch{
		{OriginalContent: "一只黑猫竖着大拇指", QueryTerms: "点赞\n赞同", MatchType: "general"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(path, "content_matches_") {
		t.Errorf("unexpected filename: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	records, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF}))).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 || records[1][1] != "点赞\n赞同" {
		t.Errorf("records = %v", records)
	}
}

// TestWriteTopicsCSV тестирует экспорт тем.
func TestWriteTopicsCSV(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteTopicsCSV(dir, []store.Topic{
		{Category: "美食", Title: "标题", Content: "内容", Keywords: "美食"},
	})
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "标题") {
		t.Error("exported row missing")
	}
}
