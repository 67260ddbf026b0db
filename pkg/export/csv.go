// Package export выгружает результаты генерации в CSV.
//
// Файлы пишутся с UTF-8 BOM — без него Excel под Windows
// показывает китайские колонки кракозябрами.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilkoid/fabrika/pkg/store"
	"github.com/ilkoid/fabrika/pkg/utils"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// descriptionHeader — порядок колонок зафиксирован, его ожидают
// downstream-инструменты публикации.
var descriptionHeader = []string{
	"序号ID", "图片名称", "图片路径", "图片标题", "图片描述", "分类代码", "角色", "生成时间",
}

// WriteDescriptionsCSV пишет описания изображений в файл с именем
// image_descriptions_<character>_<timestamp>.csv внутри outputDir.
//
// Возвращает полный путь созданного файла.
func WriteDescriptionsCSV(outputDir, character string, descs []store.ImageDescription) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("image_descriptions_%s_%s.csv",
		character, time.Now().Format("20060102_150405"))
	path := filepath.Join(outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return "", fmt.Errorf("write bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(descriptionHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, d := range descs {
		record := []string{
			d.NumberingID,
			d.ImageName,
			d.ImagePath,
			d.Title,
			d.Description,
			d.CategoryCode,
			d.Character,
			d.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	utils.Info("CSV export written", "path", path, "records", len(descs))
	return path, nil
}

// matchHeader — колонки экспорта подобранных словосочетаний.
var matchHeader = []string{"原始内容", "查询词条", "匹配类型"}

// WriteMatchesCSV пишет словосочетания в файл
// content_matches_<timestamp>.csv внутри outputDir.
func WriteMatchesCSV(outputDir string, matches []store.ContentMatch) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("content_matches_%s.csv", time.Now().Format("20060102_150405"))
	path := filepath.Join(outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return "", fmt.Errorf("write bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(matchHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, m := range matches {
		if err := w.Write([]string{m.OriginalContent, m.QueryTerms, m.MatchType}); err != nil {
			return "", fmt.Errorf("write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	utils.Info("CSV export written", "path", path, "records", len(matches))
	return path, nil
}

// topicHeader — колонки экспорта тем.
var topicHeader = []string{"分类", "标题", "内容", "关键词"}

// WriteTopicsCSV пишет темы в файл topics_<timestamp>.csv внутри outputDir.
func WriteTopicsCSV(outputDir string, topics []store.Topic) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	filename := fmt.Sprintf("topics_%s.csv", time.Now().Format("20060102_150405"))
	path := filepath.Join(outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return "", fmt.Errorf("write bom: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(topicHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for _, t := range topics {
		if err := w.Write([]string{t.Category, t.Title, t.Content, t.Keywords}); err != nil {
			return "", fmt.Errorf("write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	utils.Info("CSV export written", "path", path, "records", len(topics))
	return path, nil
}
