package generators

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ilkoid/fabrika/pkg/utils"
)

// DefaultPersona используется когда файл персоны не выбран или не читается.
const DefaultPersona = "客观专业的知识分享者"

// Persona — загруженное описание角色 (имя файла без расширения + текст).
type Persona struct {
	Name    string
	Content string
}

// ListPersonas возвращает персоны из *.txt файлов директории dir,
// отсортированные по имени.
//
// Отсутствующая директория — не ошибка: возвращается пустой список,
// вызывающий падает обратно на DefaultPersona.
func ListPersonas(dir string) ([]Persona, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			utils.Warn("Personas directory not found", "dir", dir)
			return nil, nil
		}
		return nil, fmt.Errorf("read personas dir %s: %w", dir, err)
	}

	var personas []Persona
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			utils.Warn("Persona file unreadable, skipping", "path", path, "error", err)
			continue
		}
		personas = append(personas, Persona{
			Name:    strings.TrimSuffix(e.Name(), ".txt"),
			Content: strings.TrimSpace(string(data)),
		})
	}

	sort.Slice(personas, func(i, j int) bool { return personas[i].Name < personas[j].Name })
	return personas, nil
}
