// Package prompt загружает и рендерит шаблоны промптов.
//
// Fallback Chain:
//  1. Файлы <prompts_dir>/<id>.txt — приоритетны, правятся без пересборки
//  2. Компилируемые дефолты — резерв, чтобы бинарник работал "из коробки"
//
// Шаблоны — стандартный text/template, переменные вида {{.Category}}.
package prompt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/ilkoid/fabrika/pkg/utils"
)

// Loader читает шаблоны из директории с fallback на дефолты.
//
// Распарсенные шаблоны кэшируются; правка файла на диске
// требует нового Loader'а.
type Loader struct {
	mu       sync.Mutex
	dir      string
	cache    map[string]*template.Template
	defaults map[string]string
}

// NewLoader создаёт Loader поверх директории dir.
//
// Директория может не существовать — тогда работают только дефолты.
func NewLoader(dir string) *Loader {
	return &Loader{
		dir:      dir,
		cache:    make(map[string]*template.Template),
		defaults: builtinDefaults(),
	}
}

// Render рендерит шаблон id с данными data.
func (l *Loader) Render(id string, data any) (string, error) {
	tmpl, err := l.load(id)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute prompt template '%s': %w", id, err)
	}
	return buf.String(), nil
}

// load возвращает распарсенный шаблон из кэша, файла или дефолтов.
func (l *Loader) load(id string) (*template.Template, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tmpl, ok := l.cache[id]; ok {
		return tmpl, nil
	}

	text, source, err := l.read(id)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(id).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template '%s' (%s): %w", id, source, err)
	}

	utils.Debug("Prompt template loaded", "id", id, "source", source)
	l.cache[id] = tmpl
	return tmpl, nil
}

// read возвращает текст шаблона и название источника для логов.
func (l *Loader) read(id string) (string, string, error) {
	path := filepath.Join(l.dir, id+".txt")
	data, err := os.ReadFile(path)
	if err == nil {
		return strings.TrimSpace(string(data)), path, nil
	}
	if !os.IsNotExist(err) {
		return "", "", fmt.Errorf("read prompt file %s: %w", path, err)
	}

	if text, ok := l.defaults[id]; ok {
		return text, "builtin", nil
	}
	return "", "", fmt.Errorf("prompt '%s' not found: no file at %s and no builtin default", id, path)
}
