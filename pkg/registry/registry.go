// Package registry ведёт персистентный реестр идентификаторов контента.
//
// Реестр выдаёт уникальные идентификаторы вида 99<код категории><4 цифры>
// и гарантирует, что выданный идентификатор никогда не повторится:
// множество used_ids только растёт, счётчики категорий монотонны.
//
// Все мутации сериализованы через sync.Mutex — Allocate вызывается
// конкурентно из воркеров батч-оркестратора. Персистентность явная:
// Save вызывает владелец реестра после завершения единицы работы,
// а не каждая аллокация (результаты прерванного прогона можно отбросить,
// просто не сохранив реестр).
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ilkoid/fabrika/pkg/utils"
)

// IDPrefix — фиксированный префикс пространства имён всех идентификаторов.
const IDPrefix = "99"

// MaxSequence — потолок 4-значного счётчика категории.
//
// Жёсткий предел формата, а не мягкое предупреждение: счётчик 9999
// ещё валиден, попытка выдать 10000-й идентификатор — ошибка.
const MaxSequence = 9999

// CapacityError сигнализирует об исчерпании пространства номеров категории.
type CapacityError struct {
	Category string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("category %s sequence space exhausted (limit %d)", e.Category, MaxSequence)
}

// fileDocument — формат реестрового файла на диске.
//
// Ключи зафиксированы и должны переживать round-trip без потерь.
type fileDocument struct {
	UsedIDs          []string       `json:"used_ids"`
	CategoryCounters map[string]int `json:"category_counters"`
	FilesProcessed   []string       `json:"files_processed"`
	LastUpdate       string         `json:"last_update"`
}

// Registry — реестр идентификаторов с явной персистентностью.
//
// Создаётся через Load и передаётся зависимостям конструкторами;
// глобального состояния нет.
type Registry struct {
	mu sync.Mutex

	path string

	usedSet   map[string]struct{}
	usedOrder []string
	counters  map[string]int
	processed []string

	lastUpdate time.Time
}

// Load читает реестр из файла path.
//
// Отсутствующий или нечитаемый файл — не фатальная ошибка: возвращается
// пустой реестр с обнулёнными счётчиками defaultCodes. Потеря прежних
// счётчиков грозит повторной выдачей идентификаторов, поэтому fallback
// логируется на уровне ERROR.
func Load(path string, defaultCodes []string) *Registry {
	r := &Registry{
		path:     path,
		usedSet:  make(map[string]struct{}),
		counters: make(map[string]int),
	}
	for _, code := range defaultCodes {
		r.counters[code] = 0
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			utils.Warn("Registry file not found, starting empty", "path", path)
		} else {
			utils.Error("Registry file unreadable, starting empty — risk of identifier reuse",
				"path", path, "error", err)
		}
		return r
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		utils.Error("Registry file corrupt, starting empty — risk of identifier reuse",
			"path", path, "error", err)
		return r
	}

	for _, id := range doc.UsedIDs {
		if _, dup := r.usedSet[id]; dup {
			continue
		}
		r.usedSet[id] = struct{}{}
		r.usedOrder = append(r.usedOrder, id)
	}
	for code, count := range doc.CategoryCounters {
		r.counters[code] = count
	}
	r.processed = doc.FilesProcessed
	if t, err := time.Parse(time.RFC3339, doc.LastUpdate); err == nil {
		r.lastUpdate = t
	}

	utils.Info("Registry loaded", "path", path,
		"used_ids", len(r.usedOrder), "categories", len(r.counters))
	return r
}

// Save записывает реестр на диск, обновляя last_update.
//
// Ошибка записи возвращается вызывающему; уже выданные в памяти
// идентификаторы при этом не откатываются.
func (r *Registry) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastUpdate = time.Now()

	doc := fileDocument{
		UsedIDs:          append([]string{}, r.usedOrder...),
		CategoryCounters: make(map[string]int, len(r.counters)),
		FilesProcessed:   append([]string{}, r.processed...),
		LastUpdate:       r.lastUpdate.Format(time.RFC3339),
	}
	for code, count := range r.counters {
		doc.CategoryCounters[code] = count
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("write registry %s: %w", r.path, err)
	}
	return nil
}

// Allocate выдаёт следующий идентификатор категории.
//
// Инкремент счётчика, проверка коллизии и запись в used_ids — один
// атомарный шаг под мьютексом: идентификатор не возвращается,
// не будучи записанным.
//
// Цикл перебора коллизий срабатывает только если used_ids и счётчики
// разошлись (ручная правка файла) — это повод для WARN, не штатный путь.
func (r *Registry) Allocate(categoryCode string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.counters[categoryCode] + 1
	if next > MaxSequence {
		return "", &CapacityError{Category: categoryCode}
	}

	id := formatID(categoryCode, next)
	collided := false
	for {
		if _, used := r.usedSet[id]; !used {
			break
		}
		collided = true
		next++
		if next > MaxSequence {
			return "", &CapacityError{Category: categoryCode}
		}
		id = formatID(categoryCode, next)
	}

	if collided {
		utils.Warn("Identifier collision detected, counters and used_ids diverged",
			"category", categoryCode, "resolved_sequence", next)
	}

	r.counters[categoryCode] = next
	r.usedSet[id] = struct{}{}
	r.usedOrder = append(r.usedOrder, id)

	return id, nil
}

// PeekNext возвращает идентификатор, который отформатирует следующая
// аллокация, не меняя состояния. Только для отображения статуса:
// реальный Allocate может уйти дальше из-за перебора коллизий.
func (r *Registry) PeekNext(categoryCode string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return formatID(categoryCode, r.counters[categoryCode]+1)
}

// ResetCounter — административный сброс счётчика категории.
//
// Не откат: used_ids не чистится, и если новый счётчик занижен
// в уже занятую территорию, коллизии разрулит цикл в Allocate.
func (r *Registry) ResetCounter(categoryCode string, newValue int) error {
	if newValue < 0 {
		return fmt.Errorf("counter value must be non-negative, got %d", newValue)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[categoryCode] = newValue
	return nil
}

// Counter возвращает текущее значение счётчика категории.
func (r *Registry) Counter(categoryCode string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[categoryCode]
}

// UsedCount возвращает число когда-либо выданных идентификаторов.
func (r *Registry) UsedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.usedOrder)
}

// MarkProcessed добавляет запись в советующий список files_processed.
func (r *Registry) MarkProcessed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed = append(r.processed, name)
}

// LabeledCode — пара (название категории, код) для запроса статуса.
type LabeledCode struct {
	Label string
	Code  string
}

// CategoryStatus — снимок состояния одной категории для отображения.
type CategoryStatus struct {
	Label  string
	Code   string
	Count  int
	NextID string
}

// Status возвращает снимок счётчиков по таблице (label, code).
//
// Порядок результата повторяет порядок входной таблицы.
func (r *Registry) Status(categories []LabeledCode) []CategoryStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]CategoryStatus, len(categories))
	for i, cat := range categories {
		count := r.counters[cat.Code]
		statuses[i] = CategoryStatus{
			Label:  cat.Label,
			Code:   cat.Code,
			Count:  count,
			NextID: formatID(cat.Code, count+1),
		}
	}
	return statuses
}

func formatID(categoryCode string, sequence int) string {
	return fmt.Sprintf("%s%s%04d", IDPrefix, categoryCode, sequence)
}
