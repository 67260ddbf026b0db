// Package classifier выполняет классификацию путей и тегов по таблицам персонажей.
//
// Правила сопоставления повторяют систему нумерации изображений:
//   - подсказка персонажа сужает поиск до его таблицы, если его base path
//     встречается во входной строке (без учёта регистра);
//   - внутри таблицы категории сравниваются от самого длинного названия
//     к самому короткому, чтобы "美食/下午茶" выигрывало у "美食";
//   - подкатегории 美食 у 穆昭 проверяются явной веткой ДО общего скана —
//     это фиксированный приоритет, а не следствие сортировки;
//   - промах — не ошибка: возвращается общий код персонажа или DefaultCode.
package classifier

import (
	"sort"
	"strings"
)

// Engine классифицирует строки (пути файлов, теги контента) в коды категорий.
//
// Без собственного состояния: таблицы статичны, Engine безопасен
// для конкурентного использования.
type Engine struct {
	characters []CharacterConfig
}

// New создаёт Engine над компилируемой таблицей персонажей.
func New() *Engine {
	return &Engine{characters: Characters}
}

// NewWithCharacters создаёт Engine над произвольной таблицей (для тестов).
func NewWithCharacters(chars []CharacterConfig) *Engine {
	return &Engine{characters: chars}
}

// Classify возвращает код категории для входной строки.
//
// characterHint — необязательное имя персонажа; пустая строка означает
// перебор всех персонажей в порядке объявления. Никогда не ошибается:
// при полном промахе возвращает DefaultCode.
func (e *Engine) Classify(pathOrTag, characterHint string) string {
	input := strings.ToLower(pathOrTag)

	if characterHint != "" {
		for _, c := range e.characters {
			if c.Name == characterHint && strings.Contains(input, strings.ToLower(c.BasePath)) {
				return e.classifyByCharacter(input, c)
			}
		}
	}

	for _, c := range e.characters {
		if strings.Contains(input, strings.ToLower(c.BasePath)) {
			return e.classifyByCharacter(input, c)
		}
	}

	return DefaultCode
}

// classifyByCharacter подбирает категорию внутри таблицы одного персонажа.
func (e *Engine) classifyByCharacter(input string, c CharacterConfig) string {
	// Явный приоритет подкатегорий 美食 у 穆昭: порядок проверки
	// фиксирован и не зависит от общей сортировки по длине.
	if c.Name == "穆昭" && strings.Contains(input, "美食") {
		switch {
		case strings.Contains(input, "下午茶"):
			return "109"
		case strings.Contains(input, "主食"):
			return "110"
		case strings.Contains(input, "做饭"):
			return "111"
		default:
			return "112" // 美食 — прочее
		}
	}

	// Общий скан: длинное название категории проверяется раньше короткого,
	// иначе вложенная категория никогда не выиграет у своего префикса.
	sorted := make([]Category, len(c.Categories))
	copy(sorted, c.Categories)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Label) > len(sorted[j].Label)
	})

	for _, cat := range sorted {
		if strings.Contains(input, strings.ToLower(cat.Label)) {
			return cat.Code
		}
	}

	if c.GeneralCode != "" {
		return c.GeneralCode
	}
	return DefaultCode
}
