// Package extract достаёт структурированные данные (JSON) из сырых ответов LLM.
//
// LLM возвращает JSON вперемешку с пояснительным текстом и markdown-обёртками.
// Пакет находит первый сбалансированный JSON объект или массив, парсит его
// и различает три вида отказа:
//   - ErrNotFound — в тексте нет ни одного JSON фрагмента нужного вида
//   - ErrParse — фрагмент найден, но это невалидный JSON
//   - ErrFieldMissing — объект валиден, но запрошенного поля в нём нет
//
// Вызывающий код выбирает стратегию восстановления по errors.Is: повторить
// генерацию целиком, подставить дефолт или пометить задачу как проваленную.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound — в тексте не найден JSON фрагмент ожидаемого вида.
	ErrNotFound = errors.New("json fragment not found")

	// ErrParse — фрагмент найден, но не является валидным JSON.
	ErrParse = errors.New("json parse failed")

	// ErrFieldMissing — в валидном объекте отсутствует запрошенное поле.
	ErrFieldMissing = errors.New("json field missing")
)

// Object извлекает первый JSON объект из текста.
//
// Сканирование сбалансированное и многострочное: учитываются вложенные
// скобки и скобки внутри строковых литералов.
func Object(text string) (map[string]any, error) {
	fragment, ok := scanBalanced(stripFences(text), '{', '}')
	if !ok {
		return nil, fmt.Errorf("%w: no object in %d bytes of text", ErrNotFound, len(text))
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(fragment), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return result, nil
}

// Array извлекает первый JSON массив из текста.
func Array(text string) ([]any, error) {
	fragment, ok := scanBalanced(stripFences(text), '[', ']')
	if !ok {
		return nil, fmt.Errorf("%w: no array in %d bytes of text", ErrNotFound, len(text))
	}

	var result []any
	if err := json.Unmarshal([]byte(fragment), &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return result, nil
}

// StringArray извлекает JSON массив и приводит каждый элемент к строке.
//
// Не-строковые элементы форматируются через fmt.Sprint — LLM иногда
// возвращает числа вместо строк в списках заголовков.
func StringArray(text string) ([]string, error) {
	raw, err := Array(text)
	if err != nil {
		return nil, err
	}

	result := make([]string, len(raw))
	for i, v := range raw {
		if s, ok := v.(string); ok {
			result[i] = s
		} else {
			result[i] = fmt.Sprint(v)
		}
	}
	return result, nil
}

// Field извлекает значение именованного поля из первого JSON объекта в тексте.
func Field(text, name string) (any, error) {
	obj, err := Object(text)
	if err != nil {
		return nil, err
	}

	value, ok := obj[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldMissing, name)
	}
	return value, nil
}

// StringField извлекает строковое поле; не-строковые значения форматируются.
func StringField(text, name string) (string, error) {
	value, err := Field(text, name)
	if err != nil {
		return "", err
	}
	if s, ok := value.(string); ok {
		return s, nil
	}
	return fmt.Sprint(value), nil
}

// stripFences удаляет markdown-обёртку ```json ... ``` вокруг ответа.
//
// Обёртка срезается только по краям: JSON в середине текста
// обрабатывается сбалансированным сканом как есть.
func stripFences(s string) string {
	s = strings.TrimSpace(s)

	for _, prefix := range []string{"```json", "```JSON", "```Json", "```"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	return strings.TrimSpace(s)
}

// scanBalanced находит первый сбалансированный фрагмент между open и close.
//
// Скобки внутри JSON строк ("{...}") и экранированные кавычки не считаются.
// Возвращает ("", false) если открывающей скобки нет или она не закрыта.
func scanBalanced(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
