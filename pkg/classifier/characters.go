package classifier

// Category — пара (название категории, код) внутри таблицы персонажа.
//
// Код — трёхзначная строка; первая цифра задаёт серию персонажа
// (1xx — 穆昭, 2xx — 方知衡, 000 — глобальный fallback).
type Category struct {
	Label string
	Code  string
}

// CharacterConfig — статичная таблица категорий одного персонажа.
//
// BasePath — токен пути, по которому входная строка привязывается
// к персонажу. GeneralCode — код категории "通用", выдаётся когда
// ни одна категория не совпала.
type CharacterConfig struct {
	Name        string
	BasePath    string
	Categories  []Category
	GeneralCode string
}

// DefaultCode — глобальный код "вне всех персонажей".
const DefaultCode = "000"

// Characters — компилируемая таблица персонажей.
//
// Порядок слайса фиксирует порядок перебора при классификации без
// подсказки: первый совпавший base path выигрывает.
var Characters = []CharacterConfig{
	{
		Name:     "穆昭",
		BasePath: "resources/images/穆昭",
		Categories: []Category{
			{"交通工具", "101"},
			{"做手工", "102"},
			{"娱乐", "103"},
			{"学习", "104"},
			{"宠物", "105"},
			{"工作", "106"},
			{"植物", "107"},
			{"生病吃药", "108"},
			{"美食", "112"},
			{"美食/下午茶", "109"},
			{"美食/主食", "110"},
			{"美食/做饭", "111"},
			{"节日", "113"},
			{"购物", "114"},
			{"运动", "115"},
			{"风景", "116"},
			{"通用", "100"},
		},
		GeneralCode: "100",
	},
	{
		Name:     "方知衡",
		BasePath: "resources/images/方知衡",
		Categories: []Category{
			{"通用", "200"},
			{"动物修", "203"},
			{"美食修", "202"},
			{"风景修", "201"},
			{"动物", "204"},
			{"在干嘛", "205"},
			{"工作", "206"},
			{"植物", "207"},
			{"生活", "208"},
			{"生活2", "209"},
			{"美食", "210"},
			{"节日", "211"},
			{"风景", "212"},
		},
		GeneralCode: "200",
	},
}

// CharacterByName возвращает конфигурацию персонажа по имени.
func CharacterByName(name string) (CharacterConfig, bool) {
	for _, c := range Characters {
		if c.Name == name {
			return c, true
		}
	}
	return CharacterConfig{}, false
}

// CharacterNames возвращает имена персонажей в порядке объявления.
func CharacterNames() []string {
	names := make([]string, len(Characters))
	for i, c := range Characters {
		names[i] = c.Name
	}
	return names
}

// LabelByCode возвращает название категории персонажа по коду.
func (c CharacterConfig) LabelByCode(code string) (string, bool) {
	for _, cat := range c.Categories {
		if cat.Code == code {
			return cat.Label, true
		}
	}
	return "", false
}

// AllCategoryCodes возвращает все коды всех персонажей плюс DefaultCode.
//
// Используется реестром идентификаторов для дефолтной инициализации счётчиков.
func AllCategoryCodes() []string {
	codes := []string{DefaultCode}
	for _, c := range Characters {
		for _, cat := range c.Categories {
			codes = append(codes, cat.Code)
		}
	}
	return codes
}
