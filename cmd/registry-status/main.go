// Утилита просмотра состояния реестра идентификаторов.
// Печатает счётчики всех категорий без запуска основного меню.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ilkoid/fabrika/pkg/classifier"
	"github.com/ilkoid/fabrika/pkg/registry"
)

func main() {
	registryPath := flag.String("registry", "id_registry.json", "путь к JSON реестру")
	character := flag.String("character", "", "показать только одного персонажа")
	flag.Parse()

	reg := registry.Load(*registryPath, classifier.AllCategoryCodes())

	names := classifier.CharacterNames()
	if *character != "" {
		if _, ok := classifier.CharacterByName(*character); !ok {
			fmt.Fprintf(os.Stderr, "unknown character: %s (known: %v)\n", *character, names)
			os.Exit(1)
		}
		names = []string{*character}
	}

	for _, name := range names {
		charCfg, _ := classifier.CharacterByName(name)

		labeled := make([]registry.LabeledCode, len(charCfg.Categories))
		for i, cat := range charCfg.Categories {
			labeled[i] = registry.LabeledCode{Label: cat.Label, Code: cat.Code}
		}

		fmt.Printf("\n%s (%s)\n", charCfg.Name, charCfg.BasePath)
		for _, s := range reg.Status(labeled) {
			fmt.Printf("  %s (%s): count=%d next=%s\n", s.Label, s.Code, s.Count, s.NextID)
		}
	}

	fmt.Printf("\ntotal allocated ids: %d\n", reg.UsedCount())
}
