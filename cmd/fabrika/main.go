// Fabrika — генератор контента для AI персонажей.
// Интерактивное меню: темы, описания изображений, поисковые словосочетания.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ilkoid/fabrika/internal/ui"
	"github.com/ilkoid/fabrika/pkg/batch"
	"github.com/ilkoid/fabrika/pkg/classifier"
	"github.com/ilkoid/fabrika/pkg/config"
	"github.com/ilkoid/fabrika/pkg/events"
	"github.com/ilkoid/fabrika/pkg/export"
	"github.com/ilkoid/fabrika/pkg/factory"
	"github.com/ilkoid/fabrika/pkg/generators"
	"github.com/ilkoid/fabrika/pkg/prompt"
	"github.com/ilkoid/fabrika/pkg/registry"
	"github.com/ilkoid/fabrika/pkg/s3storage"
	"github.com/ilkoid/fabrika/pkg/store"
	"github.com/ilkoid/fabrika/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app держит собранные зависимости меню.
type app struct {
	cfg        *config.AppConfig
	store      *store.Store
	registry   *registry.Registry
	classifier *classifier.Engine
	prompts    *prompt.Loader
	in         *bufio.Reader
}

func run() error {
	configPath := flag.String("config", "config.yaml", "путь к YAML конфигурации")
	flag.Parse()

	if err := utils.InitLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to init logger: %v\n", err)
	}
	defer utils.Close()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	utils.Info("Config loaded", "path", *configPath,
		"default_chat", cfg.Models.DefaultChat, "default_vision", cfg.Models.DefaultVision)

	st, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	a := &app{
		cfg:        cfg,
		store:      st,
		registry:   registry.Load(cfg.Storage.RegistryPath, classifier.AllCategoryCodes()),
		classifier: classifier.New(),
		prompts:    prompt.NewLoader(cfg.Storage.PromptsDir),
		in:         bufio.NewReader(os.Stdin),
	}

	for {
		fmt.Println("\n" + strings.Repeat("=", 50))
		fmt.Println("         📝 内容生成器")
		fmt.Println(strings.Repeat("=", 50))
		fmt.Println("1. 话题生成 (支持1-99个话题，并发生成)")
		fmt.Println("2. 图片描述生成 (基于编号系统)")
		fmt.Println("3. 内容匹配生成 (将内容转换为查询词条)")
		fmt.Println("4. 编号状态查看")
		fmt.Println("8. 最近生成记录")
		fmt.Println("0. 退出")
		fmt.Println(strings.Repeat("=", 50))

		choice := a.readLine("请选择功能 (0-8): ")

		var err error
		switch choice {
		case "0":
			fmt.Println("再见！")
			return nil
		case "1":
			err = a.runTopics()
		case "2":
			err = a.runImages()
		case "3":
			err = a.runMatcher()
		case "4":
			err = a.showRegistryStatus()
		case "8":
			err = a.showRecent()
		default:
			fmt.Println("❌ 无效选择，请重试")
		}
		if err != nil {
			fmt.Printf("❌ 执行出错: %v\n", err)
			utils.Error("Menu action failed", "choice", choice, "error", err)
		}
	}
}

// runTopics — генерация тем: заголовки одним запросом, контент конкурентно.
func (a *app) runTopics() error {
	categories := a.cfg.Topics.Categories
	fmt.Println("\n📋 话题分类:")
	for i, c := range categories {
		fmt.Printf("%2d. %s\n", i+1, c)
	}
	idx, err := a.readInt(fmt.Sprintf("请选择分类 (1-%d): ", len(categories)), 1, len(categories))
	if err != nil {
		return err
	}
	category := categories[idx-1]

	count, err := a.readInt("生成话题数量 (1-99): ", 1, 99)
	if err != nil {
		return err
	}
	workers, err := a.readWorkers()
	if err != nil {
		return err
	}

	persona := a.choosePersona()
	additional := a.readLine("附加信息 (可选，直接回车跳过): ")

	modelDef, ok := a.cfg.GetChatModel("")
	if !ok {
		return fmt.Errorf("chat model is not configured")
	}
	chat, err := factory.NewLLMProvider(modelDef)
	if err != nil {
		return err
	}

	emitter := events.NewChanEmitter(256)
	gen, err := generators.NewTopicGenerator(generators.TopicGeneratorConfig{
		Chat:    chat,
		Prompts: a.prompts,
		Store:   a.store,
		Params:  a.cfg.Generation,
		Emitter: emitter,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()

	fmt.Printf("🤖 正在生成%d个「%s」标题...\n", count, category)
	titles, err := gen.GenerateTitles(ctx, category, count, persona, additional)
	if err != nil {
		return err
	}
	fmt.Printf("✅ 已生成 %d 个标题，开始生成内容 (并发: %d)\n", len(titles), workers)

	var results []batch.Result[generators.Topic]
	err = withProgress(emitter, func() error {
		var runErr error
		results, runErr = gen.GenerateTopics(ctx, titles, category, persona, workers, additional)
		return runErr
	})
	if err != nil {
		return err
	}

	topics := batch.Successes(results)
	fmt.Printf("\n✅ 成功生成 %d/%d 个话题\n", len(topics), len(titles))
	return nil
}

// runImages — описание изображений с выдачей номеров.
func (a *app) runImages() error {
	names := classifier.CharacterNames()
	fmt.Println("\n👤 选择角色:")
	for i, n := range names {
		fmt.Printf("%d. %s\n", i+1, n)
	}
	idx, err := a.readInt(fmt.Sprintf("请选择角色 (1-%d): ", len(names)), 1, len(names))
	if err != nil {
		return err
	}
	character := names[idx-1]
	charCfg, _ := classifier.CharacterByName(character)

	a.printCategoryStatus(charCfg)

	if strings.EqualFold(a.readLine("\n是否要重新设置某个分类的起始编号? (y/N): "), "y") {
		if err := a.resetCounter(charCfg); err != nil {
			fmt.Printf("❌ 重设编号失败: %v\n", err)
		}
	}

	sources, err := a.collectImages(character)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		fmt.Println("⚠️ 未找到图片文件")
		return nil
	}
	fmt.Printf("🔍 发现 %d 张图片\n", len(sources))

	modelDef, ok := a.cfg.GetVisionModel("")
	if !ok {
		return fmt.Errorf("vision model is not configured")
	}
	vision, err := factory.NewLLMProvider(modelDef)
	if err != nil {
		return err
	}

	emitter := events.NewChanEmitter(256)
	gen, err := generators.NewImageGenerator(generators.ImageGeneratorConfig{
		Vision:     vision,
		Prompts:    a.prompts,
		Store:      a.store,
		Registry:   a.registry,
		Classifier: a.classifier,
		Images:     a.cfg.Images,
		Params:     a.cfg.Generation,
		Emitter:    emitter,
	})
	if err != nil {
		return err
	}

	fmt.Println("\n📊 图片分类分布:")
	for label, n := range gen.Distribution(sources, character) {
		fmt.Printf("   📝 %s: %d 张\n", label, n)
	}

	saveIDs := !strings.EqualFold(a.readLine("\n是否保存编号状态? (Y/n): "), "n")
	workers, err := a.readWorkers()
	if err != nil {
		return err
	}

	var results []batch.Result[generators.ImageResult]
	err = withProgress(emitter, func() error {
		var runErr error
		results, runErr = gen.ProcessImages(context.Background(), character, sources, workers, saveIDs)
		return runErr
	})
	if err != nil {
		return err
	}

	descs := generators.StoredResults(results)
	fmt.Printf("\n✅ 成功处理 %d/%d 张图片\n", len(descs), len(sources))

	if len(descs) > 0 {
		path, err := export.WriteDescriptionsCSV(a.cfg.Storage.OutputDir, character, descs)
		if err != nil {
			return err
		}
		fmt.Printf("📄 CSV已导出: %s\n", path)
	}
	return nil
}

// collectImages собирает изображения персонажа с диска или из S3.
func (a *app) collectImages(character string) ([]generators.ImageSource, error) {
	if a.cfg.S3.Enabled() {
		if !strings.EqualFold(a.readLine("从S3读取图片? (y/N): "), "y") {
			return generators.ScanLocalImages(a.cfg.Storage.ImagesDir, character)
		}
		client, err := s3storage.New(a.cfg.S3)
		if err != nil {
			return nil, err
		}
		// Ключи бакета зеркалируют локальную раскладку
		// resources/images/<персонаж>/<категория>/..., иначе классификатор
		// не привяжет изображение к персонажу.
		charCfg, _ := classifier.CharacterByName(character)
		objects, err := client.ListImages(context.Background(), charCfg.BasePath)
		if err != nil {
			return nil, err
		}
		return generators.S3Images(client, objects), nil
	}
	return generators.ScanLocalImages(a.cfg.Storage.ImagesDir, character)
}

// runMatcher — подбор поисковых словосочетаний для готовых текстов.
func (a *app) runMatcher() error {
	fmt.Println("\n📝 输入内容，每行一条，空行结束:")
	var contents []string
	for {
		line := a.readLine("> ")
		if line == "" {
			break
		}
		contents = append(contents, line)
	}
	if len(contents) == 0 {
		fmt.Println("⚠️ 未输入内容")
		return nil
	}

	matchType := a.readLine("请输入匹配类型 (默认: general): ")
	if matchType == "" {
		matchType = "general"
	}
	workers, err := a.readWorkers()
	if err != nil {
		return err
	}

	modelDef, ok := a.cfg.GetChatModel("")
	if !ok {
		return fmt.Errorf("chat model is not configured")
	}
	chat, err := factory.NewLLMProvider(modelDef)
	if err != nil {
		return err
	}

	emitter := events.NewChanEmitter(256)
	matcher, err := generators.NewContentMatcher(generators.ContentMatcherConfig{
		Chat:    chat,
		Prompts: a.prompts,
		Store:   a.store,
		Params:  a.cfg.Generation,
		Emitter: emitter,
	})
	if err != nil {
		return err
	}

	var results []batch.Result[generators.MatchResult]
	err = withProgress(emitter, func() error {
		var runErr error
		results, runErr = matcher.BatchGenerate(context.Background(), contents, matchType, workers)
		return runErr
	})
	if err != nil {
		return err
	}

	succeeded := batch.Successes(results)
	for _, r := range succeeded {
		fmt.Printf("\n📌 %s\n   %s\n", r.Content, strings.Join(r.Terms, " | "))
	}

	if records := generators.MatchRecords(results, matchType); len(records) > 0 {
		path, err := export.WriteMatchesCSV(a.cfg.Storage.OutputDir, records)
		if err != nil {
			return err
		}
		fmt.Printf("📄 CSV已导出: %s\n", path)
	}
	return nil
}

// showRegistryStatus печатает счётчики всех персонажей.
func (a *app) showRegistryStatus() error {
	for _, name := range classifier.CharacterNames() {
		charCfg, _ := classifier.CharacterByName(name)
		a.printCategoryStatus(charCfg)
	}
	fmt.Printf("\n📦 已分配编号总数: %d\n", a.registry.UsedCount())
	return nil
}

func (a *app) printCategoryStatus(charCfg classifier.CharacterConfig) {
	labeled := make([]registry.LabeledCode, len(charCfg.Categories))
	for i, cat := range charCfg.Categories {
		labeled[i] = registry.LabeledCode{Label: cat.Label, Code: cat.Code}
	}

	fmt.Printf("\n📊 %s 编号状态:\n", charCfg.Name)
	for _, s := range a.registry.Status(labeled) {
		fmt.Printf("  📝 %s (%s): 计数 %d, 下一个编号 %s\n", s.Label, s.Code, s.Count, s.NextID)
	}
}

// resetCounter — интерактивный сброс счётчика категории.
func (a *app) resetCounter(charCfg classifier.CharacterConfig) error {
	fmt.Println("\n📋 请选择要重设编号的分类:")
	for i, cat := range charCfg.Categories {
		fmt.Printf("  %d. %s (%s) - 当前计数: %d\n", i+1, cat.Label, cat.Code, a.registry.Counter(cat.Code))
	}
	idx, err := a.readInt(fmt.Sprintf("请选择分类 (1-%d): ", len(charCfg.Categories)), 1, len(charCfg.Categories))
	if err != nil {
		return err
	}
	cat := charCfg.Categories[idx-1]

	newCount, err := a.readInt(fmt.Sprintf("请输入新的起始计数 (当前: %d): ", a.registry.Counter(cat.Code)), 0, registry.MaxSequence)
	if err != nil {
		return err
	}
	if err := a.registry.ResetCounter(cat.Code, newCount); err != nil {
		return err
	}
	if err := a.registry.Save(); err != nil {
		return err
	}
	fmt.Printf("✅ 已更新 %s 的计数为 %d，下一个编号: %s\n", cat.Label, newCount, a.registry.PeekNext(cat.Code))
	return nil
}

// showRecent печатает последние записи базы.
func (a *app) showRecent() error {
	ctx := context.Background()

	topics, err := a.store.RecentTopics(ctx, 10)
	if err != nil {
		return err
	}
	fmt.Println("\n📚 最近生成的话题:")
	for i, t := range topics {
		fmt.Printf("%2d. [%s] %s (%s)\n", i+1, t.Category, t.Title, t.CreatedAt.Format("2006-01-02 15:04"))
	}

	descs, err := a.store.RecentDescriptions(ctx, 10)
	if err != nil {
		return err
	}
	fmt.Println("\n🖼️ 最近生成的图片描述:")
	for i, d := range descs {
		fmt.Printf("%2d. [%s] %s - %s (%s)\n", i+1, d.Character, d.ImageName, d.Title, d.NumberingID)
	}
	return nil
}

// choosePersona — выбор персоны из каталога или дефолт.
func (a *app) choosePersona() string {
	personas, err := generators.ListPersonas(a.cfg.Storage.PersonasDir)
	if err != nil || len(personas) == 0 {
		fmt.Println("ℹ️ 未找到角色人设文件，使用默认角色")
		return generators.DefaultPersona
	}

	fmt.Println("\n👤 选择角色人设:")
	fmt.Println("0. 默认角色")
	for i, p := range personas {
		fmt.Printf("%d. %s\n", i+1, p.Name)
	}
	idx, err := a.readInt(fmt.Sprintf("请选择 (0-%d): ", len(personas)), 0, len(personas))
	if err != nil || idx == 0 {
		return generators.DefaultPersona
	}
	fmt.Printf("✅ 已加载角色: %s\n", personas[idx-1].Name)
	return personas[idx-1].Content
}

// readWorkers читает размер пула в допустимых конфигом границах.
func (a *app) readWorkers() (int, error) {
	gen := a.cfg.Generation
	line := a.readLine(fmt.Sprintf("并发数 (1-%d, 默认 %d): ", gen.MaxWorkers, gen.DefaultWorkers))
	if line == "" {
		return gen.DefaultWorkers, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 || n > gen.MaxWorkers {
		return 0, fmt.Errorf("并发数必须在 1-%d 之间", gen.MaxWorkers)
	}
	return n, nil
}

func (a *app) readLine(prompt string) string {
	fmt.Print(prompt)
	line, _ := a.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func (a *app) readInt(prompt string, min, max int) (int, error) {
	line := a.readLine(prompt)
	n, err := strconv.Atoi(line)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("无效选择: %q", line)
	}
	return n, nil
}

// withProgress запускает работу в фоне и показывает TUI прогресс
// до её завершения. Эмиттер закрывается после работы — это сигнал
// UI завершиться, если пользователь не вышел раньше.
func withProgress(emitter *events.ChanEmitter, work func() error) error {
	var (
		wg      sync.WaitGroup
		workErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer emitter.Close()
		workErr = work()
	}()

	if err := ui.RunProgress(emitter.Subscribe()); err != nil {
		utils.Warn("Progress UI error", "error", err)
	}

	wg.Wait()
	return workErr
}
