package generators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilkoid/fabrika/pkg/batch"
	"github.com/ilkoid/fabrika/pkg/classifier"
	"github.com/ilkoid/fabrika/pkg/config"
	"github.com/ilkoid/fabrika/pkg/events"
	"github.com/ilkoid/fabrika/pkg/extract"
	"github.com/ilkoid/fabrika/pkg/llm"
	"github.com/ilkoid/fabrika/pkg/prompt"
	"github.com/ilkoid/fabrika/pkg/registry"
	"github.com/ilkoid/fabrika/pkg/s3storage"
	"github.com/ilkoid/fabrika/pkg/store"
	"github.com/ilkoid/fabrika/pkg/utils"
)

// ImageSource — одно изображение из любого источника (диск, S3).
//
// Load откладывает чтение байтов до момента обработки: батч может
// содержать сотни изображений, держать их все в памяти не нужно.
type ImageSource struct {
	Name string // имя файла
	Path string // путь или ключ для классификации и отчёта
	Load func(ctx context.Context) ([]byte, error)
}

// ImageResult — итог обработки одного изображения.
type ImageResult struct {
	RecordID     int64
	NumberingID  string
	ImageName    string
	ImagePath    string
	Title        string
	Description  string
	CategoryCode string
	Character    string
	CreatedAt    time.Time
}

// ImageGenerator описывает изображения vision-моделью, классифицирует их
// и выдаёт уникальные номера через реестр.
type ImageGenerator struct {
	vision     llm.Provider
	prompts    *prompt.Loader
	store      *store.Store
	registry   *registry.Registry
	classifier *classifier.Engine
	imgCfg     config.ImageProcConfig
	params     config.GenerationConfig
	emitter    events.Emitter
}

// ImageGeneratorConfig — зависимости ImageGenerator.
type ImageGeneratorConfig struct {
	Vision     llm.Provider
	Prompts    *prompt.Loader
	Store      *store.Store
	Registry   *registry.Registry
	Classifier *classifier.Engine
	Images     config.ImageProcConfig
	Params     config.GenerationConfig
	Emitter    events.Emitter // опционально
}

// NewImageGenerator создаёт генератор описаний изображений.
func NewImageGenerator(cfg ImageGeneratorConfig) (*ImageGenerator, error) {
	if cfg.Vision == nil {
		return nil, fmt.Errorf("vision provider is required")
	}
	if cfg.Prompts == nil {
		return nil, fmt.Errorf("prompt loader is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	return &ImageGenerator{
		vision:     cfg.Vision,
		prompts:    cfg.Prompts,
		store:      cfg.Store,
		registry:   cfg.Registry,
		classifier: cfg.Classifier,
		imgCfg:     cfg.Images.GetDefaults(),
		params:     cfg.Params.GetDefaults(),
		emitter:    cfg.Emitter,
	}, nil
}

// ScanLocalImages собирает изображения персонажа с локального диска,
// рекурсивно обходя imagesDir/character.
func ScanLocalImages(imagesDir, character string) ([]ImageSource, error) {
	base := filepath.Join(imagesDir, character)
	if _, err := os.Stat(base); os.IsNotExist(err) {
		return nil, fmt.Errorf("character directory not found: %s", base)
	}

	var sources []ImageSource
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !utils.IsImageFile(path) {
			return nil
		}
		p := path
		sources = append(sources, ImageSource{
			Name: filepath.Base(p),
			Path: p,
			Load: func(ctx context.Context) ([]byte, error) {
				return os.ReadFile(p)
			},
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan images in %s: %w", base, err)
	}
	return sources, nil
}

// S3Images оборачивает объекты бакета в ImageSource.
func S3Images(client s3storage.ClientInterface, objects []s3storage.StoredObject) []ImageSource {
	sources := make([]ImageSource, len(objects))
	for i, obj := range objects {
		key := obj.Key
		sources[i] = ImageSource{
			Name: obj.Filename(),
			Path: key,
			Load: func(ctx context.Context) ([]byte, error) {
				return client.DownloadFile(ctx, key)
			},
		}
	}
	return sources
}

// Distribution возвращает распределение изображений по категориям
// (label → count) для предпросмотра перед запуском батча.
func (g *ImageGenerator) Distribution(sources []ImageSource, character string) map[string]int {
	charCfg, hasChar := classifier.CharacterByName(character)

	dist := make(map[string]int)
	for _, src := range sources {
		code := g.classifier.Classify(src.Path, character)
		label := ""
		if hasChar {
			label, _ = charCfg.LabelByCode(code)
		}
		if label == "" {
			label = fmt.Sprintf("未知(%s)", code)
		}
		dist[label]++
	}
	return dist
}

// Describe отправляет изображение vision-модели и извлекает
// title/description из JSON ответа.
func (g *ImageGenerator) Describe(ctx context.Context, data []byte, filename string) (title, description string, err error) {
	systemPrompt, err := g.prompts.Render(prompt.ImageVisionSystem, nil)
	if err != nil {
		return "", "", err
	}

	// ResizeImage перекодирует в JPEG; при отказе шлём оригинал как есть.
	payload, mime := data, utils.MimeTypeByExt(filename)
	if resized, err := utils.ResizeImage(data, g.imgCfg.MaxWidth, g.imgCfg.Quality); err != nil {
		utils.Warn("Image resize failed, sending original", "file", filename, "error", err)
	} else {
		payload, mime = resized, "image/jpeg"
	}
	uri := utils.ImageDataURI(payload, mime)

	response, err := g.vision.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			llm.SystemMessage(systemPrompt),
			llm.VisionMessage("请分析这张图片，提供标题和详细描述。", uri),
		},
		MaxTokens:   g.params.Vision.MaxTokens,
		Temperature: g.params.Vision.Temperature,
	})
	if err != nil {
		return "", "", fmt.Errorf("vision call for %s: %w", filename, err)
	}
	if strings.HasPrefix(response, failureSentinel) {
		return "", "", fmt.Errorf("llm call failed: %s", response)
	}

	obj, err := extract.Object(response)
	if err != nil {
		return "", "", fmt.Errorf("parse vision response for %s: %w", filename, err)
	}

	title, _ = obj["title"].(string)
	description, _ = obj["description"].(string)
	if title == "" || description == "" {
		return "", "", fmt.Errorf("vision response for %s missing title or description", filename)
	}
	return title, description, nil
}

// ProcessImages обрабатывает изображения персонажа конкурентно:
// описание → классификация → выдача номера → запись в базу.
//
// Реестр сохраняется на диск один раз после всего батча и только
// при saveIDs — прерванный или пробный прогон можно отбросить,
// не тронув персистентные счётчики.
func (g *ImageGenerator) ProcessImages(ctx context.Context, character string, sources []ImageSource, workers int, saveIDs bool) ([]batch.Result[ImageResult], error) {
	started := time.Now()
	g.emit(ctx, events.EventBatchStarted, events.BatchStartedData{
		Title:   "图片描述",
		Total:   len(sources),
		Workers: workers,
	})

	results, err := batch.Run(ctx, sources, workers,
		func(ctx context.Context, index int, src ImageSource) (ImageResult, error) {
			data, err := src.Load(ctx)
			if err != nil {
				return ImageResult{}, fmt.Errorf("load image %s: %w", src.Name, err)
			}

			title, description, err := g.Describe(ctx, data, src.Name)
			if err != nil {
				return ImageResult{}, err
			}

			categoryCode := g.classifier.Classify(src.Path, character)
			numberingID, err := g.registry.Allocate(categoryCode)
			if err != nil {
				return ImageResult{}, fmt.Errorf("allocate id for %s: %w", src.Name, err)
			}

			recordID, err := g.store.SaveImageDescription(ctx, store.ImageDescription{
				NumberingID:  numberingID,
				ImageName:    src.Name,
				ImagePath:    src.Path,
				Title:        title,
				Description:  description,
				CategoryCode: categoryCode,
				Character:    character,
			})
			if err != nil {
				return ImageResult{}, fmt.Errorf("save description for %s: %w", src.Name, err)
			}

			g.registry.MarkProcessed(src.Name)

			return ImageResult{
				RecordID:     recordID,
				NumberingID:  numberingID,
				ImageName:    src.Name,
				ImagePath:    src.Path,
				Title:        title,
				Description:  description,
				CategoryCode: categoryCode,
				Character:    character,
				CreatedAt:    time.Now(),
			}, nil
		},
		func(index int, err error) {
			if err != nil {
				g.emit(ctx, events.EventTaskFailed, events.TaskFailedData{
					Index: index, Label: sources[index].Name, Err: err,
				})
				return
			}
			g.emit(ctx, events.EventTaskDone, events.TaskDoneData{
				Index: index, Label: sources[index].Name,
			})
		})
	if err != nil {
		return nil, err
	}

	if saveIDs {
		if err := g.registry.Save(); err != nil {
			utils.Error("Registry save failed after batch", "error", err)
			return results, fmt.Errorf("save registry: %w", err)
		}
	} else {
		utils.Warn("Registry not saved (caller's choice), allocated ids will be reissued next run")
	}

	succeeded := len(batch.Successes(results))
	g.emit(ctx, events.EventBatchFinished, events.BatchFinishedData{
		Succeeded: succeeded,
		Failed:    len(results) - succeeded,
		Duration:  time.Since(started),
	})

	utils.Info("Image batch finished",
		"character", character,
		"total", len(sources),
		"succeeded", succeeded,
		"registry_saved", saveIDs,
		"duration_ms", time.Since(started).Milliseconds())
	return results, nil
}

// StoredResults конвертирует успешные результаты в записи store
// для CSV экспорта.
func StoredResults(results []batch.Result[ImageResult]) []store.ImageDescription {
	descs := make([]store.ImageDescription, 0, len(results))
	for _, r := range batch.Successes(results) {
		descs = append(descs, store.ImageDescription{
			ID:           r.RecordID,
			NumberingID:  r.NumberingID,
			ImageName:    r.ImageName,
			ImagePath:    r.ImagePath,
			Title:        r.Title,
			Description:  r.Description,
			CategoryCode: r.CategoryCode,
			Character:    r.Character,
			CreatedAt:    r.CreatedAt,
		})
	}
	return descs
}

func (g *ImageGenerator) emit(ctx context.Context, t events.EventType, data events.EventData) {
	if g.emitter == nil {
		return
	}
	g.emitter.Emit(ctx, events.Event{Type: t, Data: data, Timestamp: time.Now()})
}
