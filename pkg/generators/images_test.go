package generators

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ilkoid/fabrika/pkg/batch"
	"github.com/ilkoid/fabrika/pkg/classifier"
	"github.com/ilkoid/fabrika/pkg/config"
	"github.com/ilkoid/fabrika/pkg/llm"
	"github.com/ilkoid/fabrika/pkg/prompt"
	"github.com/ilkoid/fabrika/pkg/registry"
	"github.com/ilkoid/fabrika/pkg/s3storage"
)

func writeTestImage(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func testImageGenerator(t *testing.T, p llm.Provider, reg *registry.Registry) *ImageGenerator {
	t.Helper()
	g, err := NewImageGenerator(ImageGeneratorConfig{
		Vision:     p,
		Prompts:    prompt.NewLoader(t.TempDir()),
		Store:      testStore(t),
		Registry:   reg,
		Classifier: classifier.New(),
		Images:     config.ImageProcConfig{},
		Params:     config.GenerationConfig{},
	})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

// TestScanLocalImages тестирует рекурсивный сбор изображений персонажа.
func TestScanLocalImages(t *testing.T) {
	root := t.TempDir()
	imagesDir := filepath.Join(root, "resources", "images")
	writeTestImage(t, filepath.Join(imagesDir, "穆昭", "宠物", "cat.png"))
	writeTestImage(t, filepath.Join(imagesDir, "穆昭", "美食", "下午茶", "cake.png"))
	// Не-изображение игнорируется.
	if err := os.WriteFile(filepath.Join(imagesDir, "穆昭", "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	sources, err := ScanLocalImages(imagesDir, "穆昭")
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}

	if _, err := ScanLocalImages(imagesDir, "不存在"); err == nil {
		t.Error("expected error for missing character dir")
	}
}

// TestProcessImages тестирует полный конвейер: описание, классификация,
// выдача номера, запись в базу и сохранение реестра.
func TestProcessImages(t *testing.T) {
	root := t.TempDir()
	imagesDir := filepath.Join(root, "resources", "images")
	writeTestImage(t, filepath.Join(imagesDir, "穆昭", "宠物", "cat.png"))
	writeTestImage(t, filepath.Join(imagesDir, "穆昭", "宠物", "dog.png"))
	writeTestImage(t, filepath.Join(imagesDir, "穆昭", "美食", "下午茶", "cake.png"))

	registryPath := filepath.Join(root, "id_registry.json")
	reg := registry.Load(registryPath, classifier.AllCategoryCodes())

	p := &fakeProvider{fn: func(req llm.ChatRequest) (string, error) {
		// Vision запрос обязан нести изображение.
		last := req.Messages[len(req.Messages)-1]
		if len(last.Images) != 1 || !strings.HasPrefix(last.Images[0], "data:image/") {
			return "", fmt.Errorf("vision request without data uri")
		}
		return `{"title": "测试标题", "description": "测试描述内容"}`, nil
	}}
	g := testImageGenerator(t, p, reg)

	sources, err := ScanLocalImages(imagesDir, "穆昭")
	if err != nil {
		t.Fatal(err)
	}

	results, err := g.ProcessImages(context.Background(), "穆昭", sources, 2, true)
	if err != nil {
		t.Fatal(err)
	}

	ok := batch.Successes(results)
	if len(ok) != 3 {
		t.Fatalf("successes = %d, want 3", len(ok))
	}

	// Номера уникальны и несут код своей категории.
	seen := make(map[string]bool)
	for _, r := range ok {
		if seen[r.NumberingID] {
			t.Errorf("duplicate numbering id %s", r.NumberingID)
		}
		seen[r.NumberingID] = true

		wantCode := "105" // 宠物
		if strings.Contains(r.ImagePath, "下午茶") {
			wantCode = "109"
		}
		if r.CategoryCode != wantCode {
			t.Errorf("%s: category = %s, want %s", r.ImageName, r.CategoryCode, wantCode)
		}
		if !strings.HasPrefix(r.NumberingID, "99"+wantCode) {
			t.Errorf("numbering id %s does not embed code %s", r.NumberingID, wantCode)
		}
		if r.CreatedAt.IsZero() {
			t.Errorf("%s: created at is zero", r.ImageName)
		}
	}

	// Реестр сохранён и переживает перезагрузку.
	reloaded := registry.Load(registryPath, classifier.AllCategoryCodes())
	if reloaded.UsedCount() != 3 {
		t.Errorf("reloaded registry UsedCount = %d, want 3", reloaded.UsedCount())
	}
	if reloaded.Counter("105") != 2 {
		t.Errorf("counter 105 = %d, want 2", reloaded.Counter("105"))
	}

	// Записи попали в базу.
	descs, err := g.store.DescriptionsByCharacter(context.Background(), "穆昭")
	if err != nil {
		t.Fatal(err)
	}
	if len(descs) != 3 {
		t.Errorf("stored %d descriptions, want 3", len(descs))
	}
}

// TestProcessImagesNoSave тестирует что без saveIDs реестр не пишется на диск.
func TestProcessImagesNoSave(t *testing.T) {
	root := t.TempDir()
	imagesDir := filepath.Join(root, "resources", "images")
	writeTestImage(t, filepath.Join(imagesDir, "穆昭", "宠物", "cat.png"))

	registryPath := filepath.Join(root, "id_registry.json")
	reg := registry.Load(registryPath, classifier.AllCategoryCodes())

	p := &fakeProvider{fn: func(req llm.ChatRequest) (string, error) {
		return `{"title": "т", "description": "д"}`, nil
	}}
	g := testImageGenerator(t, p, reg)

	sources, err := ScanLocalImages(imagesDir, "穆昭")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.ProcessImages(context.Background(), "穆昭", sources, 1, false); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(registryPath); !os.IsNotExist(err) {
		t.Error("registry file must not exist when saveIDs is false")
	}
}

// TestDescribeBadResponse тестирует отказы парсинга ответа vision-модели.
func TestDescribeBadResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"no json", "просто текст"},
		{"missing description", `{"title": "только заголовок"}`},
		{"sentinel", "❌ 超时"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{fn: func(req llm.ChatRequest) (string, error) {
				return tt.response, nil
			}}
			reg := registry.Load(filepath.Join(t.TempDir(), "reg.json"), classifier.AllCategoryCodes())
			g := testImageGenerator(t, p, reg)

			data := pngBytes(t)
			if _, _, err := g.Describe(context.Background(), data, "x.png"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// TestDistribution тестирует предпросмотр распределения по категориям.
func TestDistribution(t *testing.T) {
	reg := registry.Load(filepath.Join(t.TempDir(), "reg.json"), classifier.AllCategoryCodes())
	p := &fakeProvider{fn: func(req llm.ChatRequest) (string, error) { return "", nil }}
	g := testImageGenerator(t, p, reg)

	sources := []ImageSource{
		{Name: "a.png", Path: "resources/images/穆昭/宠物/a.png"},
		{Name: "b.png", Path: "resources/images/穆昭/宠物/b.png"},
		{Name: "c.png", Path: "resources/images/穆昭/misc/c.png"},
	}
	dist := g.Distribution(sources, "穆昭")

	if dist["宠物"] != 2 {
		t.Errorf("宠物 = %d, want 2", dist["宠物"])
	}
	if dist["通用"] != 1 {
		t.Errorf("通用 = %d, want 1", dist["通用"])
	}
}

// fakeS3Client — управляемый s3storage.ClientInterface для тестов.
type fakeS3Client struct {
	objects []s3storage.StoredObject
	data    map[string][]byte
}

func (f *fakeS3Client) ListImages(ctx context.Context, prefix string) ([]s3storage.StoredObject, error) {
	var out []s3storage.StoredObject
	for _, o := range f.objects {
		if strings.HasPrefix(o.Key, prefix) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeS3Client) DownloadFile(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.data[key]
	if !ok {
		return nil, fmt.Errorf("object not found: %s", key)
	}
	return data, nil
}

var _ s3storage.ClientInterface = (*fakeS3Client)(nil)

// TestS3ImagesClassification тестирует, что изображения из бакета,
// перечисленные под base path персонажа, классифицируются в свои
// категории, а не в глобальный код "000".
func TestS3ImagesClassification(t *testing.T) {
	client := &fakeS3Client{objects: []s3storage.StoredObject{
		{Key: "resources/images/穆昭/美食/下午茶/cake.jpg"},
		{Key: "resources/images/穆昭/宠物/cat.jpg"},
	}}

	objects, err := client.ListImages(context.Background(), "resources/images/穆昭")
	if err != nil {
		t.Fatal(err)
	}
	sources := S3Images(client, objects)
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}

	engine := classifier.New()
	if code := engine.Classify(sources[0].Path, "穆昭"); code != "109" {
		t.Errorf("下午茶 key classified as %s, want 109", code)
	}
	if code := engine.Classify(sources[1].Path, "穆昭"); code != "105" {
		t.Errorf("宠物 key classified as %s, want 105", code)
	}

	reg := registry.Load(filepath.Join(t.TempDir(), "reg.json"), classifier.AllCategoryCodes())
	p := &fakeProvider{fn: func(req llm.ChatRequest) (string, error) { return "", nil }}
	g := testImageGenerator(t, p, reg)

	dist := g.Distribution(sources, "穆昭")
	if dist["美食/下午茶"] != 1 || dist["宠物"] != 1 {
		t.Errorf("distribution = %v", dist)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
