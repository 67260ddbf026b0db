package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func makeTestPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// TestResizeImage тестирует downscale с сохранением пропорций.
func TestResizeImage(t *testing.T) {
	src := makeTestPNG(t, 200, 100)

	out, err := ResizeImage(src, 50, 85)
	if err != nil {
		t.Fatal(err)
	}

	decoded, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if format != "jpeg" {
		t.Errorf("output format = %s, want jpeg", format)
	}
	b := decoded.Bounds()
	if b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("resized to %dx%d, want 50x25", b.Dx(), b.Dy())
	}
}

// TestResizeImageNoUpscale тестирует что маленькое изображение не растягивается.
func TestResizeImageNoUpscale(t *testing.T) {
	src := makeTestPNG(t, 30, 20)

	out, err := ResizeImage(src, 100, 85)
	if err != nil {
		t.Fatal(err)
	}
	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if b := decoded.Bounds(); b.Dx() != 30 || b.Dy() != 20 {
		t.Errorf("dimensions changed to %dx%d", b.Dx(), b.Dy())
	}
}

// TestResizeImageInvalid тестирует ошибку на не-изображении.
func TestResizeImageInvalid(t *testing.T) {
	if _, err := ResizeImage([]byte("not an image"), 100, 85); err == nil {
		t.Error("expected decode error")
	}
}

// TestMimeTypeByExt тестирует определение MIME по расширению.
func TestMimeTypeByExt(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.png", "image/png"},
		{"b.GIF", "image/gif"},
		{"c.webp", "image/webp"},
		{"d.jpg", "image/jpeg"},
		{"e.unknown", "image/jpeg"},
	}
	for _, tt := range tests {
		if got := MimeTypeByExt(tt.path); got != tt.want {
			t.Errorf("MimeTypeByExt(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

// TestImageDataURI тестирует формат data-URI.
func TestImageDataURI(t *testing.T) {
	uri := ImageDataURI([]byte{1, 2, 3}, "image/png")
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("uri = %s", uri)
	}
}

// TestIsImageFile тестирует фильтр расширений.
func TestIsImageFile(t *testing.T) {
	for _, f := range []string{"a.jpg", "b.JPEG", "c.png", "d.gif", "e.webp"} {
		if !IsImageFile(f) {
			t.Errorf("IsImageFile(%s) = false", f)
		}
	}
	for _, f := range []string{"a.txt", "b.json", "noext"} {
		if IsImageFile(f) {
			t.Errorf("IsImageFile(%s) = true", f)
		}
	}
}
