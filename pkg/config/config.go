// Package config загружает конфигурацию приложения из YAML.
//
// Поддерживается подстановка переменных окружения вида ${VAR}
// в любом месте файла (ключи API не хранятся в конфиге открытым текстом).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig — корневая структура конфигурации.
// Зеркалит структуру config.yaml.
type AppConfig struct {
	Models     ModelsConfig     `yaml:"models"`
	Generation GenerationConfig `yaml:"generation"`
	Topics     TopicsConfig     `yaml:"topics"`
	Storage    StorageConfig    `yaml:"storage"`
	Images     ImageProcConfig  `yaml:"image_processing"`
	S3         S3Config         `yaml:"s3"`
	App        AppSpecific      `yaml:"app"`
}

// ModelsConfig — настройки AI моделей.
type ModelsConfig struct {
	DefaultChat   string              `yaml:"default_chat"`   // Алиас чат-модели по умолчанию
	DefaultVision string              `yaml:"default_vision"` // Алиас vision-модели по умолчанию
	Definitions   map[string]ModelDef `yaml:"definitions"`    // Словарь определений моделей
}

// ModelDef — параметры конкретной модели.
type ModelDef struct {
	Provider    string        `yaml:"provider"`   // "doubao", "deepseek", "openai"
	ModelName   string        `yaml:"model_name"` // Реальное имя в API
	APIKey      string        `yaml:"api_key"`    // Поддерживает ${VAR}
	BaseURL     string        `yaml:"base_url"`   // OpenAI-совместимый endpoint
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`        // Строки вида "60s", "1m"
	RateLimit   int           `yaml:"rate_limit"`     // Запросов в минуту, 0 = без лимита
	BurstLimit  int           `yaml:"burst_limit"`    // Burst для rate limiter
	RetryCount  int           `yaml:"retry_attempts"` // Количество retry попыток
}

// GetDefaults возвращает ModelDef с заполненными дефолтами.
func (m ModelDef) GetDefaults() ModelDef {
	result := m
	if result.MaxTokens == 0 {
		result.MaxTokens = 2000
	}
	if result.Temperature == 0 {
		result.Temperature = 0.7
	}
	if result.Timeout == 0 {
		result.Timeout = 60 * time.Second
	}
	if result.BurstLimit == 0 {
		result.BurstLimit = 3
	}
	if result.RetryCount == 0 {
		result.RetryCount = 3
	}
	return result
}

// TaskParams — параметры генерации одного вида задач.
type TaskParams struct {
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// GenerationConfig — параметры генерации по видам задач.
type GenerationConfig struct {
	Titles  TaskParams `yaml:"titles"`  // Генерация заголовков
	Content TaskParams `yaml:"content"` // Генерация текста темы
	Vision  TaskParams `yaml:"vision"`  // Описание изображений
	Matcher TaskParams `yaml:"matcher"` // Подбор поисковых словосочетаний

	// MaxWorkers — потолок размера пула воркеров для батчей.
	MaxWorkers int `yaml:"max_workers"`

	// DefaultWorkers — размер пула если пользователь не задал свой.
	DefaultWorkers int `yaml:"default_workers"`
}

// GetDefaults возвращает параметры генерации с заполненными дефолтами.
func (g GenerationConfig) GetDefaults() GenerationConfig {
	result := g
	if result.Titles.MaxTokens == 0 {
		result.Titles = TaskParams{MaxTokens: 1000, Temperature: 0.8}
	}
	if result.Content.MaxTokens == 0 {
		result.Content = TaskParams{MaxTokens: 1500, Temperature: 0.7}
	}
	if result.Vision.MaxTokens == 0 {
		result.Vision = TaskParams{MaxTokens: 4096, Temperature: 0.7}
	}
	if result.Matcher.MaxTokens == 0 {
		result.Matcher = TaskParams{MaxTokens: 1200, Temperature: 0.7}
	}
	if result.MaxWorkers == 0 {
		result.MaxWorkers = 20
	}
	if result.DefaultWorkers == 0 {
		result.DefaultWorkers = 5
	}
	return result
}

// TopicsConfig — список категорий тем.
type TopicsConfig struct {
	Categories []string `yaml:"categories"`
}

// GetDefaults возвращает компилируемый список категорий, если YAML пуст.
func (t TopicsConfig) GetDefaults() TopicsConfig {
	if len(t.Categories) > 0 {
		return t
	}
	return TopicsConfig{Categories: []string{
		"娱乐", "八卦", "科技", "数码", "生活", "时尚", "美食", "旅游",
		"体育", "健身", "教育", "学习", "日常", "情感", "趣事", "故事",
	}}
}

// StorageConfig — пути к локальным данным.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"` // SQLite файл
	RegistryPath string `yaml:"registry_path"` // JSON реестр идентификаторов
	OutputDir    string `yaml:"output_dir"`    // CSV экспорт
	PersonasDir  string `yaml:"personas_dir"`  // Файлы персон (.txt)
	PromptsDir   string `yaml:"prompts_dir"`   // Шаблоны промптов
	ImagesDir    string `yaml:"images_dir"`    // Локальные изображения персонажей
}

// GetDefaults возвращает пути по умолчанию (относительно рабочей директории).
func (s StorageConfig) GetDefaults() StorageConfig {
	result := s
	if result.DatabasePath == "" {
		result.DatabasePath = "data/fabrika.db"
	}
	if result.RegistryPath == "" {
		result.RegistryPath = "id_registry.json"
	}
	if result.OutputDir == "" {
		result.OutputDir = "output"
	}
	if result.PersonasDir == "" {
		result.PersonasDir = "personas"
	}
	if result.PromptsDir == "" {
		result.PromptsDir = "prompts"
	}
	if result.ImagesDir == "" {
		result.ImagesDir = "resources/images"
	}
	return result
}

// ImageProcConfig — настройки обработки изображений перед vision-запросом.
type ImageProcConfig struct {
	MaxWidth int `yaml:"max_width"`
	Quality  int `yaml:"quality"`
}

// GetDefaults возвращает настройки обработки изображений с дефолтами.
func (i ImageProcConfig) GetDefaults() ImageProcConfig {
	result := i
	if result.MaxWidth == 0 {
		result.MaxWidth = 1024
	}
	if result.Quality == 0 {
		result.Quality = 85
	}
	return result
}

// S3Config — настройки объектного хранилища изображений (опционально).
//
// Если Bucket пуст — изображения читаются только с локального диска.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled сообщает, настроено ли S3 хранилище.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	Debug bool `yaml:"debug"`
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// os.ExpandEnv заменяет ${VAR} или $VAR на значение из системы.
	contentWithEnv := os.ExpandEnv(string(rawBytes))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg.Generation = cfg.Generation.GetDefaults()
	cfg.Topics = cfg.Topics.GetDefaults()
	cfg.Storage = cfg.Storage.GetDefaults()
	cfg.Images = cfg.Images.GetDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	if len(c.Models.Definitions) == 0 {
		return fmt.Errorf("models.definitions is required")
	}
	if c.Models.DefaultChat != "" {
		if _, ok := c.Models.Definitions[c.Models.DefaultChat]; !ok {
			return fmt.Errorf("default_chat model '%s' is not defined in definitions", c.Models.DefaultChat)
		}
	}
	if c.Models.DefaultVision != "" {
		if _, ok := c.Models.Definitions[c.Models.DefaultVision]; !ok {
			return fmt.Errorf("default_vision model '%s' is not defined in definitions", c.Models.DefaultVision)
		}
	}
	if c.S3.Enabled() && c.S3.Endpoint == "" {
		return fmt.Errorf("s3.endpoint is required when s3.bucket is set")
	}
	return nil
}

// GetChatModel возвращает конфигурацию чат-модели по имени или дефолтную.
func (c *AppConfig) GetChatModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultChat
	}
	m, ok := c.Models.Definitions[name]
	return m.GetDefaults(), ok
}

// GetVisionModel возвращает конфигурацию vision-модели по имени или дефолтную.
func (c *AppConfig) GetVisionModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultVision
	}
	m, ok := c.Models.Definitions[name]
	return m.GetDefaults(), ok
}
