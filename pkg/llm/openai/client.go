// Package openai реализует адаптер llm.Provider для OpenAI-совместимых API.
//
// Один адаптер покрывает всех провайдеров с OpenAI-совместимым endpoint
// (Doubao, DeepSeek, сам OpenAI) — различаются только BaseURL и имя модели.
package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/ilkoid/fabrika/pkg/config"
	"github.com/ilkoid/fabrika/pkg/llm"
	"github.com/ilkoid/fabrika/pkg/utils"
)

// Client реализует интерфейс llm.Provider для OpenAI-совместимых API.
//
// Поддерживает:
//   - Базовую генерацию текста
//   - Vision запросы (изображения в виде data URI)
//   - Rate limiting и retry с backoff
type Client struct {
	api     *openai.Client
	model   string
	name    string
	limiter *rate.Limiter

	maxTokens   int
	temperature float64
	timeout     time.Duration
	retries     int
}

// NewClient создает OpenAI клиент на основе конфигурации модели.
//
// Принимает ModelDef напрямую для упрощения создания клиентов через factory.
// Все настройки из конфигурации, никакого хардкода.
func NewClient(modelDef config.ModelDef) *Client {
	def := modelDef.GetDefaults()

	// Поддержка custom BaseURL для non-OpenAI провайдеров (Doubao, DeepSeek и т.д.)
	cfg := openai.DefaultConfig(def.APIKey)
	if def.BaseURL != "" {
		cfg.BaseURL = def.BaseURL
	}

	var limiter *rate.Limiter
	if def.RateLimit > 0 {
		// RateLimit в запросах/минуту → rate.Limit в запросах/секунду
		ratePerSec := float64(def.RateLimit) / 60.0
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), def.BurstLimit)
	}

	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       def.ModelName,
		name:        def.Provider,
		limiter:     limiter,
		maxTokens:   def.MaxTokens,
		temperature: def.Temperature,
		timeout:     def.Timeout,
		retries:     def.RetryCount,
	}
}

// Name возвращает имя провайдера из конфигурации.
func (c *Client) Name() string {
	return c.name
}

// Chat выполняет запрос к API и возвращает текст ответа модели.
//
// Алгоритм:
//  1. Конвертирует внутренние сообщения в формат OpenAI SDK
//  2. Ждёт слот rate limiter (если настроен)
//  3. Вызывает API с retry при временных отказах
//  4. Возвращает content первого choice
//
// Все ошибки возвращаются, никаких panic.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	startTime := time.Now()

	utils.Debug("LLM request started",
		"model", c.model,
		"messages_count", len(req.Messages))

	openaiMsgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		openaiMsgs[i] = mapToOpenAI(m)
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    openaiMsgs,
		MaxTokens:   maxTokens,
		Temperature: float32(temperature),
	}

	// Retry loop
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limiter wait: %w", err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.api.CreateChatCompletion(callCtx, apiReq)
		cancel()

		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				// Отменили сам батч — повторять бессмысленно.
				return "", fmt.Errorf("openai api error: %w", err)
			}
			utils.Warn("LLM API request failed, retrying",
				"model", c.model,
				"attempt", attempt+1,
				"error", err)

			// Простой backoff: 1s, 2s, 3s...
			select {
			case <-time.After(time.Duration(attempt+1) * time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			continue
		}

		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("no choices in response")
		}

		content := strings.TrimSpace(resp.Choices[0].Message.Content)
		if content == "" {
			return "", fmt.Errorf("empty content in response")
		}

		utils.Info("LLM response received",
			"model", c.model,
			"content_length", len(content),
			"duration_ms", time.Since(startTime).Milliseconds())

		return content, nil
	}

	utils.Error("LLM API request failed after retries",
		"model", c.model,
		"attempts", c.retries,
		"error", lastErr,
		"duration_ms", time.Since(startTime).Milliseconds())
	return "", fmt.Errorf("openai api error after %d attempts: %w", c.retries, lastErr)
}

// mapToOpenAI конвертирует наше внутреннее сообщение в формат SDK.
// Здесь происходит магия Vision: если есть картинки, создаем MultiContent.
func mapToOpenAI(m llm.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role: string(m.Role),
	}

	// Если картинок нет, отправляем просто текст
	if len(m.Images) == 0 {
		msg.Content = m.Content
		return msg
	}

	// Если есть картинки (Vision запрос)
	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: m.Content,
		},
	}

	for _, imgURL := range m.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    imgURL, // Ожидается base64 data-uri или http ссылка
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	msg.MultiContent = parts
	return msg
}

var _ llm.Provider = (*Client)(nil)
