package llm

import "context"

// Provider — Port для вызова AI модели.
//
// Chat выполняет один синхронный вызов и возвращает текст ответа.
// Реализация обязана уважать отмену context и возвращать ошибку,
// а не пустую строку, при любом отказе API.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)

	// Name возвращает человекочитаемое имя провайдера для логов.
	Name() string
}
