// Package llm определяет Port для AI провайдеров.
//
// Библиотечный код (pkg/generators) зависит только от интерфейса Provider;
// конкретные адаптеры живут в подпакетах (pkg/llm/openai) и выбираются
// через pkg/factory.
package llm

// Role — роль сообщения в диалоге.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message — одно сообщение диалога.
//
// Images — необязательный список изображений в виде data URI
// (data:image/jpeg;base64,...). Непустой список превращает сообщение
// в мультимодальное; адаптер обязан либо передать изображения модели,
// либо вернуть ошибку если модель их не поддерживает.
type Message struct {
	Role    Role
	Content string
	Images  []string
}

// ChatRequest — запрос на один вызов модели.
//
// Нулевые MaxTokens/Temperature означают "дефолты модели из конфига".
type ChatRequest struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// UserMessage — шорткат для текстового сообщения пользователя.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// SystemMessage — шорткат для системного сообщения.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// VisionMessage — сообщение пользователя с изображениями.
func VisionMessage(content string, images ...string) Message {
	return Message{Role: RoleUser, Content: content, Images: images}
}
