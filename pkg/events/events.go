// Package events — Port & Adapter для наблюдения за ходом батч-генерации.
//
// Port — интерфейсы Emitter/Subscriber, объявленные здесь.
// Adapter — конкретный UI (internal/ui, обычный stdout-прогресс),
// подключаемый без изменения библиотечной логики.
//
// События советующие: генераторы корректны и без единого подписчика.
//
// Все реализации интерфейсов должны быть thread-safe — события
// эмитятся из конкурентных воркеров батча.
package events

import (
	"context"
	"time"
)

// EventType представляет тип события генерации.
type EventType string

const (
	// EventBatchStarted отправляется перед запуском батча.
	EventBatchStarted EventType = "batch_started"

	// EventTaskDone отправляется после успешного завершения задачи.
	EventTaskDone EventType = "task_done"

	// EventTaskFailed отправляется после отказа задачи.
	EventTaskFailed EventType = "task_failed"

	// EventBatchFinished отправляется после завершения всех задач батча.
	EventBatchFinished EventType = "batch_finished"
)

// EventData — sealed interface для данных события.
//
// Только типы из пакета events реализуют его, что даёт
// compile-time гарантию соответствия типа и события.
type EventData interface {
	eventData()
}

// BatchStartedData — данные EventBatchStarted.
type BatchStartedData struct {
	Title   string // человекочитаемое имя батча ("话题生成", "图片描述")
	Total   int    // число задач
	Workers int    // размер пула
}

func (BatchStartedData) eventData() {}

// TaskDoneData — данные EventTaskDone.
type TaskDoneData struct {
	Index   int
	Label   string // метка задачи (заголовок темы, имя файла)
	Preview string // короткий фрагмент результата для отображения
}

func (TaskDoneData) eventData() {}

// TaskFailedData — данные EventTaskFailed.
type TaskFailedData struct {
	Index int
	Label string
	Err   error
}

func (TaskFailedData) eventData() {}

// BatchFinishedData — данные EventBatchFinished.
type BatchFinishedData struct {
	Succeeded int
	Failed    int
	Duration  time.Duration
}

func (BatchFinishedData) eventData() {}

// Event представляет событие генерации.
type Event struct {
	Type      EventType
	Data      EventData
	Timestamp time.Time
}

// Emitter — Port для отправки событий.
//
// Библиотека (pkg/generators) зависит от этого интерфейса,
// а не от конкретного UI. Блокирующая реализация обязана
// прерываться по отмене context.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// Subscriber позволяет читать события из канала.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	// Канал закрывается при вызове Close() эмиттера.
	Events() <-chan Event

	// Close освобождает ресурсы подписчика.
	Close()
}
