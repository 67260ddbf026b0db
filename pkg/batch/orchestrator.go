// Package batch выполняет независимые единицы работы на ограниченном пуле воркеров.
//
// Контракт:
//   - параллельно выполняется не более limit единиц работы;
//   - порядок завершения произвольный, но итоговый срез результатов
//     всегда отсортирован по индексу отправки;
//   - отказ (ошибка или panic) одной задачи изолируется в её слот
//     и не влияет на соседние задачи и на батч в целом;
//   - при limit == 1 поведение эквивалентно последовательному вызову
//     unit для каждой задачи по порядку.
//
// Прогресс наблюдаем через необязательный Observer — он советующий,
// корректность от него не зависит.
package batch

import (
	"context"
	"fmt"
	"sync"
)

// Result — исход одной задачи батча.
//
// Index — позиция задачи в исходном списке. Ровно одно из полей
// Value/Err значимо: Err == nil означает успех.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// Observer получает уведомление после завершения каждой задачи
// (успех или отказ). Вызывается из горутины воркера — реализация
// должна быть thread-safe.
type Observer func(index int, err error)

// Run выполняет tasks через unit на пуле из limit воркеров.
//
// Возвращаемый срез всегда длины len(tasks), i-й слот соответствует
// tasks[i] независимо от порядка завершения. Ошибки задач не
// прерывают батч; единственная ошибка самого Run — limit < 1.
//
// Отмена ctx не рвёт пул принудительно: unit обязан уважать ctx сам,
// а его ошибка становится обычным отказом задачи.
func Run[T, R any](ctx context.Context, tasks []T, limit int, unit func(ctx context.Context, index int, task T) (R, error), observer Observer) ([]Result[R], error) {
	if limit < 1 {
		return nil, fmt.Errorf("worker limit must be >= 1, got %d", limit)
	}

	results := make([]Result[R], len(tasks))
	if len(tasks) == 0 {
		return results, nil
	}

	// Семафор ограничивает число одновременно работающих воркеров;
	// лишние задачи ждут освобождения слота.
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}

		go func(index int, task T) {
			defer wg.Done()
			defer func() { <-sem }()

			value, err := runUnit(ctx, index, task, unit)

			// Каждая горутина пишет только в свой слот — гонки нет.
			results[index] = Result[R]{Index: index, Value: value, Err: err}

			if observer != nil {
				observer(index, err)
			}
		}(i, task)
	}

	wg.Wait()
	return results, nil
}

// runUnit вызывает unit, превращая panic в ошибку задачи.
func runUnit[T, R any](ctx context.Context, index int, task T, unit func(ctx context.Context, index int, task T) (R, error)) (value R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task %d panicked: %v", index, rec)
		}
	}()
	return unit(ctx, index, task)
}

// Successes отбирает значения успешных задач, сохраняя порядок отправки.
func Successes[R any](results []Result[R]) []R {
	values := make([]R, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			values = append(values, r.Value)
		}
	}
	return values
}

// FirstError возвращает ошибку задачи с наименьшим индексом, либо nil.
func FirstError[R any](results []Result[R]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
