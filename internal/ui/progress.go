// Package ui реализует Bubble Tea прогресс батч-генерации.
//
// Модель подписана на события через events.Subscriber (Port & Adapter):
// генераторы ничего не знают про TUI, UI ничего не знает про генераторы.
package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/truncate"

	"github.com/ilkoid/fabrika/pkg/events"
)

// maxLogLines — сколько последних строк лога держим на экране.
const maxLogLines = 12

// EventMsg конвертирует events.Event в Bubble Tea сообщение.
type EventMsg events.Event

// receiveEventCmd читает следующее событие из подписчика.
//
// Закрытие канала означает что эмиттер закрыт — UI может завершаться.
func receiveEventCmd(sub events.Subscriber) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub.Events()
		if !ok {
			return tea.QuitMsg{}
		}
		return EventMsg(event)
	}
}

// ProgressModel — модель Bubble Tea для отображения хода батча.
type ProgressModel struct {
	sub events.Subscriber

	spinner  spinner.Model
	progress progress.Model

	title     string
	total     int
	workers   int
	done      int
	failed    int
	finished  bool
	lines     []string
	width     int
}

// NewProgressModel создаёт модель, подписанную на события батча.
func NewProgressModel(sub events.Subscriber) ProgressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return ProgressModel{
		sub:      sub,
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient()),
		width:    80,
	}
}

// Init запускает спиннер и чтение событий.
func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, receiveEventCmd(m.sub))
}

func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 8
		if m.progress.Width > 60 {
			m.progress.Width = 60
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.finished {
				return m, tea.Quit
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case EventMsg:
		return m.handleEvent(events.Event(msg))
	}

	return m, nil
}

// handleEvent обновляет состояние по событию батча и продолжает чтение.
func (m ProgressModel) handleEvent(event events.Event) (tea.Model, tea.Cmd) {
	switch data := event.Data.(type) {

	case events.BatchStartedData:
		m.title = data.Title
		m.total = data.Total
		m.workers = data.Workers
		m.done = 0
		m.failed = 0
		m.finished = false
		m.lines = nil

	case events.TaskDoneData:
		m.done++
		m.appendLine(doneMsgStyle(fmt.Sprintf("✅ [%d] %s", data.Index+1, data.Label)))

	case events.TaskFailedData:
		m.done++
		m.failed++
		m.appendLine(failMsgStyle(fmt.Sprintf("❌ [%d] %s: %v", data.Index+1, data.Label, data.Err)))

	case events.BatchFinishedData:
		m.finished = true
		m.appendLine(dimStyle(fmt.Sprintf("完成: %d 成功, %d 失败, 用时 %s",
			data.Succeeded, data.Failed, data.Duration.Round(100*time.Millisecond))))
	}

	return m, receiveEventCmd(m.sub)
}

// appendLine добавляет строку лога, усекая по ширине и глубине.
func (m *ProgressModel) appendLine(line string) {
	if m.width > 4 {
		line = truncate.String(line, uint(m.width-2))
	}
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

func (m ProgressModel) View() string {
	header := headerStyle.Width(m.width).Render(
		fmt.Sprintf(" %s | 任务: %d | 并发: %d ", m.title, m.total, m.workers))

	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.done) / float64(m.total)
	}
	bar := m.progress.ViewAs(ratio)

	status := fmt.Sprintf("%s %d/%d", m.spinner.View(), m.done, m.total)
	if m.finished {
		status = dimStyle("按 Enter 退出")
	}

	body := ""
	for _, line := range m.lines {
		body += line + "\n"
	}

	return fmt.Sprintf("%s\n\n%s  %s\n\n%s", header, bar, status, body)
}

// RunProgress запускает TUI и блокируется до выхода пользователя
// или закрытия эмиттера.
func RunProgress(sub events.Subscriber) error {
	_, err := tea.NewProgram(NewProgressModel(sub)).Run()
	return err
}

var _ tea.Model = ProgressModel{}
