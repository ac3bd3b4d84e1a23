// Package tui 任务列表的终端交互界面
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/chhz0/tasklist/core"
	"github.com/chhz0/tasklist/transport"
	"github.com/chhz0/tasklist/types"
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeEdit
	modeSearch
	modeDue
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	reminderStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("214")).Padding(0, 1)
	cursorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	completedStyle = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	starStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	metaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle      = lipgloss.NewStyle().Faint(true)

	priorityStyles = map[types.Priority]lipgloss.Style{
		types.PriorityHigh:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		types.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		types.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("36")),
	}
)

const helpText = "j/k move • a add • e edit • D due date • d delete • space done • s star • p priority • J/K reorder • / search • f filter • o sort • q quit"

type (
	loadedMsg struct {
		tasks []types.Task
		err   error
	}
	reminderTickMsg struct{}
	changeMsg       struct{}
)

type Model struct {
	ctx      context.Context
	store    *core.TaskStore
	now      func() time.Time
	interval time.Duration
	changes  <-chan transport.Change

	all       []types.Task
	visible   []types.Task
	view      core.View
	reminders []types.Reminder

	cursor  int
	mode    mode
	input   textinput.Model
	editID  int
	status  string
	isError bool
}

type Option func(*Model)

func WithReminderInterval(d time.Duration) Option {
	return func(m *Model) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithChanges 其他写入方发布变更时重新加载
func WithChanges(ch <-chan transport.Change) Option {
	return func(m *Model) { m.changes = ch }
}

func New(store *core.TaskStore, opts ...Option) Model {
	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 50

	m := Model{
		ctx:      context.Background(),
		store:    store,
		now:      time.Now,
		interval: core.DefaultReminderInterval,
		input:    ti,
		view:     core.View{Status: core.StatusAll, Sort: core.SortNone},
		status:   "Press 'a' to add a task.",
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Run 阻塞运行直到用户退出或 ctx 结束
func Run(ctx context.Context, m Model) error {
	m.ctx = ctx
	_, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load, m.tick(), m.waitForChange())
}

func (m Model) load() tea.Msg {
	tasks, err := m.store.GetAll(m.ctx)
	return loadedMsg{tasks: tasks, err: err}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return reminderTickMsg{} })
}

func (m Model) waitForChange() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changeMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		if msg.err != nil {
			m.setError("load failed: %v", msg.err)
			return m, nil
		}
		m.setTasks(msg.tasks)
		m.refreshReminders()
		return m, nil
	case reminderTickMsg:
		m.reload()
		m.refreshReminders()
		return m, m.tick()
	case changeMsg:
		m.reload()
		return m, m.waitForChange()
	case tea.WindowSizeMsg:
		if msg.Width > 20 {
			m.input.Width = msg.Width - 10
		}
		return m, nil
	case tea.KeyMsg:
		if m.mode != modeList {
			return m.updateInput(msg)
		}
		return m.updateList(msg.String())
	}
	return m, nil
}

func (m Model) updateList(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "j", "down":
		m.cursor = clampCursor(m.cursor+1, len(m.visible))
	case "k", "up":
		m.cursor = clampCursor(m.cursor-1, len(m.visible))
	case "a":
		m.mode = modeAdd
		m.input.Placeholder = "Task text"
		m.input.SetValue("")
		m.setStatus("Add: type the task and press Enter (Esc cancels).")
		return m, m.input.Focus()
	case "e":
		task, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeEdit
		m.editID = task.ID
		m.input.Placeholder = "Task text"
		m.input.SetValue(task.Text)
		m.input.CursorEnd()
		m.setStatus("Edit: change the text and press Enter (Esc cancels).")
		return m, m.input.Focus()
	case "D":
		task, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeDue
		m.editID = task.ID
		m.input.Placeholder = "YYYY-MM-DD"
		m.input.SetValue(task.DueDate)
		m.input.CursorEnd()
		m.setStatus("Due date: YYYY-MM-DD or RFC3339, empty clears (Esc cancels).")
		return m, m.input.Focus()
	case "/":
		m.mode = modeSearch
		m.input.Placeholder = "Search"
		m.input.SetValue(m.view.Search)
		m.input.CursorEnd()
		m.setStatus("Search: Enter keeps the filter, Esc clears it.")
		return m, m.input.Focus()
	case "d":
		task, ok := m.selected()
		if !ok {
			return m, nil
		}
		if err := m.store.Remove(m.ctx, task.ID); err != nil {
			m.setError("delete failed: %v", err)
			return m, nil
		}
		m.reload()
		m.setStatus("Deleted %q.", task.Text)
	case " ", "x":
		m.toggle(m.store.ToggleCompleted, "Toggled completion.")
	case "s":
		m.toggle(m.store.ToggleStarred, "Toggled star.")
	case "p":
		task, ok := m.selected()
		if !ok {
			return m, nil
		}
		task.Priority = task.Priority.Next()
		if _, err := m.store.Update(m.ctx, task); err != nil {
			m.setError("update failed: %v", err)
			return m, nil
		}
		m.reload()
		m.setStatus("Priority set to %s.", task.Priority)
	case "J":
		m.move(1)
	case "K":
		m.move(-1)
	case "f":
		m.view.Status = m.view.Status.Next()
		m.applyView()
		m.setStatus("Showing %s tasks.", m.view.Status)
	case "o":
		m.view.Sort = m.view.Sort.Next()
		m.applyView()
		m.setStatus("Sorted by %s.", m.view.Sort)
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if m.mode == modeSearch {
			m.view.Search = ""
			m.applyView()
		}
		m.leaveInput()
		m.setStatus("Cancelled.")
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		switch m.mode {
		case modeAdd:
			if value == "" {
				m.setError("task text cannot be blank")
				return m, nil
			}
			task, err := m.store.Add(m.ctx, value, types.PriorityLow, "")
			if err != nil {
				m.setError("add failed: %v", err)
				return m, nil
			}
			m.reload()
			m.selectID(task.ID)
			m.setStatus("Added task %d.", task.ID)
		case modeEdit:
			if value == "" {
				m.setError("task text cannot be blank")
				return m, nil
			}
			if err := m.editText(value); err != nil {
				m.setError("edit failed: %v", err)
				return m, nil
			}
			m.setStatus("Updated task %d.", m.editID)
		case modeDue:
			due, err := types.NormalizeDueDate(value)
			if err != nil {
				m.setError("%v", err)
				return m, nil
			}
			if err := m.updateSelected(func(t *types.Task) { t.DueDate = due }); err != nil {
				m.setError("edit failed: %v", err)
				return m, nil
			}
			m.refreshReminders()
			if due == "" {
				m.setStatus("Cleared the due date of task %d.", m.editID)
			} else {
				m.setStatus("Task %d is due %s.", m.editID, due)
			}
		case modeSearch:
			m.setStatus("Filtering by %q.", m.view.Search)
		}
		m.leaveInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.mode == modeSearch {
		m.view.Search = m.input.Value()
		m.applyView()
	}
	return m, cmd
}

func (m *Model) editText(text string) error {
	return m.updateSelected(func(t *types.Task) { t.Text = text })
}

// updateSelected 修改正在编辑的任务并写回
func (m *Model) updateSelected(change func(*types.Task)) error {
	for _, t := range m.all {
		if t.ID == m.editID {
			change(&t)
			if _, err := m.store.Update(m.ctx, t); err != nil {
				return err
			}
			m.reload()
			return nil
		}
	}
	return fmt.Errorf("%w: %d", core.ErrTaskNotFound, m.editID)
}

func (m *Model) toggle(fn func(context.Context, int) (types.Task, error), done string) {
	task, ok := m.selected()
	if !ok {
		return
	}
	if _, err := fn(m.ctx, task.ID); err != nil {
		m.setError("update failed: %v", err)
		return
	}
	m.reload()
	m.setStatus("%s", done)
}

// move 在存储顺序中移动选中任务，仅在视图与存储顺序一致时可用
func (m *Model) move(delta int) {
	if !m.view.Identity() {
		m.setError("reorder needs the unfiltered, unsorted view")
		return
	}
	from := m.cursor
	to := from + delta
	if len(m.all) == 0 || to < 0 || to >= len(m.all) {
		return
	}
	tasks, err := m.store.Move(m.ctx, from, to)
	if err != nil {
		m.setError("move failed: %v", err)
		return
	}
	m.setTasks(tasks)
	m.cursor = to
	m.setStatus("Moved.")
}

func (m *Model) leaveInput() {
	m.mode = modeList
	m.input.Blur()
	m.input.SetValue("")
}

func (m *Model) reload() {
	tasks, err := m.store.GetAll(m.ctx)
	if err != nil {
		m.setError("reload failed: %v", err)
		return
	}
	m.setTasks(tasks)
}

func (m *Model) setTasks(tasks []types.Task) {
	m.all = tasks
	m.applyView()
}

func (m *Model) applyView() {
	m.visible = m.view.Apply(m.all)
	m.cursor = clampCursor(m.cursor, len(m.visible))
}

func (m *Model) refreshReminders() {
	m.reminders = core.DueSoon(m.all, m.now())
}

func (m *Model) selectID(id int) {
	for i, t := range m.visible {
		if t.ID == id {
			m.cursor = i
			return
		}
	}
}

func (m Model) selected() (types.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return types.Task{}, false
	}
	return m.visible[m.cursor], true
}

func (m *Model) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.isError = false
}

func (m *Model) setError(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.isError = true
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Task Manager"))
	b.WriteString("\n\n")

	if len(m.reminders) > 0 {
		lines := make([]string, len(m.reminders))
		for i, r := range m.reminders {
			lines[i] = r.String()
		}
		b.WriteString(reminderStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n\n")
	}

	search := m.view.Search
	if search == "" {
		search = "-"
	}
	b.WriteString(metaStyle.Render(fmt.Sprintf("search: %s  status: %s  sort: %s", search, m.view.Status, m.view.Sort)))
	b.WriteString("\n\n")

	if len(m.visible) == 0 {
		b.WriteString(metaStyle.Render("No tasks."))
		b.WriteString("\n")
	}
	for i, t := range m.visible {
		b.WriteString(m.renderTask(t, i == m.cursor))
		b.WriteString("\n")
	}

	if m.mode != modeList {
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.isError {
		b.WriteString(errorStyle.Render(m.status))
	} else {
		b.WriteString(m.status)
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(helpText))
	return b.String()
}

func (m Model) renderTask(t types.Task, selected bool) string {
	pointer := "  "
	if selected {
		pointer = cursorStyle.Render("> ")
	}
	box := "[ ]"
	text := t.Text
	if t.Completed {
		box = "[x]"
		text = completedStyle.Render(text)
	}
	star := "  "
	if t.Starred {
		star = starStyle.Render("* ")
	}
	meta := priorityStyles[t.Priority].Render(string(t.Priority))
	if t.DueDate != "" {
		meta += metaStyle.Render(" due " + t.DueDate)
	}
	return fmt.Sprintf("%s%s %s%s  %s", pointer, box, star, text, meta)
}

func clampCursor(cursor, n int) int {
	if n == 0 || cursor < 0 {
		return 0
	}
	if cursor >= n {
		return n - 1
	}
	return cursor
}
