// core/query.go
package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chhz0/tasklist/types"
)

// DueSoonWindow 提醒窗口
const DueSoonWindow = 24 * time.Hour

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidFilter   = errors.New("invalid status filter")
	ErrInvalidSort     = errors.New("invalid sort mode")
)

type StatusFilter string

const (
	StatusAll        StatusFilter = "all"
	StatusCompleted  StatusFilter = "completed"
	StatusIncomplete StatusFilter = "incomplete"
)

func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return StatusAll, nil
	case StatusAll, StatusCompleted, StatusIncomplete:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFilter, s)
}

// Next 按 all -> incomplete -> completed 循环
func (f StatusFilter) Next() StatusFilter {
	switch f {
	case StatusAll:
		return StatusIncomplete
	case StatusIncomplete:
		return StatusCompleted
	}
	return StatusAll
}

type SortMode string

const (
	SortNone     SortMode = "none"
	SortPriority SortMode = "priority"
	SortDueDate  SortMode = "dueDate"
)

func ParseSortMode(s string) (SortMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SortNone, nil
	case "priority":
		return SortPriority, nil
	case "duedate", "due":
		return SortDueDate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSort, s)
}

func (m SortMode) Next() SortMode {
	switch m {
	case SortNone:
		return SortPriority
	case SortPriority:
		return SortDueDate
	}
	return SortNone
}

// Search 对 Text 做大小写不敏感的子串匹配，空串匹配全部
func Search(tasks []types.Task, term string) []types.Task {
	needle := strings.ToLower(term)
	out := make([]types.Task, 0, len(tasks))
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Text), needle) {
			out = append(out, t)
		}
	}
	return out
}

func FilterByStatus(tasks []types.Task, mode StatusFilter) []types.Task {
	out := make([]types.Task, 0, len(tasks))
	for _, t := range tasks {
		switch mode {
		case StatusCompleted:
			if !t.Completed {
				continue
			}
		case StatusIncomplete:
			if t.Completed {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

// Sort 稳定排序。按截止日期排序时，没有截止日期的任务排在最后并保持相对顺序。
func Sort(tasks []types.Task, mode SortMode) []types.Task {
	out := append([]types.Task(nil), tasks...)
	if out == nil {
		out = []types.Task{}
	}

	switch mode {
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		})
	case SortDueDate:
		keyed := make([]dueKey, len(out))
		for i, t := range out {
			keyed[i].task = t
			keyed[i].due, keyed[i].ok = t.DueAt()
		}
		sort.SliceStable(keyed, func(i, j int) bool {
			a, b := keyed[i], keyed[j]
			if a.ok && b.ok {
				return a.due.Before(b.due)
			}
			return a.ok && !b.ok
		})
		for i := range keyed {
			out[i] = keyed[i].task
		}
	}
	return out
}

type dueKey struct {
	task types.Task
	due  time.Time
	ok   bool
}

// DueSoon 未完成、有截止日期且 0 < due-now <= 24h 的任务
func DueSoon(tasks []types.Task, now time.Time) []types.Reminder {
	var out []types.Reminder
	for _, t := range tasks {
		if t.Completed {
			continue
		}
		due, ok := t.DueAt()
		if !ok {
			continue
		}
		if d := due.Sub(now); d > 0 && d <= DueSoonWindow {
			out = append(out, types.Reminder{ID: t.ID, Text: t.Text, DueDate: t.DueDate, Due: due})
		}
	}
	return out
}

// Move 返回把 from 位置的元素移动到 to 位置后的新序列
func Move(tasks []types.Task, from, to int) ([]types.Task, error) {
	if from < 0 || from >= len(tasks) || to < 0 || to >= len(tasks) {
		return nil, fmt.Errorf("%w: move %d -> %d in %d tasks", ErrIndexOutOfRange, from, to, len(tasks))
	}
	out := make([]types.Task, 0, len(tasks))
	out = append(out, tasks[:from]...)
	out = append(out, tasks[from+1:]...)

	moved := tasks[from]
	out = append(out[:to], append([]types.Task{moved}, out[to:]...)...)
	return out, nil
}

// View 展示层的查询条件，按 search -> status -> sort 组合
type View struct {
	Search string
	Status StatusFilter
	Sort   SortMode
}

func (v View) Apply(tasks []types.Task) []types.Task {
	out := Search(tasks, v.Search)
	out = FilterByStatus(out, v.Status)
	return Sort(out, v.Sort)
}

// Identity 视图顺序是否与存储顺序一致（此时才能按视图位置重排）
func (v View) Identity() bool {
	return v.Search == "" && (v.Status == "" || v.Status == StatusAll) && (v.Sort == "" || v.Sort == SortNone)
}
