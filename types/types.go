// types/types.go
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout 截止日期的日历格式（ISO 8601）
const DateLayout = "2006-01-02"

var (
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidDueDate  = errors.New("invalid due date")
)

// 优先级枚举
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank 排序权重：high=3, medium=2, low=1，未知值为0
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Next 按 low -> medium -> high -> low 循环
func (p Priority) Next() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	}
	return PriorityLow
}

// ParsePriority 空字符串视为 low
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PriorityLow, nil
	}
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
	return p, nil
}

// 任务实体，JSON字段名即持久化格式
type Task struct {
	ID        int      `json:"id"`
	Text      string   `json:"text"`
	Completed bool     `json:"completed"`
	Priority  Priority `json:"priority"`
	DueDate   string   `json:"dueDate,omitempty"`
	Starred   bool     `json:"starred"`
}

// DueAt 解析截止日期；无法解析视为没有截止日期
func (t Task) DueAt() (time.Time, bool) {
	return ParseDueDate(t.DueDate)
}

// ParseDueDate 纯日期按 UTC 零点处理，与持久化数据中 ISO 日期的既有含义一致；
// 也接受 RFC3339 时间戳
func ParseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if d, err := time.ParseInLocation(DateLayout, s, time.UTC); err == nil {
		return d, true
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, true
	}
	return time.Time{}, false
}

// NormalizeDueDate 校验用户输入的截止日期，空字符串表示清除
func NormalizeDueDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if _, ok := ParseDueDate(s); !ok {
		return "", fmt.Errorf("%w %q: want YYYY-MM-DD or RFC3339", ErrInvalidDueDate, s)
	}
	return s, nil
}

// 提醒项：即将到期的任务
type Reminder struct {
	ID      int       `json:"id"`
	Text    string    `json:"text"`
	DueDate string    `json:"dueDate"`
	Due     time.Time `json:"due"`
}

// String 纯日期原样展示，时间戳按本地时区展示日期
func (r Reminder) String() string {
	day := r.DueDate
	if _, err := time.Parse(DateLayout, strings.TrimSpace(day)); err != nil {
		day = r.Due.Local().Format(DateLayout)
	}
	return fmt.Sprintf("Task %q is due on %s!", r.Text, day)
}
