package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/chhz0/tasklist/types"
)

// FormatTask 输出一行："{ID:>4}  [x] * {TEXT}  ({PRIORITY}, due {DATE})"
func FormatTask(w io.Writer, task types.Task) {
	box := " "
	if task.Completed {
		box = "x"
	}
	star := ""
	if task.Starred {
		star = "* "
	}
	meta := string(task.Priority)
	if task.DueDate != "" {
		meta += ", due " + task.DueDate
	}
	fmt.Fprintf(w, "%4d  [%s] %s%s  (%s)\n", task.ID, box, star, normalizeText(task.Text), meta)
}

// FormatTasks 逐行输出，空列表输出占位行
func FormatTasks(w io.Writer, tasks []types.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	for _, t := range tasks {
		FormatTask(w, t)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// normalizeText 保证一个任务只占一行
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	if strings.TrimSpace(text) == "" {
		return "(untitled)"
	}
	return text
}
