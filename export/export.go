package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/chhz0/tasklist/core"
	"github.com/chhz0/tasklist/types"
)

// Formats 支持的导出格式
var Formats = []string{"json", "csv", "pdf"}

type Exporter struct{ st *core.TaskStore }

func NewExporter(st *core.TaskStore) *Exporter { return &Exporter{st: st} }

// Export 按存储顺序将集合写入 w
func (e *Exporter) Export(ctx context.Context, format string, w io.Writer) error {
	all, err := e.st.GetAll(ctx)
	if err != nil {
		return err
	}
	return Write(all, format, w)
}

// Write 以指定格式渲染任务列表
func Write(tasks []types.Task, format string, w io.Writer) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if tasks == nil {
			tasks = []types.Task{}
		}
		return enc.Encode(tasks)
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"id", "text", "completed", "priority", "due_date", "starred"}); err != nil {
			return err
		}
		for _, t := range tasks {
			err := cw.Write([]string{
				strconv.Itoa(t.ID), t.Text, strconv.FormatBool(t.Completed),
				string(t.Priority), t.DueDate, strconv.FormatBool(t.Starred),
			})
			if err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case "pdf":
		return writePDF(tasks, w)
	}
	return fmt.Errorf("unsupported export format %q (want one of %v)", format, Formats)
}

func writePDF(tasks []types.Task, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "Task Manager")
	pdf.Ln(12)
	pdf.SetFont("Arial", "", 10)
	if len(tasks) == 0 {
		pdf.Cell(0, 6, "No tasks.")
	}
	for _, t := range tasks {
		pdf.MultiCell(0, 6, tr(pdfLine(t)), "0", "L", false)
	}
	return pdf.Output(w)
}

func pdfLine(t types.Task) string {
	box := "[ ]"
	if t.Completed {
		box = "[x]"
	}
	star := ""
	if t.Starred {
		star = " *"
	}
	line := fmt.Sprintf("%d. %s %s%s (%s)", t.ID, box, t.Text, star, t.Priority)
	if t.DueDate != "" {
		line += " due " + t.DueDate
	}
	return line
}
