package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chhz0/tasklist/core"
	"github.com/chhz0/tasklist/types"
)

// harness 在临时目录的 bolt 文件上执行命令，配置目录相互隔离
type harness struct {
	t    *testing.T
	path string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TASKLIST_CONFIG_DIR", dir)
	for _, key := range []string{"TASKLIST_CONFIG", "TASKLIST_BACKEND", "TASKLIST_PATH", "TASKLIST_LOG_LEVEL", "TASKLIST_NOTIFY"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return &harness{t: t, path: filepath.Join(dir, "tasks.db")}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{"--backend", "bolt", "--path", h.path}, args...)
	err := Execute(context.Background(), full, &stdout, &stderr)
	return stdout.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	if err != nil {
		h.t.Fatalf("%v: %v", args, err)
	}
	return out
}

func (h *harness) tasks() []types.Task {
	h.t.Helper()
	var tasks []types.Task
	if err := json.Unmarshal([]byte(h.mustRun("list", "--json")), &tasks); err != nil {
		h.t.Fatalf("decode list --json: %v", err)
	}
	return tasks
}

func TestAddAndList(t *testing.T) {
	h := newHarness(t)
	if out := h.mustRun("add", "buy", "milk", "--priority", "high", "--due", "2025-05-20"); out != "Added task 1.\n" {
		t.Errorf("add output = %q", out)
	}
	h.mustRun("add", "walk dog")
	h.mustRun("star", "2")

	out := h.mustRun("list")
	want := "   1  [ ] buy milk  (high, due 2025-05-20)\n" +
		"   2  [ ] * walk dog  (low)\n"
	if out != want {
		t.Errorf("list output:\n%s\nwant:\n%s", out, want)
	}
}

func TestAddRejectsBlankText(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run("add", "   "); !errors.Is(err, errBlankText) {
		t.Errorf("err = %v", err)
	}
	if _, err := h.run("add", "x", "--priority", "urgent"); !errors.Is(err, types.ErrInvalidPriority) {
		t.Errorf("err = %v", err)
	}
}

func TestListEmpty(t *testing.T) {
	h := newHarness(t)
	if out := h.mustRun("list"); out != "No tasks.\n" {
		t.Errorf("output = %q", out)
	}
}

func TestListViewFlags(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "low one")
	h.mustRun("add", "high one", "-p", "high")
	h.mustRun("done", "1")

	out := h.mustRun("list", "--sort", "priority")
	if !strings.HasPrefix(out, "   2") {
		t.Errorf("priority sort output:\n%s", out)
	}
	out = h.mustRun("list", "--status", "completed")
	if !strings.Contains(out, "[x] low one") || strings.Contains(out, "high one") {
		t.Errorf("completed filter output:\n%s", out)
	}
	out = h.mustRun("list", "--search", "HIGH")
	if strings.Contains(out, "low one") {
		t.Errorf("search output:\n%s", out)
	}
	if _, err := h.run("list", "--status", "done"); !errors.Is(err, core.ErrInvalidFilter) {
		t.Errorf("err = %v", err)
	}
}

func TestEdit(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "draft", "--due", "2025-01-01")
	h.mustRun("edit", "1", "--text", "final", "--priority", "medium", "--clear-due")

	tasks := h.tasks()
	if len(tasks) != 1 || tasks[0].Text != "final" || tasks[0].Priority != types.PriorityMedium || tasks[0].DueDate != "" {
		t.Errorf("tasks = %+v", tasks)
	}
	if _, err := h.run("edit", "9", "--text", "x"); !errors.Is(err, core.ErrTaskNotFound) {
		t.Errorf("missing id err = %v", err)
	}
	if _, err := h.run("edit", "1", "--text", " "); !errors.Is(err, errBlankText) {
		t.Errorf("blank text err = %v", err)
	}
}

func TestRemoveAndToggles(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "a")
	h.mustRun("add", "b")

	if out := h.mustRun("done", "2"); !strings.Contains(out, "[x] b") {
		t.Errorf("done output = %q", out)
	}
	if _, err := h.run("star", "7"); !errors.Is(err, core.ErrTaskNotFound) {
		t.Errorf("star missing err = %v", err)
	}
	h.mustRun("rm", "1")
	tasks := h.tasks()
	if len(tasks) != 1 || tasks[0].ID != 2 || !tasks[0].Completed {
		t.Errorf("tasks = %+v", tasks)
	}
	if _, err := h.run("rm", "abc"); err == nil {
		t.Error("expected invalid id error")
	}
}

func TestMove(t *testing.T) {
	h := newHarness(t)
	for _, text := range []string{"a", "b", "c"} {
		h.mustRun("add", text)
	}
	h.mustRun("move", "3", "1")
	tasks := h.tasks()
	if tasks[0].Text != "c" || tasks[1].Text != "a" || tasks[2].Text != "b" {
		t.Errorf("order = %+v", tasks)
	}
	if _, err := h.run("move", "1", "4"); !errors.Is(err, core.ErrIndexOutOfRange) {
		t.Errorf("out of range err = %v", err)
	}
	if _, err := h.run("move", "0", "1"); err == nil {
		t.Error("expected invalid position error")
	}
}

func TestReminders(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "report", "--due", "2025-05-20")
	h.mustRun("add", "later", "--due", "2025-06-01")

	out := h.mustRun("reminders", "--at", "2025-05-19T12:00:00Z")
	if out != "Task \"report\" is due on 2025-05-20!\n" {
		t.Errorf("reminders output = %q", out)
	}
	if out := h.mustRun("reminders", "--at", "2025-05-21T00:00:00Z"); out != "Nothing due soon.\n" {
		t.Errorf("reminders output = %q", out)
	}
	if _, err := h.run("reminders", "--at", "tomorrow"); err == nil {
		t.Error("expected invalid --at error")
	}
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.mustRun("add", "a")
	out := h.mustRun("export", "--format", "csv")
	if !strings.HasPrefix(out, "id,text,completed,priority,due_date,starred\n1,a,false,low,,false") {
		t.Errorf("csv = %q", out)
	}

	file := filepath.Join(t.TempDir(), "tasks.pdf")
	h.mustRun("export", "-f", "pdf", "-o", file)
	data, err := os.ReadFile(file)
	if err != nil || !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("pdf export: err=%v", err)
	}

	missing := filepath.Join(t.TempDir(), "no-such-dir", "tasks.csv")
	if _, err := h.run("export", "-f", "csv", "-o", missing); err == nil {
		t.Error("expected an error writing into a missing directory")
	}
}

func TestVersionSkipsStorage(t *testing.T) {
	newHarness(t)
	var stdout bytes.Buffer
	err := Execute(context.Background(), []string{"--backend", "nope", "version"}, &stdout, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if stdout.String() != "tasklist dev\n" {
		t.Errorf("version = %q", stdout.String())
	}
}

func TestUnknownBackend(t *testing.T) {
	newHarness(t)
	err := Execute(context.Background(), []string{"--backend", "nope", "list"}, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown backend") {
		t.Errorf("err = %v", err)
	}
}

func TestConfigCommand(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("config")
	if !strings.Contains(out, `backend = "bolt"`) || !strings.Contains(out, h.path) {
		t.Errorf("config output:\n%s", out)
	}
}

func TestFormatTaskNormalizesText(t *testing.T) {
	var buf bytes.Buffer
	FormatTask(&buf, types.Task{ID: 12, Text: "two\nlines", Completed: true, Priority: types.PriorityLow})
	if buf.String() != "  12  [x] two lines  (low)\n" {
		t.Errorf("got %q", buf.String())
	}
}
