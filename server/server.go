package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chhz0/tasklist/core"
	"github.com/chhz0/tasklist/middleware"
	"github.com/chhz0/tasklist/types"
)

// ShutdownTimeout 优雅关闭的最长等待时间
const ShutdownTimeout = 10 * time.Second

var errBlankText = errors.New("text cannot be blank")

type Server struct {
	store      *core.TaskStore
	scanner    *core.ReminderScanner
	logger     *log.Logger
	httpServer *http.Server
}

type Config struct {
	HTTPAddr string
	Store    *core.TaskStore
	// Scanner 可选，设置后随服务启动与停止
	Scanner *core.ReminderScanner
	Stats   *middleware.Stats
	Logger  *log.Logger
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if cfg.HTTPAddr == "" {
		return nil, errors.New("http address cannot be empty")
	}
	if cfg.Stats == nil {
		cfg.Stats = &middleware.Stats{}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard)
	}

	return &Server{
		store:   cfg.Store,
		scanner: cfg.Scanner,
		logger:  cfg.Logger,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           newRouter(cfg.Store, cfg.Stats, cfg.Logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Start 阻塞运行直到 ctx 结束或监听失败，返回前完成优雅关闭
func (s *Server) Start(ctx context.Context) error {
	if s.scanner != nil {
		s.scanner.Start(ctx)
		defer s.scanner.Stop()
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down http api")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Handler 便于测试直接挂到 httptest
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

type api struct {
	store  *core.TaskStore
	stats  *middleware.Stats
	logger *log.Logger
	now    func() time.Time
}

type createRequest struct {
	Text     string         `json:"text"`
	Priority types.Priority `json:"priority"`
	DueDate  string         `json:"dueDate"`
}

type moveRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func newRouter(store *core.TaskStore, stats *middleware.Stats, logger *log.Logger) *http.ServeMux {
	a := &api{store: store, stats: stats, logger: logger, now: time.Now}
	mux := http.NewServeMux()

	// 管理API
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, a.stats.Snapshot())
	})

	// 任务API
	mux.HandleFunc("GET /tasks", a.listTasks)
	mux.HandleFunc("POST /tasks", a.createTask)
	mux.HandleFunc("POST /tasks/move", a.moveTask)
	mux.HandleFunc("PUT /tasks/{id}", a.updateTask)
	mux.HandleFunc("DELETE /tasks/{id}", a.deleteTask)
	mux.HandleFunc("POST /tasks/{id}/star", a.toggle(a.store.ToggleStarred))
	mux.HandleFunc("POST /tasks/{id}/complete", a.toggle(a.store.ToggleCompleted))
	mux.HandleFunc("GET /reminders", a.reminders)

	return mux
}

func (a *api) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, err := core.ParseStatusFilter(q.Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sort, err := core.ParseSortMode(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tasks, err := a.store.GetAll(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	view := core.View{Search: q.Get("search"), Status: status, Sort: sort}
	writeJSON(w, http.StatusOK, view.Apply(tasks))
}

func (a *api) createTask(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, errBlankText)
		return
	}

	task, err := a.store.Add(r.Context(), text, req.Priority, req.DueDate)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (a *api) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var task types.Task
	if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	task.ID = id
	task.Text = strings.TrimSpace(task.Text)
	if task.Text == "" {
		writeError(w, http.StatusBadRequest, errBlankText)
		return
	}

	updated, err := a.store.Update(r.Context(), task)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *api) deleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := a.store.Remove(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) toggle(fn func(context.Context, int) (types.Task, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		task, err := fn(r.Context(), id)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

func (a *api) moveTask(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tasks, err := a.store.Move(r.Context(), req.From, req.To)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (a *api) reminders(w http.ResponseWriter, r *http.Request) {
	tasks, err := a.store.GetAll(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	reminders := core.DueSoon(tasks, a.now())
	if reminders == nil {
		reminders = []types.Reminder{}
	}
	writeJSON(w, http.StatusOK, reminders)
}

// fail 将领域错误映射为 HTTP 状态码
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, core.ErrIndexOutOfRange), errors.Is(err, types.ErrInvalidPriority), errors.Is(err, types.ErrInvalidDueDate):
		writeError(w, http.StatusBadRequest, err)
	default:
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid task id"))
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
