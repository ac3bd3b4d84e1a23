// core/store.go
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/chhz0/tasklist/retry"
	"github.com/chhz0/tasklist/storage"
	"github.com/chhz0/tasklist/transport"
	"github.com/chhz0/tasklist/types"
)

var (
	ErrTaskNotFound = errors.New("task not found")
)

// LoadState 区分"没有数据"和"数据损坏"
type LoadState int

const (
	StateEmpty LoadState = iota
	StateLoaded
	StateCorrupt
)

func (s LoadState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoaded:
		return "loaded"
	case StateCorrupt:
		return "corrupt"
	}
	return fmt.Sprintf("LoadState(%d)", int(s))
}

type LoadResult struct {
	Tasks    []types.Task
	Revision storage.Revision
	State    LoadState
	// State 为 StateCorrupt 时的 *types.CorruptError
	Cause error
}

// TaskStore 任务集合的唯一数据源。每次修改都是完整的读-改-写，
// 写入针对读到的版本做比较并交换，冲突时按重试策略重来。
type TaskStore struct {
	medium    storage.Medium
	key       string
	retry     *retry.RetryManager
	transport transport.Transport
	node      string
	logger    *log.Logger
}

type Option func(*TaskStore)

func WithKey(key string) Option {
	return func(s *TaskStore) { s.key = key }
}

func WithRetryPolicy(p retry.RetryPolicy) Option {
	return func(s *TaskStore) { s.retry.Policy = p }
}

// WithTransport 写入成功后通过 t 广播变更，node 标识本进程
func WithTransport(t transport.Transport, node string) Option {
	return func(s *TaskStore) {
		s.transport = t
		s.node = node
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *TaskStore) { s.logger = l }
}

// NewTaskStore 构造函数（补充存储参数校验）
func NewTaskStore(medium storage.Medium, opts ...Option) (*TaskStore, error) {
	if medium == nil {
		return nil, errors.New("medium cannot be nil")
	}
	s := &TaskStore{
		medium: medium,
		key:    storage.DefaultKey,
		retry: retry.NewRetryManager(retry.DefaultPolicy(), func(err error) bool {
			return errors.Is(err, storage.ErrRevisionConflict)
		}),
		transport: transport.Noop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	if s.key == "" {
		return nil, errors.New("storage key cannot be empty")
	}
	return s, nil
}

func (s *TaskStore) Key() string {
	return s.key
}

// Load 读取集合并报告其状态，介质本身的错误直接返回
func (s *TaskStore) Load(ctx context.Context) (LoadResult, error) {
	data, rev, err := s.medium.Get(ctx, s.key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return LoadResult{Tasks: []types.Task{}, State: StateEmpty}, nil
	}
	if err != nil {
		return LoadResult{}, fmt.Errorf("load %s: %w", s.key, err)
	}

	tasks, err := types.DecodeTasks(data)
	if err != nil {
		return LoadResult{Tasks: []types.Task{}, Revision: rev, State: StateCorrupt, Cause: err}, nil
	}
	return LoadResult{Tasks: tasks, Revision: rev, State: StateLoaded}, nil
}

// GetAll 返回持久化的集合；不存在或已损坏时返回空集合
func (s *TaskStore) GetAll(ctx context.Context) ([]types.Task, error) {
	res, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if res.State == StateCorrupt {
		s.logger.Warn("stored tasks are unreadable, treating as empty", "key", s.key, "err", res.Cause)
	}
	return res.Tasks, nil
}

// Add 以 max(id)+1 分配新任务并追加到末尾
func (s *TaskStore) Add(ctx context.Context, text string, priority types.Priority, dueDate string) (types.Task, error) {
	p, err := types.ParsePriority(string(priority))
	if err != nil {
		return types.Task{}, err
	}
	due, err := types.NormalizeDueDate(dueDate)
	if err != nil {
		return types.Task{}, err
	}

	var created types.Task
	err = s.mutate(ctx, "add", func(tasks []types.Task) ([]types.Task, error) {
		created = types.Task{
			ID:       nextID(tasks),
			Text:     text,
			Priority: p,
			DueDate:  due,
		}
		return append(tasks, created), nil
	})
	if err != nil {
		return types.Task{}, err
	}
	return created, nil
}

// Update 按 id 整体替换；id 不存在时集合不变
func (s *TaskStore) Update(ctx context.Context, task types.Task) (types.Task, error) {
	p, err := types.ParsePriority(string(task.Priority))
	if err != nil {
		return types.Task{}, err
	}
	due, err := types.NormalizeDueDate(task.DueDate)
	if err != nil {
		return types.Task{}, err
	}
	task.Priority = p
	task.DueDate = due

	err = s.mutate(ctx, "update", func(tasks []types.Task) ([]types.Task, error) {
		for i := range tasks {
			if tasks[i].ID == task.ID {
				tasks[i] = task
			}
		}
		return tasks, nil
	})
	if err != nil {
		return types.Task{}, err
	}
	return task, nil
}

// Remove 删除匹配的任务，无论是否命中都会写回
func (s *TaskStore) Remove(ctx context.Context, id int) error {
	return s.mutate(ctx, "remove", func(tasks []types.Task) ([]types.Task, error) {
		out := tasks[:0]
		for _, t := range tasks {
			if t.ID != id {
				out = append(out, t)
			}
		}
		return out, nil
	})
}

func (s *TaskStore) ToggleStarred(ctx context.Context, id int) (types.Task, error) {
	return s.toggle(ctx, "star", id, func(t *types.Task) { t.Starred = !t.Starred })
}

func (s *TaskStore) ToggleCompleted(ctx context.Context, id int) (types.Task, error) {
	return s.toggle(ctx, "complete", id, func(t *types.Task) { t.Completed = !t.Completed })
}

// Move 调整存储顺序
func (s *TaskStore) Move(ctx context.Context, from, to int) ([]types.Task, error) {
	var moved []types.Task
	err := s.mutate(ctx, "move", func(tasks []types.Task) ([]types.Task, error) {
		out, err := Move(tasks, from, to)
		if err != nil {
			return nil, err
		}
		moved = out
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// toggle 目标不存在时返回 ErrTaskNotFound，且不写入
func (s *TaskStore) toggle(ctx context.Context, op string, id int, flip func(*types.Task)) (types.Task, error) {
	var updated types.Task
	err := s.mutate(ctx, op, func(tasks []types.Task) ([]types.Task, error) {
		for i := range tasks {
			if tasks[i].ID == id {
				flip(&tasks[i])
				updated = tasks[i]
				return tasks, nil
			}
		}
		return nil, fmt.Errorf("%w: %d", ErrTaskNotFound, id)
	})
	if err != nil {
		return types.Task{}, err
	}
	return updated, nil
}

func (s *TaskStore) mutate(ctx context.Context, op string, apply func([]types.Task) ([]types.Task, error)) error {
	var committed storage.Revision
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		res, err := s.Load(ctx)
		if err != nil {
			return err
		}
		if res.State == StateCorrupt {
			s.logger.Warn("overwriting unreadable tasks", "key", s.key, "op", op, "err", res.Cause)
		}

		next, err := apply(res.Tasks)
		if err != nil {
			return err
		}
		data, err := types.EncodeTasks(next)
		if err != nil {
			return fmt.Errorf("encode tasks: %w", err)
		}
		committed, err = s.medium.Put(ctx, s.key, data, res.Revision)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrRevisionConflict) {
			s.logger.Error("giving up after repeated write conflicts", "key", s.key, "op", op)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Debug("tasks written", "op", op, "key", s.key, "rev", committed)
	s.publish(ctx, committed)
	return nil
}

func (s *TaskStore) publish(ctx context.Context, rev storage.Revision) {
	change := transport.Change{Node: s.node, Key: s.key, Revision: uint64(rev), At: time.Now().UTC()}
	if err := s.transport.PublishChange(ctx, change); err != nil {
		s.logger.Warn("publish change failed", "key", s.key, "rev", rev, "err", err)
	}
}

func nextID(tasks []types.Task) int {
	highest := 0
	for _, t := range tasks {
		if t.ID > highest {
			highest = t.ID
		}
	}
	return highest + 1
}
