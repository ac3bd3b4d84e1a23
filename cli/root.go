// Package cli tasklist 命令行
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/chhz0/tasklist/config"
	"github.com/chhz0/tasklist/core"
	"github.com/chhz0/tasklist/logging"
	"github.com/chhz0/tasklist/middleware"
	"github.com/chhz0/tasklist/storage"
	"github.com/chhz0/tasklist/transport"
)

// Version 构建时通过 ldflags 注入
var Version = "dev"

// app 一次调用内各子命令共享的状态
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	backend    string
	path       string
	logLevel   string

	cfg       *config.Config
	logger    *log.Logger
	medium    storage.Medium
	stats     *middleware.Stats
	store     *core.TaskStore
	transport transport.Transport
}

// Execute 执行命令，结束后释放已打开的存储
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tasklist",
		Short:         "A personal task list manager",
		Long:          "tasklist keeps a single ordered list of tasks with priorities, due dates and stars.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsStore(cmd) {
				return nil
			}
			return a.setup(cmd.Context())
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/tasklist/config.toml)")
	pf.StringVar(&a.backend, "backend", "", fmt.Sprintf("storage backend %v", storage.Backends()))
	pf.StringVar(&a.path, "path", "", "database file for file backed storage")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		a.addCmd(),
		a.listCmd(),
		a.editCmd(),
		a.rmCmd(),
		a.starCmd(),
		a.doneCmd(),
		a.moveCmd(),
		a.remindersCmd(),
		a.exportCmd(),
		a.serveCmd(),
		a.tuiCmd(),
		a.configCmd(),
		a.versionCmd(),
	)
	return root
}

// needsStore 命令是否需要访问任务集合
func needsStore(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion", "config":
		return false
	}
	return true
}

// loadConfig 在文件与环境变量之上叠加命令行参数
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{Path: a.configPath})
	if err != nil {
		return nil, err
	}
	if a.backend != "" {
		cfg.Storage.Backend = a.backend
	}
	if a.path != "" {
		cfg.Storage.Path = a.path
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewFromConfig(a.stderr, cfg.Log.Level, cfg.Log.Format)

	raw, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("opening %s storage: %w", cfg.Storage.Backend, err)
	}
	a.stats = &middleware.Stats{}
	a.medium = middleware.Chain(
		middleware.Logger(a.logger),
		middleware.Timeout(cfg.Storage.Timeout),
		middleware.Metrics(a.stats),
	)(raw)

	opts := []core.Option{
		core.WithKey(cfg.Storage.Key),
		core.WithRetryPolicy(cfg.RetryPolicy()),
		core.WithLogger(a.logger),
	}
	if cfg.Notify.Transport == "redis" {
		rt, err := transport.NewRedisTransport(ctx, cfg.Storage.Redis.Addr, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB)
		if err != nil {
			return fmt.Errorf("connecting change transport: %w", err)
		}
		a.transport = rt
		opts = append(opts, core.WithTransport(rt, rt.NodeID()))
	}

	a.store, err = core.NewTaskStore(a.medium, opts...)
	if err != nil {
		return err
	}
	a.logger.Debug("storage ready", "backend", cfg.Storage.Backend, "path", cfg.Storage.Path, "key", cfg.Storage.Key)
	return nil
}

// subscribe 配置了共享传输时返回变更流，否则为 nil
func (a *app) subscribe(ctx context.Context) <-chan transport.Change {
	if a.transport == nil {
		return nil
	}
	ch, err := a.transport.SubscribeChanges(ctx)
	if err != nil {
		a.logger.Warn("change subscription failed", "err", err)
		return nil
	}
	return ch
}

func (a *app) close() error {
	var errs []error
	if a.transport != nil {
		errs = append(errs, a.transport.Close())
	}
	if a.medium != nil {
		errs = append(errs, a.medium.Close())
	}
	return errors.Join(errs...)
}

// Main 进程入口，返回退出码
func Main(ctx context.Context) int {
	if err := Execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
