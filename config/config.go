// Package config 依次从默认值、.env、TOML 文件和 TASKLIST_* 环境变量加载配置
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/chhz0/tasklist/retry"
	"github.com/chhz0/tasklist/storage"
)

const (
	// AppName 配置目录名
	AppName = "tasklist"

	// ConfigFile 配置目录下默认的 TOML 文件名
	ConfigFile = "config.toml"

	// EnvFile 工作目录下可选的 dotenv 文件
	EnvFile = ".env"
)

// Config 运行时配置
type Config struct {
	Storage   StorageConfig  `toml:"storage"`
	Reminders ReminderConfig `toml:"reminders"`
	Server    ServerConfig   `toml:"server"`
	Log       LogConfig      `toml:"log"`
	Notify    NotifyConfig   `toml:"notify"`
	Retry     RetryConfig    `toml:"retry"`

	// Dir 配置目录，不从 TOML 读取
	Dir string `toml:"-"`
	// File 实际加载的 TOML 文件
	File string `toml:"-"`
}

type StorageConfig struct {
	Backend string        `toml:"backend"`
	Path    string        `toml:"path"`
	Key     string        `toml:"key"`
	DSN     string        `toml:"dsn"`
	Timeout time.Duration `toml:"timeout"`
	Redis   RedisConfig   `toml:"redis"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

type ReminderConfig struct {
	Interval time.Duration `toml:"interval"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NotifyConfig 进程间变更事件的传输方式
type NotifyConfig struct {
	Transport string `toml:"transport"`
}

type RetryConfig struct {
	MaxAttempts  int           `toml:"max_attempts"`
	InitialDelay time.Duration `toml:"initial_delay"`
	MaxDelay     time.Duration `toml:"max_delay"`
}

// LoadOptions 指定 Load 查找文件的位置
type LoadOptions struct {
	// Path 显式指定的 TOML 文件，设置时必须存在
	Path string
	// Dir 覆盖配置目录
	Dir string
	// EnvFile 覆盖 dotenv 路径，空值使用 ".env"
	EnvFile string
}

// Load 按 默认值 -> .env -> TOML -> 环境变量 构建配置。
// 命令行参数由调用方叠加，之后调用 Finalize
func Load(opts LoadOptions) (*Config, error) {
	dir := opts.Dir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	cfg := Default(dir)

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = EnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	path := opts.Path
	if path == "" {
		if env := os.Getenv("TASKLIST_CONFIG"); env != "" {
			path = env
		}
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	} else {
		defaultPath := filepath.Join(dir, ConfigFile)
		if _, err := os.Stat(defaultPath); err == nil {
			if err := loadFile(cfg, defaultPath); err != nil {
				return nil, err
			}
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("loading config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s: unknown keys %v", path, undecoded)
	}
	cfg.File = path
	return nil
}

// Default 以 dir 为配置目录的默认配置
func Default(dir string) *Config {
	return &Config{
		Dir: dir,
		Storage: StorageConfig{
			Backend: "bolt",
			Key:     storage.DefaultKey,
			Timeout: 5 * time.Second,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "tasklist:",
			},
		},
		Reminders: ReminderConfig{Interval: time.Hour},
		Server:    ServerConfig{Addr: "127.0.0.1:8080"},
		Log:       LogConfig{Level: "warn", Format: "text"},
		Notify:    NotifyConfig{Transport: "none"},
		Retry: RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     200 * time.Millisecond,
		},
	}
}

// DefaultConfigDir 默认配置目录：TASKLIST_CONFIG_DIR，其次 XDG_CONFIG_HOME，最后 $HOME/.config
func DefaultConfigDir() string {
	if dir := os.Getenv("TASKLIST_CONFIG_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// Finalize 补全派生值并校验
func (c *Config) Finalize() error {
	if c.Storage.Path == "" {
		switch c.Storage.Backend {
		case "bolt":
			c.Storage.Path = filepath.Join(c.Dir, "tasks.db")
		case "sqlite":
			c.Storage.Path = filepath.Join(c.Dir, "tasks.sqlite")
		}
	}
	return c.Validate()
}

// Validate 返回第一个无效配置项
func (c *Config) Validate() error {
	known := false
	for _, b := range storage.Backends() {
		if b == c.Storage.Backend {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("storage.backend: unknown backend %q (want one of %v)", c.Storage.Backend, storage.Backends())
	}
	if c.Storage.Key == "" {
		return errors.New("storage.key: must not be empty")
	}
	switch c.Storage.Backend {
	case "mysql", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn: required for backend %q", c.Storage.Backend)
		}
	}
	if c.Storage.Timeout <= 0 {
		return errors.New("storage.timeout: must be positive")
	}
	if c.Reminders.Interval <= 0 {
		return errors.New("reminders.interval: must be positive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: invalid level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("log.format: invalid format %q", c.Log.Format)
	}
	switch c.Notify.Transport {
	case "none", "redis":
	default:
		return fmt.Errorf("notify.transport: invalid transport %q", c.Notify.Transport)
	}
	if c.Retry.MaxAttempts < 0 {
		return errors.New("retry.max_attempts: must not be negative")
	}
	return nil
}

// StorageOptions 转换为 storage.Open 的参数
func (c *Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:       c.Storage.Backend,
		Path:          c.Storage.Path,
		DSN:           c.Storage.DSN,
		RedisAddr:     c.Storage.Redis.Addr,
		RedisPassword: c.Storage.Redis.Password,
		RedisDB:       c.Storage.Redis.DB,
		RedisPrefix:   c.Storage.Redis.Prefix,
	}
}

// RetryPolicy 写冲突时的退避策略，max_attempts 为0时不重试
func (c *Config) RetryPolicy() retry.RetryPolicy {
	if c.Retry.MaxAttempts == 0 {
		return retry.Never{}
	}
	return &retry.ExponentialBackoff{
		InitialDelay: c.Retry.InitialDelay,
		MaxDelay:     c.Retry.MaxDelay,
		MaxAttempts:  c.Retry.MaxAttempts,
	}
}

// Write 以 TOML 格式输出配置
func (c *Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
