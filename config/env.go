package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// loadFromEnv 用 TASKLIST_* 环境变量覆盖配置
func loadFromEnv(cfg *Config) error {
	setString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) error {
		v, ok := os.LookupEnv(name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
		return nil
	}
	setDuration := func(name string, dst *time.Duration) error {
		v, ok := os.LookupEnv(name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = d
		return nil
	}

	setString("TASKLIST_BACKEND", &cfg.Storage.Backend)
	setString("TASKLIST_PATH", &cfg.Storage.Path)
	setString("TASKLIST_KEY", &cfg.Storage.Key)
	setString("TASKLIST_DSN", &cfg.Storage.DSN)
	setString("TASKLIST_REDIS_ADDR", &cfg.Storage.Redis.Addr)
	setString("TASKLIST_REDIS_PASSWORD", &cfg.Storage.Redis.Password)
	setString("TASKLIST_REDIS_PREFIX", &cfg.Storage.Redis.Prefix)
	setString("TASKLIST_SERVER_ADDR", &cfg.Server.Addr)
	setString("TASKLIST_LOG_LEVEL", &cfg.Log.Level)
	setString("TASKLIST_LOG_FORMAT", &cfg.Log.Format)
	setString("TASKLIST_NOTIFY", &cfg.Notify.Transport)

	if err := setInt("TASKLIST_REDIS_DB", &cfg.Storage.Redis.DB); err != nil {
		return err
	}
	if err := setInt("TASKLIST_RETRY_MAX_ATTEMPTS", &cfg.Retry.MaxAttempts); err != nil {
		return err
	}
	if err := setDuration("TASKLIST_STORAGE_TIMEOUT", &cfg.Storage.Timeout); err != nil {
		return err
	}
	return setDuration("TASKLIST_REMINDER_INTERVAL", &cfg.Reminders.Interval)
}
