// Package logging 各命令共用的分级日志
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Prefix 文本模式下每行日志的前缀
const Prefix = "tasklist"

// 日志配置
type Options struct {
	Level           log.Level
	Formatter       log.Formatter
	ReportTimestamp bool
}

func DefaultOptions() Options {
	return Options{
		Level:     log.WarnLevel,
		Formatter: log.TextFormatter,
	}
}

// New 创建写入 w 的日志器
func New(w io.Writer, opts Options) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{
		Level:           opts.Level,
		Formatter:       opts.Formatter,
		ReportTimestamp: opts.ReportTimestamp,
		Prefix:          Prefix,
	})
}

// NewFromConfig 按配置字符串创建日志器，json 与 logfmt 输出总是带时间戳
func NewFromConfig(w io.Writer, level, format string) *log.Logger {
	formatter := ParseFormatter(format)
	return New(w, Options{
		Level:           ParseLevel(level),
		Formatter:       formatter,
		ReportTimestamp: formatter != log.TextFormatter,
	})
}

// Discard 丢弃所有输出
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// ParseLevel 未知级别按 info 处理
func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func ParseFormatter(format string) log.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
