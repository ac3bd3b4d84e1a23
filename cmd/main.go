package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chhz0/tasklist/cli"
)

func main() {
	// 收到中断信号时取消上下文，服务与界面据此优雅退出
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Main(ctx)
	stop()
	os.Exit(code)
}
