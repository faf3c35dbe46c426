package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/KyleDunbarDev/networking-basic/config"
	"github.com/KyleDunbarDev/networking-basic/server"
)

// 权威同步服务入口：加载配置，启动 TCP 监听与固定频率 Tick 循环
func main() {
	var path string
	flag.StringVar(&path, "config", "config.toml", "path to TOML config file (optional)")
	flag.Parse()

	cfg, err := config.Load(path)
	if err != nil {
		panic(err)
	}
	// 使用第三方 zap 日志库（配置了文件则带滚动）
	if err := server.InitLogger(cfg.Log); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	a := server.New(cfg.Server.Addr, cfg.Server.TickRate(),
		server.WithRules(cfg.Rules),
		server.WithHTTPAddr(cfg.Server.HTTPAddr),
		server.WithOutboundBuffer(cfg.Server.OutboundBuffer),
		server.WithInputBuffer(cfg.Server.InputBuffer),
		server.WithMaxPendingInputs(cfg.Server.MaxPendingInputs),
		server.WithWriteTimeout(cfg.Server.WriteTimeout()),
		server.WithMaxLineBytes(cfg.Server.MaxLineBytes),
	)

	// 优雅退出（Ctrl+C）
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		server.SyncLogger()
		server.Log.Fatalf("authority: %v", err)
	}
	server.Log.Info("Shutting down...")
}
