package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"

	"github.com/darkflame265/08-PathClash/server"
)

// PathClash 入口：启动 HTTP + WebSocket 服务，装配事件循环与房间注册表
func main() {
	var addr string
	flag.StringVar(&addr, "addr", ":8080", "server listen address, e.g. :8080")
	flag.Parse()
	// 使用第三方 zap 日志库写入 pathclash.log（带滚动）
	if err := server.InitLogger("pathclash.log"); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	// 单事件循环承载全部状态变更；注册表与网关显式构造注入
	loop := server.NewLoop()
	loop.Start()
	sched := server.NewScheduler(clock.New(), loop.Post)
	store := server.NewRoomStore()
	gate := server.NewGate(loop, sched, store, server.GuestDirectory{}, server.GuestDirectory{}, server.NewMetrics())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gate.HandleWS)
	// 管理与监控接口
	mux.HandleFunc("/admin/config", gate.HandleAdminConfig)
	mux.HandleFunc("/metrics", gate.HandleMetrics)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		server.Log.Infof("PathClash listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			server.Log.Fatalf("listen: %v", err)
		}
	}()

	// 优雅退出（Ctrl+C）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	server.Log.Info("Shutting down...")
	loop.Stop()
}
