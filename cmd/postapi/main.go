// 投稿APIサービスのエントリポイント。
// 認証済みユーザーに投稿のCRUD APIを提供する。
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/postapi/internal/config"
	"github.com/nao1215/postapi/internal/post"
	"github.com/nao1215/postapi/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	if _, err := logger.Setup(cfg.LogLevel); err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := post.NewServer(ctx, cfg)
	if err != nil {
		slog.Error("投稿サーバーの初期化に失敗", "error", err)
		os.Exit(1)
	}
	defer server.Close()

	slog.Info("投稿サービスを起動します", "port", cfg.Port)
	if err := server.Run(ctx); err != nil {
		slog.Error("投稿サービスの起動に失敗", "error", err)
		os.Exit(1)
	}
	slog.Info("投稿サービスを停止しました")
}
