// Package logger はサービス全体で使用する構造化ロガーを提供する。
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New はJSON形式で出力するslogロガーを生成する。
// levelには debug, info, warn, error のいずれかを指定する。
func New(w io.Writer, level string) (*slog.Logger, error) {
	lv, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lv,
	})), nil
}

// Setup は標準出力へのロガーを生成し、slogのデフォルトロガーとして登録する。
func Setup(level string) (*slog.Logger, error) {
	l, err := New(os.Stdout, level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(l)
	return l, nil
}

// ParseLevel は文字列のログレベルをslog.Levelに変換する。
// 空文字列はinfoとして扱う。
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("不明なログレベル: %q", level)
	}
}
