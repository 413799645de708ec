// Package logger 把 *slog.Logger 放进 context，按请求携带 request_id 等属性。
package logger

import (
	"context"
	"io"
	"log/slog"
)

type ctxKey struct{}

// Into 把 logger 放进 context。
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From 从 context 取 logger，没有则返回 slog.Default()。
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// Setup 按运行环境创建 logger：local 用文本格式，dev/prod 用 JSON。
func Setup(env string, w io.Writer) *slog.Logger {
	switch env {
	case "dev":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case "prod":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
