package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/yashvanth/taskflow/internal/middleware"
)

// Middlewares は全サービス共通のミドルウェアスタックを保持する。
//
// 実行順序:
//
//	Recovery → SecurityHeaders → CORS → Metrics → Logging
type Middlewares struct {
	Logger            *slog.Logger
	Metrics           middleware.HTTPRecorder
	CORSAllowedOrigin string
}

// Apply は共通ミドルウェアをルーターに適用する。
func (m Middlewares) Apply(r chi.Router) {
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if m.CORSAllowedOrigin != "" {
		r.Use(middleware.NewCORSMiddleware(m.CORSAllowedOrigin))
	}
	if m.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(m.Metrics))
	}
	if m.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(m.Logger))
	}
}
