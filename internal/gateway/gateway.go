// Package gateway はAPIゲートウェイ（各サービスへのリバースプロキシ）を提供する。
package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yashvanth/taskflow/internal/config"
)

// route は1つのパスプレフィックスから上流サービスへの転送規則を表す。
type route struct {
	prefix   string // ゲートウェイ側のパスプレフィックス
	strip    string // 転送時に取り除くプレフィックス
	upstream string // 上流サービスのベースURL
}

// Gateway は上流サービスへのリバースプロキシ。
type Gateway struct {
	routes []route
	logger *slog.Logger
}

// New はGatewayを生成する。
func New(cfg *config.Config, logger *slog.Logger) *Gateway {
	return &Gateway{
		routes: []route{
			{prefix: "/api/auth", strip: "/api/auth", upstream: cfg.AuthBaseURL},
			{prefix: "/api/users", strip: "/api", upstream: cfg.AuthBaseURL},
			{prefix: "/api/tasks", strip: "/api", upstream: cfg.TaskServiceURL},
			{prefix: "/api/files", strip: "/api/files", upstream: cfg.FileServiceURL},
			{prefix: "/api/search", strip: "/api", upstream: cfg.SearchServiceURL},
			{prefix: "/api/scheduler", strip: "/api/scheduler", upstream: cfg.SchedulerServiceURL},
		},
		logger: logger,
	}
}

// Router はゲートウェイのHTTPルーターを構築する。
func (g *Gateway) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"service": "taskflow-gateway"})
	})

	for _, rt := range g.routes {
		proxy, err := g.newProxy(rt)
		if err != nil {
			g.logger.Error("invalid upstream URL, route disabled",
				slog.String("prefix", rt.prefix),
				slog.String("upstream", rt.upstream),
			)
			continue
		}
		r.Handle(rt.prefix, proxy)
		r.Handle(rt.prefix+"/*", proxy)
	}

	return r
}

// newProxy は1つの転送規則に対するリバースプロキシを構築する。
func (g *Gateway) newProxy(rt route) (http.Handler, error) {
	target, err := url.Parse(rt.upstream)
	if err != nil {
		return nil, fmt.Errorf("failed to parse upstream URL %q: %w", rt.upstream, err)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()

			path := strings.TrimPrefix(pr.In.URL.Path, rt.strip)
			if path == "" {
				path = "/"
			}
			pr.Out.URL.Path = target.Path + path
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			g.logger.Error("upstream unreachable",
				slog.String("path", r.URL.Path),
				slog.String("upstream", rt.upstream),
				slog.String("error", err.Error()),
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "service unavailable",
			})
		},
	}

	return proxy, nil
}
