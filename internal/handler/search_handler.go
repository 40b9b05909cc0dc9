package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yashvanth/taskflow/internal/middleware"
	"github.com/yashvanth/taskflow/internal/model"
	"github.com/yashvanth/taskflow/internal/search"
)

// SearchServiceInterface は検索ハンドラーが必要とするサービスインターフェース。
type SearchServiceInterface interface {
	SearchTasks(ctx context.Context, claims *model.Claims, query string, status model.TaskStatus, userID string, limit, offset int) ([]*model.Task, error)
	SearchUsers(ctx context.Context, claims *model.Claims, query string, limit int) ([]search.UserResult, error)
}

// SearchHandler はSearch ServiceのHTTPハンドラー。
type SearchHandler struct {
	service SearchServiceInterface
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(service SearchServiceInterface) *SearchHandler {
	return &SearchHandler{service: service}
}

// SearchTasks はタスクの全文検索を処理する。認証必須。
// GET /search/tasks?q=...&status=...&userId=...&limit=...&offset=...
func (h *SearchHandler) SearchTasks(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewMissingCredentialError())
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	tasks, err := h.service.SearchTasks(r.Context(), claims,
		q.Get("q"), model.TaskStatus(q.Get("status")), q.Get("userId"), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// SearchUsers はユーザー検索を処理する。匿名でも利用できるが、
// その場合メールアドレスは伏せられる。
// GET /search/users?q=...&limit=...
func (h *SearchHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	// 匿名はnilクレームとしてサービス層へ渡す
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		claims = nil
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	users, err := h.service.SearchUsers(r.Context(), claims, q.Get("q"), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// NewSearchRouter はSearch ServiceのHTTPルーターを構築する。
// タスク検索は認証必須、ユーザー検索はオプショナル認証で公開する。
func NewSearchRouter(h *SearchHandler, verifier middleware.TokenVerifier, mws Middlewares) http.Handler {
	r := chi.NewRouter()
	mws.Apply(r)

	r.Get("/health", healthHandler("search"))

	r.Route("/search", func(r chi.Router) {
		r.With(middleware.NewAuthMiddleware(verifier)).Get("/tasks", h.SearchTasks)
		r.With(middleware.NewOptionalAuthMiddleware(verifier)).Get("/users", h.SearchUsers)
	})

	return r
}
