package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yashvanth/taskflow/internal/middleware"
	"github.com/yashvanth/taskflow/internal/model"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	Create(ctx context.Context, userID, title, description string) (*model.Task, error)
	Get(ctx context.Context, claims *model.Claims, taskID string) (*model.Task, error)
	List(ctx context.Context, claims *model.Claims, all bool) ([]*model.Task, error)
	UpdateStatus(ctx context.Context, claims *model.Claims, taskID string, status model.TaskStatus) (*model.Task, error)
	Delete(ctx context.Context, claims *model.Claims, taskID string) error
}

// TaskHandler はTask ServiceのHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

// createTaskRequest はタスク作成リクエストのボディ。
type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// updateStatusRequest はステータス更新リクエストのボディ。
type updateStatusRequest struct {
	Status string `json:"status"`
}

// Create はタスク作成を処理する。
// POST /tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewMissingCredentialError())
		return
	}

	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.service.Create(r.Context(), claims.Subject, req.Title, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// List はタスク一覧を返す。
// GET /tasks?all=true で管理者は全ユーザーのタスクを取得できる。
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewMissingCredentialError())
		return
	}

	all := r.URL.Query().Get("all") == "true"

	tasks, err := h.service.List(r.Context(), claims, all)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// Get はタスク詳細を返す。
// GET /tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewMissingCredentialError())
		return
	}

	task, err := h.service.Get(r.Context(), claims, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// UpdateStatus はタスクのステータス更新を処理する。
// PATCH /tasks/{id}/status
func (h *TaskHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewMissingCredentialError())
		return
	}

	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := h.service.UpdateStatus(r.Context(), claims, chi.URLParam(r, "id"), model.TaskStatus(req.Status))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Delete はタスク削除を処理する。
// DELETE /tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewMissingCredentialError())
		return
	}

	if err := h.service.Delete(r.Context(), claims, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// NewTaskRouter はTask ServiceのHTTPルーターを構築する。
// 全タスクルートは共有の検証ミドルウェアで保護し、
// 認証後にユーザー単位のレート制限を適用する。
func NewTaskRouter(h *TaskHandler, verifier middleware.TokenVerifier, limiter *middleware.RateLimiter, mws Middlewares) http.Handler {
	r := chi.NewRouter()
	mws.Apply(r)

	r.Get("/health", healthHandler("task"))

	r.Route("/tasks", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(verifier))
		if limiter != nil {
			r.Use(limiter.GeneralMiddleware())
		}
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Delete("/{id}", h.Delete)
	})

	return r
}
