package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yashvanth/taskflow/internal/middleware"
	"github.com/yashvanth/taskflow/internal/model"
)

// SchedulerServiceInterface はスケジューラーハンドラーが必要とするサービスインターフェース。
type SchedulerServiceInterface interface {
	Schedule(ctx context.Context, claims *model.Claims, taskID, cronExpr, action string) (*model.ScheduledJob, error)
	List(ctx context.Context) ([]*model.ScheduledJob, error)
	Unschedule(ctx context.Context, claims *model.Claims, taskID string) error
}

// SchedulerHandler はScheduler ServiceのHTTPハンドラー。
type SchedulerHandler struct {
	service SchedulerServiceInterface
}

// NewSchedulerHandler はSchedulerHandlerを生成する。
func NewSchedulerHandler(service SchedulerServiceInterface) *SchedulerHandler {
	return &SchedulerHandler{service: service}
}

// scheduleRequest はジョブ登録リクエストのボディ。
type scheduleRequest struct {
	TaskID         string `json:"taskId"`
	CronExpression string `json:"cronExpression"`
	Action         string `json:"action"`
}

// Schedule はジョブ登録を処理する。
// POST /jobs
func (h *SchedulerHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewMissingCredentialError())
		return
	}

	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	job, err := h.service.Schedule(r.Context(), claims, req.TaskID, req.CronExpression, req.Action)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, job)
}

// List は全ジョブ一覧を返す。
// GET /jobs
func (h *SchedulerHandler) List(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// Unschedule はジョブ削除を処理する。
// DELETE /jobs/{taskId}
func (h *SchedulerHandler) Unschedule(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewMissingCredentialError())
		return
	}

	if err := h.service.Unschedule(r.Context(), claims, chi.URLParam(r, "taskId")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// NewSchedulerRouter はScheduler ServiceのHTTPルーターを構築する。
func NewSchedulerRouter(h *SchedulerHandler, verifier middleware.TokenVerifier, mws Middlewares) http.Handler {
	r := chi.NewRouter()
	mws.Apply(r)

	r.Get("/health", healthHandler("scheduler"))

	r.Route("/jobs", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(verifier))
		r.Post("/", h.Schedule)
		r.Get("/", h.List)
		r.Delete("/{taskId}", h.Unschedule)
	})

	return r
}
