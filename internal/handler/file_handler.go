package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yashvanth/taskflow/internal/middleware"
	"github.com/yashvanth/taskflow/internal/model"
)

// FileServiceInterface はファイルハンドラーが必要とするサービスインターフェース。
type FileServiceInterface interface {
	MaxUploadSize() int64
	Upload(ctx context.Context, claims *model.Claims, originalName string, body io.Reader, size int64, mimeType string) (*model.StoredFile, error)
	Download(ctx context.Context, claims *model.Claims, fileID string) (*model.StoredFile, io.ReadCloser, error)
	List(ctx context.Context, claims *model.Claims) ([]*model.StoredFile, error)
	Delete(ctx context.Context, claims *model.Claims, fileID string) error
}

// FileHandler はFile ServiceのHTTPハンドラー。
type FileHandler struct {
	service FileServiceInterface
}

// NewFileHandler はFileHandlerを生成する。
func NewFileHandler(service FileServiceInterface) *FileHandler {
	return &FileHandler{service: service}
}

// Upload はmultipart/form-dataのファイルアップロードを処理する。
// POST /upload（フィールド名 "file"）
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewMissingCredentialError())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxUploadSize())

	if err := r.ParseMultipartForm(h.service.MaxUploadSize()); err != nil {
		handleServiceError(w, model.NewMissingFieldError("file"))
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		handleServiceError(w, model.NewMissingFieldError("file"))
		return
	}
	defer f.Close()

	stored, err := h.service.Upload(r.Context(), claims,
		header.Filename, f, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, stored)
}

// Download はファイル実体を配信する。
// GET /files/{id}
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewMissingCredentialError())
		return
	}

	meta, body, err := h.service.Download(r.Context(), claims, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", meta.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+meta.OriginalName+`"`)
	io.Copy(w, body)
}

// List は呼び出し元のファイル一覧を返す。
// GET /files
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, err := middleware.ClaimsFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewMissingCredentialError())
		return
	}

	files, err := h.service.List(r.Context(), claims)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// Delete はファイル削除を処理する。
// DELETE /files/{id}
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// NewFileRouter はFile ServiceのHTTPルーターを構築する。
// アップロードにはAPI全般とは独立したレート制限を適用する。
func NewFileRouter(h *FileHandler, verifier middleware.TokenVerifier, limiter *middleware.RateLimiter, mws Middlewares) http.Handler {
	r := chi.NewRouter()
	mws.Apply(r)

	r.Get("/health", healthHandler("file"))

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(verifier))

		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter.UploadMiddleware())
			}
			r.Post("/upload", h.Upload)
		})

		r.Route("/files", func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter.GeneralMiddleware())
			}
			r.Get("/", h.List)
			r.Get("/{id}", h.Download)
			r.Delete("/{id}", h.Delete)
		})
	})

	return r
}
