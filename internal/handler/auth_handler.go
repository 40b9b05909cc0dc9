package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/yashvanth/taskflow/internal/auth"
	"github.com/yashvanth/taskflow/internal/middleware"
	"github.com/yashvanth/taskflow/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Verify(ctx context.Context, tokenString string) (*model.Claims, error)
	Logout(ctx context.Context, tokenString string) error
}

// AdminServiceInterface はユーザー管理ハンドラーが必要とするサービスインターフェース。
type AdminServiceInterface interface {
	ListUsers(ctx context.Context) ([]model.PublicUser, error)
	UpdateRole(ctx context.Context, userID string, role model.Role) error
	DeleteUser(ctx context.Context, userID string) error
}

// AuthHandler はToken AuthorityのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	admin   AdminServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, admin AdminServiceInterface) *AuthHandler {
	return &AuthHandler{
		service: service,
		admin:   admin,
	}
}

// registerRequest は登録リクエストのボディ。
type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenRequest はトークンを運ぶリクエストのボディ。
type tokenRequest struct {
	Token string `json:"token"`
}

// updateRoleRequest はロール変更リクエストのボディ。
type updateRoleRequest struct {
	Role string `json:"role"`
}

// Register は新規ユーザー登録を処理する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": userID})
}

// Login はログインを処理する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user":  result.User,
	})
}

// Verify はトークン検証を処理する。Verification Middlewareのリモート経路が呼ぶ。
// POST /verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		handleServiceError(w, model.NewMissingFieldError("token"))
		return
	}

	claims, err := h.service.Verify(r.Context(), req.Token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"claims":  claims,
	})
}

// Logout はログアウトを処理する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// トークンはボディまたはAuthorizationヘッダーのいずれかで受け付ける
	var req tokenRequest
	if r.Body != nil && r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	if req.Token == "" {
		req.Token = bearerFromHeader(r)
	}
	if req.Token == "" {
		handleServiceError(w, model.NewMissingCredentialError())
		return
	}

	if err := h.service.Logout(r.Context(), req.Token); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ListUsers は全ユーザー一覧を返す。管理者専用。
// GET /users
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// UpdateUserRole はユーザーのロールを変更する。管理者専用。
// PATCH /users/{id}/role
func (h *AuthHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.admin.UpdateRole(r.Context(), chi.URLParam(r, "id"), model.Role(req.Role)); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// DeleteUser はユーザーを削除する。管理者専用。
// DELETE /users/{id}
func (h *AuthHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.admin.DeleteUser(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bearerFromHeader はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerFromHeader(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// NewAuthRouter はToken AuthorityのHTTPルーターを構築する。
// 管理ルートは共有の検証ミドルウェアと管理者ロール要求で保護する。
func NewAuthRouter(h *AuthHandler, verifier middleware.TokenVerifier, mws Middlewares) http.Handler {
	r := chi.NewRouter()
	mws.Apply(r)

	r.Get("/health", healthHandler("auth"))

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/verify", h.Verify)
	r.Post("/logout", h.Logout)

	r.Route("/users", func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(verifier))
		r.Use(middleware.RequireRole(model.RoleAdmin))
		r.Get("/", h.ListUsers)
		r.Patch("/{id}/role", h.UpdateUserRole)
		r.Delete("/{id}", h.DeleteUser)
	})

	return r
}
