package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yashvanth/taskflow/internal/model"
)

// mockTokenVerifier はTokenVerifierのモック実装。
type mockTokenVerifier struct {
	verifyFunc func(ctx context.Context, tokenString string) model.VerifyResult
}

func (m *mockTokenVerifier) Verify(ctx context.Context, tokenString string) model.VerifyResult {
	return m.verifyFunc(ctx, tokenString)
}

// TestAuthMiddleware_MissingCredential はトークン未提示で401 MISSING_CREDENTIALが返ることを検証する。
func TestAuthMiddleware_MissingCredential(t *testing.T) {
	verifier := &mockTokenVerifier{
		verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
			t.Fatal("verifier should not be called without a credential")
			return model.VerifyResult{}
		},
	}

	handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeMissingCredential {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeMissingCredential)
	}
}

// TestAuthMiddleware_MalformedAuthorizationHeader はBearer形式以外のヘッダーが
// 未提示として扱われることを検証する。
func TestAuthMiddleware_MalformedAuthorizationHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"BasicScheme", "Basic dXNlcjpwYXNz"},
		{"NoScheme", "just-a-token"},
		{"EmptyHeader", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &mockTokenVerifier{
				verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
					return model.Rejected(model.ErrCodeMalformedToken)
				},
			}

			handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("next handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Result().StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
			}
		})
	}
}

// TestAuthMiddleware_RejectedCredential は検証拒否時に失敗内訳のコードが返ることを検証する。
func TestAuthMiddleware_RejectedCredential(t *testing.T) {
	verifier := &mockTokenVerifier{
		verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
			return model.Rejected(model.ErrCodeSupersededSession)
		},
	}

	handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer revoked-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeSupersededSession {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeSupersededSession)
	}
}

// TestAuthMiddleware_VerifiedCredential_InjectsClaims は検証成功時に
// クレームがコンテキストに注入されることを検証する。
func TestAuthMiddleware_VerifiedCredential_InjectsClaims(t *testing.T) {
	claims := &model.Claims{Subject: "user-1", Email: "alice@example.com", Role: model.RoleUser}
	verifier := &mockTokenVerifier{
		verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
			if tokenString != "valid-token" {
				t.Errorf("token = %q, want %q", tokenString, "valid-token")
			}
			return model.Verified(claims)
		},
	}

	var gotClaims *model.Claims
	handler := NewAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := ClaimsFromContext(r.Context())
		if err != nil {
			t.Fatalf("claims not found in context: %v", err)
		}
		gotClaims = c
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotClaims == nil || gotClaims.Subject != "user-1" {
		t.Errorf("claims = %+v, want subject user-1", gotClaims)
	}
}

// TestOptionalAuthMiddleware_NoCredential_Continues はトークン不在でも
// 処理が継続されることを検証する。
func TestOptionalAuthMiddleware_NoCredential_Continues(t *testing.T) {
	verifier := &mockTokenVerifier{
		verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
			t.Fatal("verifier should not be called without a credential")
			return model.VerifyResult{}
		},
	}

	handlerCalled := false
	handler := NewOptionalAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if _, err := ClaimsFromContext(r.Context()); err == nil {
			t.Error("claims should not be present for anonymous request")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Error("next handler should be called")
	}
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestOptionalAuthMiddleware_InvalidCredential_ContinuesAnonymously は
// 検証失敗時に本人性なしで処理が継続されることを検証する。
func TestOptionalAuthMiddleware_InvalidCredential_ContinuesAnonymously(t *testing.T) {
	verifier := &mockTokenVerifier{
		verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
			return model.Rejected(model.ErrCodeMalformedToken)
		},
	}

	handlerCalled := false
	handler := NewOptionalAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		if _, err := ClaimsFromContext(r.Context()); err == nil {
			t.Error("claims should not be present after rejected verification")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Error("next handler should be called")
	}
}

// TestOptionalAuthMiddleware_ValidCredential_InjectsClaims は検証成功時に
// クレームが注入されることを検証する。
func TestOptionalAuthMiddleware_ValidCredential_InjectsClaims(t *testing.T) {
	claims := &model.Claims{Subject: "user-9", Role: model.RoleUser}
	verifier := &mockTokenVerifier{
		verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
			return model.Verified(claims)
		},
	}

	handler := NewOptionalAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := ClaimsFromContext(r.Context())
		if err != nil {
			t.Fatalf("claims not found: %v", err)
		}
		if c.Subject != "user-9" {
			t.Errorf("subject = %q, want %q", c.Subject, "user-9")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	req.Header.Set("Authorization", "Bearer valid")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)
}

// TestRequireRole_AdminOnly は管理者ロール要求の許可と拒否を検証する。
func TestRequireRole_AdminOnly(t *testing.T) {
	tests := []struct {
		name       string
		role       model.Role
		wantStatus int
	}{
		{"AdminAllowed", model.RoleAdmin, http.StatusOK},
		{"UserForbidden", model.RoleUser, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireRole(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
			claims := &model.Claims{Subject: "user-1", Role: tt.role}
			req = req.WithContext(ContextWithClaims(req.Context(), claims))
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Result().StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.wantStatus)
			}
		})
	}
}

// TestRequireRole_NoClaims はクレーム不在で401が返ることを検証する。
func TestRequireRole_NoClaims(t *testing.T) {
	handler := RequireRole(model.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
