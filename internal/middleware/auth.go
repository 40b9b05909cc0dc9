// Package middleware はHTTPミドルウェアを提供する。
// クレデンシャル検証ミドルウェアは全Resource Serviceが共有する
// 単一の実装であり、サービスごとの複製は持たない。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/yashvanth/taskflow/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimsContextKey はリクエストコンテキストに検証済みクレームを格納するためのキー。
var claimsContextKey = contextKey("claims")

// TokenVerifier はクレデンシャル検証のインターフェース。
// Verifierの2経路検証を束ねた結果を受け取る。
type TokenVerifier interface {
	Verify(ctx context.Context, tokenString string) model.VerifyResult
}

// NewAuthMiddleware はBearerクレデンシャルを検証するミドルウェアを返す。
// クレデンシャル未提示は401 MISSING_CREDENTIAL、検証失敗は
// 401で失敗内訳の安定コードを返す。
// 成功時は検証済みクレームをリクエストコンテキストに注入する。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearer(r)
			if tokenString == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewMissingCredentialError())
				return
			}

			result := verifier.Verify(r.Context(), tokenString)
			if result.Status != model.VerifyStatusVerified {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialError(result.Code))
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, result.Claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalAuthMiddleware は同じ2経路検証を行うが決して拒否しないミドルウェアを返す。
// クレデンシャル不在や検証失敗時は本人性を付与せずに処理を継続し、
// 公開エンドポイントごとの縮退挙動をResource Service側で実装できるようにする。
func NewOptionalAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearer(r)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			result := verifier.Verify(r.Context(), tokenString)
			if result.Status != model.VerifyStatusVerified {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, result.Claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole は指定ロールを要求するミドルウェアを返す。
// NewAuthMiddlewareの後段に配置すること。
func RequireRole(role model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := ClaimsFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewMissingCredentialError())
				return
			}
			if claims.Role != role {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext はリクエストコンテキストから検証済みクレームを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimsFromContext(ctx context.Context) (*model.Claims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*model.Claims)
	if !ok || claims == nil {
		return nil, fmt.Errorf("claims not found in context")
	}
	return claims, nil
}

// ContextWithClaims はコンテキストにクレームを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaims(ctx context.Context, claims *model.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// extractBearer はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダー不在・形式不正の場合は空文字列を返す。
func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
