// Package authclient はToken Authorityの/verify契約を呼び出すHTTPクライアントを提供する。
// トランスポート障害と認証拒否を明確に区別した結果を返す。
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yashvanth/taskflow/internal/model"
)

// Client はToken Authorityへの検証呼び出しクライアント。
// タイムアウトは有界であり、Authority停止時もリクエストを無限に待たせない。
type Client struct {
	httpClient *http.Client
	baseURL    string // テスト用にエンドポイントを差し替え可能
	logger     *slog.Logger
}

// NewClient はClientを生成する。
// timeoutは/verify呼び出し全体の上限時間（秒オーダー）。
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		logger:     logger,
	}
}

// verifyRequest は/verifyへのリクエストボディ。
type verifyRequest struct {
	Token string `json:"token"`
}

// verifyResponse は/verifyの成功レスポンスボディ。
type verifyResponse struct {
	Success bool `json:"success"`
	Claims  struct {
		Subject   string     `json:"subject"`
		Email     string     `json:"email"`
		Role      model.Role `json:"role"`
		ExpiresAt time.Time  `json:"expiresAt"`
	} `json:"claims"`
}

// errorResponse は/verifyの失敗レスポンスボディ（統一エラーフォーマット）。
type errorResponse struct {
	Code string `json:"code"`
}

// Verify はToken Authorityへクレデンシャルの検証を依頼する。
// トランスポート障害・タイムアウト・5xxはUnreachable、
// 401は受け取った安定コードのままRejected、200はVerifiedを返す。
func (c *Client) Verify(ctx context.Context, tokenString string) model.VerifyResult {
	body, err := json.Marshal(verifyRequest{Token: tokenString})
	if err != nil {
		c.logger.Error("failed to marshal verify request", slog.String("error", err.Error()))
		return model.Unreachable()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		c.logger.Error("failed to build verify request", slog.String("error", err.Error()))
		return model.Unreachable()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// ネットワークエラーとタイムアウトはどちらも到達失敗として扱う
		c.logger.Warn("token authority unreachable",
			slog.String("error", err.Error()),
		)
		return model.Unreachable()
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var vr verifyResponse
		if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil || !vr.Success {
			c.logger.Error("invalid verify response from token authority")
			return model.Unreachable()
		}
		claims := &model.Claims{
			Subject:   vr.Claims.Subject,
			Email:     vr.Claims.Email,
			Role:      vr.Claims.Role,
			ExpiresAt: vr.Claims.ExpiresAt,
			Via:       model.VerifiedViaAuthority,
		}
		if claims.Subject == "" || !claims.Role.IsValid() {
			c.logger.Error("verify response is missing required claims")
			return model.Unreachable()
		}
		return model.Verified(claims)

	case http.StatusUnauthorized, http.StatusBadRequest:
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Code == "" {
			return model.Rejected(model.ErrCodeInvalidCredential)
		}
		return model.Rejected(er.Code)

	default:
		// Authority側の障害は認証拒否ではない
		c.logger.Warn("token authority returned unexpected status",
			slog.Int("status", resp.StatusCode),
		)
		return model.Unreachable()
	}
}
