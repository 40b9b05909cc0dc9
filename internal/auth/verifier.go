package auth

import (
	"context"
	"errors"

	"github.com/yashvanth/taskflow/internal/model"
)

// LocalVerifier はToken Authority自身の保護ルート向けの検証アダプタ。
// HTTP経由の/verifyを経由せず、同一プロセス内のServiceを直接呼ぶ。
type LocalVerifier struct {
	service *Service
}

// NewLocalVerifier はLocalVerifierを生成する。
func NewLocalVerifier(service *Service) *LocalVerifier {
	return &LocalVerifier{service: service}
}

// Verify はServiceの検証結果をタグ付きの結果へ写像する。
func (v *LocalVerifier) Verify(ctx context.Context, tokenString string) model.VerifyResult {
	claims, err := v.service.Verify(ctx, tokenString)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			return model.Rejected(apiErr.Code)
		}
		return model.Unreachable()
	}
	return model.Verified(claims)
}
