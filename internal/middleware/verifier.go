package middleware

import (
	"context"
	"errors"
	"log/slog"

	"github.com/yashvanth/taskflow/internal/model"
	"github.com/yashvanth/taskflow/internal/token"
)

// RemoteVerifier はToken Authorityへのリモート検証インターフェース。
// authclient.Clientの部分集合として定義する。
type RemoteVerifier interface {
	Verify(ctx context.Context, tokenString string) model.VerifyResult
}

// VerifyRecorder は検証結果のメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type VerifyRecorder interface {
	RecordVerify(path model.VerificationPath, status model.VerifyStatus)
}

// Verifier は2経路のクレデンシャル検証を1つの関数に束ねる。
//
//  1. Token Authorityへのリモート検証（Session Registryの照合を含む）
//  2. Authority到達不能時のみ、共有シークレットによるローカル構造検証
//
// 経路2はレジストリ照合を省略するため経路1より厳密に弱い。
// これは障害時に各Resource Serviceを停止させないための
// 意図した可用性優先のトレードオフであり、結果はすべて監査可能に記録する。
type Verifier struct {
	remote  RemoteVerifier
	signer  *token.Signer
	metrics VerifyRecorder
	logger  *slog.Logger
}

// NewVerifier はVerifierを生成する。metricsはnilを許容する。
func NewVerifier(remote RemoteVerifier, signer *token.Signer, metrics VerifyRecorder, logger *slog.Logger) *Verifier {
	return &Verifier{
		remote:  remote,
		signer:  signer,
		metrics: metrics,
		logger:  logger,
	}
}

// Verify はクレデンシャルを検証し、タグ付きの結果を返す。
// 到達失敗はこの関数の内部でフォールバックに変換されるため、
// 呼び出し元が受け取るStatusはVerifiedかRejectedのいずれかになる。
func (v *Verifier) Verify(ctx context.Context, tokenString string) model.VerifyResult {
	result := v.remote.Verify(ctx, tokenString)

	switch result.Status {
	case model.VerifyStatusVerified:
		v.record(model.VerifiedViaAuthority, model.VerifyStatusVerified)
		return result

	case model.VerifyStatusRejected:
		v.record(model.VerifiedViaAuthority, model.VerifyStatusRejected)
		return result

	case model.VerifyStatusUnreachable:
		return v.verifyLocally(tokenString)

	default:
		v.logger.Error("unknown verify status", slog.String("status", string(result.Status)))
		return model.Rejected(model.ErrCodeInvalidCredential)
	}
}

// verifyLocally は署名と有効期限のみのローカル検証を行う。
// Session Registryの照合を通らないため、失効済みでも期限内の
// トークンは受理される（縮退モード）。
func (v *Verifier) verifyLocally(tokenString string) model.VerifyResult {
	claims, err := v.signer.Parse(tokenString)
	if err != nil {
		v.record(model.VerifiedViaFallback, model.VerifyStatusRejected)
		if errors.Is(err, token.ErrExpired) {
			return model.Rejected(model.ErrCodeTokenExpired)
		}
		return model.Rejected(model.ErrCodeMalformedToken)
	}

	claims.Via = model.VerifiedViaFallback
	v.record(model.VerifiedViaFallback, model.VerifyStatusVerified)
	// フォールバック受理は毎回監査ログに残す
	v.logger.Warn("credential accepted via local fallback verification",
		slog.String("user_id", claims.Subject),
	)

	return model.Verified(claims)
}

// record はメトリクスコレクタが設定されている場合のみ記録する。
func (v *Verifier) record(path model.VerificationPath, status model.VerifyStatus) {
	if v.metrics != nil {
		v.metrics.RecordVerify(path, status)
	}
}
