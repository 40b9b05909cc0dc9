package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/yashvanth/taskflow/internal/model"
	"github.com/yashvanth/taskflow/internal/token"
)

// mockRemoteVerifier はRemoteVerifierのモック実装。
type mockRemoteVerifier struct {
	verifyFunc func(ctx context.Context, tokenString string) model.VerifyResult
}

func (m *mockRemoteVerifier) Verify(ctx context.Context, tokenString string) model.VerifyResult {
	return m.verifyFunc(ctx, tokenString)
}

// mockVerifyRecorder はVerifyRecorderのモック実装。記録された呼び出しを保持する。
type mockVerifyRecorder struct {
	records []struct {
		path   model.VerificationPath
		status model.VerifyStatus
	}
}

func (m *mockVerifyRecorder) RecordVerify(path model.VerificationPath, status model.VerifyStatus) {
	m.records = append(m.records, struct {
		path   model.VerificationPath
		status model.VerifyStatus
	}{path, status})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

// TestVerifier_AuthorityVerified はAuthority検証成功がそのまま返ることを検証する。
func TestVerifier_AuthorityVerified(t *testing.T) {
	claims := &model.Claims{Subject: "user-1", Via: model.VerifiedViaAuthority}
	remote := &mockRemoteVerifier{
		verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
			return model.Verified(claims)
		},
	}
	recorder := &mockVerifyRecorder{}
	v := NewVerifier(remote, token.NewSigner("secret", time.Hour), recorder, discardLogger())

	result := v.Verify(context.Background(), "some-token")

	if result.Status != model.VerifyStatusVerified {
		t.Errorf("status = %q, want %q", result.Status, model.VerifyStatusVerified)
	}
	if result.Claims.Subject != "user-1" {
		t.Errorf("subject = %q, want %q", result.Claims.Subject, "user-1")
	}
	if result.Claims.Via != model.VerifiedViaAuthority {
		t.Errorf("via = %q, want %q", result.Claims.Via, model.VerifiedViaAuthority)
	}
	if len(recorder.records) != 1 || recorder.records[0].path != model.VerifiedViaAuthority {
		t.Errorf("expected one authority-path metric record, got %+v", recorder.records)
	}
}

// TestVerifier_AuthorityRejected はAuthorityの拒否がフォールバックされずに返ることを検証する。
func TestVerifier_AuthorityRejected(t *testing.T) {
	remote := &mockRemoteVerifier{
		verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
			return model.Rejected(model.ErrCodeSupersededSession)
		},
	}
	v := NewVerifier(remote, token.NewSigner("secret", time.Hour), nil, discardLogger())

	result := v.Verify(context.Background(), "some-token")

	if result.Status != model.VerifyStatusRejected {
		t.Errorf("status = %q, want %q", result.Status, model.VerifyStatusRejected)
	}
	if result.Code != model.ErrCodeSupersededSession {
		t.Errorf("code = %q, want %q", result.Code, model.ErrCodeSupersededSession)
	}
}

// TestVerifier_UnreachableFallsBackToLocal はAuthority到達不能時に
// ローカル検証で有効なトークンが受理されることを検証する。
func TestVerifier_UnreachableFallsBackToLocal(t *testing.T) {
	signer := token.NewSigner("shared-secret", time.Hour)
	tokenString, err := signer.Issue("user-2", "bob@example.com", model.RoleUser)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	remote := &mockRemoteVerifier{
		verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
			return model.Unreachable()
		},
	}
	recorder := &mockVerifyRecorder{}
	v := NewVerifier(remote, signer, recorder, discardLogger())

	result := v.Verify(context.Background(), tokenString)

	if result.Status != model.VerifyStatusVerified {
		t.Fatalf("status = %q, want %q", result.Status, model.VerifyStatusVerified)
	}
	if result.Claims.Subject != "user-2" {
		t.Errorf("subject = %q, want %q", result.Claims.Subject, "user-2")
	}
	if result.Claims.Via != model.VerifiedViaFallback {
		t.Errorf("via = %q, want %q", result.Claims.Via, model.VerifiedViaFallback)
	}
	if len(recorder.records) != 1 || recorder.records[0].path != model.VerifiedViaFallback {
		t.Errorf("expected one fallback-path metric record, got %+v", recorder.records)
	}
}

// TestVerifier_UnreachableWithExpiredToken は縮退モードでも期限切れトークンが
// 拒否されることを検証する。
func TestVerifier_UnreachableWithExpiredToken(t *testing.T) {
	signer := token.NewSigner("shared-secret", -time.Minute)
	tokenString, err := signer.Issue("user-3", "carol@example.com", model.RoleUser)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	remote := &mockRemoteVerifier{
		verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
			return model.Unreachable()
		},
	}
	v := NewVerifier(remote, signer, nil, discardLogger())

	result := v.Verify(context.Background(), tokenString)

	if result.Status != model.VerifyStatusRejected {
		t.Fatalf("status = %q, want %q", result.Status, model.VerifyStatusRejected)
	}
	if result.Code != model.ErrCodeTokenExpired {
		t.Errorf("code = %q, want %q", result.Code, model.ErrCodeTokenExpired)
	}
}

// TestVerifier_UnreachableWithTamperedToken は縮退モードでも署名不正トークンが
// 拒否されることを検証する。
func TestVerifier_UnreachableWithTamperedToken(t *testing.T) {
	otherSigner := token.NewSigner("different-secret", time.Hour)
	tokenString, err := otherSigner.Issue("user-4", "dave@example.com", model.RoleUser)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	remote := &mockRemoteVerifier{
		verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
			return model.Unreachable()
		},
	}
	v := NewVerifier(remote, token.NewSigner("shared-secret", time.Hour), nil, discardLogger())

	result := v.Verify(context.Background(), tokenString)

	if result.Status != model.VerifyStatusRejected {
		t.Fatalf("status = %q, want %q", result.Status, model.VerifyStatusRejected)
	}
	if result.Code != model.ErrCodeMalformedToken {
		t.Errorf("code = %q, want %q", result.Code, model.ErrCodeMalformedToken)
	}
}

// TestVerifier_FallbackAcceptanceIsAudited はフォールバック受理が
// 監査ログに記録されることを検証する。
func TestVerifier_FallbackAcceptanceIsAudited(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	signer := token.NewSigner("shared-secret", time.Hour)
	tokenString, err := signer.Issue("user-5", "eve@example.com", model.RoleUser)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	remote := &mockRemoteVerifier{
		verifyFunc: func(ctx context.Context, tokenString string) model.VerifyResult {
			return model.Unreachable()
		},
	}
	v := NewVerifier(remote, signer, nil, logger)

	result := v.Verify(context.Background(), tokenString)
	if result.Status != model.VerifyStatusVerified {
		t.Fatalf("status = %q, want %q", result.Status, model.VerifyStatusVerified)
	}

	if !bytes.Contains(buf.Bytes(), []byte("local fallback")) {
		t.Errorf("expected fallback acceptance audit log, got: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("user-5")) {
		t.Errorf("expected user_id in audit log, got: %s", buf.String())
	}
}
