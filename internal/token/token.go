// Package token は共有シークレットによるクレデンシャルの署名と検証を提供する。
// クレデンシャルはHS256で署名されたJWTであり、発行後は不変のケイパビリティとして扱う。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yashvanth/taskflow/internal/model"
)

// ErrMalformed は署名または構造が不正なトークンを示す。
var ErrMalformed = errors.New("token is malformed or has an invalid signature")

// ErrExpired は有効期限を過ぎたトークンを示す。
// 構造と署名は正しいため、ErrMalformedとは区別する。
var ErrExpired = errors.New("token is expired")

// credentialClaims はJWTペイロードの構造。
// 標準クレームに加えてメールアドレスとロールを運ぶ。
type credentialClaims struct {
	jwt.RegisteredClaims
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// Signer はクレデンシャルの発行と検証を行う。
// 全サービスが同一のシークレットを共有する前提のため、
// Verification Middlewareのローカル検証にも同じSignerを使用する。
type Signer struct {
	secret []byte
	expiry time.Duration
}

// NewSigner はSignerを生成する。
func NewSigner(secret string, expiry time.Duration) *Signer {
	return &Signer{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// Issue はユーザー情報から署名済みクレデンシャルを発行する。
// 有効期限はSigner生成時に指定した期間（既定24時間）。
// jtiにより発行ごとに必ず異なるトークンとなる。同一ユーザーの再ログインは
// Session Registry上で旧トークンと区別できなければならない。
func (s *Signer) Issue(userID, email string, role model.Role) (string, error) {
	now := time.Now()
	claims := credentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		Email: email,
		Role:  role,
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign credential: %w", err)
	}

	return tokenString, nil
}

// Parse はトークンの署名と有効期限を検証し、クレームを返す。
// 署名・構造不正はErrMalformed、期限切れはErrExpiredを返す。
// Session Registryの照合は行わない（構造検証のみ）。
func (s *Signer) Parse(tokenString string) (*model.Claims, error) {
	claims := &credentialClaims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	if !parsed.Valid {
		return nil, ErrMalformed
	}

	// クレームの必須項目をデシリアライズ境界で検証する
	if claims.Subject == "" || !claims.Role.IsValid() || claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}

	return &model.Claims{
		Subject:   claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Expiry はクレデンシャルの有効期間を返す。
func (s *Signer) Expiry() time.Duration {
	return s.expiry
}
