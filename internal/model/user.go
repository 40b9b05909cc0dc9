// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleUser は一般ユーザーを示す。
	RoleUser Role = "user"
	// RoleAdmin は管理者を示す。
	RoleAdmin Role = "admin"
)

// IsValid はロールが定義済みの値かどうかを返す。
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User はサービス利用ユーザーを表す。
// PasswordHashはbcryptハッシュのみを保持し、平文パスワードは一切保存しない。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// PublicUser はAPIレスポンスに載せてよいユーザー情報のみを持つ。
// パスワードハッシュは含まない。
type PublicUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Public はAPIレスポンス用の公開ユーザー情報を返す。
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:    u.ID,
		Email: u.Email,
		Role:  u.Role,
	}
}

// VerificationPath はクレデンシャル検証がどの経路で成立したかを表す。
type VerificationPath string

const (
	// VerifiedViaAuthority はToken Authorityへのリモート検証で成立したことを示す。
	VerifiedViaAuthority VerificationPath = "authority"
	// VerifiedViaFallback はAuthority到達不能時のローカル構造検証で成立したことを示す。
	// Session Registryの照合を省略した縮退モードの結果である。
	VerifiedViaFallback VerificationPath = "fallback"
	// VerifiedViaLocal はAuthorityプロセス内での検証で成立したことを示す。
	VerifiedViaLocal VerificationPath = "local"
)

// Claims は検証済みクレデンシャルから取り出した本人性情報を表す。
// リクエストコンテキストを流れる型であり、デシリアライズ境界で検証済みである。
type Claims struct {
	Subject   string           `json:"subject"`
	Email     string           `json:"email"`
	Role      Role             `json:"role"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Via       VerificationPath `json:"-"`
}

// IsAdmin は管理者クレームかどうかを返す。
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
