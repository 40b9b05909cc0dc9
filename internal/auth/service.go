// Package auth はToken Authority（本人性ライフサイクルとクレデンシャル発行）を提供する。
// Credential Storeの行とSession Registryのエントリを作成・削除できるのは
// このサービスのみである。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yashvanth/taskflow/internal/model"
	"github.com/yashvanth/taskflow/internal/repository"
	"github.com/yashvanth/taskflow/internal/sessionreg"
	"github.com/yashvanth/taskflow/internal/token"
)

const (
	// bcryptCost はパスワードハッシュのコスト係数。
	bcryptCost = 10
	// passwordMinLength はパスワードの最小文字数。
	passwordMinLength = 6
)

// emailPattern は local@domain.tld 形式の検証パターン。
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Service はToken Authorityのビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	registry sessionreg.Registry
	signer   *token.Signer
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	registry sessionreg.Registry,
	signer *token.Signer,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo: userRepo,
		registry: registry,
		signer:   signer,
		logger:   logger,
	}
}

// LoginResult はログイン成功時の応答。
type LoginResult struct {
	Token string
	User  model.PublicUser
}

// Register は新規ユーザーを登録する。
// メール形式とパスワード長を検証し、bcryptハッシュのみを保存する。
// 平文パスワードは保存もログ出力もしない。
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	if email == "" {
		return "", model.NewMissingFieldError("email")
	}
	if password == "" {
		return "", model.NewMissingFieldError("password")
	}
	if len(password) < passwordMinLength {
		return "", model.NewPasswordTooShortError(passwordMinLength)
	}
	if !emailPattern.MatchString(email) {
		return "", model.NewInvalidEmailError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return "", model.NewDuplicateIdentityError()
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("email", email),
	)

	return user.ID, nil
}

// Login はクレデンシャルを検証し、署名済みトークンを発行する。
// 発行したトークンはベストエフォートでSession Registryへ登録する。
// レジストリへの書き込み失敗はログに残すがログインは成功させる。
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	// bcrypt.CompareHashAndPasswordは定数時間比較を行う
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	tokenString, err := s.signer.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue credential: %w", err)
	}

	// 再ログインは同一キーの上書きとなり、旧セッションを無効化する
	if err := s.registry.Put(ctx, user.ID, tokenString, s.signer.Expiry()); err != nil {
		s.logger.Warn("session registry write failed, continuing without session entry",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))

	return &LoginResult{
		Token: tokenString,
		User:  user.Public(),
	}, nil
}

// Verify はトークンの有効性を判定し、クレームを返す。
// 構造・署名の検証に加え、Session Registryへ到達可能な場合は
// 登録済みトークンとの一致も要求する。
// レジストリ到達不能時は構造検証のみへ縮退する（可用性優先のトレードオフ）。
func (s *Service) Verify(ctx context.Context, tokenString string) (*model.Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	claims.Via = model.VerifiedViaLocal

	registered, err := s.registry.Get(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sessionreg.ErrUnavailable) {
			// 縮退モード: 失効済みでも期限内なら受理される
			s.logger.Warn("session registry unreachable, verifying credential structurally only",
				slog.String("user_id", claims.Subject),
			)
			return claims, nil
		}
		return nil, fmt.Errorf("failed to check session entry: %w", err)
	}

	// エントリ不在（ログアウト済み・期限切れ）も不一致として扱う
	if registered != tokenString {
		return nil, model.NewSupersededSessionError()
	}

	return claims, nil
}

// Logout はトークンの主体のセッションエントリを削除する。
// レジストリの成否に関わらず呼び出し元には常に成功を返す。
// ログアウトはクライアント側の意思表示であり、サーバー状態の保証ではない。
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		return err
	}

	if err := s.registry.Delete(ctx, claims.Subject); err != nil {
		s.logger.Warn("session registry delete failed during logout",
			slog.String("user_id", claims.Subject),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("user logged out", slog.String("user_id", claims.Subject))
	return nil
}

// parse はトークンの構造検証を行い、失敗をAPIエラー分類へ写像する。
func (s *Service) parse(tokenString string) (*model.Claims, error) {
	claims, err := s.signer.Parse(tokenString)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, model.NewTokenExpiredError()
		}
		return nil, model.NewMalformedTokenError()
	}
	return claims, nil
}
