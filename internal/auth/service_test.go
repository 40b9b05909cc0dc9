package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yashvanth/taskflow/internal/model"
	"github.com/yashvanth/taskflow/internal/repository"
	"github.com/yashvanth/taskflow/internal/sessionreg"
	"github.com/yashvanth/taskflow/internal/token"
)

// memoryUserRepo はUserRepositoryのインメモリ実装。
type memoryUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[string]*model.User)}
}

func (r *memoryUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memoryUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *memoryUserRepo) List(ctx context.Context) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	return users, nil
}

func (r *memoryUserRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return errors.New("user not found")
	}
	u.Role = role
	return nil
}

func (r *memoryUserRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return errors.New("user not found")
	}
	delete(r.users, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *memoryUserRepo, *sessionreg.MemoryRegistry) {
	t.Helper()
	repo := newMemoryUserRepo()
	registry := sessionreg.NewMemoryRegistry()
	signer := token.NewSigner("test-secret", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, registry, signer, logger), repo, registry
}

func assertAPIErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError with code %q", err, wantCode)
	}
	if apiErr.Code != wantCode {
		t.Errorf("code = %q, want %q", apiErr.Code, wantCode)
	}
}

// TestRegister_StoresHashedPassword は登録で平文パスワードが
// 保存されないことを検証する。
func TestRegister_StoresHashedPassword(t *testing.T) {
	service, repo, _ := newTestService(t)
	ctx := context.Background()

	userID, err := service.Register(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if userID == "" {
		t.Fatal("expected non-empty user ID")
	}

	user, err := repo.FindByID(ctx, userID)
	if err != nil || user == nil {
		t.Fatalf("user not stored: %v", err)
	}
	if user.PasswordHash == "secret1" {
		t.Error("password stored in plaintext")
	}
	if !strings.HasPrefix(user.PasswordHash, "$2") {
		t.Errorf("password hash is not bcrypt: %q", user.PasswordHash)
	}
	if user.Role != model.RoleUser {
		t.Errorf("role = %q, want %q", user.Role, model.RoleUser)
	}
}

// TestRegister_ValidationErrors は登録の入力検証を検証する。
func TestRegister_ValidationErrors(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantCode string
	}{
		{"EmptyEmail", "", "secret1", model.ErrCodeMissingField},
		{"EmptyPassword", "alice@example.com", "", model.ErrCodeMissingField},
		{"ShortPassword", "alice@example.com", "12345", model.ErrCodePasswordTooShort},
		{"NoAtSign", "alice.example.com", "secret1", model.ErrCodeInvalidEmail},
		{"NoTLD", "alice@example", "secret1", model.ErrCodeInvalidEmail},
		{"Whitespace", "alice @example.com", "secret1", model.ErrCodeInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(ctx, tt.email, tt.password)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			assertAPIErrorCode(t, err, tt.wantCode)
		})
	}
}

// TestRegister_DuplicateEmail はメールアドレス重複が安定コードへ
// 写像されることを検証する。
func TestRegister_DuplicateEmail(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, "alice@example.com", "secret1"); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	_, err := service.Register(ctx, "alice@example.com", "another1")
	assertAPIErrorCode(t, err, model.ErrCodeDuplicateIdentity)
}

// TestLogin_IssuesVerifiableToken はログインで発行されたトークンが
// 検証可能で、正しい主体を持つことを検証する。
func TestLogin_IssuesVerifiableToken(t *testing.T) {
	service, _, registry := newTestService(t)
	ctx := context.Background()

	userID, _ := service.Register(ctx, "alice@example.com", "secret1")

	result, err := service.Login(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.User.ID != userID {
		t.Errorf("user ID = %q, want %q", result.User.ID, userID)
	}

	claims, err := service.Verify(ctx, result.Token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Subject != userID {
		t.Errorf("subject = %q, want %q", claims.Subject, userID)
	}
	if claims.Via != model.VerifiedViaLocal {
		t.Errorf("via = %q, want %q", claims.Via, model.VerifiedViaLocal)
	}

	// レジストリに現在セッションとして登録されている
	registered, err := registry.Get(ctx, userID)
	if err != nil {
		t.Fatalf("registry Get returned error: %v", err)
	}
	if registered != result.Token {
		t.Error("registry entry does not match issued token")
	}
}

// TestLogin_InvalidCredentials は不正な資格情報で同一コードが返ることを検証する。
// ユーザー不在とパスワード不一致を区別しない。
func TestLogin_InvalidCredentials(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	service.Register(ctx, "alice@example.com", "secret1")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"WrongPassword", "alice@example.com", "wrong-password"},
		{"UnknownEmail", "nobody@example.com", "secret1"},
		{"EmptyPassword", "alice@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Login(ctx, tt.email, tt.password)
			assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)
		})
	}
}

// TestLogin_RegistryDownStillSucceeds はレジストリ到達不能でも
// ログインが成功することを検証する。
func TestLogin_RegistryDownStillSucceeds(t *testing.T) {
	service, _, registry := newTestService(t)
	ctx := context.Background()

	service.Register(ctx, "alice@example.com", "secret1")
	registry.SetAvailable(false)

	result, err := service.Login(ctx, "alice@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.Token == "" {
		t.Error("expected token despite registry outage")
	}
}

// TestVerify_RejectsLoggedOutToken はログアウト済みトークンが
// SUPERSEDED_SESSIONで拒否されることを検証する。
func TestVerify_RejectsLoggedOutToken(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	service.Register(ctx, "alice@example.com", "secret1")
	result, _ := service.Login(ctx, "alice@example.com", "secret1")

	if err := service.Logout(ctx, result.Token); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	_, err := service.Verify(ctx, result.Token)
	assertAPIErrorCode(t, err, model.ErrCodeSupersededSession)
}

// TestVerify_RejectsSupersededToken は再ログインで旧トークンが
// 無効化されることを検証する。
func TestVerify_RejectsSupersededToken(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	service.Register(ctx, "alice@example.com", "secret1")
	first, _ := service.Login(ctx, "alice@example.com", "secret1")
	second, _ := service.Login(ctx, "alice@example.com", "secret1")

	_, err := service.Verify(ctx, first.Token)
	assertAPIErrorCode(t, err, model.ErrCodeSupersededSession)

	if _, err := service.Verify(ctx, second.Token); err != nil {
		t.Errorf("current token should verify: %v", err)
	}
}

// TestVerify_DegradedModeAcceptsStructurallyValid はレジストリ到達不能時に
// 失効確認なしで構造的に有効なトークンが受理されることを検証する。
func TestVerify_DegradedModeAcceptsStructurallyValid(t *testing.T) {
	service, _, registry := newTestService(t)
	ctx := context.Background()

	service.Register(ctx, "alice@example.com", "secret1")
	result, _ := service.Login(ctx, "alice@example.com", "secret1")
	service.Logout(ctx, result.Token)

	// 縮退モード: ログアウト済みでも期限内なら受理される
	registry.SetAvailable(false)
	claims, err := service.Verify(ctx, result.Token)
	if err != nil {
		t.Fatalf("Verify in degraded mode returned error: %v", err)
	}
	if claims.Subject == "" {
		t.Error("expected claims in degraded mode")
	}

	// 復旧後は再び拒否される
	registry.SetAvailable(true)
	_, err = service.Verify(ctx, result.Token)
	assertAPIErrorCode(t, err, model.ErrCodeSupersededSession)
}

// TestVerify_TokenErrors は構造検証の失敗分類を検証する。
func TestVerify_TokenErrors(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	t.Run("Garbage", func(t *testing.T) {
		_, err := service.Verify(ctx, "not-a-token")
		assertAPIErrorCode(t, err, model.ErrCodeMalformedToken)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := token.NewSigner("other-secret", time.Hour)
		foreign, _ := other.Issue("user-1", "alice@example.com", model.RoleUser)
		_, err := service.Verify(ctx, foreign)
		assertAPIErrorCode(t, err, model.ErrCodeMalformedToken)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := token.NewSigner("test-secret", -time.Minute)
		tokenString, _ := expired.Issue("user-1", "alice@example.com", model.RoleUser)
		_, err := service.Verify(ctx, tokenString)
		assertAPIErrorCode(t, err, model.ErrCodeTokenExpired)
	})
}

// TestLogout_RegistryDownStillSucceeds はレジストリ到達不能でも
// ログアウトが成功応答を返すことを検証する。
func TestLogout_RegistryDownStillSucceeds(t *testing.T) {
	service, _, registry := newTestService(t)
	ctx := context.Background()

	service.Register(ctx, "alice@example.com", "secret1")
	result, _ := service.Login(ctx, "alice@example.com", "secret1")

	registry.SetAvailable(false)
	if err := service.Logout(ctx, result.Token); err != nil {
		t.Errorf("Logout should succeed despite registry outage: %v", err)
	}
}

// TestLogout_MalformedToken は不正トークンでのログアウトがエラーになることを検証する。
func TestLogout_MalformedToken(t *testing.T) {
	service, _, _ := newTestService(t)

	err := service.Logout(context.Background(), "garbage")
	assertAPIErrorCode(t, err, model.ErrCodeMalformedToken)
}

// TestListUsers_OmitsPasswordHash は一覧が公開情報のみを含むことを検証する。
func TestListUsers_OmitsPasswordHash(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	service.Register(ctx, "alice@example.com", "secret1")
	service.Register(ctx, "bob@example.com", "secret2")

	users, err := service.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers returned error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("users = %d, want 2", len(users))
	}
	for _, u := range users {
		if u.ID == "" || u.Email == "" {
			t.Errorf("incomplete public user: %+v", u)
		}
	}
}

// TestUpdateRole は管理者によるロール変更を検証する。
func TestUpdateRole(t *testing.T) {
	service, repo, _ := newTestService(t)
	ctx := context.Background()

	userID, _ := service.Register(ctx, "alice@example.com", "secret1")

	if err := service.UpdateRole(ctx, userID, model.RoleAdmin); err != nil {
		t.Fatalf("UpdateRole returned error: %v", err)
	}

	user, _ := repo.FindByID(ctx, userID)
	if user.Role != model.RoleAdmin {
		t.Errorf("role = %q, want %q", user.Role, model.RoleAdmin)
	}

	t.Run("InvalidRole", func(t *testing.T) {
		err := service.UpdateRole(ctx, userID, model.Role("superuser"))
		assertAPIErrorCode(t, err, model.ErrCodeInvalidRole)
	})

	t.Run("NotFound", func(t *testing.T) {
		err := service.UpdateRole(ctx, "missing-user", model.RoleAdmin)
		assertAPIErrorCode(t, err, model.ErrCodeNotFound)
	})
}

// TestDeleteUser_RemovesSessionEntry はユーザー削除で
// セッションエントリも破棄されることを検証する。
func TestDeleteUser_RemovesSessionEntry(t *testing.T) {
	service, repo, registry := newTestService(t)
	ctx := context.Background()

	userID, _ := service.Register(ctx, "alice@example.com", "secret1")
	service.Login(ctx, "alice@example.com", "secret1")

	if err := service.DeleteUser(ctx, userID); err != nil {
		t.Fatalf("DeleteUser returned error: %v", err)
	}

	if user, _ := repo.FindByID(ctx, userID); user != nil {
		t.Error("user row should be deleted")
	}
	if registered, _ := registry.Get(ctx, userID); registered != "" {
		t.Error("session entry should be deleted")
	}

	t.Run("NotFound", func(t *testing.T) {
		err := service.DeleteUser(ctx, userID)
		assertAPIErrorCode(t, err, model.ErrCodeNotFound)
	})
}
