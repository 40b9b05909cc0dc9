// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントには常にこの形と安定したコードのみを返し、
// インフラ障害の詳細は決して含めない。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, dependency, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingField          = "MISSING_FIELD"
	ErrCodeInvalidEmail          = "INVALID_EMAIL"
	ErrCodePasswordTooShort      = "PASSWORD_TOO_SHORT"
	ErrCodeDuplicateIdentity     = "DUPLICATE_IDENTITY"
	ErrCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	ErrCodeMalformedToken        = "MALFORMED_TOKEN"
	ErrCodeTokenExpired          = "TOKEN_EXPIRED"
	ErrCodeSupersededSession     = "SUPERSEDED_SESSION"
	ErrCodeMissingCredential     = "MISSING_CREDENTIAL"
	ErrCodeInvalidCredential     = "INVALID_CREDENTIAL"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeInvalidRole           = "INVALID_ROLE"
	ErrCodeInvalidStatus         = "INVALID_STATUS"
	ErrCodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
)

// NewMissingFieldError は必須フィールド欠落エラーを生成する。
func NewMissingFieldError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingField,
		Message:  fmt.Sprintf("必須フィールドが指定されていません: %s", field),
		Category: "validation",
		Action:   "リクエストボディに必要なフィールドを含めてください。",
	}
}

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEmail,
		Message:  "メールアドレスの形式が正しくありません。",
		Category: "validation",
		Action:   "local@domain.tld 形式のメールアドレスを指定してください。",
	}
}

// NewPasswordTooShortError はパスワード長エラーを生成する。
func NewPasswordTooShortError(min int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  fmt.Sprintf("パスワードは%d文字以上で指定してください。", min),
		Category: "validation",
		Action:   "より長いパスワードを指定してください。",
	}
}

// NewDuplicateIdentityError はメールアドレス重複エラーを生成する。
func NewDuplicateIdentityError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateIdentity,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "validation",
		Action:   "別のメールアドレスで登録するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー不存在とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewMalformedTokenError はトークン構造・署名不正エラーを生成する。
func NewMalformedTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMalformedToken,
		Message:  "トークンの形式または署名が正しくありません。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewTokenExpiredError はトークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "トークンの有効期限が切れています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewSupersededSessionError はセッション無効化済みエラーを生成する。
// 後続のログインまたはログアウトにより無効化されたトークンを示す。
func NewSupersededSessionError() *APIError {
	return &APIError{
		Code:     ErrCodeSupersededSession,
		Message:  "このセッションは無効化されています。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewMissingCredentialError はクレデンシャル未提示エラーを生成する。
func NewMissingCredentialError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingCredential,
		Message:  "認証トークンが提示されていません。",
		Category: "auth",
		Action:   "Authorization: Bearer ヘッダーでトークンを提示してください。",
	}
}

// NewInvalidCredentialError はクレデンシャル検証失敗エラーを生成する。
// codeには失敗の内訳（MALFORMED_TOKEN等）を引き継ぐ。
func NewInvalidCredentialError(code string) *APIError {
	if code == "" {
		code = ErrCodeInvalidCredential
	}
	return &APIError{
		Code:     code,
		Message:  "認証トークンが無効です。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewNotFoundError はリソース不存在エラーを生成する。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません。", resource),
		Category: "validation",
		Action:   "IDを確認してください。",
	}
}

// NewInvalidRoleError はロール指定エラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効なロールです: %s", role),
		Category: "validation",
		Action:   "ロールには user または admin を指定してください。",
	}
}

// NewInvalidStatusError はタスクステータス指定エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには pending、in_progress、completed のいずれかを指定してください。",
	}
}

// NewDependencyUnavailableError は依存コンポーネント到達不能エラーを生成する。
// 縮退やベストエフォートで吸収できない場合にのみクライアントへ返す。
func NewDependencyUnavailableError(dependency string) *APIError {
	return &APIError{
		Code:     ErrCodeDependencyUnavailable,
		Message:  fmt.Sprintf("%sが一時的に利用できません。", dependency),
		Category: "dependency",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
