package model

// VerifyStatus はクレデンシャル検証の結果種別を表す。
// 例外の型による分岐ではなく、明示的なタグとして呼び出し元へ返す。
type VerifyStatus string

const (
	// VerifyStatusVerified は検証成功を示す。
	VerifyStatusVerified VerifyStatus = "verified"
	// VerifyStatusRejected は認証上の拒否（不正・期限切れ・無効化済み）を示す。
	VerifyStatusRejected VerifyStatus = "rejected"
	// VerifyStatusUnreachable はToken Authorityへの到達失敗を示す。
	// 認証の失敗ではなく、呼び出し元にフォールバックの判断を委ねる。
	VerifyStatusUnreachable VerifyStatus = "unreachable"
)

// VerifyResult はクレデンシャル検証の結果を表すタグ付きの値。
type VerifyResult struct {
	Status VerifyStatus
	Claims *Claims // Status == Verified の場合のみ非nil
	Code   string  // Status == Rejected の場合の安定エラーコード
}

// Verified は検証成功の結果を生成する。
func Verified(claims *Claims) VerifyResult {
	return VerifyResult{Status: VerifyStatusVerified, Claims: claims}
}

// Rejected は認証拒否の結果を生成する。
func Rejected(code string) VerifyResult {
	return VerifyResult{Status: VerifyStatusRejected, Code: code}
}

// Unreachable は到達失敗の結果を生成する。
func Unreachable() VerifyResult {
	return VerifyResult{Status: VerifyStatusUnreachable}
}
