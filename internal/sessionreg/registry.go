// Package sessionreg はSession Registry（揮発性セッションストア）のアダプタを提供する。
// レジストリの到達可能性を明示的な状態として保持し、
// 到達不能を例外ではなく第一級の結果として呼び出し元へ返す。
package sessionreg

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable はSession Registryが到達不能であることを示す。
// 呼び出し元はこのセンチネルをerrors.Isで判定し、
// ベストエフォート継続か縮退モードかを自分で選択する。
var ErrUnavailable = errors.New("session registry is unavailable")

// State はレジストリ接続の状態を表す。
type State string

const (
	// StateConnected はレジストリへ到達可能であることを示す。
	StateConnected State = "connected"
	// StateDisconnected はレジストリへ到達不能であることを示す。
	StateDisconnected State = "disconnected"
)

// TransitionFunc は接続状態の遷移時に呼ばれるコールバック。
// メトリクス更新やテストでの状態観測に使用する。
type TransitionFunc func(from, to State)

// Registry はセッションレジストリの操作インターフェース。
// ユーザーIDごとに現在有効なトークンを1つだけ保持する。
// Disconnected中の全操作はErrUnavailableを返し、決してパニックしない。
type Registry interface {
	// Put はユーザーの現在セッショントークンをTTL付きで登録する。
	// 既存エントリは上書きされる（再ログインによる旧セッション無効化）。
	Put(ctx context.Context, userID, token string, ttl time.Duration) error

	// Get はユーザーの現在セッショントークンを取得する。
	// エントリが存在しない（ログアウト済み・期限切れ）場合は空文字列とnilを返す。
	Get(ctx context.Context, userID string) (string, error)

	// Delete はユーザーのセッションエントリを削除する。
	// エントリが存在しない場合もエラーにしない。
	Delete(ctx context.Context, userID string) error

	// Available は現在レジストリへ到達可能かどうかを返す。
	// 接続ライフサイクルのコールバックでのみ書き換えられ、
	// リクエストハンドラからは読み取りのみ行われる。
	Available() bool
}
