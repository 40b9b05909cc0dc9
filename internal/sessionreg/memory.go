package sessionreg

import (
	"context"
	"sync"
	"time"
)

// memoryEntry はインメモリレジストリの1エントリ。
type memoryEntry struct {
	token     string
	expiresAt time.Time
}

// MemoryRegistry はインメモリのSession Registry実装。
// テストおよびRedisを持たないローカル起動で使用する。
// SetAvailableで到達可能性を切り替え、縮退モードの分岐を決定的に再現できる。
type MemoryRegistry struct {
	mu           sync.Mutex
	entries      map[string]memoryEntry
	available    bool
	onTransition TransitionFunc
}

// NewMemoryRegistry はConnected状態のMemoryRegistryを生成する。
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries:   make(map[string]memoryEntry),
		available: true,
	}
}

// OnTransition は接続状態の遷移コールバックを登録する。
func (m *MemoryRegistry) OnTransition(fn TransitionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTransition = fn
}

// SetAvailable は到達可能性を切り替える。テスト用。
func (m *MemoryRegistry) SetAvailable(available bool) {
	m.mu.Lock()
	was := m.available
	m.available = available
	fn := m.onTransition
	m.mu.Unlock()

	if was != available && fn != nil {
		from, to := StateConnected, StateDisconnected
		if available {
			from, to = StateDisconnected, StateConnected
		}
		fn(from, to)
	}
}

// Available は現在レジストリへ到達可能かどうかを返す。
func (m *MemoryRegistry) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// Put はユーザーの現在セッショントークンをTTL付きで登録する。
func (m *MemoryRegistry) Put(ctx context.Context, userID, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return ErrUnavailable
	}
	m.entries[userID] = memoryEntry{
		token:     token,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Get はユーザーの現在セッショントークンを取得する。
// エントリが存在しないか期限切れの場合は空文字列とnilを返す。
func (m *MemoryRegistry) Get(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return "", ErrUnavailable
	}
	entry, ok := m.entries[userID]
	if !ok {
		return "", nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.entries, userID)
		return "", nil
	}
	return entry.token, nil
}

// Delete はユーザーのセッションエントリを削除する。
func (m *MemoryRegistry) Delete(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.available {
		return ErrUnavailable
	}
	delete(m.entries, userID)
	return nil
}

// compile-time interface check
var _ Registry = (*MemoryRegistry)(nil)
