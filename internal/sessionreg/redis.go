package sessionreg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// sessionKeyPrefix はレジストリ内のセッションエントリのキープレフィックス。
const sessionKeyPrefix = "session:"

// RedisRegistryConfig はRedisRegistryの設定。
type RedisRegistryConfig struct {
	Addr              string
	Password          string
	ReconnectInterval time.Duration // Disconnected中の再接続試行間隔
}

// RedisRegistry はRedisを使用したSession Registryアダプタ。
// 接続状態はインスタンスが所有する明示的な状態であり、
// プロセスグローバルなフラグは持たない。
type RedisRegistry struct {
	client *redis.Client
	logger *slog.Logger

	mu           sync.RWMutex
	state        State
	onTransition TransitionFunc

	reconnectInterval time.Duration
}

// NewRedisRegistry はRedisRegistryを生成し、初回接続を試みる。
// 初回接続に失敗してもエラーにせずDisconnected状態で返す。
// レジストリの不在はシステムを停止させない（縮退して継続する）。
func NewRedisRegistry(ctx context.Context, cfg RedisRegistryConfig, logger *slog.Logger) *RedisRegistry {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = 5 * time.Second
	}

	r := &RedisRegistry{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
		}),
		logger:            logger,
		state:             StateDisconnected,
		reconnectInterval: cfg.ReconnectInterval,
	}

	if err := r.client.Ping(ctx).Err(); err != nil {
		logger.Warn("session registry connection failed, operating in degraded mode",
			slog.String("addr", cfg.Addr),
			slog.String("error", err.Error()),
		)
	} else {
		r.setState(StateConnected)
		logger.Info("session registry connected", slog.String("addr", cfg.Addr))
	}

	return r
}

// OnTransition は接続状態の遷移コールバックを登録する。
// 起動時のワイヤリングでのみ呼び出すこと。
func (r *RedisRegistry) OnTransition(fn TransitionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTransition = fn
}

// Available は現在レジストリへ到達可能かどうかを返す。
func (r *RedisRegistry) Available() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == StateConnected
}

// Put はユーザーの現在セッショントークンをTTL付きで登録する。
func (r *RedisRegistry) Put(ctx context.Context, userID, token string, ttl time.Duration) error {
	if !r.Available() {
		return ErrUnavailable
	}

	if err := r.client.Set(ctx, sessionKeyPrefix+userID, token, ttl).Err(); err != nil {
		r.markFailure(err)
		return fmt.Errorf("failed to put session entry: %w", ErrUnavailable)
	}
	return nil
}

// Get はユーザーの現在セッショントークンを取得する。
// エントリが存在しない場合は空文字列とnilを返す。
func (r *RedisRegistry) Get(ctx context.Context, userID string) (string, error) {
	if !r.Available() {
		return "", ErrUnavailable
	}

	val, err := r.client.Get(ctx, sessionKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		r.markFailure(err)
		return "", fmt.Errorf("failed to get session entry: %w", ErrUnavailable)
	}
	return val, nil
}

// Delete はユーザーのセッションエントリを削除する。
func (r *RedisRegistry) Delete(ctx context.Context, userID string) error {
	if !r.Available() {
		return ErrUnavailable
	}

	if err := r.client.Del(ctx, sessionKeyPrefix+userID).Err(); err != nil {
		r.markFailure(err)
		return fmt.Errorf("failed to delete session entry: %w", ErrUnavailable)
	}
	return nil
}

// StartReconnectLoop はバックグラウンドの再接続ループを起動する。
// Disconnected中のみPingを試行し、成功したらConnectedへ復帰する。
// コンテキストのキャンセルで停止する。
func (r *RedisRegistry) StartReconnectLoop(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.reconnectInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if r.Available() {
					continue
				}
				pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
				err := r.client.Ping(pingCtx).Err()
				cancel()
				if err == nil {
					r.setState(StateConnected)
					r.logger.Info("session registry reconnected")
				}
			}
		}
	}()
}

// Close はRedis接続を閉じる。
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// markFailure は操作エラーを受けて状態をDisconnectedへ遷移させる。
// コンテキストキャンセルは接続障害とみなさない。
func (r *RedisRegistry) markFailure(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	r.logger.Error("session registry operation failed",
		slog.String("error", err.Error()),
	)
	r.setState(StateDisconnected)
}

// setState は状態を遷移させ、変化があればコールバックを呼ぶ。
func (r *RedisRegistry) setState(to State) {
	r.mu.Lock()
	from := r.state
	r.state = to
	fn := r.onTransition
	r.mu.Unlock()

	if from != to && fn != nil {
		fn(from, to)
	}
}

// compile-time interface check
var _ Registry = (*RedisRegistry)(nil)
