package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yashvanth/taskflow/internal/model"
)

// jobsHashKey は全スケジュールジョブを保持するRedisハッシュのキー。
const jobsHashKey = "scheduled_tasks"

// ErrStoreUnavailable はジョブストアが到達不能であることを示す。
var ErrStoreUnavailable = errors.New("job store is unavailable")

// JobStore はスケジュールジョブの保存インターフェース。
// セッションと同じ揮発性ストアを使用し、ストア消失時はジョブも消える。
type JobStore interface {
	// Save はジョブをタスクIDをフィールドとして保存する。既存エントリは上書きされる。
	Save(ctx context.Context, job *model.ScheduledJob) error

	// Find は指定タスクIDのジョブを取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, taskID string) (*model.ScheduledJob, error)

	// List は全ジョブを返す。
	List(ctx context.Context) ([]*model.ScheduledJob, error)

	// Delete は指定タスクIDのジョブを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, taskID string) error
}

// RedisJobStore はRedisハッシュを使用したJobStore実装。
type RedisJobStore struct {
	client *redis.Client
}

var _ JobStore = (*RedisJobStore)(nil)

// NewRedisJobStore はRedisJobStoreを生成する。
func NewRedisJobStore(addr, password string) *RedisJobStore {
	return &RedisJobStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

// Save はジョブを保存する。
func (s *RedisJobStore) Save(ctx context.Context, job *model.ScheduledJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := s.client.HSet(ctx, jobsHashKey, job.TaskID, data).Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	return nil
}

// Find は指定タスクIDのジョブを取得する。
func (s *RedisJobStore) Find(ctx context.Context, taskID string) (*model.ScheduledJob, error) {
	data, err := s.client.HGet(ctx, jobsHashKey, taskID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}

	var job model.ScheduledJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", taskID, err)
	}
	return &job, nil
}

// List は全ジョブを返す。
func (s *RedisJobStore) List(ctx context.Context) ([]*model.ScheduledJob, error) {
	entries, err := s.client.HGetAll(ctx, jobsHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}

	jobs := make([]*model.ScheduledJob, 0, len(entries))
	for taskID, data := range entries {
		var job model.ScheduledJob
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			// 壊れたエントリは残りのジョブ処理を妨げない
			continue
		}
		if job.TaskID == "" {
			job.TaskID = taskID
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// Delete は指定タスクIDのジョブを削除する。
func (s *RedisJobStore) Delete(ctx context.Context, taskID string) error {
	if err := s.client.HDel(ctx, jobsHashKey, taskID).Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}
	return nil
}

// Close はRedis接続を閉じる。
func (s *RedisJobStore) Close() error {
	return s.client.Close()
}
