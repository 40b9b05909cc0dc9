// Package scheduler はScheduler Service（cron式によるタスクの定期実行）を提供する。
// ジョブはセッションと同じ揮発性ストアに保存されるため、ストア障害中は
// 新規登録を受け付けず、既存ジョブの実行もスキップされる。
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yashvanth/taskflow/internal/model"
	"github.com/yashvanth/taskflow/internal/repository"
)

// JobActionComplete はタスクを完了状態へ遷移させるアクション。
const JobActionComplete = "complete"

// JobActionNotify はタスク通知を再送するアクション。
const JobActionNotify = "notify"

// validActions は許容されるジョブアクションの集合。
var validActions = map[string]bool{
	JobActionComplete: true,
	JobActionNotify:   true,
}

// Service はジョブ登録・照会のビジネスロジックを提供する。
type Service struct {
	store    JobStore
	taskRepo repository.TaskRepository
}

// NewService はServiceを生成する。
func NewService(store JobStore, taskRepo repository.TaskRepository) *Service {
	return &Service{
		store:    store,
		taskRepo: taskRepo,
	}
}

// Schedule はタスクに定期実行ジョブを登録する。
// cron式の検証に失敗した場合とタスクの所有権がない場合は拒否する。
func (s *Service) Schedule(ctx context.Context, claims *model.Claims, taskID, cronExpr, action string) (*model.ScheduledJob, error) {
	if taskID == "" {
		return nil, model.NewMissingFieldError("taskId")
	}
	if cronExpr == "" {
		return nil, model.NewMissingFieldError("cronExpression")
	}
	if action == "" {
		return nil, model.NewMissingFieldError("action")
	}
	if !validActions[action] {
		return nil, &model.APIError{
			Code:     "INVALID_ACTION",
			Message:  fmt.Sprintf("無効なアクションです: %s", action),
			Category: "validation",
			Action:   "アクションには complete または notify を指定してください。",
		}
	}

	if _, err := ParseCron(cronExpr); err != nil {
		return nil, &model.APIError{
			Code:     "INVALID_CRON_EXPRESSION",
			Message:  "cron式の形式が正しくありません。",
			Category: "validation",
			Action:   "「分 時 日 月 曜日」の5フィールド形式で指定してください。",
		}
	}

	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if task == nil {
		return nil, model.NewNotFoundError("タスク")
	}
	if task.UserID != claims.Subject && !claims.IsAdmin() {
		return nil, model.NewForbiddenError()
	}

	job := &model.ScheduledJob{
		TaskID:         taskID,
		CronExpression: cronExpr,
		Action:         action,
		CreatedAt:      time.Now(),
	}

	if err := s.store.Save(ctx, job); err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, model.NewDependencyUnavailableError("ジョブストア")
		}
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	return job, nil
}

// List は全ジョブを返す。
func (s *Service) List(ctx context.Context) ([]*model.ScheduledJob, error) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return nil, model.NewDependencyUnavailableError("ジョブストア")
		}
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Unschedule は指定タスクのジョブを削除する。
func (s *Service) Unschedule(ctx context.Context, claims *model.Claims, taskID string) error {
	job, err := s.store.Find(ctx, taskID)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return model.NewDependencyUnavailableError("ジョブストア")
		}
		return fmt.Errorf("failed to find job: %w", err)
	}
	if job == nil {
		return model.NewNotFoundError("ジョブ")
	}

	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to find task: %w", err)
	}
	if task != nil && task.UserID != claims.Subject && !claims.IsAdmin() {
		return model.NewForbiddenError()
	}

	if err := s.store.Delete(ctx, taskID); err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return model.NewDependencyUnavailableError("ジョブストア")
		}
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}
