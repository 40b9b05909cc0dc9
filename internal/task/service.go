// Package task はTask Service（タスク管理）のビジネスロジックを提供する。
package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/yashvanth/taskflow/internal/model"
	"github.com/yashvanth/taskflow/internal/repository"
)

// titleMaxLength はタスクタイトルの最大文字数。
const titleMaxLength = 200

// NotificationPublisher はタスク通知の発行インターフェース。
// notify.Publisherの部分集合として定義する。
type NotificationPublisher interface {
	PublishTaskNotification(ctx context.Context, n model.TaskNotification) error
}

// Indexer は検索インデックスの更新インターフェース。
// SearchRepositoryの部分集合として定義する。
type Indexer interface {
	UpsertTaskDocument(ctx context.Context, task *model.Task) error
	DeleteTaskDocument(ctx context.Context, taskID string) error
}

// Service はタスク管理のビジネスロジックを提供する。
// 通知発行とインデックス更新はベストエフォートで行い、
// 失敗してもタスク操作自体は成功として扱う。
type Service struct {
	taskRepo  repository.TaskRepository
	indexer   Indexer
	publisher NotificationPublisher
	sanitizer *bluemonday.Policy
	logger    *slog.Logger
}

// NewService はServiceを生成する。indexerとpublisherはnilを許容する。
func NewService(
	taskRepo repository.TaskRepository,
	indexer Indexer,
	publisher NotificationPublisher,
	logger *slog.Logger,
) *Service {
	return &Service{
		taskRepo:  taskRepo,
		indexer:   indexer,
		publisher: publisher,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger,
	}
}

// Create はタスクを作成する。
// タイトルと説明はHTMLサニタイズを通してから保存する。
func (s *Service) Create(ctx context.Context, userID, title, description string) (*model.Task, error) {
	if title == "" {
		return nil, model.NewMissingFieldError("title")
	}

	title = s.sanitizer.Sanitize(title)
	description = s.sanitizer.Sanitize(description)

	if len([]rune(title)) > titleMaxLength {
		title = string([]rune(title)[:titleMaxLength])
	}

	now := time.Now()
	t := &model.Task{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		UserID:      userID,
		Status:      model.TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.taskRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.indexTask(ctx, t)
	s.publishNotification(ctx, t)

	return t, nil
}

// Get は指定IDのタスクを取得する。
// 所有者でも管理者でもない場合はFORBIDDENを返す。
func (s *Service) Get(ctx context.Context, claims *model.Claims, taskID string) (*model.Task, error) {
	t, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if t == nil {
		return nil, model.NewNotFoundError("タスク")
	}
	if t.UserID != claims.Subject && !claims.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	return t, nil
}

// List は呼び出し元のタスク一覧を返す。管理者は全タスクを取得できる。
func (s *Service) List(ctx context.Context, claims *model.Claims, all bool) ([]*model.Task, error) {
	if all && claims.IsAdmin() {
		tasks, err := s.taskRepo.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tasks: %w", err)
		}
		return tasks, nil
	}

	tasks, err := s.taskRepo.ListByUserID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, nil
}

// UpdateStatus は指定タスクのステータスを更新する。
func (s *Service) UpdateStatus(ctx context.Context, claims *model.Claims, taskID string, status model.TaskStatus) (*model.Task, error) {
	if !status.IsValid() {
		return nil, model.NewInvalidStatusError(string(status))
	}

	t, err := s.Get(ctx, claims, taskID)
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.UpdateStatus(ctx, taskID, status); err != nil {
		return nil, fmt.Errorf("failed to update task status: %w", err)
	}

	t.Status = status
	t.UpdatedAt = time.Now()

	s.indexTask(ctx, t)
	s.publishNotification(ctx, t)

	return t, nil
}

// Delete は指定タスクを削除する。
func (s *Service) Delete(ctx context.Context, claims *model.Claims, taskID string) error {
	if _, err := s.Get(ctx, claims, taskID); err != nil {
		return err
	}

	if err := s.taskRepo.DeleteByID(ctx, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if s.indexer != nil {
		if err := s.indexer.DeleteTaskDocument(ctx, taskID); err != nil {
			s.logger.Warn("failed to delete task from search index",
				slog.String("task_id", taskID),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// indexTask は検索インデックスをベストエフォートで更新する。
func (s *Service) indexTask(ctx context.Context, t *model.Task) {
	if s.indexer == nil {
		return
	}
	if err := s.indexer.UpsertTaskDocument(ctx, t); err != nil {
		s.logger.Warn("failed to index task",
			slog.String("task_id", t.ID),
			slog.String("error", err.Error()),
		)
	}
}

// publishNotification はタスク通知をベストエフォートで発行する。
func (s *Service) publishNotification(ctx context.Context, t *model.Task) {
	if s.publisher == nil {
		return
	}
	n := model.TaskNotification{
		TaskID: t.ID,
		UserID: t.UserID,
		Title:  t.Title,
		Status: t.Status,
	}
	if err := s.publisher.PublishTaskNotification(ctx, n); err != nil {
		s.logger.Warn("failed to publish task notification",
			slog.String("task_id", t.ID),
			slog.String("error", err.Error()),
		)
	}
}
