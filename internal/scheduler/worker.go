package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/yashvanth/taskflow/internal/model"
	"github.com/yashvanth/taskflow/internal/repository"
)

// Notifier はジョブ実行による通知発行インターフェース。
type Notifier interface {
	PublishTaskNotification(ctx context.Context, n model.TaskNotification) error
}

// Worker は分間隔のハートビートで登録ジョブを評価し、
// cron式に一致したジョブのアクションを実行する。
type Worker struct {
	store    JobStore
	taskRepo repository.TaskRepository
	notifier Notifier
	interval time.Duration
	logger   *slog.Logger
}

// NewWorker はWorkerを生成する。notifierはnilを許容する。
func NewWorker(
	store JobStore,
	taskRepo repository.TaskRepository,
	notifier Notifier,
	interval time.Duration,
	logger *slog.Logger,
) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{
		store:    store,
		taskRepo: taskRepo,
		notifier: notifier,
		interval: interval,
		logger:   logger,
	}
}

// Run はコンテキストがキャンセルされるまでハートビートループを実行する。
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("scheduler worker started",
		slog.Duration("interval", w.interval),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("scheduler worker stopped")
			return
		case now := <-ticker.C:
			w.tick(ctx, now)
		}
	}
}

// tick は1回のハートビートで全ジョブを評価する。
// ストア到達不能時はこの回をスキップし、次のハートビートで再試行する。
func (w *Worker) tick(ctx context.Context, now time.Time) {
	jobs, err := w.store.List(ctx)
	if err != nil {
		w.logger.Warn("job store unreachable, skipping heartbeat",
			slog.String("error", err.Error()),
		)
		return
	}

	for _, job := range jobs {
		schedule, err := ParseCron(job.CronExpression)
		if err != nil {
			w.logger.Warn("skipping job with invalid cron expression",
				slog.String("task_id", job.TaskID),
				slog.String("cron", job.CronExpression),
			)
			continue
		}

		if !schedule.Matches(now) {
			continue
		}

		if err := w.execute(ctx, job); err != nil {
			w.logger.Error("job execution failed",
				slog.String("task_id", job.TaskID),
				slog.String("action", job.Action),
				slog.String("error", err.Error()),
			)
			continue
		}

		w.logger.Info("job executed",
			slog.String("task_id", job.TaskID),
			slog.String("action", job.Action),
		)
	}
}

// execute は1ジョブのアクションを実行する。
func (w *Worker) execute(ctx context.Context, job *model.ScheduledJob) error {
	task, err := w.taskRepo.FindByID(ctx, job.TaskID)
	if err != nil {
		return err
	}
	if task == nil {
		// タスクが削除済みのジョブはストアから取り除く
		w.logger.Info("removing job for deleted task", slog.String("task_id", job.TaskID))
		return w.store.Delete(ctx, job.TaskID)
	}

	switch job.Action {
	case JobActionComplete:
		if task.Status == model.TaskStatusCompleted {
			return nil
		}
		return w.taskRepo.UpdateStatus(ctx, task.ID, model.TaskStatusCompleted)

	case JobActionNotify:
		if w.notifier == nil {
			return nil
		}
		return w.notifier.PublishTaskNotification(ctx, model.TaskNotification{
			TaskID: task.ID,
			UserID: task.UserID,
			Title:  task.Title,
			Status: task.Status,
		})

	default:
		w.logger.Warn("unknown job action", slog.String("action", job.Action))
		return nil
	}
}
