// Package model はドメインモデルを定義する。
package model

import "time"

// TaskStatus はタスクの進行状態を表す。
type TaskStatus string

const (
	// TaskStatusPending は未着手を示す。
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress は作業中を示す。
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusCompleted は完了を示す。
	TaskStatusCompleted TaskStatus = "completed"
)

// IsValid はステータスが定義済みの値かどうかを返す。
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Task はユーザーが管理するタスクを表す。
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	UserID      string     `json:"userId"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TaskNotification はタスク作成時にキューへ発行される通知メッセージ。
type TaskNotification struct {
	TaskID string     `json:"taskId"`
	UserID string     `json:"userId"`
	Title  string     `json:"title"`
	Status TaskStatus `json:"status"`
}
