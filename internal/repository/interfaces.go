// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/yashvanth/taskflow/internal/model"
)

// ErrDuplicateEmail は一意制約違反（メールアドレス重複）を示す。
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository はユーザーデータの永続化インターフェース。
// 行の作成・変更・削除はToken Authorityの管理パスからのみ行われる。
type UserRepository interface {
	// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// List は全ユーザーを作成日時昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// UpdateRole は指定ユーザーのロールを変更する。対象が存在しない場合はエラーを返す。
	UpdateRole(ctx context.Context, id string, role model.Role) error

	// DeleteByID は指定IDのユーザーを削除する。対象が存在しない場合はエラーを返す。
	DeleteByID(ctx context.Context, id string) error
}

// TaskRepository はタスクデータの永続化インターフェース。
type TaskRepository interface {
	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// FindByID は指定IDのタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Task, error)

	// ListByUserID は指定ユーザーのタスク一覧を作成日時降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Task, error)

	// ListAll は全タスクを作成日時降順で返す。管理者用。
	ListAll(ctx context.Context) ([]*model.Task, error)

	// UpdateStatus は指定タスクのステータスを更新する。
	UpdateStatus(ctx context.Context, id string, status model.TaskStatus) error

	// DeleteByID は指定IDのタスクを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// FileRepository はファイルメタデータの永続化インターフェース。
// ファイル実体はオブジェクトストレージが保持する。
type FileRepository interface {
	// Create はファイルメタデータを作成する。
	Create(ctx context.Context, file *model.StoredFile) error

	// FindByObjectName はオブジェクト名でメタデータを検索する。見つからない場合はnilを返す。
	FindByObjectName(ctx context.Context, objectName string) (*model.StoredFile, error)

	// FindByID は指定IDのメタデータを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.StoredFile, error)

	// ListByUserID は指定ユーザーのファイル一覧をアップロード日時降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.StoredFile, error)

	// DeleteByID は指定IDのメタデータを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// TaskSearchQuery はタスク全文検索の条件。
type TaskSearchQuery struct {
	Query  string           // 全文検索語。空の場合は全件マッチ
	Status model.TaskStatus // 空の場合はフィルタしない
	UserID string           // 空の場合はフィルタしない
	Limit  int
	Offset int
}

// SearchRepository は検索インデックスの永続化インターフェース。
type SearchRepository interface {
	// UpsertTaskDocument はタスク文書をインデックスへ冪等に登録する。
	UpsertTaskDocument(ctx context.Context, task *model.Task) error

	// DeleteTaskDocument はタスク文書をインデックスから削除する。
	DeleteTaskDocument(ctx context.Context, taskID string) error

	// SearchTasks は全文検索と条件フィルタでタスク文書を検索する。
	// タイトル一致を本文一致より優先し、新しい順に返す。
	SearchTasks(ctx context.Context, q TaskSearchQuery) ([]*model.Task, error)

	// SearchUsers はメールアドレスの部分一致でユーザーを検索する。
	SearchUsers(ctx context.Context, query string, limit int) ([]*model.User, error)
}
