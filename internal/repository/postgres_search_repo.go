package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/yashvanth/taskflow/internal/model"
)

// PostgresSearchRepo はPostgreSQLの全文検索を使用した検索リポジトリ。
// search_documentsテーブルにタスク文書を保持し、
// tsvector（タイトルを重みAで優先）のGINインデックスで検索する。
type PostgresSearchRepo struct {
	db *sql.DB
}

// NewPostgresSearchRepo はPostgresSearchRepoを生成する。
func NewPostgresSearchRepo(db *sql.DB) *PostgresSearchRepo {
	return &PostgresSearchRepo{db: db}
}

// UpsertTaskDocument はタスク文書をインデックスへ冪等に登録する。
func (r *PostgresSearchRepo) UpsertTaskDocument(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO search_documents (task_id, user_id, title, body, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (task_id) DO UPDATE
		 SET title = EXCLUDED.title,
		     body = EXCLUDED.body,
		     status = EXCLUDED.status`,
		task.ID, task.UserID, task.Title, task.Description, task.Status, task.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task document: %w", err)
	}
	return nil
}

// DeleteTaskDocument はタスク文書をインデックスから削除する。
// 存在しない文書の削除はエラーにしない（冪等）。
func (r *PostgresSearchRepo) DeleteTaskDocument(ctx context.Context, taskID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM search_documents WHERE task_id = $1`,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task document: %w", err)
	}
	return nil
}

// SearchTasks は全文検索と条件フィルタでタスク文書を検索する。
// 検索語が空の場合は全件マッチとし、フィルタのみ適用する。
// ランク（タイトル一致優先）降順、同ランクは作成日時降順で返す。
func (r *PostgresSearchRepo) SearchTasks(ctx context.Context, q TaskSearchQuery) ([]*model.Task, error) {
	if q.Limit <= 0 {
		q.Limit = 10
	}

	var (
		conds []string
		args  []interface{}
		order = "created_at DESC"
	)

	next := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q.Query != "" {
		p := next(q.Query)
		conds = append(conds, fmt.Sprintf("tsv @@ plainto_tsquery('simple', %s)", p))
		order = fmt.Sprintf("ts_rank(tsv, plainto_tsquery('simple', %s)) DESC, created_at DESC", p)
	}
	if q.Status != "" {
		conds = append(conds, "status = "+next(string(q.Status)))
	}
	if q.UserID != "" {
		conds = append(conds, "user_id = "+next(q.UserID))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	query := fmt.Sprintf(
		`SELECT task_id, user_id, title, body, status, created_at
		 FROM search_documents %s ORDER BY %s LIMIT %s OFFSET %s`,
		where, order, next(q.Limit), next(q.Offset),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*model.Task
	for rows.Next() {
		task := &model.Task{}
		if err := rows.Scan(&task.ID, &task.UserID, &task.Title, &task.Description, &task.Status, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}

	return tasks, nil
}

// SearchUsers はメールアドレスの部分一致でユーザーを検索する。
func (r *PostgresSearchRepo) SearchUsers(ctx context.Context, query string, limit int) ([]*model.User, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, password_hash, role, created_at
		 FROM users WHERE email ILIKE '%' || $1 || '%'
		 ORDER BY created_at ASC LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		if err := rows.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}

	return users, nil
}

// compile-time interface check
var _ SearchRepository = (*PostgresSearchRepo)(nil)
