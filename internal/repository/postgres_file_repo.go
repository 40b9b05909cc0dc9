package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/yashvanth/taskflow/internal/model"
)

// PostgresFileRepo はPostgreSQLを使用したファイルメタデータリポジトリ。
type PostgresFileRepo struct {
	db *sql.DB
}

// NewPostgresFileRepo はPostgresFileRepoを生成する。
func NewPostgresFileRepo(db *sql.DB) *PostgresFileRepo {
	return &PostgresFileRepo{db: db}
}

// Create はファイルメタデータを作成する。
func (r *PostgresFileRepo) Create(ctx context.Context, file *model.StoredFile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO files (id, original_name, object_name, user_id, size, mime_type, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		file.ID, file.OriginalName, file.ObjectName, file.UserID, file.Size, file.MimeType, file.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert file metadata: %w", err)
	}
	return nil
}

// FindByObjectName はオブジェクト名でメタデータを検索する。見つからない場合はnilを返す。
func (r *PostgresFileRepo) FindByObjectName(ctx context.Context, objectName string) (*model.StoredFile, error) {
	file := &model.StoredFile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, original_name, object_name, user_id, size, mime_type, uploaded_at
		 FROM files WHERE object_name = $1`,
		objectName,
	).Scan(&file.ID, &file.OriginalName, &file.ObjectName, &file.UserID, &file.Size, &file.MimeType, &file.UploadedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find file by object name: %w", err)
	}

	return file, nil
}

// FindByID は指定IDのメタデータを取得する。見つからない場合はnilを返す。
func (r *PostgresFileRepo) FindByID(ctx context.Context, id string) (*model.StoredFile, error) {
	file := &model.StoredFile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, original_name, object_name, user_id, size, mime_type, uploaded_at
		 FROM files WHERE id = $1`,
		id,
	).Scan(&file.ID, &file.OriginalName, &file.ObjectName, &file.UserID, &file.Size, &file.MimeType, &file.UploadedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find file by ID: %w", err)
	}

	return file, nil
}

// ListByUserID は指定ユーザーのファイル一覧をアップロード日時降順で返す。
func (r *PostgresFileRepo) ListByUserID(ctx context.Context, userID string) ([]*model.StoredFile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, original_name, object_name, user_id, size, mime_type, uploaded_at
		 FROM files WHERE user_id = $1 ORDER BY uploaded_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list files by user: %w", err)
	}
	defer rows.Close()

	var files []*model.StoredFile
	for rows.Next() {
		file := &model.StoredFile{}
		if err := rows.Scan(&file.ID, &file.OriginalName, &file.ObjectName, &file.UserID, &file.Size, &file.MimeType, &file.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate file rows: %w", err)
	}

	return files, nil
}

// DeleteByID は指定IDのメタデータを削除する。
func (r *PostgresFileRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM files WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete file metadata: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("file not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ FileRepository = (*PostgresFileRepo)(nil)
