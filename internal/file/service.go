// Package file はFile Service（ファイルアップロード・配信）を提供する。
// ファイル実体はS3互換ストレージ、メタデータはリレーショナルDBに保存する。
package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/yashvanth/taskflow/internal/model"
	"github.com/yashvanth/taskflow/internal/repository"
)

// maxUploadSize はアップロードサイズの上限（32MB）。
const maxUploadSize = 32 << 20

// Service はファイル管理のビジネスロジックを提供する。
type Service struct {
	fileRepo repository.FileRepository
	storage  ObjectStorage
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(fileRepo repository.FileRepository, storage ObjectStorage, logger *slog.Logger) *Service {
	return &Service{
		fileRepo: fileRepo,
		storage:  storage,
		logger:   logger,
	}
}

// MaxUploadSize はアップロードサイズの上限バイト数を返す。
func (s *Service) MaxUploadSize() int64 {
	return maxUploadSize
}

// Upload はファイルを保存し、メタデータを登録する。
// オブジェクト名はサーバー側で生成し、クライアント指定のファイル名は
// メタデータとしてのみ保持する。
func (s *Service) Upload(ctx context.Context, claims *model.Claims, originalName string, body io.Reader, size int64, mimeType string) (*model.StoredFile, error) {
	if originalName == "" {
		return nil, model.NewMissingFieldError("file")
	}
	if size > maxUploadSize {
		return nil, &model.APIError{
			Code:     "FILE_TOO_LARGE",
			Message:  fmt.Sprintf("ファイルサイズが上限（%dMB）を超えています。", maxUploadSize>>20),
			Category: "validation",
			Action:   "より小さいファイルをアップロードしてください。",
		}
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	fileID := uuid.New().String()
	obj := objectName(claims.Subject, fileID)

	if err := s.storage.Put(ctx, obj, body, size, mimeType); err != nil {
		return nil, model.NewDependencyUnavailableError("ファイルストレージ")
	}

	stored := &model.StoredFile{
		ID:           fileID,
		OriginalName: originalName,
		ObjectName:   obj,
		UserID:       claims.Subject,
		Size:         size,
		MimeType:     mimeType,
		UploadedAt:   time.Now(),
	}

	if err := s.fileRepo.Create(ctx, stored); err != nil {
		// メタデータ登録に失敗した孤児オブジェクトはベストエフォートで削除する
		if delErr := s.storage.Delete(ctx, obj); delErr != nil {
			s.logger.Warn("failed to clean up orphaned object",
				slog.String("object_name", obj),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("failed to create file metadata: %w", err)
	}

	return stored, nil
}

// Download は指定ファイルのメタデータと読み取りストリームを返す。
// 呼び出し元がストリームをCloseする。
func (s *Service) Download(ctx context.Context, claims *model.Claims, fileID string) (*model.StoredFile, io.ReadCloser, error) {
	stored, err := s.get(ctx, claims, fileID)
	if err != nil {
		return nil, nil, err
	}

	body, err := s.storage.Get(ctx, stored.ObjectName)
	if err != nil {
		return nil, nil, model.NewDependencyUnavailableError("ファイルストレージ")
	}

	return stored, body, nil
}

// List は呼び出し元のファイル一覧を返す。
func (s *Service) List(ctx context.Context, claims *model.Claims) ([]*model.StoredFile, error) {
	files, err := s.fileRepo.ListByUserID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// Delete は指定ファイルの実体とメタデータを削除する。
func (s *Service) Delete(ctx context.Context, claims *model.Claims, fileID string) error {
	stored, err := s.get(ctx, claims, fileID)
	if err != nil {
		return err
	}

	if err := s.storage.Delete(ctx, stored.ObjectName); err != nil {
		return model.NewDependencyUnavailableError("ファイルストレージ")
	}

	if err := s.fileRepo.DeleteByID(ctx, stored.ID); err != nil {
		return fmt.Errorf("failed to delete file metadata: %w", err)
	}

	return nil
}

// get はメタデータを取得して所有権を確認する。
func (s *Service) get(ctx context.Context, claims *model.Claims, fileID string) (*model.StoredFile, error) {
	stored, err := s.fileRepo.FindByID(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to find file: %w", err)
	}
	if stored == nil {
		return nil, model.NewNotFoundError("ファイル")
	}
	if stored.UserID != claims.Subject && !claims.IsAdmin() {
		return nil, model.NewForbiddenError()
	}
	return stored, nil
}
