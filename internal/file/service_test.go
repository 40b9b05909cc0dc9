package file

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/yashvanth/taskflow/internal/model"
)

// mockFileRepo はFileRepositoryのモック実装。
type mockFileRepo struct {
	createFunc           func(ctx context.Context, file *model.StoredFile) error
	findByObjectNameFunc func(ctx context.Context, objectName string) (*model.StoredFile, error)
	findByIDFunc         func(ctx context.Context, id string) (*model.StoredFile, error)
	listByUserIDFunc     func(ctx context.Context, userID string) ([]*model.StoredFile, error)
	deleteByIDFunc       func(ctx context.Context, id string) error
}

func (m *mockFileRepo) Create(ctx context.Context, file *model.StoredFile) error {
	return m.createFunc(ctx, file)
}

func (m *mockFileRepo) FindByObjectName(ctx context.Context, objectName string) (*model.StoredFile, error) {
	return m.findByObjectNameFunc(ctx, objectName)
}

func (m *mockFileRepo) FindByID(ctx context.Context, id string) (*model.StoredFile, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockFileRepo) ListByUserID(ctx context.Context, userID string) ([]*model.StoredFile, error) {
	return m.listByUserIDFunc(ctx, userID)
}

func (m *mockFileRepo) DeleteByID(ctx context.Context, id string) error {
	return m.deleteByIDFunc(ctx, id)
}

// mockStorage はObjectStorageのモック実装。
type mockStorage struct {
	putFunc    func(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) error
	getFunc    func(ctx context.Context, objectName string) (io.ReadCloser, error)
	deleteFunc func(ctx context.Context, objectName string) error
}

func (m *mockStorage) Put(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) error {
	return m.putFunc(ctx, objectName, body, size, contentType)
}

func (m *mockStorage) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	return m.getFunc(ctx, objectName)
}

func (m *mockStorage) Delete(ctx context.Context, objectName string) error {
	return m.deleteFunc(ctx, objectName)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func userClaims(subject string) *model.Claims {
	return &model.Claims{Subject: subject, Role: model.RoleUser}
}

// TestUpload_Success はアップロードが実体保存とメタデータ登録の両方を行うことを検証する。
func TestUpload_Success(t *testing.T) {
	var putObject string
	storage := &mockStorage{
		putFunc: func(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) error {
			putObject = objectName
			return nil
		},
	}

	var created *model.StoredFile
	repo := &mockFileRepo{
		createFunc: func(ctx context.Context, file *model.StoredFile) error {
			created = file
			return nil
		},
	}

	svc := NewService(repo, storage, testLogger())

	stored, err := svc.Upload(context.Background(), userClaims("user-1"),
		"report.pdf", strings.NewReader("content"), 7, "application/pdf")
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if stored.OriginalName != "report.pdf" {
		t.Errorf("originalName = %q, want %q", stored.OriginalName, "report.pdf")
	}
	if stored.UserID != "user-1" {
		t.Errorf("userID = %q, want %q", stored.UserID, "user-1")
	}
	if putObject == "" || putObject != stored.ObjectName {
		t.Errorf("object put = %q, metadata = %q; should match", putObject, stored.ObjectName)
	}
	if !strings.HasPrefix(stored.ObjectName, "users/user-1/") {
		t.Errorf("objectName = %q, want users/user-1/ prefix", stored.ObjectName)
	}
	if created == nil {
		t.Fatal("metadata should be persisted")
	}
}

// TestUpload_TooLarge はサイズ上限超過が拒否されることを検証する。
func TestUpload_TooLarge(t *testing.T) {
	svc := NewService(&mockFileRepo{}, &mockStorage{}, testLogger())

	_, err := svc.Upload(context.Background(), userClaims("user-1"),
		"big.bin", strings.NewReader(""), maxUploadSize+1, "application/octet-stream")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "FILE_TOO_LARGE" {
		t.Errorf("expected FILE_TOO_LARGE, got %v", err)
	}
}

// TestUpload_StorageFailure はストレージ障害でDEPENDENCY_UNAVAILABLEが返ることを検証する。
func TestUpload_StorageFailure(t *testing.T) {
	storage := &mockStorage{
		putFunc: func(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) error {
			return errors.New("connection refused")
		},
	}
	svc := NewService(&mockFileRepo{}, storage, testLogger())

	_, err := svc.Upload(context.Background(), userClaims("user-1"),
		"f.txt", strings.NewReader("x"), 1, "text/plain")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeDependencyUnavailable {
		t.Errorf("expected DEPENDENCY_UNAVAILABLE, got %v", err)
	}
}

// TestUpload_MetadataFailure_CleansUpObject はメタデータ登録失敗時に
// 孤児オブジェクトが削除されることを検証する。
func TestUpload_MetadataFailure_CleansUpObject(t *testing.T) {
	deleted := ""
	storage := &mockStorage{
		putFunc: func(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) error {
			return nil
		},
		deleteFunc: func(ctx context.Context, objectName string) error {
			deleted = objectName
			return nil
		},
	}
	repo := &mockFileRepo{
		createFunc: func(ctx context.Context, file *model.StoredFile) error {
			return errors.New("db error")
		},
	}
	svc := NewService(repo, storage, testLogger())

	_, err := svc.Upload(context.Background(), userClaims("user-1"),
		"f.txt", strings.NewReader("x"), 1, "text/plain")
	if err == nil {
		t.Fatal("expected error")
	}
	if deleted == "" {
		t.Error("orphaned object should be deleted")
	}
}

// TestDownload_OwnershipEnforced は他人のファイルがダウンロードできないことを検証する。
func TestDownload_OwnershipEnforced(t *testing.T) {
	stored := &model.StoredFile{ID: "file-1", UserID: "user-1", ObjectName: "users/user-1/obj"}
	repo := &mockFileRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.StoredFile, error) {
			return stored, nil
		},
	}
	storage := &mockStorage{
		getFunc: func(ctx context.Context, objectName string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("data")), nil
		},
	}
	svc := NewService(repo, storage, testLogger())

	// 所有者は取得できる
	meta, body, err := svc.Download(context.Background(), userClaims("user-1"), "file-1")
	if err != nil {
		t.Fatalf("owner Download failed: %v", err)
	}
	defer body.Close()
	if meta.ID != "file-1" {
		t.Errorf("file ID = %q, want %q", meta.ID, "file-1")
	}

	// 他人は拒否される
	_, _, err = svc.Download(context.Background(), userClaims("user-2"), "file-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("expected FORBIDDEN, got %v", err)
	}
}

// TestDelete_RemovesObjectAndMetadata は削除が実体とメタデータの両方に及ぶことを検証する。
func TestDelete_RemovesObjectAndMetadata(t *testing.T) {
	stored := &model.StoredFile{ID: "file-1", UserID: "user-1", ObjectName: "users/user-1/obj"}

	objectDeleted := ""
	storage := &mockStorage{
		deleteFunc: func(ctx context.Context, objectName string) error {
			objectDeleted = objectName
			return nil
		},
	}

	metaDeleted := ""
	repo := &mockFileRepo{
		findByIDFunc: func(ctx context.Context, id string) (*model.StoredFile, error) {
			return stored, nil
		},
		deleteByIDFunc: func(ctx context.Context, id string) error {
			metaDeleted = id
			return nil
		},
	}

	svc := NewService(repo, storage, testLogger())

	if err := svc.Delete(context.Background(), userClaims("user-1"), "file-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if objectDeleted != "users/user-1/obj" {
		t.Errorf("object deleted = %q, want %q", objectDeleted, "users/user-1/obj")
	}
	if metaDeleted != "file-1" {
		t.Errorf("metadata deleted = %q, want %q", metaDeleted, "file-1")
	}
}
