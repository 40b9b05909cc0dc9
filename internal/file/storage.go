package file

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yashvanth/taskflow/internal/config"
)

// ObjectStorage はファイル実体の保存先インターフェース。
type ObjectStorage interface {
	// Put はオブジェクトを保存する。
	Put(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) error

	// Get はオブジェクトの読み取りストリームを返す。呼び出し元がCloseする。
	Get(ctx context.Context, objectName string) (io.ReadCloser, error)

	// Delete はオブジェクトを削除する。
	Delete(ctx context.Context, objectName string) error
}

// S3Storage はS3互換オブジェクトストレージ（MinIO等）の実装。
type S3Storage struct {
	client *s3.Client
	bucket string
}

var _ ObjectStorage = (*S3Storage)(nil)

// NewS3Storage はS3クライアントを初期化してS3Storageを生成する。
// MinIOとの互換のためパススタイルアドレッシングを使用する。
func NewS3Storage(ctx context.Context, cfg *config.Config) (*S3Storage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	return &S3Storage{
		client: client,
		bucket: cfg.S3Bucket,
	}, nil
}

// Put はオブジェクトを保存する。
func (s *S3Storage) Put(ctx context.Context, objectName string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectName),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", objectName, err)
	}
	return nil
}

// Get はオブジェクトの読み取りストリームを返す。
func (s *S3Storage) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", objectName, err)
	}
	return out.Body, nil
}

// Delete はオブジェクトを削除する。
func (s *S3Storage) Delete(ctx context.Context, objectName string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objectName, err)
	}
	return nil
}

// objectName はユーザーIDと時刻ベースの一意なオブジェクト名を生成する。
func objectName(userID, fileID string) string {
	d := time.Now()
	return fmt.Sprintf("users/%s/%d/%02d/%s", userID, d.Year(), int(d.Month()), fileID)
}
