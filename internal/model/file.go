package model

import "time"

// StoredFile はオブジェクトストレージに保存されたファイルのメタデータを表す。
// 実体はS3互換ストレージに置かれ、ここにはその参照のみを持つ。
type StoredFile struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	ObjectName   string    `json:"objectName"`
	UserID       string    `json:"userId"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	UploadedAt   time.Time `json:"uploadedAt"`
}
