package database

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 生成状态。
const (
	StatusSaved      = "saved"
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Flier 表示一次保存的传单文档及其 PDF 生成状态。
type Flier struct {
	gorm.Model
	SessionID    string         `gorm:"index;size:64"`
	ClubName     string         `gorm:"size:255"`
	MeetingDate  string         `gorm:"size:32"`
	Filename     string         `gorm:"size:255"`
	Content      datatypes.JSON `gorm:"type:jsonb"` // 与下载的 JSON 文件一致
	Photos       datatypes.JSON `gorm:"type:jsonb"` // 照片名到对象键的映射
	PdfKey       string         `gorm:"size:512"`
	ThumbnailKey string         `gorm:"size:512"`
	Status       string         `gorm:"size:32"`
}

// AutoMigrate 创建或更新传单表结构。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Flier{})
}
