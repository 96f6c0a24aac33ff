package models

import (
	"time"

	"gorm.io/datatypes"
)

// InterviewHistory 面试评估历史表, 只追加不修改
type InterviewHistory struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Date     string `gorm:"type:varchar(16);not null"` // "YYYY-MM-DD HH:MM" 本地时间
	Score    int    `gorm:"not null"`
	Feedback string `gorm:"type:text"`
	Summary  string `gorm:"type:text"`
}

func (InterviewHistory) TableName() string {
	return "interview_history"
}

// ResumeSubmission 简历提交记录表
type ResumeSubmission struct {
	SubmissionUUID      string         `gorm:"type:char(36);primaryKey"`
	OriginalFilename    string         `gorm:"type:varchar(255)"`
	OriginalFilePathOSS string         `gorm:"type:varchar(1024)"` // MinIO中的原始文件对象键
	ParsedTextPathOSS   string         `gorm:"type:varchar(1024)"` // MinIO中的解析文本对象键
	RawFileMD5          string         `gorm:"type:char(32);index:idx_rs_raw_file_md5"`
	ReliabilityJSON     datatypes.JSON `gorm:"type:json"` // 可读性评估结果 {score, reason}
	CreatedAt           time.Time      `gorm:"autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime"`
}

func (ResumeSubmission) TableName() string {
	return "resume_submissions"
}

// StringToJSON Helper function to convert string to datatypes.JSON
func StringToJSON(s string) datatypes.JSON {
	return datatypes.JSON(s)
}
