package sqlstore

import (
	"time"

	"gorm.io/datatypes"
)

type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Username     string `gorm:"not null;uniqueIndex"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

type ConfigurationItemModel struct {
	ID              string `gorm:"primaryKey"`
	Name            string `gorm:"not null;index"`
	Type            string `gorm:"not null;index"`
	Status          string `gorm:"not null;default:'Active'"`
	Location        string
	Hostname        string
	IPAddress       string `gorm:"column:ip_address"`
	Environment     string
	BusinessService string `gorm:"column:business_service"`
	Owner           string
	OperatingSystem string `gorm:"column:operating_system"`
	Metadata        datatypes.JSON
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ConfigurationItemModel) TableName() string { return "configuration_items" }

type TicketModel struct {
	ID          string `gorm:"primaryKey"`
	Title       string `gorm:"not null"`
	Description string
	Status      string  `gorm:"not null;index"`
	Priority    string  `gorm:"not null;index"`
	CIID        *string `gorm:"column:ci_id;index"`
	Assignee    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (TicketModel) TableName() string { return "tickets" }

type SLAMetricModel struct {
	ID          string  `gorm:"primaryKey"`
	CIID        *string `gorm:"column:ci_id;index"`
	ServiceName string  `gorm:"column:service_name"`
	MetricName  string  `gorm:"column:metric_name;not null"`
	TargetValue float64 `gorm:"column:target_value"`
	ActualValue float64 `gorm:"column:actual_value"`
	Breached    bool    `gorm:"not null;default:false"`
	MeasuredAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (SLAMetricModel) TableName() string { return "sla_metrics" }

type CIRelationshipModel struct {
	ID               string `gorm:"primaryKey"`
	SourceID         string `gorm:"column:source_id;not null;index"`
	TargetID         string `gorm:"column:target_id;not null;index"`
	RelationshipType string `gorm:"column:relationship_type;not null"`
	CreatedAt        time.Time
}

func (CIRelationshipModel) TableName() string { return "ci_relationships" }

type AuditLogModel struct {
	ID         string `gorm:"primaryKey"`
	Action     string `gorm:"not null;index"`
	TargetType string `gorm:"column:target_type;not null;index"`
	TargetID   string `gorm:"column:target_id"`
	Metadata   string
	CreatedAt  time.Time
}

func (AuditLogModel) TableName() string { return "audit_logs" }
