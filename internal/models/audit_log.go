package models

import "time"

type AuditAction string

const (
	AuditActionCreate     AuditAction = "create"
	AuditActionUpdate     AuditAction = "update"
	AuditActionDelete     AuditAction = "delete"
	AuditActionTransition AuditAction = "transition"
	AuditActionPayment    AuditAction = "payment"
)

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Scope of the change, used to filter listings per principal
	TenantID *uint `gorm:"index" json:"tenant_id"`
	BranchID *uint `gorm:"index" json:"branch_id"`

	// Acting principal; TerminalID is set when a terminal token made the call
	UserID     *uint `json:"user_id"`
	TerminalID *uint `json:"terminal_id"`

	// Entity kind: "order", "terminal", "tenant", "branch", "product"
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	Description string      `gorm:"size:255" json:"description"`

	// Before/after snapshots (JSON)
	BeforeData string `gorm:"type:jsonb" json:"before_data"`
	AfterData  string `gorm:"type:jsonb" json:"after_data"`
}
