package models

import "time"

type Category struct {
	ID           uint   `gorm:"primaryKey"`
	TenantID     uint   `gorm:"index;not null"`
	BranchID     *uint  `gorm:"index"` // nil: shared by every branch of the tenant
	Name         string `gorm:"size:100;not null"`
	DisplayOrder int    `gorm:"not null"`
	IsActive     bool   `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
