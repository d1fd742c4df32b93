package models

import "time"

// Branch: physical restaurant location under a tenant
type Branch struct {
	ID        uint    `gorm:"primaryKey"`
	TenantID  uint    `gorm:"index;not null"`
	Tenant    *Tenant `gorm:"constraint:OnDelete:CASCADE"`
	Name      string  `gorm:"size:255;not null"`
	Code      string  `gorm:"size:50;not null;uniqueIndex"`
	Address   string  `gorm:"size:255"`
	City      string  `gorm:"size:100;index"`
	Phone     string  `gorm:"size:50"`
	IsActive  bool    `gorm:"not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Users     []User
	Terminals []Terminal
}
