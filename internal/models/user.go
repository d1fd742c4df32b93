package models

import "time"

type UserRole string

const (
	RolePlatformOwner UserRole = "platform_owner"
	RoleTenantAdmin   UserRole = "tenant_admin"
	RoleBranchManager UserRole = "branch_manager"
	RoleCashier       UserRole = "cashier"
)

func (r UserRole) Valid() bool {
	switch r {
	case RolePlatformOwner, RoleTenantAdmin, RoleBranchManager, RoleCashier:
		return true
	}
	return false
}

// User is never deleted, only deactivated.
type User struct {
	ID           uint `gorm:"primaryKey"`
	TenantID     *uint `gorm:"index"` // nil for platform owner
	Tenant       *Tenant
	BranchID     *uint `gorm:"index"` // nil for tenant admin and platform owner
	Branch       *Branch
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null;index"`
	IsActive     bool     `gorm:"not null"`
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
