package models

import "time"

type SubscriptionPlan string

const (
	PlanBasic        SubscriptionPlan = "basic"        // 1 branch, 2 terminals
	PlanProfessional SubscriptionPlan = "professional" // 5 branches, 10 terminals
	PlanEnterprise   SubscriptionPlan = "enterprise"   // unlimited
)

// Unlimited marks a plan limit that is not enforced.
const Unlimited = -1

// Tenant: restaurant company owning one or more branches
type Tenant struct {
	ID               uint             `gorm:"primaryKey"`
	Name             string           `gorm:"size:255;not null;index"`
	Email            string           `gorm:"size:255;not null;uniqueIndex"`
	Phone            string           `gorm:"size:20"`
	Domain           string           `gorm:"size:255"` // public host for terminal URLs
	SubscriptionPlan SubscriptionPlan `gorm:"size:20;not null;index"`
	MaxBranches      int              `gorm:"not null"`
	MaxDevices       int              `gorm:"not null"`
	IsActive         bool             `gorm:"not null;index"`
	CreatedAt        time.Time        `gorm:"index"`
	UpdatedAt        time.Time

	Branches []Branch
}

// PlanLimits returns branch and terminal limits for a plan.
func PlanLimits(plan SubscriptionPlan) (branches, devices int) {
	switch plan {
	case PlanProfessional:
		return 5, 10
	case PlanEnterprise:
		return Unlimited, Unlimited
	default:
		return 1, 2
	}
}
