package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product: catalog entry; orders snapshot name/sku/price at creation time
type Product struct {
	ID         uint            `gorm:"primaryKey"`
	TenantID   uint            `gorm:"index;not null"`
	CategoryID *uint           `gorm:"index"`
	Category   *Category
	Name       string          `gorm:"size:255;not null"`
	SKU        string          `gorm:"size:100;not null;uniqueIndex"`
	Price      decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	IsActive   bool            `gorm:"not null;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
