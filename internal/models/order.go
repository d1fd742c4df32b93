package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentMobile PaymentMethod = "mobile"
	PaymentOther  PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentMobile, PaymentOther:
		return true
	}
	return false
}

type Order struct {
	ID            uint            `gorm:"primaryKey"`
	OrderNumber   string          `gorm:"size:50;not null;uniqueIndex"`
	TenantID      uint            `gorm:"index;not null"` // denormalized from branch
	BranchID      uint            `gorm:"index;not null"`
	TerminalID    *uint           `gorm:"index"`
	Terminal      *Terminal       `gorm:"constraint:OnDelete:SET NULL"`
	CashierID     *uint           `gorm:"index"`
	Cashier       *User           `gorm:"constraint:OnDelete:SET NULL"`
	CustomerName  string          `gorm:"size:255"`
	CustomerPhone string          `gorm:"size:20"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Tax           decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Discount      decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Total         decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Status        OrderStatus     `gorm:"size:20;not null;index"`
	PaymentStatus PaymentStatus   `gorm:"size:20;not null;index"`
	Notes         string          `gorm:"type:text"`
	CreatedAt     time.Time       `gorm:"index"`
	UpdatedAt     time.Time
	CompletedAt   *time.Time

	Items    []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments []Payment   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem keeps the catalog snapshot taken when the order was created.
type OrderItem struct {
	ID          uint            `gorm:"primaryKey"`
	OrderID     uint            `gorm:"index;not null"`
	ProductID   uint            `gorm:"index;not null"`
	ProductName string          `gorm:"size:255;not null"`
	ProductSKU  string          `gorm:"size:100;not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Total       decimal.Decimal `gorm:"type:numeric(10,2);not null"` // UnitPrice * Quantity
	Notes       string          `gorm:"size:255"`
	CreatedAt   time.Time
}

// Payment is append-only.
type Payment struct {
	ID        uint            `gorm:"primaryKey"`
	OrderID   uint            `gorm:"index;not null"`
	Method    PaymentMethod   `gorm:"size:20;not null;index"`
	Amount    decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Reference string          `gorm:"size:255"`
	Notes     string          `gorm:"type:text"`
	CreatedAt time.Time       `gorm:"index"`
}
