package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"restoran-pos/internal/apperr"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

type ListFilter struct {
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	BranchID      *uint
	TerminalID    *uint
	From          *time.Time // inclusive
	To            *time.Time // exclusive
	Limit         int
	Offset        int
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByID(ctx context.Context, id uint) (models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id asc") }).
		First(&o, id).Error
	if err != nil {
		return o, notFound(err, "find order")
	}
	return o, nil
}

// lock loads the order row with FOR UPDATE inside tx. Every change to an
// order's payments or status goes through it, so writers on one order
// serialize.
func (r *Repository) lock(tx *gorm.DB, id uint) (models.Order, error) {
	var o models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, id).Error; err != nil {
		return o, notFound(err, "lock order")
	}
	return o, nil
}

func (r *Repository) payments(tx *gorm.DB, orderID uint) ([]models.Payment, error) {
	var ps []models.Payment
	if err := tx.Where("order_id = ?", orderID).Order("id asc").Find(&ps).Error; err != nil {
		return nil, fmt.Errorf("load payments for order %d: %w", orderID, err)
	}
	return ps, nil
}

func (r *Repository) saveSettlement(tx *gorm.DB, id uint, s Settlement) error {
	return tx.Model(&models.Order{}).Where("id = ?", id).Updates(map[string]any{
		"status":         s.Status,
		"payment_status": s.PaymentStatus,
		"completed_at":   s.CompletedAt,
	}).Error
}

func (r *Repository) query(ctx context.Context, f scope.Filter, q ListFilter) *gorm.DB {
	dbq := f.Apply(r.db.WithContext(ctx).Model(&models.Order{}))
	if q.Status != "" {
		dbq = dbq.Where("status = ?", q.Status)
	}
	if q.PaymentStatus != "" {
		dbq = dbq.Where("payment_status = ?", q.PaymentStatus)
	}
	if q.BranchID != nil {
		dbq = dbq.Where("branch_id = ?", *q.BranchID)
	}
	if q.TerminalID != nil {
		dbq = dbq.Where("terminal_id = ?", *q.TerminalID)
	}
	if q.From != nil {
		dbq = dbq.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		dbq = dbq.Where("created_at < ?", *q.To)
	}
	return dbq
}

// List returns one page of orders and the total match count.
func (r *Repository) List(ctx context.Context, f scope.Filter, q ListFilter) ([]models.Order, int64, error) {
	var total int64
	if err := r.query(ctx, f, q).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	dbq := r.query(ctx, f, q).Preload("Items").Preload("Payments").Order("created_at desc, id desc")
	if q.Limit > 0 {
		dbq = dbq.Limit(q.Limit).Offset(q.Offset)
	}
	var out []models.Order
	if err := dbq.Find(&out).Error; err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return out, total, nil
}

type statRow struct {
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	Total         decimal.Decimal
}

func (r *Repository) statRows(ctx context.Context, f scope.Filter, q ListFilter) ([]statRow, error) {
	var rows []statRow
	if err := r.query(ctx, f, q).Select("status", "payment_status", "total").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load order totals: %w", err)
	}
	return rows, nil
}

type paymentRow struct {
	Method models.PaymentMethod
	Amount decimal.Decimal
}

// paymentRows returns the payments of orders visible through f, created
// within [from, to).
func (r *Repository) paymentRows(ctx context.Context, f scope.Filter, from, to *time.Time) ([]paymentRow, error) {
	dbq := r.db.WithContext(ctx).Table("payments").
		Joins("JOIN orders ON orders.id = payments.order_id").
		Select("payments.method", "payments.amount")
	dbq = f.Apply(dbq, "orders")
	if from != nil {
		dbq = dbq.Where("payments.created_at >= ?", *from)
	}
	if to != nil {
		dbq = dbq.Where("payments.created_at < ?", *to)
	}
	var rows []paymentRow
	if err := dbq.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	return rows, nil
}

func (r *Repository) FindBranch(ctx context.Context, id uint) (models.Branch, error) {
	var b models.Branch
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return b, notFoundAs(err, "branch", "find branch")
	}
	return b, nil
}

func notFound(err error, op string) error {
	return notFoundAs(err, "order", op)
}

func notFoundAs(err error, entity, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity)
	}
	return apperr.Internal(op, err)
}
