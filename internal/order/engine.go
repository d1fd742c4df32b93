// Package order runs the order lifecycle: creation from catalog snapshots,
// payment accrual and the status state machine.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restoran-pos/internal/apperr"
	"restoran-pos/internal/audit"
	"restoran-pos/internal/catalog"
	"restoran-pos/internal/events"
	"restoran-pos/internal/ident"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

// ProductResolver supplies the price snapshot copied onto order lines.
type ProductResolver interface {
	ResolveProduct(ctx context.Context, productID uint) (catalog.Snapshot, error)
}

// TerminalGate is the part of the terminal tracker the engine needs.
type TerminalGate interface {
	RequireActive(ctx context.Context, terminalID uint) (models.Terminal, error)
	RecordSale(ctx context.Context, terminalID uint, userID *uint, orderNumber string)
}

type Options struct {
	Now func() time.Time
}

type Engine struct {
	db        *gorm.DB
	repo      *Repository
	products  ProductResolver
	terminals TerminalGate
	events    events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewEngine(db *gorm.DB, products ProductResolver, terminals TerminalGate, pub events.Publisher, log *zap.Logger, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Engine{
		db:        db,
		repo:      NewRepository(db),
		products:  products,
		terminals: terminals,
		events:    pub,
		log:       log,
		now:       opts.Now,
	}
}

type ItemInput struct {
	ProductID uint
	Quantity  int
	Notes     string
}

type PaymentInput struct {
	Method    models.PaymentMethod
	Amount    decimal.Decimal
	Reference string
	Notes     string
}

func (in PaymentInput) validate() error {
	if !in.Method.Valid() {
		return apperr.Validation("invalid_payment_method", "unknown payment method "+string(in.Method))
	}
	if !in.Amount.IsPositive() {
		return apperr.Validation("invalid_amount", "payment amount must be positive")
	}
	return nil
}

func (in PaymentInput) model() models.Payment {
	return models.Payment{
		Method:    in.Method,
		Amount:    in.Amount.Round(2),
		Reference: in.Reference,
		Notes:     in.Notes,
	}
}

type CreateInput struct {
	BranchID      uint
	TerminalID    *uint
	CustomerName  string
	CustomerPhone string
	Notes         string
	Tax           decimal.Decimal
	Discount      decimal.Decimal
	Items         []ItemInput
	Payments      []PaymentInput
}

// Create builds a pending order from catalog snapshots, appends the initial
// payments and derives its settlement, all in one transaction.
func (e *Engine) Create(ctx context.Context, p scope.Principal, in CreateInput) (models.Order, error) {
	if len(in.Items) == 0 {
		return models.Order{}, apperr.Validation("no_items", "an order needs at least one item")
	}
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return models.Order{}, apperr.Validation("invalid_quantity",
				fmt.Sprintf("quantity for product %d must be at least 1", it.ProductID))
		}
	}
	if in.Tax.IsNegative() || in.Discount.IsNegative() {
		return models.Order{}, apperr.Validation("invalid_adjustment", "tax and discount cannot be negative")
	}
	for _, pay := range in.Payments {
		if err := pay.validate(); err != nil {
			return models.Order{}, err
		}
	}

	branch, err := e.repo.FindBranch(ctx, in.BranchID)
	if err != nil {
		return models.Order{}, err
	}
	cashierID := p.ID
	o := models.Order{
		TenantID:      branch.TenantID,
		BranchID:      branch.ID,
		TerminalID:    in.TerminalID,
		CashierID:     &cashierID,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		Notes:         in.Notes,
		Tax:           in.Tax.Round(2),
		Discount:      in.Discount.Round(2),
		Status:        models.OrderPending,
		PaymentStatus: models.PaymentPending,
	}
	r := scope.OrderResource(o)
	if err := scope.Resolve(p, scope.ActionCreate, scope.ClassOrder, &r).Err(); err != nil {
		return models.Order{}, err
	}

	if in.TerminalID != nil {
		t, err := e.terminals.RequireActive(ctx, *in.TerminalID)
		if err != nil {
			return models.Order{}, err
		}
		if t.BranchID == nil || *t.BranchID != branch.ID {
			return models.Order{}, apperr.Validation("terminal_branch_mismatch", "terminal does not belong to the branch")
		}
		if p.Role == models.RoleCashier && t.AssignedToID != nil && !p.HasTerminal(t.ID) {
			return models.Order{}, apperr.PermissionDenied("terminal is assigned to another cashier")
		}
	}

	for _, it := range in.Items {
		snap, err := e.products.ResolveProduct(ctx, it.ProductID)
		if err != nil {
			return models.Order{}, err
		}
		if snap.TenantID != branch.TenantID {
			return models.Order{}, apperr.NotFound("product")
		}
		if !snap.IsActive {
			return models.Order{}, apperr.Validation("product_inactive", snap.Name+" is not available")
		}
		price := snap.Price.Round(2)
		if !price.IsPositive() {
			return models.Order{}, apperr.Validation("invalid_price", snap.Name+" has no sellable price")
		}
		o.Items = append(o.Items, models.OrderItem{
			ProductID:   snap.ProductID,
			ProductName: snap.Name,
			ProductSKU:  snap.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   price,
			Notes:       it.Notes,
		})
	}
	CalculateTotal(&o)
	if o.Total.IsNegative() {
		return models.Order{}, apperr.Validation("negative_total", "discount exceeds subtotal plus tax")
	}

	now := e.now()
	o.CreatedAt = now
	for i := range o.Items {
		o.Items[i].CreatedAt = now
	}
	for _, pay := range in.Payments {
		m := pay.model()
		m.CreatedAt = now
		o.Payments = append(o.Payments, m)
	}
	s := Derive(SumPayments(o.Payments), o.Total, settlementOf(o), now)
	o.Status, o.PaymentStatus, o.CompletedAt = s.Status, s.PaymentStatus, s.CompletedAt
	o.OrderNumber = ident.NewOrderNumber(now)

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&o).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, e.auditOpts(p, o, models.AuditActionCreate, "order created", nil, summaryOf(o)))
	})
	if err != nil {
		return models.Order{}, apperr.Internal("create order", err)
	}

	e.log.Info("order created",
		zap.String("order_number", o.OrderNumber),
		zap.Uint("branch_id", o.BranchID),
		zap.String("total", o.Total.StringFixed(2)),
		zap.String("payment_status", string(o.PaymentStatus)),
	)
	if o.TerminalID != nil {
		e.terminals.RecordSale(ctx, *o.TerminalID, o.CashierID, o.OrderNumber)
	}
	e.publish(ctx, events.OrderCreated, o, nil)
	if o.Status == models.OrderCompleted {
		e.publish(ctx, events.OrderCompleted, o, nil)
	}
	return o, nil
}

// AddPayment appends a payment and re-derives the settlement while holding
// the order row lock.
func (e *Engine) AddPayment(ctx context.Context, p scope.Principal, orderID uint, in PaymentInput) (models.Order, error) {
	if err := in.validate(); err != nil {
		return models.Order{}, err
	}
	if _, err := e.authorize(ctx, p, scope.ActionUpdate, orderID); err != nil {
		return models.Order{}, err
	}

	pay := in.model()
	pay.CreatedAt = e.now()
	var before, after models.Order
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		before, err = e.repo.lock(tx, orderID)
		if err != nil {
			return err
		}
		if before.Status == models.OrderCancelled || before.Status == models.OrderRefunded {
			return apperr.InvalidTransition("cannot add a payment to a " + string(before.Status) + " order")
		}
		pay.OrderID = orderID
		if err := tx.Create(&pay).Error; err != nil {
			return err
		}
		payments, err := e.repo.payments(tx, orderID)
		if err != nil {
			return err
		}
		s := Derive(SumPayments(payments), before.Total, settlementOf(before), e.now())
		if err := e.repo.saveSettlement(tx, orderID, s); err != nil {
			return err
		}
		after = before
		after.Status, after.PaymentStatus, after.CompletedAt = s.Status, s.PaymentStatus, s.CompletedAt
		return audit.WriteLog(tx, e.auditOpts(p, after, models.AuditActionPayment,
			fmt.Sprintf("payment %s %s", pay.Method, pay.Amount.StringFixed(2)),
			summaryOf(before), summaryOf(after)))
	})
	if err != nil {
		return models.Order{}, wrapTx(err, "add payment")
	}

	o, err := e.repo.FindByID(ctx, orderID)
	if err != nil {
		return o, err
	}
	e.log.Info("payment added",
		zap.String("order_number", o.OrderNumber),
		zap.String("method", string(pay.Method)),
		zap.String("amount", pay.Amount.StringFixed(2)),
		zap.String("payment_status", string(o.PaymentStatus)),
	)
	e.publish(ctx, events.PaymentAdded, o, &pay)
	if before.Status != models.OrderCompleted && o.Status == models.OrderCompleted {
		e.publish(ctx, events.OrderCompleted, o, nil)
	}
	return o, nil
}

// Complete marks the order completed whatever its payment status. Completing
// an order that is not fully paid is allowed for comped orders and is logged.
func (e *Engine) Complete(ctx context.Context, p scope.Principal, orderID uint) (models.Order, error) {
	return e.transition(ctx, p, orderID, events.OrderCompleted, func(o *models.Order) error {
		switch o.Status {
		case models.OrderCompleted:
			return apperr.InvalidTransition("order already completed")
		case models.OrderCancelled, models.OrderRefunded:
			return apperr.InvalidTransition("cannot complete a " + string(o.Status) + " order")
		}
		if o.PaymentStatus != models.PaymentPaid {
			e.log.Warn("order completed without full payment",
				zap.String("order_number", o.OrderNumber),
				zap.String("payment_status", string(o.PaymentStatus)),
			)
		}
		now := e.now()
		o.Status = models.OrderCompleted
		o.CompletedAt = &now
		return nil
	})
}

func (e *Engine) Cancel(ctx context.Context, p scope.Principal, orderID uint) (models.Order, error) {
	return e.transition(ctx, p, orderID, events.OrderCancelled, func(o *models.Order) error {
		switch o.Status {
		case models.OrderCompleted:
			return apperr.InvalidTransition("cannot cancel a completed order")
		case models.OrderCancelled, models.OrderRefunded:
			return apperr.InvalidTransition("order already " + string(o.Status))
		}
		o.Status = models.OrderCancelled
		return nil
	})
}

func (e *Engine) Refund(ctx context.Context, p scope.Principal, orderID uint) (models.Order, error) {
	return e.transition(ctx, p, orderID, events.OrderRefunded, func(o *models.Order) error {
		if o.PaymentStatus != models.PaymentPaid {
			return apperr.InvalidTransition("only paid orders can be refunded")
		}
		o.Status = models.OrderRefunded
		o.PaymentStatus = models.PaymentRefunded
		return nil
	})
}

// MarkProcessing hands a pending order to the kitchen.
func (e *Engine) MarkProcessing(ctx context.Context, p scope.Principal, orderID uint) (models.Order, error) {
	return e.transition(ctx, p, orderID, "", func(o *models.Order) error {
		if o.Status != models.OrderPending {
			return apperr.InvalidTransition("only pending orders can move to processing")
		}
		o.Status = models.OrderProcessing
		return nil
	})
}

// transition applies fn to the locked order and persists the new settlement.
// eventType, when set, is published after commit.
func (e *Engine) transition(ctx context.Context, p scope.Principal, orderID uint, eventType string, fn func(o *models.Order) error) (models.Order, error) {
	if _, err := e.authorize(ctx, p, scope.ActionUpdate, orderID); err != nil {
		return models.Order{}, err
	}
	var from models.OrderStatus
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := e.repo.lock(tx, orderID)
		if err != nil {
			return err
		}
		before := summaryOf(o)
		from = o.Status
		if err := fn(&o); err != nil {
			return err
		}
		if err := e.repo.saveSettlement(tx, orderID, settlementOf(o)); err != nil {
			return err
		}
		return audit.WriteLog(tx, e.auditOpts(p, o, models.AuditActionTransition,
			fmt.Sprintf("order %s -> %s", from, o.Status), before, summaryOf(o)))
	})
	if err != nil {
		return models.Order{}, wrapTx(err, "order transition")
	}

	o, err := e.repo.FindByID(ctx, orderID)
	if err != nil {
		return o, err
	}
	e.log.Info("order transition",
		zap.String("order_number", o.OrderNumber),
		zap.String("from", string(from)),
		zap.String("to", string(o.Status)),
	)
	if eventType != "" {
		e.publish(ctx, eventType, o, nil)
	}
	return o, nil
}

func (e *Engine) Get(ctx context.Context, p scope.Principal, orderID uint) (models.Order, error) {
	return e.authorize(ctx, p, scope.ActionRead, orderID)
}

// List returns the visible orders matching q and the total match count.
func (e *Engine) List(ctx context.Context, p scope.Principal, q ListFilter) ([]models.Order, int64, error) {
	d := scope.Resolve(p, scope.ActionRead, scope.ClassOrder, nil)
	orders, total, err := e.repo.List(ctx, d.Filter, q)
	if err != nil {
		return nil, 0, apperr.Internal("list orders", err)
	}
	return orders, total, nil
}

// Today lists the visible orders created since midnight UTC.
func (e *Engine) Today(ctx context.Context, p scope.Principal) ([]models.Order, error) {
	from, to := dayBounds(e.now())
	orders, _, err := e.List(ctx, p, ListFilter{From: &from, To: &to})
	return orders, err
}

// authorize loads the order and runs the object-level check. Orders outside
// the principal's read scope are reported as not found.
func (e *Engine) authorize(ctx context.Context, p scope.Principal, action scope.Action, orderID uint) (models.Order, error) {
	o, err := e.repo.FindByID(ctx, orderID)
	if err != nil {
		return o, err
	}
	r := scope.OrderResource(o)
	if !scope.Resolve(p, scope.ActionRead, scope.ClassOrder, &r).Allow {
		return models.Order{}, apperr.NotFound("order")
	}
	if err := scope.Resolve(p, action, scope.ClassOrder, &r).Err(); err != nil {
		return models.Order{}, err
	}
	return o, nil
}

func (e *Engine) publish(ctx context.Context, eventType string, o models.Order, pay *models.Payment) {
	if err := e.events.Publish(ctx, events.NewOrderEvent(eventType, o, pay, e.now())); err != nil {
		e.log.Warn("order event not published",
			zap.String("event_type", eventType),
			zap.String("order_number", o.OrderNumber),
			zap.Error(err),
		)
	}
}

func (e *Engine) auditOpts(p scope.Principal, o models.Order, action models.AuditAction, desc string, before, after any) audit.LogOptions {
	uid := p.ID
	tid, bid := o.TenantID, o.BranchID
	return audit.LogOptions{
		TenantID:    &tid,
		BranchID:    &bid,
		UserID:      &uid,
		TerminalID:  o.TerminalID,
		EntityType:  "order",
		EntityID:    o.ID,
		Action:      action,
		Description: desc,
		Before:      before,
		After:       after,
	}
}

type orderSummary struct {
	OrderNumber   string               `json:"order_number"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Total         string               `json:"total"`
}

func summaryOf(o models.Order) orderSummary {
	return orderSummary{
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total.StringFixed(2),
	}
}

// wrapTx keeps business errors raised inside a transaction intact.
func wrapTx(err error, op string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(op, err)
}

func dayBounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}
