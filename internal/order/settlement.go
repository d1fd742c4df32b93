package order

import (
	"time"

	"github.com/shopspring/decimal"

	"restoran-pos/internal/models"
)

// Settlement is the payment-derived part of an order's state.
type Settlement struct {
	Status        models.OrderStatus
	PaymentStatus models.PaymentStatus
	CompletedAt   *time.Time
}

// Derive computes the settlement of an order from the sum of its payments.
// The result depends only on paid, total and cur, so re-deriving from the
// same payment set yields the same settlement. CompletedAt is stamped only
// when the order moves into completed.
func Derive(paid, total decimal.Decimal, cur Settlement, now time.Time) Settlement {
	next := cur
	switch {
	case paid.GreaterThanOrEqual(total):
		next.PaymentStatus = models.PaymentPaid
		if cur.Status != models.OrderCompleted {
			next.Status = models.OrderCompleted
			t := now
			next.CompletedAt = &t
		}
	case paid.IsPositive():
		next.PaymentStatus = models.PaymentPartial
	default:
		next.PaymentStatus = models.PaymentPending
	}
	return next
}

func settlementOf(o models.Order) Settlement {
	return Settlement{Status: o.Status, PaymentStatus: o.PaymentStatus, CompletedAt: o.CompletedAt}
}

// SumPayments returns the amount paid so far.
func SumPayments(payments []models.Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// CalculateTotal recomputes line totals, subtotal and total from the items,
// tax and discount. Payments and statuses are left alone.
func CalculateTotal(o *models.Order) {
	subtotal := decimal.Zero
	for i := range o.Items {
		it := &o.Items[i]
		it.Total = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		subtotal = subtotal.Add(it.Total)
	}
	o.Subtotal = subtotal.Round(2)
	o.Total = o.Subtotal.Add(o.Tax).Sub(o.Discount).Round(2)
}
