package order

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"restoran-pos/internal/apperr"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

type PaymentStatusCount struct {
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Count         int64                `json:"count"`
	Total         decimal.Decimal      `json:"total"`
}

type Statistics struct {
	TotalOrders       int64                `json:"total_orders"`
	TotalRevenue      decimal.Decimal      `json:"total_revenue"`
	CompletedOrders   int64                `json:"completed_orders"`
	CancelledOrders   int64                `json:"cancelled_orders"`
	PendingOrders     int64                `json:"pending_orders"`
	AverageOrderValue decimal.Decimal      `json:"average_order_value"`
	PaymentBreakdown  []PaymentStatusCount `json:"payment_breakdown"`
}

// Statistics aggregates the visible orders created within [from, to).
// Revenue sums order totals regardless of status.
func (e *Engine) Statistics(ctx context.Context, p scope.Principal, from, to *time.Time) (Statistics, error) {
	d := scope.Resolve(p, scope.ActionRead, scope.ClassOrder, nil)
	rows, err := e.repo.statRows(ctx, d.Filter, ListFilter{From: from, To: to})
	if err != nil {
		return Statistics{}, apperr.Internal("order statistics", err)
	}

	st := Statistics{TotalRevenue: decimal.Zero, AverageOrderValue: decimal.Zero}
	byPayment := map[models.PaymentStatus]*PaymentStatusCount{}
	for _, r := range rows {
		st.TotalOrders++
		st.TotalRevenue = st.TotalRevenue.Add(r.Total)
		switch r.Status {
		case models.OrderCompleted:
			st.CompletedOrders++
		case models.OrderCancelled:
			st.CancelledOrders++
		case models.OrderPending:
			st.PendingOrders++
		}
		c, ok := byPayment[r.PaymentStatus]
		if !ok {
			c = &PaymentStatusCount{PaymentStatus: r.PaymentStatus, Total: decimal.Zero}
			byPayment[r.PaymentStatus] = c
		}
		c.Count++
		c.Total = c.Total.Add(r.Total)
	}
	if st.TotalOrders > 0 {
		st.AverageOrderValue = st.TotalRevenue.Div(decimal.NewFromInt(st.TotalOrders)).Round(2)
	}

	st.PaymentBreakdown = make([]PaymentStatusCount, 0, len(byPayment))
	for _, c := range byPayment {
		st.PaymentBreakdown = append(st.PaymentBreakdown, *c)
	}
	sort.Slice(st.PaymentBreakdown, func(i, j int) bool {
		return st.PaymentBreakdown[i].PaymentStatus < st.PaymentBreakdown[j].PaymentStatus
	})
	return st, nil
}

type MethodTotal struct {
	Method      models.PaymentMethod `json:"payment_method"`
	Count       int64                `json:"count"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
}

// PaymentSummary totals the payments on visible orders by method, largest
// first, for payments taken within [from, to).
func (e *Engine) PaymentSummary(ctx context.Context, p scope.Principal, from, to *time.Time) ([]MethodTotal, error) {
	d := scope.Resolve(p, scope.ActionRead, scope.ClassOrder, nil)
	rows, err := e.repo.paymentRows(ctx, d.Filter, from, to)
	if err != nil {
		return nil, apperr.Internal("payment summary", err)
	}

	byMethod := map[models.PaymentMethod]*MethodTotal{}
	for _, r := range rows {
		m, ok := byMethod[r.Method]
		if !ok {
			m = &MethodTotal{Method: r.Method, TotalAmount: decimal.Zero}
			byMethod[r.Method] = m
		}
		m.Count++
		m.TotalAmount = m.TotalAmount.Add(r.Amount)
	}
	out := make([]MethodTotal, 0, len(byMethod))
	for _, m := range byMethod {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalAmount.Cmp(out[j].TotalAmount); c != 0 {
			return c > 0
		}
		return out[i].Method < out[j].Method
	})
	return out, nil
}
