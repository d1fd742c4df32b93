package order

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"restoran-pos/internal/auth"
	"restoran-pos/internal/httpx"
	"restoran-pos/internal/models"
)

type OrderItemResponse struct {
	ID          uint            `json:"id"`
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	Notes       string          `json:"notes"`
}

type PaymentResponse struct {
	ID        uint                 `json:"id"`
	Method    models.PaymentMethod `json:"payment_method"`
	Amount    decimal.Decimal      `json:"amount"`
	Reference string               `json:"reference"`
	CreatedAt time.Time            `json:"created_at"`
}

type OrderResponse struct {
	ID            uint                 `json:"id"`
	OrderNumber   string               `json:"order_number"`
	TenantID      uint                 `json:"tenant_id"`
	BranchID      uint                 `json:"branch_id"`
	TerminalID    *uint                `json:"terminal_id"`
	CashierID     *uint                `json:"cashier_id"`
	CustomerName  string               `json:"customer_name"`
	CustomerPhone string               `json:"customer_phone"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	Tax           decimal.Decimal      `json:"tax"`
	Discount      decimal.Decimal      `json:"discount"`
	Total         decimal.Decimal      `json:"total"`
	Paid          decimal.Decimal      `json:"paid"`
	Status        models.OrderStatus   `json:"status"`
	PaymentStatus models.PaymentStatus `json:"payment_status"`
	Notes         string               `json:"notes"`
	CreatedAt     time.Time            `json:"created_at"`
	CompletedAt   *time.Time           `json:"completed_at"`
	Items         []OrderItemResponse  `json:"items"`
	Payments      []PaymentResponse    `json:"payments"`
}

func ToOrderResponse(o models.Order) OrderResponse {
	res := OrderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		TenantID:      o.TenantID,
		BranchID:      o.BranchID,
		TerminalID:    o.TerminalID,
		CashierID:     o.CashierID,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		Subtotal:      o.Subtotal,
		Tax:           o.Tax,
		Discount:      o.Discount,
		Total:         o.Total,
		Paid:          SumPayments(o.Payments),
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Notes:         o.Notes,
		CreatedAt:     o.CreatedAt,
		CompletedAt:   o.CompletedAt,
		Items:         make([]OrderItemResponse, 0, len(o.Items)),
		Payments:      make([]PaymentResponse, 0, len(o.Payments)),
	}
	for _, it := range o.Items {
		res.Items = append(res.Items, OrderItemResponse{
			ID:          it.ID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
			Notes:       it.Notes,
		})
	}
	for _, p := range o.Payments {
		res.Payments = append(res.Payments, PaymentResponse{
			ID:        p.ID,
			Method:    p.Method,
			Amount:    p.Amount,
			Reference: p.Reference,
			CreatedAt: p.CreatedAt,
		})
	}
	return res
}

type ItemRequest struct {
	ProductID uint   `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes"`
}

type PaymentRequest struct {
	Method    models.PaymentMethod `json:"payment_method"`
	Amount    decimal.Decimal      `json:"amount"`
	Reference string               `json:"reference"`
	Notes     string               `json:"notes"`
}

func (r PaymentRequest) input() PaymentInput {
	return PaymentInput{Method: r.Method, Amount: r.Amount, Reference: r.Reference, Notes: r.Notes}
}

type CreateOrderRequest struct {
	BranchID      uint             `json:"branch_id"`
	TerminalID    *uint            `json:"terminal_id"`
	CustomerName  string           `json:"customer_name"`
	CustomerPhone string           `json:"customer_phone"`
	Notes         string           `json:"notes"`
	Tax           decimal.Decimal  `json:"tax"`
	Discount      decimal.Decimal  `json:"discount"`
	Items         []ItemRequest    `json:"items"`
	Payments      []PaymentRequest `json:"payments"`
}

// POST /api/orders
func CreateOrderHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		var body CreateOrderRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}
		// Branch staff ring up orders at their own branch by default.
		if body.BranchID == 0 && p.BranchID != nil {
			body.BranchID = *p.BranchID
		}

		in := CreateInput{
			BranchID:      body.BranchID,
			TerminalID:    body.TerminalID,
			CustomerName:  body.CustomerName,
			CustomerPhone: body.CustomerPhone,
			Notes:         body.Notes,
			Tax:           body.Tax,
			Discount:      body.Discount,
		}
		for _, it := range body.Items {
			in.Items = append(in.Items, ItemInput{ProductID: it.ProductID, Quantity: it.Quantity, Notes: it.Notes})
		}
		for _, pay := range body.Payments {
			in.Payments = append(in.Payments, pay.input())
		}

		o, err := e.Create(c.UserContext(), p, in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(ToOrderResponse(o))
	}
}

// GET /api/orders?status=pending&payment_status=partial&branch_id=1&terminal_id=2&date_from=2026-05-01&date_to=2026-05-31&page=1&page_size=50
func ListOrdersHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		q := ListFilter{
			Status:        models.OrderStatus(c.Query("status")),
			PaymentStatus: models.PaymentStatus(c.Query("payment_status")),
		}
		if q.BranchID, err = httpx.QueryUint(c, "branch_id"); err != nil {
			return err
		}
		if q.TerminalID, err = httpx.QueryUint(c, "terminal_id"); err != nil {
			return err
		}
		if q.From, q.To, err = dateRange(c); err != nil {
			return err
		}
		page := c.QueryInt("page", 1)
		if page < 1 {
			page = 1
		}
		q.Limit = c.QueryInt("page_size", 50)
		if q.Limit < 1 || q.Limit > 200 {
			q.Limit = 50
		}
		q.Offset = (page - 1) * q.Limit

		orders, total, err := e.List(c.UserContext(), p, q)
		if err != nil {
			return err
		}
		res := make([]OrderResponse, 0, len(orders))
		for _, o := range orders {
			res = append(res, ToOrderResponse(o))
		}
		return c.JSON(fiber.Map{
			"count":   total,
			"page":    page,
			"results": res,
		})
	}
}

// GET /api/orders/today
func TodayOrdersHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		orders, err := e.Today(c.UserContext(), p)
		if err != nil {
			return err
		}
		res := make([]OrderResponse, 0, len(orders))
		for _, o := range orders {
			res = append(res, ToOrderResponse(o))
		}
		return c.JSON(res)
	}
}

// GET /api/orders/statistics?start_date=2026-05-01&end_date=2026-05-31
func StatisticsHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		from, err := httpx.QueryDate(c, "start_date")
		if err != nil {
			return err
		}
		end, err := httpx.QueryDate(c, "end_date")
		if err != nil {
			return err
		}
		st, err := e.Statistics(c.UserContext(), p, from, nextDay(end))
		if err != nil {
			return err
		}
		return c.JSON(st)
	}
}

// GET /api/payments/summary?date_from=2026-05-01&date_to=2026-05-31
func PaymentSummaryHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		from, to, err := dateRange(c)
		if err != nil {
			return err
		}
		summary, err := e.PaymentSummary(c.UserContext(), p, from, to)
		if err != nil {
			return err
		}
		return c.JSON(summary)
	}
}

// GET /api/orders/:id
func GetOrderHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		o, err := e.Get(c.UserContext(), p, id)
		if err != nil {
			return err
		}
		return c.JSON(ToOrderResponse(o))
	}
}

// POST /api/orders/:id/payments
func AddPaymentHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body PaymentRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}
		o, err := e.AddPayment(c.UserContext(), p, id, body.input())
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(ToOrderResponse(o))
	}
}

// TransitionHandler serves POST /api/orders/:id/{complete,cancel,refund,processing}.
func TransitionHandler(e *Engine, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var o models.Order
		switch action {
		case "complete":
			o, err = e.Complete(c.UserContext(), p, id)
		case "cancel":
			o, err = e.Cancel(c.UserContext(), p, id)
		case "refund":
			o, err = e.Refund(c.UserContext(), p, id)
		case "processing":
			o, err = e.MarkProcessing(c.UserContext(), p, id)
		default:
			return fiber.ErrNotFound
		}
		if err != nil {
			return err
		}
		return c.JSON(ToOrderResponse(o))
	}
}

// dateRange reads date_from/date_to (both inclusive days) as [from, to).
func dateRange(c *fiber.Ctx) (*time.Time, *time.Time, error) {
	from, err := httpx.QueryDate(c, "date_from")
	if err != nil {
		return nil, nil, err
	}
	to, err := httpx.QueryDate(c, "date_to")
	if err != nil {
		return nil, nil, err
	}
	return from, nextDay(to), nil
}

func nextDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := t.AddDate(0, 0, 1)
	return &n
}
