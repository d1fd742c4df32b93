package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restoran-pos/internal/catalog"
	"restoran-pos/internal/database/dbtest"
	"restoran-pos/internal/events"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
	"restoran-pos/internal/terminal"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (r *recorder) Publish(_ context.Context, ev events.OrderEvent) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.EventType)
	}
	return out
}

type fixture struct {
	db      *gorm.DB
	engine  *Engine
	tracker *terminal.Tracker
	events  *recorder
	clock   *clock

	tenant   models.Tenant
	branch   models.Branch
	branch2  models.Branch
	admin    models.User
	manager  models.User
	cashier  models.User
	cashier2 models.User
	term     models.Terminal
	products map[string]models.Product
}

func (f *fixture) principal(u models.User) scope.Principal {
	return scope.PrincipalFromUser(u, nil)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newFixture seeds one tenant with two branches, staff for the first
// branch, an active terminal there and products A (5.00), B (3.50) and an
// inactive C.
func newFixture(t testing.TB) *fixture {
	t.Helper()
	return newNamedFixture(t, t.Name())
}

func newNamedFixture(t testing.TB, name string) *fixture {
	t.Helper()
	db := dbtest.OpenNamed(t, name)
	f := &fixture{
		db:       db,
		events:   &recorder{},
		clock:    &clock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)},
		products: map[string]models.Product{},
	}
	log := zap.NewNop()
	f.tracker = terminal.NewTracker(db, log, terminal.Options{Now: f.clock.now})
	cat := catalog.NewService(db, nil, log)
	f.engine = NewEngine(db, cat, f.tracker, f.events, log, Options{Now: f.clock.now})

	f.tenant = models.Tenant{Name: "Lokanta", Email: "a@x", SubscriptionPlan: models.PlanEnterprise,
		MaxBranches: models.Unlimited, MaxDevices: models.Unlimited, IsActive: true}
	require.NoError(t, db.Create(&f.tenant).Error)
	f.branch = models.Branch{TenantID: f.tenant.ID, Name: "Kadikoy", Code: "KDK", IsActive: true}
	f.branch2 = models.Branch{TenantID: f.tenant.ID, Name: "Besiktas", Code: "BJK", IsActive: true}
	require.NoError(t, db.Create(&f.branch).Error)
	require.NoError(t, db.Create(&f.branch2).Error)

	f.admin = models.User{Name: "Ayse", Email: "admin@x", PasswordHash: "x", Role: models.RoleTenantAdmin,
		TenantID: &f.tenant.ID, IsActive: true}
	f.manager = models.User{Name: "Mert", Email: "m@x", PasswordHash: "x", Role: models.RoleBranchManager,
		TenantID: &f.tenant.ID, BranchID: &f.branch.ID, IsActive: true}
	f.cashier = models.User{Name: "Cem", Email: "c@x", PasswordHash: "x", Role: models.RoleCashier,
		TenantID: &f.tenant.ID, BranchID: &f.branch.ID, IsActive: true}
	f.cashier2 = models.User{Name: "Deniz", Email: "d@x", PasswordHash: "x", Role: models.RoleCashier,
		TenantID: &f.tenant.ID, BranchID: &f.branch.ID, IsActive: true}
	for _, u := range []*models.User{&f.admin, &f.manager, &f.cashier, &f.cashier2} {
		require.NoError(t, db.Create(u).Error)
	}

	ctx := context.Background()
	term, err := f.tracker.Create(ctx, f.principal(f.manager), terminal.CreateInput{
		Name: "Kasa 1", DeviceID: "KDK-01", BranchID: &f.branch.ID,
	})
	require.NoError(t, err)
	f.term = term

	admin := f.principal(f.admin)
	for sku, price := range map[string]string{"A": "5.00", "B": "3.50", "C": "2.00"} {
		p, err := cat.CreateProduct(ctx, admin, catalog.ProductInput{Name: "Product " + sku, SKU: sku, Price: dec(price)})
		require.NoError(t, err)
		f.products[sku] = p
	}
	inactive := false
	c, err := cat.UpdateProduct(ctx, admin, f.products["C"].ID, catalog.ProductUpdate{IsActive: &inactive})
	require.NoError(t, err)
	f.products["C"] = c
	return f
}

// sampleInput is two A and one B with tax 1.00 and discount 0.50:
// subtotal 13.50, total 14.00.
func (f *fixture) sampleInput(payments ...PaymentInput) CreateInput {
	return CreateInput{
		BranchID:   f.branch.ID,
		TerminalID: &f.term.ID,
		Tax:        dec("1.00"),
		Discount:   dec("0.50"),
		Items: []ItemInput{
			{ProductID: f.products["A"].ID, Quantity: 2},
			{ProductID: f.products["B"].ID, Quantity: 1},
		},
		Payments: payments,
	}
}

func cash(amount string) PaymentInput {
	return PaymentInput{Method: models.PaymentCash, Amount: dec(amount)}
}
