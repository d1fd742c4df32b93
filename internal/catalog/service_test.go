package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restoran-pos/internal/apperr"
	"restoran-pos/internal/database/dbtest"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

type memCache struct {
	items  map[uint]Snapshot
	hits   int
	broken bool
}

func newMemCache() *memCache { return &memCache{items: map[uint]Snapshot{}} }

func (m *memCache) Get(_ context.Context, id uint) (Snapshot, bool, error) {
	if m.broken {
		return Snapshot{}, false, errors.New("connection refused")
	}
	s, ok := m.items[id]
	if ok {
		m.hits++
	}
	return s, ok, nil
}

func (m *memCache) Set(_ context.Context, s Snapshot) error {
	if m.broken {
		return errors.New("connection refused")
	}
	m.items[s.ProductID] = s
	return nil
}

func (m *memCache) Delete(_ context.Context, id uint) error {
	delete(m.items, id)
	return nil
}

func setup(t *testing.T) (*Service, *memCache, *gorm.DB, scope.Principal) {
	t.Helper()
	db := dbtest.Open(t)
	tenant := models.Tenant{Name: "T", Email: "t@x", SubscriptionPlan: models.PlanBasic, IsActive: true}
	require.NoError(t, db.Create(&tenant).Error)
	cache := newMemCache()
	admin := scope.Principal{ID: 1, Role: models.RoleTenantAdmin, TenantID: &tenant.ID}
	return NewService(db, cache, zap.NewNop()), cache, db, admin
}

func TestResolveProductReadsThroughCache(t *testing.T) {
	svc, cache, _, admin := setup(t)
	ctx := context.Background()

	prod, err := svc.CreateProduct(ctx, admin, ProductInput{Name: "Ayran", SKU: "AYR", Price: decimal.RequireFromString("4.50")})
	require.NoError(t, err)

	snap, err := svc.ResolveProduct(ctx, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ayran", snap.Name)
	assert.True(t, snap.Price.Equal(decimal.RequireFromString("4.5")))
	assert.Equal(t, 0, cache.hits)

	_, err = svc.ResolveProduct(ctx, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	newPrice := decimal.RequireFromString("5.00")
	_, err = svc.UpdateProduct(ctx, admin, prod.ID, ProductUpdate{Price: &newPrice})
	require.NoError(t, err)
	snap, err = svc.ResolveProduct(ctx, prod.ID)
	require.NoError(t, err)
	assert.True(t, snap.Price.Equal(newPrice), "update drops the cached snapshot")

	_, err = svc.ResolveProduct(ctx, 999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestResolveProductSurvivesCacheOutage(t *testing.T) {
	svc, cache, _, admin := setup(t)
	ctx := context.Background()
	prod, err := svc.CreateProduct(ctx, admin, ProductInput{Name: "Cay", SKU: "CAY", Price: decimal.NewFromInt(2)})
	require.NoError(t, err)

	cache.broken = true
	snap, err := svc.ResolveProduct(ctx, prod.ID)
	require.NoError(t, err)
	assert.Equal(t, "CAY", snap.SKU)
}

func TestProductWritesNeedAdmin(t *testing.T) {
	svc, _, db, admin := setup(t)
	ctx := context.Background()
	branch := models.Branch{TenantID: *admin.TenantID, Name: "B", Code: "B", IsActive: true}
	require.NoError(t, db.Create(&branch).Error)
	manager := scope.Principal{ID: 2, Role: models.RoleBranchManager, TenantID: admin.TenantID, BranchID: &branch.ID}

	_, err := svc.CreateProduct(ctx, manager, ProductInput{Name: "X", SKU: "X", Price: decimal.NewFromInt(1)})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))

	prod, err := svc.CreateProduct(ctx, admin, ProductInput{Name: "X", SKU: "X", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, admin, ProductInput{Name: "Y", SKU: "X", Price: decimal.NewFromInt(1)})
	assert.Equal(t, "duplicate_sku", err.(*apperr.Error).Code)

	list, err := svc.ListProducts(ctx, manager, ProductQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 1, "branch staff read the tenant catalog")

	assert.True(t, apperr.Is(svc.DeleteProduct(ctx, manager, prod.ID), apperr.KindPermissionDenied))
	require.NoError(t, svc.DeleteProduct(ctx, admin, prod.ID))

	snap, err := svc.ResolveProduct(ctx, prod.ID)
	require.NoError(t, err)
	assert.False(t, snap.IsActive)

	list, err = svc.ListProducts(ctx, manager, ProductQuery{ActiveOnly: true})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestForeignTenantProductInvisible(t *testing.T) {
	svc, _, db, admin := setup(t)
	ctx := context.Background()
	other := models.Tenant{Name: "O", Email: "o@x", SubscriptionPlan: models.PlanBasic, IsActive: true}
	require.NoError(t, db.Create(&other).Error)
	otherAdmin := scope.Principal{ID: 9, Role: models.RoleTenantAdmin, TenantID: &other.ID}

	prod, err := svc.CreateProduct(ctx, admin, ProductInput{Name: "X", SKU: "X", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)

	name := "hijack"
	_, err = svc.UpdateProduct(ctx, otherAdmin, prod.ID, ProductUpdate{Name: &name})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.CreateProduct(ctx, otherAdmin, ProductInput{TenantID: admin.TenantID, Name: "Z", SKU: "Z", Price: decimal.NewFromInt(1)})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))
}

func TestCategories(t *testing.T) {
	svc, _, db, admin := setup(t)
	ctx := context.Background()
	branch := models.Branch{TenantID: *admin.TenantID, Name: "B", Code: "B", IsActive: true}
	require.NoError(t, db.Create(&branch).Error)

	shared, err := svc.CreateCategory(ctx, admin, CategoryInput{Name: "Icecekler", DisplayOrder: 2})
	require.NoError(t, err)
	_, err = svc.CreateCategory(ctx, admin, CategoryInput{Name: "Tatlilar", BranchID: &branch.ID, DisplayOrder: 1})
	require.NoError(t, err)

	prod, err := svc.CreateProduct(ctx, admin, ProductInput{Name: "Ayran", SKU: "AYR", CategoryID: &shared.ID, Price: decimal.NewFromInt(3)})
	require.NoError(t, err)

	cats, err := svc.ListCategories(ctx, admin, nil)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Tatlilar", cats[0].Name)

	require.NoError(t, svc.DeleteCategory(ctx, admin, shared.ID))
	var reloaded models.Product
	require.NoError(t, db.First(&reloaded, prod.ID).Error)
	assert.Nil(t, reloaded.CategoryID)
}

func TestProductPriceMustBePositive(t *testing.T) {
	svc, _, _, admin := setup(t)
	ctx := context.Background()

	for _, price := range []string{"0", "0.004", "-1"} {
		_, err := svc.CreateProduct(ctx, admin, ProductInput{Name: "Su", SKU: "SU-" + price, Price: decimal.RequireFromString(price)})
		require.Error(t, err, price)
		assert.Equal(t, "invalid_price", err.(*apperr.Error).Code, price)
	}

	prod, err := svc.CreateProduct(ctx, admin, ProductInput{Name: "Su", SKU: "SU", Price: decimal.RequireFromString("0.005")})
	require.NoError(t, err)
	assert.True(t, prod.Price.Equal(decimal.RequireFromString("0.01")))

	zero := decimal.RequireFromString("0.001")
	_, err = svc.UpdateProduct(ctx, admin, prod.ID, ProductUpdate{Price: &zero})
	require.Error(t, err)
	assert.Equal(t, "invalid_price", err.(*apperr.Error).Code)

	snap, err := svc.ResolveProduct(ctx, prod.ID)
	require.NoError(t, err)
	assert.True(t, snap.Price.Equal(decimal.RequireFromString("0.01")))
}
