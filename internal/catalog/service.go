// Package catalog owns products and categories and hands the order engine
// the price snapshot it copies onto each order line.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restoran-pos/internal/apperr"
	"restoran-pos/internal/audit"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

// Snapshot is the part of a product an order line freezes.
type Snapshot struct {
	ProductID uint            `json:"product_id"`
	TenantID  uint            `json:"tenant_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	IsActive  bool            `json:"is_active"`
}

func snapshotOf(p models.Product) Snapshot {
	return Snapshot{
		ProductID: p.ID,
		TenantID:  p.TenantID,
		Name:      p.Name,
		SKU:       p.SKU,
		Price:     p.Price,
		IsActive:  p.IsActive,
	}
}

type Service struct {
	db    *gorm.DB
	cache Cache
	log   *zap.Logger
}

func NewService(db *gorm.DB, cache Cache, log *zap.Logger) *Service {
	if cache == nil {
		cache = NoCache{}
	}
	return &Service{db: db, cache: cache, log: log}
}

// ResolveProduct returns the current snapshot of a product, reading through
// the cache. Cache failures fall back to the database.
func (s *Service) ResolveProduct(ctx context.Context, productID uint) (Snapshot, error) {
	if snap, ok, err := s.cache.Get(ctx, productID); err != nil {
		s.log.Warn("catalog cache read failed", zap.Uint("product_id", productID), zap.Error(err))
	} else if ok {
		return snap, nil
	}

	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Snapshot{}, apperr.NotFound("product")
		}
		return Snapshot{}, apperr.Internal("load product", err)
	}
	snap := snapshotOf(p)
	if err := s.cache.Set(ctx, snap); err != nil {
		s.log.Warn("catalog cache write failed", zap.Uint("product_id", productID), zap.Error(err))
	}
	return snap, nil
}

type ProductInput struct {
	TenantID   *uint
	CategoryID *uint
	Name       string
	SKU        string
	Price      decimal.Decimal
}

func (s *Service) CreateProduct(ctx context.Context, p scope.Principal, in ProductInput) (models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.TrimSpace(in.SKU)
	if in.Name == "" || in.SKU == "" {
		return models.Product{}, apperr.Validation("required", "name and sku are required")
	}
	in.Price = in.Price.Round(2)
	if !in.Price.IsPositive() {
		return models.Product{}, apperr.Validation("invalid_price", "price must be at least 0.01")
	}
	tenantID := in.TenantID
	if tenantID == nil {
		tenantID = p.TenantID
	}
	if tenantID == nil {
		return models.Product{}, apperr.Validation("tenant_required", "tenant_id is required")
	}

	prod := models.Product{
		TenantID:   *tenantID,
		CategoryID: in.CategoryID,
		Name:       in.Name,
		SKU:        in.SKU,
		Price:      in.Price,
		IsActive:   true,
	}
	r := scope.ProductResource(prod)
	if err := scope.Resolve(p, scope.ActionCreate, scope.ClassProduct, &r).Err(); err != nil {
		return models.Product{}, err
	}
	if err := s.checkCategory(ctx, prod.TenantID, prod.CategoryID); err != nil {
		return models.Product{}, err
	}

	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Where("sku = ?", prod.SKU).Count(&n).Error; err != nil {
		return models.Product{}, apperr.Internal("check sku", err)
	}
	if n > 0 {
		return models.Product{}, apperr.Validation("duplicate_sku", "sku already in use")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&prod).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			TenantID: &prod.TenantID, UserID: &p.ID,
			EntityType: "product", EntityID: prod.ID,
			Action: models.AuditActionCreate, Description: "product created",
			After: snapshotOf(prod),
		})
	})
	if err != nil {
		return models.Product{}, apperr.Internal("create product", err)
	}
	return prod, nil
}

type ProductUpdate struct {
	Name       *string
	CategoryID *uint
	Price      *decimal.Decimal
	IsActive   *bool
}

// UpdateProduct changes the live catalog entry. Existing orders keep their
// snapshot; only the cache entry is dropped.
func (s *Service) UpdateProduct(ctx context.Context, p scope.Principal, id uint, in ProductUpdate) (models.Product, error) {
	prod, err := s.authorizeProduct(ctx, p, scope.ActionUpdate, id)
	if err != nil {
		return prod, err
	}
	before := snapshotOf(prod)

	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return prod, apperr.Validation("required", "name cannot be empty")
		}
		fields["name"] = name
	}
	if in.Price != nil {
		price := in.Price.Round(2)
		if !price.IsPositive() {
			return prod, apperr.Validation("invalid_price", "price must be at least 0.01")
		}
		fields["price"] = price
	}
	if in.CategoryID != nil {
		if err := s.checkCategory(ctx, prod.TenantID, in.CategoryID); err != nil {
			return prod, err
		}
		fields["category_id"] = *in.CategoryID
	}
	if in.IsActive != nil {
		fields["is_active"] = *in.IsActive
	}
	if len(fields) == 0 {
		return prod, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return err
		}
		if err := tx.First(&prod, id).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			TenantID: &prod.TenantID, UserID: &p.ID,
			EntityType: "product", EntityID: prod.ID,
			Action: models.AuditActionUpdate, Description: "product updated",
			Before: before, After: snapshotOf(prod),
		})
	})
	if err != nil {
		return prod, apperr.Internal("update product", err)
	}
	s.invalidate(ctx, id)
	return prod, nil
}

// DeleteProduct deactivates the product; order lines still reference it.
func (s *Service) DeleteProduct(ctx context.Context, p scope.Principal, id uint) error {
	prod, err := s.authorizeProduct(ctx, p, scope.ActionDelete, id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			TenantID: &prod.TenantID, UserID: &p.ID,
			EntityType: "product", EntityID: prod.ID,
			Action: models.AuditActionDelete, Description: "product deactivated",
			Before: snapshotOf(prod),
		})
	})
	if err != nil {
		return apperr.Internal("deactivate product", err)
	}
	s.invalidate(ctx, id)
	return nil
}

type ProductQuery struct {
	TenantID   *uint
	CategoryID *uint
	ActiveOnly bool
	Search     string
}

func (s *Service) ListProducts(ctx context.Context, p scope.Principal, q ProductQuery) ([]models.Product, error) {
	d := scope.Resolve(p, scope.ActionRead, scope.ClassProduct, nil)
	dbq := d.Filter.Apply(s.db.WithContext(ctx).Model(&models.Product{}))
	if q.TenantID != nil {
		dbq = dbq.Where("tenant_id = ?", *q.TenantID)
	}
	if q.CategoryID != nil {
		dbq = dbq.Where("category_id = ?", *q.CategoryID)
	}
	if q.ActiveOnly {
		dbq = dbq.Where("is_active = ?", true)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		dbq = dbq.Where("name LIKE ? OR sku LIKE ?", like, like)
	}
	var out []models.Product
	if err := dbq.Order("name asc").Find(&out).Error; err != nil {
		return nil, apperr.Internal("list products", err)
	}
	return out, nil
}

func (s *Service) authorizeProduct(ctx context.Context, p scope.Principal, action scope.Action, id uint) (models.Product, error) {
	var prod models.Product
	if err := s.db.WithContext(ctx).First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return prod, apperr.NotFound("product")
		}
		return prod, apperr.Internal("load product", err)
	}
	r := scope.ProductResource(prod)
	if !scope.Resolve(p, scope.ActionRead, scope.ClassProduct, &r).Allow {
		return models.Product{}, apperr.NotFound("product")
	}
	if err := scope.Resolve(p, action, scope.ClassProduct, &r).Err(); err != nil {
		return models.Product{}, err
	}
	return prod, nil
}

func (s *Service) checkCategory(ctx context.Context, tenantID uint, categoryID *uint) error {
	if categoryID == nil {
		return nil
	}
	var cat models.Category
	if err := s.db.WithContext(ctx).First(&cat, *categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("category")
		}
		return apperr.Internal("load category", err)
	}
	if cat.TenantID != tenantID {
		return apperr.Validation("category_mismatch", "category belongs to another tenant")
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context, id uint) {
	if err := s.cache.Delete(ctx, id); err != nil {
		s.log.Warn("catalog cache invalidation failed", zap.Uint("product_id", id), zap.Error(err))
	}
}
