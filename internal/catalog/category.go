package catalog

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"restoran-pos/internal/apperr"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

type CategoryInput struct {
	TenantID     *uint
	BranchID     *uint
	Name         string
	DisplayOrder int
}

func (s *Service) CreateCategory(ctx context.Context, p scope.Principal, in CategoryInput) (models.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return models.Category{}, apperr.Validation("required", "category name is required")
	}
	tenantID := in.TenantID
	if tenantID == nil {
		tenantID = p.TenantID
	}
	if tenantID == nil {
		return models.Category{}, apperr.Validation("tenant_required", "tenant_id is required")
	}
	if in.BranchID != nil {
		var b models.Branch
		if err := s.db.WithContext(ctx).First(&b, *in.BranchID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Category{}, apperr.NotFound("branch")
			}
			return models.Category{}, apperr.Internal("load branch", err)
		}
		if b.TenantID != *tenantID {
			return models.Category{}, apperr.Validation("tenant_branch_mismatch", "branch belongs to another tenant")
		}
	}

	cat := models.Category{
		TenantID:     *tenantID,
		BranchID:     in.BranchID,
		Name:         in.Name,
		DisplayOrder: in.DisplayOrder,
		IsActive:     true,
	}
	r := scope.CategoryResource(cat)
	if err := scope.Resolve(p, scope.ActionCreate, scope.ClassCategory, &r).Err(); err != nil {
		return models.Category{}, err
	}
	if err := s.db.WithContext(ctx).Create(&cat).Error; err != nil {
		return models.Category{}, apperr.Internal("create category", err)
	}
	return cat, nil
}

// ListCategories returns the visible categories; branchID narrows to the
// shared ones plus those of that branch.
func (s *Service) ListCategories(ctx context.Context, p scope.Principal, branchID *uint) ([]models.Category, error) {
	d := scope.Resolve(p, scope.ActionRead, scope.ClassCategory, nil)
	dbq := d.Filter.Apply(s.db.WithContext(ctx).Model(&models.Category{}))
	if branchID != nil {
		dbq = dbq.Where("branch_id IS NULL OR branch_id = ?", *branchID)
	}
	var out []models.Category
	if err := dbq.Order("display_order asc, name asc").Find(&out).Error; err != nil {
		return nil, apperr.Internal("list categories", err)
	}
	return out, nil
}

func (s *Service) DeleteCategory(ctx context.Context, p scope.Principal, id uint) error {
	var cat models.Category
	if err := s.db.WithContext(ctx).First(&cat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("category")
		}
		return apperr.Internal("load category", err)
	}
	r := scope.CategoryResource(cat)
	if !scope.Resolve(p, scope.ActionRead, scope.ClassCategory, &r).Allow {
		return apperr.NotFound("category")
	}
	if err := scope.Resolve(p, scope.ActionDelete, scope.ClassCategory, &r).Err(); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Category{}, id).Error
	})
	if err != nil {
		return apperr.Internal("delete category", err)
	}
	return nil
}
