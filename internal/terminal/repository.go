package terminal

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"restoran-pos/internal/apperr"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

type ListQuery struct {
	Status   models.TerminalStatus
	BranchID *uint
	Type     models.TerminalType
	Search   string
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByID(ctx context.Context, id uint) (models.Terminal, error) {
	var t models.Terminal
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return t, notFound(err, "find terminal")
	}
	return t, nil
}

func (r *Repository) FindByDeviceID(ctx context.Context, deviceID string) (models.Terminal, error) {
	var t models.Terminal
	if err := r.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&t).Error; err != nil {
		return t, notFound(err, "find terminal by device")
	}
	return t, nil
}

// Updates writes the given columns and reloads the record.
func (r *Repository) Updates(ctx context.Context, id uint, fields map[string]any) (models.Terminal, error) {
	if err := r.db.WithContext(ctx).Model(&models.Terminal{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return models.Terminal{}, fmt.Errorf("update terminal %d: %w", id, err)
	}
	return r.FindByID(ctx, id)
}

func (r *Repository) Create(ctx context.Context, t *models.Terminal) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create terminal: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("terminal_id = ?", id).Delete(&models.TerminalLog{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Order{}).Where("terminal_id = ?", id).Update("terminal_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Terminal{}, id).Error
	})
}

// List returns the terminals matching f and q, with branch preloaded.
func (r *Repository) List(ctx context.Context, f scope.Filter, q ListQuery) ([]models.Terminal, error) {
	dbq := f.Apply(r.db.WithContext(ctx).Model(&models.Terminal{}))
	if q.Status != "" {
		dbq = dbq.Where("status = ?", q.Status)
	}
	if q.BranchID != nil {
		dbq = dbq.Where("branch_id = ?", *q.BranchID)
	}
	if q.Type != "" {
		dbq = dbq.Where("device_type = ?", q.Type)
	}
	if q.Search != "" {
		like := "%" + q.Search + "%"
		dbq = dbq.Where("name LIKE ? OR device_id LIKE ?", like, like)
	}

	var out []models.Terminal
	if err := dbq.Preload("Branch").Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list terminals: %w", err)
	}
	return out, nil
}

func (r *Repository) CountByTenant(ctx context.Context, tenantID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Terminal{}).Where("tenant_id = ?", tenantID).Count(&n).Error
	return n, err
}

func (r *Repository) AppendLog(ctx context.Context, l *models.TerminalLog) error {
	if l.Metadata == "" {
		l.Metadata = "{}"
	}
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *Repository) Logs(ctx context.Context, terminalID uint, logType models.TerminalLogType, limit int) ([]models.TerminalLog, error) {
	dbq := r.db.WithContext(ctx).Where("terminal_id = ?", terminalID)
	if logType != "" {
		dbq = dbq.Where("log_type = ?", logType)
	}
	var out []models.TerminalLog
	if err := dbq.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list terminal logs: %w", err)
	}
	return out, nil
}

func (r *Repository) FindTenant(ctx context.Context, id uint) (models.Tenant, error) {
	var t models.Tenant
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return t, notFoundAs(err, "tenant", "find tenant")
	}
	return t, nil
}

func (r *Repository) FindBranch(ctx context.Context, id uint) (models.Branch, error) {
	var b models.Branch
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return b, notFoundAs(err, "branch", "find branch")
	}
	return b, nil
}

func (r *Repository) FindUser(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return u, notFoundAs(err, "user", "find user")
	}
	return u, nil
}

func notFound(err error, op string) error {
	return notFoundAs(err, "terminal", op)
}

func notFoundAs(err error, entity, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity)
	}
	return apperr.Internal(op, err)
}
