package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

type LogOptions struct {
	TenantID    *uint
	BranchID    *uint
	UserID      *uint
	TerminalID  *uint
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog persists one audit entry. Pass the transaction handle when the
// entry must commit together with the change it describes.
func WriteLog(db *gorm.DB, opts LogOptions) error {
	// jsonb columns reject the empty string, so absent snapshots are "null".
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		TenantID:    opts.TenantID,
		BranchID:    opts.BranchID,
		UserID:      opts.UserID,
		TerminalID:  opts.TerminalID,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := db.Create(&log).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

type Query struct {
	EntityType string
	EntityID   *uint
	UserID     *uint
	BranchID   *uint
	Limit      int
}

// List returns the entries visible to p, newest first.
func List(ctx context.Context, db *gorm.DB, p scope.Principal, q Query) ([]models.AuditLog, error) {
	d := scope.Resolve(p, scope.ActionRead, scope.ClassAudit, nil)
	dbq := d.Filter.Apply(db.WithContext(ctx).Model(&models.AuditLog{}))

	if q.BranchID != nil {
		dbq = dbq.Where("branch_id = ?", *q.BranchID)
	}
	if q.UserID != nil {
		dbq = dbq.Where("user_id = ?", *q.UserID)
	}
	if q.EntityType != "" {
		dbq = dbq.Where("entity_type = ?", q.EntityType)
	}
	if q.EntityID != nil {
		dbq = dbq.Where("entity_id = ?", *q.EntityID)
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logs []models.AuditLog
	if err := dbq.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
