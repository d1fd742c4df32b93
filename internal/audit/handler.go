package audit

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"restoran-pos/internal/auth"
	"restoran-pos/internal/httpx"
	"restoran-pos/internal/models"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	TenantID    *uint              `json:"tenant_id"`
	BranchID    *uint              `json:"branch_id"`
	UserID      *uint              `json:"user_id"`
	TerminalID  *uint              `json:"terminal_id"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	Before      json.RawMessage    `json:"before"`
	After       json.RawMessage    `json:"after"`
}

// GET /api/audit-logs?entity_type=order&entity_id=1&branch_id=1&user_id=2&limit=50
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}

		q := Query{EntityType: c.Query("entity_type"), Limit: c.QueryInt("limit", 100)}
		if q.EntityID, err = httpx.QueryUint(c, "entity_id"); err != nil {
			return err
		}
		if q.UserID, err = httpx.QueryUint(c, "user_id"); err != nil {
			return err
		}
		if q.BranchID, err = httpx.QueryUint(c, "branch_id"); err != nil {
			return err
		}

		logs, err := List(c.UserContext(), db, p, q)
		if err != nil {
			return err
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          log.ID,
				CreatedAt:   log.CreatedAt.Format("2006-01-02 15:04:05"),
				TenantID:    log.TenantID,
				BranchID:    log.BranchID,
				UserID:      log.UserID,
				TerminalID:  log.TerminalID,
				EntityType:  log.EntityType,
				EntityID:    log.EntityID,
				Action:      log.Action,
				Description: log.Description,
				Before:      rawJSON(log.BeforeData),
				After:       rawJSON(log.AfterData),
			})
		}

		return c.JSON(resp)
	}
}

func rawJSON(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}
