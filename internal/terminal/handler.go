package terminal

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"restoran-pos/internal/auth"
	"restoran-pos/internal/config"
	"restoran-pos/internal/httpx"
	"restoran-pos/internal/models"
)

type TerminalResponse struct {
	ID           uint                  `json:"id"`
	TenantID     uint                  `json:"tenant_id"`
	BranchID     *uint                 `json:"branch_id"`
	AssignedToID *uint                 `json:"assigned_to_id"`
	Name         string                `json:"name"`
	DeviceID     string                `json:"device_id"`
	DeviceType   models.TerminalType   `json:"device_type"`
	Status       models.TerminalStatus `json:"status"`
	IsActive     bool                  `json:"is_active"`
	IsOnline     bool                  `json:"is_online"`
	LastSeen     *time.Time            `json:"last_seen"`
	IPAddress    string                `json:"ip_address"`
	CreatedAt    time.Time             `json:"created_at"`
}

func (s *Tracker) toResponse(t models.Terminal) TerminalResponse {
	return TerminalResponse{
		ID:           t.ID,
		TenantID:     t.TenantID,
		BranchID:     t.BranchID,
		AssignedToID: t.AssignedToID,
		Name:         t.Name,
		DeviceID:     t.DeviceID,
		DeviceType:   t.DeviceType,
		Status:       t.Status,
		IsActive:     t.IsActive,
		IsOnline:     s.IsOnline(t),
		LastSeen:     t.LastSeen,
		IPAddress:    t.IPAddress,
		CreatedAt:    t.CreatedAt,
	}
}

func (s *Tracker) toResponses(ts []models.Terminal) []TerminalResponse {
	out := make([]TerminalResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, s.toResponse(t))
	}
	return out
}

type CreateTerminalRequest struct {
	Name       string              `json:"name"`
	DeviceID   string              `json:"device_id"`
	DeviceType models.TerminalType `json:"device_type"`
	TenantID   *uint               `json:"tenant_id"`
	BranchID   *uint               `json:"branch_id"`
}

// POST /api/terminals
func CreateTerminalHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		var body CreateTerminalRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}

		t, err := s.Create(c.UserContext(), p, CreateInput{
			Name:       body.Name,
			DeviceID:   body.DeviceID,
			DeviceType: body.DeviceType,
			TenantID:   body.TenantID,
			BranchID:   body.BranchID,
		})
		if err != nil {
			return err
		}

		// The token is only disclosed on creation and regeneration.
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"terminal":   s.toResponse(t),
			"auth_token": t.AuthToken,
			"public_url": s.PublicURL(c.UserContext(), t),
		})
	}
}

// GET /api/terminals?status=online&branch_id=1&device_type=tablet&search=kasa
func ListTerminalsHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		q := ListQuery{
			Status: models.TerminalStatus(c.Query("status")),
			Type:   models.TerminalType(c.Query("device_type")),
			Search: c.Query("search"),
		}
		if q.BranchID, err = httpx.QueryUint(c, "branch_id"); err != nil {
			return err
		}
		list, err := s.List(c.UserContext(), p, q)
		if err != nil {
			return err
		}
		return c.JSON(s.toResponses(list))
	}
}

// GET /api/terminals/online
func OnlineTerminalsHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		list, err := s.OnlineList(c.UserContext(), p)
		if err != nil {
			return err
		}
		return c.JSON(s.toResponses(list))
	}
}

// GET /api/terminals/stats
func StatsHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		st, err := s.Stats(c.UserContext(), p)
		if err != nil {
			return err
		}
		return c.JSON(st)
	}
}

// GET /api/terminals/:id
func GetTerminalHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		t, err := s.Get(c.UserContext(), p, id)
		if err != nil {
			return err
		}
		resp := fiber.Map{"terminal": s.toResponse(t), "public_url": s.PublicURL(c.UserContext(), t)}
		return c.JSON(resp)
	}
}

// DELETE /api/terminals/:id
func DeleteTerminalHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := s.Delete(c.UserContext(), p, id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type SetStatusRequest struct {
	Status models.TerminalStatus `json:"status"`
}

// PUT /api/terminals/:id/status
func SetStatusHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body SetStatusRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}
		t, err := s.SetStatus(c.UserContext(), p, id, body.Status)
		if err != nil {
			return err
		}
		return c.JSON(s.toResponse(t))
	}
}

// POST /api/terminals/:id/activate and /deactivate
func SetActiveHandler(s *Tracker, active bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		t, err := s.SetActive(c.UserContext(), p, id, active)
		if err != nil {
			return err
		}
		return c.JSON(s.toResponse(t))
	}
}

// POST /api/terminals/:id/token
func RegenerateTokenHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		t, err := s.RegenerateToken(c.UserContext(), p, id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"device_id": t.DeviceID, "auth_token": t.AuthToken})
	}
}

type AssignRequest struct {
	UserID uint `json:"user_id"`
}

// POST /api/terminals/:id/assign  {"user_id": 5}; user_id 0 unassigns
func AssignHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body AssignRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}

		var t models.Terminal
		if body.UserID == 0 {
			t, err = s.Unassign(c.UserContext(), p, id)
		} else {
			t, err = s.Assign(c.UserContext(), p, id, body.UserID)
		}
		if err != nil {
			return err
		}
		return c.JSON(s.toResponse(t))
	}
}

type LogResponse struct {
	ID        uint                   `json:"id"`
	LogType   models.TerminalLogType `json:"log_type"`
	Message   string                 `json:"message"`
	UserID    *uint                  `json:"user_id"`
	Metadata  string                 `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
}

// GET /api/terminals/:id/logs?log_type=login&limit=100
func LogsHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		logs, err := s.Logs(c.UserContext(), p, id, models.TerminalLogType(c.Query("log_type")), c.QueryInt("limit", 100))
		if err != nil {
			return err
		}
		resp := make([]LogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, LogResponse{
				ID: l.ID, LogType: l.LogType, Message: l.Message,
				UserID: l.UserID, Metadata: l.Metadata, CreatedAt: l.CreatedAt,
			})
		}
		return c.JSON(resp)
	}
}

// Terminal-facing routes below authenticate with the X-POS-Token header.

type LoginRequest struct {
	AuthToken string `json:"auth_token"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// POST /api/pos/tenants/:tenant_id/devices/:device_id/login
// Staff credentials additionally return a user token and session window.
func LoginHandler(s *Tracker, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID, err := httpx.ParamID(c, "tenant_id")
		if err != nil {
			return err
		}
		var body LoginRequest
		if len(c.Body()) > 0 {
			if err := httpx.Body(c, &body); err != nil {
				return err
			}
		}
		if body.AuthToken == "" && body.Email == "" {
			body.AuthToken = c.Get(auth.TerminalTokenHeader)
		}

		res, err := s.Login(c.UserContext(), LoginInput{
			TenantID:  tenantID,
			DeviceID:  c.Params("device_id"),
			AuthToken: body.AuthToken,
			Email:     body.Email,
			Password:  body.Password,
			IP:        c.IP(),
		})
		if err != nil {
			return err
		}

		resp := fiber.Map{
			"success":      true,
			"device_token": res.Terminal.AuthToken,
			"device":       s.toResponse(res.Terminal),
			"tenant": fiber.Map{
				"id":     res.Tenant.ID,
				"name":   res.Tenant.Name,
				"domain": res.Tenant.Domain,
			},
			"public_url": res.PublicURL,
		}
		if res.User != nil {
			token, err := auth.GenerateToken(cfg.JWT, res.User, res.LoggedInAt)
			if err != nil {
				return err
			}
			resp["token"] = token
			resp["user"] = auth.ToUserResponse(*res.User)
			resp["session"] = fiber.Map{
				"logged_in_at":           res.LoggedInAt,
				"expires_at":             res.LoggedInAt.Add(cfg.JWT.TTL),
				"session_duration_hours": cfg.JWT.TTL.Hours(),
			}
		}
		if res.Branch != nil {
			resp["branch"] = fiber.Map{
				"id":      res.Branch.ID,
				"name":    res.Branch.Name,
				"code":    res.Branch.Code,
				"address": res.Branch.Address,
				"city":    res.Branch.City,
				"phone":   res.Branch.Phone,
			}
		}
		return c.JSON(resp)
	}
}

// POST /api/pos/tenants/:tenant_id/devices/:device_id/logout
func LogoutHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenantID, err := httpx.ParamID(c, "tenant_id")
		if err != nil {
			return err
		}
		token := c.Get(auth.TerminalTokenHeader)
		if token == "" {
			return fiber.NewError(fiber.StatusBadRequest, "device token required")
		}
		t, err := s.Lookup(c.UserContext(), tenantID, c.Params("device_id"))
		if err != nil {
			return err
		}
		t, err = s.Logout(c.UserContext(), t.ID, token)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "device_id": t.DeviceID, "status": t.Status})
	}
}

type HeartbeatRequest struct {
	IPAddress string `json:"ip_address"`
}

// POST /api/pos/heartbeat (X-POS-Token)
func HeartbeatHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tp, _, err := auth.TerminalFrom(c)
		if err != nil {
			return err
		}
		var body HeartbeatRequest
		if len(c.Body()) > 0 {
			if err := httpx.Body(c, &body); err != nil {
				return err
			}
		}
		if body.IPAddress == "" {
			body.IPAddress = c.IP()
		}

		t, changed, err := s.Heartbeat(c.UserContext(), tp.TerminalID, body.IPAddress)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success":   true,
			"accepted":  changed,
			"status":    t.Status,
			"last_seen": t.LastSeen,
			"is_online": s.IsOnline(t),
		})
	}
}

// GET /api/pos/status (X-POS-Token)
func StatusHandler(s *Tracker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tp, _, err := auth.TerminalFrom(c)
		if err != nil {
			return err
		}
		t, err := s.repo.FindByID(c.UserContext(), tp.TerminalID)
		if err != nil {
			return err
		}
		return c.JSON(s.toResponse(t))
	}
}
