package admin

import (
	"github.com/gofiber/fiber/v2"

	"restoran-pos/internal/auth"
	"restoran-pos/internal/httpx"
	"restoran-pos/internal/models"
)

type TenantResponse struct {
	ID               uint                    `json:"id"`
	Name             string                  `json:"name"`
	Email            string                  `json:"email"`
	Phone            string                  `json:"phone"`
	Domain           string                  `json:"domain"`
	SubscriptionPlan models.SubscriptionPlan `json:"subscription_plan"`
	MaxBranches      int                     `json:"max_branches"`
	MaxDevices       int                     `json:"max_devices"`
	IsActive         bool                    `json:"is_active"`
	CreatedAt        string                  `json:"created_at"`
}

func toTenantResponse(t models.Tenant) TenantResponse {
	return TenantResponse{
		ID:               t.ID,
		Name:             t.Name,
		Email:            t.Email,
		Phone:            t.Phone,
		Domain:           t.Domain,
		SubscriptionPlan: t.SubscriptionPlan,
		MaxBranches:      t.MaxBranches,
		MaxDevices:       t.MaxDevices,
		IsActive:         t.IsActive,
		CreatedAt:        t.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

type CreateTenantRequest struct {
	Name             string                  `json:"name"`
	Email            string                  `json:"email"`
	Phone            string                  `json:"phone"`
	Domain           string                  `json:"domain"`
	SubscriptionPlan models.SubscriptionPlan `json:"subscription_plan"`
}

type UpdateTenantRequest struct {
	Name             *string                  `json:"name"`
	Phone            *string                  `json:"phone"`
	Domain           *string                  `json:"domain"`
	SubscriptionPlan *models.SubscriptionPlan `json:"subscription_plan"`
}

// POST /api/admin/tenants
func CreateTenantHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		var body CreateTenantRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}
		t, err := s.CreateTenant(c.UserContext(), p, TenantInput{
			Name:   body.Name,
			Email:  body.Email,
			Phone:  body.Phone,
			Domain: body.Domain,
			Plan:   body.SubscriptionPlan,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toTenantResponse(t))
	}
}

// GET /api/admin/tenants
func ListTenantsHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		tenants, err := s.ListTenants(c.UserContext(), p)
		if err != nil {
			return err
		}
		res := make([]TenantResponse, 0, len(tenants))
		for _, t := range tenants {
			res = append(res, toTenantResponse(t))
		}
		return c.JSON(res)
	}
}

// GET /api/admin/tenants/:id
func GetTenantHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		t, err := s.GetTenant(c.UserContext(), p, id)
		if err != nil {
			return err
		}
		return c.JSON(toTenantResponse(t))
	}
}

// PUT /api/admin/tenants/:id
func UpdateTenantHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateTenantRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}
		t, err := s.UpdateTenant(c.UserContext(), p, id, TenantUpdate{
			Name:   body.Name,
			Phone:  body.Phone,
			Domain: body.Domain,
			Plan:   body.SubscriptionPlan,
		})
		if err != nil {
			return err
		}
		return c.JSON(toTenantResponse(t))
	}
}

// DELETE /api/admin/tenants/:id
func DeleteTenantHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := s.DeactivateTenant(c.UserContext(), p, id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
