package admin

import (
	"github.com/gofiber/fiber/v2"

	"restoran-pos/internal/auth"
	"restoran-pos/internal/httpx"
	"restoran-pos/internal/models"
)

type BranchResponse struct {
	ID        uint   `json:"id"`
	TenantID  uint   `json:"tenant_id"`
	Name      string `json:"name"`
	Code      string `json:"code"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Phone     string `json:"phone"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

func toBranchResponse(b models.Branch) BranchResponse {
	return BranchResponse{
		ID:        b.ID,
		TenantID:  b.TenantID,
		Name:      b.Name,
		Code:      b.Code,
		Address:   b.Address,
		City:      b.City,
		Phone:     b.Phone,
		IsActive:  b.IsActive,
		CreatedAt: b.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

type CreateBranchRequest struct {
	TenantID *uint  `json:"tenant_id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Phone    string `json:"phone"`
}

type UpdateBranchRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	City    *string `json:"city"`
	Phone   *string `json:"phone"`
}

// ----------------------------------------
// BRANCH CRUD
// ----------------------------------------

func CreateBranchHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		var body CreateBranchRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}

		branch, err := s.CreateBranch(c.UserContext(), p, BranchInput{
			TenantID: body.TenantID,
			Name:     body.Name,
			Code:     body.Code,
			Address:  body.Address,
			City:     body.City,
			Phone:    body.Phone,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toBranchResponse(branch))
	}
}

// GET /api/admin/branches?tenant_id=1
func ListBranchesHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		tenantID, err := httpx.QueryUint(c, "tenant_id")
		if err != nil {
			return err
		}

		branches, err := s.ListBranches(c.UserContext(), p, tenantID)
		if err != nil {
			return err
		}
		res := make([]BranchResponse, 0, len(branches))
		for _, b := range branches {
			res = append(res, toBranchResponse(b))
		}
		return c.JSON(res)
	}
}

func GetBranchHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		branch, err := s.GetBranch(c.UserContext(), p, id)
		if err != nil {
			return err
		}
		return c.JSON(toBranchResponse(branch))
	}
}

func UpdateBranchHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateBranchRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}

		branch, err := s.UpdateBranch(c.UserContext(), p, id, BranchUpdate{
			Name:    body.Name,
			Address: body.Address,
			City:    body.City,
			Phone:   body.Phone,
		})
		if err != nil {
			return err
		}
		return c.JSON(toBranchResponse(branch))
	}
}

func DeleteBranchHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := s.DeactivateBranch(c.UserContext(), p, id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
