package admin

import (
	"github.com/gofiber/fiber/v2"

	"restoran-pos/internal/auth"
	"restoran-pos/internal/httpx"
	"restoran-pos/internal/models"
)

type CreateUserRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
	TenantID *uint           `json:"tenant_id"`
	BranchID *uint           `json:"branch_id"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

// POST /api/admin/users
func CreateUserHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		var body CreateUserRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}
		u, err := s.CreateUser(c.UserContext(), p, UserInput{
			Name:     body.Name,
			Email:    body.Email,
			Password: body.Password,
			Role:     body.Role,
			TenantID: body.TenantID,
			BranchID: body.BranchID,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(auth.ToUserResponse(u))
	}
}

// GET /api/admin/users?role=cashier&branch_id=1
func ListUsersHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		q := UserQuery{Role: models.UserRole(c.Query("role"))}
		if q.BranchID, err = httpx.QueryUint(c, "branch_id"); err != nil {
			return err
		}
		users, err := s.ListUsers(c.UserContext(), p, q)
		if err != nil {
			return err
		}
		res := make([]auth.UserResponse, 0, len(users))
		for _, u := range users {
			res = append(res, auth.ToUserResponse(u))
		}
		return c.JSON(res)
	}
}

// PUT /api/admin/users/:id
func UpdateUserHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateUserRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}
		u, err := s.UpdateUser(c.UserContext(), p, id, UserUpdate{Name: body.Name, Password: body.Password})
		if err != nil {
			return err
		}
		return c.JSON(auth.ToUserResponse(u))
	}
}

// DELETE /api/admin/users/:id
func DeactivateUserHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := auth.PrincipalFrom(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := s.DeactivateUser(c.UserContext(), p, id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
