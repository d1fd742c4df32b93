package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"restoran-pos/internal/config"
	"restoran-pos/internal/httpx"
	"restoran-pos/internal/models"
)

type RegisterOwnerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Role     models.UserRole `json:"role"`
	TenantID *uint           `json:"tenant_id"`
	BranchID *uint           `json:"branch_id"`
	IsActive bool            `json:"is_active"`
}

func ToUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		TenantID: u.TenantID,
		BranchID: u.BranchID,
		IsActive: u.IsActive,
	}
}

// HashPassword is shared with user provisioning.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// RegisterOwnerHandler bootstraps the single platform owner account.
func RegisterOwnerHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterOwnerRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))
		if body.Email == "" || body.Password == "" || body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "name, email and password are required")
		}

		var count int64
		if err := db.Model(&models.User{}).
			Where("role = ?", models.RolePlatformOwner).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusForbidden, "platform owner already exists")
		}

		hash, err := HashPassword(body.Password)
		if err != nil {
			return err
		}

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: hash,
			Role:         models.RolePlatformOwner,
			IsActive:     true,
		}
		if err := db.Create(&user).Error; err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(ToUserResponse(user))
	}
}

func LoginHandler(cfg *config.Config, db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := httpx.Body(c, &body); err != nil {
			return err
		}

		user, err := Authenticate(c.UserContext(), db, body.Email, body.Password)
		switch {
		case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserInactive):
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		case err != nil:
			return err
		}

		now := time.Now()
		token, err := GenerateToken(cfg.JWT, &user, now)
		if err != nil {
			return err
		}
		if err := db.Model(&user).Update("last_login", now).Error; err != nil {
			log.Warn("last_login not updated", zap.Uint("user_id", user.ID), zap.Error(err))
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user":  ToUserResponse(user),
		})
	}
}

func MeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := PrincipalFrom(c)
		if err != nil {
			return err
		}

		var user models.User
		if err := db.First(&user, p.ID).Error; err != nil {
			return err
		}

		response := fiber.Map{
			"user":                 ToUserResponse(user),
			"assigned_terminal_ids": p.AssignedTerminalIDs,
		}
		if user.BranchID != nil {
			var branch models.Branch
			if err := db.First(&branch, *user.BranchID).Error; err == nil {
				response["branch"] = fiber.Map{
					"id":      branch.ID,
					"name":    branch.Name,
					"code":    branch.Code,
					"address": branch.Address,
					"phone":   branch.Phone,
				}
			}
		}
		return c.JSON(response)
	}
}
