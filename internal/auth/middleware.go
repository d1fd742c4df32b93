package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"restoran-pos/internal/config"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

const (
	CtxPrincipalKey         = "principal"
	CtxTerminalPrincipalKey = "terminal_principal"
	CtxTerminalTokenKey     = "terminal_token"

	TerminalTokenHeader = "X-POS-Token"
)

// JWTMiddleware authenticates the bearer token and loads the acting user so
// deactivated accounts and reassigned terminals take effect immediately.
func JWTMiddleware(cfg *config.Config, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing Authorization header")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "Authorization must be 'Bearer <token>'")
		}

		claims, err := ParseToken(cfg.JWT.Secret, parts[1])
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "user no longer exists")
			}
			return err
		}
		if !user.IsActive {
			return fiber.NewError(fiber.StatusUnauthorized, "user is deactivated")
		}

		p, err := LoadPrincipal(c.UserContext(), db, user)
		if err != nil {
			return err
		}
		if err := p.Validate(); err != nil {
			return fiber.NewError(fiber.StatusForbidden, "account is misconfigured")
		}
		c.Locals(CtxPrincipalKey, p)
		return c.Next()
	}
}

// TerminalMiddleware authenticates a terminal by its X-POS-Token header.
func TerminalMiddleware(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get(TerminalTokenHeader)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing "+TerminalTokenHeader+" header")
		}

		var t models.Terminal
		err := db.WithContext(c.UserContext()).
			Where("auth_token = ? AND is_active = ?", token, true).
			First(&t).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "invalid terminal token")
			}
			return err
		}

		c.Locals(CtxTerminalPrincipalKey, scope.TerminalPrincipal{
			TerminalID: t.ID,
			TenantID:   t.TenantID,
			BranchID:   t.BranchID,
		})
		c.Locals(CtxTerminalTokenKey, token)
		return c.Next()
	}
}

// PrincipalFrom returns the principal stored by JWTMiddleware.
func PrincipalFrom(c *fiber.Ctx) (scope.Principal, error) {
	p, ok := c.Locals(CtxPrincipalKey).(scope.Principal)
	if !ok {
		return scope.Principal{}, fiber.NewError(fiber.StatusUnauthorized, "not authenticated")
	}
	return p, nil
}

// TerminalFrom returns the terminal principal and the token it presented.
func TerminalFrom(c *fiber.Ctx) (scope.TerminalPrincipal, string, error) {
	tp, ok := c.Locals(CtxTerminalPrincipalKey).(scope.TerminalPrincipal)
	if !ok {
		return scope.TerminalPrincipal{}, "", fiber.NewError(fiber.StatusUnauthorized, "terminal not authenticated")
	}
	token, _ := c.Locals(CtxTerminalTokenKey).(string)
	return tp, token, nil
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := PrincipalFrom(c)
		if err != nil {
			return err
		}
		for _, r := range allowedRoles {
			if r == p.Role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "you are not allowed to perform this action")
	}
}
