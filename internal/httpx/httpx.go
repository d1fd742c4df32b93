// Package httpx holds the fiber glue shared by every handler package.
package httpx

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"restoran-pos/internal/apperr"
)

// ErrorHandler renders apperr kinds and fiber errors as
// {"error": {"kind", "code", "message"}}.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"error": fiber.Map{"kind": kindForStatus(fe.Code), "message": fe.Message},
			})
		}

		var ae *apperr.Error
		if !errors.As(err, &ae) {
			ae = apperr.Internal("unexpected server error", err)
		}
		status := apperr.HTTPStatus(ae.Kind)
		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
			return c.Status(status).JSON(fiber.Map{
				"error": fiber.Map{"kind": apperr.KindInternal, "message": "unexpected server error"},
			})
		}
		return c.Status(status).JSON(fiber.Map{"error": ae})
	}
}

func kindForStatus(code int) apperr.Kind {
	switch code {
	case fiber.StatusBadRequest:
		return apperr.KindValidation
	case fiber.StatusNotFound:
		return apperr.KindNotFound
	case fiber.StatusUnauthorized, fiber.StatusForbidden:
		return apperr.KindPermissionDenied
	case fiber.StatusConflict:
		return apperr.KindInvalidTransition
	}
	return apperr.KindInternal
}

// ParamID parses a positive numeric route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid_id", "invalid "+name)
	}
	return uint(id), nil
}

// QueryUint parses an optional numeric query parameter.
func QueryUint(c *fiber.Ctx, name string) (*uint, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return nil, apperr.Validation("invalid_query", "invalid "+name)
	}
	u := uint(id)
	return &u, nil
}

// QueryDate parses an optional YYYY-MM-DD query parameter in UTC.
func QueryDate(c *fiber.Ctx, name string) (*time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, apperr.Validation("invalid_query", name+" must be YYYY-MM-DD")
	}
	return &t, nil
}

// Body parses the request body, mapping failures to a validation error.
func Body(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Validation("invalid_body", "invalid request body")
	}
	return nil
}
