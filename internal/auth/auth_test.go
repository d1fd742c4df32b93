package auth

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restoran-pos/internal/config"
	"restoran-pos/internal/database/dbtest"
	"restoran-pos/internal/httpx"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

func testConfig() *config.Config {
	return &config.Config{JWT: config.JWTConfig{Secret: "0123456789abcdef0123456789abcdef", TTL: time.Hour}}
}

func seedCashier(t *testing.T, db *gorm.DB, active bool) models.User {
	t.Helper()
	tenant := models.Tenant{Name: "T", Email: "t@x", SubscriptionPlan: models.PlanBasic, IsActive: true}
	require.NoError(t, db.Create(&tenant).Error)
	branch := models.Branch{TenantID: tenant.ID, Name: "B", Code: "B1", IsActive: true}
	require.NoError(t, db.Create(&branch).Error)

	hash, err := HashPassword("secret")
	require.NoError(t, err)
	user := models.User{Name: "Cem", Email: "cem@x", PasswordHash: hash, Role: models.RoleCashier,
		TenantID: &tenant.ID, BranchID: &branch.ID, IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	if !active {
		require.NoError(t, db.Model(&user).Update("is_active", false).Error)
	}

	term := models.Terminal{TenantID: tenant.ID, BranchID: &branch.ID, AssignedToID: &user.ID,
		Name: "T1", DeviceID: "dev-1", DeviceType: models.TerminalTablet, AuthToken: "POS-abc",
		Status: models.TerminalOffline, IsActive: true}
	require.NoError(t, db.Create(&term).Error)
	return user
}

func newApp(cfg *config.Config, db *gorm.DB) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: httpx.ErrorHandler(zap.NewNop())})
	app.Post("/login", LoginHandler(cfg, db, zap.NewNop()))
	app.Get("/me", JWTMiddleware(cfg, db), func(c *fiber.Ctx) error {
		p, err := PrincipalFrom(c)
		if err != nil {
			return err
		}
		return c.JSON(p)
	})
	app.Get("/terminal", TerminalMiddleware(db), func(c *fiber.Ctx) error {
		tp, _, err := TerminalFrom(c)
		if err != nil {
			return err
		}
		return c.JSON(tp)
	})
	return app
}

func login(t *testing.T, app *fiber.App, email, password string) (int, string) {
	t.Helper()
	raw, _ := json.Marshal(LoginRequest{Email: email, Password: password})
	req := httptest.NewRequest("POST", "/login", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	var out struct {
		Token string `json:"token"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out.Token
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := testConfig()
	tid, bid := uint(3), uint(7)
	tok, err := GenerateToken(cfg.JWT, &models.User{ID: 9, Role: models.RoleBranchManager, TenantID: &tid, BranchID: &bid}, time.Now())
	require.NoError(t, err)

	claims, err := ParseToken(cfg.JWT.Secret, tok)
	require.NoError(t, err)
	assert.Equal(t, uint(9), claims.UserID)
	assert.Equal(t, models.RoleBranchManager, claims.Role)
	assert.Equal(t, uint(3), *claims.TenantID)

	_, err = ParseToken("another-secret-another-secret-xx", tok)
	assert.Error(t, err)

	expired, err := GenerateToken(cfg.JWT, &models.User{ID: 9}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = ParseToken(cfg.JWT.Secret, expired)
	assert.Error(t, err)
}

func TestLoginAndPrincipal(t *testing.T) {
	db := dbtest.Open(t)
	cfg := testConfig()
	user := seedCashier(t, db, true)
	app := newApp(cfg, db)

	status, _ := login(t, app, "cem@x", "wrong")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, token := login(t, app, " CEM@x ", "secret")
	require.Equal(t, fiber.StatusOK, status)
	require.NotEmpty(t, token)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var p scope.Principal
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, user.ID, p.ID)
	assert.Equal(t, models.RoleCashier, p.Role)
	assert.Len(t, p.AssignedTerminalIDs, 1)
}

func TestDeactivatedUserRejected(t *testing.T) {
	db := dbtest.Open(t)
	cfg := testConfig()
	user := seedCashier(t, db, false)
	app := newApp(cfg, db)

	status, _ := login(t, app, "cem@x", "secret")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	tok, err := GenerateToken(cfg.JWT, &user, time.Now())
	require.NoError(t, err)
	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestTerminalMiddleware(t *testing.T) {
	db := dbtest.Open(t)
	seedCashier(t, db, true)
	app := newApp(testConfig(), db)

	req := httptest.NewRequest("GET", "/terminal", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/terminal", nil)
	req.Header.Set(TerminalTokenHeader, "POS-abc")
	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var tp scope.TerminalPrincipal
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tp))
	assert.NotZero(t, tp.TerminalID)
}
