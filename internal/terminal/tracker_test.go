package terminal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"restoran-pos/internal/apperr"
	"restoran-pos/internal/auth"
	"restoran-pos/internal/database/dbtest"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	db      *gorm.DB
	tracker *Tracker
	clock   *clock
	tenant  models.Tenant
	other   models.Tenant
	branch  models.Branch
	branch2 models.Branch
	cashier models.User
	manager models.User
	term    models.Terminal
}

func (f *fixture) principal(u models.User) scope.Principal {
	return scope.PrincipalFromUser(u, nil)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	f := &fixture{db: db, clock: &clock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}}
	f.tracker = NewTracker(db, zap.NewNop(), Options{Now: f.clock.now, SiteURL: "https://pos.example.com"})

	f.tenant = models.Tenant{Name: "Lokanta", Email: "a@x", SubscriptionPlan: models.PlanProfessional, MaxBranches: 5, MaxDevices: 3, IsActive: true}
	f.other = models.Tenant{Name: "Other", Email: "b@x", SubscriptionPlan: models.PlanBasic, MaxBranches: 1, MaxDevices: 2, IsActive: true}
	require.NoError(t, db.Create(&f.tenant).Error)
	require.NoError(t, db.Create(&f.other).Error)

	f.branch = models.Branch{TenantID: f.tenant.ID, Name: "Kadikoy", Code: "KDK", IsActive: true}
	f.branch2 = models.Branch{TenantID: f.tenant.ID, Name: "Besiktas", Code: "BJK", IsActive: true}
	require.NoError(t, db.Create(&f.branch).Error)
	require.NoError(t, db.Create(&f.branch2).Error)

	f.cashier = models.User{Name: "Cem", Email: "c@x", PasswordHash: "x", Role: models.RoleCashier,
		TenantID: &f.tenant.ID, BranchID: &f.branch.ID, IsActive: true}
	f.manager = models.User{Name: "Mert", Email: "m@x", PasswordHash: "x", Role: models.RoleBranchManager,
		TenantID: &f.tenant.ID, BranchID: &f.branch.ID, IsActive: true}
	require.NoError(t, db.Create(&f.cashier).Error)
	require.NoError(t, db.Create(&f.manager).Error)

	term, err := f.tracker.Create(context.Background(), f.principal(f.manager), CreateInput{
		Name: "Kasa 1", DeviceID: "KDK-01", DeviceType: models.TerminalTablet, BranchID: &f.branch.ID,
	})
	require.NoError(t, err)
	f.term = term
	return f
}

func (f *fixture) reload(t *testing.T) models.Terminal {
	t.Helper()
	var out models.Terminal
	require.NoError(t, f.db.First(&out, f.term.ID).Error)
	return out
}

func TestCreateDerivesTenantFromBranch(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, f.tenant.ID, f.term.TenantID)
	assert.Equal(t, models.TerminalOffline, f.term.Status)
	assert.True(t, f.term.IsActive)
	assert.Regexp(t, `^POS-[0-9a-f]{32}$`, f.term.AuthToken)
}

func TestCreateRejectsTenantBranchDisagreement(t *testing.T) {
	f := newFixture(t)
	owner := scope.Principal{ID: 99, Role: models.RolePlatformOwner}
	_, err := f.tracker.Create(context.Background(), owner, CreateInput{
		Name: "X", DeviceID: "X-1", TenantID: &f.other.ID, BranchID: &f.branch.ID,
	})
	require.Error(t, err)
	assert.Equal(t, "tenant_branch_mismatch", err.(*apperr.Error).Code)
}

func TestCreateOutsideBranchDenied(t *testing.T) {
	f := newFixture(t)
	_, err := f.tracker.Create(context.Background(), f.principal(f.manager), CreateInput{
		Name: "X", DeviceID: "BJK-01", BranchID: &f.branch2.ID,
	})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))

	_, err = f.tracker.Create(context.Background(), f.principal(f.cashier), CreateInput{
		Name: "X", DeviceID: "KDK-09", BranchID: &f.branch.ID,
	})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))
}

func TestCreateEnforcesPlanLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.principal(f.manager)
	for _, id := range []string{"KDK-02", "KDK-03"} {
		_, err := f.tracker.Create(ctx, p, CreateInput{Name: id, DeviceID: id, BranchID: &f.branch.ID})
		require.NoError(t, err)
	}
	_, err := f.tracker.Create(ctx, p, CreateInput{Name: "KDK-04", DeviceID: "KDK-04", BranchID: &f.branch.ID})
	require.Error(t, err)
	assert.Equal(t, "plan_limit", err.(*apperr.Error).Code)
}

func TestHeartbeatBringsOnline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, changed, err := f.tracker.Heartbeat(ctx, f.term.ID, "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.TerminalOnline, got.Status)
	assert.Equal(t, "10.0.0.5", got.IPAddress)
	require.NotNil(t, got.LastSeen)
	assert.True(t, f.tracker.IsOnline(got))

	// empty ip keeps the previous one
	got, _, err = f.tracker.Heartbeat(ctx, f.term.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", got.IPAddress)
}

// Heartbeats do not lift maintenance or suspension; the record comes back
// unchanged and the call reports it was not applied.
func TestHeartbeatIgnoredInMaintenanceAndSuspended(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := scope.Principal{ID: 50, Role: models.RoleTenantAdmin, TenantID: &f.tenant.ID}

	for _, st := range []models.TerminalStatus{models.TerminalMaintenance, models.TerminalSuspended} {
		_, err := f.tracker.SetStatus(ctx, admin, f.term.ID, st)
		require.NoError(t, err)
		before := f.reload(t)

		got, changed, err := f.tracker.Heartbeat(ctx, f.term.ID, "10.9.9.9")
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, st, got.Status)
		after := f.reload(t)
		assert.Equal(t, before.Status, after.Status)
		assert.Equal(t, before.IPAddress, after.IPAddress)
		assert.Nil(t, after.LastSeen)
	}
}

func TestOnlineWindowBoundary(t *testing.T) {
	seen := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	term := models.Terminal{Status: models.TerminalOnline, LastSeen: &seen}

	assert.True(t, IsOnline(term, seen.Add(4*time.Minute+59*time.Second)))
	assert.False(t, IsOnline(term, seen.Add(5*time.Minute)), "exactly five minutes is offline")
	assert.False(t, IsOnline(term, seen.Add(6*time.Minute)))

	term.Status = models.TerminalMaintenance
	assert.False(t, IsOnline(term, seen))
	term.Status = models.TerminalOnline
	term.LastSeen = nil
	assert.False(t, IsOnline(term, seen))
}

func TestLogoutRequiresToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.tracker.Heartbeat(ctx, f.term.ID, "")
	require.NoError(t, err)

	_, err = f.tracker.Logout(ctx, f.term.ID, "POS-wrong")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))
	assert.Equal(t, "invalid_terminal_token", err.(*apperr.Error).Code)
	assert.Equal(t, models.TerminalOnline, f.reload(t).Status)

	got, err := f.tracker.Logout(ctx, f.term.ID, f.term.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, models.TerminalOffline, got.Status)
}

func TestLoginSuspendedMutatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := scope.Principal{ID: 50, Role: models.RoleTenantAdmin, TenantID: &f.tenant.ID}
	_, err := f.tracker.SetStatus(ctx, admin, f.term.ID, models.TerminalSuspended)
	require.NoError(t, err)
	before := f.reload(t)

	f.clock.advance(time.Minute)
	_, err = f.tracker.Login(ctx, LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01", AuthToken: f.term.AuthToken, IP: "1.2.3.4"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDeviceSuspended))

	after := f.reload(t)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.LastSeen, after.LastSeen)
	assert.Equal(t, before.IPAddress, after.IPAddress)

	var logins int64
	require.NoError(t, f.db.Model(&models.TerminalLog{}).Where("log_type = ?", models.TerminalLogLogin).Count(&logins).Error)
	assert.Zero(t, logins)
}

func TestLoginTenantMismatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.tracker.Login(context.Background(), LoginInput{TenantID: f.other.ID, DeviceID: "KDK-01", AuthToken: f.term.AuthToken})
	assert.True(t, apperr.Is(err, apperr.KindTenantMismatch))
	assert.Equal(t, models.TerminalOffline, f.reload(t).Status)
}

func TestLoginUnknownOrInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tracker.Login(ctx, LoginInput{TenantID: f.tenant.ID, DeviceID: "nope", AuthToken: "POS-x"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	admin := scope.Principal{ID: 50, Role: models.RoleTenantAdmin, TenantID: &f.tenant.ID}
	_, err = f.tracker.SetActive(ctx, admin, f.term.ID, false)
	require.NoError(t, err)
	_, err = f.tracker.Login(ctx, LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01", AuthToken: f.term.AuthToken})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t)
	res, err := f.tracker.Login(context.Background(), LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01", AuthToken: f.term.AuthToken, IP: "1.2.3.4"})
	require.NoError(t, err)
	assert.Equal(t, models.TerminalOnline, res.Terminal.Status)
	require.NotNil(t, res.Terminal.LastSeen)
	assert.True(t, f.clock.t.Equal(*res.Terminal.LastSeen))
	require.NotNil(t, res.Branch)
	assert.Equal(t, "KDK", res.Branch.Code)
	assert.Equal(t, "https://pos.example.com/pos/tenants/1/devices/KDK-01/login/", res.PublicURL)

	_, err = f.tracker.Login(context.Background(), LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01", AuthToken: "POS-old"})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))
}

func TestRegenerateTokenInvalidatesOld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.term.AuthToken

	got, err := f.tracker.RegenerateToken(ctx, f.principal(f.manager), f.term.ID)
	require.NoError(t, err)
	assert.NotEqual(t, old, got.AuthToken)

	_, err = f.tracker.Logout(ctx, f.term.ID, old)
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))
	_, err = f.tracker.Login(ctx, LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01", AuthToken: old})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))
}

func TestAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.principal(f.manager)

	_, err := f.tracker.Assign(ctx, p, f.term.ID, f.manager.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "managers are not visible users to a manager")

	admin := scope.Principal{ID: 50, Role: models.RoleTenantAdmin, TenantID: &f.tenant.ID}
	_, err = f.tracker.Assign(ctx, admin, f.term.ID, f.manager.ID)
	require.Error(t, err)
	assert.Equal(t, "role_mismatch", err.(*apperr.Error).Code)

	other := models.User{Name: "Ece", Email: "e@x", PasswordHash: "x", Role: models.RoleCashier,
		TenantID: &f.tenant.ID, BranchID: &f.branch2.ID, IsActive: true}
	require.NoError(t, f.db.Create(&other).Error)
	_, err = f.tracker.Assign(ctx, admin, f.term.ID, other.ID)
	require.Error(t, err)
	assert.Equal(t, "branch_mismatch", err.(*apperr.Error).Code)

	got, err := f.tracker.Assign(ctx, p, f.term.ID, f.cashier.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AssignedToID)
	assert.Equal(t, f.cashier.ID, *got.AssignedToID)

	got, err = f.tracker.Unassign(ctx, p, f.term.ID)
	require.NoError(t, err)
	assert.Nil(t, got.AssignedToID)
}

func TestScopedAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.SetStatus(ctx, f.principal(f.cashier), f.term.ID, models.TerminalMaintenance)
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "unassigned terminal is invisible to the cashier")

	foreign := scope.Principal{ID: 77, Role: models.RoleTenantAdmin, TenantID: &f.other.ID}
	_, err = f.tracker.Get(ctx, foreign, f.term.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = f.tracker.Delete(ctx, f.principal(f.manager), f.term.ID)
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))

	_, err = f.tracker.SetStatus(ctx, f.principal(f.manager), f.term.ID, "broken")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRequireActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tracker.RequireActive(ctx, f.term.ID)
	require.NoError(t, err)

	_, err = f.tracker.SetStatus(ctx, f.principal(f.manager), f.term.ID, models.TerminalMaintenance)
	require.NoError(t, err)
	_, err = f.tracker.RequireActive(ctx, f.term.ID)
	require.Error(t, err)
	assert.Equal(t, "terminal_inactive", err.(*apperr.Error).Code)

	_, err = f.tracker.RequireActive(ctx, 9999)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestStatsAndOnlineList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := scope.Principal{ID: 50, Role: models.RoleTenantAdmin, TenantID: &f.tenant.ID}

	second, err := f.tracker.Create(ctx, admin, CreateInput{Name: "Kasa 2", DeviceID: "BJK-01", DeviceType: models.TerminalKiosk, BranchID: &f.branch2.ID})
	require.NoError(t, err)
	_, _, err = f.tracker.Heartbeat(ctx, f.term.ID, "")
	require.NoError(t, err)
	_, _, err = f.tracker.Heartbeat(ctx, second.ID, "")
	require.NoError(t, err)

	f.clock.advance(3 * time.Minute)
	_, _, err = f.tracker.Heartbeat(ctx, second.ID, "")
	require.NoError(t, err)
	f.clock.advance(3 * time.Minute)

	online, err := f.tracker.OnlineList(ctx, admin)
	require.NoError(t, err)
	require.Len(t, online, 1)
	assert.Equal(t, second.ID, online[0].ID)

	st, err := f.tracker.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Online)
	assert.Equal(t, 1, st.Offline)
	assert.Equal(t, 2, st.ByStatus[models.TerminalOnline], "stale online status still counted by status")
	assert.Equal(t, 1, st.ByType[models.TerminalKiosk])
	assert.Len(t, st.ByBranch, 2)

	mst, err := f.tracker.Stats(ctx, f.principal(f.manager))
	require.NoError(t, err)
	assert.Equal(t, 1, mst.Total)
}

func TestLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _, err := f.tracker.Heartbeat(ctx, f.term.ID, "")
	require.NoError(t, err)
	_, err = f.tracker.Logout(ctx, f.term.ID, f.term.AuthToken)
	require.NoError(t, err)

	all, err := f.tracker.Logs(ctx, f.principal(f.manager), f.term.ID, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	logouts, err := f.tracker.Logs(ctx, f.principal(f.manager), f.term.ID, models.TerminalLogLogout, 10)
	require.NoError(t, err)
	require.Len(t, logouts, 1)
	assert.Equal(t, models.TerminalLogLogout, logouts[0].LogType)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://lokanta.com/pos/tenants/3/devices/K1/login/", PublicURL("", "lokanta.com", 3, "K1"))
	assert.Equal(t, "http://lokanta.com/pos/tenants/3/devices/K1/login/", PublicURL("https://x", "http://lokanta.com/", 3, "K1"))
	assert.Equal(t, "https://site.io/api/pos/tenants/3/devices/K1/login/", PublicURL("https://site.io/api/", "", 3, "K1"))
	assert.Equal(t, "/pos/tenants/3/devices/K1/login/", PublicURL("", "", 3, "K1"))
}

func (f *fixture) setPassword(t *testing.T, u models.User, password string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", u.ID).Update("password_hash", hash).Error)
}

func TestLoginGatesRunBeforeCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := scope.Principal{ID: 50, Role: models.RoleTenantAdmin, TenantID: &f.tenant.ID}
	_, err := f.tracker.SetStatus(ctx, admin, f.term.ID, models.TerminalSuspended)
	require.NoError(t, err)

	_, err = f.tracker.Login(ctx, LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01"})
	assert.True(t, apperr.Is(err, apperr.KindDeviceSuspended))

	_, err = f.tracker.Login(ctx, LoginInput{TenantID: f.other.ID, DeviceID: "KDK-01"})
	assert.True(t, apperr.Is(err, apperr.KindTenantMismatch))

	_, err = f.tracker.Login(ctx, LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01", Email: "c@x", Password: "wrong"})
	assert.True(t, apperr.Is(err, apperr.KindDeviceSuspended))
}

func TestLoginWithoutCredentials(t *testing.T) {
	f := newFixture(t)
	_, err := f.tracker.Login(context.Background(), LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, models.TerminalOffline, f.reload(t).Status)
}

func TestStaffLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setPassword(t, f.cashier, "kasa-1234")

	res, err := f.tracker.Login(ctx, LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01", Email: "C@x ", Password: "kasa-1234", IP: "10.0.0.7"})
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Equal(t, f.cashier.ID, res.User.ID)
	assert.Equal(t, models.TerminalOnline, res.Terminal.Status)
	assert.True(t, f.clock.t.Equal(res.LoggedInAt))

	var entry models.TerminalLog
	require.NoError(t, f.db.Where("log_type = ?", models.TerminalLogLogin).First(&entry).Error)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, f.cashier.ID, *entry.UserID)
}

func TestStaffLoginRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setPassword(t, f.cashier, "kasa-1234")

	_, err := f.tracker.Login(ctx, LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01", Email: "c@x", Password: "nope"})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))
	_, err = f.tracker.Login(ctx, LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01", Email: "c@x"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, models.TerminalOffline, f.reload(t).Status)

	// cashier from another branch
	far := models.User{Name: "Ece", Email: "e@x", Role: models.RoleCashier,
		TenantID: &f.tenant.ID, BranchID: &f.branch2.ID, IsActive: true}
	require.NoError(t, f.db.Create(&far).Error)
	f.setPassword(t, far, "kasa-1234")
	_, err = f.tracker.Login(ctx, LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01", Email: "e@x", Password: "kasa-1234"})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))

	// terminal assigned to a colleague
	mate := models.User{Name: "Ayse", Email: "ay@x", Role: models.RoleCashier,
		TenantID: &f.tenant.ID, BranchID: &f.branch.ID, IsActive: true}
	require.NoError(t, f.db.Create(&mate).Error)
	_, err = f.tracker.Assign(ctx, f.principal(f.manager), f.term.ID, mate.ID)
	require.NoError(t, err)
	_, err = f.tracker.Login(ctx, LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01", Email: "c@x", Password: "kasa-1234"})
	assert.True(t, apperr.Is(err, apperr.KindPermissionDenied))

	// the branch manager still may
	f.setPassword(t, f.manager, "yonetici-1")
	res, err := f.tracker.Login(ctx, LoginInput{TenantID: f.tenant.ID, DeviceID: "KDK-01", Email: "m@x", Password: "yonetici-1"})
	require.NoError(t, err)
	assert.Equal(t, f.manager.ID, res.User.ID)
}
