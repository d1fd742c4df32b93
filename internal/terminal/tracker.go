// Package terminal tracks POS terminal liveness, authentication and
// provisioning.
package terminal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"restoran-pos/internal/apperr"
	"restoran-pos/internal/audit"
	"restoran-pos/internal/auth"
	"restoran-pos/internal/ident"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

// DefaultOnlineWindow is how long a heartbeat keeps a terminal online.
const DefaultOnlineWindow = 5 * time.Minute

// OnlineWithin reports whether t is online at now: its status says so and
// the last heartbeat is strictly younger than window.
func OnlineWithin(t models.Terminal, now time.Time, window time.Duration) bool {
	if t.Status != models.TerminalOnline || t.LastSeen == nil {
		return false
	}
	return now.Sub(*t.LastSeen) < window
}

func IsOnline(t models.Terminal, now time.Time) bool {
	return OnlineWithin(t, now, DefaultOnlineWindow)
}

type Options struct {
	OnlineWindow time.Duration
	SiteURL      string
	Now          func() time.Time
}

type Tracker struct {
	db      *gorm.DB
	repo    *Repository
	log     *zap.Logger
	window  time.Duration
	siteURL string
	now     func() time.Time
}

func NewTracker(db *gorm.DB, log *zap.Logger, opts Options) *Tracker {
	if opts.OnlineWindow <= 0 {
		opts.OnlineWindow = DefaultOnlineWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Tracker{
		db:      db,
		repo:    NewRepository(db),
		log:     log,
		window:  opts.OnlineWindow,
		siteURL: opts.SiteURL,
		now:     opts.Now,
	}
}

func (s *Tracker) IsOnline(t models.Terminal) bool {
	return OnlineWithin(t, s.now(), s.window)
}

// Heartbeat marks an offline or online terminal online. Terminals in
// maintenance or suspended are returned unchanged with changed=false.
func (s *Tracker) Heartbeat(ctx context.Context, terminalID uint, ip string) (t models.Terminal, changed bool, err error) {
	t, err = s.repo.FindByID(ctx, terminalID)
	if err != nil {
		return t, false, err
	}
	if !t.IsActive {
		return t, false, apperr.Validation("terminal_inactive", "terminal is deactivated")
	}
	if t.Status == models.TerminalMaintenance || t.Status == models.TerminalSuspended {
		s.log.Debug("heartbeat ignored",
			zap.Uint("terminal_id", t.ID), zap.String("status", string(t.Status)))
		return t, false, nil
	}

	wasOnline := s.IsOnline(t)
	fields := map[string]any{"status": models.TerminalOnline, "last_seen": s.now()}
	if ip != "" {
		fields["ip_address"] = ip
	}
	t, err = s.repo.Updates(ctx, t.ID, fields)
	if err != nil {
		return t, false, err
	}
	if !wasOnline {
		s.appendLog(ctx, t.ID, models.TerminalLogOnline, "terminal came online", nil, map[string]any{"ip_address": ip})
	}
	return t, true, nil
}

// Logout takes an online terminal offline. The terminal must present its
// current auth token. Maintenance and suspended states are left alone.
func (s *Tracker) Logout(ctx context.Context, terminalID uint, token string) (models.Terminal, error) {
	t, err := s.repo.FindByID(ctx, terminalID)
	if err != nil {
		return t, err
	}
	if token == "" || token != t.AuthToken {
		return t, apperr.New(apperr.KindPermissionDenied, "invalid_terminal_token", "invalid terminal token")
	}
	if t.Status != models.TerminalOnline {
		return t, nil
	}
	t, err = s.repo.Updates(ctx, t.ID, map[string]any{"status": models.TerminalOffline})
	if err != nil {
		return t, err
	}
	s.appendLog(ctx, t.ID, models.TerminalLogLogout, "terminal logged out", nil, nil)
	return t, nil
}

// LoginInput carries either staff credentials (Email and Password) or the
// terminal's own AuthToken.
type LoginInput struct {
	TenantID  uint
	DeviceID  string
	AuthToken string
	Email     string
	Password  string
	IP        string
}

type LoginResult struct {
	Terminal   models.Terminal
	Tenant     models.Tenant
	Branch     *models.Branch
	User       *models.User // set for credential logins
	PublicURL  string
	LoggedInAt time.Time
}

// Login authenticates a terminal against a tenant, either with staff
// credentials or with the terminal token. Tenant and suspension gates run
// before any credential check. Every rejection happens before any write, so
// a refused login leaves the terminal untouched.
func (s *Tracker) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	var res LoginResult

	tenant, err := s.repo.FindTenant(ctx, in.TenantID)
	if err != nil {
		return res, err
	}
	if !tenant.IsActive {
		return res, apperr.NotFound("tenant")
	}

	t, err := s.repo.FindByDeviceID(ctx, in.DeviceID)
	if err != nil {
		return res, err
	}
	if !t.IsActive {
		return res, apperr.NotFound("terminal")
	}

	var branch *models.Branch
	if t.BranchID != nil {
		b, err := s.repo.FindBranch(ctx, *t.BranchID)
		if err != nil {
			return res, err
		}
		branch = &b
	}

	owner := t.TenantID
	if owner == 0 && branch != nil {
		owner = branch.TenantID
	}
	if owner != tenant.ID {
		return res, apperr.TenantMismatch()
	}
	if t.Status == models.TerminalSuspended {
		return res, apperr.DeviceSuspended()
	}

	var user *models.User
	switch {
	case in.Email != "" || in.Password != "":
		u, err := s.staffLogin(ctx, t, in.Email, in.Password)
		if err != nil {
			return res, err
		}
		user = &u
	case in.AuthToken == "":
		return res, apperr.Validation("credentials_required", "terminal token or staff credentials are required")
	case in.AuthToken != t.AuthToken:
		return res, apperr.New(apperr.KindPermissionDenied, "invalid_terminal_token", "invalid terminal credentials")
	}

	now := s.now()
	fields := map[string]any{"status": models.TerminalOnline, "last_seen": now}
	if in.IP != "" {
		fields["ip_address"] = in.IP
	}
	t, err = s.repo.Updates(ctx, t.ID, fields)
	if err != nil {
		return res, err
	}
	var userID *uint
	if user != nil {
		userID = &user.ID
	}
	s.appendLog(ctx, t.ID, models.TerminalLogLogin, "terminal logged in", userID, map[string]any{"ip_address": in.IP})
	s.log.Info("terminal login",
		zap.Uint("terminal_id", t.ID), zap.Uint("tenant_id", tenant.ID), zap.String("ip", in.IP),
		zap.Bool("staff", user != nil))

	return LoginResult{
		Terminal:   t,
		Tenant:     tenant,
		Branch:     branch,
		User:       user,
		PublicURL:  PublicURL(s.siteURL, tenant.Domain, tenant.ID, t.DeviceID),
		LoggedInAt: now,
	}, nil
}

// staffLogin verifies a staff member's credentials and their access to t.
// Access is the terminal read scope, widened for cashiers to unassigned
// terminals of their own branch, the same terminals they may sell on.
func (s *Tracker) staffLogin(ctx context.Context, t models.Terminal, email, password string) (models.User, error) {
	if email == "" || password == "" {
		return models.User{}, apperr.Validation("credentials_required", "email and password are required")
	}
	user, err := auth.Authenticate(ctx, s.db, email, password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserInactive):
		return models.User{}, apperr.New(apperr.KindPermissionDenied, "invalid_credentials", err.Error())
	case err != nil:
		return models.User{}, apperr.Internal("authenticate", err)
	}

	p, err := auth.LoadPrincipal(ctx, s.db, user)
	if err != nil {
		return models.User{}, apperr.Internal("load principal", err)
	}
	r := scope.TerminalResource(t)
	if scope.Resolve(p, scope.ActionRead, scope.ClassTerminal, &r).Allow {
		return user, nil
	}
	if p.Role == models.RoleCashier && t.AssignedToID == nil &&
		p.BranchID != nil && t.BranchID != nil && *p.BranchID == *t.BranchID {
		return user, nil
	}
	return models.User{}, apperr.New(apperr.KindPermissionDenied, "not_authorized", "not authorized for this terminal")
}

// SetStatus is the administrative override; any valid status may follow
// any other.
func (s *Tracker) SetStatus(ctx context.Context, p scope.Principal, terminalID uint, status models.TerminalStatus) (models.Terminal, error) {
	if !status.Valid() {
		return models.Terminal{}, apperr.Validation("invalid_status", "unknown terminal status "+string(status))
	}
	before, err := s.authorize(ctx, p, scope.ActionUpdate, terminalID)
	if err != nil {
		return before, err
	}
	t, err := s.repo.Updates(ctx, terminalID, map[string]any{"status": status})
	if err != nil {
		return t, err
	}
	s.appendLog(ctx, t.ID, models.TerminalLogStatus,
		fmt.Sprintf("status changed from %s to %s", before.Status, status), &p.ID, nil)
	s.audit(p, t, models.AuditActionTransition, "terminal status changed",
		map[string]any{"status": before.Status}, map[string]any{"status": status})
	return t, nil
}

// SetActive activates or deactivates a terminal. Deactivation also takes it
// offline.
func (s *Tracker) SetActive(ctx context.Context, p scope.Principal, terminalID uint, active bool) (models.Terminal, error) {
	before, err := s.authorize(ctx, p, scope.ActionUpdate, terminalID)
	if err != nil {
		return before, err
	}
	fields := map[string]any{"is_active": active}
	if !active {
		fields["status"] = models.TerminalOffline
	}
	t, err := s.repo.Updates(ctx, terminalID, fields)
	if err != nil {
		return t, err
	}
	s.audit(p, t, models.AuditActionUpdate, "terminal activation changed",
		map[string]any{"is_active": before.IsActive}, map[string]any{"is_active": active})
	return t, nil
}

// RegenerateToken issues a new auth token; the previous one stops working
// immediately.
func (s *Tracker) RegenerateToken(ctx context.Context, p scope.Principal, terminalID uint) (models.Terminal, error) {
	if _, err := s.authorize(ctx, p, scope.ActionUpdate, terminalID); err != nil {
		return models.Terminal{}, err
	}
	t, err := s.repo.Updates(ctx, terminalID, map[string]any{"auth_token": ident.NewTerminalToken()})
	if err != nil {
		return t, err
	}
	s.appendLog(ctx, t.ID, models.TerminalLogToken, "auth token regenerated", &p.ID, nil)
	s.audit(p, t, models.AuditActionUpdate, "terminal token regenerated", nil, nil)
	return t, nil
}

// Assign hands the terminal to a cashier of the same branch.
func (s *Tracker) Assign(ctx context.Context, p scope.Principal, terminalID, userID uint) (models.Terminal, error) {
	t, err := s.authorize(ctx, p, scope.ActionUpdate, terminalID)
	if err != nil {
		return t, err
	}
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return t, err
	}
	ur := scope.UserResource(user)
	if !scope.Resolve(p, scope.ActionRead, scope.ClassUser, &ur).Allow {
		return t, apperr.NotFound("user")
	}
	if err := scope.ValidateAssignment(user, t); err != nil {
		return t, err
	}

	prev := t.AssignedToID
	t, err = s.repo.Updates(ctx, terminalID, map[string]any{"assigned_to_id": user.ID})
	if err != nil {
		return t, err
	}
	s.appendLog(ctx, t.ID, models.TerminalLogAssign, "terminal assigned to "+user.Name, &p.ID, map[string]any{"user_id": user.ID})
	s.audit(p, t, models.AuditActionUpdate, "terminal assigned",
		map[string]any{"assigned_to_id": prev}, map[string]any{"assigned_to_id": user.ID})
	return t, nil
}

func (s *Tracker) Unassign(ctx context.Context, p scope.Principal, terminalID uint) (models.Terminal, error) {
	t, err := s.authorize(ctx, p, scope.ActionUpdate, terminalID)
	if err != nil {
		return t, err
	}
	if t.AssignedToID == nil {
		return t, nil
	}
	prev := *t.AssignedToID
	t, err = s.repo.Updates(ctx, terminalID, map[string]any{"assigned_to_id": nil})
	if err != nil {
		return t, err
	}
	s.appendLog(ctx, t.ID, models.TerminalLogAssign, "terminal unassigned", &p.ID, map[string]any{"user_id": prev})
	return t, nil
}

// RequireActive returns the terminal when it may take orders.
func (s *Tracker) RequireActive(ctx context.Context, terminalID uint) (models.Terminal, error) {
	t, err := s.repo.FindByID(ctx, terminalID)
	if err != nil {
		return t, err
	}
	if !t.IsActive || t.Status == models.TerminalSuspended || t.Status == models.TerminalMaintenance {
		return t, apperr.Validation("terminal_inactive", "terminal cannot take orders")
	}
	return t, nil
}

type CreateInput struct {
	Name       string
	DeviceID   string
	DeviceType models.TerminalType
	TenantID   *uint
	BranchID   *uint
	IPAddress  string
}

// Create provisions a terminal. The tenant comes from the branch when one is
// given; if both are given they must agree.
func (s *Tracker) Create(ctx context.Context, p scope.Principal, in CreateInput) (models.Terminal, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.DeviceID = strings.TrimSpace(in.DeviceID)
	if in.Name == "" || in.DeviceID == "" {
		return models.Terminal{}, apperr.Validation("required", "name and device_id are required")
	}
	if in.DeviceType == "" {
		in.DeviceType = models.TerminalDesktop
	}
	switch in.DeviceType {
	case models.TerminalTablet, models.TerminalDesktop, models.TerminalMobile, models.TerminalKiosk:
	default:
		return models.Terminal{}, apperr.Validation("invalid_device_type", "unknown device type "+string(in.DeviceType))
	}

	tenantID := in.TenantID
	if tenantID == nil {
		tenantID = p.TenantID
	}
	if in.BranchID != nil {
		b, err := s.repo.FindBranch(ctx, *in.BranchID)
		if err != nil {
			return models.Terminal{}, err
		}
		if tenantID != nil && *tenantID != b.TenantID {
			return models.Terminal{}, apperr.Validation("tenant_branch_mismatch", "branch belongs to another tenant")
		}
		tenantID = &b.TenantID
	}
	if tenantID == nil {
		return models.Terminal{}, apperr.Validation("tenant_required", "tenant_id or branch_id is required")
	}

	t := models.Terminal{
		TenantID:   *tenantID,
		BranchID:   in.BranchID,
		Name:       in.Name,
		DeviceID:   in.DeviceID,
		DeviceType: in.DeviceType,
		AuthToken:  ident.NewTerminalToken(),
		Status:     models.TerminalOffline,
		IsActive:   true,
		IPAddress:  in.IPAddress,
	}
	r := scope.TerminalResource(t)
	if err := scope.Resolve(p, scope.ActionCreate, scope.ClassTerminal, &r).Err(); err != nil {
		return models.Terminal{}, err
	}

	tenant, err := s.repo.FindTenant(ctx, t.TenantID)
	if err != nil {
		return models.Terminal{}, err
	}
	if tenant.MaxDevices != models.Unlimited {
		n, err := s.repo.CountByTenant(ctx, tenant.ID)
		if err != nil {
			return models.Terminal{}, apperr.Internal("count terminals", err)
		}
		if n >= int64(tenant.MaxDevices) {
			return models.Terminal{}, apperr.Validation("plan_limit",
				fmt.Sprintf("plan allows at most %d terminals", tenant.MaxDevices))
		}
	}
	if _, err := s.repo.FindByDeviceID(ctx, t.DeviceID); err == nil {
		return models.Terminal{}, apperr.Validation("duplicate_device", "device_id already registered")
	}

	if err := s.repo.Create(ctx, &t); err != nil {
		return t, apperr.Internal("create terminal", err)
	}
	s.audit(p, t, models.AuditActionCreate, "terminal created", nil, map[string]any{
		"name": t.Name, "device_id": t.DeviceID, "branch_id": t.BranchID,
	})
	s.log.Info("terminal created", zap.Uint("terminal_id", t.ID), zap.Uint("tenant_id", t.TenantID))
	return t, nil
}

func (s *Tracker) Delete(ctx context.Context, p scope.Principal, terminalID uint) error {
	t, err := s.authorize(ctx, p, scope.ActionDelete, terminalID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, terminalID); err != nil {
		return apperr.Internal("delete terminal", err)
	}
	s.audit(p, t, models.AuditActionDelete, "terminal deleted", map[string]any{"device_id": t.DeviceID}, nil)
	return nil
}

func (s *Tracker) Get(ctx context.Context, p scope.Principal, terminalID uint) (models.Terminal, error) {
	return s.authorize(ctx, p, scope.ActionRead, terminalID)
}

// Lookup finds a terminal by tenant and device id, as used by the
// terminal-facing routes.
func (s *Tracker) Lookup(ctx context.Context, tenantID uint, deviceID string) (models.Terminal, error) {
	t, err := s.repo.FindByDeviceID(ctx, deviceID)
	if err != nil {
		return t, err
	}
	if t.TenantID != tenantID {
		return models.Terminal{}, apperr.NotFound("terminal")
	}
	return t, nil
}

func (s *Tracker) List(ctx context.Context, p scope.Principal, q ListQuery) ([]models.Terminal, error) {
	d := scope.Resolve(p, scope.ActionRead, scope.ClassTerminal, nil)
	list, err := s.repo.List(ctx, d.Filter, q)
	if err != nil {
		return nil, apperr.Internal("list terminals", err)
	}
	return list, nil
}

// OnlineList returns the visible terminals that are online right now.
func (s *Tracker) OnlineList(ctx context.Context, p scope.Principal) ([]models.Terminal, error) {
	all, err := s.List(ctx, p, ListQuery{Status: models.TerminalOnline})
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if s.IsOnline(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

type BranchCount struct {
	BranchID   *uint  `json:"branch_id"`
	BranchName string `json:"branch_name"`
	Total      int    `json:"total"`
	Online     int    `json:"online"`
}

type Stats struct {
	Total    int                           `json:"total_devices"`
	Online   int                           `json:"online_devices"`
	Offline  int                           `json:"offline_devices"`
	ByStatus map[models.TerminalStatus]int `json:"by_status"`
	ByType   map[models.TerminalType]int   `json:"by_type"`
	ByBranch []BranchCount                 `json:"by_branch"`
}

// Stats summarizes the visible terminals. Online follows the heartbeat
// window, so a stale "online" status counts as offline.
func (s *Tracker) Stats(ctx context.Context, p scope.Principal) (Stats, error) {
	all, err := s.List(ctx, p, ListQuery{})
	if err != nil {
		return Stats{}, err
	}
	st := Stats{
		Total: len(all),
		ByStatus: map[models.TerminalStatus]int{
			models.TerminalOnline: 0, models.TerminalOffline: 0,
			models.TerminalMaintenance: 0, models.TerminalSuspended: 0,
		},
		ByType: map[models.TerminalType]int{},
	}
	idx := map[uint]int{}
	unassigned := -1
	for _, t := range all {
		online := s.IsOnline(t)
		if online {
			st.Online++
		}
		st.ByStatus[t.Status]++
		st.ByType[t.DeviceType]++

		var bc *BranchCount
		if t.BranchID == nil {
			if unassigned < 0 {
				unassigned = len(st.ByBranch)
				st.ByBranch = append(st.ByBranch, BranchCount{})
			}
			bc = &st.ByBranch[unassigned]
		} else {
			i, ok := idx[*t.BranchID]
			if !ok {
				i = len(st.ByBranch)
				idx[*t.BranchID] = i
				name := ""
				if t.Branch != nil {
					name = t.Branch.Name
				}
				st.ByBranch = append(st.ByBranch, BranchCount{BranchID: t.BranchID, BranchName: name})
			}
			bc = &st.ByBranch[i]
		}
		bc.Total++
		if online {
			bc.Online++
		}
	}
	st.Offline = st.Total - st.Online
	return st, nil
}

// Logs lists the activity of one terminal, newest first.
func (s *Tracker) Logs(ctx context.Context, p scope.Principal, terminalID uint, logType models.TerminalLogType, limit int) ([]models.TerminalLog, error) {
	if _, err := s.authorize(ctx, p, scope.ActionRead, terminalID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	logs, err := s.repo.Logs(ctx, terminalID, logType, limit)
	if err != nil {
		return nil, apperr.Internal("list terminal logs", err)
	}
	return logs, nil
}

// RecordSale appends a sale entry to the terminal log.
func (s *Tracker) RecordSale(ctx context.Context, terminalID uint, userID *uint, orderNumber string) {
	s.appendLog(ctx, terminalID, models.TerminalLogSale, "order "+orderNumber, userID,
		map[string]any{"order_number": orderNumber})
}

func (s *Tracker) PublicURL(ctx context.Context, t models.Terminal) string {
	tenant, err := s.repo.FindTenant(ctx, t.TenantID)
	if err != nil {
		return PublicURL(s.siteURL, "", t.TenantID, t.DeviceID)
	}
	return PublicURL(s.siteURL, tenant.Domain, t.TenantID, t.DeviceID)
}

// authorize loads the terminal and runs the object-level check. Records
// outside the principal's read scope are reported as not found.
func (s *Tracker) authorize(ctx context.Context, p scope.Principal, action scope.Action, terminalID uint) (models.Terminal, error) {
	t, err := s.repo.FindByID(ctx, terminalID)
	if err != nil {
		return t, err
	}
	r := scope.TerminalResource(t)
	if !scope.Resolve(p, scope.ActionRead, scope.ClassTerminal, &r).Allow {
		return models.Terminal{}, apperr.NotFound("terminal")
	}
	if err := scope.Resolve(p, action, scope.ClassTerminal, &r).Err(); err != nil {
		return models.Terminal{}, err
	}
	return t, nil
}

func (s *Tracker) appendLog(ctx context.Context, terminalID uint, typ models.TerminalLogType, msg string, userID *uint, meta map[string]any) {
	l := models.TerminalLog{TerminalID: terminalID, LogType: typ, Message: msg, UserID: userID}
	if meta != nil {
		l.Metadata = marshalMeta(meta)
	}
	if err := s.repo.AppendLog(ctx, &l); err != nil {
		s.log.Warn("terminal log not written", zap.Uint("terminal_id", terminalID), zap.Error(err))
	}
}

func (s *Tracker) audit(p scope.Principal, t models.Terminal, action models.AuditAction, desc string, before, after any) {
	uid := p.ID
	tid := t.TenantID
	err := audit.WriteLog(s.db, audit.LogOptions{
		TenantID:    &tid,
		BranchID:    t.BranchID,
		UserID:      &uid,
		EntityType:  "terminal",
		EntityID:    t.ID,
		Action:      action,
		Description: desc,
		Before:      before,
		After:       after,
	})
	if err != nil {
		s.log.Warn("audit log not written", zap.Uint("terminal_id", t.ID), zap.Error(err))
	}
}

func marshalMeta(meta map[string]any) string {
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}
