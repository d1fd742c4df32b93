// Package admin provisions tenants, branches and staff accounts.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"restoran-pos/internal/apperr"
	"restoran-pos/internal/audit"
	"restoran-pos/internal/auth"
	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

const minPasswordLen = 8

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// ----------------------------------------
// Tenants
// ----------------------------------------

type TenantInput struct {
	Name   string
	Email  string
	Phone  string
	Domain string
	Plan   models.SubscriptionPlan
}

func (s *Service) CreateTenant(ctx context.Context, p scope.Principal, in TenantInput) (models.Tenant, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" {
		return models.Tenant{}, apperr.Validation("required", "name and email are required")
	}
	if in.Plan == "" {
		in.Plan = models.PlanBasic
	}
	if !validPlan(in.Plan) {
		return models.Tenant{}, apperr.Validation("invalid_plan", "unknown subscription plan "+string(in.Plan))
	}
	if err := scope.Resolve(p, scope.ActionCreate, scope.ClassTenant, nil).Err(); err != nil {
		return models.Tenant{}, err
	}
	if err := s.unique(ctx, &models.Tenant{}, "email", in.Email, "duplicate_email"); err != nil {
		return models.Tenant{}, err
	}

	maxBranches, maxDevices := models.PlanLimits(in.Plan)
	t := models.Tenant{
		Name:             in.Name,
		Email:            in.Email,
		Phone:            strings.TrimSpace(in.Phone),
		Domain:           strings.TrimSpace(in.Domain),
		SubscriptionPlan: in.Plan,
		MaxBranches:      maxBranches,
		MaxDevices:       maxDevices,
		IsActive:         true,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			TenantID: &t.ID, UserID: &p.ID,
			EntityType: "tenant", EntityID: t.ID,
			Action: models.AuditActionCreate, Description: "tenant created",
			After: map[string]any{"name": t.Name, "plan": t.SubscriptionPlan},
		})
	})
	if err != nil {
		return models.Tenant{}, apperr.Internal("create tenant", err)
	}
	s.log.Info("tenant created", zap.Uint("tenant_id", t.ID), zap.String("plan", string(t.SubscriptionPlan)))
	return t, nil
}

func (s *Service) ListTenants(ctx context.Context, p scope.Principal) ([]models.Tenant, error) {
	d := scope.Resolve(p, scope.ActionRead, scope.ClassTenant, nil)
	var out []models.Tenant
	if err := d.Filter.Apply(s.db.WithContext(ctx).Model(&models.Tenant{})).Order("name asc").Find(&out).Error; err != nil {
		return nil, apperr.Internal("list tenants", err)
	}
	return out, nil
}

func (s *Service) GetTenant(ctx context.Context, p scope.Principal, id uint) (models.Tenant, error) {
	return s.authorizeTenant(ctx, p, scope.ActionRead, id)
}

type TenantUpdate struct {
	Name   *string
	Phone  *string
	Domain *string
	Plan   *models.SubscriptionPlan
}

// UpdateTenant edits the tenant profile. Changing the plan resets the plan
// limits and is reserved to the platform owner.
func (s *Service) UpdateTenant(ctx context.Context, p scope.Principal, id uint, in TenantUpdate) (models.Tenant, error) {
	t, err := s.authorizeTenant(ctx, p, scope.ActionUpdate, id)
	if err != nil {
		return t, err
	}
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return t, apperr.Validation("required", "name cannot be empty")
		}
		fields["name"] = name
	}
	if in.Phone != nil {
		fields["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Domain != nil {
		fields["domain"] = strings.TrimSpace(*in.Domain)
	}
	if in.Plan != nil && *in.Plan != t.SubscriptionPlan {
		if !p.IsOwner() {
			return t, apperr.PermissionDenied("only the platform owner changes plans")
		}
		if !validPlan(*in.Plan) {
			return t, apperr.Validation("invalid_plan", "unknown subscription plan "+string(*in.Plan))
		}
		fields["subscription_plan"] = *in.Plan
		fields["max_branches"], fields["max_devices"] = models.PlanLimits(*in.Plan)
	}
	if len(fields) == 0 {
		return t, nil
	}
	err = s.updateAudited(ctx, p, &t, t.ID, nil, "tenant", fields)
	return t, err
}

// DeactivateTenant switches the tenant off. Its terminals can no longer log
// in; records are kept.
func (s *Service) DeactivateTenant(ctx context.Context, p scope.Principal, id uint) error {
	t, err := s.authorizeTenant(ctx, p, scope.ActionDelete, id)
	if err != nil {
		return err
	}
	return s.updateAudited(ctx, p, &t, t.ID, nil, "tenant", map[string]any{"is_active": false})
}

func (s *Service) authorizeTenant(ctx context.Context, p scope.Principal, action scope.Action, id uint) (models.Tenant, error) {
	var t models.Tenant
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return t, notFound(err, "tenant")
	}
	r := scope.TenantResource(t)
	if err := check(p, action, scope.ClassTenant, r, "tenant"); err != nil {
		return models.Tenant{}, err
	}
	return t, nil
}

// ----------------------------------------
// Branches
// ----------------------------------------

type BranchInput struct {
	TenantID *uint
	Name     string
	Code     string
	Address  string
	City     string
	Phone    string
}

func (s *Service) CreateBranch(ctx context.Context, p scope.Principal, in BranchInput) (models.Branch, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if in.Name == "" || in.Code == "" {
		return models.Branch{}, apperr.Validation("required", "name and code are required")
	}
	tenantID := in.TenantID
	if tenantID == nil {
		tenantID = p.TenantID
	}
	if tenantID == nil {
		return models.Branch{}, apperr.Validation("tenant_required", "tenant_id is required")
	}

	b := models.Branch{
		TenantID: *tenantID,
		Name:     in.Name,
		Code:     in.Code,
		Address:  strings.TrimSpace(in.Address),
		City:     strings.TrimSpace(in.City),
		Phone:    strings.TrimSpace(in.Phone),
		IsActive: true,
	}
	// The branch id is unknown until insert; check against the tenant only.
	r := scope.Resource{TenantID: tenantID}
	if err := scope.Resolve(p, scope.ActionCreate, scope.ClassBranch, &r).Err(); err != nil {
		return models.Branch{}, err
	}

	var tenant models.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, b.TenantID).Error; err != nil {
		return models.Branch{}, notFound(err, "tenant")
	}
	if tenant.MaxBranches != models.Unlimited {
		var n int64
		if err := s.db.WithContext(ctx).Model(&models.Branch{}).Where("tenant_id = ?", tenant.ID).Count(&n).Error; err != nil {
			return models.Branch{}, apperr.Internal("count branches", err)
		}
		if n >= int64(tenant.MaxBranches) {
			return models.Branch{}, apperr.Validation("plan_limit",
				fmt.Sprintf("plan allows at most %d branches", tenant.MaxBranches))
		}
	}
	if err := s.unique(ctx, &models.Branch{}, "code", b.Code, "duplicate_code"); err != nil {
		return models.Branch{}, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&b).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			TenantID: &b.TenantID, BranchID: &b.ID, UserID: &p.ID,
			EntityType: "branch", EntityID: b.ID,
			Action: models.AuditActionCreate, Description: "branch created",
			After: map[string]any{"name": b.Name, "code": b.Code},
		})
	})
	if err != nil {
		return models.Branch{}, apperr.Internal("create branch", err)
	}
	return b, nil
}

func (s *Service) ListBranches(ctx context.Context, p scope.Principal, tenantID *uint) ([]models.Branch, error) {
	d := scope.Resolve(p, scope.ActionRead, scope.ClassBranch, nil)
	dbq := d.Filter.Apply(s.db.WithContext(ctx).Model(&models.Branch{}))
	if tenantID != nil {
		dbq = dbq.Where("tenant_id = ?", *tenantID)
	}
	var out []models.Branch
	if err := dbq.Order("name asc").Find(&out).Error; err != nil {
		return nil, apperr.Internal("list branches", err)
	}
	return out, nil
}

func (s *Service) GetBranch(ctx context.Context, p scope.Principal, id uint) (models.Branch, error) {
	return s.authorizeBranch(ctx, p, scope.ActionRead, id)
}

type BranchUpdate struct {
	Name    *string
	Address *string
	City    *string
	Phone   *string
}

func (s *Service) UpdateBranch(ctx context.Context, p scope.Principal, id uint, in BranchUpdate) (models.Branch, error) {
	b, err := s.authorizeBranch(ctx, p, scope.ActionUpdate, id)
	if err != nil {
		return b, err
	}
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return b, apperr.Validation("required", "branch name cannot be empty")
		}
		fields["name"] = name
	}
	if in.Address != nil {
		fields["address"] = strings.TrimSpace(*in.Address)
	}
	if in.City != nil {
		fields["city"] = strings.TrimSpace(*in.City)
	}
	if in.Phone != nil {
		fields["phone"] = strings.TrimSpace(*in.Phone)
	}
	if len(fields) == 0 {
		return b, nil
	}
	err = s.updateAudited(ctx, p, &b, b.TenantID, &b.ID, "branch", fields)
	return b, err
}

// DeactivateBranch closes a branch; its orders stay readable.
func (s *Service) DeactivateBranch(ctx context.Context, p scope.Principal, id uint) error {
	b, err := s.authorizeBranch(ctx, p, scope.ActionDelete, id)
	if err != nil {
		return err
	}
	return s.updateAudited(ctx, p, &b, b.TenantID, &b.ID, "branch", map[string]any{"is_active": false})
}

func (s *Service) authorizeBranch(ctx context.Context, p scope.Principal, action scope.Action, id uint) (models.Branch, error) {
	var b models.Branch
	if err := s.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return b, notFound(err, "branch")
	}
	if err := check(p, action, scope.ClassBranch, scope.BranchResource(b), "branch"); err != nil {
		return models.Branch{}, err
	}
	return b, nil
}

// ----------------------------------------
// Users
// ----------------------------------------

type UserInput struct {
	Name     string
	Email    string
	Password string
	Role     models.UserRole
	TenantID *uint
	BranchID *uint
}

// CreateUser provisions a staff account. Branch staff inherit the tenant of
// their branch; a branch manager may only create cashiers at home.
func (s *Service) CreateUser(ctx context.Context, p scope.Principal, in UserInput) (models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" {
		return models.User{}, apperr.Validation("required", "name and email are required")
	}
	if len(in.Password) < minPasswordLen {
		return models.User{}, apperr.Validation("weak_password",
			fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if in.Role == models.RolePlatformOwner || !in.Role.Valid() {
		return models.User{}, apperr.Validation("invalid_role", "role must be tenant_admin, branch_manager or cashier")
	}

	tenantID := in.TenantID
	if in.BranchID != nil {
		var b models.Branch
		if err := s.db.WithContext(ctx).First(&b, *in.BranchID).Error; err != nil {
			return models.User{}, notFound(err, "branch")
		}
		if tenantID != nil && *tenantID != b.TenantID {
			return models.User{}, apperr.Validation("tenant_branch_mismatch", "branch belongs to another tenant")
		}
		tenantID = &b.TenantID
	}
	if tenantID == nil {
		tenantID = p.TenantID
	}

	u := models.User{
		Name:     in.Name,
		Email:    in.Email,
		Role:     in.Role,
		TenantID: tenantID,
		BranchID: in.BranchID,
		IsActive: true,
	}
	if err := scope.PrincipalFromUser(u, nil).Validate(); err != nil {
		return models.User{}, err
	}
	r := scope.UserResource(u)
	if err := scope.Resolve(p, scope.ActionCreate, scope.ClassUser, &r).Err(); err != nil {
		return models.User{}, err
	}
	if err := s.unique(ctx, &models.User{}, "email", u.Email, "duplicate_email"); err != nil {
		return models.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, apperr.Internal("hash password", err)
	}
	u.PasswordHash = hash
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			TenantID: u.TenantID, BranchID: u.BranchID, UserID: &p.ID,
			EntityType: "user", EntityID: u.ID,
			Action: models.AuditActionCreate, Description: "user created",
			After: map[string]any{"email": u.Email, "role": u.Role},
		})
	})
	if err != nil {
		return models.User{}, apperr.Internal("create user", err)
	}
	return u, nil
}

type UserQuery struct {
	Role     models.UserRole
	BranchID *uint
}

func (s *Service) ListUsers(ctx context.Context, p scope.Principal, q UserQuery) ([]models.User, error) {
	d := scope.Resolve(p, scope.ActionRead, scope.ClassUser, nil)
	dbq := d.Filter.Apply(s.db.WithContext(ctx).Model(&models.User{}))
	if q.Role != "" {
		dbq = dbq.Where("role = ?", q.Role)
	}
	if q.BranchID != nil {
		dbq = dbq.Where("branch_id = ?", *q.BranchID)
	}
	var out []models.User
	if err := dbq.Order("created_at desc").Find(&out).Error; err != nil {
		return nil, apperr.Internal("list users", err)
	}
	return out, nil
}

type UserUpdate struct {
	Name     *string
	Password *string
}

// UpdateUser changes name or password. Role and placement are fixed at
// creation.
func (s *Service) UpdateUser(ctx context.Context, p scope.Principal, id uint, in UserUpdate) (models.User, error) {
	u, err := s.authorizeUser(ctx, p, scope.ActionUpdate, id)
	if err != nil {
		return u, err
	}
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return u, apperr.Validation("required", "name cannot be empty")
		}
		fields["name"] = name
	}
	if in.Password != nil {
		if len(*in.Password) < minPasswordLen {
			return u, apperr.Validation("weak_password",
				fmt.Sprintf("password must be at least %d characters", minPasswordLen))
		}
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return u, apperr.Internal("hash password", err)
		}
		fields["password_hash"] = hash
	}
	if len(fields) == 0 {
		return u, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return u, apperr.Internal("update user", err)
	}
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return u, apperr.Internal("reload user", err)
	}
	return u, nil
}

// DeactivateUser disables the account and releases its terminals.
func (s *Service) DeactivateUser(ctx context.Context, p scope.Principal, id uint) error {
	u, err := s.authorizeUser(ctx, p, scope.ActionDelete, id)
	if err != nil {
		return err
	}
	if u.ID == p.ID {
		return apperr.Validation("self_deactivation", "cannot deactivate your own account")
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Terminal{}).Where("assigned_to_id = ?", id).Update("assigned_to_id", nil).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			TenantID: u.TenantID, BranchID: u.BranchID, UserID: &p.ID,
			EntityType: "user", EntityID: u.ID,
			Action: models.AuditActionDelete, Description: "user deactivated",
			Before: map[string]any{"email": u.Email, "is_active": true},
		})
	})
	if err != nil {
		return apperr.Internal("deactivate user", err)
	}
	return nil
}

func (s *Service) authorizeUser(ctx context.Context, p scope.Principal, action scope.Action, id uint) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return u, notFound(err, "user")
	}
	// Everyone may read and edit their own account.
	if u.ID == p.ID && action != scope.ActionDelete {
		return u, nil
	}
	if err := check(p, action, scope.ClassUser, scope.UserResource(u), "user"); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// ----------------------------------------
// helpers
// ----------------------------------------

// check runs the object-level decision; records outside read scope are
// reported as not found.
func check(p scope.Principal, action scope.Action, class scope.Class, r scope.Resource, entity string) error {
	if !scope.Resolve(p, scope.ActionRead, class, &r).Allow {
		return apperr.NotFound(entity)
	}
	return scope.Resolve(p, action, class, &r).Err()
}

// updateAudited writes fields to the record behind dest, reloads it and
// records an update audit entry in the same transaction.
func (s *Service) updateAudited(ctx context.Context, p scope.Principal, dest any, tenantID uint, branchID *uint, entity string, fields map[string]any) error {
	id := entityID(dest)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(dest).Where("id = ?", id).Updates(fields).Error; err != nil {
			return err
		}
		if err := tx.First(dest, id).Error; err != nil {
			return err
		}
		return audit.WriteLog(tx, audit.LogOptions{
			TenantID: &tenantID, BranchID: branchID, UserID: &p.ID,
			EntityType: entity, EntityID: id,
			Action: models.AuditActionUpdate, Description: entity + " updated",
			After: fields,
		})
	})
	if err != nil {
		return apperr.Internal("update "+entity, err)
	}
	return nil
}

func entityID(dest any) uint {
	switch v := dest.(type) {
	case *models.Tenant:
		return v.ID
	case *models.Branch:
		return v.ID
	}
	return 0
}

func (s *Service) unique(ctx context.Context, model any, column, value, code string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(model).Where(column+" = ?", value).Count(&n).Error; err != nil {
		return apperr.Internal("check "+column, err)
	}
	if n > 0 {
		return apperr.Validation(code, column+" already in use")
	}
	return nil
}

func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity)
	}
	return apperr.Internal("load "+entity, err)
}

func validPlan(plan models.SubscriptionPlan) bool {
	switch plan {
	case models.PlanBasic, models.PlanProfessional, models.PlanEnterprise:
		return true
	}
	return false
}
