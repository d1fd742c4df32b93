package scope

import (
	"restoran-pos/internal/apperr"
	"restoran-pos/internal/models"
)

// Decision is the result of Resolve. Filter is always populated so callers
// can scope list queries with it.
type Decision struct {
	Allow  bool
	Filter Filter
	Reason string
}

// Err converts a denied decision into a PermissionDenied error.
func (d Decision) Err() error {
	if d.Allow {
		return nil
	}
	return apperr.PermissionDenied(d.Reason)
}

type roleSet map[models.UserRole]bool

func roles(rs ...models.UserRole) roleSet {
	s := make(roleSet, len(rs))
	for _, r := range rs {
		s[r] = true
	}
	return s
}

var (
	owner      = roles(models.RolePlatformOwner)
	admins     = roles(models.RolePlatformOwner, models.RoleTenantAdmin)
	managers   = roles(models.RolePlatformOwner, models.RoleTenantAdmin, models.RoleBranchManager)
	everyone   = roles(models.RolePlatformOwner, models.RoleTenantAdmin, models.RoleBranchManager, models.RoleCashier)
	capability = map[Class]map[Action]roleSet{
		ClassTenant:   {ActionCreate: owner, ActionUpdate: admins, ActionDelete: owner},
		ClassBranch:   {ActionCreate: admins, ActionUpdate: managers, ActionDelete: admins},
		ClassTerminal: {ActionCreate: managers, ActionUpdate: managers, ActionDelete: admins},
		ClassOrder:    {ActionCreate: everyone, ActionUpdate: everyone, ActionDelete: admins},
		ClassUser:     {ActionCreate: managers, ActionUpdate: everyone, ActionDelete: admins},
		ClassProduct:  {ActionCreate: admins, ActionUpdate: admins, ActionDelete: admins},
		ClassCategory: {ActionCreate: admins, ActionUpdate: admins, ActionDelete: admins},
	}
)

// Can reports the class-level write capability of a role, ignoring instances.
func Can(role models.UserRole, action Action, class Class) bool {
	if !action.IsWrite() {
		return role.Valid()
	}
	return capability[class][action][role]
}

// Resolve decides whether p may perform action on class. instance is the
// concrete record for object-level checks (for create, the record about to
// be written); nil means a class-level/list decision.
func Resolve(p Principal, action Action, class Class, instance *Resource) Decision {
	if err := p.Validate(); err != nil {
		return Decision{Filter: Filter{Class: class, Deny: true}, Reason: "invalid principal"}
	}
	f := FilterFor(p, class)
	d := Decision{Allow: true, Filter: f}

	if action.IsWrite() && !Can(p.Role, action, class) {
		d.Allow = false
		d.Reason = string(p.Role) + " cannot " + string(action) + " " + string(class)
		return d
	}
	if instance == nil {
		return d
	}
	if !f.Match(*instance) {
		d.Allow = false
		d.Reason = string(class) + " is outside the principal's scope"
		return d
	}
	if action == ActionCreate && !homeFilter(p, class).Match(*instance) {
		d.Allow = false
		d.Reason = string(class) + " must be created inside the principal's branch"
	}
	return d
}

// FilterFor builds the visibility filter of p over class.
func FilterFor(p Principal, class Class) Filter {
	f := Filter{Class: class}
	switch p.Role {
	case models.RolePlatformOwner:
		f.Unrestricted = true
		return f
	case models.RoleTenantAdmin:
		if p.TenantID == nil {
			f.Deny = true
			return f
		}
		f.Conds = []Cond{{Field: FieldTenant, Value: *p.TenantID}}
		return f
	case models.RoleBranchManager:
		if p.TenantID == nil || p.BranchID == nil {
			f.Deny = true
			return f
		}
		switch class {
		case ClassTenant, ClassProduct, ClassCategory:
			f.Conds = []Cond{{Field: FieldTenant, Value: *p.TenantID}}
		case ClassUser:
			f.Conds = []Cond{
				{Field: FieldBranch, Value: *p.BranchID},
				{Field: FieldRole, Role: models.RoleCashier},
			}
		default:
			f.Conds = []Cond{{Field: FieldBranch, Value: *p.BranchID}}
		}
		return f
	case models.RoleCashier:
		if p.TenantID == nil || p.BranchID == nil {
			f.Deny = true
			return f
		}
		switch class {
		case ClassTenant, ClassProduct, ClassCategory:
			f.Conds = []Cond{{Field: FieldTenant, Value: *p.TenantID}}
		case ClassBranch:
			f.Conds = []Cond{{Field: FieldBranch, Value: *p.BranchID}}
		default:
			f.Conds = []Cond{{Field: FieldOwner, Value: p.ID}}
		}
		return f
	}
	f.Deny = true
	return f
}

// homeFilter pins newly created records to the principal's own place in the
// hierarchy; a cashier cannot open an order at another branch even though
// the order would carry their id.
func homeFilter(p Principal, class Class) Filter {
	f := Filter{Class: class}
	switch {
	case p.IsOwner():
		f.Unrestricted = true
	case p.BranchID != nil && class != ClassTenant && class != ClassProduct && class != ClassCategory:
		f.Conds = []Cond{{Field: FieldTenant, Value: *p.TenantID}, {Field: FieldBranch, Value: *p.BranchID}}
	default:
		f.Conds = []Cond{{Field: FieldTenant, Value: *p.TenantID}}
	}
	return f
}
