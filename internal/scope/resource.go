package scope

import "restoran-pos/internal/models"

type Class string

const (
	ClassTenant   Class = "tenant"
	ClassBranch   Class = "branch"
	ClassTerminal Class = "terminal"
	ClassOrder    Class = "order"
	ClassUser     Class = "user"
	ClassProduct  Class = "product"
	ClassCategory Class = "category"
	ClassAudit    Class = "audit"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) IsWrite() bool { return a != ActionRead }

// Resource is the scoping view of one record: its position in the
// tenant/branch hierarchy and the user it belongs to.
type Resource struct {
	ID       uint
	TenantID *uint
	BranchID *uint
	OwnerID  *uint
	Role     models.UserRole // user resources only
}

func TenantResource(t models.Tenant) Resource {
	return Resource{ID: t.ID, TenantID: ptr(t.ID)}
}

func BranchResource(b models.Branch) Resource {
	return Resource{ID: b.ID, TenantID: ptr(b.TenantID), BranchID: ptr(b.ID)}
}

func TerminalResource(t models.Terminal) Resource {
	return Resource{ID: t.ID, TenantID: ptr(t.TenantID), BranchID: t.BranchID, OwnerID: t.AssignedToID}
}

func OrderResource(o models.Order) Resource {
	return Resource{ID: o.ID, TenantID: ptr(o.TenantID), BranchID: ptr(o.BranchID), OwnerID: o.CashierID}
}

func UserResource(u models.User) Resource {
	return Resource{ID: u.ID, TenantID: u.TenantID, BranchID: u.BranchID, OwnerID: ptr(u.ID), Role: u.Role}
}

func ProductResource(p models.Product) Resource {
	return Resource{ID: p.ID, TenantID: ptr(p.TenantID)}
}

func CategoryResource(c models.Category) Resource {
	return Resource{ID: c.ID, TenantID: ptr(c.TenantID), BranchID: c.BranchID}
}

func AuditResource(l models.AuditLog) Resource {
	return Resource{ID: l.ID, TenantID: l.TenantID, BranchID: l.BranchID, OwnerID: l.UserID}
}

func ptr(v uint) *uint { return &v }
