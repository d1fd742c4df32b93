package scope

import (
	"gorm.io/gorm"

	"restoran-pos/internal/models"
)

// Field is one scoping dimension of a resource.
type Field int

const (
	FieldTenant Field = iota
	FieldBranch
	FieldOwner
	FieldRole
)

// Cond is a single equality: the resource field must be present and equal
// to Value (or Role for FieldRole). A NULL column never matches, in memory
// and in SQL alike.
type Cond struct {
	Field Field
	Value uint
	Role  models.UserRole
}

// Filter is the predicate restricting what a principal may see of a class.
// The conditions are ANDed. Match and Apply are both driven by Conds.
type Filter struct {
	Class        Class
	Unrestricted bool
	Deny         bool
	Conds        []Cond
}

// Match evaluates the filter against a concrete resource.
func (f Filter) Match(r Resource) bool {
	if f.Deny {
		return false
	}
	if f.Unrestricted {
		return true
	}
	for _, c := range f.Conds {
		if !c.match(r) {
			return false
		}
	}
	return true
}

func (c Cond) match(r Resource) bool {
	switch c.Field {
	case FieldTenant:
		return r.TenantID != nil && *r.TenantID == c.Value
	case FieldBranch:
		return r.BranchID != nil && *r.BranchID == c.Value
	case FieldOwner:
		return r.OwnerID != nil && *r.OwnerID == c.Value
	case FieldRole:
		return r.Role == c.Role
	}
	return false
}

// columns maps each field to the SQL column holding it for a class.
var columns = map[Class]map[Field]string{
	ClassTenant:   {FieldTenant: "id"},
	ClassBranch:   {FieldTenant: "tenant_id", FieldBranch: "id"},
	ClassTerminal: {FieldTenant: "tenant_id", FieldBranch: "branch_id", FieldOwner: "assigned_to_id"},
	ClassOrder:    {FieldTenant: "tenant_id", FieldBranch: "branch_id", FieldOwner: "cashier_id"},
	ClassUser:     {FieldTenant: "tenant_id", FieldBranch: "branch_id", FieldOwner: "id", FieldRole: "role"},
	ClassProduct:  {FieldTenant: "tenant_id"},
	ClassCategory: {FieldTenant: "tenant_id", FieldBranch: "branch_id"},
	ClassAudit:    {FieldTenant: "tenant_id", FieldBranch: "branch_id", FieldOwner: "user_id"},
}

// Apply scopes a query on the class table. table, when non-empty, qualifies
// the columns for joined queries.
func (f Filter) Apply(db *gorm.DB, table ...string) *gorm.DB {
	if f.Deny {
		return db.Where("1 = 0")
	}
	if f.Unrestricted {
		return db
	}
	prefix := ""
	if len(table) > 0 && table[0] != "" {
		prefix = table[0] + "."
	}
	for _, c := range f.Conds {
		col, ok := columns[f.Class][c.Field]
		if !ok {
			return db.Where("1 = 0")
		}
		if c.Field == FieldRole {
			db = db.Where(prefix+col+" = ?", string(c.Role))
		} else {
			db = db.Where(prefix+col+" = ?", c.Value)
		}
	}
	return db
}

// Scope returns f.Apply as a gorm scope function.
func (f Filter) Scope() func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return f.Apply(db) }
}
