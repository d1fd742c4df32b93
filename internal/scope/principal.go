// Package scope decides, for every principal and resource, whether an action
// is permitted and which records are visible.
package scope

import (
	"restoran-pos/internal/apperr"
	"restoran-pos/internal/models"
)

// Principal is the authenticated human actor. It is passed explicitly into
// every core call; nothing is read from request-global state.
type Principal struct {
	ID                  uint
	Role                models.UserRole
	TenantID            *uint
	BranchID            *uint
	AssignedTerminalIDs []uint
}

// PrincipalFromUser builds a principal from a persisted user and the ids of
// the terminals currently assigned to them.
func PrincipalFromUser(u models.User, assigned []uint) Principal {
	return Principal{
		ID:                  u.ID,
		Role:                u.Role,
		TenantID:            u.TenantID,
		BranchID:            u.BranchID,
		AssignedTerminalIDs: assigned,
	}
}

// Validate enforces the role/hierarchy invariant.
func (p Principal) Validate() error {
	switch p.Role {
	case models.RolePlatformOwner:
		if p.TenantID != nil {
			return apperr.Validation("invalid_principal", "platform owner cannot belong to a tenant")
		}
	case models.RoleTenantAdmin:
		if p.TenantID == nil || p.BranchID != nil {
			return apperr.Validation("invalid_principal", "tenant admin needs a tenant and no branch")
		}
	case models.RoleBranchManager, models.RoleCashier:
		if p.TenantID == nil || p.BranchID == nil {
			return apperr.Validation("invalid_principal", "branch staff need both tenant and branch")
		}
	default:
		return apperr.Validation("invalid_principal", "unknown role "+string(p.Role))
	}
	return nil
}

func (p Principal) IsOwner() bool { return p.Role == models.RolePlatformOwner }

// HasTerminal reports whether the terminal is assigned to the principal.
func (p Principal) HasTerminal(terminalID uint) bool {
	for _, id := range p.AssignedTerminalIDs {
		if id == terminalID {
			return true
		}
	}
	return false
}

// TerminalPrincipal is a terminal authenticated by its own token. It never
// goes through user role checks.
type TerminalPrincipal struct {
	TerminalID uint
	TenantID   uint
	BranchID   *uint
}
