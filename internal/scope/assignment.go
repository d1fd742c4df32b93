package scope

import (
	"restoran-pos/internal/apperr"
	"restoran-pos/internal/models"
)

// ValidateAssignment checks that user may operate terminal: only cashiers,
// and only on a terminal in their own branch.
func ValidateAssignment(user models.User, terminal models.Terminal) error {
	if user.Role != models.RoleCashier {
		return apperr.Validation("role_mismatch", "user must be a cashier")
	}
	if user.BranchID == nil || terminal.BranchID == nil || *user.BranchID != *terminal.BranchID {
		return apperr.Validation("branch_mismatch", "cashier and terminal must be in the same branch")
	}
	return nil
}
