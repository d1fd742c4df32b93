package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restoran-pos/internal/apperr"
	"restoran-pos/internal/models"
)

func u(v uint) *uint { return &v }

var (
	platformOwner = Principal{ID: 1, Role: models.RolePlatformOwner}
	tenantAdmin   = Principal{ID: 2, Role: models.RoleTenantAdmin, TenantID: u(1)}
	manager7      = Principal{ID: 3, Role: models.RoleBranchManager, TenantID: u(1), BranchID: u(7)}
	cashier7      = Principal{ID: 4, Role: models.RoleCashier, TenantID: u(1), BranchID: u(7)}
)

func TestPrincipalValidate(t *testing.T) {
	cases := []struct {
		name string
		p    Principal
		ok   bool
	}{
		{"owner", platformOwner, true},
		{"owner with tenant", Principal{Role: models.RolePlatformOwner, TenantID: u(1)}, false},
		{"tenant admin", tenantAdmin, true},
		{"tenant admin with branch", Principal{Role: models.RoleTenantAdmin, TenantID: u(1), BranchID: u(2)}, false},
		{"tenant admin without tenant", Principal{Role: models.RoleTenantAdmin}, false},
		{"manager", manager7, true},
		{"manager without branch", Principal{Role: models.RoleBranchManager, TenantID: u(1)}, false},
		{"cashier without tenant", Principal{Role: models.RoleCashier, BranchID: u(7)}, false},
		{"unknown role", Principal{Role: "waiter", TenantID: u(1), BranchID: u(7)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate()
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
}

func TestBranchManagerSeesOnlyOwnBranch(t *testing.T) {
	in7 := OrderResource(models.Order{ID: 10, TenantID: 1, BranchID: 7})
	in8 := OrderResource(models.Order{ID: 11, TenantID: 1, BranchID: 8})

	assert.True(t, Resolve(manager7, ActionRead, ClassOrder, &in7).Allow)
	assert.False(t, Resolve(manager7, ActionRead, ClassOrder, &in8).Allow,
		"same tenant is not enough for a branch manager")

	d := Resolve(manager7, ActionUpdate, ClassOrder, &in8)
	assert.False(t, d.Allow)
	assert.True(t, apperr.Is(d.Err(), apperr.KindPermissionDenied))
}

func TestCashierSeesOnlyOwnRecords(t *testing.T) {
	mine := OrderResource(models.Order{TenantID: 1, BranchID: 7, CashierID: u(4)})
	theirs := OrderResource(models.Order{TenantID: 1, BranchID: 7, CashierID: u(5)})
	anon := OrderResource(models.Order{TenantID: 1, BranchID: 7})

	assert.True(t, Resolve(cashier7, ActionRead, ClassOrder, &mine).Allow)
	assert.False(t, Resolve(cashier7, ActionRead, ClassOrder, &theirs).Allow)
	assert.False(t, Resolve(cashier7, ActionRead, ClassOrder, &anon).Allow)

	term := TerminalResource(models.Terminal{TenantID: 1, BranchID: u(7), AssignedToID: u(4)})
	assert.True(t, Resolve(cashier7, ActionRead, ClassTerminal, &term).Allow)

	self := UserResource(models.User{ID: 4, TenantID: u(1), BranchID: u(7), Role: models.RoleCashier})
	other := UserResource(models.User{ID: 9, TenantID: u(1), BranchID: u(7), Role: models.RoleCashier})
	assert.True(t, Resolve(cashier7, ActionUpdate, ClassUser, &self).Allow)
	assert.False(t, Resolve(cashier7, ActionUpdate, ClassUser, &other).Allow)
}

func TestTenantAdminBoundToTenant(t *testing.T) {
	own := BranchResource(models.Branch{ID: 7, TenantID: 1})
	foreign := BranchResource(models.Branch{ID: 20, TenantID: 2})
	assert.True(t, Resolve(tenantAdmin, ActionUpdate, ClassBranch, &own).Allow)
	assert.False(t, Resolve(tenantAdmin, ActionUpdate, ClassBranch, &foreign).Allow)
	assert.True(t, Resolve(platformOwner, ActionDelete, ClassBranch, &foreign).Allow)
}

func TestWriteCapabilities(t *testing.T) {
	cases := []struct {
		p      Principal
		action Action
		class  Class
		allow  bool
	}{
		{cashier7, ActionCreate, ClassTerminal, false},
		{manager7, ActionCreate, ClassTerminal, true},
		{manager7, ActionDelete, ClassTerminal, false},
		{tenantAdmin, ActionDelete, ClassTerminal, true},
		{tenantAdmin, ActionCreate, ClassProduct, true},
		{manager7, ActionUpdate, ClassProduct, false},
		{cashier7, ActionDelete, ClassCategory, false},
		{tenantAdmin, ActionCreate, ClassTenant, false},
		{tenantAdmin, ActionDelete, ClassTenant, false},
		{platformOwner, ActionDelete, ClassTenant, true},
		{tenantAdmin, ActionCreate, ClassBranch, true},
		{manager7, ActionCreate, ClassBranch, false},
		{cashier7, ActionUpdate, ClassBranch, false},
		{cashier7, ActionCreate, ClassOrder, true},
	}
	for _, tc := range cases {
		d := Resolve(tc.p, tc.action, tc.class, nil)
		assert.Equal(t, tc.allow, d.Allow, "%s %s %s", tc.p.Role, tc.action, tc.class)
	}
}

func TestCreatePinnedToHomeBranch(t *testing.T) {
	elsewhere := OrderResource(models.Order{TenantID: 1, BranchID: 8, CashierID: u(4)})
	assert.False(t, Resolve(cashier7, ActionCreate, ClassOrder, &elsewhere).Allow)

	home := OrderResource(models.Order{TenantID: 1, BranchID: 7, CashierID: u(4)})
	assert.True(t, Resolve(cashier7, ActionCreate, ClassOrder, &home).Allow)

	term := TerminalResource(models.Terminal{TenantID: 1, BranchID: u(8)})
	assert.False(t, Resolve(manager7, ActionCreate, ClassTerminal, &term).Allow)
}

func TestBranchManagerManagesOnlyCashiers(t *testing.T) {
	cashier := UserResource(models.User{ID: 4, TenantID: u(1), BranchID: u(7), Role: models.RoleCashier})
	peer := UserResource(models.User{ID: 5, TenantID: u(1), BranchID: u(7), Role: models.RoleBranchManager})
	assert.True(t, Resolve(manager7, ActionUpdate, ClassUser, &cashier).Allow)
	assert.False(t, Resolve(manager7, ActionUpdate, ClassUser, &peer).Allow)
}

func TestInvalidPrincipalDenied(t *testing.T) {
	bad := Principal{ID: 9, Role: models.RoleCashier}
	d := Resolve(bad, ActionRead, ClassOrder, nil)
	assert.False(t, d.Allow)
	assert.True(t, d.Filter.Deny)
}

func TestValidateAssignment(t *testing.T) {
	term := models.Terminal{ID: 1, TenantID: 1, BranchID: u(7)}

	err := ValidateAssignment(models.User{Role: models.RoleBranchManager, BranchID: u(7)}, term)
	require.Error(t, err)
	assert.Equal(t, "role_mismatch", err.(*apperr.Error).Code)

	err = ValidateAssignment(models.User{Role: models.RoleCashier, BranchID: u(8)}, term)
	require.Error(t, err)
	assert.Equal(t, "branch_mismatch", err.(*apperr.Error).Code)

	err = ValidateAssignment(models.User{Role: models.RoleCashier, BranchID: u(7)}, models.Terminal{TenantID: 1})
	require.Error(t, err)
	assert.Equal(t, "branch_mismatch", err.(*apperr.Error).Code)

	assert.NoError(t, ValidateAssignment(models.User{Role: models.RoleCashier, BranchID: u(7)}, term))
}
