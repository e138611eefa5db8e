package rbac

import "fmt"

// Role is the closed set of roles known to the platform. Authorisation is a
// static capability table keyed by role, resolved once per request.
type Role string

const (
	RoleSubmitter        Role = "SUBMITTER"
	RoleApprover         Role = "APPROVER"
	RoleGlobalApprover   Role = "GLOBAL_APPROVER"
	RoleCorporationAdmin Role = "CORPORATION_ADMIN"
	RolePlatformAdmin    Role = "PLATFORM_ADMIN"
)

// ParseRole validates a stored role value.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSubmitter, RoleApprover, RoleGlobalApprover, RoleCorporationAdmin, RolePlatformAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("rbac: unknown role %q", s)
	}
}

// Permission names. Handlers gate routes on these.
const (
	PermExpensesCreate  = "expenses.create"
	PermExpensesView    = "expenses.view"
	PermReportsCreate   = "reports.create"
	PermReportsView     = "reports.view"
	PermReportsDecide   = "reports.decide"
	PermAreasManage     = "areas.manage"
	PermAreasView       = "areas.view"
	PermCompaniesManage = "companies.manage"
	PermUsersManage     = "users.manage"
	PermAuditView       = "audit.view"
)

var capabilities = map[Role][]string{
	RoleSubmitter: {
		PermExpensesCreate, PermExpensesView,
		PermReportsCreate, PermReportsView,
	},
	RoleApprover: {
		PermExpensesView, PermReportsView, PermReportsDecide, PermAreasView,
	},
	RoleGlobalApprover: {
		PermExpensesView, PermReportsView, PermReportsDecide, PermAreasView,
	},
	RoleCorporationAdmin: {
		PermExpensesView, PermReportsView, PermAreasManage, PermAreasView,
		PermUsersManage, PermAuditView,
	},
	RolePlatformAdmin: {
		PermExpensesCreate, PermExpensesView,
		PermReportsCreate, PermReportsView, PermReportsDecide,
		PermAreasManage, PermAreasView, PermCompaniesManage,
		PermUsersManage, PermAuditView,
	},
}

// Capabilities returns the permission set granted to a role.
func Capabilities(role Role) []string {
	perms := capabilities[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
