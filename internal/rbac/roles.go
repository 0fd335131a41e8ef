package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleOwner      = "owner"
	RoleAssistant  = "assistant"
	RoleAgent      = "agent" // automated scheduling agents
	RoleSuperAdmin = "super_admin"
	RoleSupport    = "support" // hidden role
)

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsHiddenRole(role string) bool { return role == RoleSupport }
