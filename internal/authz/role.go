package authz

import (
	"errors"
	"fmt"
)

// ErrUnknownRole indicates a role value outside the built-in set.
var ErrUnknownRole = errors.New("authz: unknown role")

// Role identifies one of the platform's built-in roles.
type Role string

// The closed set of built-in roles. The platform ships with exactly these;
// new roles are a code change, not data.
const (
	// RoleSuperAdmin operates across every module without capability checks.
	RoleSuperAdmin Role = "SuperAdmin"
	// RoleFirmAdmin administers a firm's clients, users and settings.
	RoleFirmAdmin Role = "FirmAdmin"
	// RoleComplianceManager oversees compliance configuration and filings.
	RoleComplianceManager Role = "ComplianceManager"
	// RoleComplianceOfficer prepares and submits filings.
	RoleComplianceOfficer Role = "ComplianceOfficer"
	// RoleDocumentOfficer manages the document vault.
	RoleDocumentOfficer Role = "DocumentOfficer"
	// RoleViewer has read access across the firm's modules.
	RoleViewer Role = "Viewer"
	// RoleClientPortalUser is an external user scoped to assigned clients.
	RoleClientPortalUser Role = "ClientPortalUser"
)

// Roles returns every built-in role in a stable order.
func Roles() []Role {
	return []Role{
		RoleSuperAdmin,
		RoleFirmAdmin,
		RoleComplianceManager,
		RoleComplianceOfficer,
		RoleDocumentOfficer,
		RoleViewer,
		RoleClientPortalUser,
	}
}

// ParseRole validates a role value arriving from a boundary such as an HTTP
// request or a database row.
func ParseRole(value string) (Role, error) {
	role := Role(value)
	if _, ok := catalog[role]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, value)
	}
	return role, nil
}
