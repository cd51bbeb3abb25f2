package authz

import "fmt"

// AssertPermission verifies that the actor's role grants action on module.
// Denials are returned as *ForbiddenError. A non-empty msg overrides the
// default denial text verbatim; callers use it for user-facing phrasing.
func AssertPermission(actor Actor, module Module, action Action, msg ...string) error {
	if CapabilitiesFor(actor.Role).Allows(module, action) {
		return nil
	}
	if len(msg) > 0 && msg[0] != "" {
		return Forbidden(msg[0])
	}
	return Forbidden(fmt.Sprintf("role %s is not permitted to %s %s", actor.Role, action, module))
}

// AssertTenantAccess verifies that a resource belongs to the actor's tenant.
// It succeeds only on exact equality. No role bypasses it, SuperAdmin
// included; cross-tenant reach is handled by support tooling, never by the
// application path.
func AssertTenantAccess(actorTenantID, resourceTenantID int64) error {
	if actorTenantID == resourceTenantID {
		return nil
	}
	return Forbidden(fmt.Sprintf("resource belongs to a different tenant (actor tenant %d, resource tenant %d)", actorTenantID, resourceTenantID))
}

// CanAccessClient reports whether the actor may operate on the given client.
// ClientPortalUser accounts are limited to their assigned allow-list, so an
// empty list denies everything; every other role sees every client of its
// tenant. The predicate returns a bool rather than an error because callers
// use it to filter client lists row by row.
func CanAccessClient(actor Actor, clientID int64, assigned []int64) bool {
	if actor.Role != RoleClientPortalUser {
		return true
	}
	for _, id := range assigned {
		if id == clientID {
			return true
		}
	}
	return false
}

// Request describes one access decision for Authorize.
type Request struct {
	Module Module
	Action Action
	// ResourceTenantID, when set, runs the tenant isolation check before
	// anything else.
	ResourceTenantID *int64
	// ClientID, when set, runs the client scope check against
	// AssignedClientIDs after the capability check.
	ClientID          *int64
	AssignedClientIDs []int64
	// Message overrides the default capability denial text.
	Message string
}

// Authorize runs the full decision sequence for a request: tenant isolation,
// then the capability check, then client scope. The first failure wins, so a
// cross-tenant probe is reported as a tenant denial even when the actor also
// lacks the capability. Decisions are computed fresh on every call and must
// not be cached across requests.
func Authorize(actor Actor, req Request) error {
	if req.ResourceTenantID != nil {
		if err := AssertTenantAccess(actor.TenantID, *req.ResourceTenantID); err != nil {
			return err
		}
	}
	var msg []string
	if req.Message != "" {
		msg = []string{req.Message}
	}
	if err := AssertPermission(actor, req.Module, req.Action, msg...); err != nil {
		return err
	}
	if req.ClientID != nil && !CanAccessClient(actor, *req.ClientID, req.AssignedClientIDs) {
		return Forbidden(fmt.Sprintf("client %d is not assigned to this account", *req.ClientID))
	}
	return nil
}
