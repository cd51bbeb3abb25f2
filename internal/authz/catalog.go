package authz

import (
	"fmt"
	"sort"
)

// Module names a functional area of the platform guarded by authorization.
type Module string

// Modules known to the platform. Checks accept free-form strings so that
// newly added areas default to denied until the catalog grants them.
const (
	ModuleClients       Module = "clients"
	ModuleDocuments     Module = "documents"
	ModuleFilings       Module = "filings"
	ModuleServices      Module = "services"
	ModuleUsers         Module = "users"
	ModuleSettings      Module = "settings"
	ModuleCompliance    Module = "compliance"
	ModuleAnalytics     Module = "analytics"
	ModuleTasks         Module = "tasks"
	ModuleNotifications Module = "notifications"
	ModuleDashboard     Module = "dashboard"
	ModuleProfile       Module = "profile"
)

// Action names an operation performed within a module.
type Action string

// Actions understood by the catalog.
const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionSubmit Action = "submit"
	ActionManage Action = "manage"
)

// Profile describes what a role may do. A profile is either unrestricted,
// passing every capability check without consulting a grant table, or scoped
// to an explicit set of actions per module.
type Profile struct {
	unrestricted bool
	grants       map[Module]map[Action]struct{}
}

// Unrestricted returns the profile that passes every capability check.
func Unrestricted() Profile {
	return Profile{unrestricted: true}
}

// Scoped returns a profile restricted to the given grants. The input map is
// copied; callers cannot mutate the profile afterwards.
func Scoped(grants map[Module][]Action) Profile {
	p := Profile{grants: make(map[Module]map[Action]struct{}, len(grants))}
	for module, actions := range grants {
		set := make(map[Action]struct{}, len(actions))
		for _, action := range actions {
			set[action] = struct{}{}
		}
		p.grants[module] = set
	}
	return p
}

// IsUnrestricted reports whether the profile bypasses capability checks.
func (p Profile) IsUnrestricted() bool {
	return p.unrestricted
}

// Allows reports whether the profile grants action on module. Modules and
// actions absent from the grant table are denied.
func (p Profile) Allows(module Module, action Action) bool {
	if p.unrestricted {
		return true
	}
	actions, ok := p.grants[module]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// Grants returns a copy of the profile's grant table with actions in a
// stable order. Unrestricted profiles return nil.
func (p Profile) Grants() map[Module][]Action {
	if p.unrestricted || len(p.grants) == 0 {
		return nil
	}
	out := make(map[Module][]Action, len(p.grants))
	for module, set := range p.grants {
		actions := make([]Action, 0, len(set))
		for action := range set {
			actions = append(actions, action)
		}
		sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
		out[module] = actions
	}
	return out
}

// catalog fixes the capability profile of every built-in role. Profiles are
// hand-authored least privilege; they are not persisted and cannot change at
// runtime.
var catalog = map[Role]Profile{
	RoleSuperAdmin: Unrestricted(),
	RoleFirmAdmin: Scoped(map[Module][]Action{
		ModuleClients:       {ActionView, ActionCreate, ActionEdit, ActionDelete},
		ModuleUsers:         {ActionView, ActionCreate, ActionEdit, ActionDelete},
		ModuleSettings:      {ActionView, ActionCreate, ActionEdit, ActionDelete},
		ModuleDocuments:     {ActionView, ActionCreate, ActionEdit, ActionDelete},
		ModuleFilings:       {ActionView, ActionCreate, ActionEdit, ActionDelete, ActionSubmit},
		ModuleServices:      {ActionView, ActionCreate, ActionEdit, ActionDelete},
		ModuleCompliance:    {ActionView, ActionEdit},
		ModuleAnalytics:     {ActionView},
		ModuleTasks:         {ActionView, ActionCreate, ActionEdit, ActionDelete},
		ModuleNotifications: {ActionView, ActionEdit, ActionManage},
		ModuleDashboard:     {ActionView},
		ModuleProfile:       {ActionView, ActionEdit},
	}),
	RoleComplianceManager: Scoped(map[Module][]Action{
		ModuleClients:       {ActionView},
		ModuleDocuments:     {ActionView},
		ModuleFilings:       {ActionView, ActionCreate, ActionEdit, ActionSubmit, ActionManage},
		ModuleServices:      {ActionView},
		ModuleCompliance:    {ActionView, ActionEdit},
		ModuleAnalytics:     {ActionView},
		ModuleTasks:         {ActionView, ActionCreate, ActionEdit, ActionManage},
		ModuleNotifications: {ActionView},
		ModuleDashboard:     {ActionView},
		ModuleProfile:       {ActionView, ActionEdit},
	}),
	RoleComplianceOfficer: Scoped(map[Module][]Action{
		ModuleClients:       {ActionView},
		ModuleFilings:       {ActionView, ActionCreate, ActionSubmit},
		ModuleCompliance:    {ActionView},
		ModuleTasks:         {ActionView, ActionCreate, ActionEdit},
		ModuleNotifications: {ActionView},
		ModuleDashboard:     {ActionView},
		ModuleProfile:       {ActionView, ActionEdit},
	}),
	RoleDocumentOfficer: Scoped(map[Module][]Action{
		ModuleClients:       {ActionView},
		ModuleDocuments:     {ActionView, ActionCreate, ActionEdit},
		ModuleTasks:         {ActionView},
		ModuleNotifications: {ActionView},
		ModuleDashboard:     {ActionView},
		ModuleProfile:       {ActionView, ActionEdit},
	}),
	RoleViewer: Scoped(map[Module][]Action{
		ModuleClients:       {ActionView},
		ModuleDocuments:     {ActionView},
		ModuleFilings:       {ActionView},
		ModuleServices:      {ActionView},
		ModuleAnalytics:     {ActionView},
		ModuleCompliance:    {ActionView},
		ModuleTasks:         {ActionView},
		ModuleNotifications: {ActionView},
		ModuleDashboard:     {ActionView},
		ModuleProfile:       {ActionView, ActionEdit},
	}),
	RoleClientPortalUser: Scoped(map[Module][]Action{
		ModuleClients:       {ActionView},
		ModuleDocuments:     {ActionView},
		ModuleFilings:       {ActionView},
		ModuleServices:      {ActionView},
		ModuleTasks:         {ActionView},
		ModuleNotifications: {ActionView},
		ModuleDashboard:     {ActionView},
		ModuleProfile:       {ActionView, ActionEdit},
	}),
}

// CapabilitiesFor returns the capability profile of a built-in role. Calling
// it with a role outside the closed set is a programming error and panics;
// validate boundary input with ParseRole first.
func CapabilitiesFor(role Role) Profile {
	profile, ok := catalog[role]
	if !ok {
		panic(fmt.Sprintf("authz: no capability profile for role %q", role))
	}
	return profile
}
