package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/meridian-compliance/meridian/internal/authz"
	"github.com/meridian-compliance/meridian/internal/directory"
)

// AccessOpsCLI answers access questions straight against the database,
// bypassing the HTTP API. Support staff use it on live incidents where the
// question is "why can this account (not) see that client".
type AccessOpsCLI struct {
	repo directory.Repository
}

// NewAccessOpsCLI constructs the helper around a directory repository.
func NewAccessOpsCLI(repo directory.Repository) (*AccessOpsCLI, error) {
	if repo == nil {
		return nil, errors.New("access cli: repository is required")
	}
	return &AccessOpsCLI{repo: repo}, nil
}

// AccessCheckOptions defines available flags for the access check command.
type AccessCheckOptions struct {
	AccountID  int64
	Module     string
	Action     string
	ClientID   int64
	TenantID   int64
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// AccessCheckSummary describes the JSON response for access check.
type AccessCheckSummary struct {
	OK        bool   `json:"ok"`
	Allowed   bool   `json:"allowed"`
	Reason    string `json:"reason,omitempty"`
	AccountID int64  `json:"account_id"`
	Role      string `json:"role"`
	TenantID  int64  `json:"tenant_id"`
}

// CheckCommand evaluates one access question and prints the outcome. Exit
// codes: 0 allowed, 10 denied, 1 on usage or lookup errors.
func (c *AccessOpsCLI) CheckCommand(ctx context.Context, opts AccessCheckOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.AccountID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "access check: --account is required and must be positive")
		return 1
	}
	module := strings.TrimSpace(opts.Module)
	action := strings.TrimSpace(opts.Action)
	if module == "" || action == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "access check: --module and --action are required")
		return 1
	}

	account, err := c.repo.GetAccount(ctx, opts.AccountID)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "access check: %v\n", err)
		return 1
	}
	role, err := authz.ParseRole(string(account.Role))
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "access check: %v\n", err)
		return 1
	}
	actor := authz.Actor{UserID: strconv.FormatInt(account.ID, 10), Role: role, TenantID: account.TenantID}

	req := authz.Request{Module: authz.Module(module), Action: authz.Action(action)}
	if opts.TenantID > 0 {
		tenant := opts.TenantID
		req.ResourceTenantID = &tenant
	}
	if opts.ClientID > 0 {
		client := opts.ClientID
		req.ClientID = &client
		assigned, err := c.repo.ListAssignedClientIDs(ctx, account.ID)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "access check: %v\n", err)
			return 1
		}
		req.AssignedClientIDs = assigned
	}

	summary := AccessCheckSummary{
		OK:        true,
		Allowed:   true,
		AccountID: account.ID,
		Role:      string(role),
		TenantID:  account.TenantID,
	}
	if !account.IsActive {
		summary.Allowed = false
		summary.Reason = "account is inactive"
	} else if err := authz.Authorize(actor, req); err != nil {
		summary.Allowed = false
		summary.Reason = err.Error()
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "access check: encode json: %v\n", err)
			return 1
		}
	} else {
		renderCheckHuman(opts.Stdout, summary, module, action)
	}
	if !summary.Allowed {
		return 10
	}
	return 0
}

func renderCheckHuman(out io.Writer, summary AccessCheckSummary, module, action string) {
	verdict := "ALLOW"
	if !summary.Allowed {
		verdict = "DENY"
	}
	_, _ = fmt.Fprintf(out, "%s: account %d (%s, tenant %d) on %s %s\n", verdict, summary.AccountID, summary.Role, summary.TenantID, action, module)
	if summary.Reason != "" {
		_, _ = fmt.Fprintf(out, " - %s\n", summary.Reason)
	}
}

// AccessGrantsOptions defines available flags for the access grants command.
type AccessGrantsOptions struct {
	Role       string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// AccessGrantsSummary describes the JSON response for access grants.
type AccessGrantsSummary struct {
	Role         string        `json:"role"`
	Unrestricted bool          `json:"unrestricted"`
	Grants       []AccessGrant `json:"grants"`
}

// AccessGrant lists the actions a role may perform in one module.
type AccessGrant struct {
	Module  string   `json:"module"`
	Actions []string `json:"actions"`
}

// GrantsCommand prints a role's capability profile. Exit codes: 0 on
// success, 1 for unknown roles.
func (c *AccessOpsCLI) GrantsCommand(opts AccessGrantsOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	role, err := authz.ParseRole(strings.TrimSpace(opts.Role))
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "access grants: %v\n", err)
		return 1
	}
	summary := buildGrantsSummary(role)
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "access grants: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	renderGrantsHuman(opts.Stdout, summary)
	return 0
}

func buildGrantsSummary(role authz.Role) AccessGrantsSummary {
	profile := authz.CapabilitiesFor(role)
	summary := AccessGrantsSummary{
		Role:         string(role),
		Unrestricted: profile.IsUnrestricted(),
		Grants:       make([]AccessGrant, 0),
	}
	for module, actions := range profile.Grants() {
		names := make([]string, len(actions))
		for i, action := range actions {
			names[i] = string(action)
		}
		summary.Grants = append(summary.Grants, AccessGrant{Module: string(module), Actions: names})
	}
	sort.Slice(summary.Grants, func(i, j int) bool { return summary.Grants[i].Module < summary.Grants[j].Module })
	return summary
}

func renderGrantsHuman(out io.Writer, summary AccessGrantsSummary) {
	if summary.Unrestricted {
		_, _ = fmt.Fprintf(out, "%s: unrestricted\n", summary.Role)
		return
	}
	_, _ = fmt.Fprintf(out, "%s grants:\n", summary.Role)
	for _, grant := range summary.Grants {
		_, _ = fmt.Fprintf(out, " - %s: %s\n", grant.Module, strings.Join(grant.Actions, ", "))
	}
}
