package decisions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-compliance/meridian/internal/authz"
	"github.com/meridian-compliance/meridian/internal/directory"
	"github.com/meridian-compliance/meridian/internal/observability"
)

// CheckInput describes one authorization question asked by a platform
// service: may this account perform this action on this module, optionally
// against a resource owned by a tenant and scoped to a client.
type CheckInput struct {
	UserID           string `json:"user_id" validate:"required"`
	Module           string `json:"module" validate:"required"`
	Action           string `json:"action" validate:"required"`
	ResourceTenantID *int64 `json:"resource_tenant_id,omitempty"`
	ClientID         *int64 `json:"client_id,omitempty"`
	Message          string `json:"message,omitempty"`
}

// Decision is the outcome of one check. Decisions are computed fresh on
// every call against live directory data and carry an id for log
// correlation; callers must not cache or replay them.
type Decision struct {
	ID        uuid.UUID `json:"decision_id"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// RoleProfile describes one role's capabilities for introspection endpoints.
type RoleProfile struct {
	Role         authz.Role                      `json:"role"`
	Unrestricted bool                            `json:"unrestricted"`
	Capabilities map[authz.Module][]authz.Action `json:"capabilities,omitempty"`
}

// ProfileFor summarises a role's capability profile.
func ProfileFor(role authz.Role) RoleProfile {
	profile := authz.CapabilitiesFor(role)
	return RoleProfile{
		Role:         role,
		Unrestricted: profile.IsUnrestricted(),
		Capabilities: profile.Grants(),
	}
}

// Profiles lists every built-in role profile in catalog order.
func Profiles() []RoleProfile {
	roles := authz.Roles()
	out := make([]RoleProfile, 0, len(roles))
	for _, role := range roles {
		out = append(out, ProfileFor(role))
	}
	return out
}

// Service answers authorization questions using live directory data.
type Service struct {
	directory *directory.Service
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewService constructs a Service.
func NewService(directorySvc *directory.Service, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{directory: directorySvc, logger: logger, metrics: metrics}
}

// Check evaluates a single authorization question. Denials are reported in
// the decision, not as errors; only directory failures surface as errors.
// An inactive account is a denial: the account exists, it just may not act.
func (s *Service) Check(ctx context.Context, input CheckInput) (Decision, error) {
	start := time.Now()

	actor, err := s.directory.Resolve(ctx, input.UserID)
	if errors.Is(err, directory.ErrAccountInactive) {
		return s.record(input, start, authz.Forbidden("account is inactive")), nil
	}
	if err != nil {
		return Decision{}, err
	}

	req := authz.Request{
		Module:           authz.Module(input.Module),
		Action:           authz.Action(input.Action),
		ResourceTenantID: input.ResourceTenantID,
		ClientID:         input.ClientID,
		Message:          input.Message,
	}
	if input.ClientID != nil {
		assigned, err := s.directory.AssignedClients(ctx, actor)
		if err != nil {
			return Decision{}, err
		}
		req.AssignedClientIDs = assigned
	}

	return s.record(input, start, authz.Authorize(actor, req)), nil
}

func (s *Service) record(input CheckInput, start time.Time, denial error) Decision {
	decision := Decision{
		ID:        uuid.New(),
		Allowed:   denial == nil,
		CheckedAt: time.Now().UTC(),
	}
	if denial != nil {
		decision.Reason = denial.Error()
	}
	s.metrics.ObserveDecision(input.Module, decision.Allowed, time.Since(start))
	if s.logger != nil {
		s.logger.Info("authorization decision",
			slog.String("decision_id", decision.ID.String()),
			slog.String("user_id", input.UserID),
			slog.String("module", input.Module),
			slog.String("action", input.Action),
			slog.Bool("allowed", decision.Allowed),
		)
	}
	return decision
}
