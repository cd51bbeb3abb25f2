package directory

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/meridian-compliance/meridian/internal/authz"
	"github.com/meridian-compliance/meridian/internal/shared"
)

// ErrAccountInactive indicates the account exists but has been deactivated.
var ErrAccountInactive = errors.New("directory: account inactive")

// Service resolves actors and portal allow-lists from the credential store.
// Nothing is cached across requests: role, tenant and assignment changes take
// effect on the very next call.
type Service struct {
	repo  Repository
	group singleflight.Group
}

// NewService constructs a Service backed by the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve loads the account behind an opaque user id and shapes it into an
// actor. Inactive accounts and roles outside the built-in set are rejected.
func (s *Service) Resolve(ctx context.Context, userID string) (authz.Actor, error) {
	id, err := parseAccountID(userID)
	if err != nil {
		return authz.Actor{}, err
	}
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return authz.Actor{}, err
	}
	if !account.IsActive {
		return authz.Actor{}, ErrAccountInactive
	}
	role, err := authz.ParseRole(string(account.Role))
	if err != nil {
		return authz.Actor{}, err
	}
	return authz.Actor{UserID: userID, Role: role, TenantID: account.TenantID}, nil
}

// Account returns the raw account row. Unlike Resolve it does not reject
// inactive accounts; support tooling needs to inspect suspended users too.
func (s *Service) Account(ctx context.Context, id int64) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// AssignedClients returns the client ids a portal actor may see. Non-portal
// roles need no allow-list and return nil immediately. Concurrent duplicate
// lookups for the same account are collapsed into one query; results are
// never reused across requests.
func (s *Service) AssignedClients(ctx context.Context, actor authz.Actor) ([]int64, error) {
	if actor.Role != authz.RoleClientPortalUser {
		return nil, nil
	}
	id, err := parseAccountID(actor.UserID)
	if err != nil {
		return nil, err
	}
	resultChan := s.group.DoChan(actor.UserID, func() (interface{}, error) {
		return s.repo.ListAssignedClientIDs(ctx, id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]int64), nil
	}
}

// Assignments returns one page of an account's active assignments together
// with pagination metadata.
func (s *Service) Assignments(ctx context.Context, accountID int64, page, perPage int) ([]ClientAssignment, shared.Pagination, error) {
	total, err := s.repo.CountAssignments(ctx, accountID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	pagination := shared.NewPagination(page, perPage, total)
	assignments, err := s.repo.ListAssignments(ctx, accountID, pagination.PerPage, pagination.Offset())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return assignments, pagination, nil
}

func parseAccountID(userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid account id %q", ErrNotFound, userID)
	}
	return id, nil
}
