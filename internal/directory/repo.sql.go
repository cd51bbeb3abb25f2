package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-compliance/meridian/internal/authz"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("directory: not found")

// Repository defines the read operations backing actor resolution.
type Repository interface {
	GetAccount(ctx context.Context, id int64) (*Account, error)
	ListAssignedClientIDs(ctx context.Context, accountID int64) ([]int64, error)
	ListAssignments(ctx context.Context, accountID int64, limit, offset int) ([]ClientAssignment, error)
	CountAssignments(ctx context.Context, accountID int64) (int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetAccount fetches one account by id.
func (r *PGRepository) GetAccount(ctx context.Context, id int64) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, email, role, tenant_id, is_active, created_at, updated_at FROM accounts WHERE id = $1`, id)
	var (
		account Account
		role    string
	)
	if err := row.Scan(&account.ID, &account.Email, &role, &account.TenantID, &account.IsActive, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// Role validity is the service's concern; the row is returned as stored.
	account.Role = authz.Role(role)
	return &account, nil
}

// ListAssignedClientIDs returns the client ids currently assigned to an
// account. Expired assignments grant nothing and are excluded here even
// before the sweep job removes them.
func (r *PGRepository) ListAssignedClientIDs(ctx context.Context, accountID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT client_id FROM portal_client_assignments WHERE account_id = $1 AND (expires_at IS NULL OR expires_at > now()) ORDER BY client_id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// ListAssignments returns a page of an account's active assignments.
func (r *PGRepository) ListAssignments(ctx context.Context, accountID int64, limit, offset int) ([]ClientAssignment, error) {
	rows, err := r.pool.Query(ctx, `SELECT account_id, client_id, granted_by, granted_at, expires_at FROM portal_client_assignments WHERE account_id = $1 AND (expires_at IS NULL OR expires_at > now()) ORDER BY client_id LIMIT $2 OFFSET $3`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var assignments []ClientAssignment
	for rows.Next() {
		var (
			assignment ClientAssignment
			expiresAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&assignment.AccountID, &assignment.ClientID, &assignment.GrantedBy, &assignment.GrantedAt, &expiresAt); err != nil {
			return nil, err
		}
		if expiresAt.Valid {
			t := expiresAt.Time
			assignment.ExpiresAt = &t
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assignments, nil
}

// CountAssignments returns the number of active assignments for an account.
func (r *PGRepository) CountAssignments(ctx context.Context, accountID int64) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM portal_client_assignments WHERE account_id = $1 AND (expires_at IS NULL OR expires_at > now())`, accountID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

var _ Repository = (*PGRepository)(nil)
