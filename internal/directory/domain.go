package directory

import (
	"time"

	"github.com/meridian-compliance/meridian/internal/authz"
)

// Account is a credential-store record. The platform's identity service owns
// the table; this service only reads it to resolve actors.
type Account struct {
	ID        int64
	Email     string
	Role      authz.Role
	TenantID  int64
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClientAssignment links a portal account to one client it may see. Rows with
// a past expiry no longer grant anything and are swept by the worker.
type ClientAssignment struct {
	AccountID int64
	ClientID  int64
	GrantedBy int64
	GrantedAt time.Time
	ExpiresAt *time.Time
}
