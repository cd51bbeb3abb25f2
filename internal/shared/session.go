package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// SessionStore reads the platform's cookie sessions from Redis. The identity
// service owns issuance, renewal and destruction; this service only needs the
// authenticated account behind a cookie, so the store never writes.
type SessionStore struct {
	client     *redis.Client
	cookieName string
}

// Session is the slice of the platform session this service consumes.
type Session struct {
	ID     string
	UserID string
	Values map[string]string
}

// sessionPayload mirrors the JSON the identity service stores per session.
type sessionPayload struct {
	Values map[string]string `json:"values"`
	UserID string            `json:"user_id"`
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, cookieName string) *SessionStore {
	return &SessionStore{client: client, cookieName: cookieName}
}

// Load resolves the session referenced by the request cookie. A request
// without a cookie, or with a cookie whose session has expired, yields
// (nil, nil); only infrastructure failures surface as errors.
func (ss *SessionStore) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(ss.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}
	payload, err := ss.client.Get(ctx, ss.redisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}
	return &Session{ID: cookie.Value, UserID: stored.UserID, Values: stored.Values}, nil
}

// CookieName returns the cookie identifier shared with the identity service.
func (ss *SessionStore) CookieName() string {
	return ss.cookieName
}

func (ss *SessionStore) redisKey(id string) string {
	return "session:" + id
}
