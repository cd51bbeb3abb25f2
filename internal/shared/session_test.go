package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-compliance/meridian/internal/shared"
)

func newSessionStore(t *testing.T) (*shared.SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionStore(client, "test_session"), mr
}

func TestLoadWithoutCookie(t *testing.T) {
	store, _ := newSessionStore(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	sess, err := store.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected nil session for anonymous request, got %+v", sess)
	}
}

func TestLoadExpiredSession(t *testing.T) {
	store, _ := newSessionStore(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "gone"})

	sess, err := store.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected nil session for expired cookie, got %+v", sess)
	}
}

func TestLoadResolvesUser(t *testing.T) {
	store, mr := newSessionStore(t)
	mr.Set("session:abc", `{"values":{"theme":"dark"},"user_id":"42"}`)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "abc"})

	sess, err := store.Load(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if sess == nil || sess.UserID != "42" || sess.ID != "abc" {
		t.Fatalf("unexpected session %+v", sess)
	}

	ctx := shared.ContextWithSession(context.Background(), sess)
	if got := shared.UserIDFromContext(ctx); got != "42" {
		t.Fatalf("expected user id from context, got %q", got)
	}
	if got := shared.UserIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty user id for anonymous context, got %q", got)
	}
}

func TestCSRFTokenRoundTrip(t *testing.T) {
	manager := shared.NewCSRFManager("csrfsecret")
	token := manager.Token("abc")
	if token == "" {
		t.Fatalf("expected non-empty token")
	}
	if err := manager.Verify("abc", token); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := manager.Verify("abc", ""); err != shared.ErrCSRFTokenMissing {
		t.Fatalf("expected missing token error, got %v", err)
	}
	if err := manager.Verify("other-session", token); err != shared.ErrCSRFTokenMismatch {
		t.Fatalf("expected mismatch error, got %v", err)
	}
	if err := manager.Verify("abc", shared.NewCSRFManager("different").Token("abc")); err != shared.ErrCSRFTokenMismatch {
		t.Fatalf("expected mismatch for foreign secret, got %v", err)
	}
}
