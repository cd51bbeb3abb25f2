package authz

import (
	"errors"
	"testing"
)

func TestParseRoleAcceptsBuiltins(t *testing.T) {
	for _, role := range Roles() {
		parsed, err := ParseRole(string(role))
		if err != nil {
			t.Fatalf("ParseRole(%q) returned error: %v", role, err)
		}
		if parsed != role {
			t.Fatalf("ParseRole(%q) = %q", role, parsed)
		}
	}
}

func TestParseRoleRejectsUnknown(t *testing.T) {
	for _, value := range []string{"", "superadmin", "Admin", "Intruder"} {
		if _, err := ParseRole(value); !errors.Is(err, ErrUnknownRole) {
			t.Fatalf("ParseRole(%q) error = %v, want ErrUnknownRole", value, err)
		}
	}
}

func TestRolesCoversCatalog(t *testing.T) {
	roles := Roles()
	if len(roles) != len(catalog) {
		t.Fatalf("Roles() lists %d roles, catalog has %d", len(roles), len(catalog))
	}
	for _, role := range roles {
		if _, ok := catalog[role]; !ok {
			t.Fatalf("role %q missing from catalog", role)
		}
	}
}

func TestCapabilitiesForUnknownRolePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unknown role")
		}
	}()
	CapabilitiesFor(Role("Intruder"))
}
