package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meltforce/gymdesk/internal/models"
)

// TestIssueVerify verifies a freshly issued token round-trips to the same identity.
func TestIssueVerify(t *testing.T) {
	v := NewVerifier("secret")
	want := Identity{UserID: "u1", TenantID: "t1", Role: models.RoleCoach}
	tok, err := v.Issue(want, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	got, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != want {
		t.Errorf("identity = %+v, want %+v", got, want)
	}
}

// TestVerifyRejects covers expired, foreign-signed and incomplete tokens.
func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("secret")
	id := Identity{UserID: "u1", TenantID: "t1", Role: models.RoleAthlete}

	expired, _ := v.Issue(id, -time.Minute)
	foreign, _ := NewVerifier("other").Issue(id, time.Hour)
	noTenant, _ := v.Issue(Identity{UserID: "u1", Role: models.RoleAdmin}, time.Hour)
	badRole, _ := v.Issue(Identity{UserID: "u1", TenantID: "t1", Role: "owner"}, time.Hour)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
		TenantID:         "t1",
		Role:             models.RoleAdmin,
	}).SignedString([]byte("secret"))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		TenantID:         "t1",
		Role:             models.RoleAdmin,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"empty":     "",
		"garbage":   "not.a.token",
		"expired":   expired,
		"foreign":   foreign,
		"no tenant": noTenant,
		"bad role":  badRole,
		"no expiry": noExp,
		"alg none":  none,
	}
	for name, tok := range tests {
		if _, err := v.Verify(tok); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

// TestBearerToken verifies header parsing is case-insensitive on the scheme.
func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"":            "",
		"Bearer":      "",
	}
	for in, want := range tests {
		if got := BearerToken(in); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestContextIdentity verifies identities survive the request context.
func TestContextIdentity(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("empty context should carry no identity")
	}
	id := Identity{UserID: "u", TenantID: "t", Role: models.RoleAdmin}
	got, ok := FromContext(WithIdentity(context.Background(), id))
	if !ok || got != id {
		t.Errorf("got %+v, %v", got, ok)
	}
	if !id.Has(models.RoleCoach, models.RoleAdmin) || id.Has(models.RoleAthlete) {
		t.Error("Has mismatch")
	}
}
