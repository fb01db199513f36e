package authn

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/keys"
)

func TestIssueAndDeriveAuthorities(t *testing.T) {
	km := keys.NewManager(&mlog.NoneLogger{}, time.Hour, 3)
	if err := km.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer km.Stop()

	issuer := NewIssuer(km, "order-platform")

	token, err := issuer.Issue(IssueRequest{
		Subject:     "user-1",
		Audience:    "orders-api",
		Scopes:      []string{"orders.write", "orders.read"},
		TenantRoles: TenantRoles{"acme": {"admin"}},
		TTL:         time.Hour,
	})
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		t.Fatalf("ParseUnverified() error: %v", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("claims not a MapClaims")
	}

	authorities := DeriveAuthorities(claims, KeycloakResourcePrefix, false)

	if !authorities.HasScope("orders.write") {
		t.Errorf("expected SCOPE_orders.write authority, got %v", authorities)
	}
	if !authorities.RoleIn("acme", "admin") {
		t.Errorf("expected TENANT_acme:admin authority, got %v", authorities)
	}
}

func TestVerifyCredentials(t *testing.T) {
	t.Run("wrong password rejected", func(t *testing.T) {
		hash := mustHash(t, "correct-password")
		if err := VerifyCredentials(hash, "wrong-password"); err == nil {
			t.Fatalf("expected error for wrong password")
		}
	})

	t.Run("correct password accepted", func(t *testing.T) {
		hash := mustHash(t, "correct-password")
		if err := VerifyCredentials(hash, "correct-password"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func mustHash(t *testing.T, password string) []byte {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash generation failed: %v", err)
	}

	return hash
}
