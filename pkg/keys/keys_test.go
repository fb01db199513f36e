package keys

import (
	"testing"
	"time"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
)

func TestManagerCurrentSigningKeyAndJWKS(t *testing.T) {
	m := NewManager(&mlog.NoneLogger{}, time.Hour, 3)

	if err := m.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer m.Stop()

	kid, priv, err := m.CurrentSigningKey()
	if err != nil {
		t.Fatalf("CurrentSigningKey() error: %v", err)
	}
	if kid == "" || priv == nil {
		t.Fatalf("expected non-empty kid and private key, got kid=%q priv=%v", kid, priv)
	}

	pub, ok := m.PublicKey(kid)
	if !ok || pub == nil {
		t.Fatalf("expected public key for current kid")
	}

	set, err := m.JWKS()
	if err != nil {
		t.Fatalf("JWKS() error: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("expected 1 key in JWKS, got %d", set.Len())
	}
}

func TestMinRetention(t *testing.T) {
	tests := []struct {
		ttl, interval time.Duration
		want          int
	}{
		{24 * time.Hour, 24 * time.Hour, 2},
		{25 * time.Hour, 24 * time.Hour, 3},
		{48 * time.Hour, 24 * time.Hour, 3},
	}

	for _, tt := range tests {
		if got := MinRetention(tt.ttl, tt.interval); got != tt.want {
			t.Errorf("MinRetention(%v, %v) = %d, want %d", tt.ttl, tt.interval, got, tt.want)
		}
	}
}
