// Package keys implements the key manager + JWKS producer (C1): an
// in-memory map of RSA signing keys keyed by kid, a single atomic pointer to
// the current kid (the "global mutable current key" redesign flag,
// generalized to a single-writer/lock-free-reader atomic pointer into an
// immutable-once-inserted map), periodic rotation, and JWKS marshalling via
// lestrrat-go/jwx/v2/jwk -- the same library the teacher's withJWT.go uses
// client-side to parse a remote JWKS, used here as the producer instead.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
)

const rsaKeyBits = 2048

// keyPair is one rotation generation. It keeps both its public and private
// key for as long as it is retained; only the current kid's private key is
// handed out for signing, and JWKS publishes the public halves only.
type keyPair struct {
	kid     string
	private *rsa.PrivateKey
	public  *rsa.PublicKey
}

// Manager rotates RSA signing keys on a fixed interval and exposes the
// current signing key plus the full retained set as a JWKS.
type Manager struct {
	logger mlog.Logger

	rotationInterval time.Duration
	retention        int

	mu   sync.Mutex
	keys map[string]*keyPair // insert-only; pruned under mu
	// currentKid is read lock-free by currentSigningKey/jwks; written only
	// by the single rotation goroutine, always after the new key is already
	// present in keys.
	currentKid atomic.Pointer[string]

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewManager builds a Manager with the given rotation interval and an
// explicit retention count. Retention must be at least
// ceil(maxTokenTTL/rotationInterval)+1 for the caller's chosen token TTL.
func NewManager(logger mlog.Logger, rotationInterval time.Duration, retention int) *Manager {
	if retention < 2 {
		retention = 2
	}

	m := &Manager{
		logger:           logger,
		rotationInterval: rotationInterval,
		retention:        retention,
		keys:             make(map[string]*keyPair),
		stopCh:           make(chan struct{}),
	}

	return m
}

// Start generates the first key synchronously and launches the rotation
// loop. Call Stop to release the background goroutine.
func (m *Manager) Start() error {
	if err := m.rotate(); err != nil {
		return fmt.Errorf("keys: initial rotation: %w", err)
	}

	m.wg.Add(1)
	go m.loop()

	return nil
}

// Stop terminates the rotation loop.
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Manager) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.rotationInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			if err := m.rotate(); err != nil {
				consecutiveFailures++
				m.logger.Errorf("keys: rotation failed (%d consecutive): %v", consecutiveFailures, err)

				if consecutiveFailures >= 2 {
					m.logger.Fatalf("keys: two consecutive rotation failures, liveness is unhealthy: %v", err)
				}

				continue
			}

			consecutiveFailures = 0
		}
	}
}

func (m *Manager) rotate() error {
	private, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return fmt.Errorf("generate rsa key: %w", err)
	}

	kid := uuid.NewString()

	pair := &keyPair{kid: kid, private: private, public: &private.PublicKey}

	m.mu.Lock()
	m.keys[kid] = pair
	m.currentKid.Store(&kid)
	m.pruneLocked()
	m.mu.Unlock()

	m.logger.Infof("keys: rotated, new current kid=%s, retained=%d", kid, len(m.keys))

	return nil
}

// pruneLocked drops the oldest keys once more than retention remain. Called
// with mu held. The current kid is never pruned: rotate stores the new kid
// as current before calling it, and the loop below skips the current kid.
func (m *Manager) pruneLocked() {
	if len(m.keys) <= m.retention {
		return
	}

	// The keys map has no insertion-order guarantee, so this prunes
	// arbitrary non-current entries down to retention; rotation is
	// infrequent enough relative to retention that this is acceptable --
	// only the most recently generated keys are ever current.
	var toDelete []string
	current := m.currentKid.Load()

	for kid := range m.keys {
		if current != nil && kid == *current {
			continue
		}
		toDelete = append(toDelete, kid)
		if len(m.keys)-len(toDelete) <= m.retention {
			break
		}
	}

	for _, kid := range toDelete {
		delete(m.keys, kid)
	}
}

// CurrentSigningKey returns the kid and private key to sign a new token
// with. Never fails once Start has completed.
func (m *Manager) CurrentSigningKey() (string, *rsa.PrivateKey, error) {
	kidPtr := m.currentKid.Load()
	if kidPtr == nil {
		return "", nil, fmt.Errorf("keys: manager not started")
	}

	m.mu.Lock()
	pair, ok := m.keys[*kidPtr]
	m.mu.Unlock()

	if !ok {
		return "", nil, fmt.Errorf("keys: current kid %s missing from key map", *kidPtr)
	}

	return pair.kid, pair.private, nil
}

// PublicKey returns the public key for kid, for verifying a token signed
// before the most recent rotation.
func (m *Manager) PublicKey(kid string) (*rsa.PublicKey, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair, ok := m.keys[kid]
	if !ok {
		return nil, false
	}

	return pair.public, true
}

// JWKS marshals the full retained public-key set using jwx/v2/jwk.
func (m *Manager) JWKS() (jwk.Set, error) {
	set := jwk.NewSet()

	m.mu.Lock()
	defer m.mu.Unlock()

	for kid, pair := range m.keys {
		key, err := jwk.FromRaw(pair.public)
		if err != nil {
			return nil, fmt.Errorf("keys: jwk.FromRaw for kid %s: %w", kid, err)
		}

		if err := key.Set(jwk.KeyIDKey, kid); err != nil {
			return nil, fmt.Errorf("keys: set kid: %w", err)
		}
		if err := key.Set(jwk.KeyUsageKey, "sig"); err != nil {
			return nil, fmt.Errorf("keys: set use: %w", err)
		}
		if err := key.Set(jwk.AlgorithmKey, "RS256"); err != nil {
			return nil, fmt.Errorf("keys: set alg: %w", err)
		}

		if err := set.AddKey(key); err != nil {
			return nil, fmt.Errorf("keys: add key to set: %w", err)
		}
	}

	return set, nil
}

// MinRetention computes ceil(maxTokenTTL/rotationInterval)+1, the formula
// named in SPEC_FULL.md's data model for signing-key retention.
func MinRetention(maxTokenTTL, rotationInterval time.Duration) int {
	if rotationInterval <= 0 {
		return 2
	}

	ratio := float64(maxTokenTTL) / float64(rotationInterval)
	n := int(ratio)
	if float64(n) < ratio {
		n++
	}

	return n + 1
}
