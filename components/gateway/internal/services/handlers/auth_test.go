package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/keys"
)

func newTestKeyManager(t *testing.T) *keys.Manager {
	t.Helper()
	km := keys.NewManager(&mlog.NoneLogger{}, time.Hour, keys.MinRetention(time.Hour, time.Hour))
	if err := km.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(km.Stop)
	return km
}

func TestOpenIDConfiguration(t *testing.T) {
	h := &AuthHandlers{Logger: &mlog.NoneLogger{}}

	app := fiber.New()
	app.Get("/.well-known/openid-configuration", h.OpenIDConfiguration("https://gateway.example.com"))

	req := httptest.NewRequest("GET", "/.well-known/openid-configuration", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["issuer"] != "https://gateway.example.com" {
		t.Errorf("issuer = %v, want https://gateway.example.com", doc["issuer"])
	}
	if doc["jwks_uri"] != "https://gateway.example.com/.well-known/jwks.json" {
		t.Errorf("jwks_uri = %v", doc["jwks_uri"])
	}
}

func TestJWKSServesRetainedKeys(t *testing.T) {
	km := newTestKeyManager(t)
	h := &AuthHandlers{Keys: km, Logger: &mlog.NoneLogger{}}

	app := fiber.New()
	app.Get("/.well-known/jwks.json", h.JWKS)

	req := httptest.NewRequest("GET", "/.well-known/jwks.json", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if cc := resp.Header.Get(fiber.HeaderCacheControl); cc != "public, max-age=600" {
		t.Errorf("Cache-Control = %q", cc)
	}

	body, _ := io.ReadAll(resp.Body)
	var set map[string]any
	if err := json.Unmarshal(body, &set); err != nil {
		t.Fatalf("unmarshal jwks: %v", err)
	}
	keysArr, ok := set["keys"].([]any)
	if !ok || len(keysArr) == 0 {
		t.Fatalf("expected at least one key in jwks, got %v", set)
	}
}
