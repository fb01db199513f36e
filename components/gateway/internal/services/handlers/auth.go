package handlers

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/DimitryIvaniuta/order-platform-sub001/common"
	"github.com/DimitryIvaniuta/order-platform-sub001/common/constant"
	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	httpx "github.com/DimitryIvaniuta/order-platform-sub001/common/net/http"
	"github.com/DimitryIvaniuta/order-platform-sub001/components/gateway/internal/adapters/postgres"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/authn"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/keys"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/ratelimit"
)

// TokenInput is the password-grant body for POST /oauth/token.
type TokenInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenOutput mirrors the OAuth2 password-grant response shape.
type TokenOutput struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	Ext         map[string]any `json:"ext,omitempty"`
}

// AuthHandlers wires the login-throttled password grant and the discovery
// endpoints that let downstream services and clients verify the tokens the
// gateway issues.
type AuthHandlers struct {
	DB         *sql.DB
	Users      *postgres.UserRepository
	Issuer     *authn.Issuer
	Keys       *keys.Manager
	RateLimit  *ratelimit.Limiter
	AccessTTL  time.Duration
	Audience   string
	Logger     mlog.Logger
}

// Token implements the password grant: rate-limited by caller IP, checked
// against the stored bcrypt hash, and on success minted into an RS256
// token carrying the scopes and tenant roles DeriveAuthorities later reads
// back out of it.
func (h *AuthHandlers) Token(p any, c *fiber.Ctx) error {
	input, ok := p.(*TokenInput)
	if !ok {
		return httpx.WithError(c, common.ValidateInternalError(errors.New("unexpected payload type"), "Token"))
	}

	ctx := c.UserContext()
	clientID := c.IP()

	check, err := h.RateLimit.Check(ctx, clientID)
	if err != nil {
		return httpx.WithError(c, common.ValidateInternalError(err, "Token"))
	}

	if !check.Allowed {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":             "invalid_grant",
			"error_description": "too many failed login attempts",
			"retryAt":           check.RetryAt,
		})
	}

	user, err := h.Users.FindByUsername(ctx, h.DB, input.Username)
	if err != nil {
		h.recordFailure(ctx, clientID)
		return invalidGrant(c)
	}

	if err := authn.VerifyCredentials(user.PasswordHash, input.Password); err != nil {
		h.recordFailure(ctx, clientID)
		return invalidGrant(c)
	}

	if err := h.RateLimit.Reset(ctx, clientID); err != nil {
		h.Logger.Warnf("gateway: reset rate limit for %s: %v", clientID, err)
	}

	token, err := h.Issuer.Issue(authn.IssueRequest{
		Subject:     user.ID,
		Audience:    h.Audience,
		Scopes:      user.Scopes,
		TenantRoles: authn.TenantRoles(user.TenantRoles),
		TTL:         h.AccessTTL,
	})
	if err != nil {
		return httpx.WithError(c, common.ValidateInternalError(err, "Token"))
	}

	return c.Status(fiber.StatusOK).JSON(TokenOutput{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.AccessTTL.Seconds()),
		Ext: map[string]any{
			"scope": user.Scopes,
		},
	})
}

// recordFailure increments the rate limiter's counter for clientID, logging
// rather than failing the request if Redis itself is unavailable: a missed
// increment only weakens throttling, it must never block a login attempt.
func (h *AuthHandlers) recordFailure(ctx context.Context, clientID string) {
	if err := h.RateLimit.RecordFailure(ctx, clientID); err != nil {
		h.Logger.Warnf("gateway: record login failure for %s: %v", clientID, err)
	}
}

func invalidGrant(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_grant"})
}

// OpenIDConfiguration serves the discovery document every verifying service
// and client uses to locate the gateway's JWKS.
func (h *AuthHandlers) OpenIDConfiguration(issuerURL string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"issuer":                                issuerURL,
			"jwks_uri":                               issuerURL + "/.well-known/jwks.json",
			"subject_types_supported":                []string{"public"},
			"id_token_signing_alg_values_supported":  []string{"RS256"},
			"token_endpoint":                         issuerURL + "/oauth/token",
		})
	}
}

// JWKS serves the retained public-key set, cacheable for the rotation
// interval's slack so non-gateway services don't refetch on every request.
func (h *AuthHandlers) JWKS(c *fiber.Ctx) error {
	set, err := h.Keys.JWKS()
	if err != nil {
		return httpx.WithError(c, common.ValidateBusinessError(constant.ErrUnknownSigningKey, "JWKS"))
	}

	c.Set(fiber.HeaderCacheControl, "public, max-age=600")

	return c.Status(fiber.StatusOK).JSON(set)
}
