package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/patrickmn/go-cache"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/mlog"
	httpx "github.com/DimitryIvaniuta/order-platform-sub001/common/net/http"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/authority"
)

const defaultJWKCacheDuration = 10 * time.Minute

// JWKProvider fetches and caches a remote JWKS, modeled directly on the
// teacher's withJWT.go JWKProvider but pointed at this module's own
// gateway instead of an external IdP, and using jwx/v2.
type JWKProvider struct {
	URI           string
	CacheDuration time.Duration

	once  sync.Once
	cache *cache.Cache
}

// Fetch returns the cached JWKS for URI, refreshing it from the network
// once the cache entry expires.
//
//nolint:ireturn
func (p *JWKProvider) Fetch(ctx context.Context) (jwk.Set, error) {
	p.once.Do(func() {
		duration := p.CacheDuration
		if duration <= 0 {
			duration = defaultJWKCacheDuration
		}
		p.cache = cache.New(duration, duration)
	})

	if cached, found := p.cache.Get(p.URI); found {
		set, ok := cached.(jwk.Set)
		if ok {
			return set, nil
		}
	}

	set, err := jwk.Fetch(ctx, p.URI)
	if err != nil {
		return nil, fmt.Errorf("authn: fetch jwks from %s: %w", p.URI, err)
	}

	p.cache.Set(p.URI, set, cache.DefaultExpiration)

	return set, nil
}

// principalContextKey is the fiber Locals key an authenticated request's
// derived authority set is stored under.
type principalContextKey string

const localsPrincipal principalContextKey = "authn.principal"

// Principal is what downstream handlers read back out of the request.
type Principal struct {
	Subject    string
	Claims     jwt.MapClaims
	Authorities authority.Set
}

// PrincipalFromContext extracts the Principal stored by Middleware.Protect.
func PrincipalFromContext(c *fiber.Ctx) (Principal, bool) {
	v := c.Locals(localsPrincipal)
	if v == nil {
		return Principal{}, false
	}

	p, ok := v.(Principal)
	return p, ok
}

// SetPrincipal stores p under the same Locals key Middleware.Protect uses,
// letting route tests stand in for the JWT middleware without a real token.
func SetPrincipal(c *fiber.Ctx, p Principal) {
	c.Locals(localsPrincipal, p)
}

// Middleware verifies gateway-issued tokens against the cached JWKS and
// derives the principal's authority set.
type Middleware struct {
	jwk                 *JWKProvider
	issuer              string
	audience            string
	resourceAccessPrefix string
	mapAudience         bool
}

// NewMiddleware builds a Middleware pointed at jwksURI.
func NewMiddleware(jwksURI, issuer, audience, resourceAccessPrefix string, mapAudience bool) *Middleware {
	return &Middleware{
		jwk:                 &JWKProvider{URI: jwksURI, CacheDuration: defaultJWKCacheDuration},
		issuer:              issuer,
		audience:            audience,
		resourceAccessPrefix: resourceAccessPrefix,
		mapAudience:         mapAudience,
	}
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}

	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// Protect validates the Authorization header's bearer token and stores the
// derived Principal in request locals.
func (m *Middleware) Protect() fiber.Handler {
	return func(c *fiber.Ctx) error {
		logger := mlog.NewLoggerFromContext(c.UserContext())

		raw := bearerToken(c)
		if raw == "" {
			return httpx.Unauthorized(c, "4002", "Invalid Token", "must provide a bearer token")
		}

		keySet, err := m.jwk.Fetch(c.UserContext())
		if err != nil {
			logger.Errorf("authn: jwks fetch failed: %v", err)
			return httpx.Unauthorized(c, "4002", "Invalid Token", "unable to load verification keys")
		}

		token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}

			kid, ok := token.Header["kid"].(string)
			if !ok {
				return nil, errors.New("kid header not found")
			}

			key, ok := keySet.LookupKeyID(kid)
			if !ok {
				return nil, fmt.Errorf("kid %s not present in current jwks", kid)
			}

			var raw any
			if err := key.Raw(&raw); err != nil {
				return nil, err
			}

			return raw, nil
		},
			jwt.WithIssuer(m.issuer),
			jwt.WithAudience(m.audience),
			jwt.WithValidMethods([]string{"RS256"}),
		)
		if err != nil || !token.Valid {
			logger.Warnf("authn: token rejected: %v", err)
			return httpx.Unauthorized(c, "4002", "Invalid Token", "invalid_token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return httpx.Unauthorized(c, "4002", "Invalid Token", "invalid_token")
		}

		subject, _ := claims["sub"].(string)
		authorities := DeriveAuthorities(claims, m.resourceAccessPrefix, m.mapAudience)

		c.Locals(localsPrincipal, Principal{Subject: subject, Claims: claims, Authorities: authorities})

		return c.Next()
	}
}

// RequireScope rejects the request with 403 unless the principal holds the
// named scope authority.
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return httpx.Unauthorized(c, "4002", "Invalid Token", "invalid_token")
		}

		if !principal.Authorities.HasScope(scope) {
			return httpx.Forbidden(c, "4004", "Insufficient Authority", fmt.Sprintf("requires SCOPE_%s", scope))
		}

		return c.Next()
	}
}
