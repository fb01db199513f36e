// Package authn implements C2: the JWT issuer and the authority-derivation
// rules every service applies to a verified token, plus the downstream
// JWKProvider/verification middleware every non-gateway service uses to
// validate gateway-issued tokens.
package authn

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/DimitryIvaniuta/order-platform-sub001/common/constant"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/authority"
	"github.com/DimitryIvaniuta/order-platform-sub001/pkg/keys"
)

// TenantRoles maps a tenant id to the roles a principal holds within it,
// the shape of the `mt` claim.
type TenantRoles map[string][]string

// IssueRequest carries the inputs required to mint a token for one login.
type IssueRequest struct {
	Subject     string
	Audience    string
	Scopes      []string
	TenantRoles TenantRoles
	Permissions []string
	TTL         time.Duration
}

// Issuer mints RS256 tokens using the current signing key from a
// keys.Manager and embeds the signing kid in the token header.
type Issuer struct {
	keyManager *keys.Manager
	issuer     string
}

// NewIssuer builds an Issuer bound to issuer (the `iss` claim value).
func NewIssuer(keyManager *keys.Manager, issuerClaim string) *Issuer {
	return &Issuer{keyManager: keyManager, issuer: issuerClaim}
}

// Issue mints a signed token for req, returning the compact JWT string.
func (i *Issuer) Issue(req IssueRequest) (string, error) {
	kid, private, err := i.keyManager.CurrentSigningKey()
	if err != nil {
		return "", fmt.Errorf("authn: resolve signing key: %w", err)
	}

	now := time.Now().UTC()

	claims := jwt.MapClaims{
		"iss":   i.issuer,
		"sub":   req.Subject,
		"aud":   req.Audience,
		"iat":   now.Unix(),
		"exp":   now.Add(req.TTL).Unix(),
		"scope": strings.Join(req.Scopes, " "),
		"mt":    req.TenantRoles,
	}

	if len(req.Permissions) > 0 {
		claims["perm"] = req.Permissions
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid

	signed, err := token.SignedString(private)
	if err != nil {
		return "", fmt.Errorf("authn: sign token: %w", err)
	}

	return signed, nil
}

// VerifyCredentials checks a plaintext password against a bcrypt hash,
// using a case-insensitive comparison of the username the caller already
// resolved via its own case-insensitive index lookup.
func VerifyCredentials(storedHash []byte, password string) error {
	if err := bcrypt.CompareHashAndPassword(storedHash, []byte(password)); err != nil {
		return constant.ErrInvalidCredentials
	}

	return nil
}

// KeycloakResourcePrefix is the default prefix used to recognize tenant
// entries inside a Keycloak-style `resource_access` claim.
const KeycloakResourcePrefix = "tenant-"

// DeriveAuthorities implements SPEC_FULL.md §4.2's four-step authority
// derivation over a verified token's claims.
func DeriveAuthorities(claims jwt.MapClaims, resourcePrefix string, mapAudience bool) authority.Set {
	var set authority.Set

	set = append(set, scopesFromClaims(claims)...)
	set = append(set, tenantRolesFromClaims(claims)...)
	set = append(set, resourceAccessTenantRoles(claims, resourcePrefix)...)

	if mapAudience {
		set = append(set, audiencesFromClaims(claims)...)
	}

	return set
}

func scopesFromClaims(claims jwt.MapClaims) authority.Set {
	raw, ok := claims["scope"].(string)
	if !ok {
		raw, _ = claims["scp"].(string)
	}

	if raw == "" {
		return nil
	}

	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ' ' || r == ',' })

	set := make(authority.Set, 0, len(fields))
	for _, s := range fields {
		if s == "" {
			continue
		}
		set = append(set, authority.Scope(s))
	}

	return set
}

func tenantRolesFromClaims(claims jwt.MapClaims) authority.Set {
	mt, ok := claims["mt"].(map[string]any)
	if !ok {
		return nil
	}

	var set authority.Set

	for tenant, rolesAny := range mt {
		roles, ok := rolesAny.([]any)
		if !ok {
			continue
		}

		for _, roleAny := range roles {
			role, ok := roleAny.(string)
			if !ok {
				continue
			}
			set = append(set, authority.TenantRole(tenant, role))
		}
	}

	return set
}

func resourceAccessTenantRoles(claims jwt.MapClaims, prefix string) authority.Set {
	resourceAccess, ok := claims["resource_access"].(map[string]any)
	if !ok {
		return nil
	}

	var set authority.Set

	for key, val := range resourceAccess {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		tenant := strings.TrimPrefix(key, prefix)

		entry, ok := val.(map[string]any)
		if !ok {
			continue
		}

		rolesAny, ok := entry["roles"].([]any)
		if !ok {
			continue
		}

		for _, roleAny := range rolesAny {
			role, ok := roleAny.(string)
			if !ok {
				continue
			}
			set = append(set, authority.TenantRole(tenant, role))
		}
	}

	return set
}

func audiencesFromClaims(claims jwt.MapClaims) authority.Set {
	switch aud := claims["aud"].(type) {
	case string:
		return authority.Set{authority.Audience(aud)}
	case []any:
		set := make(authority.Set, 0, len(aud))
		for _, a := range aud {
			if s, ok := a.(string); ok {
				set = append(set, authority.Audience(s))
			}
		}
		return set
	default:
		return nil
	}
}

// NewCorrelationID mints a fresh request correlation id independent of any
// sagaId, matching SPEC_FULL.md §4.8's step 3.
func NewCorrelationID() string { return uuid.NewString() }
