// Package authority implements the polymorphic-authorities redesign: a value
// type over a plain string, with constructors per authority family and
// prefix-based matching, replacing any class hierarchy a reflective runtime
// would otherwise use to model "kinds of grant".
package authority

import "strings"

// Authority is a single derived grant string, e.g. "SCOPE_orders.write" or
// "TENANT_acme:admin".
type Authority string

const (
	scopePrefix      = "SCOPE_"
	tenantRolePrefix = "TENANT_"
	audiencePrefix   = "AUD_"
	permissionPrefix = "PERM_"
)

// Scope builds a SCOPE_ authority from a raw OAuth2 scope token.
func Scope(s string) Authority { return Authority(scopePrefix + s) }

// TenantRole builds a TENANT_<tenant>:<role> authority.
func TenantRole(tenant, role string) Authority {
	return Authority(tenantRolePrefix + tenant + ":" + role)
}

// Audience builds an AUD_ authority.
func Audience(a string) Authority { return Authority(audiencePrefix + a) }

// Permission builds a PERM_ authority.
func Permission(p string) Authority { return Authority(permissionPrefix + p) }

// IsScope reports whether the authority was derived from a scope.
func (a Authority) IsScope() bool { return strings.HasPrefix(string(a), scopePrefix) }

// IsTenantRole reports whether the authority was derived from a tenant role.
func (a Authority) IsTenantRole() bool { return strings.HasPrefix(string(a), tenantRolePrefix) }

// Tenant returns the tenant id carried by a TENANT_ authority, or "" if this
// is not a tenant-role authority.
func (a Authority) Tenant() string {
	if !a.IsTenantRole() {
		return ""
	}
	rest := strings.TrimPrefix(string(a), tenantRolePrefix)
	tenant, _, ok := strings.Cut(rest, ":")
	if !ok {
		return ""
	}
	return tenant
}

// Role returns the role carried by a TENANT_ authority, or "" otherwise.
func (a Authority) Role() string {
	if !a.IsTenantRole() {
		return ""
	}
	rest := strings.TrimPrefix(string(a), tenantRolePrefix)
	_, role, ok := strings.Cut(rest, ":")
	if !ok {
		return ""
	}
	return role
}

// Set is the full collection of authorities derived from one verified token.
type Set []Authority

// Has reports whether the set contains an exact authority.
func (s Set) Has(a Authority) bool {
	for _, candidate := range s {
		if candidate == a {
			return true
		}
	}
	return false
}

// HasScope reports whether SCOPE_<scope> is present.
func (s Set) HasScope(scope string) bool { return s.Has(Scope(scope)) }

// Tenants returns the distinct tenant ids carried by TENANT_ authorities, in
// first-seen order so the first JWT-derived tenant can win deterministically.
func (s Set) Tenants() []string {
	seen := make(map[string]struct{}, len(s))
	var tenants []string

	for _, a := range s {
		if !a.IsTenantRole() {
			continue
		}

		tenant := a.Tenant()
		if tenant == "" {
			continue
		}

		if _, ok := seen[tenant]; ok {
			continue
		}

		seen[tenant] = struct{}{}
		tenants = append(tenants, tenant)
	}

	return tenants
}

// ErrTenantNotAuthorized is returned by Narrow when the requested tenant is
// not among the principal's tenant authorities.
var ErrTenantNotAuthorized = errTenantNotAuthorized{}

type errTenantNotAuthorized struct{}

func (errTenantNotAuthorized) Error() string {
	return "requested tenant is not among the principal's authorized tenants"
}

// Narrow resolves the effective tenant for a request. It implements the
// X-Tenant-ID-header Open Question: the header may only narrow, never
// broaden, the tenants already granted by the token. An empty header falls
// back to the first JWT-derived tenant.
func (s Set) Narrow(headerTenantID string) (string, error) {
	tenants := s.Tenants()

	if headerTenantID == "" {
		if len(tenants) == 0 {
			return "", ErrTenantNotAuthorized
		}
		return tenants[0], nil
	}

	for _, t := range tenants {
		if t == headerTenantID {
			return t, nil
		}
	}

	return "", ErrTenantNotAuthorized
}

// RoleIn reports whether the principal holds role for tenant.
func (s Set) RoleIn(tenant, role string) bool {
	return s.Has(TenantRole(tenant, role))
}
