package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role names recognized by the authorization engine.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
	RoleUser  = "user"
)

// Claims carries the payload of a self-issued token.
type Claims struct {
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Email       string   `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Principal is the authenticated identity resolved from a credential for
// the lifetime of one request. Immutable once built.
type Principal struct {
	Subject       string
	Email         string
	EmailVerified bool
	Roles         []string
	Permissions   map[string]struct{}

	// External marks principals resolved through the identity provider
	// rather than the local token codec.
	External bool
}

// HasRole reports whether the principal carries the given role.
func (p Principal) HasRole(role string) bool {
	role = strings.TrimSpace(strings.ToLower(role))
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether the principal holds an explicit
// "resource:action" permission grant.
func (p Principal) HasPermission(resource string, action Action) bool {
	if len(p.Permissions) == 0 {
		return false
	}
	_, ok := p.Permissions[resource+":"+string(action)]
	return ok
}

// ProviderClaims are the claims the identity provider vouched for after
// cryptographically verifying an external token.
type ProviderClaims struct {
	Subject       string
	Email         string
	Name          string
	Picture       string
	Issuer        string
	Audience      string
	EmailVerified bool
	ExpiresAt     int64
	AuthTime      int64
}

func dedupeRoles(roles []string) []string {
	if len(roles) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(roles))
	var normalized []string
	for _, role := range roles {
		role = strings.TrimSpace(strings.ToLower(role))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}

func permissionSet(perms []string) map[string]struct{} {
	if len(perms) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return set
}
