package keycloak

import (
	"sort"

	"github.com/golang-jwt/jwt/v5"
)

// RoleList is a Keycloak role container ({"roles": [...]}). Both the
// realm-level container and each client-scoped container use this shape.
type RoleList struct {
	Roles []string `json:"roles"`
}

// TokenClaims represents the decoded payload of a Keycloak access token.
// The role containers are optional: a token legitimately may carry neither.
type TokenClaims struct {
	jwt.RegisteredClaims
	Email             string              `json:"email"`
	EmailVerified     bool                `json:"email_verified"`
	PreferredUsername string              `json:"preferred_username"`
	Name              string              `json:"name"`
	RealmAccess       *RoleList           `json:"realm_access,omitempty"`
	ResourceAccess    map[string]RoleList `json:"resource_access,omitempty"`
}

// ExtractRoles flattens the realm-wide role list and the role list scoped to
// clientID into a single deduplicated, sorted slice. Absent containers are
// treated as empty.
func ExtractRoles(claims *TokenClaims, clientID string) []string {
	seen := make(map[string]struct{})

	if claims.RealmAccess != nil {
		for _, role := range claims.RealmAccess.Roles {
			seen[role] = struct{}{}
		}
	}

	if client, ok := claims.ResourceAccess[clientID]; ok {
		for _, role := range client.Roles {
			seen[role] = struct{}{}
		}
	}

	roles := make([]string, 0, len(seen))
	for role := range seen {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Principal is the normalized authenticated identity produced for request
// handlers. It is created once per successful authentication and scoped to
// the request.
type Principal struct {
	Subject       string
	Email         string
	Username      string
	Name          string
	EmailVerified bool
	Roles         []string
	Claims        *TokenClaims
}

// NewPrincipal builds a Principal from verified claims, extracting the role
// set for the given client.
func NewPrincipal(claims *TokenClaims, clientID string) *Principal {
	return &Principal{
		Subject:       claims.Subject,
		Email:         claims.Email,
		Username:      claims.PreferredUsername,
		Name:          claims.Name,
		EmailVerified: claims.EmailVerified,
		Roles:         ExtractRoles(claims, clientID),
		Claims:        claims,
	}
}

// HasRole checks membership by case-sensitive exact match
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if the principal has at least one of the given roles
func (p *Principal) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

// MissingRoles returns the required roles the principal does not have,
// preserving the order of required.
func (p *Principal) MissingRoles(required []string) []string {
	var missing []string
	for _, role := range required {
		if !p.HasRole(role) {
			missing = append(missing, role)
		}
	}
	return missing
}
