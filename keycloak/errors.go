package keycloak

import "errors"

var (
	// ErrMalformedToken is returned when a token cannot be parsed at all
	ErrMalformedToken = errors.New("malformed token")

	// ErrUnknownSigningKey is returned when no key in the JWKS matches the token's kid
	ErrUnknownSigningKey = errors.New("unknown signing key")

	// ErrSignatureInvalid is returned when the token signature does not verify
	ErrSignatureInvalid = errors.New("token signature invalid")

	// ErrClaimsInvalid is returned when issuer, audience, or expiry checks fail
	ErrClaimsInvalid = errors.New("token claims invalid")

	// ErrTokenNotActive is returned when introspection reports the token as inactive
	ErrTokenNotActive = errors.New("token is not active")

	// ErrProviderUnavailable is returned when Keycloak cannot be reached or errors out
	ErrProviderUnavailable = errors.New("identity provider unavailable")

	// ErrInvalidRefreshToken is returned when the provider rejects a refresh token
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrRevocationFailed is returned when a logout/revocation call fails
	ErrRevocationFailed = errors.New("token revocation failed")
)
