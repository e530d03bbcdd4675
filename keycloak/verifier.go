package keycloak

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates Keycloak access tokens against the realm's key set.
// The key cache is injected so it can be shared and replaced in tests.
type Verifier struct {
	keys     *KeyCache
	issuer   string
	clientID string
}

// NewVerifier creates a verifier for tokens issued by the given realm issuer
// URL to the given client.
func NewVerifier(keys *KeyCache, issuer, clientID string) *Verifier {
	return &Verifier{
		keys:     keys,
		issuer:   issuer,
		clientID: clientID,
	}
}

// VerifyToken verifies the token's signature against the cached key set and
// validates issuer, audience, and expiry. Failures are classified as
// ErrMalformedToken, ErrUnknownSigningKey, ErrSignatureInvalid,
// ErrClaimsInvalid, or ErrProviderUnavailable. Verification failures are
// never retried; only a key fetch failure is potentially transient.
func (v *Verifier) VerifyToken(ctx context.Context, tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, fmt.Errorf("%w: kid header missing", ErrMalformedToken)
		}

		keySet, err := v.keys.Keys(ctx)
		if err != nil {
			return nil, err
		}

		key, ok := keySet.ByKID(kid)
		if !ok {
			return nil, fmt.Errorf("%w: kid %q not in key set", ErrUnknownSigningKey, kid)
		}

		// Pin the algorithm to what the provider advertises for this key,
		// rejecting substitution attempts (e.g. an HS256 token signed with
		// the public key as the HMAC secret).
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrSignatureInvalid, token.Header["alg"])
		}
		advertised := key.Alg
		if advertised == "" {
			advertised = "RS256"
		}
		if token.Method.Alg() != advertised {
			return nil, fmt.Errorf("%w: token alg %s does not match key alg %s", ErrSignatureInvalid, token.Method.Alg(), advertised)
		}

		return key.RSAPublicKey()
	}, jwt.WithExpirationRequired())

	if err != nil {
		return nil, classifyParseError(err)
	}

	if !token.Valid {
		return nil, ErrSignatureInvalid
	}

	// Issuer must be the realm URL
	if claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: issuer %q, expected %q", ErrClaimsInvalid, claims.Issuer, v.issuer)
	}

	// Audience must contain our client ID
	if !containsAudience(claims.Audience, v.clientID) {
		return nil, fmt.Errorf("%w: audience does not include client %q", ErrClaimsInvalid, v.clientID)
	}

	return claims, nil
}

// classifyParseError maps golang-jwt errors (and errors surfaced from the
// keyfunc) onto the package taxonomy.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrUnknownSigningKey),
		errors.Is(err, ErrMalformedToken),
		errors.Is(err, ErrSignatureInvalid):
		return err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %v", ErrClaimsInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

func containsAudience(audiences jwt.ClaimStrings, clientID string) bool {
	for _, aud := range audiences {
		if aud == clientID {
			return true
		}
	}
	return false
}
