package keycloak

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// JWK represents a single JSON Web Key from the realm's key set
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// RSAPublicKey converts the JWK's modulus and exponent into an RSA public key
func (k *JWK) RSAPublicKey() (*rsa.PublicKey, error) {
	if k.Kty != "RSA" {
		return nil, fmt.Errorf("unsupported key type: %s", k.Kty)
	}

	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}

	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}

	var e int
	for _, b := range eBytes {
		e = e*256 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: e,
	}, nil
}

// KeySet represents the realm's current set of public signing keys
type KeySet struct {
	Keys []JWK `json:"keys"`
}

// ByKID returns the key whose kid matches, or false if none does
func (s *KeySet) ByKID(kid string) (*JWK, bool) {
	for i := range s.Keys {
		if s.Keys[i].Kid == kid {
			return &s.Keys[i], true
		}
	}
	return nil, false
}

// KeyCache fetches and memoizes the realm's JWKS with a TTL. A refresh
// replaces the whole set atomically; concurrent readers never observe a
// partially updated set. Expiry is checked lazily on access, and concurrent
// refreshes past an expired cache are allowed to race (JWKS fetches are
// idempotent), so no lock is held across the network call.
type KeyCache struct {
	jwksURL    string
	ttl        time.Duration
	httpClient *http.Client

	mu        sync.RWMutex
	keys      *KeySet
	fetchedAt time.Time

	now func() time.Time
}

// NewKeyCache creates a key cache for the given JWKS endpoint.
// A zero ttl defaults to one hour.
func NewKeyCache(jwksURL string, ttl time.Duration, httpClient *http.Client) *KeyCache {
	if ttl == 0 {
		ttl = 1 * time.Hour
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeyCache{
		jwksURL:    jwksURL,
		ttl:        ttl,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// Keys returns the cached key set if it is still fresh, fetching a new one
// from the provider otherwise. A fetch failure propagates as
// ErrProviderUnavailable without installing a stale or empty set.
func (c *KeyCache) Keys(ctx context.Context) (*KeySet, error) {
	c.mu.RLock()
	if c.keys != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		defer c.mu.RUnlock()
		return c.keys, nil
	}
	c.mu.RUnlock()

	keys, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = c.now()
	c.mu.Unlock()

	return keys, nil
}

// Invalidate drops the cached key set, forcing a fetch on the next access
func (c *KeyCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = nil
	c.fetchedAt = time.Time{}
}

func (c *KeyCache) fetch(ctx context.Context) (*KeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jwksURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: JWKS fetch: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: JWKS endpoint returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var keys KeySet
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, fmt.Errorf("%w: failed to decode JWKS: %v", ErrProviderUnavailable, err)
	}

	return &keys, nil
}
