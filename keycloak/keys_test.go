package keycloak

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to generate an RSA key pair
func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey, &privateKey.PublicKey
}

func jwkFromPublicKey(publicKey *rsa.PublicKey, kid string) JWK {
	return JWK{
		Kid: kid,
		Kty: "RSA",
		Alg: "RS256",
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
	}
}

// Test helper to create a mock JWKS server that counts fetches
func newCountingJWKSServer(t *testing.T, publicKey *rsa.PublicKey, kid string, fetches *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(KeySet{Keys: []JWK{jwkFromPublicKey(publicKey, kid)}})
	}))
}

func TestKeyCache_FetchAndCache(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)
	var fetches atomic.Int64
	server := newCountingJWKSServer(t, publicKey, "kid-1", &fetches)
	defer server.Close()

	cache := NewKeyCache(server.URL, 1*time.Hour, nil)
	ctx := context.Background()

	keys, err := cache.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys.Keys, 1)
	assert.Equal(t, "kid-1", keys.Keys[0].Kid)
	assert.Equal(t, int64(1), fetches.Load())

	// Second call uses the cache (same pointer, no fetch)
	keys2, err := cache.Keys(ctx)
	require.NoError(t, err)
	assert.True(t, keys == keys2)
	assert.Equal(t, int64(1), fetches.Load())
}

func TestKeyCache_TTLExpiry(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)
	var fetches atomic.Int64
	server := newCountingJWKSServer(t, publicKey, "kid-1", &fetches)
	defer server.Close()

	cache := NewKeyCache(server.URL, 1*time.Hour, nil)

	t0 := time.Now()
	now := t0
	var mu sync.Mutex
	cache.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	ctx := context.Background()

	_, err := cache.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), fetches.Load())

	// 59 minutes in: still fresh, no fetch
	mu.Lock()
	now = t0.Add(59 * time.Minute)
	mu.Unlock()
	_, err = cache.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), fetches.Load())

	// 61 minutes in: expired, exactly one new fetch
	mu.Lock()
	now = t0.Add(61 * time.Minute)
	mu.Unlock()
	_, err = cache.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestKeyCache_ConcurrentReaders(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)
	var fetches atomic.Int64
	server := newCountingJWKSServer(t, publicKey, "kid-1", &fetches)
	defer server.Close()

	cache := NewKeyCache(server.URL, 1*time.Hour, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys, err := cache.Keys(ctx)
			assert.NoError(t, err)
			assert.Len(t, keys.Keys, 1)
		}()
	}
	wg.Wait()

	// Racing cold-cache readers may each fetch once; never more than one per reader
	assert.LessOrEqual(t, fetches.Load(), int64(20))
	assert.GreaterOrEqual(t, fetches.Load(), int64(1))
}

func TestKeyCache_FetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cache := NewKeyCache(server.URL, 1*time.Hour, nil)

	_, err := cache.Keys(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestKeyCache_UnreachableProvider(t *testing.T) {
	cache := NewKeyCache("http://127.0.0.1:1/certs", 1*time.Hour, &http.Client{Timeout: time.Second})

	_, err := cache.Keys(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestKeyCache_Invalidate(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)
	var fetches atomic.Int64
	server := newCountingJWKSServer(t, publicKey, "kid-1", &fetches)
	defer server.Close()

	cache := NewKeyCache(server.URL, 1*time.Hour, nil)
	ctx := context.Background()

	_, err := cache.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), fetches.Load())

	cache.Invalidate()

	_, err = cache.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fetches.Load())
}

func TestKeySet_ByKID(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)
	set := &KeySet{Keys: []JWK{jwkFromPublicKey(publicKey, "kid-a"), jwkFromPublicKey(publicKey, "kid-b")}}

	key, ok := set.ByKID("kid-b")
	require.True(t, ok)
	assert.Equal(t, "kid-b", key.Kid)

	_, ok = set.ByKID("kid-c")
	assert.False(t, ok)
}

func TestJWK_RSAPublicKey(t *testing.T) {
	_, publicKey := generateTestKeyPair(t)
	jwk := jwkFromPublicKey(publicKey, "kid-1")

	parsed, err := jwk.RSAPublicKey()
	require.NoError(t, err)
	assert.Equal(t, publicKey.N, parsed.N)
	assert.Equal(t, publicKey.E, parsed.E)
}

func TestJWK_RSAPublicKey_UnsupportedType(t *testing.T) {
	jwk := JWK{Kid: "kid-1", Kty: "EC"}

	_, err := jwk.RSAPublicKey()
	assert.Error(t, err)
}
