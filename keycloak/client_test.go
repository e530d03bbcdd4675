package keycloak

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	return NewClient(NewEndpoints(serverURL, "munistream"), testClientID, "test-secret", nil)
}

func TestIntrospect_Active(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realms/munistream/protocol/openid-connect/token/introspect", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(IntrospectionResult{Active: true, Sub: "sub-1", Username: "user1"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	result, err := client.Introspect(context.Background(), "the-token")
	require.NoError(t, err)
	assert.True(t, result.Active)
	assert.Equal(t, "sub-1", result.Sub)

	assert.Equal(t, "the-token", gotForm.Get("token"))
	assert.Equal(t, testClientID, gotForm.Get("client_id"))
	assert.Equal(t, "test-secret", gotForm.Get("client_secret"))
}

func TestIntrospect_Inactive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(IntrospectionResult{Active: false})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	result, err := client.Introspect(context.Background(), "revoked-token")
	require.NoError(t, err)
	assert.False(t, result.Active)
}

func TestIntrospect_NeverCached(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(IntrospectionResult{Active: true})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	_, err := client.Introspect(ctx, "the-token")
	require.NoError(t, err)
	_, err = client.Introspect(ctx, "the-token")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestIntrospect_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Introspect(context.Background(), "the-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestExchangeCode(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realms/munistream/protocol/openid-connect/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(TokenResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    300,
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	tokens, err := client.ExchangeCode(context.Background(), "auth-code", "http://localhost/callback", "pkce-verifier")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tokens.AccessToken)
	assert.Equal(t, "refresh-1", tokens.RefreshToken)
	assert.Equal(t, 300, tokens.ExpiresIn)

	assert.Equal(t, "authorization_code", gotForm.Get("grant_type"))
	assert.Equal(t, "auth-code", gotForm.Get("code"))
	assert.Equal(t, "http://localhost/callback", gotForm.Get("redirect_uri"))
	assert.Equal(t, "pkce-verifier", gotForm.Get("code_verifier"))
	assert.Equal(t, "test-secret", gotForm.Get("client_secret"))
}

func TestExchangeCode_PublicClientOmitsSecret(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "access-1"})
	}))
	defer server.Close()

	client := NewClient(NewEndpoints(server.URL, "munistream"), testClientID, "", nil)

	_, err := client.ExchangeCode(context.Background(), "auth-code", "http://localhost/callback", "")
	require.NoError(t, err)
	assert.False(t, gotForm.Has("client_secret"))
	assert.False(t, gotForm.Has("code_verifier"))
}

func TestRefresh(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(TokenResponse{AccessToken: "access-2", RefreshToken: "refresh-2"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	tokens, err := client.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", tokens.AccessToken)

	assert.Equal(t, "refresh_token", gotForm.Get("grant_type"))
	assert.Equal(t, "refresh-1", gotForm.Get("refresh_token"))
}

func TestRefresh_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Refresh(context.Background(), "expired-refresh")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Refresh(context.Background(), "refresh-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realms/munistream/protocol/openid-connect/userinfo", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"sub":                "sub-1",
			"preferred_username": "user1",
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	info, err := client.UserInfo(context.Background(), "access-1")
	require.NoError(t, err)
	assert.Equal(t, "user1", info["preferred_username"])
}

func TestUserInfo_InvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.UserInfo(context.Background(), "bad-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClaimsInvalid)
}

func TestLogout(t *testing.T) {
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realms/munistream/protocol/openid-connect/logout", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.Logout(context.Background(), "refresh-1", "http://localhost/loggedout")
	require.NoError(t, err)

	assert.Equal(t, "refresh-1", gotForm.Get("refresh_token"))
	assert.Equal(t, "http://localhost/loggedout", gotForm.Get("redirect_uri"))
}

func TestLogout_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.Logout(context.Background(), "refresh-1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRevocationFailed)
}

func TestAuthorizationURL_Defaults(t *testing.T) {
	client := newTestClient("http://localhost:8180")

	raw := client.AuthorizationURL(AuthorizationURLOptions{
		RedirectURI: "http://localhost/callback",
		State:       "state-1",
	})

	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/realms/munistream/protocol/openid-connect/auth", parsed.Path)

	q := parsed.Query()
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "http://localhost/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid profile email", q.Get("scope"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.False(t, q.Has("code_challenge"))
}

func TestAuthorizationURL_PKCE(t *testing.T) {
	client := newTestClient("http://localhost:8180")

	raw := client.AuthorizationURL(AuthorizationURLOptions{
		RedirectURI:   "http://localhost/callback",
		Scope:         "openid",
		CodeChallenge: "challenge-1",
	})

	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	q := parsed.Query()
	assert.Equal(t, "openid", q.Get("scope"))
	assert.Equal(t, "challenge-1", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(IntrospectionResult{Active: true})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Introspect(ctx, "the-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}
