package keycloak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// TokenResponse is the provider's response from the token endpoint
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	IDToken          string `json:"id_token,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	ExpiresIn        int    `json:"expires_in,omitempty"`
	RefreshExpiresIn int    `json:"refresh_expires_in,omitempty"`
	Scope            string `json:"scope,omitempty"`
	SessionState     string `json:"session_state,omitempty"`
}

// IntrospectionResult is the provider's liveness verdict for a token
// (RFC 7662). Only Active is guaranteed; the rest is optional metadata.
type IntrospectionResult struct {
	Active    bool   `json:"active"`
	Sub       string `json:"sub,omitempty"`
	Username  string `json:"username,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Scope     string `json:"scope,omitempty"`
	Iss       string `json:"iss,omitempty"`
	Jti       string `json:"jti,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
}

// Client performs the provider HTTP calls that carry this service's client
// credentials: token introspection and the token lifecycle operations
// (code exchange, refresh, userinfo, logout). It holds no local state.
type Client struct {
	endpoints    Endpoints
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewClient creates a Keycloak provider client
func NewClient(endpoints Endpoints, clientID, clientSecret string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoints:    endpoints,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   httpClient,
	}
}

// Introspect asks the provider whether the token is currently active. The
// call is always live and never cached: its purpose is to catch revocation
// the stateless signature check cannot see.
func (c *Client) Introspect(ctx context.Context, token string) (*IntrospectionResult, error) {
	form := url.Values{
		"token":     {token},
		"client_id": {c.clientID},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}

	body, err := c.postForm(ctx, c.endpoints.Introspect, form)
	if err != nil {
		return nil, err
	}

	var result IntrospectionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode introspection response: %v", ErrProviderUnavailable, err)
	}
	return &result, nil
}

// ExchangeCode exchanges an authorization code for tokens
// (authorization_code grant). codeVerifier is the PKCE verifier for public
// clients and may be empty.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
		"client_id":    {c.clientID},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}

	return c.tokenGrant(ctx, form)
}

// Refresh obtains a new token pair using a refresh token (refresh_token
// grant). A provider rejection surfaces as ErrInvalidRefreshToken.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.clientID},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}

	resp, err := c.doForm(ctx, c.endpoints.Token, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, fmt.Errorf("%w: token endpoint returned status %d", ErrInvalidRefreshToken, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: token endpoint returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	return decodeTokenResponse(resp.Body)
}

// UserInfo fetches the userinfo claim map for a valid access token
func (c *Client) UserInfo(ctx context.Context, accessToken string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.UserInfo, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: userinfo endpoint returned status %d", ErrClaimsInvalid, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo endpoint returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var info map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: failed to decode userinfo response: %v", ErrProviderUnavailable, err)
	}
	return info, nil
}

// Logout revokes the session bound to the refresh token. redirectURI is
// optional. Failures surface as ErrRevocationFailed.
func (c *Client) Logout(ctx context.Context, refreshToken, redirectURI string) error {
	form := url.Values{
		"client_id":     {c.clientID},
		"refresh_token": {refreshToken},
	}
	if c.clientSecret != "" {
		form.Set("client_secret", c.clientSecret)
	}
	if redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}

	resp, err := c.doForm(ctx, c.endpoints.Logout, form)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: logout endpoint returned status %d", ErrRevocationFailed, resp.StatusCode)
	}
	return nil
}

// AuthorizationURLOptions holds the parameters for building an authorization
// redirect URL. Scope defaults to "openid profile email" and
// CodeChallengeMethod to S256 when a challenge is set.
type AuthorizationURLOptions struct {
	RedirectURI         string
	State               string
	Scope               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// AuthorizationURL builds the authorization-code redirect URL. This is pure
// string construction; no network call is made.
func (c *Client) AuthorizationURL(opts AuthorizationURLOptions) string {
	scope := opts.Scope
	if scope == "" {
		scope = "openid profile email"
	}

	params := url.Values{
		"client_id":     {c.clientID},
		"response_type": {"code"},
		"redirect_uri":  {opts.RedirectURI},
		"scope":         {scope},
	}
	if opts.State != "" {
		params.Set("state", opts.State)
	}
	if opts.Nonce != "" {
		params.Set("nonce", opts.Nonce)
	}
	if opts.CodeChallenge != "" {
		method := opts.CodeChallengeMethod
		if method == "" {
			method = "S256"
		}
		params.Set("code_challenge", opts.CodeChallenge)
		params.Set("code_challenge_method", method)
	}

	return c.endpoints.Authorize + "?" + params.Encode()
}

// tokenGrant posts a grant request to the token endpoint and decodes the
// token response. Non-2xx statuses surface as ErrProviderUnavailable.
func (c *Client) tokenGrant(ctx context.Context, form url.Values) (*TokenResponse, error) {
	resp, err := c.doForm(ctx, c.endpoints.Token, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: token endpoint returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	return decodeTokenResponse(resp.Body)
}

// postForm posts a form and returns the response body, treating any non-2xx
// status as a provider failure.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	resp, err := c.doForm(ctx, endpoint, form)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrProviderUnavailable, endpoint, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) doForm(ctx context.Context, endpoint string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return resp, nil
}

func decodeTokenResponse(r io.Reader) (*TokenResponse, error) {
	var tokens TokenResponse
	if err := json.NewDecoder(r).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("%w: failed to decode token response: %v", ErrProviderUnavailable, err)
	}
	return &tokens, nil
}
