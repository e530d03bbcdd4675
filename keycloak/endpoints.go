package keycloak

import (
	"crypto/tls"
	"net/http"
	"strings"
	"time"
)

// Endpoints holds the OpenID Connect endpoint URLs for a Keycloak realm.
type Endpoints struct {
	// Issuer is the realm URL, which Keycloak uses as the token issuer.
	Issuer     string
	JWKS       string
	Token      string
	UserInfo   string
	Introspect string
	Logout     string
	Authorize  string
}

// NewEndpoints builds the endpoint set for a realm from the server base URL.
func NewEndpoints(serverURL, realm string) Endpoints {
	realmURL := strings.TrimSuffix(serverURL, "/") + "/realms/" + realm
	return Endpoints{
		Issuer:     realmURL,
		JWKS:       realmURL + "/protocol/openid-connect/certs",
		Token:      realmURL + "/protocol/openid-connect/token",
		UserInfo:   realmURL + "/protocol/openid-connect/userinfo",
		Introspect: realmURL + "/protocol/openid-connect/token/introspect",
		Logout:     realmURL + "/protocol/openid-connect/logout",
		Authorize:  realmURL + "/protocol/openid-connect/auth",
	}
}

// NewHTTPClient returns an HTTP client for provider calls. When verifySSL is
// false, certificate verification is disabled (development realms only).
func NewHTTPClient(timeout time.Duration, verifySSL bool) *http.Client {
	client := &http.Client{Timeout: timeout}
	if !verifySSL {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return client
}
