package github

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AppAuth mints GitHub App credentials: a short-lived RS256 app JWT for
// app-level endpoints and per-installation access tokens scoped to
// repository contents and pull requests.
type AppAuth struct {
	appID      string
	privateKey *rsa.PrivateKey
	baseURL    string
	httpClient *http.Client
}

// NewAppAuth loads the App private key from keyPath.
func NewAppAuth(appID int64, keyPath, baseURL string) (*AppAuth, error) {
	if appID == 0 || keyPath == "" {
		return nil, errors.New("github app credentials not configured")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	pem, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read app private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse app private key: %w", err)
	}

	return &AppAuth{
		appID:      strconv.FormatInt(appID, 10),
		privateKey: key,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// appJWT signs the app-level JWT. Issued a minute in the past for clock
// skew; expiry is GitHub's 10-minute maximum.
func (a *AppAuth) appJWT() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Add(-time.Minute).Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
		"iss": a.appID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.privateKey)
}

// Installation is one account the App is installed on.
type Installation struct {
	ID      int64 `json:"id"`
	Account struct {
		Login string `json:"login"`
	} `json:"account"`
}

// ListInstallations fetches all installations of the App.
func (a *AppAuth) ListInstallations(ctx context.Context) ([]Installation, error) {
	var installations []Installation
	if err := a.doApp(ctx, http.MethodGet, "/app/installations", nil, &installations, http.StatusOK); err != nil {
		return nil, fmt.Errorf("list installations: %w", err)
	}
	return installations, nil
}

// InstallationForUser finds the installation on a specific account, or
// nil when the App is not installed there.
func (a *AppAuth) InstallationForUser(ctx context.Context, username string) (*Installation, error) {
	installations, err := a.ListInstallations(ctx)
	if err != nil {
		return nil, err
	}
	for i := range installations {
		if installations[i].Account.Login == username {
			return &installations[i], nil
		}
	}
	return nil, nil
}

// InstallationToken mints an installation access token with the write
// scopes the conversion pipeline needs.
func (a *AppAuth) InstallationToken(ctx context.Context, installationID int64) (string, error) {
	payload := map[string]interface{}{
		"permissions": map[string]string{
			"contents":      "write",
			"pull_requests": "write",
			"metadata":      "read",
		},
	}

	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	path := fmt.Sprintf("/app/installations/%d/access_tokens", installationID)
	if err := a.doApp(ctx, http.MethodPost, path, payload, &resp, http.StatusCreated); err != nil {
		return "", fmt.Errorf("create installation token: %w", err)
	}
	return resp.Token, nil
}

// doApp issues one request authenticated with the app JWT.
func (a *AppAuth) doApp(ctx context.Context, method, path string, payload, out interface{}, wantStatus int) error {
	token, err := a.appJWT()
	if err != nil {
		return fmt.Errorf("sign app jwt: %w", err)
	}

	// Reuse the client plumbing with Bearer auth; app endpoints reject
	// the token scheme used for PATs.
	c := NewClient(a.baseURL, token)
	c.httpClient = a.httpClient
	c.authScheme = "Bearer"

	return c.do(ctx, method, path, payload, out, wantStatus)
}
