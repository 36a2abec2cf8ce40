// Package github is the source repository gateway. It mediates every
// read and write against the GitHub REST API for the conversion
// pipeline: repository lookup, file discovery and reads, branch
// creation, atomic batch commits, and pull requests.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/codemorph/internal/retry"
)

const DefaultBaseURL = "https://api.github.com"

// Client is a per-job GitHub API client. Clients are constructed from a
// resolved tenant credential at job start and never shared across jobs.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	authScheme string // "token" for PATs and installation tokens, "Bearer" for app JWTs
	limiter    *rate.Limiter
	retryCfg   retry.Config
}

// NewClient creates a client authenticated with the given token.
// baseURL is the API root; pass "" for api.github.com.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
		authScheme: "token",
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		retryCfg:   retry.GitHubConfig(),
	}
}

// Repository identifies a repository the credential can read.
type Repository struct {
	Owner         string
	Name          string
	FullName      string
	DefaultBranch string
}

type repositoryResponse struct {
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	Owner         struct {
		Login string `json:"login"`
	} `json:"owner"`
	Name string `json:"name"`
}

// GetRepository fetches repository metadata. A missing repository, or
// one the token cannot read, yields NotFoundError.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	var resp repositoryResponse
	err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, name), &resp)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusForbidden) {
			return nil, &NotFoundError{Resource: owner + "/" + name}
		}
		return nil, err
	}

	return &Repository{
		Owner:         resp.Owner.Login,
		Name:          resp.Name,
		FullName:      resp.FullName,
		DefaultBranch: resp.DefaultBranch,
	}, nil
}

// HealthCheck verifies the credential can reach the API. Failures are
// reported as false, never propagated; this feeds liveness reporting
// only.
func (c *Client) HealthCheck(ctx context.Context) bool {
	var user struct {
		Login string `json:"login"`
	}
	if err := c.get(ctx, "/user", &user); err != nil {
		log.Warn().Err(err).Msg("github health check failed")
		return false
	}
	return true
}

// Reachable reports whether the API endpoint answers at all. It needs
// no credential; tenant tokens are validated per job, not here.
func (c *Client) Reachable(ctx context.Context) bool {
	if err := c.do(ctx, http.MethodGet, "/meta", nil, nil, http.StatusOK); err != nil {
		log.Warn().Err(err).Msg("github api unreachable")
		return false
	}
	return true
}

// get retries transient transport failures; reads are safe to repeat.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return retry.Do(ctx, c.retryCfg, "GET "+path, func() error {
		return c.do(ctx, http.MethodGet, path, nil, out, http.StatusOK)
	})
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}, wantStatus int) error {
	return c.do(ctx, http.MethodPost, path, payload, out, wantStatus)
}

// postObject is post with transient-failure retries. Only for git
// object writes (blobs, trees, commits): those are content-addressed,
// so repeating one yields the same SHA. Ref updates and pull requests
// stay on the single-shot verbs.
func (c *Client) postObject(ctx context.Context, path string, payload, out interface{}, wantStatus int) error {
	return retry.Do(ctx, c.retryCfg, "POST "+path, func() error {
		return c.do(ctx, http.MethodPost, path, payload, out, wantStatus)
	})
}

func (c *Client) patch(ctx context.Context, path string, payload, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, payload, out, http.StatusOK)
}

// do issues one API request: rate-limited, authenticated, JSON in and
// out. A response status other than wantStatus becomes an apiError
// carrying the remote message.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}, wantStatus int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.authScheme+" "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return &apiError{StatusCode: resp.StatusCode, Message: remoteMessage(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// remoteMessage extracts GitHub's error message field, falling back to
// the raw body.
func remoteMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return string(body)
}
