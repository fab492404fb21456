// Package api is the HTTP client for the employees-manager web API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"emctl/internal/model"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const DefaultTimeout = 15 * time.Second

type Options struct {
	// BaseURL is the server root; "/api" is appended when missing.
	BaseURL string
	// Token is the bearer credential. Empty means unauthenticated (login only).
	Token string
	// Timeout bounds every call. Zero means DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the transport base (tests).
	HTTPClient *http.Client
	Logger     *log.Logger
}

type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  *log.Logger
}

func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("missing base url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(u.Path, "/api") {
		u.Path += "/api"
	}

	baseTransport := http.DefaultTransport
	if opts.HTTPClient != nil && opts.HTTPClient.Transport != nil {
		baseTransport = opts.HTTPClient.Transport
	}
	var rt http.RoundTripper = requestIDTransport{base: baseTransport}
	if tok := strings.TrimSpace(opts.Token); tok != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tok, TokenType: "Bearer"}),
			Base:   rt,
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Client{
		base:    u,
		http:    &http.Client{Transport: rt},
		timeout: timeout,
		logger:  logger,
	}, nil
}

// requestIDTransport tags each request so backend logs can be correlated with ours.
type requestIDTransport struct {
	base http.RoundTripper
}

func (t requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("X-Request-Id") != "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("X-Request-Id", uuid.NewString())
	return t.base.RoundTrip(r)
}

func (c *Client) endpoint(segments ...string) string {
	u := *c.base
	escaped := make([]string, 0, len(segments))
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
	}
	u.RawPath = c.base.EscapedPath() + "/" + strings.Join(escaped, "/")
	u.Path = c.base.Path + "/" + strings.Join(segments, "/")
	return u.String()
}

func (c *Client) do(ctx context.Context, method string, segments []string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	target := c.endpoint(segments...)
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed", "method", method, "url", target, "err", err)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s %s: %w", method, req.URL.Path, ErrTimeout)
		}
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("request", "method", method, "url", target, "status", resp.StatusCode, "elapsed", time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(method, req.URL.Path, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, req.URL.Path, err)
	}
	return nil
}

func (c *Client) Login(ctx context.Context, username, password string) (model.LoginResponse, error) {
	var out model.LoginResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, []string{"auth", "login"}, body, &out); err != nil {
		return model.LoginResponse{}, err
	}
	if strings.TrimSpace(out.Token) == "" {
		return model.LoginResponse{}, errors.New("login: empty token in response")
	}
	return out, nil
}

func (c *Client) Companies(ctx context.Context) ([]model.Company, error) {
	var out []model.Company
	err := c.do(ctx, http.MethodGet, []string{"company"}, nil, &out)
	return out, err
}

func (c *Client) Users(ctx context.Context, companyID string) ([]model.UserInCompany, error) {
	var out []model.UserInCompany
	err := c.do(ctx, http.MethodGet, []string{"company", companyID, "user"}, nil, &out)
	return out, err
}

func (c *Client) Projects(ctx context.Context, companyID string) ([]model.Project, error) {
	var out []model.Project
	err := c.do(ctx, http.MethodGet, []string{"company", companyID, "project"}, nil, &out)
	return out, err
}

func (c *Client) Activities(ctx context.Context, companyID string) ([]model.Activity, error) {
	var out []model.Activity
	err := c.do(ctx, http.MethodGet, []string{"company", companyID, "activity"}, nil, &out)
	return out, err
}

// Members fetches the member ids assigned to pivotID, e.g.
// GET /company/{companyID}/project-allocation/{pivotID}.
func (c *Client) Members(ctx context.Context, companyID, path, pivotID string) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, []string{"company", companyID, path, pivotID}, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// ReplaceMembers overwrites the full membership of pivotID with ids. There is no delta endpoint.
func (c *Client) ReplaceMembers(ctx context.Context, companyID, path, pivotID, field string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	body := map[string][]string{field: ids}
	return c.do(ctx, http.MethodPatch, []string{"company", companyID, path, pivotID}, body, nil)
}
