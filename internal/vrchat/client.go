// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package vrchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client defaults.
const (
	DefaultBaseURL    = "https://api.vrchat.cloud/api/1"
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryBase  = 100 * time.Millisecond

	// AuthCookie is the cookie that carries the platform session.
	AuthCookie = "auth"

	favoritesPageSize = 100
	maxFavoritePages  = 50
	maxResponseBytes  = 4 << 20
)

const tracerName = "github.com/vrcswitch/avatar-switch/internal/vrchat"

// Config holds configuration for the platform client.
type Config struct {
	// BaseURL is the API root (default: DefaultBaseURL).
	BaseURL string

	// UserAgent is sent on every request. Required by the platform.
	UserAgent string

	// Timeout bounds each HTTP attempt (default: DefaultTimeout).
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt for
	// network errors, 429 and 5xx responses.
	MaxRetries uint64

	// RetryBase is the first backoff interval (default: DefaultRetryBase).
	RetryBase time.Duration

	// HTTPClient overrides the HTTP client. Timeout is ignored when set.
	HTTPClient *http.Client
}

// Client talks to the VRChat API and holds the session cookies.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	userAgent  string
	maxRetries uint64
	retryBase  time.Duration
	cookies    map[string]*http.Cookie
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewClient creates a Client with a no-op logger.
func NewClient(cfg Config) (*Client, error) {
	return NewClientWithLogger(cfg, slog.New(slog.DiscardHandler))
}

// NewClientWithLogger creates a Client that logs requests at debug level.
func NewClientWithLogger(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, oops.Code(CodeInvalidArgument).Errorf("logger is required")
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, oops.Code(CodeInvalidArgument).Errorf("user agent is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, oops.Code(CodeInvalidArgument).
			With("base_url", cfg.BaseURL).
			Errorf("base URL must be an absolute http(s) URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = DefaultRetryBase
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		baseURL:    base,
		http:       httpClient,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
		cookies:    map[string]*http.Cookie{},
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}, nil
}

// CurrentUser returns the user the session cookies belong to.
// Returns ErrUnauthorized when the cookies are missing or no longer valid.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	resp, err := c.do(ctx, request{op: "CurrentUser", method: http.MethodGet, path: "/auth/user"})
	if err != nil {
		return nil, err
	}
	if resp.status == http.StatusUnauthorized {
		return nil, unauthorized("current user", resp)
	}
	if resp.status != http.StatusOK {
		return nil, unexpected("current user", resp)
	}
	return decode[User]("current user", resp)
}

// Login authenticates with username and password. The returned user may
// still require a second factor (see User.NeedsSecondFactor).
// Returns ErrUnauthorized when the platform rejects the credentials.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	// A stale session cookie would take precedence over the credentials.
	c.ClearCookies()

	resp, err := c.do(ctx, request{
		op:     "Login",
		method: http.MethodGet,
		path:   "/auth/user",
		basic:  &basicAuth{username: username, password: password},
	})
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusOK:
		return decode[User]("login", resp)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, unauthorized("login", resp)
	default:
		return nil, unexpected("login", resp)
	}
}

// VerifySecondFactor submits a second factor code. Returns false with a nil
// error when the platform rejects the code.
func (c *Client) VerifySecondFactor(ctx context.Context, method SecondFactorMethod, code string) (bool, error) {
	if _, ok := ParseSecondFactorMethod(string(method)); !ok {
		return false, oops.Code(CodeInvalidArgument).
			With("method", string(method)).
			Errorf("unsupported second factor method %q", method)
	}
	resp, err := c.do(ctx, request{
		op:     "VerifySecondFactor",
		method: http.MethodPost,
		path:   "/auth/twofactorauth/" + method.path() + "/verify",
		body:   verifyRequest{Code: strings.TrimSpace(code)},
	})
	if err != nil {
		return false, err
	}
	switch resp.status {
	case http.StatusOK:
		out, err := decode[verifyResponse]("verify second factor", resp)
		if err != nil {
			return false, err
		}
		return out.Verified, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return false, nil
	default:
		return false, unexpected("verify second factor", resp)
	}
}

// FavoriteAvatars returns every favorited avatar, following pagination.
func (c *Client) FavoriteAvatars(ctx context.Context) ([]Avatar, error) {
	var all []Avatar
	for page := 0; page < maxFavoritePages; page++ {
		query := url.Values{}
		query.Set("n", strconv.Itoa(favoritesPageSize))
		query.Set("offset", strconv.Itoa(page*favoritesPageSize))

		resp, err := c.do(ctx, request{
			op:     "FavoriteAvatars",
			method: http.MethodGet,
			path:   "/avatars/favorites",
			query:  query,
		})
		if err != nil {
			return nil, err
		}
		if resp.status == http.StatusUnauthorized {
			return nil, unauthorized("favorite avatars", resp)
		}
		if resp.status != http.StatusOK {
			return nil, unexpected("favorite avatars", resp)
		}
		batch, err := decode[[]Avatar]("favorite avatars", resp)
		if err != nil {
			return nil, err
		}
		all = append(all, *batch...)
		if len(*batch) < favoritesPageSize {
			break
		}
	}
	c.logger.DebugContext(ctx, "fetched favorite avatars", "count", len(all))
	return all, nil
}

// SelectAvatar switches the active avatar.
func (c *Client) SelectAvatar(ctx context.Context, avatarID string) (*User, error) {
	if strings.TrimSpace(avatarID) == "" {
		return nil, oops.Code(CodeInvalidArgument).Errorf("avatar id is required")
	}
	resp, err := c.do(ctx, request{
		op:     "SelectAvatar",
		method: http.MethodPut,
		path:   "/avatars/" + avatarID + "/select",
	})
	if err != nil {
		return nil, err
	}
	switch resp.status {
	case http.StatusOK:
		return decode[User]("select avatar", resp)
	case http.StatusUnauthorized:
		return nil, unauthorized("select avatar", resp)
	case http.StatusForbidden, http.StatusNotFound:
		return nil, oops.Code(CodeAvatarUnavailable).
			With("avatar_id", avatarID).
			With("status", resp.status).
			Errorf("avatar %s is not available to this account", avatarID)
	default:
		return nil, unexpected("select avatar", resp)
	}
}

// Logout invalidates the session on the platform and forgets the cookies.
// An already invalid session is not an error.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.do(ctx, request{op: "Logout", method: http.MethodPut, path: "/logout"})
	if err != nil {
		return err
	}
	c.ClearCookies()
	if resp.status != http.StatusOK && resp.status != http.StatusUnauthorized {
		return unexpected("logout", resp)
	}
	return nil
}

// Cookies returns the live session cookies.
func (c *Client) Cookies() []*http.Cookie {
	now := c.now()
	out := make([]*http.Cookie, 0, len(c.cookies))
	for _, name := range slices.Sorted(maps.Keys(c.cookies)) {
		cookie := c.cookies[name]
		if expired(cookie, now) {
			continue
		}
		cp := *cookie
		out = append(out, &cp)
	}
	return out
}

// SetCookies replaces the session cookies, dropping expired ones.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.ClearCookies()
	c.storeCookies(cookies)
}

// ClearCookies forgets every session cookie.
func (c *Client) ClearCookies() {
	c.cookies = map[string]*http.Cookie{}
}

// AuthCookieExpiry returns the expiry of the auth cookie when it is known.
func (c *Client) AuthCookieExpiry() (time.Time, bool) {
	cookie, ok := c.cookies[AuthCookie]
	if !ok || cookie.Expires.IsZero() {
		return time.Time{}, false
	}
	return cookie.Expires, true
}

type basicAuth struct {
	username string
	password string
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	basic  *basicAuth
}

type response struct {
	status int
	body   []byte
	path   string
}

// do performs a request with retries for transient failures. A non-nil
// response is returned for every status that is not retried.
func (c *Client) do(ctx context.Context, r request) (*response, error) {
	ctx, span := c.tracer.Start(ctx, "vrchat."+r.op, trace.WithAttributes(
		attribute.String("http.request.method", r.method),
		attribute.String("url.path", r.path),
	))
	defer span.End()

	target := *c.baseURL
	target.Path = c.baseURL.Path + r.path
	target.RawQuery = r.query.Encode()

	var payload []byte
	if r.body != nil {
		var err error
		payload, err = json.Marshal(r.body)
		if err != nil {
			return nil, oops.Code(CodeInvalidArgument).With("operation", r.op).Wrap(err)
		}
	}

	var out *response
	attempt := 0
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		resp, err := c.attempt(ctx, r, target.String(), payload)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			c.logger.DebugContext(ctx, "request attempt failed", "operation", r.op, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		if resp.status == http.StatusTooManyRequests || resp.status >= http.StatusInternalServerError {
			c.logger.DebugContext(ctx, "retryable status", "operation", r.op, "attempt", attempt, "status", resp.status)
			return retry.RetryableError(&statusError{status: resp.status, body: snippet(resp.body)})
		}
		out = resp
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())

		var se *statusError
		if errors.As(err, &se) {
			return nil, oops.Code(CodeUnexpectedStatus).
				With("operation", r.op).
				With("status", se.status).
				With("attempts", attempt).
				With("body", se.body).
				Wrapf(ErrTransport, "%s: platform returned status %d", r.op, se.status)
		}
		return nil, oops.Code(CodeTransportFailed).
			With("operation", r.op).
			With("attempts", attempt).
			With("cause", err.Error()).
			Wrapf(errors.Join(ErrTransport, err), "%s request failed", r.op)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", out.status))
	c.logger.DebugContext(ctx, "request completed", "operation", r.op, "status", out.status, "attempts", attempt)
	return out, nil
}

func (c *Client) attempt(ctx context.Context, r request, target string, payload []byte) (*response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.basic != nil {
		req.SetBasicAuth(escapeCredential(r.basic.username), escapeCredential(r.basic.password))
	}
	for _, cookie := range c.Cookies() {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	c.storeCookies(resp.Cookies())
	return &response{status: resp.StatusCode, body: data, path: r.path}, nil
}

func (c *Client) storeCookies(cookies []*http.Cookie) {
	now := c.now()
	for _, cookie := range cookies {
		if cookie == nil || cookie.Name == "" {
			continue
		}
		if cookie.MaxAge < 0 || cookie.Value == "" {
			delete(c.cookies, cookie.Name)
			continue
		}
		kept := &http.Cookie{Name: cookie.Name, Value: cookie.Value, Expires: cookie.Expires}
		if cookie.MaxAge > 0 {
			kept.Expires = now.Add(time.Duration(cookie.MaxAge) * time.Second)
		}
		if expired(kept, now) {
			delete(c.cookies, cookie.Name)
			continue
		}
		c.cookies[cookie.Name] = kept
	}
}

func expired(cookie *http.Cookie, now time.Time) bool {
	return !cookie.Expires.IsZero() && !cookie.Expires.After(now)
}

// escapeCredential percent-encodes a username or password the way the
// platform expects inside basic auth. Spaces become %20, not '+'.
func escapeCredential(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func decode[T any](what string, resp *response) (*T, error) {
	var out T
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, oops.Code(CodeDecodeFailed).
			With("operation", what).
			With("body", snippet(resp.body)).
			Wrapf(errors.Join(ErrTransport, err), "decoding %s response", what)
	}
	return &out, nil
}

func unauthorized(what string, resp *response) error {
	return oops.Code(CodeAuthRequired).
		With("operation", what).
		With("status", resp.status).
		Wrapf(ErrUnauthorized, "%s", what)
}

func unexpected(what string, resp *response) error {
	return oops.Code(CodeUnexpectedStatus).
		With("operation", what).
		With("status", resp.status).
		With("body", snippet(resp.body)).
		Wrapf(ErrTransport, "%s: platform returned status %d", what, resp.status)
}

func snippet(body []byte) string {
	const limit = 256
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
