// Package apiclient is the single outbound path to the FlouzeTrack API.
//
// Every request carries the access token currently held in the token
// store. When the API answers 401 the client refreshes the token once,
// shared across all concurrent callers, and replays the request with the
// new token. Callers only ever see the final outcome.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/flouzetrack/flouze-cli/tokenstore"
)

const (
	// RefreshPath is the refresh endpoint on the auth service.
	RefreshPath = "/auth/refresh"
	// SignInPath is the sign-in endpoint on the auth service.
	SignInPath = "/auth/signin"
	// SignUpPath is the sign-up endpoint on the auth service.
	SignUpPath = "/auth/signup"

	// maxResponseBytes caps body reads so a misbehaving server cannot
	// exhaust memory.
	maxResponseBytes = 10 << 20

	requestIDHeader = "X-Request-ID"
)

// Client is the HTTP client facade. It is safe for concurrent use; each
// Client owns its own refresh coordinator.
type Client struct {
	baseURL   string
	authURL   string
	store     tokenstore.Store
	transport Transport
	// refreshTransport carries the refresh exchange. It must not retry.
	refreshTransport Transport
	log       logrus.FieldLogger
	userAgent string

	exempt         map[string]bool
	refreshTimeout time.Duration

	onSessionExpired func(error)
	onRefreshStart   func()
	onRefreshOK      func()

	coord *coordinator
}

// Option configures a Client.
type Option func(*Client)

// WithAuthURL sets the auth service base URL. Defaults to the API base URL.
func WithAuthURL(u string) Option {
	return func(c *Client) { c.authURL = strings.TrimRight(u, "/") }
}

// WithTransport replaces the default retrying transport. Unless
// WithRefreshTransport is also given, t carries the refresh exchange too.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithRefreshTransport sets the transport used for the refresh exchange.
// It should send each request once.
func WithRefreshTransport(t Transport) Option {
	return func(c *Client) { c.refreshTransport = t }
}

// WithLogger sets the logger. Defaults to the logrus standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithRefreshTimeout bounds each refresh call.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) { c.refreshTimeout = d }
}

// WithExemptPaths replaces the set of paths whose 401 is reported as
// ErrInvalidCredentials instead of triggering a refresh.
func WithExemptPaths(paths ...string) Option {
	return func(c *Client) {
		c.exempt = make(map[string]bool, len(paths))
		for _, p := range paths {
			c.exempt[normalizePath(p)] = true
		}
	}
}

// WithSessionExpiredHandler registers fn to be called once per failed
// refresh, after the stored credentials were cleared. This is where a
// caller sends the user back to sign-in.
func WithSessionExpiredHandler(fn func(error)) Option {
	return func(c *Client) { c.onSessionExpired = fn }
}

// WithRefreshHandlers registers progress callbacks for refresh flights.
func WithRefreshHandlers(onStart, onSuccess func()) Option {
	return func(c *Client) {
		c.onRefreshStart = onStart
		c.onRefreshOK = onSuccess
	}
}

// New returns a Client for the API at baseURL using store for credentials.
func New(baseURL string, store tokenstore.Store, opts ...Option) (*Client, error) {
	if err := validateBaseURL(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if store == nil {
		return nil, errors.New("token store is required")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		log:     logrus.StandardLogger(),
	}
	WithExemptPaths(SignInPath, SignUpPath, RefreshPath)(c)

	for _, opt := range opts {
		opt(c)
	}

	if c.authURL == "" {
		c.authURL = c.baseURL
	} else if err := validateBaseURL(c.authURL); err != nil {
		return nil, fmt.Errorf("invalid auth URL: %w", err)
	}

	if c.transport == nil {
		t, err := NewRetryTransport(c.log)
		if err != nil {
			return nil, err
		}
		c.transport = t

		if c.refreshTransport == nil {
			rt, err := NewSingleAttemptTransport(c.log)
			if err != nil {
				return nil, err
			}
			c.refreshTransport = rt
		}
	}
	if c.refreshTransport == nil {
		c.refreshTransport = c.transport
	}

	c.coord = newCoordinator(c.refresh, c.refreshTimeout)
	c.coord.onStart = c.onRefreshStart
	c.coord.onSuccess = c.onRefreshOK
	c.coord.onFailure = c.sessionExpired

	return c, nil
}

// Store returns the token store the client reads credentials from.
func (c *Client) Store() tokenstore.Store { return c.store }

// Refreshing reports whether a refresh is in flight.
func (c *Client) Refreshing() bool { return c.coord.InFlight() }

// RefreshCount returns the number of refresh calls started so far.
func (c *Client) RefreshCount() int64 { return c.coord.Flights() }

// Send executes req. Responses with status 400 or above are returned
// together with a *StatusError. A 401 on a non-exempt first attempt is
// recovered by refreshing the access token and replaying req once.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	sent, err := c.store.AccessToken()
	if err != nil {
		return nil, fmt.Errorf("reading access token: %w", err)
	}

	resp, err := c.do(ctx, req, sent)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || req.attempt > 0 || c.isExempt(req) {
		return c.result(resp)
	}

	token, err := c.freshToken(ctx, sent)
	if err != nil {
		return nil, err
	}

	replay := req.retry()
	c.entry(replay).Debug("replaying request with refreshed token")

	resp, err = c.do(ctx, replay, token)
	if err != nil {
		return nil, err
	}
	return c.result(resp)
}

// Do sends req and decodes a successful JSON body into out (if non-nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	resp, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// freshToken returns the token to replay with after a 401 for a request
// that was sent with sent. If a refresh already replaced the token while
// this one was on the wire, the stored token is reused without a new
// refresh.
func (c *Client) freshToken(ctx context.Context, sent string) (string, error) {
	current, err := c.store.AccessToken()
	if err != nil {
		return "", fmt.Errorf("reading access token: %w", err)
	}
	if current != "" && current != sent {
		return current, nil
	}
	return c.coord.AcquireOrAwait(ctx)
}

func (c *Client) do(ctx context.Context, req Request, token string) (*Response, error) {
	hreq, err := c.newHTTPRequest(ctx, req, token)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	hresp, err := c.transport.DoWithContext(ctx, hreq)
	if err != nil {
		// An exhausted retry client returns the last response with its error.
		if hresp != nil && hresp.Body != nil {
			hresp.Body.Close()
		}
		c.entry(req).WithError(err).Warn("request failed")
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.Path, err)
	}
	defer hresp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(hresp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: reading response: %w", req.Method, req.Path, err)
	}

	c.entry(req).WithFields(logrus.Fields{
		"status":     hresp.StatusCode,
		"request_id": hreq.Header.Get(requestIDHeader),
		"elapsed":    time.Since(start).Round(time.Millisecond),
	}).Debug("request completed")

	return &Response{
		StatusCode: hresp.StatusCode,
		Header:     hresp.Header,
		Body:       body,
		Request:    req,
	}, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request, token string) (*http.Request, error) {
	u, err := c.url(req)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	hreq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	hreq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		hreq.Header.Set("User-Agent", c.userAgent)
	}
	if hreq.Header.Get(requestIDHeader) == "" {
		hreq.Header.Set(requestIDHeader, uuid.NewString())
	}
	if token != "" {
		hreq.Header.Set("Authorization", "Bearer "+token)
	}
	return hreq, nil
}

func (c *Client) url(req Request) (string, error) {
	base := c.baseURL
	if req.Service == ServiceAuth {
		base = c.authURL
	}

	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u, err := url.Parse(base + path)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", req.Path, err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) result(resp *Response) (*Response, error) {
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	req := resp.Request
	u, _ := c.url(req)
	se := &StatusError{
		Method:     req.Method,
		URL:        u,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		kind:       unauthorizedKind(resp.StatusCode, c.isExempt(req)),
	}
	if gjson.ValidBytes(resp.Body) {
		parsed := gjson.ParseBytes(resp.Body)
		if parsed.IsObject() && (parsed.Get("error").Exists() || parsed.Get("message").Exists()) {
			var api ErrorBody
			if resp.Decode(&api) == nil {
				se.API = &api
			}
		}
	}
	return resp, se
}

// refresh exchanges the stored refresh token for a new access token. On any
// failure both stored tokens are removed.
func (c *Client) refresh(ctx context.Context) (string, error) {
	token, err := c.exchangeRefreshToken(ctx)
	if err != nil {
		if rmErr := c.store.RemoveAll(); rmErr != nil {
			c.log.WithError(rmErr).Error("failed to clear credentials after refresh failure")
		}
		return "", &RefreshError{Err: err}
	}
	return token, nil
}

func (c *Client) exchangeRefreshToken(ctx context.Context) (string, error) {
	refreshToken, err := c.store.RefreshToken()
	if err != nil {
		return "", fmt.Errorf("reading refresh token: %w", err)
	}
	if refreshToken == "" {
		if access, _ := c.store.AccessToken(); access == "" {
			return "", errSessionCleared
		}
		return "", ErrNoRefreshToken
	}

	hreq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.authURL+RefreshPath,
		strings.NewReader("{}"),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create refresh request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")
	hreq.Header.Set("Authorization", "Bearer "+refreshToken)
	hreq.Header.Set(requestIDHeader, uuid.NewString())
	if c.userAgent != "" {
		hreq.Header.Set("User-Agent", c.userAgent)
	}

	c.log.WithField("request_id", hreq.Header.Get(requestIDHeader)).Info("refreshing access token")

	resp, err := c.refreshTransport.DoWithContext(ctx, hreq)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return "", fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read refresh response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &oauth2.RetrieveError{
			Response:         resp,
			Body:             body,
			ErrorCode:        gjson.GetBytes(body, "error").String(),
			ErrorDescription: gjson.GetBytes(body, "message").String(),
		}
	}

	accessToken := gjson.GetBytes(body, "accessToken").String()
	if accessToken == "" {
		return "", errors.New("refresh response has no accessToken")
	}

	// Rotation mode returns a new refresh token; fixed mode omits it and
	// the current one stays valid.
	newRefresh := gjson.GetBytes(body, "refreshToken").String()
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	if err := c.store.SetTokens(accessToken, newRefresh); err != nil {
		return "", fmt.Errorf("storing refreshed tokens: %w", err)
	}
	return accessToken, nil
}

func (c *Client) sessionExpired(err error) {
	if errors.Is(err, errSessionCleared) {
		// A request that left before an earlier refresh failed; that
		// failure already ended the session.
		c.log.WithError(err).Debug("late 401 after the session was cleared")
		return
	}
	c.log.WithError(err).Warn("session expired, credentials cleared")
	if c.onSessionExpired != nil {
		c.onSessionExpired(err)
	}
}

func (c *Client) isExempt(req Request) bool {
	return c.exempt[normalizePath(req.Path)]
}

func (c *Client) entry(req Request) *logrus.Entry {
	return c.log.WithFields(logrus.Fields{
		"method":  req.Method,
		"service": req.Service.String(),
		"path":    req.Path,
		"attempt": req.attempt,
	})
}

func normalizePath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimRight(p, "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// validateBaseURL requires an absolute http(s) URL with a host.
func validateBaseURL(raw string) error {
	if raw == "" {
		return errors.New("URL cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}
