package apiclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	retry "github.com/appleboy/go-httpretry"
	"github.com/sirupsen/logrus"
)

// Transport executes one HTTP exchange. *retry.Client satisfies it, as
// does HTTPTransport.
type Transport interface {
	DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error)
}

// HTTPTransport adapts a plain *http.Client to Transport.
type HTTPTransport struct {
	Client *http.Client
}

func (t HTTPTransport) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	c := t.Client
	if c == nil {
		c = http.DefaultClient
	}
	return c.Do(req.WithContext(ctx))
}

// NewRetryTransport returns the default transport: a TLS 1.2+ client with
// connection reuse, wrapped with retries on network errors and 5xx/429.
// A 401 is never retried at this layer. Retry progress is logged to log.
// opts override the preset.
func NewRetryTransport(log logrus.FieldLogger, opts ...retry.Option) (Transport, error) {
	base := []retry.Option{
		retry.WithHTTPClient(newBaseHTTPClient()),
		retry.WithLogger(retryLogger{log: log}),
	}

	rc, err := retry.NewBackgroundClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	return rc, nil
}

// NewSingleAttemptTransport returns a transport that sends each request
// exactly once and hands back whatever the server answered. The token
// refresh goes through it: a failed refresh ends the session.
func NewSingleAttemptTransport(log logrus.FieldLogger) (Transport, error) {
	rc, err := retry.NewClient(
		retry.WithHTTPClient(newBaseHTTPClient()),
		retry.WithMaxRetries(0),
		retry.WithRetryableChecker(func(error, *http.Response) bool { return false }),
		retry.WithLogger(retryLogger{log: log}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh client: %w", err)
	}
	return rc, nil
}

func newBaseHTTPClient() *http.Client {
	return &http.Client{
		Transport: rewindingTransport{
			next: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// rewindingTransport gives every round trip a fresh copy of the request
// body. The retry client clones the request per attempt, and clones share
// the body reader, so without this a retried POST goes out empty.
type rewindingTransport struct {
	next http.RoundTripper
}

func (t rewindingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody == nil {
		return t.next.RoundTrip(req)
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewinding request body: %w", err)
	}
	r := req.WithContext(req.Context())
	r.Body = body
	return t.next.RoundTrip(r)
}

// retryLogger routes go-httpretry's key/value logging into logrus so it
// honours the configured level and output.
type retryLogger struct {
	log logrus.FieldLogger
}

func (l retryLogger) Debug(msg string, args ...any) { l.entry(args).Debug(msg) }
func (l retryLogger) Info(msg string, args ...any)  { l.entry(args).Info(msg) }
func (l retryLogger) Warn(msg string, args ...any)  { l.entry(args).Warn(msg) }
func (l retryLogger) Error(msg string, args ...any) { l.entry(args).Error(msg) }

func (l retryLogger) entry(args []any) *logrus.Entry {
	log := l.log
	if log == nil {
		log = logrus.StandardLogger()
	}

	fields := logrus.Fields{"component": "retry"}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		fields[key] = args[i+1]
	}
	return log.WithFields(fields)
}
