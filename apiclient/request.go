package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Service selects which base URL a request is sent to.
type Service int

const (
	// ServiceAPI is the data API (wallets, prices, favorites).
	ServiceAPI Service = iota
	// ServiceAuth is the authorization server.
	ServiceAuth
)

func (s Service) String() string {
	if s == ServiceAuth {
		return "auth"
	}
	return "api"
}

// Request describes one logical call. It is a value: the With* methods and
// the retry bookkeeping return copies, so a Request can be shared between
// goroutines and replayed without side effects.
type Request struct {
	Method  string
	Service Service
	Path    string
	Query   url.Values
	Header  http.Header
	Body    []byte

	attempt int
}

// NewRequest returns a request for the data API.
func NewRequest(method, path string) Request {
	return Request{Method: method, Path: path}
}

// On returns a copy sent to svc.
func (r Request) On(svc Service) Request {
	r.Service = svc
	return r
}

// WithQuery returns a copy carrying q.
func (r Request) WithQuery(q url.Values) Request {
	r.Query = q
	return r
}

// WithHeader returns a copy with key set to value; the receiver's header
// is left untouched.
func (r Request) WithHeader(key, value string) Request {
	h := r.Header.Clone()
	if h == nil {
		h = make(http.Header)
	}
	h.Set(key, value)
	r.Header = h
	return r
}

// WithJSON returns a copy whose body is v encoded as JSON.
func (r Request) WithJSON(v any) (Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return r, fmt.Errorf("encoding request body: %w", err)
	}
	r.Body = body
	return r, nil
}

// Attempt is 0 for the original send and 1 for the replay after a refresh.
func (r Request) Attempt() int { return r.attempt }

func (r Request) retry() Request {
	r.attempt++
	return r
}

// Response is a fully read transport response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    Request
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding %s response: %w", r.Request.Path, err)
	}
	return nil
}
