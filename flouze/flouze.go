// Package flouze is a typed client for the FlouzeTrack REST API: account
// and session management, favorite wallets, wallet history and market
// prices. All calls go through an apiclient.Client, so expired sessions are
// refreshed transparently.
package flouze

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/flouzetrack/flouze-cli/apiclient"
)

// DefaultCurrency is used when a price query names no currency.
const DefaultCurrency = "ETH"

// dateLayout is the yyyy-MM-dd form the API expects for date filters.
const dateLayout = "2006-01-02"

// API groups the FlouzeTrack services around one HTTP client.
type API struct {
	c *apiclient.Client
}

// New returns an API using c for every call.
func New(c *apiclient.Client) *API {
	return &API{c: c}
}

// Client returns the underlying HTTP client.
func (a *API) Client() *apiclient.Client { return a.c }

func (a *API) get(ctx context.Context, path string, q url.Values, out any) error {
	return a.c.Do(ctx, apiclient.NewRequest(http.MethodGet, path).WithQuery(q), out)
}

func (a *API) send(ctx context.Context, req apiclient.Request, body, out any) error {
	if body != nil {
		var err error
		if req, err = req.WithJSON(body); err != nil {
			return err
		}
	}
	return a.c.Do(ctx, req, out)
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LastDays returns the range covering the n days up to and including now.
func LastDays(now time.Time, n int) DateRange {
	if n < 1 {
		n = 1
	}
	end := now
	return DateRange{Start: end.AddDate(0, 0, -(n - 1)), End: end}
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// query renders the range as startDate/endDate parameters, omitting unset
// bounds.
func (r DateRange) query() url.Values {
	q := url.Values{}
	if !r.Start.IsZero() {
		q.Set("startDate", r.Start.Format(dateLayout))
	}
	if !r.End.IsZero() {
		q.Set("endDate", r.End.Format(dateLayout))
	}
	return q
}
