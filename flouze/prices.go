package flouze

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// Candle is one OHLC price point.
type Candle struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

type priceResponse struct {
	Prices []struct {
		Timestamp int64   `json:"timestamp"`
		High      float64 `json:"high"`
		Low       float64 `json:"low"`
		Open      float64 `json:"open"`
		Close     float64 `json:"close"`
	} `json:"prices"`
}

// KPI summarises a currency's price over a period. Timestamps are unix
// seconds as sent by the API.
type KPI struct {
	CurrentPrice                float64 `json:"currentPrice"`
	PriceChange                 float64 `json:"priceChange"`
	HighestPeriodPrice          float64 `json:"highestPeriodPrice"`
	HighestPeriodPriceTimestamp int64   `json:"highestPeriodPriceTimestamp"`
	LowestPeriodPrice           float64 `json:"lowestPeriodPrice"`
	LowestPeriodPriceTimestamp  int64   `json:"lowestPeriodPriceTimestamp"`
}

func priceQuery(currency string, r DateRange) url.Values {
	if currency == "" {
		currency = DefaultCurrency
	}
	q := r.query()
	q.Set("currency", currency)
	return q
}

// Prices returns the OHLC history of currency over r.
func (a *API) Prices(ctx context.Context, currency string, r DateRange) ([]Candle, error) {
	var raw priceResponse
	if err := a.get(ctx, "/prices", priceQuery(currency, r), &raw); err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}

	out := make([]Candle, 0, len(raw.Prices))
	for _, p := range raw.Prices {
		out = append(out, Candle{
			Time:  time.Unix(p.Timestamp, 0).UTC(),
			Open:  p.Open,
			High:  p.High,
			Low:   p.Low,
			Close: p.Close,
		})
	}
	return out, nil
}

// KPIs returns the price indicators of currency over r.
func (a *API) KPIs(ctx context.Context, currency string, r DateRange) (*KPI, error) {
	var out KPI
	if err := a.get(ctx, "/prices/kpis", priceQuery(currency, r), &out); err != nil {
		return nil, fmt.Errorf("fetching price KPIs: %w", err)
	}
	return &out, nil
}
