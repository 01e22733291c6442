package flouze

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Balance is one point of a wallet's balance history.
type Balance struct {
	Date string
	Time time.Time
	ETH  decimal.Decimal
}

type balanceHistoryResponse struct {
	History []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"history"`
}

// Balances returns the ETH balance history of address over r.
func (a *API) Balances(ctx context.Context, address string, r DateRange) ([]Balance, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	var raw balanceHistoryResponse
	if err := a.get(ctx, "/wallet/"+addr+"/balances", r.query(), &raw); err != nil {
		return nil, fmt.Errorf("fetching balances of %s: %w", addr, err)
	}

	out := make([]Balance, 0, len(raw.History))
	for _, item := range raw.History {
		eth, err := WeiToETH(item.Value)
		if err != nil {
			return nil, err
		}
		ts, err := parseDay(item.Date)
		if err != nil {
			return nil, err
		}
		out = append(out, Balance{Date: item.Date, Time: ts, ETH: eth})
	}
	return out, nil
}

// ValuePoint is one day of a wallet's balance valued in USD.
type ValuePoint struct {
	Date     string          `json:"date"`
	Balance  decimal.Decimal `json:"balance"`
	Price    decimal.Decimal `json:"price"`
	ValueUSD decimal.Decimal `json:"valueUsd"`
}

// WalletValue is a wallet's current balance and its USD value history.
type WalletValue struct {
	CurrentBalance  decimal.Decimal `json:"currentBalance"`
	CurrentValueUSD decimal.Decimal `json:"currentValueUsd"`
	History         []ValuePoint    `json:"history"`
}

// WalletValue returns the balance-with-price history of address over r.
func (a *API) WalletValue(ctx context.Context, address string, r DateRange) (*WalletValue, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	var out WalletValue
	if err := a.get(ctx, "/wallet/"+addr+"/prices", r.query(), &out); err != nil {
		return nil, fmt.Errorf("fetching value of %s: %w", addr, err)
	}
	return &out, nil
}

// Transaction is one transfer touching a wallet. Amounts are in wei.
type Transaction struct {
	Hash     string `json:"hash"`
	Symbol   string `json:"symbol"`
	Value    string `json:"value"`
	Date     string `json:"date"`
	From     string `json:"from"`
	To       string `json:"to"`
	GasUsed  string `json:"gasUsed"`
	GasPrice string `json:"gasPrice"`
}

// Fee returns gasUsed*gasPrice in ether.
func (t Transaction) Fee() (decimal.Decimal, error) {
	used, err := decimal.NewFromString(t.GasUsed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing gasUsed %q: %w", t.GasUsed, err)
	}
	price, err := decimal.NewFromString(t.GasPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing gasPrice %q: %w", t.GasPrice, err)
	}
	return used.Mul(price).Shift(-weiDecimals), nil
}

// Transactions lists the transactions of address over r. Both bounds are
// required by the endpoint; a zero range means the last 30 days.
func (a *API) Transactions(ctx context.Context, address string, r DateRange) ([]Transaction, error) {
	addr, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if r.IsZero() {
		r = LastDays(time.Now(), 30)
	}

	var out struct {
		Transactions []Transaction `json:"transactions"`
	}
	if err := a.get(ctx, "/wallet/"+addr+"/", r.query(), &out); err != nil {
		return nil, fmt.Errorf("fetching transactions of %s: %w", addr, err)
	}
	return out.Transactions, nil
}
