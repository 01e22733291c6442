package flouze

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// weiDecimals is the number of decimal places between wei and ether.
const weiDecimals = 18

// WeiToETH converts a base-10 wei amount to ether without losing precision.
func WeiToETH(wei string) (decimal.Decimal, error) {
	wei = strings.TrimSpace(wei)
	if wei == "" {
		return decimal.Zero, errors.New("empty wei amount")
	}
	d, err := decimal.NewFromString(wei)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing wei amount %q: %w", wei, err)
	}
	return d.Shift(-weiDecimals), nil
}

// PercentageChange returns (current-previous)/previous*100. A zero previous
// value yields zero rather than dividing by it.
func PercentageChange(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100))
}

// parseDay accepts the date forms the API emits: RFC 3339 timestamps and
// bare yyyy-MM-dd days.
func parseDay(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}
