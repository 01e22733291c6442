package tui

import (
	"time"
)

// Wallet is one wallet row shown to the user.
type Wallet struct {
	Label   string
	Address string
}

// Summary is the final report of a run.
type Summary struct {
	Email        string
	Wallet       Wallet
	BalanceETH   string
	Transactions int
	FeesETH      string
	Currency     string
	Price        float64
	PriceChange  float64
	Refreshes    int64
	// SessionExpiry is zero when the access token carries no expiry.
	SessionExpiry time.Time
}

// MsgBanner signals that the banner/title should be displayed.
type MsgBanner struct{}

// MsgSessionFound signals that a stored session was found. Expiry is zero
// when the access token carries none.
type MsgSessionFound struct{ Expiry time.Time }

// MsgSessionMissing signals that no session is stored.
type MsgSessionMissing struct{}

// MsgSigningIn signals that a sign-in request is in progress.
type MsgSigningIn struct{ Email string }

// MsgSignInOK signals that sign-in succeeded and the session was stored.
type MsgSignInOK struct{ Email string }

// MsgSignInFailed signals that sign-in failed.
type MsgSignInFailed struct{ Err error }

// MsgRefreshing signals that a token refresh is in flight.
type MsgRefreshing struct{}

// MsgRefreshOK signals that the access token was refreshed.
type MsgRefreshOK struct{}

// MsgSessionExpired signals that refresh failed and the stored session was
// cleared.
type MsgSessionExpired struct{ Err error }

// MsgReAuthRequired signals that the CLI is signing in again.
type MsgReAuthRequired struct{}

// MsgLoading signals that data is being fetched.
type MsgLoading struct{ What string }

// MsgProfileLoaded signals that /auth/me answered.
type MsgProfileLoaded struct{ Email string }

// MsgFavoritesLoaded carries the user's favorite wallets.
type MsgFavoritesLoaded struct{ Wallets []Wallet }

// MsgBalanceLoaded carries the latest balance of a wallet.
type MsgBalanceLoaded struct {
	Address string
	ETH     string
	Points  int
}

// MsgTransactionsLoaded carries the transaction count of a wallet.
type MsgTransactionsLoaded struct {
	Address string
	Count   int
	FeesETH string
}

// MsgPriceLoaded carries the current price of a currency.
type MsgPriceLoaded struct {
	Currency string
	Price    float64
	Change   float64
}

// MsgAPICallFailed signals that a non-fatal API call failed.
type MsgAPICallFailed struct{ Err error }

// MsgDone signals successful completion.
type MsgDone struct{ Summary Summary }

// MsgFatal signals a fatal error that should terminate the run.
type MsgFatal struct{ Err error }
