package tui

import (
	"fmt"
	"io"
	"sync"
	"time"

	tea "charm.land/bubbletea/v2"
)

// Displayer abstracts all output of the CLI. Implementations must be safe
// for concurrent use: refresh notifications arrive from request goroutines.
type Displayer interface {
	Banner()
	SessionFound(expiry time.Time)
	SessionMissing()
	SigningIn(email string)
	SignInOK(email string)
	SignInFailed(err error)
	Refreshing()
	RefreshOK()
	SessionExpired(err error)
	ReAuthRequired()
	Loading(what string)
	ProfileLoaded(email string)
	FavoritesLoaded(wallets []Wallet)
	BalanceLoaded(address, eth string, points int)
	TransactionsLoaded(address string, count int, feesETH string)
	PriceLoaded(currency string, price, change float64)
	APICallFailed(err error)
	Done(s Summary)
	Fatal(err error)
}

// PlainDisplayer writes plain text output to w.
// Used when stderr is not a TTY (pipes, CI, SSH without pty).
type PlainDisplayer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlainDisplayer creates a PlainDisplayer that writes to w.
func NewPlainDisplayer(w io.Writer) *PlainDisplayer {
	return &PlainDisplayer{w: w}
}

func (p *PlainDisplayer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func (p *PlainDisplayer) Banner() {
	p.printf("=== FlouzeTrack CLI ===\n\n")
}

func (p *PlainDisplayer) SessionFound(expiry time.Time) {
	if expiry.IsZero() {
		p.printf("Found existing session\n")
		return
	}
	if left := time.Until(expiry); left > 0 {
		p.printf("Found existing session, access token expires in %s\n", formatDuration(left))
		return
	}
	p.printf("Found existing session, access token expired (will refresh on first call)\n")
}

func (p *PlainDisplayer) SessionMissing() {
	p.printf("No existing session, signing in...\n")
}

func (p *PlainDisplayer) SigningIn(email string) {
	p.printf("Signing in as %s...\n", email)
}

func (p *PlainDisplayer) SignInOK(email string) {
	p.printf("Signed in as %s\n", email)
}

func (p *PlainDisplayer) SignInFailed(err error) {
	p.printf("Sign in failed: %v\n", err)
}

func (p *PlainDisplayer) Refreshing() {
	p.printf("Access token rejected (401), refreshing...\n")
}

func (p *PlainDisplayer) RefreshOK() {
	p.printf("Token refreshed, replaying pending requests\n")
}

func (p *PlainDisplayer) SessionExpired(err error) {
	p.printf("Session expired: %v\n", err)
}

func (p *PlainDisplayer) ReAuthRequired() {
	p.printf("Refresh token rejected, signing in again...\n")
}

func (p *PlainDisplayer) Loading(what string) {
	p.printf("Loading %s...\n", what)
}

func (p *PlainDisplayer) ProfileLoaded(email string) {
	p.printf("Account: %s\n", email)
}

func (p *PlainDisplayer) FavoritesLoaded(wallets []Wallet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "Favorites: %d\n", len(wallets))
	for _, w := range wallets {
		fmt.Fprintf(p.w, "  - %s (%s)\n", w.Label, w.Address)
	}
}

func (p *PlainDisplayer) BalanceLoaded(address, eth string, points int) {
	p.printf("Balance of %s: %s ETH (%d points)\n", address, eth, points)
}

func (p *PlainDisplayer) TransactionsLoaded(address string, count int, feesETH string) {
	p.printf("Transactions of %s: %d (fees %s ETH)\n", address, count, feesETH)
}

func (p *PlainDisplayer) PriceLoaded(currency string, price, change float64) {
	p.printf("%s price: %.2f USD (%+.2f%%)\n", currency, price, change)
}

func (p *PlainDisplayer) APICallFailed(err error) {
	p.printf("API call failed: %v\n", err)
}

func (p *PlainDisplayer) Done(s Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, "\n========================================")
	fmt.Fprintf(p.w, "Account:      %s\n", s.Email)
	fmt.Fprintf(p.w, "Wallet:       %s (%s)\n", s.Wallet.Label, s.Wallet.Address)
	fmt.Fprintf(p.w, "Balance:      %s ETH\n", s.BalanceETH)
	fmt.Fprintf(p.w, "Transactions: %d (fees %s ETH)\n", s.Transactions, s.FeesETH)
	fmt.Fprintf(p.w, "%s price:    %.2f USD (%+.2f%%)\n", s.Currency, s.Price, s.PriceChange)
	fmt.Fprintf(p.w, "Refreshes:    %d\n", s.Refreshes)
	if !s.SessionExpiry.IsZero() {
		fmt.Fprintf(p.w, "Session:      expires in %s\n", formatDuration(time.Until(s.SessionExpiry)))
	}
	fmt.Fprintln(p.w, "========================================")
}

func (p *PlainDisplayer) Fatal(err error) {
	p.printf("Error: %v\n", err)
}

// NoopDisplayer is a no-op implementation used in tests.
type NoopDisplayer struct{}

func (NoopDisplayer) Banner()                                      {}
func (NoopDisplayer) SessionFound(_ time.Time)                     {}
func (NoopDisplayer) SessionMissing()                              {}
func (NoopDisplayer) SigningIn(_ string)                           {}
func (NoopDisplayer) SignInOK(_ string)                            {}
func (NoopDisplayer) SignInFailed(_ error)                         {}
func (NoopDisplayer) Refreshing()                                  {}
func (NoopDisplayer) RefreshOK()                                   {}
func (NoopDisplayer) SessionExpired(_ error)                       {}
func (NoopDisplayer) ReAuthRequired()                              {}
func (NoopDisplayer) Loading(_ string)                             {}
func (NoopDisplayer) ProfileLoaded(_ string)                       {}
func (NoopDisplayer) FavoritesLoaded(_ []Wallet)                   {}
func (NoopDisplayer) BalanceLoaded(_, _ string, _ int)             {}
func (NoopDisplayer) TransactionsLoaded(_ string, _ int, _ string) {}
func (NoopDisplayer) PriceLoaded(_ string, _, _ float64)           {}
func (NoopDisplayer) APICallFailed(_ error)                        {}
func (NoopDisplayer) Done(_ Summary)                               {}
func (NoopDisplayer) Fatal(_ error)                                {}

// ProgramDisplayer sends BubbleTea messages to a running tea.Program.
type ProgramDisplayer struct {
	p *tea.Program
}

// NewProgramDisplayer creates a ProgramDisplayer that sends messages to p.
func NewProgramDisplayer(p *tea.Program) *ProgramDisplayer {
	return &ProgramDisplayer{p: p}
}

func (t *ProgramDisplayer) Banner() {
	t.p.Send(MsgBanner{})
}

func (t *ProgramDisplayer) SessionFound(expiry time.Time) {
	t.p.Send(MsgSessionFound{Expiry: expiry})
}

func (t *ProgramDisplayer) SessionMissing() {
	t.p.Send(MsgSessionMissing{})
}

func (t *ProgramDisplayer) SigningIn(email string) {
	t.p.Send(MsgSigningIn{Email: email})
}

func (t *ProgramDisplayer) SignInOK(email string) {
	t.p.Send(MsgSignInOK{Email: email})
}

func (t *ProgramDisplayer) SignInFailed(err error) {
	t.p.Send(MsgSignInFailed{Err: err})
}

func (t *ProgramDisplayer) Refreshing() {
	t.p.Send(MsgRefreshing{})
}

func (t *ProgramDisplayer) RefreshOK() {
	t.p.Send(MsgRefreshOK{})
}

func (t *ProgramDisplayer) SessionExpired(err error) {
	t.p.Send(MsgSessionExpired{Err: err})
}

func (t *ProgramDisplayer) ReAuthRequired() {
	t.p.Send(MsgReAuthRequired{})
}

func (t *ProgramDisplayer) Loading(what string) {
	t.p.Send(MsgLoading{What: what})
}

func (t *ProgramDisplayer) ProfileLoaded(email string) {
	t.p.Send(MsgProfileLoaded{Email: email})
}

func (t *ProgramDisplayer) FavoritesLoaded(wallets []Wallet) {
	t.p.Send(MsgFavoritesLoaded{Wallets: wallets})
}

func (t *ProgramDisplayer) BalanceLoaded(address, eth string, points int) {
	t.p.Send(MsgBalanceLoaded{Address: address, ETH: eth, Points: points})
}

func (t *ProgramDisplayer) TransactionsLoaded(address string, count int, feesETH string) {
	t.p.Send(MsgTransactionsLoaded{Address: address, Count: count, FeesETH: feesETH})
}

func (t *ProgramDisplayer) PriceLoaded(currency string, price, change float64) {
	t.p.Send(MsgPriceLoaded{Currency: currency, Price: price, Change: change})
}

func (t *ProgramDisplayer) APICallFailed(err error) {
	t.p.Send(MsgAPICallFailed{Err: err})
}

func (t *ProgramDisplayer) Done(s Summary) {
	t.p.Send(MsgDone{Summary: s})
}

func (t *ProgramDisplayer) Fatal(err error) {
	t.p.Send(MsgFatal{Err: err})
}
