package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/flouzetrack/flouze-cli/apiclient"
	"github.com/flouzetrack/flouze-cli/config"
	"github.com/flouzetrack/flouze-cli/flouze"
	"github.com/flouzetrack/flouze-cli/tokenstore"
	"github.com/flouzetrack/flouze-cli/tui"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// ErrNoCredentials is returned when a sign-in is needed but no email or
// password is configured.
var ErrNoCredentials = errors.New("no session stored and FLOUZE_EMAIL/FLOUZE_PASSWORD not set")

// isTTY reports whether stderr is a character device (interactive terminal).
// We check stderr because the TUI renders to stderr, allowing stdout to be piped.
func isTTY() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	tty := isTTY()
	logCloser, err := configureLogger(logrus.StandardLogger(), cfg, tty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, u := range cfg.InsecureURLs() {
		fmt.Fprintf(os.Stderr, "⚠️  WARNING: %s uses HTTP instead of HTTPS. Tokens will be transmitted in plaintext!\n", u)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var runErr error
	if tty {
		// Run TUI program on stderr so stdout pipes are not corrupted
		m := tui.NewModel()
		// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
		// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
		p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			}
		}()

		d := tui.NewProgramDisplayer(p)
		d.Banner()
		runErr = run(ctx, cfg, d)
		p.Quit() // let BubbleTea drain terminal query responses before exiting
		wg.Wait()
	} else {
		d := tui.NewPlainDisplayer(os.Stderr)
		d.Banner()
		runErr = run(ctx, cfg, d)
	}

	stop()
	_ = logCloser.Close()
	if runErr != nil {
		os.Exit(1)
	}
}

// app bundles what one run needs.
type app struct {
	cfg *config.Config
	api *flouze.API
	d   tui.Displayer
	log logrus.FieldLogger
}

func run(ctx context.Context, cfg *config.Config, d tui.Displayer, opts ...apiclient.Option) error {
	store, closeStore, err := openStore(cfg)
	if err != nil {
		d.Fatal(err)
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logrus.WithError(err).Warn("failed to close token store")
		}
	}()

	a, err := newApp(cfg, store, d, opts...)
	if err != nil {
		d.Fatal(err)
		return err
	}

	if err := a.ensureSession(ctx); err != nil {
		d.Fatal(err)
		return err
	}

	summary, err := a.dashboard(ctx)
	if errors.Is(err, apiclient.ErrRefreshFailed) {
		// The session was cleared by the failed refresh.
		if !cfg.HasCredentials() {
			err = fmt.Errorf("%w; sign in again", err)
			d.Fatal(err)
			return err
		}
		d.ReAuthRequired()
		if err := a.signIn(ctx); err != nil {
			d.Fatal(err)
			return err
		}
		summary, err = a.dashboard(ctx)
	}
	if err != nil {
		d.Fatal(err)
		return err
	}

	d.Done(summary)
	return nil
}

// openStore opens the configured token store. The returned func releases
// it.
func openStore(cfg *config.Config) (tokenstore.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.TokenStore {
	case config.StoreMemory:
		return tokenstore.NewMemoryStore(), noop, nil
	case config.StoreBolt:
		s, err := tokenstore.OpenBoltStore(cfg.TokenFile, cfg.Profile)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return tokenstore.NewFileStore(cfg.TokenFile, cfg.Profile), noop, nil
	}
}

func newApp(cfg *config.Config, store tokenstore.Store, d tui.Displayer, opts ...apiclient.Option) (*app, error) {
	log := logrus.StandardLogger().WithField("profile", cfg.Profile)

	base := []apiclient.Option{
		apiclient.WithAuthURL(cfg.APIAuthURL),
		apiclient.WithRefreshTimeout(cfg.RefreshTimeout),
		apiclient.WithUserAgent("flouze-cli/" + version),
		apiclient.WithLogger(log),
		apiclient.WithRefreshHandlers(d.Refreshing, d.RefreshOK),
		apiclient.WithSessionExpiredHandler(d.SessionExpired),
	}

	c, err := apiclient.New(cfg.APIBaseURL, store, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}
	return &app{cfg: cfg, api: flouze.New(c), d: d, log: log}, nil
}

// ensureSession reports a stored session or signs in when there is none.
// An expired access token is left for the client to refresh on first use.
func (a *app) ensureSession(ctx context.Context) error {
	access, err := a.api.Client().Store().AccessToken()
	if err != nil {
		return fmt.Errorf("reading session: %w", err)
	}
	if access != "" {
		exp, err := tokenstore.Expiry(access)
		if err != nil {
			a.log.WithError(err).Debug("access token has no readable expiry")
		}
		a.d.SessionFound(exp)
		return nil
	}

	a.d.SessionMissing()
	return a.signIn(ctx)
}

func (a *app) signIn(ctx context.Context) error {
	if !a.cfg.HasCredentials() {
		return ErrNoCredentials
	}

	reqCtx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	a.d.SigningIn(a.cfg.Email)
	if _, err := a.api.SignIn(reqCtx, flouze.Credentials{Email: a.cfg.Email, Password: a.cfg.Password}); err != nil {
		a.d.SignInFailed(err)
		return err
	}
	a.d.SignInOK(a.cfg.Email)
	return nil
}

// dashboard loads the profile, the favorites and the data of the first
// favorite (or the configured wallet). Wallet data is fetched concurrently
// so an expired token is refreshed once for all of them.
func (a *app) dashboard(ctx context.Context) (tui.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout)
	defer cancel()

	var s tui.Summary

	a.d.Loading("profile")
	me, err := a.api.Me(ctx)
	if err != nil {
		return s, err
	}
	a.d.ProfileLoaded(me.Email)
	s.Email = me.Email

	a.d.Loading("favorites")
	favs, err := a.api.Favorites(ctx)
	if err != nil {
		return s, err
	}
	wallets := make([]tui.Wallet, 0, len(favs))
	for _, f := range favs {
		wallets = append(wallets, tui.Wallet{Label: f.Label, Address: f.Address})
	}
	a.d.FavoritesLoaded(wallets)

	s.Wallet = tui.Wallet{Label: "default", Address: a.cfg.Wallet}
	if len(wallets) > 0 {
		s.Wallet = wallets[0]
	}
	s.Currency = a.cfg.Currency

	r := flouze.LastDays(time.Now(), a.cfg.HistoryDays)
	a.d.Loading("wallet data")

	var g errgroup.Group
	g.Go(func() error {
		balances, err := a.api.Balances(ctx, s.Wallet.Address, r)
		if err != nil {
			return a.nonFatal(err)
		}
		s.BalanceETH = latestBalance(balances).String()
		a.d.BalanceLoaded(s.Wallet.Address, s.BalanceETH, len(balances))
		return nil
	})
	g.Go(func() error {
		txs, err := a.api.Transactions(ctx, s.Wallet.Address, r)
		if err != nil {
			return a.nonFatal(err)
		}
		s.Transactions = len(txs)
		s.FeesETH = a.totalFees(txs).String()
		a.d.TransactionsLoaded(s.Wallet.Address, s.Transactions, s.FeesETH)
		return nil
	})
	g.Go(func() error {
		kpi, err := a.api.KPIs(ctx, a.cfg.Currency, r)
		if err != nil {
			return a.nonFatal(err)
		}
		s.Price = kpi.CurrentPrice
		s.PriceChange = kpi.PriceChange
		a.d.PriceLoaded(a.cfg.Currency, kpi.CurrentPrice, kpi.PriceChange)
		return nil
	})
	if err := g.Wait(); err != nil {
		return s, err
	}

	s.Refreshes = a.api.Client().RefreshCount()
	if access, err := a.api.Client().Store().AccessToken(); err == nil {
		s.SessionExpiry, _ = tokenstore.Expiry(access)
	}
	return s, nil
}

// nonFatal reports err and swallows it unless it ends the session.
func (a *app) nonFatal(err error) error {
	if errors.Is(err, apiclient.ErrRefreshFailed) || errors.Is(err, context.Canceled) {
		return err
	}
	a.d.APICallFailed(err)
	return nil
}

func (a *app) totalFees(txs []flouze.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		fee, err := tx.Fee()
		if err != nil {
			a.log.WithError(err).WithField("hash", tx.Hash).Debug("skipping transaction fee")
			continue
		}
		total = total.Add(fee)
	}
	return total
}

func latestBalance(balances []flouze.Balance) decimal.Decimal {
	if len(balances) == 0 {
		return decimal.Zero
	}
	latest := balances[0]
	for _, b := range balances[1:] {
		if b.Time.After(latest.Time) {
			latest = b
		}
	}
	return latest.ETH
}
