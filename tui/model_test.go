package tui

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "0s"},
		{0, "0s"},
		{1400 * time.Millisecond, "1s"},
		{59 * time.Second, "59s"},
		{90 * time.Second, "1m 30s"},
		{2*time.Hour + 5*time.Minute + 10*time.Second, "2h 5m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(Model)
		if !ok {
			t.Fatalf("Update returned %T, want Model", next)
		}
	}
	return m
}

func TestModel_RefreshFlow(t *testing.T) {
	m := update(t, NewModel(),
		MsgSessionFound{Expiry: time.Now().Add(-time.Minute)},
		MsgLoading{What: "wallet data"},
		MsgRefreshing{},
	)
	if m.state != stateRefreshing {
		t.Fatalf("state = %d, want refreshing", m.state)
	}
	if !strings.Contains(m.viewMain(), "Refreshing access token") {
		t.Errorf("main view does not mention the refresh:\n%s", m.viewMain())
	}

	m = update(t, m, MsgRefreshOK{})
	if m.state != stateLoading {
		t.Errorf("state = %d, want loading after refresh", m.state)
	}
	if m.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", m.refreshes)
	}
}

func TestModel_SignInAndDone(t *testing.T) {
	m := update(t, NewModel(),
		MsgSessionMissing{},
		MsgSigningIn{Email: "alice@example.com"},
	)
	if m.state != stateSigningIn {
		t.Fatalf("state = %d, want signing in", m.state)
	}

	m = update(t, m,
		MsgSignInOK{Email: "alice@example.com"},
		MsgFavoritesLoaded{Wallets: []Wallet{{Label: "main", Address: "0xabc"}}},
		MsgDone{Summary: Summary{
			Email:        "alice@example.com",
			Wallet:       Wallet{Label: "main", Address: "0xabc"},
			BalanceETH:   "1.5",
			Transactions: 3,
			FeesETH:      "0.001",
			Currency:     "ETH",
			Price:        2300,
			Refreshes:    1,
		}},
	)
	if m.state != stateSuccess {
		t.Fatalf("state = %d, want success", m.state)
	}

	view := m.viewSuccess()
	for _, want := range []string{"alice@example.com", "1.5 ETH", "3 (fees 0.001 ETH)", "2300.00 USD"} {
		if !strings.Contains(view, want) {
			t.Errorf("success view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_Fatal(t *testing.T) {
	m := update(t, NewModel(), MsgFatal{Err: errors.New("boom")})
	if m.state != stateError {
		t.Fatalf("state = %d, want error", m.state)
	}
	if !strings.Contains(m.viewError(), "boom") {
		t.Errorf("error view missing message:\n%s", m.viewError())
	}
}

func TestPlainDisplayer(t *testing.T) {
	var buf bytes.Buffer
	d := NewPlainDisplayer(&buf)

	d.Banner()
	d.SessionFound(time.Time{})
	d.Refreshing()
	d.RefreshOK()
	d.SessionExpired(errors.New("refresh token revoked"))
	d.PriceLoaded("ETH", 2300.5, -1.25)

	out := buf.String()
	for _, want := range []string{
		"FlouzeTrack CLI",
		"Found existing session\n",
		"refreshing...",
		"Session expired: refresh token revoked",
		"ETH price: 2300.50 USD (-1.25%)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPlainDisplayer_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	d := NewPlainDisplayer(&buf)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Refreshing()
			d.RefreshOK()
		}()
	}
	wg.Wait()

	if got := strings.Count(buf.String(), "\n"); got != 40 {
		t.Errorf("got %d lines, want 40", got)
	}
}

func TestNoopDisplayer(t *testing.T) {
	var d Displayer = NoopDisplayer{}
	d.Banner()
	d.Done(Summary{})
	d.Fatal(errors.New("ignored"))
}
