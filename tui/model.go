package tui

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
)

// tickMsg is fired every second to update the session countdown.
type tickMsg time.Time

// state represents the current phase of a run.
type state int

const (
	stateInit       state = iota
	stateSigningIn        // sign-in request in flight
	stateRefreshing       // token refresh in flight
	stateLoading          // fetching account and wallet data
	stateSuccess          // all done
	stateError            // fatal error
)

// statusKind distinguishes line types in the status log.
type statusKind int

const (
	statusOK   statusKind = iota
	statusWarn            // warning / non-fatal
	statusInfo            // neutral info
)

// statusLine is one row in the scrolling status log.
type statusLine struct {
	kind statusKind
	text string
}

// Model is the BubbleTea model for the flouze TUI.
type Model struct {
	state   state
	spinner spinner.Model
	width   int
	height  int

	email   string
	loading string
	wallets []Wallet

	// Access token expiry, when known
	sessionExpiry time.Time
	remaining     time.Duration

	// Refresh flights seen so far
	refreshes int

	summary Summary
	errMsg  string

	// Scrolling status log shown below the main panel
	statusLines []statusLine
}

// Lipgloss styles, defined once at package level.
var (
	styleTitleBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(0, 2)

	styleValueBox = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("228")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("228")).
			Padding(0, 2)

	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styleErr  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	styleBold = lipgloss.NewStyle().Bold(true)
)

// NewModel creates the initial TUI model.
func NewModel() Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
	)
	return Model{
		state:   stateInit,
		spinner: s,
	}
}

// Init starts the spinner animation.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		m.remaining = max(time.Until(m.sessionExpiry), 0)
		if m.remaining > 0 && m.state != stateSuccess && m.state != stateError {
			return m, tickAfterSecond()
		}
		return m, nil

	case tea.KeyPressMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	// ── Session messages ─────────────────────────────────────────────────────

	case MsgBanner:
		return m, nil

	case MsgSessionFound:
		m.sessionExpiry = msg.Expiry
		if msg.Expiry.IsZero() {
			m.addStatus(statusOK, "Found existing session")
			return m, nil
		}
		m.remaining = max(time.Until(msg.Expiry), 0)
		if m.remaining == 0 {
			m.addStatus(statusWarn, "Found existing session, access token expired")
			return m, nil
		}
		m.addStatus(statusOK, "Found existing session")
		return m, tickAfterSecond()

	case MsgSessionMissing:
		m.addStatus(statusInfo, "No existing session")
		return m, nil

	case MsgSigningIn:
		m.state = stateSigningIn
		m.email = msg.Email
		return m, nil

	case MsgSignInOK:
		m.email = msg.Email
		m.addStatus(statusOK, "Signed in as "+msg.Email)
		return m, nil

	case MsgSignInFailed:
		m.addStatus(statusWarn, fmt.Sprintf("Sign in failed: %v", msg.Err))
		return m, nil

	case MsgRefreshing:
		m.state = stateRefreshing
		m.addStatus(statusWarn, "Access token rejected (401), refreshing...")
		return m, nil

	case MsgRefreshOK:
		m.refreshes++
		m.state = stateLoading
		m.addStatus(statusOK, "Token refreshed, replaying pending requests")
		return m, nil

	case MsgSessionExpired:
		m.addStatus(statusWarn, fmt.Sprintf("Session expired: %v", msg.Err))
		return m, nil

	case MsgReAuthRequired:
		m.addStatus(statusWarn, "Refresh token rejected, signing in again...")
		return m, nil

	// ── Data messages ────────────────────────────────────────────────────────

	case MsgLoading:
		m.state = stateLoading
		m.loading = msg.What
		return m, nil

	case MsgProfileLoaded:
		m.email = msg.Email
		m.addStatus(statusOK, "Account: "+msg.Email)
		return m, nil

	case MsgFavoritesLoaded:
		m.wallets = msg.Wallets
		m.addStatus(statusOK, fmt.Sprintf("%d favorite wallet(s)", len(msg.Wallets)))
		return m, nil

	case MsgBalanceLoaded:
		m.addStatus(statusOK, fmt.Sprintf("Balance %s ETH (%d points)", msg.ETH, msg.Points))
		return m, nil

	case MsgTransactionsLoaded:
		m.addStatus(statusOK, fmt.Sprintf("%d transaction(s), fees %s ETH", msg.Count, msg.FeesETH))
		return m, nil

	case MsgPriceLoaded:
		m.addStatus(statusOK, fmt.Sprintf("%s %.2f USD (%+.2f%%)", msg.Currency, msg.Price, msg.Change))
		return m, nil

	case MsgAPICallFailed:
		m.addStatus(statusWarn, fmt.Sprintf("API call failed: %v", msg.Err))
		return m, nil

	case MsgDone:
		m.summary = msg.Summary
		m.state = stateSuccess
		return m, nil

	case MsgFatal:
		m.errMsg = msg.Err.Error()
		m.state = stateError
		return m, nil
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() tea.View {
	switch m.state {
	case stateSuccess:
		return tea.NewView(m.viewSuccess())
	case stateError:
		return tea.NewView(m.viewError())
	default:
		return tea.NewView(m.viewMain())
	}
}

// viewMain is shown while signing in, refreshing and loading.
func (m Model) viewMain() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleTitleBox.Render("  FlouzeTrack  "))
	b.WriteString("\n\n")

	if m.email != "" {
		b.WriteString(styleBold.Render("Account: "))
		b.WriteString(m.email)
		if m.remaining > 0 {
			b.WriteString(styleDim.Render("  session " + formatDuration(m.remaining) + " left"))
		}
		b.WriteString("\n\n")
	}

	switch m.state {
	case stateSigningIn:
		b.WriteString(m.spinner.View())
		b.WriteString(" Signing in...\n")

	case stateRefreshing:
		b.WriteString(m.spinner.View())
		b.WriteString(" Refreshing access token...\n")

	case stateLoading:
		b.WriteString(m.spinner.View())
		b.WriteString(" Loading " + m.loading + "...\n")

	default:
		b.WriteString(m.spinner.View())
		b.WriteString(" Initializing...\n")
	}

	if len(m.wallets) > 0 {
		b.WriteString("\n")
		for _, w := range m.wallets {
			b.WriteString(styleDim.Render("  " + w.Label + "  " + w.Address))
			b.WriteString("\n")
		}
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewSuccess is shown once all data is loaded.
func (m Model) viewSuccess() string {
	s := m.summary
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleOK.Render("  ✓ " + s.Email))
	b.WriteString("\n\n")

	b.WriteString(styleBold.Render("Wallet:       "))
	b.WriteString(s.Wallet.Label + " " + styleDim.Render(s.Wallet.Address) + "\n\n")

	b.WriteString(styleValueBox.Render("  " + s.BalanceETH + " ETH  "))
	b.WriteString("\n\n")

	b.WriteString(styleBold.Render("Transactions: "))
	b.WriteString(fmt.Sprintf("%d (fees %s ETH)\n", s.Transactions, s.FeesETH))

	b.WriteString(styleBold.Render(fmt.Sprintf("%-14s", s.Currency+" price:")))
	b.WriteString(fmt.Sprintf("%.2f USD (%+.2f%%)\n", s.Price, s.PriceChange))

	b.WriteString(styleBold.Render("Refreshes:    "))
	b.WriteString(fmt.Sprintf("%d\n", s.Refreshes))

	if !s.SessionExpiry.IsZero() {
		b.WriteString(styleBold.Render("Session:      "))
		b.WriteString(formatDuration(time.Until(s.SessionExpiry)) + " left\n")
	}

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewError is shown when a fatal error occurs.
func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(styleErr.Render("  ✗ Failed"))
	b.WriteString("\n\n")
	b.WriteString(styleDim.Render("  " + m.errMsg))
	b.WriteString("\n")

	b.WriteString(m.viewStatusLog())
	return b.String()
}

// viewStatusLog renders the scrolling status log.
func (m Model) viewStatusLog() string {
	if len(m.statusLines) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	for _, line := range m.statusLines {
		switch line.kind {
		case statusOK:
			b.WriteString(styleOK.Render("  ✓ " + line.text))
		case statusWarn:
			b.WriteString(styleWarn.Render("  ⚠ " + line.text))
		default:
			b.WriteString(styleDim.Render("  · " + line.text))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// addStatus appends a line to the status log.
func (m *Model) addStatus(kind statusKind, text string) {
	m.statusLines = append(m.statusLines, statusLine{kind: kind, text: text})
}

// tickAfterSecond returns a command that fires tickMsg after one second.
func tickAfterSecond() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// formatDuration formats a duration as "Xh Ym", "Xm Ys" or "Xs".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
