// Package config resolves the flouze CLI settings from flags, environment
// variables and an optional .env file, in that order of priority.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Token store backends.
const (
	StoreFile   = "file"
	StoreBolt   = "bolt"
	StoreMemory = "memory"
)

// Config holds the resolved CLI configuration.
type Config struct {
	APIBaseURL string `env:"API_BASE_URL" envDefault:"http://localhost:4010/api/v1"`
	// APIAuthURL defaults to APIBaseURL when empty.
	APIAuthURL string `env:"API_AUTH_URL"`

	TokenStore string `env:"TOKEN_STORE" envDefault:"file"`
	TokenFile  string `env:"TOKEN_FILE" envDefault:".flouze-tokens.json"`
	Profile    string `env:"PROFILE" envDefault:"default"`

	RefreshTimeout time.Duration `env:"REFRESH_TIMEOUT" envDefault:"10s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`
	LogFile  string `env:"LOG_FILE"`

	// Credentials used when no session is stored or the session expired.
	Email    string `env:"FLOUZE_EMAIL"`
	Password string `env:"FLOUZE_PASSWORD"`

	Currency    string `env:"CURRENCY" envDefault:"ETH"`
	HistoryDays int    `env:"HISTORY_DAYS" envDefault:"30"`
	// Wallet is shown when the account has no favorites.
	Wallet string `env:"WALLET_ADDRESS" envDefault:"0xd0b08671eC13B451823aD9bC5401ce908872e7c5"`
}

type flags struct {
	apiURL, authURL   *string
	store, tokenFile  *string
	profile, logLevel *string
	email, currency   *string
	wallet            *string
	days              *int
	refreshTimeout    *time.Duration
}

func newFlagSet(name string) (*flag.FlagSet, *flags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	f := &flags{
		apiURL:         fs.String("api-url", "", "API base URL (default: http://localhost:4010/api/v1 or API_BASE_URL env)"),
		authURL:        fs.String("auth-url", "", "Auth API base URL (default: API base URL or API_AUTH_URL env)"),
		store:          fs.String("store", "", "Token store: file, bolt or memory (default: file or TOKEN_STORE env)"),
		tokenFile:      fs.String("token-file", "", "Token storage file (default: .flouze-tokens.json or TOKEN_FILE env)"),
		profile:        fs.String("profile", "", "Session profile name (default: default or PROFILE env)"),
		logLevel:       fs.String("log-level", "", "Log level (default: warn or LOG_LEVEL env)"),
		email:          fs.String("email", "", "Account email (or FLOUZE_EMAIL env)"),
		currency:       fs.String("currency", "", "Price currency (default: ETH or CURRENCY env)"),
		wallet:         fs.String("wallet", "", "Wallet shown when there are no favorites (or WALLET_ADDRESS env)"),
		days:           fs.Int("days", 0, "History length in days (default: 30 or HISTORY_DAYS env)"),
		refreshTimeout: fs.Duration("refresh-timeout", 0, "Upper bound for one token refresh (default: 10s or REFRESH_TIMEOUT env)"),
	}
	return fs, f
}

// Load reads .env (if present), the environment and then args. A flag that
// is set wins over the environment, which wins over the built-in default.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	fs, f := newFlagSet("flouze")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	f.apply(cfg)

	if cfg.APIAuthURL == "" {
		cfg.APIAuthURL = cfg.APIBaseURL
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (f *flags) apply(cfg *Config) {
	cfg.APIBaseURL = getConfig(*f.apiURL, cfg.APIBaseURL)
	cfg.APIAuthURL = getConfig(*f.authURL, cfg.APIAuthURL)
	cfg.TokenStore = getConfig(*f.store, cfg.TokenStore)
	cfg.TokenFile = getConfig(*f.tokenFile, cfg.TokenFile)
	cfg.Profile = getConfig(*f.profile, cfg.Profile)
	cfg.LogLevel = getConfig(*f.logLevel, cfg.LogLevel)
	cfg.Email = getConfig(*f.email, cfg.Email)
	cfg.Currency = getConfig(*f.currency, cfg.Currency)
	cfg.Wallet = getConfig(*f.wallet, cfg.Wallet)
	if *f.days > 0 {
		cfg.HistoryDays = *f.days
	}
	if *f.refreshTimeout > 0 {
		cfg.RefreshTimeout = *f.refreshTimeout
	}
}

// getConfig returns flagValue when set, else current (env or default).
func getConfig(flagValue, current string) string {
	if flagValue != "" {
		return flagValue
	}
	return current
}

func (c *Config) validate() error {
	if err := validateServerURL(c.APIBaseURL); err != nil {
		return fmt.Errorf("API_BASE_URL: %w", err)
	}
	if err := validateServerURL(c.APIAuthURL); err != nil {
		return fmt.Errorf("API_AUTH_URL: %w", err)
	}

	switch c.TokenStore {
	case StoreFile, StoreBolt:
		if c.TokenFile == "" {
			return errors.New("TOKEN_FILE is required for a persistent token store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("TOKEN_STORE must be file, bolt or memory, got: %s", c.TokenStore)
	}

	if c.Profile == "" {
		return errors.New("PROFILE cannot be empty")
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("REFRESH_TIMEOUT must be positive, got: %s", c.RefreshTimeout)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got: %s", c.RequestTimeout)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.HistoryDays < 1 {
		return fmt.Errorf("HISTORY_DAYS must be at least 1, got: %d", c.HistoryDays)
	}
	if c.Currency == "" {
		return errors.New("CURRENCY cannot be empty")
	}
	if c.Wallet != "" && !common.IsHexAddress(c.Wallet) {
		return fmt.Errorf("WALLET_ADDRESS is not an ethereum address: %s", c.Wallet)
	}
	return nil
}

// Level returns the parsed log level. Load has already validated it.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.WarnLevel
	}
	return lvl
}

// InsecureURLs lists the configured endpoints that use plain HTTP.
func (c *Config) InsecureURLs() []string {
	var out []string
	for _, u := range []string{c.APIBaseURL, c.APIAuthURL} {
		if strings.HasPrefix(strings.ToLower(u), "http://") && !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out
}

// HasCredentials reports whether both email and password are configured.
func (c *Config) HasCredentials() bool {
	return c.Email != "" && c.Password != ""
}

// validateServerURL validates that the server URL is properly formatted
func validateServerURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("server URL cannot be empty")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got: %s", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("URL must include a host")
	}

	return nil
}

// warnInsecureEnvFile warns when .env, which may hold the account
// password, is readable by group or others.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return
	}

	if mode := info.Mode().Perm(); mode&0o077 != 0 {
		logrus.Warnf(".env file has insecure permissions %04o; recommended 0600", mode)
	}
}
