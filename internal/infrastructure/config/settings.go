package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/iller75/BybitMover/internal/domain"
)

// DefaultSettingsPath is used when no configuration file is given.
const DefaultSettingsPath = "config.json"

var (
	// ErrInvalidInterval is returned for a check_interval not shaped like 5m or 2h.
	ErrInvalidInterval = errors.New("check_interval must be in format: '5m' or '2h'")

	// ErrMissingCredential is returned in live mode for an account without an API key pair.
	ErrMissingCredential = errors.New("api_key and api_secret are required in live mode")

	intervalRegex = regexp.MustCompile(`^\d+[mh]$`)

	defaultMinRemainingBalance = decimal.NewFromInt(50)
)

// AccountSettings is one account entry of the configuration file.
type AccountSettings struct {
	UID       string `json:"uid"        yaml:"uid"`
	APIKey    string `json:"api_key"    yaml:"api_key"`
	APISecret string `json:"api_secret" yaml:"api_secret"`
}

// MarginCheckSettings configures the margin guard.
type MarginCheckSettings struct {
	Enabled              bool            `json:"enabled"                 yaml:"enabled"`
	MaxMarginUsedPercent decimal.Decimal `json:"max_margin_used_percent" yaml:"max_margin_used_percent"`
}

// AccountsSettings lists the main account and the swept sub-accounts.
type AccountsSettings struct {
	MainAccount AccountSettings   `json:"main_account" yaml:"main_account"`
	SubAccounts []AccountSettings `json:"sub_accounts" yaml:"sub_accounts"`
}

// Settings is the sweep configuration file.
type Settings struct {
	CheckInterval       string              `json:"check_interval"        yaml:"check_interval"`
	ProfitPercentage    decimal.Decimal     `json:"profit_percentage"     yaml:"profit_percentage"`
	MinProfitThreshold  decimal.Decimal     `json:"min_profit_threshold"  yaml:"min_profit_threshold"`
	MinRemainingBalance decimal.Decimal     `json:"min_remaining_balance" yaml:"min_remaining_balance"`
	MarginCheck         MarginCheckSettings `json:"margin_check"          yaml:"margin_check"`
	TestMode            bool                `json:"test_mode"             yaml:"test_mode"`
	Accounts            AccountsSettings    `json:"accounts"              yaml:"accounts"`
	WebPort             int                 `json:"web_port"              yaml:"web_port"`
}

// LoadSettings reads and validates the configuration file at path. Files
// ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		path = DefaultSettingsPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	s := &Settings{
		MinRemainingBalance: defaultMinRemainingBalance,
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, s)
	default:
		err = json.Unmarshal(data, s)
	}
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks every field that would make the sweep unsafe or meaningless.
func (s *Settings) Validate() error {
	if _, err := ParseInterval(s.CheckInterval); err != nil {
		return err
	}

	if err := domain.ValidatePercentage(s.ProfitPercentage); err != nil {
		return err
	}

	if err := domain.ValidateNonNegative("min_profit_threshold", s.MinProfitThreshold); err != nil {
		return err
	}

	if err := domain.ValidateNonNegative("min_remaining_balance", s.MinRemainingBalance); err != nil {
		return err
	}

	if s.MarginCheck.Enabled {
		if err := domain.ValidateMarginLimit(s.MarginCheck.MaxMarginUsedPercent); err != nil {
			return err
		}
	}

	if err := domain.ValidateAccounts(s.MainAccount(), s.SubAccounts()); err != nil {
		return err
	}

	if !s.TestMode {
		for _, a := range s.AllAccounts() {
			if a.Credential.APIKey == "" || a.Credential.APISecret == "" {
				return fmt.Errorf("%w: account %s", ErrMissingCredential, a.UID)
			}
		}
	}

	return nil
}

// Interval returns the parsed check interval. Call only on validated settings.
func (s *Settings) Interval() time.Duration {
	d, _ := ParseInterval(s.CheckInterval)
	return d
}

// MainAccount returns the sweep destination.
func (s *Settings) MainAccount() domain.Account {
	return toAccount(s.Accounts.MainAccount, domain.RoleMain)
}

// SubAccounts returns the swept accounts in configuration order.
func (s *Settings) SubAccounts() []domain.Account {
	subs := make([]domain.Account, 0, len(s.Accounts.SubAccounts))
	for _, a := range s.Accounts.SubAccounts {
		subs = append(subs, toAccount(a, domain.RoleSub))
	}
	return subs
}

// AllAccounts returns the main account followed by the sub-accounts.
func (s *Settings) AllAccounts() []domain.Account {
	return append([]domain.Account{s.MainAccount()}, s.SubAccounts()...)
}

// MarginCheckActive reports whether the margin guard runs. It never runs in
// test mode because the simulated gateway has no positions.
func (s *Settings) MarginCheckActive() bool {
	return s.MarginCheck.Enabled && !s.TestMode
}

func toAccount(a AccountSettings, role domain.AccountRole) domain.Account {
	return domain.Account{
		UID:  strings.TrimSpace(a.UID),
		Role: role,
		Credential: domain.Credential{
			APIKey:    a.APIKey,
			APISecret: a.APISecret,
		},
	}
}

// ParseInterval converts "Nm" or "Nh" into a duration. Zero is rejected.
func ParseInterval(s string) (time.Duration, error) {
	if !intervalRegex.MatchString(s) {
		return 0, fmt.Errorf("%w, got %q", ErrInvalidInterval, s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidInterval, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w, got %q", ErrInvalidInterval, s)
	}

	unit := time.Minute
	if s[len(s)-1] == 'h' {
		unit = time.Hour
	}

	return time.Duration(n) * unit, nil
}
