package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrInvalidAccountUID  = errors.New("invalid account uid")
	ErrInvalidPercentage  = errors.New("invalid profit percentage")
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrDuplicateAccount   = errors.New("duplicate account uid")
	ErrNoSubAccounts      = errors.New("no sub accounts configured")
	ErrInvalidMarginLimit = errors.New("invalid margin limit")
)

const MaxAccountUIDLength = 64

var uidRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var hundred = decimal.NewFromInt(100)

// ValidateAccountUID validates a venue member id.
func ValidateAccountUID(uid string) error {
	uid = strings.TrimSpace(uid)

	if uid == "" {
		return fmt.Errorf("%w: uid cannot be empty", ErrInvalidAccountUID)
	}

	if len(uid) > MaxAccountUIDLength {
		return fmt.Errorf("%w: uid exceeds %d characters", ErrInvalidAccountUID, MaxAccountUIDLength)
	}

	if !uidRegex.MatchString(uid) {
		return fmt.Errorf("%w: %q contains forbidden characters", ErrInvalidAccountUID, uid)
	}

	return nil
}

// ValidatePercentage checks that p lies in [0, 100].
func ValidatePercentage(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return fmt.Errorf("%w: %s is outside 0-100", ErrInvalidPercentage, p)
	}
	return nil
}

// ValidateNonNegative checks a configured amount.
func ValidateNonNegative(name string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s is %s", ErrNegativeAmount, name, amount)
	}
	return nil
}

// ValidateMarginLimit checks that a maximum margin usage lies in (0, 100].
func ValidateMarginLimit(p decimal.Decimal) error {
	if !p.IsPositive() || p.GreaterThan(hundred) {
		return fmt.Errorf("%w: %s is outside (0, 100]", ErrInvalidMarginLimit, p)
	}
	return nil
}

// ValidateAccounts checks the main account and sub-accounts together.
func ValidateAccounts(main Account, subs []Account) error {
	if err := ValidateAccountUID(main.UID); err != nil {
		return fmt.Errorf("main account: %w", err)
	}

	if len(subs) == 0 {
		return ErrNoSubAccounts
	}

	seen := map[string]bool{main.UID: true}
	for _, s := range subs {
		if err := ValidateAccountUID(s.UID); err != nil {
			return fmt.Errorf("sub account: %w", err)
		}
		if seen[s.UID] {
			return fmt.Errorf("%w: %s", ErrDuplicateAccount, s.UID)
		}
		seen[s.UID] = true
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
