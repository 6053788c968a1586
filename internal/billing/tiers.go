/**
 * @description
 * Tier resolution for balance-based interest rates. Pure functions: no I/O,
 * no clock, deterministic for a given tier list and balance.
 */
package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rroihans/dompetku-sub003/internal/domain"
)

// TierMatch is the outcome of resolving a balance against a tier list.
// Matched is false when the balance falls below the first tier's minimum;
// that is a documented edge case resolved as rate zero, not an error.
type TierMatch struct {
	Matched bool
	Tier    domain.InterestTier
	Rate    decimal.Decimal
}

// ValidateTiers rejects tier lists the resolver would find ambiguous: empty
// lists, lists not sorted ascending by Min, overlapping ranges, inverted
// ranges, or an unbounded tier anywhere but last. Tier writers validate at
// save time; the resolver revalidates defensively at accrual time.
func ValidateTiers(tiers []domain.InterestTier) error {
	if len(tiers) == 0 {
		return &domain.ConfigurationError{Reason: "tier list is empty"}
	}
	for i, t := range tiers {
		if t.AnnualRatePercent.IsNegative() {
			return &domain.ConfigurationError{Reason: fmt.Sprintf("tier %d has a negative rate", i)}
		}
		if t.Max != nil && *t.Max < t.Min {
			return &domain.ConfigurationError{Reason: fmt.Sprintf("tier %d has max below min", i)}
		}
		if t.Max == nil && i != len(tiers)-1 {
			return &domain.ConfigurationError{Reason: fmt.Sprintf("tier %d is unbounded but not last", i)}
		}
		if i == 0 {
			continue
		}
		prev := tiers[i-1]
		if t.Min <= prev.Min {
			return &domain.ConfigurationError{Reason: fmt.Sprintf("tiers %d and %d are not sorted ascending by min", i-1, i)}
		}
		if prev.Max == nil || *prev.Max >= t.Min {
			return &domain.ConfigurationError{Reason: fmt.Sprintf("tiers %d and %d overlap", i-1, i)}
		}
	}
	return nil
}

// ResolveTier returns the single tier whose inclusive [min, max] range
// contains balance. A balance below the first tier's minimum (including a
// negative balance against tiers starting at zero) resolves to an unmatched
// zero rate. A malformed tier list fails with ConfigurationError rather than
// silently picking an arbitrary tier.
func ResolveTier(tiers []domain.InterestTier, balance int64) (TierMatch, error) {
	if err := ValidateTiers(tiers); err != nil {
		return TierMatch{}, err
	}
	for _, t := range tiers {
		if t.Contains(balance) {
			return TierMatch{Matched: true, Tier: t, Rate: t.AnnualRatePercent}, nil
		}
	}
	// Below the first tier's min, or inside a gap between tiers.
	return TierMatch{Matched: false, Rate: decimal.Zero}, nil
}
