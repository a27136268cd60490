// Package matcher pairs card hints from payment confirmation emails with
// ledger payments.
//
// The matcher uses strict matching criteria:
//   - Amount must match within 1 cent (configurable)
//   - Date must be within tolerance when a tolerance is configured
//   - A hint explains at most one payment
//
// Example usage:
//
//	m := matcher.NewMatcher(matcher.DefaultConfig())
//	results := m.MatchAll(payments, hints)
//	for _, r := range results {
//		// r.Hint.CardLastFour paid r.Payment
//	}
package matcher

import (
	"math"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
)

// Matcher matches card hints with payments
type Matcher struct {
	config Config
}

// NewMatcher creates a new matcher with the given config
func NewMatcher(config Config) *Matcher {
	return &Matcher{
		config: config,
	}
}

// FindMatch finds the best unused hint for a payment.
// Returns nil if no suitable match found.
func (m *Matcher) FindMatch(
	payment *ledger.Payment,
	hints []ledger.CardHint,
	usedHints map[int]bool,
) *MatchResult {
	if payment.Amount == nil {
		return nil
	}

	paymentAmount := math.Abs(*payment.Amount)
	paymentDate := paymentTime(payment)

	bestIndex := -1
	bestScore := math.MaxFloat64 // Lower is better
	var bestAmountDiff float64

	for i, hint := range hints {
		if usedHints[i] {
			continue
		}

		amountDiff := math.Abs(paymentAmount - math.Abs(hint.Amount))

		// Add small epsilon to handle floating point precision issues
		const epsilon = 0.0000001
		if amountDiff > m.config.AmountTolerance+epsilon {
			continue
		}

		dateDiff := 0.0
		if !paymentDate.IsZero() && !hint.Date.IsZero() {
			dateDiff = math.Abs(hint.Date.Sub(paymentDate).Hours() / 24)
		}
		if m.config.DateTolerance > 0 && dateDiff > float64(m.config.DateTolerance) {
			continue
		}

		// Closest date first, then closest amount
		score := dateDiff + amountDiff
		if score < bestScore {
			bestIndex = i
			bestScore = score
			bestAmountDiff = amountDiff
		}
	}

	if bestIndex < 0 {
		return nil
	}

	dateDiff := 0.0
	if !paymentDate.IsZero() && !hints[bestIndex].Date.IsZero() {
		dateDiff = math.Abs(hints[bestIndex].Date.Sub(paymentDate).Hours() / 24)
	}

	return &MatchResult{
		Payment:    payment,
		Hint:       hints[bestIndex],
		HintIndex:  bestIndex,
		DateDiff:   dateDiff,
		AmountDiff: bestAmountDiff,
	}
}

// MatchAll pairs every payment with at most one hint. Payments are taken in
// the order given; a hint used by an earlier payment is not offered again.
func (m *Matcher) MatchAll(payments []*ledger.Payment, hints []ledger.CardHint) []*MatchResult {
	used := make(map[int]bool, len(hints))
	results := make([]*MatchResult, 0)

	for _, p := range payments {
		match := m.FindMatch(p, hints, used)
		if match == nil {
			continue
		}
		used[match.HintIndex] = true
		results = append(results, match)
	}

	return results
}

// paymentTime prefers the actual payment date over the cycle date.
func paymentTime(p *ledger.Payment) time.Time {
	for _, raw := range []string{p.PaidOn, p.Date} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(ledger.DateLayout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}
