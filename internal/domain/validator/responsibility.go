// Package validator checks user-supplied ledger changes before they are
// written.
//
// Responsibility percentages are the main invariant. A household either
// splits bills so the percentages add up to 100, or has not configured
// sharing yet and every percentage is 0:
//
//	sum(percent) ≈ 100   (within 0.01)
//	sum(percent) == 0    (all zero)
package validator

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
)

// PercentTolerance is how far the percentage total may drift from 100.
const PercentTolerance = 0.01

// ValidationError reports a rejected manual update.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateResponsibilities checks a complete payee → percent assignment.
func ValidateResponsibilities(percents map[int64]float64) error {
	if len(percents) == 0 {
		return &ValidationError{Field: "responsibilities", Reason: "no payees given"}
	}

	ids := make([]int64, 0, len(percents))
	for id := range percents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sum float64
	allZero := true
	for _, id := range ids {
		pct := percents[id]
		if math.IsNaN(pct) || pct < 0 || pct > 100 {
			return &ValidationError{
				Field:  "responsibility_percent",
				Reason: fmt.Sprintf("payee %d: %.2f is outside 0-100", id, pct),
			}
		}
		if pct != 0 {
			allZero = false
		}
		sum += pct
	}

	if allZero {
		return nil
	}
	if math.Abs(sum-100) > PercentTolerance {
		return &ValidationError{
			Field:  "responsibility_percent",
			Reason: fmt.Sprintf("percentages sum to %.2f, must be 100 or all zero", sum),
		}
	}
	return nil
}

// ValidatePayeeName rejects empty or overlong names.
func ValidatePayeeName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if len(name) > 100 {
		return &ValidationError{Field: "name", Reason: "longer than 100 characters"}
	}
	return nil
}

// ValidateCardLastFour requires exactly four digits.
func ValidateCardLastFour(lastFour string) error {
	if len(lastFour) != 4 {
		return &ValidationError{Field: "last_four", Reason: "must be exactly 4 digits"}
	}
	for _, r := range lastFour {
		if !unicode.IsDigit(r) {
			return &ValidationError{Field: "last_four", Reason: "must be exactly 4 digits"}
		}
	}
	return nil
}

// ValidatePaymentOrder requires a non-empty list without duplicates.
func ValidatePaymentOrder(paymentIDs []int64) error {
	if len(paymentIDs) == 0 {
		return &ValidationError{Field: "payment_ids", Reason: "required"}
	}
	seen := make(map[int64]bool, len(paymentIDs))
	for _, id := range paymentIDs {
		if seen[id] {
			return &ValidationError{Field: "payment_ids", Reason: fmt.Sprintf("payment %d listed twice", id)}
		}
		seen[id] = true
	}
	return nil
}
