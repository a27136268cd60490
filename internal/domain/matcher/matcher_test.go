package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
)

// Helper to create test payment
func makePayment(id int64, amount float64, date string) *ledger.Payment {
	return &ledger.Payment{
		ID:     id,
		Date:   date,
		Amount: &amount,
	}
}

func hint(card string, amount float64, date time.Time) ledger.CardHint {
	return ledger.CardHint{CardLastFour: card, Amount: amount, Date: date}
}

func TestMatcher_ExactMatch(t *testing.T) {
	// Arrange
	matcher := NewMatcher(DefaultConfig())
	payment := makePayment(1, 100.00, "2025-10-10")

	hints := []ledger.CardHint{
		hint("1111", 150.00, time.Time{}),
		hint("2222", 100.00, time.Time{}),
	}

	// Act
	result := matcher.FindMatch(payment, hints, map[int]bool{})

	// Assert
	require.NotNil(t, result)
	assert.Equal(t, "2222", result.Hint.CardLastFour)
	assert.Equal(t, 1, result.HintIndex)
	assert.InDelta(t, 0.0, result.AmountDiff, 0.001)
}

func TestMatcher_WithinOneCent(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())
	payment := makePayment(1, 100.00, "2025-10-10")

	result := matcher.FindMatch(payment, []ledger.CardHint{hint("1111", 100.01, time.Time{})}, nil)

	require.NotNil(t, result)
	assert.InDelta(t, 0.01, result.AmountDiff, 0.0001)
}

func TestMatcher_BeyondTolerance(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())
	payment := makePayment(1, 100.00, "2025-10-10")

	result := matcher.FindMatch(payment, []ledger.CardHint{hint("1111", 100.02, time.Time{})}, nil)

	assert.Nil(t, result)
}

func TestMatcher_SkipsUsedHints(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())
	payment := makePayment(1, 50.00, "2025-10-10")
	hints := []ledger.CardHint{hint("1111", 50, time.Time{})}

	assert.Nil(t, matcher.FindMatch(payment, hints, map[int]bool{0: true}))
}

func TestMatcher_UnparsableAmountNeverMatches(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())
	payment := &ledger.Payment{ID: 1, Date: "2025-10-10"}

	assert.Nil(t, matcher.FindMatch(payment, []ledger.CardHint{hint("1111", 0, time.Time{})}, nil))
}

func TestMatcher_DateTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DateTolerance = 5
	matcher := NewMatcher(cfg)

	payment := makePayment(1, 80.00, "2025-10-01")
	payment.PaidOn = "2025-10-10"

	far := hint("1111", 80, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	near := hint("2222", 80, time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC))

	result := matcher.FindMatch(payment, []ledger.CardHint{far, near}, nil)
	require.NotNil(t, result)
	assert.Equal(t, "2222", result.Hint.CardLastFour, "paid-on date is preferred over the cycle date")
	assert.InDelta(t, 2.0, result.DateDiff, 0.001)

	result = matcher.FindMatch(payment, []ledger.CardHint{far}, nil)
	assert.Nil(t, result)
}

func TestMatcher_PrefersClosestDate(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())
	payment := makePayment(1, 80.00, "2025-10-10")

	hints := []ledger.CardHint{
		hint("1111", 80, time.Date(2025, 10, 20, 0, 0, 0, 0, time.UTC)),
		hint("2222", 80, time.Date(2025, 10, 11, 0, 0, 0, 0, time.UTC)),
	}

	result := matcher.FindMatch(payment, hints, nil)
	require.NotNil(t, result)
	assert.Equal(t, "2222", result.Hint.CardLastFour)
}

func TestMatcher_MatchAll_EachHintOnce(t *testing.T) {
	matcher := NewMatcher(DefaultConfig())
	payments := []*ledger.Payment{
		makePayment(1, 75.00, "2025-10-01"),
		makePayment(2, 75.00, "2025-10-01"),
		makePayment(3, 20.00, "2025-10-01"),
	}
	hints := []ledger.CardHint{hint("1111", 75, time.Time{})}

	results := matcher.MatchAll(payments, hints)

	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].Payment.ID)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.01, cfg.AmountTolerance)
	assert.Equal(t, 0, cfg.DateTolerance)
}
