package matcher

import (
	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
)

// Config holds matcher configuration
type Config struct {
	AmountTolerance float64 // Default: 0.01 (1 cent)
	DateTolerance   int     // Days tolerance, 0 disables the date check
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		AmountTolerance: 0.01,
		DateTolerance:   0,
	}
}

// MatchResult pairs a card hint with the payment it explains.
type MatchResult struct {
	Payment    *ledger.Payment
	Hint       ledger.CardHint
	HintIndex  int
	DateDiff   float64 // Days difference, 0 when either side has no date
	AmountDiff float64 // Absolute amount difference
}
