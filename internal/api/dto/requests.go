package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
)

// ReassignPaymentRequest moves a payment to a bill. A null bill_id orphans it.
type ReassignPaymentRequest struct {
	BillID *int64 `json:"bill_id"`
}

// PaymentOrderRequest sets the display order of a bill's payments.
type PaymentOrderRequest struct {
	PaymentIDs []int64 `json:"payment_ids" binding:"required"`
}

// AttributePaymentRequest confirms a payee for a payment.
type AttributePaymentRequest struct {
	PayeeID int64 `json:"payee_id" binding:"required"`
}

// CreatePayeeRequest registers a household member.
type CreatePayeeRequest struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// ResponsibilityItem is one payee's share of every bill.
type ResponsibilityItem struct {
	PayeeID int64   `json:"payee_id" binding:"required"`
	Percent float64 `json:"percent"`
}

// ResponsibilitiesRequest updates payee shares. Payees left out keep their
// stored percentage.
type ResponsibilitiesRequest struct {
	Responsibilities []ResponsibilityItem `json:"responsibilities" binding:"required"`
}

// ToMap converts the request to payee id -> percent. A payee listed twice is
// rejected.
func (r ResponsibilitiesRequest) ToMap() (map[int64]float64, error) {
	out := make(map[int64]float64, len(r.Responsibilities))
	for _, item := range r.Responsibilities {
		if _, dup := out[item.PayeeID]; dup {
			return nil, fmt.Errorf("payee %d listed more than once", item.PayeeID)
		}
		out[item.PayeeID] = item.Percent
	}
	return out, nil
}

// AddCardRequest registers a card with a payee.
type AddCardRequest struct {
	LastFour string `json:"last_four"`
	Label    string `json:"label"`
}

// CardHintRequest is one (card, amount) pair taken from a payment email.
type CardHintRequest struct {
	CardLastFour string  `json:"card_last_four"`
	Amount       float64 `json:"amount"`
	Date         string  `json:"date,omitempty"`
}

// CardHintsRequest submits a batch of card hints.
type CardHintsRequest struct {
	Hints []CardHintRequest `json:"hints" binding:"required"`
}

// ToHints converts the request to domain hints. Dates use YYYY-MM-DD.
func (r CardHintsRequest) ToHints() ([]ledger.CardHint, error) {
	hints := make([]ledger.CardHint, 0, len(r.Hints))
	for i, h := range r.Hints {
		hint := ledger.CardHint{CardLastFour: strings.TrimSpace(h.CardLastFour), Amount: h.Amount}
		if h.Date != "" {
			t, err := time.Parse(ledger.DateLayout, h.Date)
			if err != nil {
				return nil, fmt.Errorf("hint %d: date must be YYYY-MM-DD", i)
			}
			hint.Date = t
		}
		hints = append(hints, hint)
	}
	return hints, nil
}

// SchedulerRequest changes the background intervals. Values are Go
// durations such as "15m"; "0" disables the loop.
type SchedulerRequest struct {
	ResyncInterval string `json:"resync_interval"`
	SweepInterval  string `json:"sweep_interval"`
}

// Durations parses both intervals.
func (r SchedulerRequest) Durations() (resync, sweep time.Duration, err error) {
	if resync, err = time.ParseDuration(r.ResyncInterval); err != nil {
		return 0, 0, fmt.Errorf("resync_interval: %w", err)
	}
	if sweep, err = time.ParseDuration(r.SweepInterval); err != nil {
		return 0, 0, fmt.Errorf("sweep_interval: %w", err)
	}
	return resync, sweep, nil
}
