package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/domain/money"
)

// EntryType discriminates ledger entries.
type EntryType string

const (
	EntryBill    EntryType = "bill"
	EntryPayment EntryType = "payment"
)

// Snapshot is one full scrape of the utility account.
type Snapshot struct {
	AccountBalance string  `json:"account_balance"`
	Ledger         []Entry `json:"ledger"`
}

// UnmarshalJSON accepts both the flat shape and the scraper's nested
// {"bill_history": {"ledger": [...]}} shape.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw struct {
		AccountBalance Text    `json:"account_balance"`
		Ledger         []Entry `json:"ledger"`
		BillHistory    *struct {
			Ledger []Entry `json:"ledger"`
		} `json:"bill_history"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.AccountBalance = string(raw.AccountBalance)
	s.Ledger = raw.Ledger
	if len(s.Ledger) == 0 && raw.BillHistory != nil {
		s.Ledger = raw.BillHistory.Ledger
	}
	return nil
}

// Text is a JSON string that also tolerates numbers and null.
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(data)
	return nil
}

// Entry is a raw ledger line as scraped. Only Type and BillCycleDate are
// required; Classify validates it into a BillEntry or PaymentEntry.
type Entry struct {
	Type          Text `json:"type"`
	BillCycleDate Text `json:"bill_cycle_date"`
	BillDate      Text `json:"bill_date,omitempty"`
	MonthRange    Text `json:"month_range,omitempty"`
	BillTotal     Text `json:"bill_total,omitempty"`
	Description   Text `json:"description,omitempty"`
	Amount        Text `json:"amount,omitempty"`
	PaymentDate   Text `json:"payment_date,omitempty"`
}

// BillEntry is a validated bill line.
type BillEntry struct {
	CycleDate  time.Time
	IssueDate  string
	MonthRange string
	TotalRaw   string
	Total      *float64
}

// PaymentEntry is a validated payment line.
type PaymentEntry struct {
	Date        time.Time
	PaidOn      string
	Description string
	AmountRaw   string
	Amount      *float64
}

// SkippedEntryError explains why an entry was not ingested.
type SkippedEntryError struct {
	Index  int
	Field  string
	Reason string
}

func (e *SkippedEntryError) Error() string {
	return fmt.Sprintf("entry %d: %s: %s", e.Index, e.Field, e.Reason)
}

// Classify validates the entry at position index. Exactly one of the two
// returned entries is non-nil when err is nil.
func (e Entry) Classify(index int) (*BillEntry, *PaymentEntry, error) {
	typ := EntryType(strings.ToLower(strings.TrimSpace(string(e.Type))))
	if typ == "" {
		return nil, nil, &SkippedEntryError{Index: index, Field: "type", Reason: "missing"}
	}
	if typ != EntryBill && typ != EntryPayment {
		return nil, nil, &SkippedEntryError{Index: index, Field: "type", Reason: fmt.Sprintf("unknown type %q", typ)}
	}

	rawDate := strings.TrimSpace(string(e.BillCycleDate))
	if rawDate == "" {
		return nil, nil, &SkippedEntryError{Index: index, Field: "bill_cycle_date", Reason: "missing"}
	}
	date, err := ParseDate(rawDate)
	if err != nil {
		return nil, nil, &SkippedEntryError{Index: index, Field: "bill_cycle_date", Reason: err.Error()}
	}

	if typ == EntryBill {
		total := strings.TrimSpace(string(e.BillTotal))
		return &BillEntry{
			CycleDate:  date,
			IssueDate:  normalizeOptionalDate(string(e.BillDate)),
			MonthRange: strings.TrimSpace(string(e.MonthRange)),
			TotalRaw:   total,
			Total:      money.Parse(total),
		}, nil, nil
	}

	amount := strings.TrimSpace(string(e.Amount))
	return nil, &PaymentEntry{
		Date:        date,
		PaidOn:      normalizeOptionalDate(string(e.PaymentDate)),
		Description: collapseSpace(string(e.Description)),
		AmountRaw:   amount,
		Amount:      money.Parse(amount),
	}, nil
}

// normalizeOptionalDate converts a parseable date to DateLayout and keeps
// anything else as trimmed text.
func normalizeOptionalDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if t, err := ParseDate(raw); err == nil {
		return t.Format(DateLayout)
	}
	return raw
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
