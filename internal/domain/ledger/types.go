// Package ledger defines the bills, payments and payees that make up a
// household's utility ledger, and the snapshot format the scraper delivers.
package ledger

import "time"

// DateLayout is the canonical storage and comparison format for cycle dates.
const DateLayout = "2006-01-02"

// AttributionStatus tracks how far a payment is through payee attribution.
type AttributionStatus string

const (
	StatusPending    AttributionStatus = "pending"
	StatusUnverified AttributionStatus = "unverified"
	StatusConfirmed  AttributionStatus = "confirmed"
)

// Valid reports whether s is a known status.
func (s AttributionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusUnverified, StatusConfirmed:
		return true
	}
	return false
}

// AttributionMethod records which rule produced a confirmed attribution.
type AttributionMethod string

const (
	MethodNone        AttributionMethod = ""
	MethodManual      AttributionMethod = "manual"
	MethodEmailCard   AttributionMethod = "email_card"
	MethodDefaultRule AttributionMethod = "default_rule"
	MethodAutoTimeout AttributionMethod = "auto_timeout"
)

// Bill is one billing cycle as reported by the utility. Identity is
// (CycleDate, MonthRange); MonthRange is "" when the statement has none.
type Bill struct {
	ID          int64      `json:"id"`
	CycleDate   string     `json:"cycle_date"`
	IssueDate   string     `json:"issue_date,omitempty"`
	MonthRange  string     `json:"month_range"`
	TotalRaw    string     `json:"total_raw"`
	Total       *float64   `json:"total"`
	FirstSeen   time.Time  `json:"first_seen"`
	LastSeen    time.Time  `json:"last_seen"`
	ScrapeCount int        `json:"scrape_count"`
	Payments    []*Payment `json:"payments,omitempty"`
}

// CycleTime parses CycleDate. The zero time is returned for bad data.
func (b *Bill) CycleTime() time.Time {
	t, _ := time.Parse(DateLayout, b.CycleDate)
	return t
}

// Attribution is the payee assignment state of a payment.
type Attribution struct {
	Status       AttributionStatus `json:"status"`
	PayeeID      *int64            `json:"payee_id"`
	Method       AttributionMethod `json:"method,omitempty"`
	CardLastFour string            `json:"card_last_four,omitempty"`
	AttributedAt *time.Time        `json:"attributed_at,omitempty"`
}

// Payment is a single payment toward the account. Identity is Hash.
type Payment struct {
	ID             int64       `json:"id"`
	BillID         *int64      `json:"bill_id"`
	Date           string      `json:"date"`
	PaidOn         string      `json:"paid_on,omitempty"`
	Description    string      `json:"description"`
	AmountRaw      string      `json:"amount_raw"`
	Amount         *float64    `json:"amount"`
	Hash           string      `json:"hash"`
	Attribution    Attribution `json:"attribution"`
	ManualBillLock bool        `json:"manual_bill_lock"`
	ManualOrder    *int        `json:"manual_order,omitempty"`
	PendingUntil   *time.Time  `json:"pending_until,omitempty"`
	FirstSeen      time.Time   `json:"first_seen"`
	LastSeen       time.Time   `json:"last_seen"`
	ScrapeCount    int         `json:"scrape_count"`
}

// IsOrphan reports whether the payment has no bill.
func (p *Payment) IsOrphan() bool {
	return p.BillID == nil
}

// AmountValue returns the parsed amount, zero when unparsable.
func (p *Payment) AmountValue() float64 {
	if p.Amount == nil {
		return 0
	}
	return *p.Amount
}

// PayeeUser is a member of the household who shares the bill.
type PayeeUser struct {
	ID                    int64      `json:"id"`
	Name                  string     `json:"name"`
	IsDefault             bool       `json:"is_default"`
	ResponsibilityPercent float64    `json:"responsibility_percent"`
	CreatedAt             time.Time  `json:"created_at"`
	Cards                 []UserCard `json:"cards"`
}

// UserCard maps the last four digits of a payment card to its owner.
type UserCard struct {
	ID       int64     `json:"id"`
	PayeeID  int64     `json:"payee_id"`
	LastFour string    `json:"last_four"`
	Label    string    `json:"label,omitempty"`
	AddedAt  time.Time `json:"added_at"`
}

// BalanceSnapshot is one observed account balance. A row is only written
// when the balance text differs from the previous one. Changed is false for
// the first row, which has nothing to differ from.
type BalanceSnapshot struct {
	ID         int64     `json:"id"`
	BalanceRaw string    `json:"balance_raw"`
	Balance    *float64  `json:"balance"`
	Changed    bool      `json:"changed"`
	RecordedAt time.Time `json:"recorded_at"`
}

// CardHint is an externally sourced (card last four, amount) pair, usually
// extracted from a payment confirmation email.
type CardHint struct {
	CardLastFour string    `json:"card_last_four"`
	Amount       float64   `json:"amount"`
	Date         time.Time `json:"date,omitempty"`
}
