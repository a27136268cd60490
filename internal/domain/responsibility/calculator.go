// Package responsibility computes what each payee owes on each bill and how
// credits or debts roll forward from cycle to cycle.
//
// The calculation is a single pass over every bill, oldest cycle first:
//
//	share          = bill_total * percent / 100   (cents reconciled to the total)
//	paid           = sum(confirmed payments by payee on bill)
//	period_balance = paid - share
//	total_balance  = rollover + period_balance
//	rollover       = total_balance            (carried to the next bill)
//
// Nothing is cached. Every call recomputes from the full ledger, so the
// result is always consistent with the current bills and payments.
package responsibility

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/utility-ledger/internal/domain/allocator"
	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
	"github.com/eshaffer321/utility-ledger/internal/domain/money"
)

// Tolerance is the band within which a balance counts as settled.
const Tolerance = 0.01

var tolerance = decimal.NewFromFloat(Tolerance)

// BalanceStatus describes a payee's running balance.
type BalanceStatus string

const (
	BalanceCredit  BalanceStatus = "credit"
	BalanceOwes    BalanceStatus = "owes"
	BalanceSettled BalanceStatus = "settled"
)

// BillStatus describes how much of a bill has been paid by anyone.
type BillStatus string

const (
	BillPaid    BillStatus = "paid"
	BillPartial BillStatus = "partial"
	BillUnpaid  BillStatus = "unpaid"
)

// Input is the full ledger state the calculator needs.
type Input struct {
	Bills    []*ledger.Bill
	Payments []*ledger.Payment
	Payees   []*ledger.PayeeUser
}

// PayeeLine is one payee's position on one bill.
type PayeeLine struct {
	PayeeID               int64         `json:"payee_id"`
	Name                  string        `json:"name"`
	ResponsibilityPercent float64       `json:"responsibility_percent"`
	ShareOfBill           float64       `json:"share_of_bill"`
	AmountPaid            float64       `json:"amount_paid"`
	PeriodBalance         float64       `json:"period_balance"`
	PreviousRollover      float64       `json:"previous_rollover"`
	TotalBalance          float64       `json:"total_balance"`
	Status                BalanceStatus `json:"status"`
}

// BillSummary is the computed view of one bill.
type BillSummary struct {
	BillID     int64       `json:"bill_id"`
	CycleDate  string      `json:"cycle_date"`
	MonthRange string      `json:"month_range"`
	Total      float64     `json:"total"`
	TotalPaid  float64     `json:"total_paid"`
	Remaining  float64     `json:"remaining"`
	Status     BillStatus  `json:"status"`
	Payees     []PayeeLine `json:"payees"`
}

// PayeeBalance is a payee's rollover after the most recent bill.
type PayeeBalance struct {
	PayeeID int64         `json:"payee_id"`
	Name    string        `json:"name"`
	Balance float64       `json:"balance"`
	Status  BalanceStatus `json:"status"`
}

// Report is the calculator output.
type Report struct {
	Bills    []BillSummary  `json:"bills"`
	Payees   []PayeeBalance `json:"payees"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Calculate runs the full chronological pass. Unparsable bill totals and
// payment amounts count as zero and are listed in Report.Warnings.
func Calculate(in Input) *Report {
	report := &Report{
		Bills:  make([]BillSummary, 0, len(in.Bills)),
		Payees: make([]PayeeBalance, 0, len(in.Payees)),
	}

	bills := make([]*ledger.Bill, len(in.Bills))
	copy(bills, in.Bills)
	ledger.SortBills(bills)

	payees := make([]*ledger.PayeeUser, len(in.Payees))
	copy(payees, in.Payees)
	sort.SliceStable(payees, func(i, j int) bool { return payees[i].ID < payees[j].ID })

	byBill := make(map[int64][]*ledger.Payment)
	for _, p := range in.Payments {
		if p.BillID == nil {
			continue
		}
		byBill[*p.BillID] = append(byBill[*p.BillID], p)
		if p.Amount == nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("payment %d: unparsable amount %q counted as 0", p.ID, p.AmountRaw))
		}
	}

	rollover := make(map[int64]decimal.Decimal, len(payees))

	for _, bill := range bills {
		if bill.Total == nil {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("bill %d (%s): unparsable total %q counted as 0", bill.ID, bill.CycleDate, bill.TotalRaw))
		}
		total := money.FromPtr(bill.Total).Round(2)

		totalPaid := decimal.Zero
		paidBy := make(map[int64]decimal.Decimal)
		for _, p := range byBill[bill.ID] {
			amount := money.FromPtr(p.Amount)
			totalPaid = totalPaid.Add(amount)
			if p.Attribution.Status == ledger.StatusConfirmed && p.Attribution.PayeeID != nil {
				paidBy[*p.Attribution.PayeeID] = paidBy[*p.Attribution.PayeeID].Add(amount)
			}
		}

		summary := BillSummary{
			BillID:     bill.ID,
			CycleDate:  bill.CycleDate,
			MonthRange: bill.MonthRange,
			Total:      total.InexactFloat64(),
			TotalPaid:  totalPaid.Round(2).InexactFloat64(),
			Remaining:  total.Sub(totalPaid).Round(2).InexactFloat64(),
			Status:     billStatus(total, totalPaid),
			Payees:     make([]PayeeLine, 0, len(payees)),
		}

		shares := splitBill(total, payees)
		for _, payee := range payees {
			share := shares[payee.ID]
			paid := paidBy[payee.ID].Round(2)
			period := paid.Sub(share)
			previous := rollover[payee.ID]
			running := previous.Add(period)
			rollover[payee.ID] = running

			summary.Payees = append(summary.Payees, PayeeLine{
				PayeeID:               payee.ID,
				Name:                  payee.Name,
				ResponsibilityPercent: payee.ResponsibilityPercent,
				ShareOfBill:           share.InexactFloat64(),
				AmountPaid:            paid.InexactFloat64(),
				PeriodBalance:         period.InexactFloat64(),
				PreviousRollover:      previous.InexactFloat64(),
				TotalBalance:          running.InexactFloat64(),
				Status:                balanceStatus(running),
			})
		}

		report.Bills = append(report.Bills, summary)
	}

	for _, payee := range payees {
		balance := rollover[payee.ID]
		report.Payees = append(report.Payees, PayeeBalance{
			PayeeID: payee.ID,
			Name:    payee.Name,
			Balance: balance.InexactFloat64(),
			Status:  balanceStatus(balance),
		})
	}

	return report
}

// BillByID returns the summary for billID.
func (r *Report) BillByID(billID int64) (*BillSummary, bool) {
	for i := range r.Bills {
		if r.Bills[i].BillID == billID {
			return &r.Bills[i], true
		}
	}
	return nil, false
}

// splitBill applies each payee's percentage to total. The rounded shares
// always add up to total * sum(percent) / 100, so a fully assigned bill is
// split to the cent.
func splitBill(total decimal.Decimal, payees []*ledger.PayeeUser) map[int64]decimal.Decimal {
	shares := make(map[int64]decimal.Decimal, len(payees))
	if len(payees) == 0 {
		return shares
	}

	parts := make([]allocator.Part, 0, len(payees))
	assigned := decimal.Zero
	for _, payee := range payees {
		pct := payee.ResponsibilityPercent
		if pct < 0 {
			pct = 0
		}
		parts = append(parts, allocator.Part{ID: payee.ID, Weight: pct})
		assigned = assigned.Add(decimal.NewFromFloat(pct))
	}

	target := total.Mul(assigned).Div(decimal.NewFromInt(100))
	result, err := allocator.Allocate(parts, target)
	if err != nil {
		return shares
	}
	for _, a := range result.Allocations {
		shares[a.ID] = a.Amount
	}
	return shares
}

func balanceStatus(balance decimal.Decimal) BalanceStatus {
	switch {
	case balance.GreaterThan(tolerance):
		return BalanceCredit
	case balance.LessThan(tolerance.Neg()):
		return BalanceOwes
	default:
		return BalanceSettled
	}
}

// billStatus only reports paid for a bill with a positive total. A zero or
// unparsable total is never shown as settled.
func billStatus(total, paid decimal.Decimal) BillStatus {
	switch {
	case !total.GreaterThan(tolerance):
		return BillUnpaid
	case total.Sub(paid).LessThanOrEqual(tolerance):
		return BillPaid
	case paid.GreaterThan(tolerance):
		return BillPartial
	default:
		return BillUnpaid
	}
}
