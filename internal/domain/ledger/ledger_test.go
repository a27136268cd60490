package ledger

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 1, 23, 0, 0, 0, 0, time.UTC)

	for _, raw := range []string{"2026-01-23", "1/23/2026", "01/23/2026", "Jan 23, 2026", "January 23, 2026", "  Jan   23,  2026 "} {
		t.Run(raw, func(t *testing.T) {
			got, err := ParseDate(raw)
			require.NoError(t, err)
			assert.True(t, want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseDate("sometime in January")
	assert.Error(t, err)
}

func TestSnapshot_UnmarshalFlatAndNested(t *testing.T) {
	flat := `{"account_balance":"$120.00","ledger":[{"type":"bill","bill_cycle_date":"1/1/2025","bill_total":"$100.00"}]}`
	nested := `{"account_balance":"$120.00","bill_history":{"ledger":[{"type":"bill","bill_cycle_date":"1/1/2025","bill_total":100}]}}`

	var a, b Snapshot
	require.NoError(t, json.Unmarshal([]byte(flat), &a))
	require.NoError(t, json.Unmarshal([]byte(nested), &b))

	assert.Equal(t, "$120.00", a.AccountBalance)
	require.Len(t, a.Ledger, 1)
	require.Len(t, b.Ledger, 1)
	assert.Equal(t, Text("$100.00"), a.Ledger[0].BillTotal)
	assert.Equal(t, Text("100"), b.Ledger[0].BillTotal)
}

func TestEntry_Classify(t *testing.T) {
	t.Run("bill", func(t *testing.T) {
		bill, pay, err := Entry{
			Type:          "bill",
			BillCycleDate: "Jan 22, 2026",
			BillDate:      "1/25/2026",
			MonthRange:    " Dec - Jan ",
			BillTotal:     "$1,204.10",
		}.Classify(0)
		require.NoError(t, err)
		assert.Nil(t, pay)
		require.NotNil(t, bill)
		assert.Equal(t, "2026-01-22", bill.CycleDate.Format(DateLayout))
		assert.Equal(t, "2026-01-25", bill.IssueDate)
		assert.Equal(t, "Dec - Jan", bill.MonthRange)
		require.NotNil(t, bill.Total)
		assert.InDelta(t, 1204.10, *bill.Total, 0.001)
	})

	t.Run("payment with unparsable amount is kept", func(t *testing.T) {
		bill, pay, err := Entry{Type: "Payment", BillCycleDate: "2025-02-01", Amount: "pending", Description: "  Online   payment "}.Classify(3)
		require.NoError(t, err)
		assert.Nil(t, bill)
		require.NotNil(t, pay)
		assert.Nil(t, pay.Amount)
		assert.Equal(t, "Online payment", pay.Description)
	})

	t.Run("missing date is skipped", func(t *testing.T) {
		_, _, err := Entry{Type: "payment", Amount: "10"}.Classify(4)
		var skipped *SkippedEntryError
		require.True(t, errors.As(err, &skipped))
		assert.Equal(t, 4, skipped.Index)
		assert.Equal(t, "bill_cycle_date", skipped.Field)
	})

	t.Run("unknown type is skipped", func(t *testing.T) {
		_, _, err := Entry{Type: "adjustment", BillCycleDate: "2025-02-01"}.Classify(0)
		var skipped *SkippedEntryError
		require.True(t, errors.As(err, &skipped))
		assert.Equal(t, "type", skipped.Field)
	})

	t.Run("bad date is skipped", func(t *testing.T) {
		_, _, err := Entry{Type: "bill", BillCycleDate: "soon"}.Classify(0)
		assert.Error(t, err)
	})
}

func TestPaymentHash(t *testing.T) {
	date := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	p := &PaymentEntry{Date: date, AmountRaw: "$150.00", Description: "Online Payment"}

	same := &PaymentEntry{Date: date, AmountRaw: "150", Description: "online  payment"}
	assert.Equal(t, PaymentHash(p, 0), PaymentHash(same, 0), "normalization makes formatting irrelevant")

	assert.NotEqual(t, PaymentHash(p, 0), PaymentHash(p, 1))

	other := &PaymentEntry{Date: date.AddDate(0, 0, 1), AmountRaw: "150", Description: "Online Payment"}
	assert.NotEqual(t, PaymentHash(p, 0), PaymentHash(other, 0))
	assert.Len(t, PaymentHash(p, 0), 64)
}

func TestOccurrenceCounter(t *testing.T) {
	date := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	c := NewOccurrenceCounter()

	a := &PaymentEntry{Date: date, AmountRaw: "50.00", Description: "Payment"}
	b := &PaymentEntry{Date: date, AmountRaw: "$50", Description: "payment"}
	other := &PaymentEntry{Date: date, AmountRaw: "25.00", Description: "Payment"}

	assert.Equal(t, 0, c.Next(a))
	assert.Equal(t, 1, c.Next(b))
	assert.Equal(t, 0, c.Next(other))
}

func TestSortPayments(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	one, two := 1, 2
	payments := []*Payment{
		{ID: 1, FirstSeen: base.Add(time.Hour)},
		{ID: 2, FirstSeen: base},
		{ID: 3, FirstSeen: base.Add(2 * time.Hour), ManualOrder: &two},
		{ID: 4, FirstSeen: base.Add(3 * time.Hour), ManualOrder: &one},
		{ID: 5, FirstSeen: base},
	}

	SortPayments(payments)

	var ids []int64
	for _, p := range payments {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []int64{4, 3, 2, 5, 1}, ids)
}

func TestSortBills(t *testing.T) {
	bills := []*Bill{{ID: 1, CycleDate: "2025-03-01"}, {ID: 2, CycleDate: "2025-01-01"}, {ID: 3, CycleDate: "2025-02-01"}}
	SortBills(bills)
	assert.Equal(t, "2025-01-01", bills[0].CycleDate)
	assert.Equal(t, "2025-03-01", bills[2].CycleDate)
}
