package ledger

import "sort"

// SortPayments orders a bill's payments for display: manual order first
// (ascending), then first sighting, then ID. Every view uses this.
func SortPayments(payments []*Payment) {
	sort.SliceStable(payments, func(i, j int) bool {
		a, b := payments[i], payments[j]
		switch {
		case a.ManualOrder != nil && b.ManualOrder != nil:
			if *a.ManualOrder != *b.ManualOrder {
				return *a.ManualOrder < *b.ManualOrder
			}
		case a.ManualOrder != nil:
			return true
		case b.ManualOrder != nil:
			return false
		}
		if !a.FirstSeen.Equal(b.FirstSeen) {
			return a.FirstSeen.Before(b.FirstSeen)
		}
		return a.ID < b.ID
	})
}

// SortBills orders bills oldest cycle first.
func SortBills(bills []*Bill) {
	sort.SliceStable(bills, func(i, j int) bool {
		if bills[i].CycleDate != bills[j].CycleDate {
			return bills[i].CycleDate < bills[j].CycleDate
		}
		return bills[i].ID < bills[j].ID
	})
}
