// Package assigner maps a payment date to the billing cycle it pays.
//
// Bills are ordered by cycle date and each bill owns the half-open interval
// that starts at its own cycle date and ends at the next bill's:
//
//	B[i].cycle <= D < B[i+1].cycle  ->  B[i]
//	D >= B[last].cycle              ->  B[last]
//	D <  B[0].cycle                 ->  B[0]
//	no bills                        ->  orphan
package assigner

import (
	"sort"
	"time"
)

// BillRef is the minimal bill data the resolver needs.
type BillRef struct {
	ID        int64
	CycleDate time.Time
}

// Resolve returns the bill a payment dated date belongs to. ok is false when
// there are no bills, in which case the payment stays an orphan.
// bills does not need to be sorted; it is not modified.
func Resolve(bills []BillRef, date time.Time) (billID int64, ok bool) {
	if len(bills) == 0 {
		return 0, false
	}

	sorted := make([]BillRef, len(bills))
	copy(sorted, bills)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CycleDate.Before(sorted[j].CycleDate)
	})

	return resolveSorted(sorted, date), true
}

// Resolver caches the sorted bill set for resolving many dates.
type Resolver struct {
	bills []BillRef
}

// NewResolver sorts a copy of bills once.
func NewResolver(bills []BillRef) *Resolver {
	sorted := make([]BillRef, len(bills))
	copy(sorted, bills)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CycleDate.Before(sorted[j].CycleDate)
	})
	return &Resolver{bills: sorted}
}

// Resolve behaves like the package-level Resolve.
func (r *Resolver) Resolve(date time.Time) (int64, bool) {
	if len(r.bills) == 0 {
		return 0, false
	}
	return resolveSorted(r.bills, date), true
}

// Len returns the number of bills known to the resolver.
func (r *Resolver) Len() int {
	return len(r.bills)
}

func resolveSorted(sorted []BillRef, date time.Time) int64 {
	// first bill whose cycle date is strictly after date
	idx := sort.Search(len(sorted), func(i int) bool {
		return sorted[i].CycleDate.After(date)
	})
	if idx == 0 {
		return sorted[0].ID
	}
	return sorted[idx-1].ID
}
