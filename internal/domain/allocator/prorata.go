// Package allocator splits an amount across weighted parts to the cent.
//
// The pro-rata allocator distributes a total proportionally to each part's
// weight and then moves any rounding residue onto the largest part, so the
// parts always add back up to the total:
//
//	multiplier = total / sum(weights)
//	part       = round(weight * multiplier, 2)
package allocator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// maxResidue bounds the rounding correction. Anything larger means the
// inputs were not what the caller thought.
var maxResidue = decimal.NewFromFloat(0.10)

// Part is one recipient of an allocation.
type Part struct {
	ID     int64
	Weight float64
}

// Allocation is the amount assigned to one part.
type Allocation struct {
	ID     int64
	Weight float64
	Amount decimal.Decimal
}

// Result contains the allocation results.
type Result struct {
	Multiplier     decimal.Decimal
	Allocations    []Allocation
	TotalAllocated decimal.Decimal
}

// Allocate distributes total across parts proportionally to their weights.
// Returns an error if parts is empty or any weight is negative. A negative
// total (a credit) is allocated the same way.
func Allocate(parts []Part, total decimal.Decimal) (*Result, error) {
	if len(parts) == 0 {
		return nil, errors.New("no parts to allocate")
	}

	var totalWeight decimal.Decimal
	for _, p := range parts {
		if p.Weight < 0 {
			return nil, errors.New("weight cannot be negative")
		}
		totalWeight = totalWeight.Add(decimal.NewFromFloat(p.Weight))
	}

	allocations := make([]Allocation, len(parts))
	if totalWeight.IsZero() {
		// Nothing carries weight - distribute nothing
		for i, p := range parts {
			allocations[i] = Allocation{ID: p.ID, Weight: p.Weight, Amount: decimal.Zero}
		}
		return &Result{Allocations: allocations}, nil
	}

	multiplier := total.Div(totalWeight)
	totalAllocated := decimal.Zero
	for i, p := range parts {
		amount := decimal.NewFromFloat(p.Weight).Mul(multiplier).Round(2)
		allocations[i] = Allocation{ID: p.ID, Weight: p.Weight, Amount: amount}
		totalAllocated = totalAllocated.Add(amount)
	}

	// Fix rounding - adjust the largest part if the total is off
	diff := total.Round(2).Sub(totalAllocated)
	if !diff.IsZero() && diff.Abs().LessThan(maxResidue) {
		maxIdx := 0
		for i, a := range allocations {
			if a.Amount.Abs().GreaterThan(allocations[maxIdx].Amount.Abs()) {
				maxIdx = i
			}
		}
		allocations[maxIdx].Amount = allocations[maxIdx].Amount.Add(diff)
		totalAllocated = totalAllocated.Add(diff)
	}

	return &Result{
		Multiplier:     multiplier,
		Allocations:    allocations,
		TotalAllocated: totalAllocated,
	}, nil
}
