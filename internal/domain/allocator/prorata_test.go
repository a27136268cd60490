package allocator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAllocate_EvenPercentages(t *testing.T) {
	parts := []Part{
		{ID: 1, Weight: 60},
		{ID: 2, Weight: 40},
	}

	result, err := Allocate(parts, dec("200.00"))
	require.NoError(t, err)

	assert.True(t, dec("120.00").Equal(result.Allocations[0].Amount), result.Allocations[0].Amount.String())
	assert.True(t, dec("80.00").Equal(result.Allocations[1].Amount))
	assert.True(t, dec("200.00").Equal(result.TotalAllocated))
}

func TestAllocate_ThreeWaySplitAddsUp(t *testing.T) {
	// $100 three ways cannot be split evenly to the cent
	parts := []Part{
		{ID: 1, Weight: 33.34},
		{ID: 2, Weight: 33.33},
		{ID: 3, Weight: 33.33},
	}

	result, err := Allocate(parts, dec("100.00"))
	require.NoError(t, err)

	sum := decimal.Zero
	for _, a := range result.Allocations {
		sum = sum.Add(a.Amount)
	}
	assert.True(t, dec("100.00").Equal(sum), sum.String())
	assert.True(t, dec("100.00").Equal(result.TotalAllocated))
	assert.True(t, dec("33.34").Equal(result.Allocations[0].Amount))
}

func TestAllocate_ResidueGoesToLargestPart(t *testing.T) {
	parts := []Part{
		{ID: 1, Weight: 1},
		{ID: 2, Weight: 1},
		{ID: 3, Weight: 1},
	}

	result, err := Allocate(parts, dec("10.00"))
	require.NoError(t, err)

	// 3.33 * 3 = 9.99, the extra cent lands on the first largest part
	assert.True(t, dec("3.34").Equal(result.Allocations[0].Amount), result.Allocations[0].Amount.String())
	assert.True(t, dec("3.33").Equal(result.Allocations[1].Amount))
	assert.True(t, dec("3.33").Equal(result.Allocations[2].Amount))
}

func TestAllocate_NegativeTotal(t *testing.T) {
	parts := []Part{{ID: 1, Weight: 50}, {ID: 2, Weight: 50}}

	result, err := Allocate(parts, dec("-25.00"))
	require.NoError(t, err)

	assert.True(t, dec("-12.50").Equal(result.Allocations[0].Amount))
	assert.True(t, dec("-25.00").Equal(result.TotalAllocated))
}

func TestAllocate_ZeroWeights(t *testing.T) {
	parts := []Part{{ID: 1, Weight: 0}, {ID: 2, Weight: 0}}

	result, err := Allocate(parts, dec("100.00"))
	require.NoError(t, err)

	for _, a := range result.Allocations {
		assert.True(t, a.Amount.IsZero())
	}
	assert.True(t, result.TotalAllocated.IsZero())
}

func TestAllocate_Errors(t *testing.T) {
	_, err := Allocate(nil, dec("10"))
	assert.Error(t, err)

	_, err = Allocate([]Part{{ID: 1, Weight: -5}}, dec("10"))
	assert.Error(t, err)
}
