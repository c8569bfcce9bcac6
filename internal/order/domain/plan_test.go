package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(id uint, price string, stock int) StockSnapshot {
	return StockSnapshot{ProductID: id, Name: "p", Price: decimal.RequireFromString(price), Stock: stock}
}

func TestValidateCart(t *testing.T) {
	tests := []struct {
		name    string
		lines   []LineRequest
		wantErr bool
	}{
		{"empty", nil, true},
		{"zero quantity", []LineRequest{{ProductID: 1, Quantity: 0}}, true},
		{"negative quantity", []LineRequest{{ProductID: 1, Quantity: -3}}, true},
		{"zero product", []LineRequest{{ProductID: 0, Quantity: 1}}, true},
		{"line above max", []LineRequest{{ProductID: 1, Quantity: MaxLineQuantity + 1}}, true},
		{"max int line", []LineRequest{{ProductID: 1, Quantity: math.MaxInt}}, true},
		{"duplicates above max", []LineRequest{{ProductID: 1, Quantity: MaxLineQuantity}, {ProductID: 1, Quantity: 1}}, true},
		{"duplicates at max", []LineRequest{{ProductID: 1, Quantity: MaxLineQuantity - 1}, {ProductID: 1, Quantity: 1}}, false},
		{"ok", []LineRequest{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 9}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCart(tt.lines)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestValidateCart_ReportsEveryProblem(t *testing.T) {
	err := ValidateCart([]LineRequest{{ProductID: 0, Quantity: 0}, {ProductID: 2, Quantity: -1}})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Problems, 3)
}

func TestMergeLines(t *testing.T) {
	merged := MergeLines([]LineRequest{
		{ProductID: 2, Quantity: 1},
		{ProductID: 1, Quantity: 4},
		{ProductID: 2, Quantity: 3},
	})
	assert.Equal(t, []LineRequest{{ProductID: 2, Quantity: 4}, {ProductID: 1, Quantity: 4}}, merged)
}

func TestValidateCart_HugeDuplicatesReportedOnce(t *testing.T) {
	err := ValidateCart([]LineRequest{
		{ProductID: 1, Quantity: math.MaxInt},
		{ProductID: 1, Quantity: math.MaxInt},
		{ProductID: 1, Quantity: 4},
		{ProductID: 2, Quantity: MaxLineQuantity},
		{ProductID: 2, Quantity: MaxLineQuantity},
		{ProductID: 2, Quantity: 1},
	})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{
		"items[0].quantity must not exceed 1000000",
		"items[1].quantity must not exceed 1000000",
		"total quantity for productId 2 must not exceed 1000000",
	}, ve.Problems)
}

func TestMergeLines_SaturatesInsteadOfWrapping(t *testing.T) {
	merged := MergeLines([]LineRequest{
		{ProductID: 1, Quantity: math.MaxInt},
		{ProductID: 1, Quantity: math.MaxInt},
		{ProductID: 1, Quantity: 4},
	})
	require.Len(t, merged, 1)
	assert.Equal(t, math.MaxInt, merged[0].Quantity)

	_, err := BuildPlan(merged, map[uint]StockSnapshot{1: snap(1, "5", 10)})
	var nf *NoFulfillableItemsError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, ReasonInsufficientStock, nf.Unavailable[0].Reason)
}

func TestBuildPlan_AllAvailable(t *testing.T) {
	plan, err := BuildPlan(
		[]LineRequest{{ProductID: 1, Quantity: 4}},
		map[uint]StockSnapshot{1: snap(1, "5", 10)},
	)
	require.NoError(t, err)
	require.Len(t, plan.Fulfillable, 1)
	assert.Empty(t, plan.Unavailable)
	assert.True(t, plan.TotalPrice.Equal(decimal.NewFromInt(20)))
}

func TestBuildPlan_PartialWithMissingProduct(t *testing.T) {
	plan, err := BuildPlan(
		[]LineRequest{{ProductID: 1, Quantity: 4}, {ProductID: 99, Quantity: 1000000}},
		map[uint]StockSnapshot{1: snap(1, "5", 10)},
	)
	require.NoError(t, err)
	require.Len(t, plan.Fulfillable, 1)
	assert.Equal(t, uint(1), plan.Fulfillable[0].ProductID)
	assert.Equal(t, []UnavailableLine{{ProductID: 99, Requested: 1000000, Available: 0, Reason: ReasonNotFound}}, plan.Unavailable)
	assert.True(t, plan.TotalPrice.Equal(decimal.NewFromInt(20)))
}

func TestBuildPlan_NothingFulfillable(t *testing.T) {
	_, err := BuildPlan(
		[]LineRequest{{ProductID: 1, Quantity: 20}},
		map[uint]StockSnapshot{1: snap(1, "5", 10)},
	)
	require.ErrorIs(t, err, ErrNoFulfillableItems)

	var nf *NoFulfillableItemsError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []UnavailableLine{{ProductID: 1, Requested: 20, Available: 10, Reason: ReasonInsufficientStock}}, nf.Unavailable)
}

func TestBuildPlan_ExactStockIsAvailable(t *testing.T) {
	plan, err := BuildPlan(
		[]LineRequest{{ProductID: 1, Quantity: 3}, {ProductID: 2, Quantity: 2}},
		map[uint]StockSnapshot{1: snap(1, "0.10", 3), 2: snap(2, "0.20", 2)},
	)
	require.NoError(t, err)
	assert.Len(t, plan.Fulfillable, 2)
	assert.Equal(t, "0.70", plan.TotalPrice.StringFixed(2))
	assert.Equal(t, []uint{1, 2}, plan.ProductIDs())
}

func TestBuildPlan_MergedDuplicatesAreCheckedTogether(t *testing.T) {
	lines := MergeLines([]LineRequest{{ProductID: 1, Quantity: 6}, {ProductID: 1, Quantity: 6}})
	_, err := BuildPlan(lines, map[uint]StockSnapshot{1: snap(1, "1", 10)})

	var nf *NoFulfillableItemsError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, 12, nf.Unavailable[0].Requested)
}

func TestBuildPlan_Deterministic(t *testing.T) {
	lines := []LineRequest{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 50}, {ProductID: 3, Quantity: 1}}
	snapshot := map[uint]StockSnapshot{1: snap(1, "2.5", 5), 2: snap(2, "1", 10)}

	first, err := BuildPlan(lines, snapshot)
	require.NoError(t, err)
	second, err := BuildPlan(lines, snapshot)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
