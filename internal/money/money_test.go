package money_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vasiliy-maslov/food-order-service/internal/money"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		name     string
		in       float64
		expected float64
	}{
		{name: "already_two_digits", in: 100.50, expected: 100.50},
		{name: "round_down", in: 1.004, expected: 1.00},
		{name: "round_up", in: 1.006, expected: 1.01},
		{name: "half_away_from_zero_positive", in: 0.125, expected: 0.13},
		{name: "half_away_from_zero_negative", in: -0.125, expected: -0.13},
		{name: "whole_number", in: 250, expected: 250},
		{name: "zero", in: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, money.Round2(tt.in))
		})
	}
}

func TestCompute(t *testing.T) {
	// Two items at 100.00 each plus one at 50.00, 5% tax, 40.00 fee.
	totals := money.Compute(2*100.00+1*50.00, 40.00)

	assert.Equal(t, 250.00, totals.Subtotal)
	assert.Equal(t, 12.50, totals.Tax)
	assert.Equal(t, 40.00, totals.DeliveryFee)
	assert.Equal(t, 302.50, totals.Total)
}

func TestTotals_Equal(t *testing.T) {
	server := money.Compute(250.00, 40.00)

	tests := []struct {
		name     string
		client   money.Totals
		expected bool
	}{
		{
			name:     "exact_match",
			client:   money.Totals{Subtotal: 250.00, Tax: 12.50, DeliveryFee: 40.00, Total: 302.50},
			expected: true,
		},
		{
			name:     "unrounded_but_equivalent",
			client:   money.Totals{Subtotal: 250.004, Tax: 12.501, DeliveryFee: 40.00, Total: 302.50},
			expected: true,
		},
		{
			name:     "total_off_by_one_cent",
			client:   money.Totals{Subtotal: 250.00, Tax: 12.50, DeliveryFee: 40.00, Total: 302.51},
			expected: false,
		},
		{
			name:     "subtotal_off_by_one_cent",
			client:   money.Totals{Subtotal: 249.99, Tax: 12.50, DeliveryFee: 40.00, Total: 302.50},
			expected: false,
		},
		{
			name:     "fee_mismatch",
			client:   money.Totals{Subtotal: 250.00, Tax: 12.50, DeliveryFee: 35.00, Total: 302.50},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, server.Equal(tt.client))
		})
	}
}
