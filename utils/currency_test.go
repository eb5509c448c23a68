package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundMoney(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1.234, 1.23},
		{1.236, 1.24},
		{0.2 * 10, 2.00},
		{12.0 / 60 * 90, 18.00},
		{-1.236, -1.24},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RoundMoney(tc.in), "RoundMoney(%v)", tc.in)
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "S/ 0.00"},
		{2, "S/ 2.00"},
		{18.5, "S/ 18.50"},
		{1250.5, "S/ 1,250.50"},
		{1234567.89, "S/ 1,234,567.89"},
		{-42.1, "S/ -42.10"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatCurrency(tc.in), "FormatCurrency(%v)", tc.in)
	}
}
