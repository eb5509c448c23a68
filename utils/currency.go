package utils

import (
	"fmt"
	"math"
	"strings"
)

// RoundMoney rounds to 2 decimal places, half away from zero. All cost and
// commission math in the services goes through this so persisted amounts
// stay comparable.
func RoundMoney(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// FormatCurrency renders an amount as a soles string, e.g. "S/ 1,250.50".
func FormatCurrency(amount float64) string {
	formatted := fmt.Sprintf("%.2f", math.Abs(amount))

	parts := strings.Split(formatted, ".")
	integerPart := parts[0]
	decimalPart := parts[1]

	var groups []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		groups = append([]string{integerPart[start:i]}, groups...)
	}

	sign := ""
	if amount < 0 {
		sign = "-"
	}
	return "S/ " + sign + strings.Join(groups, ",") + "." + decimalPart
}
