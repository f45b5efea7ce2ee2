package domain

import (
	"fmt"
	"math"
)

// RoundCents rounds an amount to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatMoney renders an amount as dollars.
func FormatMoney(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
