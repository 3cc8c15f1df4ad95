package helpers

import "fmt"

// FormatUSD formats a number as US dollars with thousand separators, e.g.
// 12500.5 -> "$12,500.50".
func FormatUSD(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	totalCents := int64(amount*100 + 0.5)
	whole := totalCents / 100
	cents := totalCents % 100

	str := fmt.Sprintf("%d", whole)
	length := len(str)

	var result string
	for i, digit := range str {
		if i > 0 && (length-i)%3 == 0 {
			result += ","
		}
		result += string(digit)
	}

	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%s$%s.%02d", sign, result, cents)
}
