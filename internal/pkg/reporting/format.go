package reporting

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// roundHalfUp rounds halves toward positive infinity.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// percent returns round(part/total*100), or 0 when total is zero.
func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return roundHalfUp(float64(part) / float64(total) * 100)
}

// CalculatePercentage formats percent(part, total) as "N%".
func CalculatePercentage(part, total int) string {
	return fmt.Sprintf("%d%%", percent(part, total))
}

// formatDollars truncates v to whole dollars.
func formatDollars(v float64) string {
	return "$" + strconv.FormatInt(int64(math.Trunc(v)), 10)
}

// FormatCurrency renders amounts of 1000 and above in thousands with one
// decimal ("$1.5K", "$2K"), smaller amounts as rounded dollars.
func FormatCurrency(v float64) string {
	if v >= 1000 {
		k := strconv.FormatFloat(v/1000, 'f', 1, 64)
		return "$" + strings.TrimSuffix(k, ".0") + "K"
	}
	return fmt.Sprintf("$%d", roundHalfUp(v))
}
