package cache

import "strings"

const prefix = "mess:"

// KeyBillSummary returns the key holding the aggregated bill summary of a period.
func KeyBillSummary(period string) string {
	return prefix + "bills:summary:" + strings.TrimSpace(period)
}
