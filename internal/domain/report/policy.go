package report

import (
	"fmt"
	"strings"
)

// RateDenominator decides which user-days count as working days when
// computing the attendance rate.
type RateDenominator string

const (
	// IncludeLeave divides worked days by worked + absent + on_leave days.
	IncludeLeave RateDenominator = "include_leave"
	// ExcludeLeave divides worked days by worked + absent days.
	ExcludeLeave RateDenominator = "exclude_leave"
)

func ParseRateDenominator(s string) (RateDenominator, error) {
	switch d := RateDenominator(strings.TrimSpace(s)); d {
	case IncludeLeave, ExcludeLeave:
		return d, nil
	case "":
		return IncludeLeave, nil
	}
	return "", fmt.Errorf("unknown rate denominator %q", s)
}
