package google

import (
	"fmt"
	"regexp"
	"strconv"
)

// updatedRangeRe matches the row of the first updated cell in an A1-style
// range like "2025_01!A5:K6". Tab names may be quoted by the API.
var updatedRangeRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// startRowOfRange extracts the 1-based first row from an appended range.
func startRowOfRange(updatedRange string) (int64, error) {
	m := updatedRangeRe.FindStringSubmatch(updatedRange)
	if m == nil {
		return 0, fmt.Errorf("unexpected updated range %q", updatedRange)
	}
	row, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected updated range %q: %w", updatedRange, err)
	}
	return row, nil
}

// columnLetter converts a 1-based column count to its A1 letter ("K" for 11).
func columnLetter(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+n%26)) + s
		n /= 26
	}
	return s
}
