package batch

import (
	"fmt"
	"time"
)

// SheetNameForDate maps a receipt date to its monthly tab name, formatted
// "YYYY_MM". An empty or unparseable date falls back to the month of now,
// so a receipt never fails just because OCR missed the date.
func SheetNameForDate(date string, now time.Time) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		t = now
	}
	return fmt.Sprintf("%d_%02d", t.Year(), int(t.Month()))
}
