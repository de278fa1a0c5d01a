package ocr

import "strings"

// CleanText normalizes OCR output for the structuring step: line endings
// are unified, trailing whitespace and blank lines are dropped, and runs
// of spaces inside a line collapse to one.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
