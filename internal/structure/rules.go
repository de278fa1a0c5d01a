package structure

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"ricevute/internal/core"
)

// RulesParser extracts receipt fields from Japanese receipt text with
// scoring heuristics. It needs no network access and serves both as the
// default structurer and as the fallback when the generative backend is
// unavailable.
type RulesParser struct{}

var _ Structurer = (*RulesParser)(nil)

func NewRulesParser() *RulesParser {
	return &RulesParser{}
}

var (
	jpDateRe     = regexp.MustCompile(`(\d{4})年\s*(\d{1,2})月\s*(\d{1,2})日`)
	isoDateRe    = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	phoneRe      = regexp.MustCompile(`\d{2,4}-\d{2,4}-\d{3,4}`)
	digitRe      = regexp.MustCompile(`\d`)
	yenAmountRe  = regexp.MustCompile(`[¥￥]?\s*([\d,]+)\s*円?`)
	bareNumberRe = regexp.MustCompile(`(\d{3,})`)
	numberRe     = regexp.MustCompile(`\d+`)
	priceMarkRe  = regexp.MustCompile(`[¥￥円]\s*\d+|\d+\s*円`)
	anyDateRe    = regexp.MustCompile(`\d{4}[-年/]\d{1,2}[-月/]\d{1,2}`)
	dateWordRe   = regexp.MustCompile(`\d{4}年|\d{1,2}月|\d{1,2}日`)
)

var (
	storeExcludeWords = []string{"合計", "小計", "税込", "税", "消費税", "総額", "お預かり", "お返し"}
	strongTotalWords  = []string{"お支払い合計", "お支払合計", "ご利用金額", "総計", "合計"}
	weakTotalWords    = []string{"税込合計", "計"}
	taxOrDepositWords = []string{"内消費税", "税額", "対象", "預り", "お預り", "お預かり", "お釣り", "釣"}
)

// Structure parses the text and fills what the heuristics can find. Fields
// the rules cannot extract stay empty for the user to complete in review.
func (p *RulesParser) Structure(ctx context.Context, ocrText string) (core.Receipt, error) {
	if strings.TrimSpace(ocrText) == "" {
		return core.Receipt{}, core.ErrEmptyText
	}

	var lines []string
	for _, line := range strings.Split(ocrText, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	rec := core.Receipt{
		Date:          extractDate(ocrText),
		StoreName:     extractStoreName(lines),
		PaymentMethod: "cash",
	}

	total := extractTotalAmount(lines)
	tax := extractTaxAmount(lines)
	if total != nil {
		rec.AmountInclTax = yen(*total)
		if tax != nil {
			rec.Tax = yen(*tax)
			rec.AmountExclTax = yen(*total - *tax)
		} else {
			// No explicit tax line, so estimate at the standard 10% rate.
			rec.AmountExclTax = yen(int64(float64(*total) / 1.1))
		}
	} else if tax != nil {
		rec.Tax = yen(*tax)
	}

	slog.InfoContext(ctx, "Receipt structured by rules",
		"has_date", rec.Date != "",
		"has_store", rec.StoreName != "",
		"has_total", rec.AmountInclTax != nil)

	return rec, nil
}

func yen(v int64) *core.Money {
	return &core.Money{Cents: v * 100}
}

// extractStoreName scores the first ten lines and picks the most
// store-name-like one. Position near the top and length help; digits,
// phone numbers, postal marks, price marks, and total keywords hurt.
func extractStoreName(lines []string) string {
	best := ""
	bestScore := -1e18
	for i, line := range lines {
		if i >= 10 {
			break
		}
		score := 0.0
		if i < 5 {
			score += 2
		}
		score += float64(len([]rune(line))) * 0.1
		score -= float64(len(digitRe.FindAllString(line, -1))) * 1.5
		if phoneRe.MatchString(line) {
			score -= 5
		}
		if strings.Contains(line, "〒") {
			score -= 5
		}
		if containsAny(line, storeExcludeWords) {
			score -= 5
		}
		if priceMarkRe.MatchString(line) {
			score -= 3
		}
		if anyDateRe.MatchString(line) {
			score -= 2
		}
		if score > bestScore {
			bestScore = score
			best = line
		}
	}
	return best
}

// extractDate finds the first date in either the 2025年1月5日 or the
// 2025-01-05 / 2025/01/05 form and renders it as YYYY-MM-DD.
func extractDate(text string) string {
	for _, re := range []*regexp.Regexp{jpDateRe, isoDateRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		candidate := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		if candidate.Year() != year || int(candidate.Month()) != month || candidate.Day() != day {
			continue // rolled over, e.g. month 13 or day 32
		}
		return candidate.Format("2006-01-02")
	}
	return ""
}

// amountsInLine pulls every plausible amount (100 to 10,000,000 yen) from
// one line, accepting ¥1,234 / 1,234円 / bare 1234 forms.
func amountsInLine(line string) []int64 {
	var amounts []int64
	seen := func(v int64) {
		if v >= 100 && v <= 10_000_000 {
			amounts = append(amounts, v)
		}
	}
	for _, m := range yenAmountRe.FindAllStringSubmatch(line, -1) {
		if v, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64); err == nil {
			seen(v)
		}
	}
	for _, m := range bareNumberRe.FindAllStringSubmatch(line, -1) {
		if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			seen(v)
		}
	}
	return amounts
}

func containsAny(line string, words []string) bool {
	for _, w := range words {
		if strings.Contains(line, w) {
			return true
		}
	}
	return false
}

func isSubtotalLine(line string) bool {
	return strings.Contains(line, "小計")
}

func isPhoneLine(line string) bool {
	return strings.Contains(line, "-") && phoneRe.MatchString(line)
}

func isDateLine(line string) bool {
	return dateWordRe.MatchString(line)
}

func isTaxOrDepositLine(line string) bool {
	return containsAny(line, taxOrDepositWords)
}

// extractTotalAmount prefers lines carrying a total keyword, strong ones
// first. When no keyword line yields an amount it falls back to scoring
// candidates, favoring the bottom 40% of the receipt.
func extractTotalAmount(lines []string) *int64 {
	if len(lines) == 0 {
		return nil
	}

	for _, keywords := range [][]string{strongTotalWords, weakTotalWords} {
		for _, line := range lines {
			if isSubtotalLine(line) || isPhoneLine(line) {
				continue
			}
			if !containsAny(line, keywords) {
				continue
			}
			if amounts := amountsInLine(line); len(amounts) > 0 {
				chosen := amounts[0]
				for _, a := range amounts {
					if a > chosen {
						chosen = a
					}
				}
				return &chosen
			}
		}
	}

	startIdx := len(lines) * 6 / 10
	if best := scoreTotalCandidates(lines, startIdx, len(lines), startIdx); best != nil {
		return best
	}
	return scoreTotalCandidates(lines, 0, len(lines), startIdx)
}

func scoreTotalCandidates(lines []string, from, to, lateIdx int) *int64 {
	bestScore := -1e18
	var best *int64
	for idx := from; idx < to; idx++ {
		line := lines[idx]
		if isPhoneLine(line) || isDateLine(line) || isTaxOrDepositLine(line) {
			continue
		}
		amounts := amountsInLine(line)
		for _, amt := range amounts {
			if amt >= 1900 && amt <= 2100 {
				continue // probably a year
			}
			score := 0.0
			if containsAny(line, strongTotalWords) {
				score += 100
			}
			if containsAny(line, weakTotalWords) {
				score += 40
			}
			if idx >= lateIdx {
				score += 20
			}
			if strings.ContainsAny(line, "円¥￥") {
				score += 10
			}
			if !isTaxOrDepositLine(line) {
				score += 10
			}
			if len(amounts) == 1 {
				score += 5
			}
			if score > bestScore {
				bestScore = score
				v := amt
				best = &v
			}
		}
	}
	return best
}

// extractTaxAmount finds the first tax line, skipping 税込/税抜 mentions
// since those qualify a gross or net amount rather than stating the tax.
func extractTaxAmount(lines []string) *int64 {
	for _, line := range lines {
		isTaxLine := strings.Contains(line, "消費税") ||
			(strings.Contains(line, "税") &&
				!strings.Contains(line, "税込") &&
				!strings.Contains(line, "税抜"))
		if !isTaxLine {
			continue
		}
		for _, m := range numberRe.FindAllString(strings.ReplaceAll(line, ",", ""), -1) {
			v, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}
			if v >= 1 && v <= 1_000_000 {
				return &v
			}
		}
	}
	return nil
}
