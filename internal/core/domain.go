package core

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrEmptyBatch    = errors.New("empty batch")
	ErrEmptyText     = errors.New("empty text")
	ErrInvalidAmount = errors.New("invalid amount")
)

// dateRe matches the canonical YYYY-MM-DD form used on the sheet.
var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type (
	// Receipt is one structured receipt entry as reviewed by the user.
	// Date is kept as a string in YYYY-MM-DD form (or empty when OCR could
	// not find one); sheet bucketing derives from it downstream.
	Receipt struct {
		Date            string `json:"date"`
		StoreName       string `json:"storeName"`
		Payer           string `json:"payer"`
		AmountExclTax   *Money `json:"amountExclTax"`
		AmountInclTax   *Money `json:"amountInclTax"`
		Tax             *Money `json:"tax"`
		PaymentMethod   string `json:"paymentMethod"`
		ExpenseCategory string `json:"expenseCategory"`
		ProjectName     string `json:"projectName"`
		Notes           string `json:"notes"`
		ReceiptImageURL string `json:"receiptImageUrl"`
	}

	// OCRResult is the outcome of a text-extraction call.
	OCRResult struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
)

// ValidDate reports whether s is in the canonical YYYY-MM-DD form.
func ValidDate(s string) bool {
	return dateRe.MatchString(strings.TrimSpace(s))
}

// MissingFields reports which required fields are absent. A receipt needs a
// date, a store name and a tax-included amount before it can be written out.
func (r Receipt) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(r.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(r.StoreName) == "" {
		missing = append(missing, "storeName")
	}
	if r.AmountInclTax == nil {
		missing = append(missing, "amountInclTax")
	}
	return missing
}

// Validate returns an error naming every missing required field.
func (r Receipt) Validate() error {
	if missing := r.MissingFields(); len(missing) > 0 {
		return errors.New("missing required fields: " + strings.Join(missing, ", "))
	}
	if !ValidDate(r.Date) {
		return errors.New("date must be YYYY-MM-DD")
	}
	return nil
}
