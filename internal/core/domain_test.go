package core

import (
	"encoding/json"
	"strings"
	"testing"
)

func money(f float64) *Money {
	return MoneyFromFloat(&f)
}

func TestReceiptMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		receipt Receipt
		missing []string
	}{
		{
			name:    "AllRequiredPresent",
			receipt: Receipt{Date: "2025-01-05", StoreName: "Store A", AmountInclTax: money(100)},
			missing: nil,
		},
		{
			name:    "Everything Missing",
			receipt: Receipt{},
			missing: []string{"date", "storeName", "amountInclTax"},
		},
		{
			name:    "WhitespaceOnlyStoreName",
			receipt: Receipt{Date: "2025-01-05", StoreName: "   ", AmountInclTax: money(100)},
			missing: []string{"storeName"},
		},
		{
			name:    "NilAmount",
			receipt: Receipt{Date: "2025-01-05", StoreName: "Store A"},
			missing: []string{"amountInclTax"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.receipt.MissingFields()
			if len(got) != len(tt.missing) {
				t.Fatalf("missing fields = %v, want %v", got, tt.missing)
			}
			for i := range got {
				if got[i] != tt.missing[i] {
					t.Errorf("missing[%d] = %q, want %q", i, got[i], tt.missing[i])
				}
			}
		})
	}
}

func TestReceiptValidateDateFormat(t *testing.T) {
	r := Receipt{Date: "01/05/2025", StoreName: "Store A", AmountInclTax: money(100)}
	err := r.Validate()
	if err == nil {
		t.Fatal("expected error for non-ISO date")
	}
	if !strings.Contains(err.Error(), "YYYY-MM-DD") {
		t.Errorf("unexpected error: %v", err)
	}

	r.Date = "2025-01-05"
	if err := r.Validate(); err != nil {
		t.Errorf("valid receipt rejected: %v", err)
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	r := Receipt{Date: "2025-01-05", StoreName: "A", AmountInclTax: money(1234.56), Tax: money(112)}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"amountInclTax":1234.56`) {
		t.Errorf("amount not serialized as plain number: %s", data)
	}

	var back Receipt
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.AmountInclTax == nil || back.AmountInclTax.Cents != 123456 {
		t.Errorf("round trip lost cents: %+v", back.AmountInclTax)
	}
	if back.AmountExclTax != nil {
		t.Error("nil amount should stay nil")
	}
}
