package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"12.34", 1234, false},
		{"12,34", 1234, false},
		{"12.345", 1234, false},
		{"12.346", 1235, false},
		{"100", 10000, false},
		{"0", 0, false},
		{"", 0, true},
		{"-5", 0, true},
		{"abc", 0, true},
		{"1.2.3", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDecimalToCents(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDecimalToCents(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseDecimalToCents(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMoneyFromFloatRounding(t *testing.T) {
	f := 0.1 + 0.2 // 0.30000000000000004
	m := MoneyFromFloat(&f)
	if m.Cents != 30 {
		t.Errorf("Cents = %d, want 30", m.Cents)
	}
	if MoneyFromFloat(nil) != nil {
		t.Error("nil input should return nil")
	}
}
