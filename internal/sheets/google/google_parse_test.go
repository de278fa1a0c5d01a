package google

import (
	"errors"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestStartRowOfRange(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "2025_01!A2:K2", want: 2},
		{in: "2025_01!A15:K18", want: 15},
		{in: "'2025 backup'!A3:K3", want: 3},
		{in: "2025_01!A100", want: 100},
		{in: "garbage", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := startRowOfRange(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("startRowOfRange(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("startRowOfRange(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("startRowOfRange(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestColumnLetter(t *testing.T) {
	cases := map[int]string{1: "A", 2: "B", 11: "K", 26: "Z", 27: "AA", 28: "AB"}
	for n, want := range cases {
		if got := columnLetter(n); got != want {
			t.Errorf("columnLetter(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestIsMissingSheet(t *testing.T) {
	missing := &googleapi.Error{Code: 400, Message: "Unable to parse range: 2025_09!A2:K51"}
	if !isMissingSheet(missing) {
		t.Error("range parse failure should read as missing sheet")
	}
	if isMissingSheet(&googleapi.Error{Code: 400, Message: "Invalid value"}) {
		t.Error("other 400s are not missing sheets")
	}
	if isMissingSheet(&googleapi.Error{Code: 500, Message: "unable to parse range"}) {
		t.Error("5xx is a server fault, not a missing sheet")
	}
	if isMissingSheet(errors.New("unable to parse range")) {
		t.Error("plain errors are not API range failures")
	}
}
