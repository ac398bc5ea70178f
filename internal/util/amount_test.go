package util

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "plain", input: "ИТОГО: 8600 руб", want: 8600},
		{name: "thousand with space", input: "14 100", want: 14100},
		{name: "thousand with nbsp", input: "14\u00A0100 руб.", want: 14100},
		{name: "decimal comma", input: "1,5", want: 1.5},
		{name: "thousand dot", input: "1.000", want: 1000},
		{name: "thousand and kopecks", input: "14 100,50", want: 14100.5},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseAmount(tc.input)
			if !ok {
				t.Fatalf("amount not found")
			}
			if got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestParseAmountMissing(t *testing.T) {
	if _, ok := ParseAmount("без суммы"); ok {
		t.Fatalf("expected no amount")
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(8600); got != "8600" {
		t.Fatalf("got %s", got)
	}
	if got := FormatAmount(10.5); got != "10.50" {
		t.Fatalf("got %s", got)
	}
}
