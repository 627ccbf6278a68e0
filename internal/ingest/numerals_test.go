package ingest

import (
	"testing"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
		ok    bool
	}{
		{"plain digits", "150", 150, true},
		{"ten-thousand glyph", "3万", 30000, true},
		{"thousand glyph", "12千", 12000, true},
		{"hundred glyph", "5百", 500, true},
		{"zero", "0", 0, true},
		{"empty string", "", 0, false},
		{"glyph only", "万", 0, false},
		{"glyph before digits", "万3", 0, false},
		{"trailing garbage", "150个", 0, false},
		{"leading garbage", "约150", 0, false},
		{"negative", "-150", 0, false},
		{"decimal", "1.5万", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseQuantity(tt.input)
			if ok != tt.ok {
				t.Fatalf("parseQuantity(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("parseQuantity(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
