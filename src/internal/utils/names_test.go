package utils

import (
	"strings"
	"testing"
)

func TestNormalizeListName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "geoip"},
		{"   ", "geoip"},
		{"blocked-eu", "blocked-eu"},
		{" my list ", "my_list"},
		{"a;b\"c", "a_b_c"},
		{strings.Repeat("x", 80), strings.Repeat("x", 63)},
	}

	for _, tt := range tests {
		if got := NormalizeListName(tt.raw); got != tt.want {
			t.Errorf("NormalizeListName(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizePrefix(t *testing.T) {
	tests := []struct {
		raw  string
		def  string
		want string
	}{
		{"", "geoip-", "geoip"},
		{"fw-", "geoip-", "fw"},
		{"f w", "geoip", "f_w"},
		{"---", "", "geoip"},
		{strings.Repeat("p", 50), "geoip", strings.Repeat("p", 40)},
	}

	for _, tt := range tests {
		if got := NormalizePrefix(tt.raw, tt.def); got != tt.want {
			t.Errorf("NormalizePrefix(%q, %q) = %q, want %q", tt.raw, tt.def, got, tt.want)
		}
	}
}
