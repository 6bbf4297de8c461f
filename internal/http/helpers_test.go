package http

import (
	"testing"

	"budget/internal/core"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00 LKR"},
		{5, "0.05 LKR"},
		{80000, "800.00 LKR"},
		{123450, "1,234.50 LKR"},
		{100000000, "1,000,000.00 LKR"},
		{-150000, "-1,500.00 LKR"},
	}
	for _, tt := range tests {
		if got := formatMoney(core.Money{Cents: tt.cents}); got != tt.want {
			t.Errorf("formatMoney(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	p := newSanitizer()
	tests := []struct {
		in, want string
	}{
		{"  Rent  ", "Rent"},
		{"<b>Rent</b>", "Rent"},
		{"Tom & Jerry", "Tom & Jerry"},
		{"a\x00b\x07c", "abc"},
		{`<img src=x onerror="alert(1)">Phone`, "Phone"},
	}
	for _, tt := range tests {
		if got := sanitizeInput(p, tt.in); got != tt.want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		target, want string
	}{
		{"", "/fallback"},
		{"/expenses", "/expenses"},
		{"/expenses?x=1", "/expenses?x=1"},
		{"https://evil.example", "/fallback"},
		{"//evil.example", "/fallback"},
		{`/\evil.example`, "/fallback"},
		{"expenses", "/fallback"},
	}
	for _, tt := range tests {
		if got := safeRedirect(tt.target, "/fallback"); got != tt.want {
			t.Errorf("safeRedirect(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}
