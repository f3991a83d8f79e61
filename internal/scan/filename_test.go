package scan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "ticket_42", "ticket_42"},
		{"unsafe chars", `haul/ticket: "final"?`, "haul_ticket___final"},
		{"spaces", "my scan jan 5", "my_scan_jan_5"},
		{"trims dots and underscores", "._scan_.", "scan"},
		{"empty input", "", "default"},
		{"only unsafe", "  ''", "file"},
		{"caps length", strings.Repeat("a", 150), strings.Repeat("a", 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestTrimPageSuffix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"doc_page_2", "doc"},
		{"doc-p3", "doc"},
		{"doc.page.12", "doc"},
		{"scan_P4", "scan"},
		{"ticket2024", "ticket2024"},
		{"page_1", "page_1"}, // trimming everything falls back to the input
		{"invoice", "invoice"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimPageSuffix(tt.in))
		})
	}
}
