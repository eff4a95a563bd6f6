package translator

import (
	"reflect"
	"testing"
)

func TestParseProtectedTerms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"comma list", "AWS, Amazon Web Services ,Redis OSS", []string{"AWS", "Amazon Web Services", "Redis OSS"}},
		{"newline list", "AWS\nAmazon Web Services, Inc.\n\nValkey\n", []string{"AWS", "Amazon Web Services, Inc.", "Valkey"}},
		{"crlf list", "AWS\r\nValkey\r\n", []string{"AWS", "Valkey"}},
		{"placeholder line dropped", "<one term per line>\nAWS\n<example>", []string{"AWS"}},
		{"placeholder single line", "<comma separated terms>", nil},
		{"duplicates keep first", "AWS,Valkey,AWS, Valkey", []string{"AWS", "Valkey"}},
		{"empty input", "   ", []string{}},
		{"empty entries", ",,AWS,,", []string{"AWS"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseProtectedTerms(tt.raw)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseProtectedTerms(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
