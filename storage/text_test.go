package storage

import "testing"

func TestNormalizeWhitespace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses spaces and tabs", "a  b\t\tc", "a b c"},
		{"normalizes crlf", "a\r\nb\rc", "a\nb\nc"},
		{"caps blank lines", "a\n\n\n\n\nb", "a\n\nb"},
		{"trims edges", "  \n hello \n ", "hello"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeWhitespace(tt.in); got != tt.want {
				t.Errorf("NormalizeWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRedactPII(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"email",
			"Reach out to recruiting@example.com today",
			"Reach out to [EMAIL] today",
		},
		{
			"formatted phone",
			"Call +49 (30) 1234-5678 now",
			"Call [PHONE] now",
		},
		{
			"plain digit run kept",
			"Requisition 40123456789 is open",
			"Requisition 40123456789 is open",
		},
		{
			"short number kept",
			"Team of 12-15 engineers since 2008",
			"Team of 12-15 engineers since 2008",
		},
		{
			"salary kept",
			"Salary up to 110000 EUR",
			"Salary up to 110000 EUR",
		},
		{
			"mixed",
			"jobs@acme.io or 030 555 123 456",
			"[EMAIL] or [PHONE]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactPII(tt.in); got != tt.want {
				t.Errorf("RedactPII(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildText(t *testing.T) {
	got := BuildText("Engineer", "", "Berlin", "Great role")
	want := "Engineer\n\nBerlin\n\nGreat role"
	if got != want {
		t.Errorf("BuildText() = %q, want %q", got, want)
	}

	if got := BuildText("", "", "", ""); got != "" {
		t.Errorf("BuildText(empty) = %q, want empty", got)
	}
}
