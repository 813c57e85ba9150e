package storage

import (
	"regexp"
	"strings"
)

// DatasetSchemaVersion tags every exported record and its manifest.
const DatasetSchemaVersion = "jobtrawl.job_detail.v1"

var (
	emailRE          = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	phoneCandidateRE = regexp.MustCompile(`\+?[0-9][0-9\s().-]{8,}[0-9]`)
	whitespaceRE     = regexp.MustCompile(`[ \t]+`)
	manyNewlinesRE   = regexp.MustCompile(`\n{3,}`)
)

// NormalizeWhitespace normalizes line endings, collapses runs of spaces and
// tabs, and caps consecutive blank lines at one.
func NormalizeWhitespace(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = whitespaceRE.ReplaceAllString(text, " ")
	text = manyNewlinesRE.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// RedactPII replaces email addresses and phone-like patterns in text.
// A phone candidate needs at least 10 digits so short numeric fields like
// counts stay intact, and purely numeric runs (ids, salaries) are kept.
func RedactPII(text string) string {
	text = emailRE.ReplaceAllString(text, "[EMAIL]")

	return phoneCandidateRE.ReplaceAllStringFunc(text, func(candidate string) string {
		digits := 0
		allDigits := true
		for _, c := range candidate {
			if c >= '0' && c <= '9' {
				digits++
			} else {
				allDigits = false
			}
		}
		if digits < 10 || allDigits {
			return candidate
		}
		return "[PHONE]"
	})
}

// BuildText concatenates the free-text fields of a job detail into one
// blob for downstream ML workloads.
func BuildText(title, companyName, location, description string) string {
	var parts []string
	for _, p := range []string{title, companyName, location, description} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}
