// internal/app/redact.go
package app

import "regexp"

// Homework photos routinely carry the student's name, the parent's phone
// number or a school address. Text leaving the process for an external AI
// service goes through RedactForAI first: personal identifiers are replaced
// with bracketed placeholders, educational content is left alone. The local
// rule extractor keeps working on the raw text.

type piiPattern struct {
	re          *regexp.Regexp
	replacement string
}

// High-confidence identifiers, always masked.
var piiPatterns = []piiPattern{
	// Malaysian IC numbers, with or without dashes.
	{regexp.MustCompile(`\b\d{6}-?\d{2}-?\d{4}\b`), "[MY_IC]"},
	// Malaysian mobile numbers.
	{regexp.MustCompile(`\+?6?01[0-46-9]-?\d{7,8}\b`), "[PHONE]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[EMAIL]"},
	{regexp.MustCompile(`https?://[^\s]+`), "[URL]"},
	// Street addresses, optionally prefixed with a house number.
	{regexp.MustCompile(`(?i)\b(?:No\.?\s*\d+\s*,?\s*)?(?:Jalan|Lorong|Persiaran|Lebuh|Jln|Lrg)\s+[A-Za-z0-9 ]+`), "[ADDRESS]"},
	// Malaysian postcodes.
	{regexp.MustCompile(`\b\d{5}\b`), "[POSTCODE]"},
}

// Likely school and person names. A heuristic, so these only apply on the
// aggressive path; school names go first or the name pattern eats them.
var namePatterns = []piiPattern{
	{regexp.MustCompile(`\b(?:SK|SMK|SJK|SM|Sekolah)\s+[A-Z][A-Za-z0-9 ]+`), "[SCHOOL]"},
	// Runs of capitalized words, allowing Malay patronymic connectors.
	{regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+(?:bin|binti|a/l|a/p|[A-Z][a-z]+)){1,4}\b`), "[NAME]"},
}

// RedactPII masks the high-confidence identifiers only.
func RedactPII(text string) string {
	for _, p := range piiPatterns {
		text = p.re.ReplaceAllString(text, p.replacement)
	}
	return text
}

// RedactForAI additionally masks likely person and school names. Every
// structuring request is passed through it before reaching the provider.
func RedactForAI(text string) string {
	text = RedactPII(text)
	for _, p := range namePatterns {
		text = p.re.ReplaceAllString(text, p.replacement)
	}
	return text
}
