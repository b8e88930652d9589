// Package scrub removes personally identifiable information from free text
// before it is hashed, embedded, or logged.
//
// Scrubbing is deterministic: identical input always yields identical output.
// That property is load-bearing: the advice cache key is derived from
// scrubbed text, so two reports of the same occurrence must scrub to the same
// string regardless of which instance handles them.
//
// Patterns favor false positives over false negatives: redacting too much
// costs a little retrieval precision, letting PII through costs a privacy
// incident.
package scrub

import (
	"regexp"
	"strings"
)

// replacement pairs a pattern with its placeholder token.
type replacement struct {
	pattern     *regexp.Regexp
	placeholder string
}

// piiReplacements are applied in order. Longer, more specific shapes run
// before generic ones so card numbers are not half-eaten by the phone rule.
var piiReplacements = []replacement{
	// Email addresses
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[email]"},

	// Payment card shapes: 13-19 digits with optional space/dash separators
	{regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`), "[card]"},

	// US SSN shape
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[id]"},

	// Phone numbers: optional country code, separators, 7+ digits
	{regexp.MustCompile(`(?:\+\d{1,3}[ .\-]?)?(?:\(\d{2,4}\)[ .\-]?)?\d{3}[ .\-]\d{3,4}[ .\-]?\d{0,4}\b`), "[phone]"},

	// Long bare digit runs (ticket barcodes, badge numbers)
	{regexp.MustCompile(`\b\d{7,}\b`), "[number]"},

	// IP addresses
	{regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`), "[ip]"},

	// Street addresses: number + capitalized words + street suffix
	{regexp.MustCompile(`\b\d{1,5}\s+(?:[A-Z][a-z]+\s+){1,3}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Way)\b\.?`), "[address]"},
}

// secretPatterns match credential shapes that occasionally end up pasted into
// incident reports. Any line containing one is replaced wholesale.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)sk-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`AIza[a-zA-Z0-9\-_]{35}`),
	regexp.MustCompile(`(?i)gh[po]_[a-zA-Z0-9]{36}`),
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-_.]{20,}`),
	regexp.MustCompile(`(?i)(?:postgres|mysql|mongodb|redis)://\S+@\S+`),
	regexp.MustCompile(`(?i)(?:password|passwd|pwd|api[_-]?key|secret[_-]?key|auth[_-]?token)\s*[:=]\s*\S{8,}`),
}

// RedactedLine replaces entire lines that contain credential material.
const RedactedLine = "[redacted]"

// Scrubber removes PII from free text. The zero value is not usable; call New.
type Scrubber struct {
	replacements []replacement
}

// New creates a Scrubber with the default pattern set.
func New() *Scrubber {
	return &Scrubber{replacements: piiReplacements}
}

// Scrub returns text with PII replaced by placeholder tokens and
// credential-bearing lines redacted. Output is deterministic for identical
// input and never longer than a constant factor of the input.
func (s *Scrubber) Scrub(text string) string {
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if containsSecret(line) {
			lines[i] = RedactedLine
			continue
		}
		for _, r := range s.replacements {
			line = r.pattern.ReplaceAllString(line, r.placeholder)
		}
		lines[i] = line
	}

	return strings.Join(lines, "\n")
}

// containsSecret reports whether a line matches any credential pattern.
func containsSecret(line string) bool {
	for _, p := range secretPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}
