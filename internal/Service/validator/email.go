// Package validator holds the syntactic email check applied to uploaded
// recipient lists. It does not look up MX records or talk to mail servers.
package validator

import "regexp"

// Anchored at the start only: trailing text after the domain is accepted.
var emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+`)

// IsValid reports whether value is a string shaped like local@domain.tld.
func IsValid(value interface{}) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	return emailPattern.MatchString(s)
}

// FilterRecipients drops nil and non-string values, deduplicates keeping
// first occurrence order and keeps only valid addresses.
func FilterRecipients(values []interface{}) []string {
	seen := make(map[string]struct{}, len(values))
	valid := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if IsValid(s) {
			valid = append(valid, s)
		}
	}
	return valid
}
