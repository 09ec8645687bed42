package provider

import "strings"

// Raw response bodies are inspected before JSON parsing so that a reverse
// proxy or login page at the endpoint is reported as a configuration
// problem, not as garbage JSON.

const excerptLen = 50

// excerpt truncates a raw body for inclusion in an error message.
func excerpt(body string) string {
	body = strings.TrimSpace(body)
	if r := []rune(body); len(r) > excerptLen {
		return string(r[:excerptLen])
	}
	return body
}

// looksLikeHTML reports whether a trimmed response body starts like an HTML
// document rather than JSON.
func looksLikeHTML(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "<")
}
