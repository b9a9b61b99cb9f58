package walink

import (
	"net/url"
	"strings"
)

const (
	baseURL     = "https://wa.me/"
	countryCode = "62"
)

// NormalizePhone keeps only digits and forces the Indonesian country code.
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + len(countryCode))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phone := b.String()

	if strings.HasPrefix(phone, "0") {
		phone = countryCode + phone[1:]
	}
	if !strings.HasPrefix(phone, countryCode) {
		phone = countryCode + phone
	}
	return phone
}

// Build returns the wa.me deep link that opens a chat with text pre-filled.
func Build(phone, text string) string {
	return baseURL + NormalizePhone(phone) + "?text=" + encodeComponent(text)
}

// encodeComponent matches encodeURIComponent: spaces become %20 and
// the unreserved marks -_.!~*'() stay literal.
func encodeComponent(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "+", "%20")

	r := strings.NewReplacer(
		"%21", "!",
		"%27", "'",
		"%28", "(",
		"%29", ")",
		"%2A", "*",
	)
	return r.Replace(escaped)
}
