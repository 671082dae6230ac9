// Package utils provides utility functions for the application.
package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

var confirmCodePattern = regexp.MustCompile(`\b(\d{6})\b`)

// NormalizePhone strips everything but digits (and a leading +) from a phone
// number and rewrites a leading international 00 prefix to +. It never fails:
// an empty or unusable input normalizes to the empty string, which callers
// treat as "channel unavailable".
func NormalizePhone(phone string) string {
	raw := strings.TrimSpace(phone)
	var b strings.Builder
	for _, ch := range raw {
		switch {
		case ch >= '0' && ch <= '9':
			b.WriteRune(ch)
		case ch == '+' && b.Len() == 0:
			b.WriteRune(ch)
		}
	}
	cleaned := b.String()
	if strings.HasPrefix(cleaned, "00") {
		cleaned = "+" + cleaned[2:]
	}
	return cleaned
}

// PhoneTail returns the last n digits of a phone number, ignoring any
// non-digit characters. Numbers shorter than n yield all of their digits.
func PhoneTail(phone string, n int) string {
	var digits []rune
	for _, ch := range phone {
		if ch >= '0' && ch <= '9' {
			digits = append(digits, ch)
		}
	}
	if len(digits) > n {
		digits = digits[len(digits)-n:]
	}
	return string(digits)
}

// ExtractConfirmCode returns the first standalone 6-digit run in body, or
// the empty string when none exists.
func ExtractConfirmCode(body string) string {
	m := confirmCodePattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return m[1]
}

// GenerateConfirmCode draws a zero-padded 6-digit code from crypto/rand.
// Codes are only unique per campaign, not globally; inbound matching
// disambiguates shared codes by phone tail, then recency.
func GenerateConfirmCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to draw confirm code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
