package domain

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRe = regexp.MustCompile(`\S+@\S+\.\S+`)
	cvvRe   = regexp.MustCompile(`^\d{3,4}$`)
)

// ValidEmail accepts the loose local@domain.tld shape the booking form uses.
func ValidEmail(s string) bool { return emailRe.MatchString(s) }

// ValidPhone wants exactly ten digits once punctuation is stripped.
func ValidPhone(s string) bool { return len(digitsOnly(s)) == 10 }

// ValidCardNumber wants sixteen digits once whitespace is stripped.
func ValidCardNumber(s string) bool {
	n := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return len(n) == 16 && allDigits(n)
}

func ValidCVV(s string) bool { return cvvRe.MatchString(s) }

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
