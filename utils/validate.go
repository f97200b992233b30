package utils

import (
	"regexp"
	"strings"
	"time"
)

var (
	emailRe  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@(mail\.)?utoronto\.ca$`)
	utoridRe = regexp.MustCompile(`^[a-zA-Z0-9]{7,8}$`)
)

// ValidEmail accepts institutional addresses only.
func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

func ValidUtorid(utorid string) bool {
	return utoridRe.MatchString(utorid)
}

const passwordSpecials = "@$!%*?&"

// ValidPassword enforces 8-20 characters with at least one lowercase,
// uppercase, digit and special character, drawn only from that alphabet.
func ValidPassword(password string) bool {
	if len(password) < 8 || len(password) > 20 {
		return false
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		default:
			return false
		}
	}
	return lower && upper && digit && special
}

// ValidDate accepts a real calendar date in YYYY-MM-DD form. The round-trip
// comparison rejects normalized inputs like 2023-02-31.
func ValidDate(s string) bool {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return false
	}
	return t.Format("2006-01-02") == s
}
