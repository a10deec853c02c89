package users

import "strings"

// EmailErrors flags every problem found in an email address.
type EmailErrors struct {
	TooShort      bool `json:"tooShort"`
	TooLong       bool `json:"tooLong"`
	IllegalChar   bool `json:"illegalChar"`
	InvalidFormat bool `json:"invalidFormat"`
}

// Any reports whether a flag is set.
func (e EmailErrors) Any() bool {
	return e.TooShort || e.TooLong || e.IllegalChar || e.InvalidFormat
}

// CheckEmail validates an address. Lengths are in bytes.
func CheckEmail(email string) EmailErrors {
	at := strings.IndexByte(email, '@')
	return EmailErrors{
		TooShort:      len(email) < 3,
		TooLong:       len(email) > 255,
		IllegalChar:   strings.ContainsAny(email, " \t\n"),
		InvalidFormat: at <= 0 || at == len(email)-1 || strings.IndexByte(email[at+1:], '@') >= 0,
	}
}

// PasswordErrors flags every rule a password breaks.
type PasswordErrors struct {
	TooShort         bool `json:"tooShort"`
	UppercaseMissing bool `json:"uppercaseMissing"`
	LowercaseMissing bool `json:"lowercaseMissing"`
	DigitMissing     bool `json:"digitMissing"`
	SpecialMissing   bool `json:"specialMissing"`
}

// Any reports whether a flag is set.
func (p PasswordErrors) Any() bool {
	return p.TooShort || p.UppercaseMissing || p.LowercaseMissing || p.DigitMissing || p.SpecialMissing
}

// CheckPassword validates a new password. Any rune outside ASCII letters
// and digits counts as special.
func CheckPassword(password string) PasswordErrors {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			special = true
		}
	}
	return PasswordErrors{
		TooShort:         len(password) < 8,
		UppercaseMissing: !upper,
		LowercaseMissing: !lower,
		DigitMissing:     !digit,
		SpecialMissing:   !special,
	}
}
