package models

import (
	"errors"
	"regexp"
	"strings"
)

// SerialLength is the fixed length of a canonical serial token.
const SerialLength = 9

// SerialPattern is the canonical serial shape: digit 1, letter, six digits, letter.
const SerialPattern = `1[A-Z][0-9]{6}[A-Z]`

var canonicalSerial = regexp.MustCompile(`^` + SerialPattern + `$`)

// ErrInvalidSerial is returned for values that do not match the canonical serial shape.
var ErrInvalidSerial = errors.New("value does not match serial pattern 1X000000X")

// NormalizeSerial upper-cases v and validates it against the canonical pattern.
func NormalizeSerial(v string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	if !canonicalSerial.MatchString(s) {
		return "", ErrInvalidSerial
	}
	return s, nil
}

// ValidSerial reports whether s is already a canonical, upper-case serial.
func ValidSerial(s string) bool {
	return canonicalSerial.MatchString(s)
}

// DestinationName is the archive file name for a serial.
func DestinationName(serial string) string {
	return serial + ".pdf"
}
