package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Plate is the ephemeral identity a driver broadcasts for discovery.
// It is a label, not an account; a driver owns it only while broadcasting.
type Plate string

func (p Plate) String() string { return string(p) }

var (
	spaceRun = regexp.MustCompile(`\s+`)

	// Accepted plate shapes, matched against the separator-free form.
	platePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^[A-Z]{2,4}\d{3,4}$`),     // standard: letters then digits
		regexp.MustCompile(`^[A-Z]{3}\d{4}$`),         // US style
		regexp.MustCompile(`^[A-Z]{2}\d{3}[A-Z]{2}$`), // European style
		regexp.MustCompile(`^[A-Z0-9]{5,8}$`),         // generic alphanumeric
	}
)

// NormalizePlate uppercases and collapses whitespace so "abc 1234" and
// "ABC 1234" resolve to the same identity.
func NormalizePlate(raw string) Plate {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = spaceRun.ReplaceAllString(s, " ")
	return Plate(s)
}

// ValidatePlate reports whether a normalized plate matches a known format.
func ValidatePlate(p Plate) error {
	s := string(p)
	if s == "" {
		return fmt.Errorf("%w: plate is required", ErrInvalidInput)
	}
	if len(s) < 5 {
		return fmt.Errorf("%w: plate %q too short", ErrInvalidInput, s)
	}
	if len(s) > 10 {
		return fmt.Errorf("%w: plate %q too long", ErrInvalidInput, s)
	}
	compact := strings.NewReplacer(" ", "", "-", "").Replace(s)
	for _, re := range platePatterns {
		if re.MatchString(compact) {
			return nil
		}
	}
	return fmt.Errorf("%w: unrecognized plate format %q", ErrInvalidInput, s)
}
