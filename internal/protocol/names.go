package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// MaxNameLen is the number of usable bytes in a service name or type.
const MaxNameLen = 7

// ErrNameBounds is returned when a name or type is empty, longer than
// MaxNameLen bytes, or not valid UTF-8.
var ErrNameBounds = errors.New("name out of bounds")

// ValidateName checks a single name or type string.
func ValidateName(s string) error {
	if s == "" || len(s) > MaxNameLen || !utf8.ValidString(s) {
		return fmt.Errorf("%w: %q (1..%d bytes of UTF-8)", ErrNameBounds, s, MaxNameLen)
	}
	return nil
}

// ValidatePair checks a (name, type) pair.
func ValidatePair(name, typ string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return ValidateName(typ)
}

// validOptional accepts an absent filter value or a bounded one.
func validOptional(s string) bool {
	return s == "" || ValidateName(s) == nil
}
