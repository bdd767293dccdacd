package cvmfs

import (
	"fmt"
	"strings"
)

// HexString is an even-length string of hex digits stored in lowercase.
// The empty string is a valid HexString.
type HexString string

// ParseHexString validates s and canonicalizes it to lowercase.
func ParseHexString(s string) (HexString, error) {
	if len(s)%2 != 0 {
		return "", fmt.Errorf("%w: %q has odd length", ErrInvalidHex, s)
	}
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return "", fmt.Errorf("%w: %q", ErrInvalidHex, s)
		}
	}
	return HexString(strings.ToLower(s)), nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func (h HexString) String() string {
	return string(h)
}
