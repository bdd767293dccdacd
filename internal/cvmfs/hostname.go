package cvmfs

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	maxHostnameLength = 255
	maxLabelLength    = 63
)

// Hostname is a lexically validated DNS name. The zero value is not valid;
// build one with ParseHostname.
type Hostname string

// ParseHostname validates s as a DNS hostname.
func ParseHostname(s string) (Hostname, error) {
	if s == "" {
		return "", fmt.Errorf("%w: empty hostname", ErrInvalidHostname)
	}
	if len(s) > maxHostnameLength {
		return "", fmt.Errorf("%w: length %d > %d", ErrInvalidHostname, len(s), maxHostnameLength)
	}
	for _, label := range strings.Split(s, ".") {
		if err := validateLabel(label); err != nil {
			return "", err
		}
	}
	return Hostname(s), nil
}

// MustParseHostname is ParseHostname for compile-time constants; it panics on error.
func MustParseHostname(s string) Hostname {
	h, err := ParseHostname(s)
	if err != nil {
		panic(err)
	}
	return h
}

// ParseHostnames validates every entry, failing on the first invalid one.
func ParseHostnames(values []string) ([]Hostname, error) {
	out := make([]Hostname, 0, len(values))
	for _, v := range values {
		h, err := ParseHostname(v)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func validateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("%w: empty label", ErrInvalidHostname)
	}
	if len(label) > maxLabelLength {
		return fmt.Errorf("%w: label %q longer than %d", ErrInvalidHostname, label, maxLabelLength)
	}
	for _, c := range label {
		if !isLabelChar(c) {
			return fmt.Errorf("%w: invalid character %q in label %q", ErrInvalidHostname, c, label)
		}
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return fmt.Errorf("%w: label %q starts or ends with a dash", ErrInvalidHostname, label)
	}
	if strings.Contains(label, "--") {
		return fmt.Errorf("%w: label %q contains consecutive dashes", ErrInvalidHostname, label)
	}
	return nil
}

func isLabelChar(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-'
}

func (h Hostname) String() string {
	return string(h)
}

// UnmarshalJSON validates hostnames decoded from request bodies and documents.
func (h *Hostname) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode hostname: %w", err)
	}
	parsed, err := ParseHostname(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// HostnameStrings converts hostnames back to plain strings.
func HostnameStrings(hosts []Hostname) []string {
	out := make([]string, len(hosts))
	for i, h := range hosts {
		out[i] = string(h)
	}
	return out
}
