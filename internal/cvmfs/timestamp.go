package cvmfs

import (
	"encoding/json"
	"fmt"
	"time"
)

// LooseTimestampLayout is the `date`-style format CVMFS servers write, e.g.
// "Fri Jun 21 17:40:02 UTC 2024".
const LooseTimestampLayout = time.UnixDate

// LooseTimestamp holds an optional, loosely formatted date string exactly as
// a server published it. Coercion to an instant is deferred to Time so a
// malformed value never fails the document that carries it.
type LooseTimestamp struct {
	raw string
	set bool
}

// NewLooseTimestamp wraps a present raw value.
func NewLooseTimestamp(raw string) LooseTimestamp {
	return LooseTimestamp{raw: raw, set: true}
}

// IsSet reports whether a value was present.
func (t LooseTimestamp) IsSet() bool {
	return t.set
}

// Raw returns the published string, or "" when absent.
func (t LooseTimestamp) Raw() string {
	return t.raw
}

func (t LooseTimestamp) String() string {
	return t.raw
}

// Time coerces the value to an absolute UTC instant. It returns ok=false and
// a nil error when the value is absent, and an ErrConversion carrying the
// offending string when it cannot be parsed.
func (t LooseTimestamp) Time() (time.Time, bool, error) {
	if !t.set {
		return time.Time{}, false, nil
	}
	parsed, err := time.Parse(LooseTimestampLayout, t.raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %q", ErrConversion, t.raw)
	}
	return parsed.UTC(), true, nil
}

// MarshalJSON emits the raw string, or null when absent.
func (t LooseTimestamp) MarshalJSON() ([]byte, error) {
	if !t.set {
		return []byte("null"), nil
	}
	return json.Marshal(t.raw)
}

// UnmarshalJSON accepts a string or null.
func (t *LooseTimestamp) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	if raw == nil {
		*t = LooseTimestamp{}
		return nil
	}
	*t = NewLooseTimestamp(*raw)
	return nil
}
