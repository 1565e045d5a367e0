package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that serializes as a duration string
// ("30s", "2h") instead of raw nanoseconds, matching the textual enum
// encoding of the other record fields. Integer nanoseconds are still
// accepted on read.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(time.Duration(value))
	default:
		return fmt.Errorf("invalid duration value of type %T", v)
	}
	return nil
}
