package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written in Go syntax ("30s", "2m").
type Duration time.Duration

// DurationError reports a duration value that could not be parsed.
type DurationError struct {
	Value string
	Line  int
	Err   error
}

func (e *DurationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("config: line %d: invalid duration %q: %v", e.Line, e.Value, e.Err)
	}
	return fmt.Sprintf("config: invalid duration %q: %v", e.Value, e.Err)
}

func (e *DurationError) Unwrap() error { return e.Err }

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String implements fmt.Stringer.
func (d Duration) String() string { return time.Duration(d).String() }

func parseDuration(s string, line int) (Duration, error) {
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, &DurationError{Value: s, Line: line, Err: err}
	}
	return Duration(v), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := parseDuration(value.Value, value.Line)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &DurationError{Value: string(data), Err: err}
	}
	v, err := parseDuration(s, 0)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
