// Package util hosts output formatting helpers shared by the CLI and the console server.
package util //nolint:revive // package name util hosts shared formatting helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
)

// ValidateQuery compiles expr. An empty expression is valid and selects everything.
func ValidateQuery(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	if _, err := jmespath.Compile(expr); err != nil {
		return fmt.Errorf("invalid query %q: %w", expr, err)
	}
	return nil
}

// Query applies a JMESPath expression to v. The value is round-tripped
// through JSON first so struct tags decide the field names.
func Query(expr string, v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	if strings.TrimSpace(expr) == "" {
		return data, nil
	}
	out, err := jmespath.Search(expr, data)
	if err != nil {
		return nil, fmt.Errorf("evaluate query %q: %w", expr, err)
	}
	return out, nil
}

// WriteJSON writes v, optionally filtered by expr, as indented JSON.
// A bare string result is written without quotes so it can feed shell pipelines.
func WriteJSON(w io.Writer, v any, expr string) error {
	out, err := Query(expr, v)
	if err != nil {
		return err
	}
	if s, ok := out.(string); ok && expr != "" {
		_, err = fmt.Fprintln(w, s)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// FormatRemaining formats the time left until t for display.
// Returns "n/a" for a zero time and "expired" once t has passed.
func FormatRemaining(t, now time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	d := t.Sub(now)
	switch {
	case d <= 0:
		return "expired"
	case d < time.Second:
		return d.String()
	default:
		return d.Truncate(time.Second).String()
	}
}
