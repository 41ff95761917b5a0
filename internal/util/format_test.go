package util

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	Username string `json:"username"`
	Org      string `json:"organizationID,omitempty"`
	Perm     int    `json:"permission"`
}

func TestWriteJSON(t *testing.T) {
	v := map[string]any{"user": profile{Username: "alice", Perm: 4}, "is_logged_in": true}

	tests := []struct {
		name string
		expr string
		want string
	}{
		{"no query", "", "{\n  \"is_logged_in\": true,\n  \"user\": {\n    \"permission\": 4,\n    \"username\": \"alice\"\n  }\n}\n"},
		{"string result is raw", "user.username", "alice\n"},
		{"number result", "user.permission", "4\n"},
		{"missing field", "user.organizationID", "null\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteJSON(&buf, v, tt.expr))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestValidateQuery(t *testing.T) {
	assert.NoError(t, ValidateQuery(""))
	assert.NoError(t, ValidateQuery("user.username"))
	assert.Error(t, ValidateQuery("user.[["))

	_, err := Query("user.[[", map[string]any{})
	assert.Error(t, err)
}

func TestFormatRemaining(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"zero", time.Time{}, "n/a"},
		{"past", now.Add(-time.Minute), "expired"},
		{"sub-second", now.Add(500 * time.Millisecond), "500ms"},
		{"truncated", now.Add(90*time.Minute + 1500*time.Millisecond), "1h30m1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRemaining(tt.at, now))
		})
	}
}
