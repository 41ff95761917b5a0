package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/glhm/console/internal/errors"
	"github.com/glhm/console/internal/observability/statsd"
)

func TestEmitTransition(t *testing.T) {
	rec := statsd.NewRecorder()

	EmitTransition(rec, "unknown", "logged_in")
	EmitTransition(rec, "logged_in", "logged_in")
	EmitTransition(nil, "a", "b")

	assert.Equal(t, int64(1), rec.CountOf(NameAuthTransition))
	assert.Equal(t, map[string]string{"from": "unknown", "to": "logged_in"}, rec.TagsOf(NameAuthTransition)[0])
}

func TestEmitOperation(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantRes   string
		wantClass string
	}{
		{name: "success", err: nil, wantRes: ResultSuccess},
		{name: "envelope failure", err: apperrors.Envelope(500, "bad"), wantRes: ResultError, wantClass: "envelope"},
		{name: "plain failure", err: errors.New("x"), wantRes: ResultError, wantClass: "errors_errorstring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := statsd.NewRecorder()
			EmitOperation(rec, OperationMetric{Op: "login", Duration: time.Second, Err: tt.err})

			tags := rec.TagsOf(NameAuthOperation)
			assert.Len(t, tags, 1)
			assert.Equal(t, "login", tags[0]["op"])
			assert.Equal(t, tt.wantRes, tags[0]["result"])
			assert.Equal(t, tt.wantClass, tags[0]["error_class"])
			assert.Equal(t, 1, rec.Timings[NameAuthOperationTime])
		})
	}
}

func TestEmitRequest(t *testing.T) {
	rec := statsd.NewRecorder()

	EmitRequest(rec, RequestMetric{Method: "GET", Status: 200, Duration: time.Millisecond})
	EmitRequest(rec, RequestMetric{Method: "POST", Err: errors.New("refused")})

	tags := rec.TagsOf(NameAPIRequest)
	assert.Len(t, tags, 2)
	assert.Equal(t, "200", tags[0]["status"])
	assert.Equal(t, "none", tags[1]["status"])
	assert.Equal(t, 1, rec.Timings[NameAPIRequestTime])
}

func TestEmitAuthRejected(t *testing.T) {
	rec := statsd.NewRecorder()
	EmitAuthRejected(rec)
	EmitAuthRejected(nil)
	assert.Equal(t, int64(1), rec.CountOf(NameAuthRejected))
}
