package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bellsbank/bellsbank/internal/errors"
)

type recordedMetric struct {
	kind  string
	name  string
	value float64
	tags  map[string]string
}

type recordingSink struct{ metrics []recordedMetric }

func (r *recordingSink) Count(name string, value int64, tags map[string]string) {
	r.metrics = append(r.metrics, recordedMetric{kind: "count", name: name, value: float64(value), tags: tags})
}

func (r *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	r.metrics = append(r.metrics, recordedMetric{kind: "gauge", name: name, value: value, tags: tags})
}

func (r *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	r.metrics = append(r.metrics, recordedMetric{kind: "timing", name: name, value: value.Seconds(), tags: tags})
}

func TestEmitRefresh(t *testing.T) {
	sink := &recordingSink{}

	EmitRefresh(sink, RefreshMetric{Trigger: "timer", Result: ResultError, Duration: time.Second, Err: errors.New("rate limited")})

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, NameRefresh, sink.metrics[0].name)
	assert.Equal(t, "timer", sink.metrics[0].tags["trigger"])
	assert.Equal(t, ResultError, sink.metrics[0].tags["result"])
	assert.Equal(t, "errors_errorstring", sink.metrics[0].tags["error_class"])
	assert.Equal(t, NameRefreshDuration, sink.metrics[1].name)
}

func TestEmitRefresh_DroppedHasNoTiming(t *testing.T) {
	sink := &recordingSink{}

	EmitRefresh(sink, RefreshMetric{Trigger: "visibility", Result: ResultDropped})

	require.Len(t, sink.metrics, 1)
	assert.Equal(t, "none", sink.metrics[0].tags["error_class"])
}

func TestEmitAuthOperation_TagsErrorCode(t *testing.T) {
	sink := &recordingSink{}

	EmitAuthOperation(sink, AuthMetric{Operation: "sign_in", Result: ResultError, Err: apperrors.InvalidCredentials(nil)})

	require.Len(t, sink.metrics, 1)
	assert.Equal(t, "invalid_credentials", sink.metrics[0].tags["error_code"])
}

func TestEmitters_NilSink(t *testing.T) {
	assert.NotPanics(t, func() {
		EmitRefresh(nil, RefreshMetric{})
		EmitAuthOperation(nil, AuthMetric{})
		EmitProfileLoad(nil, ResultSuccess, nil)
	})
}
