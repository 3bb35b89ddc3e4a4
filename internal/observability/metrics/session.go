package metrics

import (
	"time"

	apperrors "github.com/bellsbank/bellsbank/internal/errors"
	obserrors "github.com/bellsbank/bellsbank/internal/observability/errors"
	"github.com/bellsbank/bellsbank/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultDropped  = "dropped"
	ResultNotFound = "not_found"
)

// Metric names shared by the StatsD and Prometheus sinks.
const (
	NameRefresh         = "session.refresh"
	NameRefreshDuration = "session.refresh.duration"
	NameAuthOperation   = "auth.operation"
	NameAuthDuration    = "auth.operation.duration"
	NameProfileLoad     = "profile.load"
)

// RefreshMetric captures one refresh attempt.
type RefreshMetric struct {
	Trigger  string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitRefresh emits refresh attempt metrics. Dropped attempts carry no duration.
func EmitRefresh(sink statsd.Sink, in RefreshMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"trigger":     in.Trigger,
		"result":      in.Result,
		"error_class": errorClass(in.Err),
	}
	sink.Count(NameRefresh, 1, tags)

	if in.Duration > 0 {
		sink.Timing(NameRefreshDuration, in.Duration, map[string]string{"trigger": in.Trigger})
	}
}

// AuthMetric captures a foreground sign-in, sign-up or sign-out.
type AuthMetric struct {
	Operation string
	Result    string
	Duration  time.Duration
	Err       error
}

// EmitAuthOperation emits metrics for a foreground auth operation.
func EmitAuthOperation(sink statsd.Sink, in AuthMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"operation":  in.Operation,
		"result":     in.Result,
		"error_code": string(apperrors.GetCode(in.Err)),
	}
	sink.Count(NameAuthOperation, 1, tags)

	if in.Duration > 0 {
		sink.Timing(NameAuthDuration, in.Duration, map[string]string{"operation": in.Operation})
	}
}

// EmitProfileLoad emits the outcome of a profile fetch.
func EmitProfileLoad(sink statsd.Sink, result string, err error) {
	if sink == nil {
		return
	}
	sink.Count(NameProfileLoad, 1, map[string]string{
		"result":      result,
		"error_class": errorClass(err),
	})
}

func errorClass(err error) string {
	if err == nil {
		return "none"
	}
	return obserrors.Classify(err)
}

// NameSessionActive is a gauge set to 1 while a session is held.
const NameSessionActive = "session.active"

// EmitSessionActive records whether the store currently holds a session.
func EmitSessionActive(sink statsd.Sink, active bool) {
	if sink == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	sink.Gauge(NameSessionActive, v, nil)
}
