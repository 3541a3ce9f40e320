package domain

import "time"

// Metrics receives gateway observations. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveInvocation(tool string, duration time.Duration, err error)
	ObserveUpstreamRequest(method string, statusClass string)
	ObserveReconnect(success bool)
	ObserveSpecRefresh(err error)
	SetRouteCount(count int)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) ObserveInvocation(string, time.Duration, error) {}
func (NopMetrics) ObserveUpstreamRequest(string, string)          {}
func (NopMetrics) ObserveReconnect(bool)                          {}
func (NopMetrics) ObserveSpecRefresh(error)                       {}
func (NopMetrics) SetRouteCount(int)                              {}

var _ Metrics = NopMetrics{}
