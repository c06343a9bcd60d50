package metrics

import (
	"strconv"
	"time"
)

// Hi-Rez client metrics
const (
	APIRequestsTotal      = "hirez_requests_total"
	APIRequestDuration    = "hirez_request_duration_ms"
	RateLimitWaitDuration = "hirez_rate_limit_wait_ms"
	SessionsTotal         = "hirez_sessions_total"
)

// ClientObserver forwards Hi-Rez client measurements to the telemetry
// system. The zero value is ready to use.
type ClientObserver struct{}

// ObserveRequest records one upstream HTTP exchange.
func (ClientObserver) ObserveRequest(method string, statusCode int, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	counter(APIRequestsTotal, map[string]string{
		"method":      method,
		"http_status": strconv.Itoa(statusCode),
		"outcome":     outcome,
	})
	histogram(APIRequestDuration, duration, map[string]string{"method": method})
}

// ObserveWait records time spent waiting for a rate limit slot.
func (ClientObserver) ObserveWait(method string, wait time.Duration) {
	histogram(RateLimitWaitDuration, wait, map[string]string{"method": method})
}

// ObserveSession records a session being created or reused from the store.
func (ClientObserver) ObserveSession(created bool) {
	source := "store"
	if created {
		source = "created"
	}
	counter(SessionsTotal, map[string]string{"source": source})
}
