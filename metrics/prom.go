package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Match outcomes
const (
	OutcomeMatched  = "matched"
	OutcomeNone     = "none"
	OutcomeLostRace = "lost_race"
	OutcomeError    = "error"
)

// Notification results
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultDropped   = "dropped"
)

// Recorder records dispatch and notification events in Prometheus metrics.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	matches       *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewRecorder registers the collectors on reg. If reg is nil, the default registerer
// is used. If the collectors are already registered, the existing ones are reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_match_total",
			Help: "Matching attempts by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_transitions_total",
			Help: "Accepted status transitions",
		}, []string{"entity", "from", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_notifications_total",
			Help: "Notification deliveries by target and result",
		}, []string{"target", "result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	var err error
	if r.matches, err = registerCounter(reg, r.matches); err != nil {
		return nil, err
	}
	if r.transitions, err = registerCounter(reg, r.transitions); err != nil {
		return nil, err
	}
	if r.notifications, err = registerCounter(reg, r.notifications); err != nil {
		return nil, err
	}
	if err := reg.Register(r.httpDuration); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		r.httpDuration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return r, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

// RecordMatch counts one matching attempt
func (r *Recorder) RecordMatch(trigger, outcome string) {
	if r == nil {
		return
	}
	r.matches.WithLabelValues(trigger, outcome).Inc()
}

// RecordTransition counts one accepted status change
func (r *Recorder) RecordTransition(entity, from, to string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(entity, from, to).Inc()
}

// RecordNotification counts one delivery attempt to a websocket, webhook or broker target
func (r *Recorder) RecordNotification(target, result string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(target, result).Inc()
}

// ObserveHTTP records the latency of a served request
func (r *Recorder) ObserveHTTP(method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
