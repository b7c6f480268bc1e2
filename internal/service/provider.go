package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"taximeter/internal/domain"
	"taximeter/internal/meter"
)

// ProviderStatus is the health of the location provider.
type ProviderStatus string

const (
	ProviderOK               ProviderStatus = "ok"
	ProviderPermissionDenied ProviderStatus = "permission_denied"
	ProviderUnavailable      ProviderStatus = "unavailable"
	ProviderTimeout          ProviderStatus = "timeout"
)

// ValidError reports whether s is one of the error statuses a provider may report.
func (s ProviderStatus) ValidError() bool {
	switch s {
	case ProviderPermissionDenied, ProviderUnavailable, ProviderTimeout:
		return true
	}
	return false
}

// ReasonThrottled marks fixes dropped because they arrived too soon after
// the previous delivered fix.
const ReasonThrottled meter.RejectReason = "throttled"

// ProviderEvent is one message from the location provider: either a fix or
// an error, never both.
type ProviderEvent struct {
	Fix     *domain.GeoFix `json:"fix,omitempty"`
	Code    ProviderStatus `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Throttle drops fixes closer than a minimum interval to the previously
// delivered one. The zero value lets everything through.
type Throttle struct {
	minIntervalMs int64
	last          int64
	seen          bool
}

// NewThrottle creates a throttle with the given minimum interval.
func NewThrottle(minInterval time.Duration) *Throttle {
	return &Throttle{minIntervalMs: minInterval.Milliseconds()}
}

// Allow reports whether a fix taken at timestamp (epoch ms) should be delivered.
func (t *Throttle) Allow(timestamp int64) bool {
	if t.minIntervalMs <= 0 {
		return true
	}
	if t.seen && timestamp-t.last < t.minIntervalMs {
		return false
	}
	t.last = timestamp
	t.seen = true
	return true
}

// Reset forgets the last delivered fix.
func (t *Throttle) Reset() {
	t.seen = false
	t.last = 0
}

// Pump forwards provider events from a channel into the meter until the
// channel closes or ctx is done.
type Pump struct {
	meter *MeterService
	log   logrus.FieldLogger
}

// NewPump creates a pump delivering into svc.
func NewPump(svc *MeterService, log logrus.FieldLogger) *Pump {
	return &Pump{meter: svc, log: log}
}

// Run consumes events. It returns when events is closed or ctx is cancelled.
func (p *Pump) Run(ctx context.Context, events <-chan ProviderEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			p.deliver(ctx, ev)
		}
	}
}

func (p *Pump) deliver(ctx context.Context, ev ProviderEvent) {
	if ev.Fix != nil {
		if _, err := p.meter.RecordFix(ctx, *ev.Fix); err != nil {
			p.log.WithError(err).Debug("provider fix not recorded")
		}
		return
	}
	if _, err := p.meter.ReportProviderError(ctx, ev.Code, ev.Message); err != nil {
		p.log.WithError(err).WithField("code", ev.Code).Debug("provider error not recorded")
	}
}
