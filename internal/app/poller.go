package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dropit-app/dropit/internal/api"
	"github.com/dropit-app/dropit/internal/state"
)

const (
	defaultPollInterval = time.Minute
	maxBackoff          = 10 * time.Minute
)

// Prober checks backend reachability.
type Prober interface {
	ProbeAll(ctx context.Context) api.ConnectivityReport
}

// Notifier receives connectivity transitions.
type Notifier interface {
	Notify(kind state.NotificationType, message string) string
}

// StartHealthPoller launches a background goroutine that probes the backend
// every interval, backing off while it is unhealthy. Only transitions are
// reported. The first probe runs after one interval since the UI probes at
// start-up. It returns immediately.
func StartHealthPoller(ctx context.Context, prober Prober, notifier Notifier, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		p := healthPoller{prober: prober, notifier: notifier, log: log}
		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(calculateBackoff(failures, interval)):
			}
			failures = p.poll(ctx)
		}
	}()
}

type healthPoller struct {
	prober   Prober
	notifier Notifier
	log      *slog.Logger

	failures int
}

// poll runs one probe and returns the consecutive failure count.
func (p *healthPoller) poll(ctx context.Context) int {
	report := p.prober.ProbeAll(ctx)
	if ctx.Err() != nil {
		return p.failures
	}

	if report.OK() {
		if p.failures > 0 {
			p.notifier.Notify(state.NotifySuccess, "Backend reachable again")
			p.log.Info("backend recovered", "after_failures", p.failures)
		}
		p.failures = 0
		return 0
	}

	failed := strings.Join(report.Failed(), ", ")
	if p.failures == 0 {
		p.notifier.Notify(state.NotifyWarning, "Backend checks failed: "+failed)
	}
	p.failures++
	p.log.Warn("health probe failed", "checks", failed, "failures", p.failures)
	return p.failures
}

// calculateBackoff doubles the interval per consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	backoff := base
	for range failures {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
