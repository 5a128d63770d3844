// Package keepalive runs the background loop that periodically exercises
// the storage connection so idle timeouts never sever it, and exposes
// liveness/staleness status.
package keepalive

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Pinger is the narrow store surface the supervisor exercises.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DefaultInterval is the time between keepalive pings.
const DefaultInterval = 5 * time.Minute

// DefaultPingTimeout bounds a single ping.
const DefaultPingTimeout = 10 * time.Second

// Config configures the keepalive supervisor.
type Config struct {
	// Interval is the duration between pings.
	Interval time.Duration
	// PingTimeout bounds each individual ping.
	PingTimeout time.Duration
	// Logger for supervisor activity.
	Logger *slog.Logger
}

// Status is the supervisor's externally visible state.
type Status struct {
	Running          bool       `json:"running"`
	LastPingAt       *time.Time `json:"last_ping_at"`
	SecondsSincePing *float64   `json:"seconds_since_ping"`
}

// Supervisor keeps the store connection warm. Ping failures are logged,
// never escalated; the next tick simply tries again.
type Supervisor struct {
	config Config
	pinger Pinger

	mu         sync.Mutex
	running    bool
	lastPingAt time.Time
	stopCh     chan struct{}
	doneCh     chan struct{}

	clock func() time.Time
}

// NewSupervisor creates a keepalive supervisor.
func NewSupervisor(config Config, pinger Pinger) *Supervisor {
	if config.Interval == 0 {
		config.Interval = DefaultInterval
	}
	if config.PingTimeout == 0 {
		config.PingTimeout = DefaultPingTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Supervisor{
		config: config,
		pinger: pinger,
		clock:  time.Now,
	}
}

// Start begins the keepalive loop. Returns immediately; the loop runs in a
// background goroutine. Starting a running supervisor is a no-op.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop signals the loop to stop and waits for it to finish.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Status reports whether the loop is live and how stale the last ping is.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Running: s.running}
	if !s.lastPingAt.IsZero() {
		at := s.lastPingAt
		st.LastPingAt = &at
		secs := s.clock().Sub(at).Seconds()
		st.SecondsSincePing = &secs
	}
	return st
}

func (s *Supervisor) run(ctx context.Context) {
	defer close(s.doneCh)

	// Ping immediately so staleness is measured from process start, not
	// from the first tick.
	s.ping(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.config.Logger.Info("keepalive supervisor stopping due to context cancellation")
			return
		case <-s.stopCh:
			s.config.Logger.Info("keepalive supervisor stopping due to stop signal")
			return
		case <-ticker.C:
			s.ping(ctx)
		}
	}
}

func (s *Supervisor) ping(parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, s.config.PingTimeout)
	defer cancel()

	if err := s.pinger.PingContext(ctx); err != nil {
		s.config.Logger.Error("keepalive ping failed", "error", err)
		return
	}

	s.mu.Lock()
	s.lastPingAt = s.clock()
	s.mu.Unlock()

	s.config.Logger.Debug("keepalive ping ok")
}
