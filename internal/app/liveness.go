package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/quyht-dev/tienlen/internal/protocol"
)

const (
	DefaultPingInterval   = 5 * time.Second
	DefaultSweepInterval  = 500 * time.Millisecond
	DefaultSessionTimeout = 15 * time.Second
)

// Monitor pings every session and closes the ones that went quiet.
type Monitor struct {
	sessions      *Sessions
	pingInterval  time.Duration
	sweepInterval time.Duration
	timeout       time.Duration
	log           *slog.Logger
	now           func() time.Time
}

// NewMonitor falls back to the default for any interval that is not positive.
func NewMonitor(sessions *Sessions, pingInterval, sweepInterval, timeout time.Duration, logger *slog.Logger) *Monitor {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	if timeout <= 0 {
		timeout = DefaultSessionTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		sessions:      sessions,
		pingInterval:  pingInterval,
		sweepInterval: sweepInterval,
		timeout:       timeout,
		log:           logger,
		now:           time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ping := time.NewTicker(m.pingInterval)
	sweep := time.NewTicker(m.sweepInterval)
	defer ping.Stop()
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			m.PingAll()
		case <-sweep.C:
			m.Sweep()
		}
	}
}

// PingAll sends a ping carrying the current unix millis to every session.
func (m *Monitor) PingAll() {
	raw, _ := json.Marshal(protocol.PingPayload{T: m.now().UnixMilli()})
	for _, s := range m.sessions.All() {
		if err := s.Transport().SendReply(protocol.TypePing, nil, raw); err != nil {
			m.log.Debug("ping not delivered", "player", s.ID, "error", err)
		}
	}
}

// Sweep closes sessions idle for longer than the timeout and returns how many.
func (m *Monitor) Sweep() int {
	cutoff := m.now().Add(-m.timeout)
	n := 0
	for _, s := range m.sessions.All() {
		if s.LastSeen().Before(cutoff) {
			m.log.Info("session timed out", "player", s.ID, "lastSeen", s.LastSeen())
			_ = s.Close()
			n++
		}
	}
	return n
}
