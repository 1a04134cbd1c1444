// Package activity tells the sync engine whether the local user is at the
// keyboard and whether they are in the middle of an edit.
//
// Monitor gates optional background work (periodic remote pulls); it never
// gates user-initiated writes. Guard suppresses inbound overwrites while an
// editor is open.
package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Defaults for the inactivity check.
const (
	DefaultCheckInterval = 60 * time.Second
	DefaultThreshold     = 5 * time.Minute
)

// Signal is a user-interaction event reported by the embedding UI.
type Signal int

// Interaction signals.
const (
	SignalPointerMove Signal = iota
	SignalKeyPress
	SignalScroll
	SignalClick
	SignalFocus
	SignalBlur
)

var signalNames = [...]string{
	SignalPointerMove: "pointer_move",
	SignalKeyPress:    "key_press",
	SignalScroll:      "scroll",
	SignalClick:       "click",
	SignalFocus:       "focus",
	SignalBlur:        "blur",
}

func (s Signal) String() string {
	if s < 0 || int(s) >= len(signalNames) {
		return "unknown"
	}

	return signalNames[s]
}

// Monitor tracks the last interaction time and derives an active flag on a
// fixed check interval. Safe for concurrent use.
type Monitor struct {
	threshold     time.Duration
	checkInterval time.Duration
	logger        *slog.Logger
	nowFunc       func() time.Time // injectable for deterministic tests

	mu       sync.Mutex
	last     time.Time
	active   bool
	onChange func(active bool)
}

// NewMonitor creates a Monitor that starts out active. Zero durations use
// the defaults.
func NewMonitor(threshold, checkInterval time.Duration, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	if checkInterval <= 0 {
		checkInterval = DefaultCheckInterval
	}

	m := &Monitor{
		threshold:     threshold,
		checkInterval: checkInterval,
		logger:        logger,
		nowFunc:       time.Now,
		active:        true,
	}
	m.last = m.nowFunc()

	return m
}

// OnChange registers fn to be called (outside the monitor's lock) whenever
// Check flips the active flag.
func (m *Monitor) OnChange(fn func(active bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onChange = fn
}

// Record notes an interaction. Blur pushes the last-interaction time back by
// half the threshold, so a window without focus goes inactive sooner.
func (m *Monitor) Record(sig Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	if sig == SignalBlur {
		m.last = now.Add(-m.threshold / 2)
		return
	}

	m.last = now
}

// Check recomputes the active flag from the elapsed time since the last
// interaction and returns it.
func (m *Monitor) Check() bool {
	m.mu.Lock()
	active := m.nowFunc().Sub(m.last) < m.threshold
	changed := active != m.active
	m.active = active
	fn := m.onChange
	m.mu.Unlock()

	if changed {
		m.logger.Debug("user activity changed", slog.Bool("active", active))

		if fn != nil {
			fn(active)
		}
	}

	return active
}

// IsActive returns the flag computed by the most recent Check.
func (m *Monitor) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.active
}

// Run calls Check every check interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Check()
		}
	}
}
