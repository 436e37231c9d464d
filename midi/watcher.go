package midi

import (
	"context"
	"slices"
	"time"

	"go-pianoroll/debug"
)

// PortEvent reports a change in the set of available ports
type PortEvent struct {
	Ports   Ports
	Added   []string
	Removed []string
}

// PortWatcher polls the driver for hot-plugged devices
type PortWatcher struct {
	events   chan PortEvent
	pollRate time.Duration
	timeout  time.Duration
	scan     func() Ports
	last     Ports
}

func NewPortWatcher() *PortWatcher {
	return &PortWatcher{
		events:   make(chan PortEvent, 16),
		pollRate: time.Second,
		timeout:  3 * time.Second,
		scan:     scanPorts,
	}
}

// Events returns a channel of port changes; it is closed when Run returns
func (w *PortWatcher) Events() <-chan PortEvent {
	return w.events
}

// Run starts the polling loop (blocking - run in goroutine)
func (w *PortWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()
	defer close(w.events)

	w.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *PortWatcher) poll(ctx context.Context) {
	p, err := listWith(ctx, w.timeout, w.scan)
	if err != nil {
		// hung driver: skip this scan
		debug.LogEvery(30, "midi", "port scan failed", "err", err)
		return
	}
	ev, changed := diffPorts(w.last, p)
	w.last = p
	if !changed {
		return
	}
	select {
	case w.events <- ev:
	default:
	}
}

func diffPorts(old, cur Ports) (PortEvent, bool) {
	ev := PortEvent{Ports: cur}
	if old.Equal(cur) {
		return ev, false
	}
	before := slices.Concat(old.Ins, old.Outs)
	now := slices.Concat(cur.Ins, cur.Outs)
	for _, n := range now {
		if !slices.Contains(before, n) && !slices.Contains(ev.Added, n) {
			ev.Added = append(ev.Added, n)
		}
	}
	for _, n := range before {
		if !slices.Contains(now, n) && !slices.Contains(ev.Removed, n) {
			ev.Removed = append(ev.Removed, n)
		}
	}
	return ev, true
}
