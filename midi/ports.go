package midi

import (
	"context"
	"errors"
	"slices"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// ErrPortsTimeout is returned when the driver does not answer in time (CoreMIDI can hang)
var ErrPortsTimeout = errors.New("timed out listing MIDI ports")

// Ports is a snapshot of the available port names
type Ports struct {
	Ins  []string
	Outs []string
}

// Equal compares port lists in order
func (p Ports) Equal(o Ports) bool {
	return slices.Equal(p.Ins, o.Ins) && slices.Equal(p.Outs, o.Outs)
}

func (p Ports) HasIn(name string) bool {
	return slices.Contains(p.Ins, name)
}

func (p Ports) HasOut(name string) bool {
	return slices.Contains(p.Outs, name)
}

func scanPorts() Ports {
	var p Ports
	for _, in := range gomidi.GetInPorts() {
		p.Ins = append(p.Ins, in.String())
	}
	for _, out := range gomidi.GetOutPorts() {
		p.Outs = append(p.Outs, out.String())
	}
	return p
}

// ListPorts asks the driver for its ports, giving up after timeout
func ListPorts(ctx context.Context, timeout time.Duration) (Ports, error) {
	return listWith(ctx, timeout, scanPorts)
}

func listWith(ctx context.Context, timeout time.Duration, scan func() Ports) (Ports, error) {
	ch := make(chan Ports, 1)
	go func() {
		ch <- scan()
	}()

	select {
	case p := <-ch:
		return p, nil
	case <-time.After(timeout):
		return Ports{}, ErrPortsTimeout
	case <-ctx.Done():
		return Ports{}, ctx.Err()
	}
}
