package midi

import (
	"slices"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	gomidi "gitlab.com/gomidi/midi/v2"

	"go-pianoroll/debug"
)

// Sink accepts 1-3 byte MIDI messages from the editor, the keyboard and playback
type Sink interface {
	Send(msg gomidi.Message) error
}

type SinkFunc func(msg gomidi.Message) error

func (f SinkFunc) Send(msg gomidi.Message) error {
	return f(msg)
}

// Discard drops everything
var Discard Sink = SinkFunc(func(gomidi.Message) error { return nil })

// Recorder keeps every message it is sent
type Recorder struct {
	mu       sync.Mutex
	messages []gomidi.Message
}

func (r *Recorder) Send(msg gomidi.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, slices.Clone(msg))
	return nil
}

// Messages returns a copy of what was recorded
func (r *Recorder) Messages() []gomidi.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.messages)
}

// Notes returns the recorded note events in order
func (r *Recorder) Notes() []NoteEvent {
	var out []NoteEvent
	for _, m := range r.Messages() {
		if ev, ok := ParseNote(m); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

// PortSink sends to a named output port, opening it on first use
type PortSink struct {
	mu      sync.RWMutex
	port    string
	senders map[string]func(gomidi.Message) error
}

func NewPortSink(port string) *PortSink {
	return &PortSink{
		port:    port,
		senders: make(map[string]func(gomidi.Message) error),
	}
}

func (p *PortSink) SetPort(port string) {
	p.mu.Lock()
	p.port = port
	p.mu.Unlock()
}

func (p *PortSink) Port() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.port
}

// Send drops the message when no port is configured
func (p *PortSink) Send(msg gomidi.Message) error {
	sender, err := p.getSender(p.Port())
	if err != nil || sender == nil {
		return err
	}
	return sender(msg)
}

// getSender returns a sender for the given port name, lazily opening it
func (p *PortSink) getSender(portName string) (func(gomidi.Message) error, error) {
	if portName == "" {
		return nil, nil
	}

	p.mu.RLock()
	if sender, ok := p.senders[portName]; ok {
		p.mu.RUnlock()
		return sender, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if sender, ok := p.senders[portName]; ok {
		return sender, nil
	}

	port, err := gomidi.FindOutPort(portName)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("find out port "+portName, "MIDI output "+portName+" is not available"))
	}
	sender, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fault.Wrap(err, fmsg.With("open out port "+portName))
	}
	debug.Log("midi", "opened output", "port", portName)
	p.senders[portName] = sender
	return sender, nil
}

// Close forgets opened senders; the driver closes the ports on exit
func (p *PortSink) Close() {
	p.mu.Lock()
	clear(p.senders)
	p.mu.Unlock()
}
