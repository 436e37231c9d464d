// Package playback fires the song's MIDI messages from animation frames.
// There is no timer goroutine: the host calls Frame with a monotonic timestamp.
package playback

import (
	"math"
	"slices"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-pianoroll/debug"
	"go-pianoroll/midi"
	"go-pianoroll/timeline"
)

// Event is one entry of the lookahead list
type Event struct {
	Tick    int64
	Type    timeline.MessageType
	Channel uint8
	Pitch   uint8
	Msg     gomidi.Message
}

type key struct {
	pitch, channel uint8
}

// Scheduler plays a timeline into a sink. It only reads the timeline.
type Scheduler struct {
	tl   *timeline.Timeline
	sink midi.Sink

	playing  bool
	playhead float64
	events   []Event
	next     int

	lastMs  float64
	hasLast bool

	muted    [timeline.NumChannels]bool
	sounding map[key]int

	onStop func()
}

func New(tl *timeline.Timeline, sink midi.Sink) *Scheduler {
	if sink == nil {
		sink = midi.Discard
	}
	return &Scheduler{
		tl:       tl,
		sink:     sink,
		sounding: make(map[key]int),
	}
}

// SetTimeline swaps the song; playback is stopped first
func (s *Scheduler) SetTimeline(tl *timeline.Timeline) {
	s.Stop()
	s.tl = tl
	s.events = nil
}

func (s *Scheduler) SetSink(sink midi.Sink) {
	if sink == nil {
		sink = midi.Discard
	}
	s.sink = sink
}

// SetOnStop registers a callback for when playback ends (stop button or end of song)
func (s *Scheduler) SetOnStop(fn func()) {
	s.onStop = fn
}

func (s *Scheduler) IsPlaying() bool   { return s.playing }
func (s *Scheduler) Playhead() float64 { return s.playhead }
func (s *Scheduler) Events() []Event   { return s.events }

// Sounding reports how many notes are currently held
func (s *Scheduler) Sounding() int {
	n := 0
	for _, c := range s.sounding {
		n += c
	}
	return n
}

func (s *Scheduler) Play() {
	if s.playing {
		return
	}
	if s.playhead > float64(s.tl.SongDuration()) {
		s.playhead = 0
	}
	s.playing = true
	s.hasLast = false
	s.Rebuild()
	debug.Log("playback", "play", "tick", s.playhead, "events", len(s.events))
}

// Pause stops advancing but keeps the playhead where it is
func (s *Scheduler) Pause() {
	if !s.playing {
		return
	}
	s.playing = false
	s.releaseAll()
	debug.Log("playback", "pause", "tick", s.playhead)
}

// Stop silences everything, including an all-sound-off on every channel, and rewinds
func (s *Scheduler) Stop() {
	wasPlaying := s.playing
	s.playing = false
	s.releaseAll()
	for ch := range uint8(timeline.NumChannels) {
		s.send(midi.AllSoundOff(ch))
	}
	s.playhead = 0
	s.next = 0
	s.hasLast = false
	debug.Log("playback", "stop", "wasPlaying", wasPlaying)
	if s.onStop != nil {
		s.onStop()
	}
}

// Toggle plays or pauses
func (s *Scheduler) Toggle() {
	if s.playing {
		s.Pause()
	} else {
		s.Play()
	}
}

// Seek moves the playhead. While playing, held notes are released and the
// lookahead list is rebuilt so passed events are not fired again.
func (s *Scheduler) Seek(tick float64) {
	s.playhead = math.Max(0, tick)
	if s.playing {
		s.releaseAll()
		s.Rebuild()
	}
}

// Rebuild flattens the timeline into the lookahead list and skips what lies behind the playhead.
// Every structural edit made while playing must be followed by a Rebuild.
func (s *Scheduler) Rebuild() {
	msgs := s.tl.Messages()
	s.events = s.events[:0]
	for _, m := range msgs {
		ev := Event{Tick: m.Tick, Type: m.Type, Channel: m.Channel, Pitch: m.Pitch}
		switch m.Type {
		case timeline.NoteOnMsg:
			ev.Msg = gomidi.NoteOn(m.Channel, m.Pitch, m.Velocity)
		case timeline.NoteOffMsg:
			ev.Msg = gomidi.NoteOff(m.Channel, m.Pitch)
		default:
			ev.Msg = gomidi.Message(slices.Clone(m.Data))
			ev.Channel, _ = midi.Channel(ev.Msg)
		}
		s.events = append(s.events, ev)
	}
	s.next, _ = slices.BinarySearchFunc(s.events, s.playhead, func(e Event, t float64) int {
		if float64(e.Tick) < t {
			return -1
		}
		return 1
	})

	// a held voice survives only while a note still covers the playhead on its key
	for k, n := range s.sounding {
		if extra := n - s.covering(k); extra > 0 {
			s.releaseN(k, extra)
		}
	}
}

// covering counts the notes on k whose note-on has fired and whose note-off has not
func (s *Scheduler) covering(k key) int {
	n := 0
	for _, note := range s.tl.Notes {
		if note.Pitch == k.pitch && note.Channel == k.channel &&
			float64(note.Start) < s.playhead && s.playhead <= float64(note.End()) {
			n++
		}
	}
	return n
}

// Frame advances by the wall-clock time since the previous frame and fires every
// event in [playhead, playhead+elapsed). Returns how many messages were sent.
func (s *Scheduler) Frame(nowMs float64) int {
	if !s.playing {
		return 0
	}
	if !s.hasLast {
		s.lastMs, s.hasLast = nowMs, true
		return 0
	}
	elapsed := math.Max(0, nowMs-s.lastMs)
	s.lastMs = nowMs

	end := s.playhead + elapsed/1000*s.tl.TicksPerSecond()
	fired := 0
	for s.next < len(s.events) && float64(s.events[s.next].Tick) < end {
		if s.fire(s.events[s.next]) {
			fired++
		}
		s.next++
	}
	s.playhead = end
	debug.LogEvery(60, "playback", "frame", "tick", s.playhead)

	if s.playhead > float64(s.tl.SongDuration()) {
		s.Stop()
	}
	return fired
}

func (s *Scheduler) fire(e Event) bool {
	k := key{pitch: e.Pitch, channel: e.Channel}
	switch e.Type {
	case timeline.NoteOnMsg:
		if s.muted[e.Channel] {
			return false
		}
		s.sounding[k]++
	case timeline.NoteOffMsg:
		if s.sounding[k] == 0 {
			return false
		}
		s.sounding[k]--
		if s.sounding[k] == 0 {
			delete(s.sounding, k)
		}
	default:
		if ch, ok := midi.Channel(e.Msg); ok && s.muted[ch] {
			return false
		}
	}
	s.send(e.Msg)
	return true
}

func (s *Scheduler) send(msg gomidi.Message) {
	if err := s.sink.Send(msg); err != nil {
		debug.LogEvery(100, "playback", "send failed", "err", err)
	}
}

func (s *Scheduler) release(k key) {
	s.releaseN(k, s.sounding[k])
}

func (s *Scheduler) releaseN(k key, n int) {
	for range n {
		s.send(gomidi.NoteOff(k.channel, k.pitch))
	}
	if s.sounding[k] -= n; s.sounding[k] <= 0 {
		delete(s.sounding, k)
	}
}

func (s *Scheduler) releaseAll() {
	keys := make([]key, 0, len(s.sounding))
	for k := range s.sounding {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b key) int {
		if a.channel != b.channel {
			return int(a.channel) - int(b.channel)
		}
		return int(a.pitch) - int(b.pitch)
	})
	for _, k := range keys {
		s.release(k)
	}
}

// SetMuted suppresses a channel at fire time. Muting silences its held notes at once.
func (s *Scheduler) SetMuted(ch uint8, muted bool) {
	if int(ch) >= timeline.NumChannels {
		return
	}
	s.muted[ch] = muted
	if !muted {
		return
	}
	for k := range s.sounding {
		if k.channel == ch {
			s.release(k)
		}
	}
}

func (s *Scheduler) Muted(ch uint8) bool {
	return int(ch) < timeline.NumChannels && s.muted[ch]
}
