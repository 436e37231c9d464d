package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/bep/debounce"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-pianoroll/broker"
	"go-pianoroll/config"
	"go-pianoroll/debug"
	"go-pianoroll/geom"
	"go-pianoroll/midi"
	"go-pianoroll/project"
	"go-pianoroll/sequencer"
	"go-pianoroll/theme"
	"go-pianoroll/widgets"
)

// A terminal cell stands for this many logical pixels
const (
	cellW = 8.0
	cellH = 16.0

	headerRows = 1
	fps        = 60

	// wheel notches scroll three rows
	wheelStep = 3 * cellH
)

type Options struct {
	Manager *sequencer.Manager
	Config  *config.Config
	Theme   *theme.Theme
	Store   *project.Store
	Project string // project folder for ctrl+s
	OutPath string // file for ctrl+e
	Sink    *midi.PortSink
	Watcher *midi.PortWatcher
}

// hostState is shared by the value copies bubbletea makes of Model
type hostState struct {
	width, height int
	start         time.Time
	help          bool
	quitting      bool

	inPort    string
	stopInput func()
	external  chan midi.NoteEvent
	settings  chan struct{}
	debounced func(func())
}

type Model struct {
	Manager *sequencer.Manager
	Config  *config.Config
	Theme   *theme.Theme
	Store   *project.Store
	Project string
	OutPath string
	Sink    *midi.PortSink
	Watcher *midi.PortWatcher

	state *hostState
}

type frameMsg time.Time

type settingsMsg struct{}

type portMsg midi.PortEvent

type externalMsg midi.NoteEvent

func NewModel(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = theme.New(nil)
	}
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	st := &hostState{
		start:     time.Now(),
		external:  make(chan midi.NoteEvent, 64),
		settings:  make(chan struct{}, 1),
		debounced: debounce.New(500 * time.Millisecond),
		inPort:    opts.Config.MIDI.Input,
	}
	m := Model{
		Manager: opts.Manager,
		Config:  opts.Config,
		Theme:   opts.Theme,
		Store:   opts.Store,
		Project: opts.Project,
		OutPath: opts.OutPath,
		Sink:    opts.Sink,
		Watcher: opts.Watcher,
		state:   st,
	}

	// the debounced save runs on a timer goroutine; it only pokes the update loop
	m.Manager.SetOnSettingsChange(func() {
		st.debounced(func() {
			select {
			case st.settings <- struct{}{}:
			default:
			}
		})
	})
	return m
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/fps, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func listenSettings(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return settingsMsg{}
	}
}

func listenExternal(ch <-chan midi.NoteEvent) tea.Cmd {
	return func() tea.Msg {
		return externalMsg(<-ch)
	}
}

func listenPorts(w *midi.PortWatcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-w.Events()
		if !ok {
			return nil
		}
		return portMsg(ev)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(),
		listenSettings(m.state.settings),
		listenExternal(m.state.external),
		listenPorts(m.Watcher),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.state.width, m.state.height = msg.Width, msg.Height
		m.Manager.SetSize(float64(msg.Width)*cellW, float64(max(0, msg.Height-headerRows))*cellH)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		if ev, ok := toEvent(tea.MouseEvent(msg)); ok {
			m.Manager.HandleEvent(ev)
		}

	case frameMsg:
		m.Manager.Frame(float64(time.Time(msg).Sub(m.state.start).Microseconds()) / 1000)
		return m, tick()

	case settingsMsg:
		m.Manager.StoreSettings(m.Config)
		if err := m.Config.Save(); err != nil {
			debug.Log("tui", "config save failed", "err", err)
		}
		return m, listenSettings(m.state.settings)

	case externalMsg:
		m.Manager.HandleExternalNote(midi.NoteEvent(msg))
		return m, listenExternal(m.state.external)

	case portMsg:
		m.handlePorts(midi.PortEvent(msg))
		return m, listenPorts(m.Watcher)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.state.help {
		m.state.help = false
		return m, nil
	}
	switch key {
	case "q", "ctrl+c":
		m.state.quitting = true
		m.Manager.Stop()
		m.Manager.StoreSettings(m.Config)
		if err := m.Config.Save(); err != nil {
			debug.Log("tui", "config save failed", "err", err)
		}
		m.closeInput()
		return m, tea.Quit
	case "?":
		m.state.help = true
	case "ctrl+s":
		m.save()
	case "ctrl+e":
		m.export()
	default:
		// errors are already shown as notices
		_ = m.Manager.HandleKey(key)
	}
	return m, nil
}

func (m Model) save() {
	if m.Store == nil {
		m.Manager.Notify("No project store")
		return
	}
	data, err := m.Manager.Export()
	if err != nil {
		m.Manager.Notify(errorText(err))
		return
	}
	name, err := m.Store.Save(m.Project, data)
	if err != nil {
		debug.Log("tui", "save failed", "err", err)
		m.Manager.Notify("Save failed: " + errorText(err))
		return
	}
	m.Manager.Notify("Saved " + name)
}

func (m Model) export() {
	if m.OutPath == "" {
		m.Manager.Notify("No --out file")
		return
	}
	if err := writeFile(m.Manager, m.OutPath); err != nil {
		debug.Log("tui", "export failed", "path", m.OutPath, "err", err)
		m.Manager.Notify("Export failed: " + errorText(err))
		return
	}
	m.Manager.Notify("Exported " + filepath.Base(m.OutPath))
}

// errorText prefers the user-facing description over the error chain
func errorText(err error) string {
	if issue := fmsg.GetIssue(err); issue != "" {
		return issue
	}
	if chain := fault.Flatten(err); len(chain) > 0 {
		return chain[0].Message
	}
	return err.Error()
}

// writeFile exports the song to path
func writeFile(mgr *sequencer.Manager, path string) error {
	data, err := mgr.Export()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fault.Wrap(err, fmsg.With("write "+path))
	}
	return nil
}

// handlePorts follows the configured ports as devices come and go
func (m Model) handlePorts(ev midi.PortEvent) {
	out := m.Config.MIDI.Output
	for _, name := range ev.Added {
		switch {
		case name == out && m.Sink != nil:
			m.Sink.SetPort(out)
			m.Manager.Notify("MIDI out: " + name)
		case name == m.state.inPort && m.state.stopInput == nil:
			m.openInput()
		}
	}
	for _, name := range ev.Removed {
		switch {
		case name == out && m.Sink != nil:
			m.Sink.Close()
			m.Manager.Notify("MIDI out lost: " + name)
		case name == m.state.inPort:
			m.closeInput()
			m.Manager.Keyboard().ClearExternal()
		}
	}
}

// OpenInput starts relaying notes from the configured input port
func (m Model) OpenInput() error {
	return m.openInput()
}

func (m Model) openInput() error {
	if m.state.inPort == "" || m.state.stopInput != nil {
		return nil
	}
	stop, err := midi.ListenExternal(m.state.inPort, m.state.external)
	if err != nil {
		debug.Log("tui", "input unavailable", "port", m.state.inPort, "err", err)
		return err
	}
	m.state.stopInput = stop
	m.Manager.Notify("MIDI in: " + m.state.inPort)
	return nil
}

func (m Model) closeInput() {
	if m.state.stopInput != nil {
		m.state.stopInput()
		m.state.stopInput = nil
	}
}

// toEvent converts a terminal mouse event to a surface event. Positions are
// cell centres so edges on cell boundaries hit the cell the pointer is in.
func toEvent(me tea.MouseEvent) (broker.Event, bool) {
	pos := geom.Pt((float64(me.X)+0.5)*cellW, (float64(me.Y-headerRows)+0.5)*cellH)
	ev := broker.Event{Pos: pos, Mod: broker.Modifiers{Shift: me.Shift, Ctrl: me.Ctrl, Alt: me.Alt}}

	switch me.Button {
	case tea.MouseButtonWheelUp:
		ev.Kind, ev.DY = broker.Wheel, -wheelStep
		return ev, true
	case tea.MouseButtonWheelDown:
		ev.Kind, ev.DY = broker.Wheel, wheelStep
		return ev, true
	case tea.MouseButtonWheelLeft:
		ev.Kind, ev.DX = broker.Wheel, -wheelStep
		return ev, true
	case tea.MouseButtonWheelRight:
		ev.Kind, ev.DX = broker.Wheel, wheelStep
		return ev, true
	}

	switch me.Action {
	case tea.MouseActionPress:
		if me.Button != tea.MouseButtonLeft {
			return ev, false
		}
		ev.Kind = broker.PointerDown
	case tea.MouseActionMotion:
		ev.Kind = broker.PointerMove
	case tea.MouseActionRelease:
		ev.Kind = broker.PointerUp
	default:
		return ev, false
	}
	return ev, true
}

func (m Model) View() string {
	if m.state.quitting {
		return ""
	}
	if m.state.help {
		return m.helpView()
	}

	var out strings.Builder
	out.WriteString(m.header())
	out.WriteString("\n")
	rows := max(0, m.state.height-headerRows)
	out.WriteString(paint(m.Manager, m.Theme, m.state.width, rows).String())
	return out.String()
}

func (m Model) header() string {
	mgr := m.Manager
	ed := mgr.Editor()
	tl := mgr.Timeline()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	noticeStyle := lipgloss.NewStyle().Foreground(m.Theme.FG()).Background(m.Theme.Muted()).Padding(0, 1)

	state := "STOP"
	if mgr.Scheduler().IsPlaying() {
		state = "PLAY"
	}
	beat := mgr.Scheduler().Playhead() / float64(tl.PPQN)
	bar, inBar := int(beat)/4+1, int(beat)%4+1

	line := headerStyle.Render(fmt.Sprintf("go-pianoroll  %s  %3.0fbpm  %d.%d", state, tl.BPM, bar, inBar)) +
		dimStyle.Render(fmt.Sprintf("  %s  %s  ch%d  notes:%d sel:%d  ?:help",
			ed.Mode(), ed.NoteSize(), ed.Channel()+1, len(tl.Notes), tl.SelectionLen()))
	if n := mgr.Notice(); n != "" {
		line += "  " + noticeStyle.Render(n)
	}
	return line
}

func (m Model) helpView() string {
	help := widgets.RenderKeyHelp([]widgets.KeySection{
		{Title: "Edit", Keys: []widgets.KeyBinding{
			{Key: "1 2 3", Desc: "add / select / pan mode"},
			{Key: "del", Desc: "delete selection"},
			{Key: "ctrl+z/y", Desc: "undo / redo"},
			{Key: "ctrl+a", Desc: "select all"},
			{Key: "esc", Desc: "clear selection"},
			{Key: "arrows", Desc: "move selection (shift: octave / beat)"},
			{Key: "+ -", Desc: "zoom"},
		}},
		{Title: "Transport", Keys: []widgets.KeyBinding{
			{Key: "space", Desc: "play / pause"},
			{Key: "home", Desc: "stop and rewind"},
		}},
		{Title: "File", Keys: []widgets.KeyBinding{
			{Key: "ctrl+s", Desc: "save to project"},
			{Key: "ctrl+e", Desc: "export to --out"},
			{Key: "q", Desc: "quit"},
		}},
	})
	legend := strings.Join([]string{
		widgets.RenderLegendItem(m.Theme.RGB(theme.RoleAccent), "note", "soft"),
		widgets.RenderLegendItem(m.Theme.RGB(theme.RolePlayhead), "note", "loud"),
		widgets.RenderLegendItem(m.Theme.RGB(theme.RoleSelected), "note", "selected"),
	}, "\n")
	return "\n" + help + "\n\n" + legend + "\n\nany key to close"
}
