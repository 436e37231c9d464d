package config

import (
	"os"
	"path/filepath"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"gopkg.in/yaml.v3"

	"go-pianoroll/timeline"
)

// TimelineConfig holds the defaults for a new song
type TimelineConfig struct {
	PPQN int     `yaml:"ppqn"`
	BPM  float64 `yaml:"bpm"`
}

// EditorConfig stores piano roll preferences. Sizes are logical pixels.
type EditorConfig struct {
	BeatWidth   float64 `yaml:"beatWidth"`
	NoteHeight  float64 `yaml:"noteHeight"`
	NoteSize    string  `yaml:"noteSize"`
	UndoDepth   int     `yaml:"undoDepth"`
	EditChannel int     `yaml:"editChannel"` // 0-15
	Mode        string  `yaml:"mode"`        // add, select, pan
}

// KeyboardConfig stores the virtual piano settings
type KeyboardConfig struct {
	KeyWidth    float64 `yaml:"keyWidth"`
	VelocityMin int     `yaml:"velocityMin"`
	VelocityMax int     `yaml:"velocityMax"`
}

// DrawerConfig stores the settings panel state
type DrawerConfig struct {
	Height         float64 `yaml:"height"`
	AutoScroll     bool    `yaml:"autoScroll"`
	FollowPlayhead bool    `yaml:"followPlayhead"`
	Program        int     `yaml:"program"`
	Volume         int     `yaml:"volume"`
}

// MIDIConfig names the ports to open
type MIDIConfig struct {
	Output string `yaml:"output,omitempty"`
	Input  string `yaml:"input,omitempty"`
}

// ThemeConfig points at an optional GIMP palette
type ThemeConfig struct {
	Palette string `yaml:"palette,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	Timeline TimelineConfig `yaml:"timeline"`
	Editor   EditorConfig   `yaml:"editor"`
	Keyboard KeyboardConfig `yaml:"keyboard"`
	Drawer   DrawerConfig   `yaml:"drawer"`
	MIDI     MIDIConfig     `yaml:"midi"`
	Theme    ThemeConfig    `yaml:"theme"`

	path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Timeline: TimelineConfig{
			PPQN: timeline.DefaultPPQN,
			BPM:  timeline.DefaultBPM,
		},
		Editor: EditorConfig{
			BeatWidth:  64,
			NoteHeight: 16,
			NoteSize:   "1/8",
			UndoDepth:  timeline.DefaultUndoDepth,
			Mode:       "add",
		},
		Keyboard: KeyboardConfig{
			KeyWidth:    48,
			VelocityMin: 40,
			VelocityMax: 127,
		},
		Drawer: DrawerConfig{
			Height:         160,
			AutoScroll:     true,
			FollowPlayhead: true,
			Volume:         100,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "go-pianoroll"), nil
}

// ConfigPath returns the full path to config.yaml
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults; a missing file yields the defaults
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fault.Wrap(err, fmsg.With("read config"))
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fault.Wrap(err, fmsg.WithDesc("parse config", "The config file "+path+" is not valid YAML"))
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes the config back to where it was loaded from
func (c *Config) Save() error {
	path := c.path
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	return c.SaveFile(path)
}

func (c *Config) SaveFile(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fault.Wrap(err, fmsg.With("create config dir"))
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fault.Wrap(err, fmsg.With("encode config"))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fault.Wrap(err, fmsg.With("write config"))
	}
	c.path = path
	return nil
}

// Normalize pulls every value back into its valid range
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.Timeline.PPQN <= 0 || c.Timeline.PPQN > 0x7FFF {
		c.Timeline.PPQN = d.Timeline.PPQN
	}
	if c.Timeline.BPM <= 0 {
		c.Timeline.BPM = d.Timeline.BPM
	}
	c.Timeline.BPM = timeline.Clamp(c.Timeline.BPM, timeline.MinBPM, timeline.MaxBPM)

	c.Editor.BeatWidth = timeline.Clamp(c.Editor.BeatWidth, 8, 800)
	c.Editor.NoteHeight = timeline.Clamp(c.Editor.NoteHeight, 4, 64)
	if !timeline.ValidNoteSize(c.Editor.NoteSize) {
		c.Editor.NoteSize = d.Editor.NoteSize
	}
	if c.Editor.UndoDepth <= 0 {
		c.Editor.UndoDepth = d.Editor.UndoDepth
	}
	c.Editor.EditChannel = timeline.Clamp(c.Editor.EditChannel, 0, timeline.NumChannels-1)
	switch c.Editor.Mode {
	case "add", "select", "pan":
	default:
		c.Editor.Mode = d.Editor.Mode
	}

	c.Keyboard.KeyWidth = timeline.Clamp(c.Keyboard.KeyWidth, 16, 200)
	c.Keyboard.VelocityMin = timeline.Clamp(c.Keyboard.VelocityMin, 1, 127)
	c.Keyboard.VelocityMax = timeline.Clamp(c.Keyboard.VelocityMax, 1, 127)
	if c.Keyboard.VelocityMin > c.Keyboard.VelocityMax {
		c.Keyboard.VelocityMin, c.Keyboard.VelocityMax = c.Keyboard.VelocityMax, c.Keyboard.VelocityMin
	}

	c.Drawer.Height = timeline.Clamp(c.Drawer.Height, 64, 600)
	c.Drawer.Program = timeline.Clamp(c.Drawer.Program, 0, 127)
	c.Drawer.Volume = timeline.Clamp(c.Drawer.Volume, 0, 127)
}

// Path is where Save writes
func (c *Config) Path() string {
	return c.path
}
