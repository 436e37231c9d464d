package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-pianoroll/config"
	"go-pianoroll/debug"
	"go-pianoroll/midi"
	"go-pianoroll/project"
	"go-pianoroll/sequencer"
	"go-pianoroll/theme"
	"go-pianoroll/tui"
)

var flags struct {
	file    string
	out     string
	in      string
	port    string
	project string
	debug   bool
}

var rootCmd = &cobra.Command{
	Use:   "go-pianoroll",
	Short: "Piano roll MIDI editor for the terminal",
	Long: `Edit notes with the mouse, play them through a MIDI output, and save
Standard MIDI Files. Settings live in ~/.config/go-pianoroll/config.yaml.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.BoolVar(&flags.debug, "debug", false, "write a debug log to ~/.config/go-pianoroll/debug.log")

	f = rootCmd.Flags()
	f.StringVarP(&flags.file, "file", "f", "", "MIDI file to open")
	f.StringVarP(&flags.out, "out", "o", "", "file ctrl+e exports to")
	f.StringVar(&flags.in, "in", "", "MIDI input port for key highlighting")
	f.StringVar(&flags.port, "port", "", "MIDI output port")
	f.StringVarP(&flags.project, "project", "p", "", "project folder ctrl+s saves into")

	cobra.OnInitialize(func() {
		if !flags.debug {
			return
		}
		if err := debug.Enable(""); err != nil {
			fmt.Fprintln(os.Stderr, "debug log:", err)
		}
	})
}

func main() {
	defer debug.Disable()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flags.port != "" {
		cfg.MIDI.Output = flags.port
	}
	if flags.in != "" {
		cfg.MIDI.Input = flags.in
	}

	sink := midi.NewPortSink(cfg.MIDI.Output)
	defer sink.Close()

	mgr := sequencer.New(cfg, sink)
	if flags.file != "" {
		data, err := os.ReadFile(flags.file)
		if err != nil {
			return fault.Wrap(err, fmsg.With("open "+flags.file))
		}
		if err := mgr.Import(data); err != nil {
			return err
		}
	}

	store, err := project.Open()
	if err != nil {
		debug.Log("main", "no project store", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher := midi.NewPortWatcher()
	go watcher.Run(ctx)

	model := tui.NewModel(tui.Options{
		Manager: mgr,
		Config:  cfg,
		Theme:   theme.Load(cfg.Theme.Palette),
		Store:   store,
		Project: projectName(),
		OutPath: flags.out,
		Sink:    sink,
		Watcher: watcher,
	})
	if err := model.OpenInput(); err != nil {
		fmt.Fprintln(os.Stderr, "MIDI input:", err)
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fault.Wrap(err, fmsg.With("terminal"))
	}
	return nil
}

// projectName is --project, else the opened file's name
func projectName() string {
	if flags.project != "" {
		return flags.project
	}
	if flags.file != "" {
		return strings.TrimSuffix(filepath.Base(flags.file), filepath.Ext(flags.file))
	}
	return project.DefaultName
}
