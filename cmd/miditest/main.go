package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver

	"go-pianoroll/midi"
	"go-pianoroll/midifile"
	"go-pianoroll/playback"
)

var rootCmd = &cobra.Command{
	Use:          "miditest",
	Short:        "MIDI test scripts",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all MIDI ports",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return listPorts()
			},
		},
		&cobra.Command{
			Use:   "poll",
			Short: "Watch for device changes",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				pollDevices()
			},
		},
		&cobra.Command{
			Use:   "play <file> [port]",
			Short: "Play a file through the scheduler (prints messages if no port)",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				port := ""
				if len(args) > 1 {
					port = args[1]
				}
				return play(args[0], port)
			},
		},
		&cobra.Command{
			Use:   "listen <port>",
			Short: "Print notes from an input port",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return listen(args[0])
			},
		},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func listPorts() error {
	fmt.Println("(waiting up to 3 seconds...)")
	ports, err := midi.ListPorts(context.Background(), 3*time.Second)
	if err != nil {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return err
	}
	fmt.Println("=== MIDI Input Ports ===")
	for i, p := range ports.Ins {
		fmt.Printf("  %d: %s\n", i, p)
	}
	fmt.Println("\n=== MIDI Output Ports ===")
	for i, p := range ports.Outs {
		fmt.Printf("  %d: %s\n", i, p)
	}
	return nil
}

func pollDevices() {
	fmt.Println("Watching for device changes. Ctrl+C to exit.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	w := midi.NewPortWatcher()
	go w.Run(ctx)
	for ev := range w.Events() {
		fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
		fmt.Printf("  Added:   %v\n", ev.Added)
		fmt.Printf("  Removed: %v\n", ev.Removed)
		fmt.Printf("  Inputs:  %v\n", ev.Ports.Ins)
		fmt.Printf("  Outputs: %v\n", ev.Ports.Outs)
	}
}

// play runs the scheduler against the wall clock at 60 frames a second
func play(path, port string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := midifile.Decode(data)
	if err != nil {
		return err
	}
	tl := f.ToTimeline()
	fmt.Printf("%s: %d notes, %d ppqn, %.1f bpm\n", path, len(tl.Notes), tl.PPQN, tl.BPM)

	var sink midi.Sink = midi.SinkFunc(func(msg gomidi.Message) error {
		fmt.Println(" ", msg)
		return nil
	})
	if port != "" {
		ps := midi.NewPortSink(port)
		defer ps.Close()
		sink = ps
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	done := make(chan struct{})
	sched := playback.New(tl, sink)
	sched.SetOnStop(func() { close(done) })
	sched.Play()

	start := time.Now()
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			sched.SetOnStop(nil)
			sched.Stop()
			fmt.Println("\nstopped")
			return nil
		case <-done:
			fmt.Printf("done in %s\n", time.Since(start).Round(time.Millisecond))
			return nil
		case now := <-ticker.C:
			sched.Frame(float64(now.Sub(start).Microseconds()) / 1000)
		}
	}
}

func listen(port string) error {
	events := make(chan midi.NoteEvent, 64)
	stopListen, err := midi.ListenExternal(port, events)
	if err != nil {
		return err
	}
	defer stopListen()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	fmt.Printf("Listening on %s. Ctrl+C to exit.\n", port)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			state := "off"
			if ev.On {
				state = "on "
			}
			fmt.Printf("  ch%-2d %s %-4s vel %d\n", ev.Channel+1, state, midi.NoteName(ev.Note), ev.Velocity)
		}
	}
}
