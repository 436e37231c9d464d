package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2/smf"

	"go-pianoroll/midi"
	"go-pianoroll/midifile"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print what a MIDI file contains",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fault.Wrap(err, fmsg.With("open "+args[0]))
		}
		return inspect(cmd, data)
	},
}

func inspect(cmd *cobra.Command, data []byte) error {
	f, err := midifile.Decode(data)
	if err != nil {
		return err
	}
	tl := f.ToTimeline()
	out := cmd.OutOrStdout()

	seconds := float64(tl.SongDuration()) / tl.TicksPerSecond()
	fmt.Fprintf(out, "name:     %s\n", f.Name)
	fmt.Fprintf(out, "ppqn:     %d\n", tl.PPQN)
	fmt.Fprintf(out, "bpm:      %.2f\n", tl.BPM)
	fmt.Fprintf(out, "length:   %d ticks (%.1fs)\n", tl.SongDuration(), seconds)
	fmt.Fprintf(out, "notes:    %d\n", len(tl.Notes))
	fmt.Fprintf(out, "other:    %d\n", len(tl.Others))

	var channels [16]int
	lo, hi := uint8(127), uint8(0)
	for _, n := range tl.Notes {
		channels[n.Channel]++
		lo, hi = min(lo, n.Pitch), max(hi, n.Pitch)
	}
	if len(tl.Notes) > 0 {
		fmt.Fprintf(out, "range:    %s-%s\n", midi.NoteName(lo), midi.NoteName(hi))
	}
	for ch, count := range channels {
		if count > 0 {
			fmt.Fprintf(out, "  ch%-2d    %d notes\n", ch+1, count)
		}
	}

	// track names and time signatures come from gomidi's reader
	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		fmt.Fprintln(out, "tracks:   unreadable:", err)
		return nil
	}
	for i, track := range s.Tracks {
		var name string
		var num, denomPow, clocks, thirtySeconds uint8
		sig := ""
		for _, ev := range track {
			if name == "" {
				ev.Message.GetMetaTrackName(&name)
			}
			if sig == "" && ev.Message.GetMetaTimeSig(&num, &denomPow, &clocks, &thirtySeconds) {
				sig = fmt.Sprintf(" %d/%d", num, 1<<denomPow)
			}
		}
		fmt.Fprintf(out, "track %d:  %q%s, %d events\n", i, name, sig, len(track))
	}
	return nil
}
