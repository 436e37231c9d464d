package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pianoroll/midifile"
	"go-pianoroll/timeline"
)

func TestInspect(t *testing.T) {
	tl := timeline.New(96, 120)
	tl.Add(timeline.Note{Pitch: 60, Velocity: 100, Channel: 0, Start: 0, Duration: 96})
	tl.Add(timeline.Note{Pitch: 72, Velocity: 100, Channel: 9, Start: 96, Duration: 96})
	data, err := midifile.EncodeTimeline(tl)
	require.NoError(t, err)

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	require.NoError(t, inspect(cmd, data))

	out := buf.String()
	assert.Contains(t, out, "ppqn:     96")
	assert.Contains(t, out, "notes:    2")
	assert.Contains(t, out, "range:    C4-C5")
	assert.Contains(t, out, "ch10")
	assert.Contains(t, out, "track 0:")
}

func TestInspectRejectsGarbage(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	assert.Error(t, inspect(cmd, []byte("RIFF....")))
}
