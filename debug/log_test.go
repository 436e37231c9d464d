package debug

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogWritesOnlyWhenEnabled(t *testing.T) {
	Log("test", "dropped")

	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	Log("editor", "undo", "depth", 3)
	assert.Contains(t, buf.String(), "editor")
	assert.Contains(t, buf.String(), "undo")
	assert.Contains(t, buf.String(), "depth=3")
	assert.NotContains(t, buf.String(), "dropped")
}

func TestLogEvery(t *testing.T) {
	var buf bytes.Buffer
	EnableWriter(&buf)
	defer Disable()

	for range 5 {
		LogEvery(5, "frame", "tick")
	}
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("tick")))
}

func TestContextLogger(t *testing.T) {
	assert.Same(t, Logger(), FromContext(context.Background()))
	l := Logger().WithPrefix("x")
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
}
