package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForEntityAddsField(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)

	ForEntity("갈비둥지").Info().Int("collected", 12).Msg("harvest finished")

	out := buf.String()
	// console output quotes non-ASCII values
	assert.Contains(t, out, `entity="갈비둥지"`)
	assert.Contains(t, out, "collected=12")
	assert.Contains(t, out, "harvest finished")
}

func TestLogErrorIncludesComponent(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf)

	LogError("sink", errors.New("disk full"), "save %s", "a.csv")

	out := buf.String()
	assert.Contains(t, out, "component=sink")
	assert.Contains(t, out, "disk full")
	assert.Contains(t, out, "save a.csv")
}
