package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"myvoice/tray"
)

func TestTraySinkMirrorsDictation(t *testing.T) {
	tr := tray.New(tray.Callbacks{}, false)
	rs := newRecordingSink()
	sink := multiSink{rs, traySink{tr}}

	sink.StateChanged(stateRecording)
	assert.Equal(t, tray.StateRecording, tr.State())
	sink.StateChanged(stateStopping)
	assert.Equal(t, tray.StateStopping, tr.State())
	sink.StateChanged(stateIdle)
	assert.Equal(t, tray.StateIdle, tr.State())

	sink.Error(errors.New("stream dropped"))
	assert.True(t, strings.HasSuffix(tr.Tooltip(), "stream dropped"))

	states, _, errs := rs.snapshot()
	assert.Equal(t, []dictationState{stateRecording, stateStopping, stateIdle}, states)
	assert.Len(t, errs, 1)
}
