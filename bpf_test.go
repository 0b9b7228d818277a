//go:build linux

package uevent

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompileFilter_EmptySpecInstallsNothing(t *testing.T) {
	prog, err := compileFilter(NewFilterSpec())
	assert.NoError(t, err)
	assert.Nil(t, prog)
}

func TestCompileFilter_InstructionCount(t *testing.T) {
	f := NewFilterSpec()
	assert.NoError(t, f.AddMatchTag("systemd"))
	assert.NoError(t, f.AddMatchTag("seat"))
	assert.NoError(t, f.AddMatchSubsystemDevtype("block", "", false))
	assert.NoError(t, f.AddMatchSubsystemDevtype("net", "wlan", true))

	prog, err := compileFilter(f)
	assert.NoError(t, err)

	// magic gate (3) + tags (6*2 + 1) + subsystems (3 + 5 + 1) + trailer (1)
	want := 3 + (6*2 + 1) + (3 + 5 + 1) + 1
	assert.Len(t, prog, want)
}

func TestCompileFilter_TooBigBeforePartialEmit(t *testing.T) {
	f := NewFilterSpec()
	// Every subsystem-only entry costs 3 instructions; force past the cap.
	for i := 0; i < 200; i++ {
		assert.NoError(t, f.AddMatchSubsystemDevtype(fmt.Sprintf("subsystem%d", i), "", false))
	}

	prog, err := compileFilter(f)
	assert.Nil(t, prog)
	assert.Error(t, err)
	assert.Equal(t, KindTooBig, err.(*Error).Kind)
}

func TestCompileFilter_TagOnly(t *testing.T) {
	f := NewFilterSpec()
	assert.NoError(t, f.AddMatchTag("seat"))

	prog, err := compileFilter(f)
	assert.NoError(t, err)
	// magic gate (3) + tag block (6 + 1) + trailer (1)
	assert.Len(t, prog, 3+7+1)
}
