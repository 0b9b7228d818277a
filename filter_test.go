package uevent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterSpec_AddMatchSubsystemDevtype_OverwritesOnRepeat(t *testing.T) {
	f := NewFilterSpec()
	assert.NoError(t, f.AddMatchSubsystemDevtype("block", "", false))
	assert.NoError(t, f.AddMatchSubsystemDevtype("block", "disk", true))

	assert.Len(t, f.subsystems, 1)
	assert.Equal(t, "disk", f.subsystems[0].devtype)
	assert.True(t, f.subsystems[0].hasDevtype)
}

func TestFilterSpec_AddMatchSubsystemDevtype_RejectsEmpty(t *testing.T) {
	f := NewFilterSpec()
	err := f.AddMatchSubsystemDevtype("", "", false)
	assert.Equal(t, KindInvalidArgument, err.(*Error).Kind)
}

func TestFilterSpec_AddMatchTag_Idempotent(t *testing.T) {
	f := NewFilterSpec()
	assert.NoError(t, f.AddMatchTag("seat"))
	assert.NoError(t, f.AddMatchTag("seat"))
	assert.Len(t, f.tagOrder, 1)
}

func TestFilterSpec_RemoveAll(t *testing.T) {
	f := NewFilterSpec()
	assert.NoError(t, f.AddMatchSubsystemDevtype("block", "", false))
	assert.NoError(t, f.AddMatchTag("seat"))
	f.RemoveAll()
	assert.True(t, f.empty())
}
