package uevent

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOsError_Nil(t *testing.T) {
	assert.Nil(t, osError("op", nil))
}

func TestOsError_WrapsErrno(t *testing.T) {
	err := osError("bind", syscall.EPERM)
	assert.Equal(t, KindOsError, err.Kind)
	assert.Equal(t, "bind", err.Op)
	assert.ErrorIs(t, err, syscall.EPERM)
}

func TestAgain_IsRecoverable(t *testing.T) {
	err := again("receiveOnce")
	assert.Equal(t, KindAgain, err.Kind)
	assert.True(t, IsAgain(err))
}

func TestIsAgain_FalseForOtherErrors(t *testing.T) {
	assert.False(t, IsAgain(osError("op", syscall.EINVAL)))
	assert.False(t, IsAgain(errors.New("unrelated")))
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindInvalidArgument:  "invalid argument",
		KindOutOfMemory:      "out of memory",
		KindTooBig:           "filter program too big",
		KindOsError:          "os error",
		KindAgain:            "again",
		KindTransportRefused: "transport refused",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}

func TestError_MessageIncludesOp(t *testing.T) {
	err := newErr("AddMatchTag", KindInvalidArgument, nil)
	assert.Contains(t, err.Error(), "AddMatchTag")
	assert.Contains(t, err.Error(), "invalid argument")
}
