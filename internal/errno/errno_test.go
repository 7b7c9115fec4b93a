package errno

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOkOnlyForZero(t *testing.T) {
	require.True(t, OK.Ok())
	require.False(t, EINVAL.Ok())
	require.False(t, EIO.Ok())
}

func TestErrnoMatchesUnderlyingValue(t *testing.T) {
	require.Equal(t, -22, EINVAL.Errno())
	require.Equal(t, 0, OK.Errno())
}

func TestErrorStringsForKnownCodes(t *testing.T) {
	require.Equal(t, "invalid argument", EINVAL.Error())
	require.Equal(t, "no such file or directory", ENOENT.Error())
	require.Equal(t, "success", OK.Error())
}

func TestErrorStringFallsBackForUnknownCode(t *testing.T) {
	unknown := Err(-999)
	require.Equal(t, "errno -999", unknown.Error())
}
