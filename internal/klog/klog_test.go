package klog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func withCapturedOutput(t *testing.T, level Level, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetOutput(nil)
		SetLevel(LevelInfo)
	})
	fn()
	return buf.String()
}

func TestInfofWritesPrefixedLine(t *testing.T) {
	out := withCapturedOutput(t, LevelInfo, func() {
		Infof("disk %d ready\n", 0)
	})
	require.Contains(t, out, "[inf]")
	require.Contains(t, out, "disk 0 ready")
}

func TestDebugfSuppressedBelowMinLevel(t *testing.T) {
	out := withCapturedOutput(t, LevelInfo, func() {
		Debugf("should not appear")
	})
	require.Empty(t, out)
}

func TestWarnfPassesAtWarnLevel(t *testing.T) {
	out := withCapturedOutput(t, LevelWarn, func() {
		Warnf("low memory")
	})
	require.Contains(t, out, "[wrn]")
}

func TestPanicfLogsThenPanics(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	defer func() {
		SetOutput(nil)
		SetLevel(LevelInfo)
		r := recover()
		require.NotNil(t, r)
		require.True(t, strings.Contains(buf.String(), "[!!!]"))
	}()
	Panicf("fatal: %s", "out of memory")
}

func TestLevelStringUnknownFallsBack(t *testing.T) {
	require.Equal(t, "???", Level(99).String())
}
