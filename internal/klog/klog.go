// Package klog is the kernel console sink. It exists before any scheduler,
// process, or device is initialized, so it deliberately has no dependency
// beyond fmt/io.
package klog

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelPanic
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "dbg"
	case LevelInfo:
		return "inf"
	case LevelWarn:
		return "wrn"
	case LevelPanic:
		return "!!!"
	default:
		return "???"
	}
}

// Console is a leveled writer to the kernel console. The package-level
// console writes to os.Stdout at LevelInfo; a zero Console has no
// writer and a LevelDebug minimum.
type Console struct {
	mu  sync.Mutex
	out io.Writer
	min Level
}

var global = &Console{out: os.Stdout, min: LevelInfo}

// SetOutput redirects the global console, e.g. to a test buffer.
func SetOutput(w io.Writer) { global.mu.Lock(); global.out = w; global.mu.Unlock() }

// SetLevel sets the minimum level the global console prints.
func SetLevel(l Level) { global.mu.Lock(); global.min = l; global.mu.Unlock() }

func (c *Console) Printf(l Level, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l < c.min {
		return
	}
	fmt.Fprintf(c.out, "[%s] "+format, append([]interface{}{l}, args...)...)
}

func Debugf(format string, args ...interface{}) { global.Printf(LevelDebug, format, args...) }
func Infof(format string, args ...interface{})  { global.Printf(LevelInfo, format, args...) }
func Warnf(format string, args ...interface{})  { global.Printf(LevelWarn, format, args...) }

// Panicf logs at LevelPanic and panics. Kernel invariant violations are
// unrecoverable: a message then a deliberate halt, modeled here as a Go
// panic. Nothing in the kernel recovers it, so it ends the program.
func Panicf(format string, args ...interface{}) {
	global.Printf(LevelPanic, format, args...)
	panic(fmt.Sprintf(format, args...))
}
