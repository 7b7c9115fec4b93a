// Package kconfig loads boot-time kernel parameters. Rather than fixed
// constants, this hosted build makes them configurable via a TOML boot
// config, the way an init system would pass kernel parameters, while
// keeping the same sizing as sensible defaults.
package kconfig

import (
	"github.com/BurntSushi/toml"
)

const (
	PageSize = 4096

	// ProgramVirtualAddress is the fixed user-image load address.
	ProgramVirtualAddress = 0x0040_0000
	// UserStackTop is the fixed top of the user stack, growing down.
	UserStackTop  = 0x003F_F000
	UserStackSize = 256 * 1024
	// KernelVirtualBase is the fixed high virtual base the kernel
	// mapping occupies in every page directory.
	KernelVirtualBase = 0x8000_0000
)

// Config holds parameters resolved at boot.
type Config struct {
	HeapSizeBytes  int    `toml:"heap_size_bytes"`
	MaxProcesses   int    `toml:"max_processes"`
	MaxOpenFiles   int    `toml:"max_open_files"`
	BufCacheSize   int    `toml:"buf_cache_size"`
	DiskImagePath  string `toml:"disk_image_path"`
	TickHz         int    `toml:"tick_hz"`
	TimeSliceTicks int    `toml:"time_slice_ticks"`
}

// Default returns conservative defaults: a generous process count
// ceiling, and fd table sizing capped to something sane for the hosted
// simulator rather than RLIM_INFINITY.
func Default() Config {
	return Config{
		HeapSizeBytes:  64 << 20,
		MaxProcesses:   1 << 10,
		MaxOpenFiles:   512,
		BufCacheSize:   256,
		DiskImagePath:  "",
		TickHz:         100,
		TimeSliceTicks: 1,
	}
}

// Load reads a TOML boot config file, applying it over Default() so a
// partial file only overrides the fields it sets.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
