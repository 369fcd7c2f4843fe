// Package kconfig collects the boot-time tunables that the original
// kernel scatters as bare consts (MAX_SYMLINK_DEPTH, MAX_CPUS, reserved
// frame counts, the MMIO virtual window) into one parsed Config,
// generalizing biscuit/scripts/features.go's compile-time-toggle idea
// into a runtime-parsed struct so tests can exercise non-default
// configurations without rebuilding.
package kconfig

import (
	"strconv"
	"strings"
)

/// Config holds every boot-time tunable this kernel reads once during
/// bring-up. Zero-value Config is never used directly; callers start
/// from Default().
type Config struct {
	MaxCPUs           int
	MaxSymlinkDepth   int
	ReservedFrames    int
	KernelHeapPages   int
	MMIOWindowStart   uint64
	MMIOWindowSize    uint64
	WaitQueueCapacity int
	TimerHz           int
}

/// Default returns the tunables matching the numeric constants spec.md
/// names throughout (MAX_SYMLINK_DEPTH = 8, a nominal 1 kHz timer, and
/// reasonable single-node defaults for everything else).
func Default() Config {
	return Config{
		MaxCPUs:           256,
		MaxSymlinkDepth:   8,
		ReservedFrames:    256,
		KernelHeapPages:   64,
		MMIOWindowStart:   0xFFFF_C000_0000_0000,
		MMIOWindowSize:    1 << 34,
		WaitQueueCapacity: 64,
		TimerHz:           1000,
	}
}

/// ParseCmdline overlays space-separated `key=value` tokens from a boot
/// command line onto Default(). Unknown keys are ignored (a
/// misconfigured or forward-looking loader should not panic the
/// kernel); malformed integer values are reported as an error naming
/// the offending key.
//
// raw arrives as the loader handed it: possibly non-UTF-8 bytes, since
// some firmware/bootloader command-line tables are Latin-1. decodeCmdline
// handles that before tokenizing.
func ParseCmdline(raw []byte) (Config, error) {
	cfg := Default()
	text := decodeCmdline(raw)

	for _, tok := range strings.Fields(text) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			continue
		}
		if err := cfg.apply(key, value); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func (c *Config) apply(key, value string) error {
	intField := func(dst *int) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return &ParseError{Key: key, Value: value, Err: err}
		}
		*dst = n
		return nil
	}
	uintField := func(dst *uint64) error {
		n, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return &ParseError{Key: key, Value: value, Err: err}
		}
		*dst = n
		return nil
	}

	switch key {
	case "max_cpus":
		return intField(&c.MaxCPUs)
	case "max_symlink_depth":
		return intField(&c.MaxSymlinkDepth)
	case "reserved_frames":
		return intField(&c.ReservedFrames)
	case "kernel_heap_pages":
		return intField(&c.KernelHeapPages)
	case "mmio_window_start":
		return uintField(&c.MMIOWindowStart)
	case "mmio_window_size":
		return uintField(&c.MMIOWindowSize)
	case "waitqueue_capacity":
		return intField(&c.WaitQueueCapacity)
	case "timer_hz":
		return intField(&c.TimerHz)
	default:
		return nil
	}
}

/// ParseError names the offending boot command-line key.
type ParseError struct {
	Key   string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return "kconfig: invalid value " + strconv.Quote(e.Value) + " for " + e.Key + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }
