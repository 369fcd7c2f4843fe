package ksync

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

/// Level is the numeric deadlock-avoidance level assigned to a static
/// lock. Acquiring a lock whose level is ≤ the maximum level already
/// held by the current execution context is a debug-build panic
/// (spec §4.4). Level assignments must form a DAG; the constants below
/// match the ordering spec.md calls out explicitly (PMM below VMM
/// below logger).
type Level int

const (
	LevelNone Level = iota
	LevelPMM
	LevelVMM
	LevelMountTable
	LevelProcessTable
	LevelExecutor
	LevelLogger
)

// DebugLevelChecks gates the panic-on-violation behavior. It defaults
// to true and nothing in this repository clears it; when it is false,
// enter and leave skip level tracking entirely (spec §4.4, §7 tier 2
// "Programmer errors").
var DebugLevelChecks = true

// held tracks, per goroutine (the host-test analogue of "per CPU" —
// each CPU runs one cooperative executor, exactly as each goroutine
// here represents one independent lock-acquisition context), the
// stack of levels currently held.
var (
	heldMu sync.Mutex
	held   = map[int64][]Level{}
)

func enter(level Level) {
	if level == LevelNone || !DebugLevelChecks {
		return
	}
	id := goroutineID()
	heldMu.Lock()
	defer heldMu.Unlock()
	stack := held[id]
	if len(stack) > 0 && level <= stack[len(stack)-1] {
		panic("ksync: lock level violation: acquiring level at or below the currently held maximum")
	}
	held[id] = append(stack, level)
}

func leave(level Level) {
	if level == LevelNone || !DebugLevelChecks {
		return
	}
	id := goroutineID()
	heldMu.Lock()
	defer heldMu.Unlock()
	stack := held[id]
	if len(stack) == 0 || stack[len(stack)-1] != level {
		panic("ksync: unlock does not match the most recently acquired level")
	}
	held[id] = stack[:len(stack)-1]
}

// goroutineID extracts the numeric ID from the current goroutine's
// stack trace header ("goroutine 123 [running]:"). It exists purely
// to key the debug-only held-level map per concurrent context in a
// hosted test binary. The current CPU's percpu.CPU.ID is not used as
// the key because this package cannot import percpu without an import
// cycle (percpu sits above ksync in the layering).
func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return 0
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseInt(string(buf[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
