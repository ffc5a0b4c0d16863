package lua

import "sync"

// consoleQueueCapacity is the bounded host-console queue size: 32
// messages, back-pressure via cooperative yield.
const consoleQueueCapacity = 32

// Compiler is the interface the external collaborator (package compiler,
// or any host-supplied alternative) must satisfy to turn source text into
// a Prototype ("the only path into the VM").
type Compiler interface {
	Compile(source []byte, chunkName string) (*Prototype, error)
}

// Globals is the host facade: the top-level name table plus the
// bookkeeping it needs (running thread, console queue, installed
// compiler, loaded standard libraries).
type Globals struct {
	Table *Table // the _G-equivalent global variable table

	compiler Compiler
	limiter  *Limiter

	runMu   sync.Mutex
	running *Thread

	mainOnce  sync.Once
	mainState *LState

	console chan Value

	defaultMaxInstr      int64
	defaultMaxStringSize int
	maxSourceLen         int

	mainID workerID
}

// Options configures a new Globals (host embedding surface).
type Options struct {
	Compiler             Compiler
	DefaultMaxInstr      int64
	DefaultMaxStringSize int
	MaxSourceLen         int

	// MainMaxInstr, when > 0, installs a budget on the host's own main
	// call context too ("a worker with no installed limit is
	// *unlimited* only if it is the main thread" — a limit MAY still be
	// installed there, e.g. for a CLI host driving an untrusted script
	// synchronously rather than via a spawned worker). Zero means the
	// traditional unlimited main thread.
	MainMaxInstr int64
}

// NewGlobals constructs an empty globals table with no libraries loaded;
// callers typically follow with OpenLibs (linit.go).
func NewGlobals(opts Options) *Globals {
	if opts.DefaultMaxInstr <= 0 {
		opts.DefaultMaxInstr = 1_000_000
	}
	if opts.DefaultMaxStringSize <= 0 {
		opts.DefaultMaxStringSize = 1 << 20
	}
	if opts.MaxSourceLen <= 0 {
		opts.MaxSourceLen = 1 << 20
	}
	g := &Globals{
		Table:                NewTable(0, 64),
		compiler:             opts.Compiler,
		limiter:              newLimiter(),
		console:              make(chan Value, consoleQueueCapacity),
		defaultMaxInstr:      opts.DefaultMaxInstr,
		defaultMaxStringSize: opts.DefaultMaxStringSize,
		maxSourceLen:         opts.MaxSourceLen,
		mainID:               "main",
	}
	mainMax := int64(-1) // -1: unlimited sentinel, reserved for the main thread
	if opts.MainMaxInstr > 0 {
		mainMax = opts.MainMaxInstr
	}
	g.limiter.Install(g.mainID, mainMax, opts.DefaultMaxStringSize)
	return g
}

// TryDequeueConsole is the host-side half of the bounded console queue
// ("non-blocking try_dequeue()"). Returns ok=false if empty.
func (g *Globals) TryDequeueConsole() (Value, bool) {
	select {
	case v := <-g.console:
		return v, true
	default:
		return Nil, false
	}
}

// Console returns the raw channel for hosts that want to select on it
// directly instead of polling TryDequeueConsole.
func (g *Globals) Console() <-chan Value { return g.console }

// InstallLimit installs a fresh per-worker instruction/string-size budget
// (install_limit), or reconfigures and restarts an existing one if
// worker already has a limit installed.
func (g *Globals) InstallLimit(worker workerID, maxInstr int64, maxStringSize int) *InstructionLimit {
	return g.limiter.Install(worker, maxInstr, maxStringSize)
}

// ResetLimit zeroes worker's instruction counter between scheduled ticks
// (reset_limit).
func (g *Globals) ResetLimit(worker workerID) { g.limiter.Reset(worker) }

// LookupLimit exposes the installed limit for host introspection.
func (g *Globals) LookupLimit(worker workerID) *InstructionLimit { return g.limiter.Lookup(worker) }

// UsedMemory delegates to the memory walker (C4), sampling from the
// globals table by default.
func (g *Globals) UsedMemory() int64 { return UsedMemory(g.Table) }
