package lua

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ThreadStatus mirrors a coroutine's lifecycle states.
type ThreadStatus int

const (
	ThreadInitial ThreadStatus = iota
	ThreadSuspended
	ThreadRunning
	ThreadNormal
	ThreadDead
)

func (s ThreadStatus) String() string {
	switch s {
	case ThreadInitial:
		return "initial"
	case ThreadSuspended:
		return "suspended"
	case ThreadRunning:
		return "running"
	case ThreadNormal:
		return "normal"
	case ThreadDead:
		return "dead"
	}
	return "unknown"
}

// orphanCheckInterval is the interval at which a suspended worker wakes to
// check whether its external owner is still reachable ("≈30s"),
// grounded on LuaThread.thread_orphan_check_interval in
// original_source/.../LuaThread.java.
var orphanCheckInterval = 30 * time.Second

// yieldResult is what a worker goroutine hands back to whoever resumed it,
// via yieldCh. It plays the role of the Java original's State.result/error
// pair, generalized to carry either a normal return, a script-level yield,
// or a terminal error.
type yieldResult struct {
	values []Value
	err    error
	dead   bool
}

// threadCore is the part of a worker's bookkeeping the running goroutine
// itself holds a strong reference to. It never references the public
// *Thread value — not directly, and not via the LState it owns — so that
// reference stays solely in the host's hands. That is what lets a
// finalizer on *Thread detect "the host dropped its last reference":
// if threadCore (transitively reachable from the parked goroutine) held
// a path back to *Thread, the finalizer would never run and an orphaned
// worker would never be collected or reported.
type threadCore struct {
	globals *Globals
	fn      *Function
	l       *LState
	id      workerID

	mu       sync.Mutex
	status   ThreadStatus
	resumeCh chan []Value
	yieldCh  chan yieldResult
	started  bool

	ownerGone int32 // set by the *Thread finalizer; read with atomic
}

// Thread is the script-visible coroutine value ("Thread").
type Thread struct {
	core *threadCore
}

func (t *Thread) Type() ValueType { return TypeThread }
func (t *Thread) String() string  { return ToStringMeta(t) }
func (t *Thread) Status() ThreadStatus {
	t.core.mu.Lock()
	defer t.core.mu.Unlock()
	return t.core.status
}

// WorkerID returns the identity this thread's instruction limiter is keyed
// under, so a host can name it in Globals.InstallLimit/ResetLimit/
// LookupLimit before ever resuming it.
func (t *Thread) WorkerID() string { return t.core.id }

// newThread packages fn as a worker: a fresh LState with its own
// instruction limiter slot, not yet started ("Initial").
func newThread(g *Globals, fn *Function) *Thread {
	id := uuid.NewString()
	core := &threadCore{
		globals:  g,
		fn:       fn,
		id:       id,
		status:   ThreadInitial,
		resumeCh: make(chan []Value),
		yieldCh:  make(chan yieldResult),
	}
	ls := newLState(g, id, false)
	ls.core = core
	core.l = ls
	t := &Thread{core: core}
	runtime.SetFinalizer(t, func(dead *Thread) {
		atomic.StoreInt32(&dead.core.ownerGone, 1)
	})
	return t
}

// Resume implements the full coroutine state machine, including the
// resume-at-limit rule: a worker whose counter is already at/over max does
// not execute a single opcode on resume, it simply yields Nil back.
func (t *Thread) Resume(args []Value) (ok bool, values []Value, err error) {
	c := t.core
	c.mu.Lock()
	switch c.status {
	case ThreadDead:
		c.mu.Unlock()
		return false, []Value{String("cannot resume dead coroutine")}, nil
	case ThreadRunning, ThreadNormal:
		c.mu.Unlock()
		return false, []Value{String("cannot resume non-suspended coroutine")}, nil
	}
	wasInitial := c.status == ThreadInitial
	if !wasInitial {
		if lim := c.globals.limiter.Lookup(c.id); lim != nil && lim.AtOrOverLimit() {
			c.mu.Unlock()
			return true, []Value{Nil}, nil
		}
	}
	prev := c.globals.swapRunning(t)
	c.status = ThreadRunning
	if prev != nil {
		prev.core.mu.Lock()
		prev.core.status = ThreadNormal
		prev.core.mu.Unlock()
	}
	started := c.started
	c.started = true
	c.mu.Unlock()

	if wasInitial && !started {
		if c.globals.limiter.Lookup(c.id) == nil {
			c.globals.limiter.Install(c.id, c.globals.defaultMaxInstr, c.globals.defaultMaxStringSize)
		}
		c.l.limiter = c.globals.limiter.Lookup(c.id)
		go c.run(args)
	} else {
		c.resumeCh <- args
	}

	result := <-c.yieldCh

	c.mu.Lock()
	if result.dead {
		c.status = ThreadDead
	} else {
		c.status = ThreadSuspended
	}
	c.mu.Unlock()
	c.globals.restoreRunning(prev)
	if prev != nil {
		prev.core.mu.Lock()
		prev.core.status = ThreadRunning
		prev.core.mu.Unlock()
	}

	if result.err != nil {
		msg := result.err.Error()
		if le, ok := result.err.(*LuaError); ok {
			return false, []Value{le.Value}, nil
		}
		return false, []Value{String(msg)}, nil
	}
	return true, result.values, nil
}

// run is the worker goroutine body: call the entry function, and funnel a
// normal return or an error back as a single terminal yieldResult. An
// orphan signal ends the goroutine without sending, as no resumer remains.
func (c *threadCore) run(args []Value) {
	defer func() {
		if r := recover(); r != nil {
			if _, orphan := r.(*OrphanedWorker); orphan {
				// nobody is left to receive a terminal result.
				return
			}
			var err error
			switch x := r.(type) {
			case *LuaError:
				err = x
			case error:
				err = x
			default:
				err = &InternalError{Message: "panic in worker"}
			}
			c.yieldCh <- yieldResult{err: err, dead: true}
		}
	}()
	values, err := callClosure(c.l, c.fn, args, MultRet)
	c.yieldCh <- yieldResult{values: values, err: err, dead: true}
}

// blockForResume is the single primitive both explicit coroutine.yield and
// the VM's limit-exceeded auto-suspend use: hand values to the resumer,
// block until resumed, return the resume args. Callers differ only in how
// they use the result: chargeN's budget pause yields no values and retries
// the same charge, while coroutine.yield returns the resume args as its
// results — the channel protocol is identical.
func (l *LState) blockForResume(values []Value) ([]Value, error) {
	c := l.core
	if c == nil {
		panic(&InternalError{Message: "yield from outside a coroutine"})
	}
	ticker := time.NewTicker(orphanCheckInterval)
	defer ticker.Stop()
	c.yieldCh <- yieldResult{values: values}
	for {
		select {
		case args := <-c.resumeCh:
			return args, nil
		case <-ticker.C:
			if atomic.LoadInt32(&c.ownerGone) != 0 {
				return nil, &OrphanedWorker{}
			}
		}
	}
}

// Globals.swapRunning / restoreRunning manage the single mutual-exclusion
// slot ("at most one worker or main caller is executing bytecode
// for a given Globals").
func (g *Globals) swapRunning(next *Thread) (prev *Thread) {
	g.runMu.Lock()
	prev = g.running
	g.running = next
	g.runMu.Unlock()
	return prev
}

func (g *Globals) restoreRunning(prev *Thread) {
	g.runMu.Lock()
	g.running = prev
	g.runMu.Unlock()
}

// Running returns the Thread currently holding the single execution slot,
// or nil if the main call context holds it. Worker code calls this (via
// coroutine.running) instead of carrying its own *Thread back-reference,
// so the running goroutine never transitively pins the public *Thread.
func (g *Globals) Running() *Thread {
	g.runMu.Lock()
	defer g.runMu.Unlock()
	return g.running
}
