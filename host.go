package lua

// Load compiles source text into a callable Function bound to g's globals,
// enforcing the max-source-length ceiling before a single byte reaches the
// compiler — the compiler is the only path into the VM. chunkName labels
// the resulting Prototype's Source field for error messages and
// tracebacks.
func (g *Globals) Load(source []byte, chunkName string) (*Function, error) {
	if g.maxSourceLen > 0 && len(source) > g.maxSourceLen {
		return nil, &ScriptTooLong{Length: len(source), Max: g.maxSourceLen}
	}
	if g.compiler == nil {
		panic(&InternalError{Message: "no compiler installed"})
	}
	proto, err := g.compiler.Compile(source, chunkName)
	if err != nil {
		return nil, err
	}
	envUpval := &Upvalue{closed: true, value: g.Table}
	return &Function{Proto: proto, Upvalues: []*Upvalue{envUpval}, Env: g.Table}, nil
}

// MainState returns the long-lived LState the host's direct (non-coroutine)
// calls run on. Unlimited by default; a host that wants the main call
// itself bounded installs Options.MainMaxInstr at construction time.
func (g *Globals) MainState() *LState {
	g.mainOnce.Do(func() {
		g.mainState = newLState(g, g.mainID, true)
		g.mainState.limiter = g.limiter.Lookup(g.mainID)
	})
	return g.mainState
}

// MainWorkerID returns the worker identity the main call context runs
// under, for hosts that want to ResetLimit/LookupLimit on it directly.
func (g *Globals) MainWorkerID() string { return g.mainID }

// Call invokes fn on the host's main call context with args, returning
// whatever the script returned or an error. This is the synchronous
// entry point; for cooperative, resumable execution use Spawn+Resume
// instead.
//
// callClosure only recovers *LuaError so that errors propagate as Go
// panics through nested calls until a pcall frame or this outermost
// boundary catches them ("LimitExceeded... unwinds all frames
// without entering any protected-call handler"). Call is that boundary for
// the main thread, mirroring threadCore.run's recover for workers, so
// LimitExceeded/StringLimitExceeded/OrphanedWorker/InternalError surface
// as a returned error here instead of crashing the host process.
func (g *Globals) Call(fn *Function, args ...Value) (results []Value, err error) {
	prev := g.swapRunning(nil)
	defer g.restoreRunning(prev)
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	return callClosure(g.MainState(), fn, args, MultRet)
}

// Spawn packages fn as a fresh worker (Initial state) without
// running any of it; the host drives it forward with Thread.Resume.
func (g *Globals) Spawn(fn *Function) *Thread {
	return newThread(g, fn)
}
