package lua

// OpenCoroutine installs the coroutine library on top of the
// Thread/Resume state machine in coroutine.go.
func OpenCoroutine(g *Globals) {
	mod := NewTable(0, 8)
	for name, fn := range coroutineFuncs {
		mod.Set(String(name), NewGFunction("coroutine."+name, fn))
	}
	g.Table.Set(String("coroutine"), mod)
}

var coroutineFuncs = map[string]GFunction{
	"create":      coroutineCreate,
	"resume":      coroutineResume,
	"yield":       coroutineYield,
	"status":      coroutineStatus,
	"isyieldable": coroutineIsYieldable,
	"running":     coroutineRunning,
	"wrap":        coroutineWrap,
}

func coroutineCreate(l *LState) int {
	fn := l.CheckFunction(1)
	l.Push(l.G.Spawn(fn))
	return 1
}

func coroutineResume(l *LState) int {
	th, ok := l.Arg(1).(*Thread)
	if !ok {
		l.RaiseError("bad argument #1 to 'resume' (coroutine expected)")
	}
	args := make([]Value, 0, l.ArgCount()-1)
	for i := 2; i <= l.ArgCount(); i++ {
		args = append(args, l.Arg(i))
	}
	ok2, values, err := th.Resume(args)
	if err != nil {
		panic(err)
	}
	l.Push(Bool(ok2))
	for _, v := range values {
		l.Push(v)
	}
	return 1 + len(values)
}

func coroutineYield(l *LState) int {
	args := make([]Value, 0, l.ArgCount())
	for i := 1; i <= l.ArgCount(); i++ {
		args = append(args, l.Arg(i))
	}
	results, err := l.blockForResume(args)
	if err != nil {
		panic(err)
	}
	for _, v := range results {
		l.Push(v)
	}
	return len(results)
}

func coroutineStatus(l *LState) int {
	th, ok := l.Arg(1).(*Thread)
	if !ok {
		l.RaiseError("bad argument #1 to 'status' (coroutine expected)")
	}
	l.Push(String(th.Status().String()))
	return 1
}

func coroutineIsYieldable(l *LState) int {
	l.Push(Bool(l.core != nil))
	return 1
}

// coroutineRunning reads the currently-executing Thread off Globals rather
// than off l itself: l's LState only carries the threadCore, never the
// public *Thread, so the running Thread's identity comes from the single
// execution slot the host set when it resumed this worker.
func coroutineRunning(l *LState) int {
	if l.core == nil {
		l.Push(Nil)
		l.Push(Bool(true))
		return 2
	}
	l.Push(l.G.Running())
	l.Push(Bool(false))
	return 2
}

// coroutineWrap returns a function that resumes the wrapped coroutine and
// re-raises any error instead of returning the ok/error pair, matching
// Lua's wrap-vs-resume distinction.
func coroutineWrap(l *LState) int {
	fn := l.CheckFunction(1)
	th := l.G.Spawn(fn)
	upv := &Upvalue{closed: true, value: th}
	wrapped := &Function{
		IsG:      true,
		GFn:      coroutineWrapCall,
		Upvalues: []*Upvalue{upv},
	}
	l.Push(wrapped)
	return 1
}

func coroutineWrapCall(l *LState) int {
	cf := l.currentFrame()
	th := cf.fn.Upvalues[0].Get().(*Thread)
	args := make([]Value, 0, l.ArgCount())
	for i := 1; i <= l.ArgCount(); i++ {
		args = append(args, l.Arg(i))
	}
	ok, values, err := th.Resume(args)
	if err != nil {
		panic(err)
	}
	if !ok {
		if len(values) > 0 {
			panic(&LuaError{Value: values[0]})
		}
		panic(&LuaError{Value: String("coroutine error")})
	}
	for _, v := range values {
		l.Push(v)
	}
	return len(values)
}
