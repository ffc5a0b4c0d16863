package lua

// registerStack is the VM's per-worker value stack. freereg (// dispatch-loop invariant) is tracked as len(slots) here; callers that need
// the classic "logical top" terminology use Top()/SetTop().
type registerStack struct {
	slots []Value
}

func newRegisterStack(capacity int) *registerStack {
	return &registerStack{slots: make([]Value, 0, capacity)}
}

func (s *registerStack) Top() int { return len(s.slots) }

func (s *registerStack) SetTop(n int) {
	for len(s.slots) < n {
		s.slots = append(s.slots, Nil)
	}
	s.slots = s.slots[:n]
}

func (s *registerStack) Get(i int) Value {
	if i < 0 || i >= len(s.slots) {
		return Nil
	}
	v := s.slots[i]
	if v == nil {
		return Nil
	}
	return v
}

func (s *registerStack) Set(i int, v Value) {
	for len(s.slots) <= i {
		s.slots = append(s.slots, Nil)
	}
	if v == nil {
		v = Nil
	}
	s.slots[i] = v
}

func (s *registerStack) Push(v Value) {
	if v == nil {
		v = Nil
	}
	s.slots = append(s.slots, v)
}

func (s *registerStack) FillNil(from, n int) {
	for i := 0; i < n; i++ {
		s.Set(from+i, Nil)
	}
}

// CopyRange copies n values starting at src to dst (n<0 copies through the
// current top, the RETURN/CALL "rest of stack" convention) and sets the new
// top to dst+n.
func (s *registerStack) CopyRange(dst, src, _, n int) {
	if n < 0 {
		n = s.Top() - src
		if n < 0 {
			n = 0
		}
	}
	tmp := make([]Value, n)
	for i := 0; i < n; i++ {
		tmp[i] = s.Get(src + i)
	}
	for i := 0; i < n; i++ {
		s.Set(dst+i, tmp[i])
	}
	s.SetTop(dst + n)
}

// callFrame is one activation record in the interpreter's call stack.
type callFrame struct {
	fn         *Function
	pc         int
	base       int // register index of R(0) for this frame
	returnBase int // where CALL expects results written in the caller's frame
	varargs    []Value
	nret       int // desired result count for this call; MultRet = all
}

// MultRet marks "all results" (RETURN's B operand).
const MultRet = -1

// openUpvalList tracks upvalues currently aliasing live registers so scope
// exits (OP_JMP A>0, OP_RETURN, a function return) can close exactly the
// ones at or above a threshold register.
type openUpvalList struct {
	byIndex map[int]*Upvalue
}

func newOpenUpvalList() *openUpvalList {
	return &openUpvalList{byIndex: make(map[int]*Upvalue)}
}

func (o *openUpvalList) find(stack *registerStack, index int) *Upvalue {
	if uv, ok := o.byIndex[index]; ok {
		return uv
	}
	uv := &Upvalue{stack: stack, index: index}
	o.byIndex[index] = uv
	return uv
}

func (o *openUpvalList) closeFrom(threshold int) {
	for idx, uv := range o.byIndex {
		if idx >= threshold {
			uv.Close()
			delete(o.byIndex, idx)
		}
	}
}

func (o *openUpvalList) openCount() int { return len(o.byIndex) }

// LState is one worker's execution context: the register stack, call-frame
// stack, and the bits the interpreter needs to charge instructions and
// find its coroutine-yield channel. The main thread and every spawned
// worker each own exactly one LState ("Thread").
type LState struct {
	G       *Globals
	ID      workerID
	reg     *registerStack
	frames  []*callFrame
	upvals  *openUpvalList
	limiter *InstructionLimit
	isMain  bool
	core    *threadCore // the worker bookkeeping this LState backs; nil for the main LState
}

func newLState(g *Globals, id workerID, isMain bool) *LState {
	return &LState{
		G:      g,
		ID:     id,
		reg:    newRegisterStack(256),
		frames: make([]*callFrame, 0, 32),
		upvals: newOpenUpvalList(),
		isMain: isMain,
	}
}

func (l *LState) currentFrame() *callFrame {
	if len(l.frames) == 0 {
		return nil
	}
	return l.frames[len(l.frames)-1]
}

func (l *LState) pushFrame(cf *callFrame) {
	l.frames = append(l.frames, cf)
}

func (l *LState) popFrame() *callFrame {
	n := len(l.frames)
	cf := l.frames[n-1]
	l.frames = l.frames[:n-1]
	return cf
}

// Arg and ArgCount give a native GFunction the same "read off the current
// call's register window" view a compiled closure gets automatically
// (host-callable convention). n is 1-based.
func (l *LState) Arg(n int) Value {
	cf := l.currentFrame()
	return l.reg.Get(cf.base + n - 1)
}

func (l *LState) ArgCount() int {
	cf := l.currentFrame()
	return l.reg.Top() - cf.base
}

// Push appends a result value above the current argument window; a native
// function returns the count it pushed this way.
func (l *LState) Push(v Value) { l.reg.Push(v) }
