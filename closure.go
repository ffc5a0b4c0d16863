package lua

// GFunction is the signature every host-registered or standard-library
// native callable implements: read arguments off the running LState's
// register window, push results the same way, return the count pushed.
// ("Register a host callable: fn : Vararg -> Vararg").
type GFunction func(l *LState) int

// Function is the runtime Closure value: an immutable Prototype (or, for
// natives, a GFunction) bound to a vector of Upvalues.
type Function struct {
	IsG       bool
	Proto     *Prototype
	GFn       GFunction
	Name      string // for natives and diagnostics only
	Upvalues  []*Upvalue
	Env       *Table // globals table this closure resolves _ENV against
}

func (f *Function) Type() ValueType { return TypeFunction }
func (f *Function) String() string  { return ToStringMeta(f) }

// NewGFunction wraps a native Go function as a script-callable Value.
func NewGFunction(name string, fn GFunction) *Function {
	return &Function{IsG: true, GFn: fn, Name: name}
}

// Upvalue is either open (aliasing a live register slot in some caller's
// stack) or closed (owning its own value copy). Closing happens when the
// owning frame unwinds or a jump closes the scope.
type Upvalue struct {
	closed bool
	value  Value
	stack  *registerStack
	index  int
}

func (uv *Upvalue) Get() Value {
	if uv.closed {
		return uv.value
	}
	return uv.stack.Get(uv.index)
}

func (uv *Upvalue) Set(v Value) {
	if uv.closed {
		uv.value = v
		return
	}
	uv.stack.Set(uv.index, v)
}

// Close copies the current slot value into the upvalue's own cell and
// severs the reference to the stack.
func (uv *Upvalue) Close() {
	if uv.closed {
		return
	}
	uv.value = uv.stack.Get(uv.index)
	uv.closed = true
	uv.stack = nil
}

func (uv *Upvalue) isOpenAt(index int) bool {
	return !uv.closed && uv.index == index
}
