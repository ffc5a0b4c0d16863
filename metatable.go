package lua

import "sync"

// classMetatables backs the per-type metatables non-table/userdata values
// use for method-call sugar, e.g. ("abc"):upper() dispatching through the
// string library table installed by stringlib.go's OpenString call. Tables
// and UserData carry their own Metatable field directly; everything else
// shares one metatable per ValueType, the same mechanism that wires
// string methods onto every String value.
var classMetatables = struct {
	mu     sync.Mutex
	byType map[ValueType]*Table
}{byType: make(map[ValueType]*Table)}

// SetClassMetatable installs the shared metatable for every value of type t.
func SetClassMetatable(t ValueType, mt *Table) {
	classMetatables.mu.Lock()
	classMetatables.byType[t] = mt
	classMetatables.mu.Unlock()
}

func classMetatableOf(v Value) *Table {
	classMetatables.mu.Lock()
	defer classMetatables.mu.Unlock()
	return classMetatables.byType[v.Type()]
}
