package lua

// UsedMemory estimates the bytes reachable from root via a DFS that
// tracks visited values by pointer identity, so cyclic structures
// terminate and equal-but-distinct tables are never undercounted —
// identity, not value equality, must drive the visited set. It is
// advisory only: nothing in this package enforces on the result
// automatically.
func UsedMemory(root Value) int64 {
	w := &memWalker{visited: make(map[interface{}]bool)}
	return w.weigh(root)
}

type memWalker struct {
	visited map[interface{}]bool
}

// weigh implements the per-variant weight table verbatim; any change to
// these constants is a visible behavior change to hosts that
// admission-control on the number, so they are not tunable at runtime.
func (w *memWalker) weigh(v Value) int64 {
	if v == nil {
		return 0
	}
	switch x := v.(type) {
	case nilType:
		return 0
	case Bool:
		return 1
	case Int:
		return 4
	case Number:
		return 8
	case String:
		return int64(len(x))
	case *Table:
		if w.visited[x] {
			return 0
		}
		w.visited[x] = true
		var total int64
		x.ForEach(func(k, val Value) bool {
			total += w.weigh(val)
			return true
		})
		if x.Metatable != nil {
			total += w.weigh(x.Metatable)
		}
		return total
	case *Function:
		if w.visited[x] {
			return 0
		}
		w.visited[x] = true
		if x.IsG {
			return 10 // flat constant for builtins
		}
		var total int64
		for _, uv := range x.Upvalues {
			total += w.weigh(uv.Get())
		}
		if x.Proto != nil {
			for _, c := range x.Proto.Constants {
				total += w.weigh(c)
			}
			total += 4 * int64(len(x.Proto.Code))
		}
		return total
	case *Thread:
		if w.visited[x] {
			return 0
		}
		w.visited[x] = true
		var total int64
		if x.core != nil && x.core.l != nil {
			for i := 0; i < x.core.l.reg.Top(); i++ {
				total += w.weigh(x.core.l.reg.Get(i))
			}
		}
		return total
	case *UserData:
		return 0 // opaque; reported as 0 from this walker
	default:
		return 0
	}
}
