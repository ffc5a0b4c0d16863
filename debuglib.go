package lua

import "strconv"

// OpenDebug installs a deliberately thin debug library: traceback and
// getinfo for diagnostics only. The teacher's sethook/gethook/upvalue
// introspection is dropped — nothing in this sandbox may observe or alter
// the instruction budget from script code ("no host-object
// bridging" extends to the VM's own accounting state).
func OpenDebug(g *Globals) {
	mod := NewTable(0, 4)
	for name, fn := range debugFuncs {
		mod.Set(String(name), NewGFunction("debug."+name, fn))
	}
	g.Table.Set(String("debug"), mod)
}

var debugFuncs = map[string]GFunction{
	"traceback": debugTraceback,
	"getinfo":   debugGetInfo,
}

func debugTraceback(l *LState) int {
	msg := l.OptString(1, "")
	frames := l.frames
	lines := make([]string, 0, len(frames)+1)
	if msg != "" {
		lines = append(lines, msg)
	}
	lines = append(lines, "stack traceback:")
	for i := len(frames) - 1; i >= 0; i-- {
		cf := frames[i]
		if cf.fn.IsG {
			lines = append(lines, "\t[G]: in function '"+cf.fn.Name+"'")
			continue
		}
		line := cf.fn.Proto.LineOf(cf.pc)
		lines = append(lines, "\t"+cf.fn.Proto.Source+":"+strconv.Itoa(line)+": in function")
	}
	out := lines[0]
	for _, s := range lines[1:] {
		out += "\n" + s
	}
	l.Push(String(out))
	return 1
}

func debugGetInfo(l *LState) int {
	info := NewTable(0, 4)
	if fn, ok := l.Arg(1).(*Function); ok {
		if fn.IsG {
			info.Set(String("what"), String("C"))
			info.Set(String("name"), String(fn.Name))
		} else {
			info.Set(String("what"), String("Lua"))
			info.Set(String("source"), String(fn.Proto.Source))
			info.Set(String("linedefined"), Int(fn.Proto.LineDefined))
			info.Set(String("nparams"), Int(fn.Proto.NumParams))
		}
	}
	l.Push(info)
	return 1
}
