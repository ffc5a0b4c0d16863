package lua

import "fmt"

// CompileError is returned by the external compiler (package compiler) when
// source text is not a well-formed chunk. Carries the offending line so the
// host can report `source:line: message` the same way runtime LuaError does.
type CompileError struct {
	Source  string
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Message)
}

// LuaError is a script-raised error: an explicit error(), an arithmetic or
// indexing type error, or an uncaught runtime condition. It is the only
// error kind a protected call (pcall/xpcall) may observe.
type LuaError struct {
	Value     Value
	Traceback []string
}

func (e *LuaError) Error() string {
	if e.Value == nil {
		return "<nil lua error>"
	}
	return ToStringMeta(e.Value)
}

// NewLuaError builds a LuaError from a source:line-prefixed message, the
// convention every runtime-raised error in the interpreter uses.
func NewLuaError(format string, args ...interface{}) *LuaError {
	return &LuaError{Value: String(fmt.Sprintf(format, args...))}
}

// LimitExceeded signals the instruction budget was exhausted. It is never
// visible to pcall/xpcall: protected-call frames explicitly re-raise it
// instead of converting it to a (false, message) pair.
type LimitExceeded struct {
	Max int64
}

func (e *LimitExceeded) Error() string {
	return fmt.Sprintf("instruction limit exceeded (max %d)", e.Max)
}

// StringLimitExceeded signals that a CONCAT intermediate result would
// exceed InstructionLimit.MaxStringSize. Only CONCAT checks the cap;
// string.rep, string.format and table.concat build their results without
// it. Like LimitExceeded, it bypasses pcall.
type StringLimitExceeded struct {
	Max int
}

func (e *StringLimitExceeded) Error() string {
	return fmt.Sprintf("string size limit exceeded (max %d bytes)", e.Max)
}

// ScriptTooLong is returned by Load when the source text exceeds the
// configured maximum source length. Raised at load time, before any
// instruction accounting begins.
type ScriptTooLong struct {
	Length, Max int
}

func (e *ScriptTooLong) Error() string {
	return fmt.Sprintf("script too long: %d bytes (max %d)", e.Length, e.Max)
}

// OrphanedWorker is the internal signal a worker raises on itself once it
// discovers its external owner is unreachable. Hosts should not catch it;
// like the Java original it terminates the worker's goroutine cleanly.
type OrphanedWorker struct{}

func (e *OrphanedWorker) Error() string { return "worker orphaned: owner unreachable" }

// InternalError marks a violated VM invariant (e.g. maxstacksize >= freereg
// >= nactvar). It is a bug, not a script-visible condition; callers should
// treat it like a panic recovered at the API boundary.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Message
}

// isProtectable reports whether err may be caught by pcall/xpcall. It is
// false for LimitExceeded, StringLimitExceeded, OrphanedWorker and
// InternalError, which unwind past any protected-call frame rather than
// being converted into (false, msg); baselib.go's basePcall and
// baseXpcall test this.
func isProtectable(err error) bool {
	switch err.(type) {
	case *LimitExceeded, *StringLimitExceeded, *OrphanedWorker, *InternalError:
		return false
	default:
		return true
	}
}
