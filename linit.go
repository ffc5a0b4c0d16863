package lua

// OpenLibs installs every standard library the sandbox exposes:
// base, string, table, math, os (time-only), coroutine, debug (diagnostics
// only), package (require resolving only through package.preload). There
// is no io, channel, or loadlib, and require has no filesystem or bytecode
// searcher — the curated surface grants no filesystem, process, or
// dynamic-module-loading capability (Non-goals), see DESIGN.md for the
// per-library accounting.
func OpenLibs(g *Globals) {
	OpenBase(g)
	OpenString(g)
	OpenTable(g)
	OpenMath(g)
	OpenOs(g)
	OpenCoroutine(g)
	OpenDebug(g)
	OpenPackage(g)
}
