package lua

// OpenPackage installs `package` and `require`: require
// resolves a module name through an installed searcher list whose only
// built-in searcher loads *source text* via the same Load path every other
// chunk goes through — there is no filesystem searcher (the sandbox grants
// no filesystem access at all) and no bytecode loader.
// A host wires modules in with RegisterModuleSource or RegisterPreload.
func OpenPackage(g *Globals) {
	pkg := NewTable(0, 4)
	loaded := NewTable(0, 8)
	preload := NewTable(0, 8)
	pkg.Set(String("loaded"), loaded)
	pkg.Set(String("preload"), preload)
	g.Table.Set(String("package"), pkg)
	g.Table.Set(String("require"), NewGFunction("require", baseRequire))
}

func baseRequire(l *LState) int {
	name := l.CheckString(1)
	pkg, _ := l.G.Table.Get(String("package")).(*Table)
	if pkg == nil {
		l.RaiseError("package library not installed")
	}
	loaded, _ := pkg.Get(String("loaded")).(*Table)
	if loaded != nil {
		if v := loaded.Get(String(name)); v.Type() != TypeNil {
			l.Push(v)
			return 1
		}
	}
	preload, _ := pkg.Get(String("preload")).(*Table)
	if preload == nil {
		l.RaiseError("module '%s' not found: package.preload is not a table", name)
	}
	loader := preload.Get(String(name))
	if loader.Type() == TypeNil {
		l.RaiseError("module '%s' not found: no field package.preload['%s']", name, name)
	}
	if loaded == nil {
		loaded = NewTable(0, 8)
		pkg.Set(String("loaded"), loaded)
	}
	results, err := l.call(loader, []Value{String(name)}, 1, 0)
	if err != nil {
		panic(err)
	}
	var modVal Value = Bool(true)
	if len(results) > 0 && results[0].Type() != TypeNil {
		modVal = results[0]
	}
	loaded.Set(String(name), modVal)
	l.Push(modVal)
	return 1
}

// RegisterModuleSource compiles source under chunkName and installs it as
// package.preload[name], so a subsequent `require(name)` in script code
// runs it exactly as if it had been loaded from a file — except the bytes
// came from the host, not a filesystem searcher ("source text
// only"; the host decides where that text comes from).
func (g *Globals) RegisterModuleSource(name string, source []byte, chunkName string) error {
	fn, err := g.Load(source, chunkName)
	if err != nil {
		return err
	}
	return g.RegisterPreload(name, fn)
}

// RegisterPreload installs fn directly as package.preload[name], for hosts
// that built the module function some other way (e.g. a native GFunction).
func (g *Globals) RegisterPreload(name string, fn *Function) error {
	pkg, _ := g.Table.Get(String("package")).(*Table)
	if pkg == nil {
		return &InternalError{Message: "package library not installed"}
	}
	preload, _ := pkg.Get(String("preload")).(*Table)
	preload.Set(String(name), fn)
	return nil
}
