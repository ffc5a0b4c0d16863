// Command luasandbox is the host shell for the hardened sandbox: a script
// runner and line-editing REPL. It is the thin, trusted side of the
// boundary — everything it loads through lua.Globals.Load/Call/Spawn is
// treated as untrusted.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	lua "github.com/empirephoenix/hardened-lua"
	"github.com/empirephoenix/hardened-lua/compiler"
	"github.com/empirephoenix/hardened-lua/internal/config"
	"github.com/empirephoenix/hardened-lua/internal/logging"
)

func main() {
	var optE, optConfig string
	var optI, optV bool
	var optMaxInstr, optMaxStringSize int64

	flag.StringVar(&optE, "e", "", "execute string 'stat'")
	flag.StringVar(&optConfig, "c", "", "path to a YAML config file (limits.*, logging.*)")
	flag.BoolVar(&optI, "i", false, "enter interactive mode after executing 'script'")
	flag.BoolVar(&optV, "v", false, "show version information")
	flag.Int64Var(&optMaxInstr, "mi", 0, "override limits.max_instructions")
	flag.Int64Var(&optMaxStringSize, "ms", 0, "override limits.max_string_size")
	flag.Usage = func() {
		fmt.Print(`usage: luasandbox [options] [script [args]].
Available options are:
  -e stat  execute string 'stat'
  -c file  load a YAML config file (limits.*, logging.*)
  -mi N    override limits.max_instructions
  -ms N    override limits.max_string_size
  -i       enter interactive mode after executing 'script'
  -v       show version information
`)
	}
	flag.Parse()
	if optE == "" && !optI && !optV && flag.NArg() == 0 {
		optI = true
	}

	cfg, err := config.Load(optConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if optMaxInstr > 0 {
		cfg.Limits.MaxInstructions = int(optMaxInstr)
	}
	if optMaxStringSize > 0 {
		cfg.Limits.MaxStringSize = int(optMaxStringSize)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	g := lua.NewGlobals(lua.Options{
		Compiler:             compiler.GoCompiler{},
		DefaultMaxInstr:      int64(cfg.Limits.MaxInstructions),
		DefaultMaxStringSize: cfg.Limits.MaxStringSize,
		MaxSourceLen:         cfg.Limits.MaxSourceLen,
		MainMaxInstr:         int64(cfg.Limits.MaxInstructions),
	})
	lua.OpenLibs(g)

	if optV || optI {
		fmt.Println("luasandbox (hardened-lua sandbox shell) — Lua 5.2 dialect")
	}

	status := 0
	drainConsole := startConsoleDrainer(g)
	defer close(drainConsole)

	if nargs := flag.NArg(); nargs > 0 {
		script := flag.Arg(0)
		src, readErr := os.ReadFile(script)
		if readErr != nil {
			logger.Error("reading script", zap.Error(readErr))
			os.Exit(1)
		}
		argTbl := lua.NewTable(nargs-1, 0)
		for i := 1; i < nargs; i++ {
			argTbl.Append(lua.String(flag.Arg(i)))
		}
		g.Table.Set(lua.String("arg"), argTbl)
		if runErr := runChunk(g, logger, src, script); runErr != nil {
			status = 1
		}
	}

	if optE != "" {
		if runErr := runChunk(g, logger, []byte(optE), "=(command line)"); runErr != nil {
			status = 1
		}
	}

	if optI {
		repl(g, logger)
	}
	os.Exit(status)
}

// runChunk loads and runs one chunk on the main call context, resetting
// its instruction counter first so each top-level run/−e starts with a
// fresh budget (reset protocol).
func runChunk(g *lua.Globals, logger *zap.Logger, src []byte, chunkName string) error {
	g.ResetLimit(g.MainWorkerID())
	fn, err := g.Load(src, chunkName)
	if err != nil {
		logger.Error("load failed", zap.String("chunk", chunkName), zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	start := time.Now()
	_, err = g.Call(fn)
	if err != nil {
		logger.Warn("script failed", zap.String("chunk", chunkName), zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	logger.Debug("script completed", zap.String("chunk", chunkName), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// repl drives an interactive session with github.com/chzyer/readline for
// history and line editing.
func repl(g *lua.Globals, logger *zap.Logger) {
	rl, err := readline.New("> ")
	if err != nil {
		logger.Error("readline init failed", zap.Error(err))
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return
		}
		if err != nil {
			logger.Error("readline", zap.Error(err))
			return
		}
		if line == "" {
			continue
		}
		_ = runChunk(g, logger, []byte(line), "=(repl)")
	}
}

// startConsoleDrainer pumps the sandbox's bounded console queue (print())
// to stdout so a `print` call in a running script is visible without the
// host having to poll TryDequeueConsole by hand. It exits when the
// returned channel is closed.
func startConsoleDrainer(g *lua.Globals) chan struct{} {
	done := make(chan struct{})
	go func() {
		for {
			select {
			case v, ok := <-g.Console():
				if !ok {
					return
				}
				fmt.Println(v.String())
			case <-done:
				return
			}
		}
	}()
	return done
}
