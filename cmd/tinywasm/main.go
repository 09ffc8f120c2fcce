// Command tinywasm runs a WebAssembly binary's _start export, wiring its
// wasi_snapshot_preview1.fd_write import to the process's stdout/stderr
// (SPEC_FULL.md §6.1).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tinywasm/tinywasm"
	"github.com/tinywasm/tinywasm/imports/wasi_snapshot_preview1"
)

var logger = log.New(os.Stderr, "tinywasm: ", 0)

func main() {
	os.Exit(doMain(os.Args[1:]))
}

// doMain is separated from main so tests can drive it without exiting the
// test process.
func doMain(args []string) int {
	if len(args) == 0 || args[0] != "run" {
		printUsage()
		return 1
	}

	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	_ = flags.Parse(args[1:])
	if flags.NArg() != 1 {
		printUsage()
		return 1
	}

	return doRun(flags.Arg(0))
}

func doRun(path string) int {
	moduleBytes, err := os.ReadFile(path)
	if err != nil {
		logger.Printf("reading %s: %v", path, err)
		return 1
	}

	rt := tinywasm.NewRuntime()
	// NewHostFunctions keys its table by "module.field"; Export takes the
	// bare field name and adds the module prefix itself.
	wasiFuncs := wasi_snapshot_preview1.NewHostFunctions(wasi_snapshot_preview1.Writer{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	rt.NewHostModuleBuilder(wasi_snapshot_preview1.ModuleName).
		Export(wasi_snapshot_preview1.FunctionFdWrite,
			wasiFuncs[wasi_snapshot_preview1.ModuleName+"."+wasi_snapshot_preview1.FunctionFdWrite])

	ins, err := rt.Instantiate(moduleBytes)
	if err != nil {
		logger.Printf("%v", err)
		return 1
	}

	if err := ins.Start(); err != nil {
		logger.Printf("trap: %v", err)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: tinywasm run <module.wasm>")
}
