// Command escore runs the bytecode programs bundled in internal/demo through
// the interpreter core, standing in for source-file execution since the
// parser/bytecode generator that would normally produce a CompiledCode from
// a .js file is out of this module's scope (the caller is expected to supply
// already-compiled code the way internal/demo's Assembler-built programs
// do). Grounded on the teacher's cmd/paserati/main.go flag set.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"escore/internal/demo"
	"escore/pkg/bytecode"
	"escore/pkg/driver"
	"escore/pkg/vm"
)

var programs = map[string]func() *bytecode.CompiledCode{
	"addition":      demo.Addition,
	"try-finally":   demo.TryFinallyReturnOverThrow,
	"for-in-concat": demo.ForInConcat,
	"sum-below-5":   demo.SumBelowFive,
	"square-call":   demo.SquareCall,
	"arrow-call":    demo.ArrowCall,
	"proxy-counter": demo.ProxyCallCounter,
}

func main() {
	program := flag.String("program", "addition", "bundled demo program to run (see -list)")
	list := flag.Bool("list", false, "list the bundled demo programs and exit")
	showBytecode := flag.Bool("bytecode", false, "disassemble the selected program instead of running it")
	cacheStats := flag.Bool("cache-stats", false, "print property-lookup cache hit/miss counts after running")
	maxFrames := flag.Int("max-frames", 10000, "maximum call-frame depth before a RangeError-equivalent abort")
	flag.Parse()

	if *list {
		names := make([]string, 0, len(programs))
		for name := range programs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	build, ok := programs[*program]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown program %q; run with -list to see available programs\n", *program)
		os.Exit(1)
	}
	code := build()

	if *showBytecode {
		fmt.Print(code.Disassemble())
		return
	}

	opts := vm.DefaultOptions()
	opts.MaxFrames = *maxFrames
	opts.CacheStats = *cacheStats
	s := driver.New(opts)
	s.VM.ConsoleWriter = func(args []vm.Value) {
		strs := make([]interface{}, len(args))
		for i, a := range args {
			strs[i] = a.ToStringValue()
		}
		fmt.Println(strs...)
	}

	result, thrown := s.RunGlobal(code)
	if thrown != nil {
		fmt.Fprintf(os.Stderr, "uncaught exception: %s\n", thrown.Value.ToStringValue())
		os.Exit(1)
	}
	fmt.Println(result.ToStringValue())

	if *cacheStats {
		stats := vm.GetCacheStats()
		fmt.Fprintf(os.Stderr, "cache: %d hits, %d misses (%.1f%% hit rate)\n",
			stats.Hits, stats.Misses, stats.HitRate()*100)
	}
}
