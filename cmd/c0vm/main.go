// c0vm CLI - loads and executes C0 bytecode
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/c0vm/config"
	"github.com/chazu/c0vm/lib/history"
	"github.com/chazu/c0vm/lib/natives"
	"github.com/chazu/c0vm/pkg/bytecode"
	"github.com/chazu/c0vm/vm"
)

var log = commonlog.GetLogger("c0vm")

func main() {
	disasm := flag.Bool("d", false, "Disassemble the program and exit")
	trace := flag.Bool("trace", false, "Log every executed opcode (implies -v=2)")
	verbose := flag.Int("v", 0, "Log verbosity (1 = info, 2 = debug)")
	configPath := flag.String("config", "", "Path to c0vm.toml (default: search upward from the working directory)")
	pack := flag.String("pack", "", "Write a CBOR snapshot (.c0b) of the program to this path and exit")
	heapLimit := flag.Int64("heap-limit", -1, "Heap limit in bytes, 0 for unlimited (overrides config)")
	record := flag.Bool("history", false, "Record this run in the history database")
	historyList := flag.Int("history-list", 0, "Print the last N recorded runs and exit")
	profile := flag.Bool("profile", false, "Print function and opcode counts to stderr after the run")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: c0vm [options] file.bc0|file.c0b\n\n")
		fmt.Fprintf(os.Stderr, "Executes a C0 bytecode program. The exit status is the value main returns,\n")
		fmt.Fprintf(os.Stderr, "or a signal-style status when execution fails.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  c0vm fact.bc0                  # Run a program\n")
		fmt.Fprintf(os.Stderr, "  c0vm -d fact.bc0               # Print a listing\n")
		fmt.Fprintf(os.Stderr, "  c0vm -pack fact.c0b fact.bc0   # Convert to a snapshot\n")
		fmt.Fprintf(os.Stderr, "  c0vm -profile fact.bc0         # Show hot functions and opcodes\n")
		fmt.Fprintf(os.Stderr, "  c0vm -history-list 10          # Show recent runs\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "c0vm: %v\n", err)
		os.Exit(1)
	}

	verbosity := max(cfg.Log.Verbosity, *verbose)
	if *trace || cfg.Run.Trace {
		verbosity = max(verbosity, 2)
	}
	var logPath *string
	if cfg.Log.File != "" {
		logPath = &cfg.Log.File
	}
	commonlog.Configure(verbosity, logPath)

	if *historyList > 0 {
		if err := listHistory(cfg.History.Path, *historyList); err != nil {
			fmt.Fprintf(os.Stderr, "c0vm: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	path := flag.Arg(0)

	prog, err := bytecode.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "c0vm: %v\n", err)
		os.Exit(1)
	}

	if *disasm {
		fmt.Print(prog.Disassemble())
		os.Exit(0)
	}

	if *pack != "" {
		if err := bytecode.Save(*pack, prog); err != nil {
			fmt.Fprintf(os.Stderr, "c0vm: %v\n", err)
			os.Exit(1)
		}
		log.Infof("wrote %s (%s)", *pack, prog.Hash())
		os.Exit(0)
	}

	table, err := nativeTable(cfg.Run.Natives)
	if err != nil {
		fmt.Fprintf(os.Stderr, "c0vm: %v\n", err)
		os.Exit(1)
	}

	limit := cfg.Run.HeapLimit
	if *heapLimit >= 0 {
		limit = *heapLimit
	}

	var prof *vm.Profiler
	if *profile {
		prof = vm.NewProfiler()
	}

	stdout := bufio.NewWriter(os.Stdout)
	m := vm.New(prog, vm.Options{
		Natives:   table,
		HeapLimit: limit,
		Trace:     *trace || cfg.Run.Trace,
		Profiler:  prof,
		Stdout:    stdout,
		Stdin:     os.Stdin,
	})

	started := time.Now()
	result, runErr := m.Run()
	elapsed := time.Since(started)
	stdout.Flush()

	if prof != nil {
		prof.Report(os.Stderr, 10)
	}

	if *record || cfg.History.Enabled {
		recordRun(cfg.History.Path, &history.Run{
			ProgramHash: prog.Hash(),
			File:        path,
			StartedAt:   started,
			Duration:    elapsed,
			Steps:       m.Steps(),
			Result:      result,
		}, runErr)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "c0vm: %v\n", runErr)
		var e *vm.Error
		if errors.As(runErr, &e) {
			os.Exit(e.ExitCode())
		}
		os.Exit(1)
	}

	log.Infof("returning %d from execute (%d steps, %s)", result, m.Steps(), elapsed)
	os.Exit(int(uint8(result)))
}

// loadConfig reads an explicit config file, or searches upward from the
// working directory, falling back to defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return config.Default(), nil
	}
	return cfg, nil
}

func nativeTable(libs []string) (*vm.Natives, error) {
	if len(libs) == 0 {
		return natives.Default(), nil
	}
	return natives.New(libs...)
}

// recordRun stores the outcome of a run. History is best effort: a failure
// is logged and does not change the exit status.
func recordRun(path string, run *history.Run, runErr error) {
	if runErr != nil {
		run.ErrorKind = "error"
		run.ErrorMsg = runErr.Error()
		var e *vm.Error
		if errors.As(runErr, &e) {
			run.ErrorKind = e.Kind.String()
			run.ErrorMsg = e.Msg
		}
	}

	store, err := history.Open(path)
	if err != nil {
		log.Warningf("history: %v", err)
		return
	}
	defer store.Close()

	if _, err := store.Record(context.Background(), run); err != nil {
		log.Warningf("history: %v", err)
	}
}

func listHistory(path string, n int) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(context.Background(), n)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tFILE\tSTEPS\tDURATION\tOUTCOME\tHASH")
	for _, r := range runs {
		outcome := fmt.Sprintf("returned %d", r.Result)
		if r.Failed() {
			outcome = fmt.Sprintf("%s: %s", r.ErrorKind, r.ErrorMsg)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%.12s\n",
			r.StartedAt.Local().Format(time.DateTime), r.File, r.Steps, r.Duration, outcome, r.ProgramHash)
	}
	return w.Flush()
}
