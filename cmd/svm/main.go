// svm assembles and runs stackvm programs, and serves the machine over
// Connect RPC or LSP.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/stackvm/history"
	"github.com/chazu/stackvm/manifest"
	"github.com/chazu/stackvm/server"
	"github.com/chazu/stackvm/vm"
	"github.com/chazu/stackvm/wire"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("stackvm.cli")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	debug     bool
	config    string
	maxSteps  int64
	verbosity int
	logFile   string
	disasm    bool
	ops       bool
	serve     bool
	addr      string
	lsp       bool
	history   int
	noHistory bool
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("svm", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.BoolVar(&opts.debug, "debug", false, "Print the disassembly and a trace line per instruction")
	fs.StringVar(&opts.config, "config", "", "Path to stackvm.toml (default: search upward from the working directory)")
	fs.Int64Var(&opts.maxSteps, "max-steps", 0, "Abort after this many instructions (0 = use config)")
	fs.IntVar(&opts.verbosity, "v", 0, "Log verbosity (0 = use config)")
	fs.StringVar(&opts.logFile, "log", "", "Log to this file instead of stderr")
	fs.BoolVar(&opts.disasm, "disasm", false, "Assemble and print the listing without running")
	fs.BoolVar(&opts.ops, "ops", false, "List the instruction set")
	fs.BoolVar(&opts.serve, "serve", false, "Start the Connect RPC server")
	fs.StringVar(&opts.addr, "addr", "", "Server address (used with -serve)")
	fs.BoolVar(&opts.lsp, "lsp", false, "Start the language server on stdio")
	fs.IntVar(&opts.history, "history", 0, "List the N most recent runs")
	fs.BoolVar(&opts.noHistory, "no-history", false, "Do not record this run")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: svm [options] [file|-]\n\n")
		fmt.Fprintf(stderr, "Assembles and runs a stackvm program read from file or stdin.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  svm prog.svm              # Run prog.svm\n")
		fmt.Fprintf(stderr, "  svm -debug prog.svm       # Run with listing and trace\n")
		fmt.Fprintf(stderr, "  svm -disasm < prog.svm    # Print the listing only\n")
		fmt.Fprintf(stderr, "  svm -serve -addr :8080    # Serve MachineService on :8080\n")
		fmt.Fprintf(stderr, "  svm -history 10           # Show the last 10 runs\n")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return 2
	}

	m, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	commonlog.Configure(m.Log.Verbosity, m.LogPath())

	switch {
	case opts.ops:
		printOps(stdout)
		return 0
	case opts.lsp:
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(stderr, "LSP error: %v\n", err)
			return 1
		}
		return 0
	case opts.serve:
		return serve(m, stderr)
	case opts.history > 0:
		return listHistory(ctx, m, opts.history, stdout, stderr)
	}

	program, err := readProgram(fs.Arg(0), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if opts.disasm {
		return disassemble(program, stdout, stderr)
	}
	return runProgram(ctx, m, program, !opts.noHistory, stdout, stderr)
}

// loadConfig loads stackvm.toml and applies command-line overrides.
func loadConfig(opts options) (*manifest.Manifest, error) {
	var m *manifest.Manifest
	var err error
	if opts.config != "" {
		m, err = manifest.LoadFile(opts.config)
	} else {
		m, err = manifest.FindAndLoad(".")
	}
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}

	if opts.debug {
		m.VM.Debug = true
	}
	if opts.maxSteps > 0 {
		m.VM.MaxSteps = opts.maxSteps
	}
	if opts.verbosity > 0 {
		m.Log.Verbosity = opts.verbosity
	}
	if opts.logFile != "" {
		m.Log.File = opts.logFile
	}
	if opts.addr != "" {
		m.Server.Addr = opts.addr
	}
	return m, nil
}

func readProgram(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printOps(w io.Writer) {
	for i, info := range vm.StandardInstructions() {
		fmt.Fprintf(w, "%2d  %-12s %s\n", i, info.Name, info.Doc)
	}
}

func disassemble(program string, stdout, stderr io.Writer) int {
	reg := vm.NewRegistry()
	vm.RegisterStandard(reg)

	if errs := vm.Validate(reg, program); len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(stderr, "%v\n", err)
		}
		return 1
	}
	code, err := vm.Assemble(reg, program)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	fmt.Fprint(stdout, vm.Disassemble(reg, code))
	return 0
}

func runProgram(ctx context.Context, m *manifest.Manifest, program string, record bool, stdout, stderr io.Writer) int {
	st := vm.New(m.VM.Debug)
	st.Stdout = stdout
	st.MaxSteps = m.VM.MaxSteps

	start := time.Now()
	var result vm.Value
	var output string
	code, err := vm.Assemble(st.Registry, program)
	if err == nil {
		result, output, err = vm.RunContext(ctx, st, code)
	}
	log.Debugf("run finished in %s after %d steps", time.Since(start), st.Steps)

	if output != "" {
		fmt.Fprintln(stdout, output)
	}

	if record && m.History.Enabled {
		recordRun(ctx, m, program, result, output, st.Steps, err)
	}

	if err != nil {
		fmt.Fprintf(stderr, "svm: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "=> %d\n", result)
	return 0
}

func recordRun(ctx context.Context, m *manifest.Manifest, program string, result vm.Value, output string, steps int64, runErr error) {
	store, err := history.Open(m.HistoryPath())
	if err != nil {
		log.Warningf("run history unavailable: %s", err)
		return
	}
	defer store.Close()

	r := history.Run{
		Program: program,
		Result:  result,
		Output:  output,
		Steps:   steps,
	}
	if f := wire.FaultInfoFrom(runErr); f != nil {
		r.FaultKind = f.Kind
		r.FaultMessage = f.Message
	}
	if _, err := store.Record(context.WithoutCancel(ctx), r); err != nil {
		log.Warningf("could not record run: %s", err)
	}
}

func serve(m *manifest.Manifest, stderr io.Writer) int {
	opts := []server.ServerOption{
		server.WithMaxSteps(m.VM.MaxSteps),
		server.WithTimeout(m.Server.Timeout.Duration()),
	}
	if m.History.Enabled {
		store, err := history.Open(m.HistoryPath())
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer store.Close()
		opts = append(opts, server.WithHistory(store))
	}

	srv := server.New(opts...)
	defer srv.Stop()
	if err := srv.ListenAndServe(m.Server.Addr); err != nil {
		fmt.Fprintf(stderr, "Server error: %v\n", err)
		return 1
	}
	return 0
}

func listHistory(ctx context.Context, m *manifest.Manifest, limit int, stdout, stderr io.Writer) int {
	store, err := history.Open(m.HistoryPath())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	runs, err := store.Recent(ctx, limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, r := range runs {
		outcome := fmt.Sprintf("=> %d", r.Result)
		if r.Failed() {
			outcome = r.FaultKind
		}
		fmt.Fprintf(stdout, "%s  %s  %-20s %s\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), outcome, r.ProgramHash[:12])
	}
	return 0
}
