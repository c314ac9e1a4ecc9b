// Intcode CLI - runs Intcode programs locally, in circuits, or remotely
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/intcode/circuit"
	"github.com/chazu/intcode/manifest"
	"github.com/chazu/intcode/server"
	"github.com/chazu/intcode/store"
	"github.com/chazu/intcode/vm"

	_ "github.com/tliron/commonlog/simple"
)

// options collects the command line.
type options struct {
	input     string
	console   bool
	ascii     bool
	disasm    bool
	amplify   string
	feedback  bool
	search    bool
	network   int
	nat       int64
	config    string
	db        string
	save      string
	resume    string
	list      bool
	forget    string
	serve     bool
	port      int
	lsp       bool
	remote    string
	transport string
	trace     bool
	verbose   bool
}

func main() {
	var o options
	flag.StringVar(&o.input, "input", "", "Comma-separated input values for a buffered run")
	flag.BoolVar(&o.console, "i", false, "Interactive: read inputs from stdin, one per line")
	flag.BoolVar(&o.ascii, "ascii", false, "ASCII mode: exchange text lines with the program")
	flag.BoolVar(&o.disasm, "disasm", false, "Print a disassembly listing and exit")
	flag.StringVar(&o.amplify, "amplify", "", "Run an amplifier chain with these phases (e.g. 4,3,2,1,0)")
	flag.BoolVar(&o.feedback, "feedback", false, "Wire the amplifiers as a feedback ring")
	flag.BoolVar(&o.search, "search", false, "Search all orderings of the -amplify phases for the best signal")
	flag.IntVar(&o.network, "network", 0, "Run a packet network with this many nodes")
	flag.Int64Var(&o.nat, "nat", circuit.DefaultNATAddr, "NAT address for -network")
	flag.StringVar(&o.config, "config", "", "Path to intcode.toml (default: search upwards from the working directory)")
	flag.StringVar(&o.db, "db", "", "Snapshot database path")
	flag.StringVar(&o.save, "save", "", "Save the engine under this name when the run stops")
	flag.StringVar(&o.resume, "resume", "", "Resume the snapshot with this id instead of loading a program")
	flag.BoolVar(&o.list, "list", false, "List saved snapshots and exit")
	flag.StringVar(&o.forget, "forget", "", "Delete the snapshot with this id and exit")
	flag.BoolVar(&o.serve, "serve", false, "Start the machine server (Connect + gRPC)")
	flag.IntVar(&o.port, "port", 0, "Machine server port (used with -serve)")
	flag.BoolVar(&o.lsp, "lsp", false, "Start the language server on stdio")
	flag.StringVar(&o.remote, "remote", "", "Run on a remote machine server at this address")
	flag.StringVar(&o.transport, "transport", "connect", "Remote transport: connect or grpc")
	flag.BoolVar(&o.trace, "trace", false, "Log every executed instruction")
	flag.BoolVar(&o.verbose, "v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: intcode [options] [program.txt]\n\n")
		fmt.Fprintf(os.Stderr, "Runs an Intcode program. Without a path, [program] path from intcode.toml is used.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  intcode -input 1 day09.txt                # Buffered run, prints outputs\n")
		fmt.Fprintf(os.Stderr, "  intcode -i day05.txt                      # Interactive run\n")
		fmt.Fprintf(os.Stderr, "  intcode -ascii day25.txt                  # Text adventure\n")
		fmt.Fprintf(os.Stderr, "  intcode -amplify 5,6,7,8,9 -feedback -search day07.txt\n")
		fmt.Fprintf(os.Stderr, "  intcode -network 50 day23.txt\n")
		fmt.Fprintf(os.Stderr, "  intcode -disasm day02.txt\n")
		fmt.Fprintf(os.Stderr, "\nSnapshots:\n")
		fmt.Fprintf(os.Stderr, "  intcode -db snaps.db -save halfway day25.txt\n")
		fmt.Fprintf(os.Stderr, "  intcode -db snaps.db -resume <id> -i\n")
		fmt.Fprintf(os.Stderr, "  intcode -db snaps.db -list\n")
		fmt.Fprintf(os.Stderr, "\nServers:\n")
		fmt.Fprintf(os.Stderr, "  intcode -serve -port 8420                 # Connect + gRPC machine server\n")
		fmt.Fprintf(os.Stderr, "  intcode -remote localhost:8420 -transport grpc -input 2 day09.txt\n")
		fmt.Fprintf(os.Stderr, "  intcode -lsp                              # Language server on stdio\n")
	}
	flag.Parse()

	verbosity := 0
	if o.verbose {
		verbosity = 1
	}
	if o.trace {
		verbosity = 2
	}
	commonlog.Configure(verbosity, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, o, flag.Args(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches to the selected mode.
func run(ctx context.Context, o options, args []string, stdin io.Reader, stdout io.Writer) error {
	if o.lsp {
		return server.NewLSP().Run()
	}

	m, err := loadManifest(o.config)
	if err != nil {
		return err
	}
	if err := applyManifest(&o, m); err != nil {
		return err
	}

	if o.serve {
		return serve(ctx, o)
	}

	if o.remote != "" {
		return runRemote(ctx, o, args, stdin, stdout, m)
	}

	var st *store.Store
	if o.db != "" {
		if st, err = store.Open(o.db); err != nil {
			return err
		}
		defer st.Close()
	}
	if (o.save != "" || o.resume != "" || o.list || o.forget != "") && st == nil {
		return fmt.Errorf("snapshot flags need a snapshot database (-db or [store] path)")
	}

	switch {
	case o.list:
		return listSnapshots(ctx, st, stdout)
	case o.forget != "":
		return st.Delete(ctx, o.forget)
	}

	var engineOpts []vm.Option
	if o.trace {
		engineOpts = append(engineOpts, vm.WithTrace(true))
	}

	if o.resume != "" {
		e, err := st.Load(ctx, o.resume, engineOpts...)
		if err != nil {
			return err
		}
		return runEngine(ctx, o, e, st, stdin, stdout)
	}

	program, err := loadProgram(args, m)
	if err != nil {
		return err
	}

	switch {
	case o.disasm:
		_, err := io.WriteString(stdout, vm.Listing(program))
		return err
	case o.amplify != "":
		return runAmplifiers(ctx, o, program, stdout, engineOpts)
	case o.network > 0:
		res, err := circuit.Network{Nodes: o.network, NAT: o.nat, Options: engineOpts}.Run(ctx, program)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "first NAT y: %d\n", res.FirstNATY)
		fmt.Fprintf(stdout, "repeated y:  %d\n", res.RepeatedY)
		return nil
	}

	return runEngine(ctx, o, vm.New(program, engineOpts...), st, stdin, stdout)
}

func loadManifest(path string) (*manifest.Manifest, error) {
	if path != "" {
		return manifest.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return manifest.FindAndLoad(wd)
}

// applyManifest fills options the command line left unset.
func applyManifest(o *options, m *manifest.Manifest) error {
	if m == nil {
		return nil
	}
	if o.input == "" && len(m.Run.Input) > 0 {
		o.input = vm.FormatProgram(m.Run.Input)
	}
	if !o.console && !o.ascii {
		o.console = m.Run.Mode == manifest.ModeConsole
		o.ascii = m.Run.Mode == manifest.ModeASCII
	}
	if o.amplify == "" && len(m.Amplifier.Phases) > 0 {
		o.amplify = vm.FormatProgram(m.Amplifier.Phases)
		o.feedback = o.feedback || m.Amplifier.Feedback
		o.search = o.search || m.Amplifier.Search
	}
	if m.Network.Enabled {
		if o.network == 0 {
			o.network = m.Network.Nodes
		}
		if o.nat == circuit.DefaultNATAddr {
			o.nat = m.Network.NAT
		}
	}
	if o.db == "" {
		o.db = m.StorePath()
	}
	if o.port == 0 && m.Server.Addr != "" {
		_, port, err := net.SplitHostPort(m.Server.Addr)
		if err != nil {
			return fmt.Errorf("%s: [server] addr: %w", manifest.FileName, err)
		}
		if o.port, err = strconv.Atoi(port); err != nil || o.port < 0 || o.port > 65535 {
			return fmt.Errorf("%s: [server] addr: bad port %q", manifest.FileName, port)
		}
	}
	return nil
}

func loadProgram(args []string, m *manifest.Manifest) ([]int64, error) {
	path := ""
	switch {
	case len(args) > 0:
		path = args[0]
	case m != nil:
		path = m.ProgramPath()
	}
	if path == "" {
		return nil, fmt.Errorf("no program given and no [program] path in %s", manifest.FileName)
	}
	return vm.ReadProgram(path)
}

// newIO picks the backend for a single-engine run. The returned buffer is
// non-nil for buffered runs.
func newIO(o options, stdin io.Reader, stdout io.Writer) (vm.IO, *vm.Buffer, error) {
	switch {
	case o.ascii:
		return vm.NewASCII(stdin, stdout), nil, nil
	case o.console:
		return vm.NewConsole(stdin, stdout), nil, nil
	}
	input, err := vm.ParseProgram(o.input)
	if err != nil {
		return nil, nil, fmt.Errorf("-input: %w", err)
	}
	buf := vm.NewBuffer(input...)
	return buf, buf, nil
}

// runEngine drives e to termination, or until a buffered run runs out of
// input when the engine is to be saved.
func runEngine(ctx context.Context, o options, e *vm.Engine, st *store.Store, stdin io.Reader, stdout io.Writer) error {
	backend, buf, err := newIO(o, stdin, stdout)
	if err != nil {
		return err
	}

	err = vm.Run(e, backend)
	suspended := errors.Is(err, vm.ErrInputExhausted) && o.save != ""
	if err != nil && !suspended {
		return err
	}

	if buf != nil {
		for _, v := range buf.Outputs() {
			fmt.Fprintln(stdout, v)
		}
		if !suspended {
			addr0, _ := e.Peek(0)
			fmt.Fprintf(stdout, "address 0: %d\n", addr0)
		}
	}

	if o.save != "" {
		id, err := st.Save(ctx, o.save, e)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "saved %s as %s\n", o.save, id)
	}
	return nil
}

func listSnapshots(ctx context.Context, st *store.Store, stdout io.Writer) error {
	records, err := st.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Fprintf(stdout, "%s  %s  %-16s %d steps\n", r.ID, r.Created.Format(time.RFC3339), r.Name, r.Steps)
	}
	return nil
}

func parsePhases(s string) ([]int64, error) {
	phases, err := vm.ParseProgram(s)
	if err != nil {
		return nil, fmt.Errorf("-amplify: %w", err)
	}
	if len(phases) == 0 {
		return nil, fmt.Errorf("-amplify: no phases")
	}
	return phases, nil
}

func runAmplifiers(ctx context.Context, o options, program []int64, stdout io.Writer, opts []vm.Option) error {
	phases, err := parsePhases(o.amplify)
	if err != nil {
		return err
	}

	if o.search {
		best, signal, err := circuit.BestPhases(ctx, program, phases, o.feedback, opts...)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "best phases %s: %d\n", vm.FormatProgram(best), signal)
		return nil
	}

	var signal int64
	if o.feedback {
		signal, err = circuit.Feedback(ctx, program, phases, opts...)
	} else {
		signal, err = circuit.Chain(program, phases, opts...)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, signal)
	return nil
}
