package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/101arrowz/isoworker/iso"
)

func main() {
	if err := runCLI(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCLI(args []string) error {
	if len(args) < 2 {
		return usageError()
	}
	switch args[1] {
	case "emit":
		return emitCommand(args[2:])
	case "run":
		return runCommand(args[2:])
	case "worker":
		return workerCommand()
	case "repl":
		return runREPL()
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		return usageError()
	}
}

func emitCommand(args []string) error {
	fs := flag.NewFlagSet("emit", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	deps := fs.String("deps", "deps", "global producer function returning the dependencies")
	copyBuffers := fs.Bool("copy", false, "copy ArrayBuffers instead of moving them")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("isoworker emit: script path required")
	}
	realm, err := loadScript(fs.Arg(0))
	if err != nil {
		return err
	}
	bindings, err := producerBindings(realm, *deps, true)
	if err != nil {
		return err
	}
	ctx, err := iso.CreateContext(bindings, iso.ContextConfig{
		Capabilities: iso.NewGoroutineHost().Capabilities(),
		CopyBuffers:  *copyBuffers,
	})
	if err != nil {
		return fmt.Errorf("encode failed: %w", err)
	}
	fmt.Println(ctx.Program)
	if code := ctx.PatchData().Code; code != "" {
		fmt.Println("// patches")
		fmt.Println(code)
	}
	return nil
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	deps := fs.String("deps", "deps", "global producer function returning the dependencies")
	function := fs.String("fn", "run", "global function to run in the isolate")
	process := fs.Bool("process", false, "run the isolate in a child process")
	timeout := fs.Duration("timeout", 30*time.Second, "give up waiting for the result after this long")
	verbose := fs.Bool("v", false, "log worker activity to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	remaining := fs.Args()
	if len(remaining) == 0 {
		return errors.New("isoworker run: script path required")
	}
	realm, err := loadScript(remaining[0])
	if err != nil {
		return err
	}
	fn := realm.GlobalValue(*function)
	if !fn.IsCallable() {
		return fmt.Errorf("isoworker run: %s is not a function", *function)
	}
	bindings, err := producerBindings(realm, *deps, false)
	if err != nil {
		return err
	}

	logger := newLogger(*verbose)
	cfg := iso.Config{Logger: logger}
	if *process {
		cfg.Host = &iso.ProcessHost{Logger: logger}
	}
	worker, err := iso.Workerize(realm, fn, bindings, cfg)
	if err != nil {
		return fmt.Errorf("workerize failed: %w", err)
	}
	defer worker.Close()

	callArgs := make([]iso.Value, len(remaining)-1)
	for i, raw := range remaining[1:] {
		callArgs[i] = iso.NewString(raw)
	}
	type outcome struct {
		result iso.Value
		err    error
	}
	done := make(chan outcome, 1)
	err = worker.Call(callArgs, func(err error, result iso.Value) {
		done <- outcome{result: result, err: err}
	})
	if err != nil {
		return fmt.Errorf("call failed: %w", err)
	}

	select {
	case out := <-done:
		if out.err != nil {
			return fmt.Errorf("execution failed: %w", out.err)
		}
		if out.result.Kind() == iso.KindString {
			fmt.Println(out.result.Str())
		} else if !out.result.IsUndefined() {
			fmt.Println(iso.Inspect(out.result))
		}
		return nil
	case <-time.After(*timeout):
		return fmt.Errorf("execution timed out after %s", *timeout)
	}
}

func workerCommand() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return iso.ServeProcess(ctx, os.Stdin, os.Stdout, newLogger(os.Getenv("ISOWORKER_DEBUG") != ""))
}

func loadScript(path string) (*iso.Realm, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve script path: %w", err)
	}
	input, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	realm := iso.NewRealm()
	if _, err := realm.Eval(string(input)); err != nil {
		return nil, fmt.Errorf("script failed: %w", err)
	}
	return realm, nil
}

// producerBindings resolves the dependency producer named by name. A missing
// producer is only an error when required is set.
func producerBindings(realm *iso.Realm, name string, required bool) ([]iso.Binding, error) {
	producer := realm.GlobalValue(name)
	if producer.IsUndefined() && !required {
		return nil, nil
	}
	if !producer.IsCallable() {
		return nil, fmt.Errorf("dependency producer %s is not a function", name)
	}
	bindings, err := iso.Dependencies(realm, producer)
	if err != nil {
		return nil, fmt.Errorf("collect dependencies: %w", err)
	}
	return bindings, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func usageError() error {
	printUsage()
	return errors.New("invalid command")
}

func printUsage() {
	prog := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [flags]\n", prog)
	fmt.Fprintln(os.Stderr, "Commands:")
	lines := []string{
		"emit [-deps name] [-copy] <script>",
		"    print the program and patches that rebuild the producer's dependencies",
		"run [-deps name] [-fn name] [-process] [-timeout d] [-v] <script> [args...]",
		"    run a global function in an isolate with string arguments",
		"worker",
		"    serve one isolate on stdin/stdout (used by -process)",
		"repl",
		"    start an interactive session",
	}
	fmt.Fprintln(os.Stderr, "  "+strings.Join(lines, "\n  "))
}

type flagErrorSink struct{}

func (flagErrorSink) Write(p []byte) (int, error) {
	return len(p), nil
}
