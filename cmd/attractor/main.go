package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-attractor/attractor/internal/attractor/dot"
	"github.com/go-attractor/attractor/internal/attractor/engine"
	"github.com/go-attractor/attractor/internal/attractor/model"
	"github.com/go-attractor/attractor/internal/attractor/validate"
)

func signalCancelContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigCh; ok {
			cancel()
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		close(sigCh)
		cancel()
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "resume":
		resumeCmd(os.Args[2:])
	case "validate":
		validateCmd(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  attractor run --graph <file.dot> [--config <run.yaml>] [--run-id <id>]")
	fmt.Fprintln(os.Stderr, "  attractor resume --graph <file.dot> [--config <run.yaml>]")
	fmt.Fprintln(os.Stderr, "  attractor validate --graph <file.dot>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "environment overrides: ATTRACTOR_AGENT_CMD, ATTRACTOR_STAGE_DIR, ATTRACTOR_EXECUTION_LOG")
}

type commonFlags struct {
	graphPath  string
	configPath string
	runID      string
}

func parseCommonFlags(args []string) (commonFlags, error) {
	var f commonFlags
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--graph":
			i++
			if i >= len(args) {
				return f, fmt.Errorf("--graph requires a value")
			}
			f.graphPath = args[i]
		case "--config":
			i++
			if i >= len(args) {
				return f, fmt.Errorf("--config requires a value")
			}
			f.configPath = args[i]
		case "--run-id":
			i++
			if i >= len(args) {
				return f, fmt.Errorf("--run-id requires a value")
			}
			f.runID = args[i]
		default:
			return f, fmt.Errorf("unrecognized flag %q", args[i])
		}
	}
	if f.graphPath == "" {
		return f, fmt.Errorf("--graph is required")
	}
	return f, nil
}

func loadGraph(path string) (*model.Graph, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	g, err := dot.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse graph: %w", err)
	}
	if err := validate.ValidateOrError(g); err != nil {
		return nil, err
	}
	return g, nil
}

func runCmd(args []string) {
	f, err := parseCommonFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "run:", err)
		usage()
		os.Exit(1)
	}
	execute(f, false)
}

func resumeCmd(args []string) {
	f, err := parseCommonFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resume:", err)
		usage()
		os.Exit(1)
	}
	execute(f, true)
}

func execute(f commonFlags, resume bool) {
	g, err := loadGraph(f.graphPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	cfg, err := engine.LoadConfig(f.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	ctx, cleanup := signalCancelContext()
	defer cleanup()

	res, err := engine.Run(ctx, engine.RunOptions{
		Graph:  g,
		Config: cfg,
		RunID:  f.runID,
		Resume: resume,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Printf("run %s finished with status %s\n", res.RunID, res.FinalStatus)
	if res.FinalStatus != "success" {
		os.Exit(1)
	}
}

func validateCmd(args []string) {
	var graphPath string
	for i := 0; i < len(args); i++ {
		if args[i] == "--graph" {
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--graph requires a value")
				os.Exit(1)
			}
			graphPath = args[i]
		}
	}
	if graphPath == "" {
		fmt.Fprintln(os.Stderr, "--graph is required")
		usage()
		os.Exit(1)
	}

	b, err := os.ReadFile(graphPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	g, err := dot.Parse(b)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	diags := validate.Validate(g)
	hasError := false
	for _, d := range diags {
		fmt.Printf("%s [%s] %s\n", d.Severity, d.Rule, d.Message)
		if d.Severity == validate.SeverityError {
			hasError = true
		}
	}
	if hasError {
		os.Exit(1)
	}
	fmt.Println("graph is valid")
}

