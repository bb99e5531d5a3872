package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/agentstation/operation"
	"github.com/agentstation/operation/builtin"
	"github.com/agentstation/operation/definition"
	"github.com/agentstation/operation/device/browser"
	"github.com/agentstation/operation/device/replay"
	"github.com/agentstation/operation/device/stopfile"
	"github.com/agentstation/operation/middleware"
	"github.com/agentstation/operation/record"
	"github.com/agentstation/operation/store"
)

// runFlags holds the flags of the run command.
type runFlags struct {
	library     []string
	frames      string
	browserURL  string
	timeout     time.Duration
	stopFile    string
	recordPath  string
	metricsFile string
	stateTTL    time.Duration
	stateMax    int
	dryRun      bool
}

// runReport is what run prints when it finishes.
type runReport struct {
	Operation   string           `json:"operation" yaml:"operation"`
	RunID       string           `json:"run_id" yaml:"run_id"`
	Success     bool             `json:"success" yaml:"success"`
	Status      operation.Status `json:"status,omitempty" yaml:"status,omitempty"`
	Aborted     bool             `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	Data        any              `json:"data,omitempty" yaml:"data,omitempty"`
	Path        []string         `json:"path" yaml:"path"`
	Invocations int              `json:"invocations" yaml:"invocations"`
	Duration    string           `json:"duration" yaml:"duration"`
	Actions     []string         `json:"actions,omitempty" yaml:"actions,omitempty"`
}

var errRunFailed = errors.New("run failed")

func newRunCmd(flags *globalFlags) *cobra.Command {
	rf := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <graph.yaml>",
		Short: "Execute a graph",
		Example: `  # Replay a recorded session
  operation run daily.yaml --frames 'captures/daily/*.png'

  # Drive a browser game, with sub graphs from a library
  operation run farm.yaml --library 'graphs/**/*.yaml' --browser http://localhost:8080

  # Stop when a scheduler touches a file, and keep a run log
  operation run farm.yaml --stop-file /tmp/bot.stop --record runs.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runGraph(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), flags, rf, args[0])
		},
	}

	cmd.Flags().StringSliceVar(&rf.library, "library", nil, "Glob of graph files sub nodes may refer to (repeatable)")
	cmd.Flags().StringVar(&rf.frames, "frames", "", "Glob of PNG frames to replay as the screen")
	cmd.Flags().StringVar(&rf.browserURL, "browser", "", "URL of a browser-hosted game client")
	cmd.Flags().DurationVar(&rf.timeout, "timeout", 0, "Whole-run timeout (overrides the graph)")
	cmd.Flags().StringVar(&rf.stopFile, "stop-file", "", "Stop the run when this file appears")
	cmd.Flags().StringVar(&rf.recordPath, "record", "", "Append a JSON line per run to this file")
	cmd.Flags().StringVar(&rf.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	cmd.Flags().DurationVar(&rf.stateTTL, "state-ttl", 0, "Forget cached state flags this long after they were written")
	cmd.Flags().IntVar(&rf.stateMax, "state-max", 1000, "Maximum number of cached state flags")
	cmd.Flags().BoolVar(&rf.dryRun, "dry-run", false, "Build the graph without executing it")
	cmd.MarkFlagsMutuallyExclusive("frames", "browser")
	return cmd
}

func runGraph(ctx context.Context, stdout, stderr io.Writer, flags *globalFlags, rf *runFlags, file string) error {
	slogger := flags.logger(stderr)
	logger := operation.NewSlogLogger(slogger)

	g, err := loadGraph(file, rf.library)
	if err != nil {
		return err
	}
	slogger.Debug("graph loaded", "graph", g.Name(), "nodes", len(g.Nodes()), "fingerprint", g.Fingerprint())
	if unreachable := g.Unreachable(); len(unreachable) > 0 {
		slogger.Warn("graph has unreachable nodes", "graph", g.Name(), "nodes", unreachable)
	}
	if rf.dryRun {
		fmt.Fprintf(stdout, "%s: ok (%d nodes)\n", g.Name(), len(g.Nodes()))
		return nil
	}

	state := store.NewBounded(
		store.WithMaxEntries(rf.stateMax),
		store.WithTTL(rf.stateTTL),
		store.WithEvictionCallback(func(key string, _ any) {
			slogger.Debug("state flag dropped", "key", key)
		}),
	)
	ctxOpts := []operation.ContextOption{
		operation.WithContextLogger(logger),
		operation.WithState(state),
	}
	var replayInput *replay.Input
	switch {
	case rf.frames != "":
		screen, err := replay.Open(rf.frames)
		if err != nil {
			return err
		}
		replayInput = replay.NewInput(logger)
		ctxOpts = append(ctxOpts, operation.WithScreen(screen), operation.WithInput(replayInput))
	case rf.browserURL != "":
		b, err := browser.New(ctx, rf.browserURL)
		if err != nil {
			return err
		}
		defer b.Close()
		ctxOpts = append(ctxOpts, operation.WithScreen(b), operation.WithInput(b))
	}
	bot := operation.NewContext(ctxOpts...)

	if rf.stopFile != "" {
		w, err := stopfile.New(rf.stopFile, bot.Stop, logger)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Close()
	}

	registry := prometheus.NewRegistry()
	collector, err := middleware.NewPrometheusCollector(registry)
	if err != nil {
		return err
	}

	op := operation.New(g, bot,
		operation.WithTimeout(rf.timeout),
		operation.WithLogger(logger),
		operation.WithMiddleware(middleware.Timing(), middleware.Metrics(collector)),
		operation.WithOnResult(collector.OnResult(g.Name())),
	)

	if rf.recordPath != "" {
		f, err := os.OpenFile(rf.recordPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // operator-chosen path
		if err != nil {
			return fmt.Errorf("open record file: %w", err)
		}
		defer f.Close()
		record.NewWriter(f).Attach(op)
	}

	result := op.Execute(ctx)

	if rf.metricsFile != "" {
		if err := prometheus.WriteToTextfile(rf.metricsFile, registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	report := runReport{
		Operation:   op.Name(),
		RunID:       op.RunID(),
		Success:     result.Success,
		Status:      result.Status,
		Aborted:     result.Aborted,
		Data:        result.Data,
		Path:        op.Path(),
		Invocations: op.Invocations(),
		Duration:    time.Since(op.StartedAt()).Round(time.Millisecond).String(),
	}
	if replayInput != nil {
		for _, a := range replayInput.Actions() {
			report.Actions = append(report.Actions, a.String())
		}
	}
	err = render(stdout, flags.output, report, func(w io.Writer) error {
		fmt.Fprintf(w, "%s: %s\n", report.Operation, result)
		fmt.Fprintf(w, "  run:   %s\n", report.RunID)
		fmt.Fprintf(w, "  path:  %s\n", strings.Join(report.Path, " -> "))
		fmt.Fprintf(w, "  calls: %d in %s\n", report.Invocations, report.Duration)
		for _, a := range report.Actions {
			fmt.Fprintf(w, "  input: %s\n", a)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if !result.Success {
		return fmt.Errorf("%w: %w", errRunFailed, result.Err())
	}
	return nil
}

// loadGraph builds the graph in file. Library graphs are loaded first so
// sub nodes can resolve them; file itself may be part of the library.
func loadGraph(file string, library []string) (*operation.Graph, error) {
	loader := definition.NewLoader()
	builtin.RegisterAll(loader)

	if len(library) > 0 {
		files, err := expand(library)
		if err != nil {
			return nil, err
		}
		if err := loader.AddFiles(files...); err != nil {
			return nil, err
		}
	}

	def, err := definition.ParseFile(file)
	if err != nil {
		return nil, err
	}
	if prev, ok := loader.Definition(def.Name); ok {
		// the graph file may itself match a --library pattern
		if !sameFile(prev.Source, file) {
			return nil, fmt.Errorf("%s: %w: %s also defined in %s", file, definition.ErrDuplicateGraph, def.Name, prev.Source)
		}
	} else if err := loader.Add(def); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return loader.Graph(def.Name)
}

func sameFile(a, b string) bool {
	sa, err := os.Stat(a)
	if err != nil {
		return false
	}
	sb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(sa, sb)
}
