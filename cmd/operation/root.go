package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// Output format constants.
const (
	jsonFormat = "json"
	yamlFormat = "yaml"
	textFormat = "text"
)

// globalFlags are shared by every command.
type globalFlags struct {
	verbose bool
	output  string
}

func (g *globalFlags) validate() error {
	switch g.output {
	case textFormat, jsonFormat, yamlFormat:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (text, json, yaml)", g.output)
	}
}

// logger writes structured logs to w, as JSON when the output is not text.
func (g *globalFlags) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if g.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if g.output == textFormat {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "operation",
		Short: "Run bot task graphs",
		Long: `operation runs bot tasks declared as YAML graphs of nodes and edges.

Each node looks at the screen, drives the input and returns a result;
the engine follows the edge matching that result until none matches.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return flags.validate()
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&flags.output, "output", textFormat, "Output format (text, json, yaml)")
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(
		newRunCmd(flags),
		newValidateCmd(flags),
		newNodesCmd(flags),
		newVersionCmd(flags),
	)
	return cmd
}
