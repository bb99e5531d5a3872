package main

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/agentstation/operation/builtin"
	"github.com/agentstation/operation/definition"
)

// graphReport is the validation outcome of one file.
type graphReport struct {
	File        string   `json:"file" yaml:"file"`
	Graph       string   `json:"graph,omitempty" yaml:"graph,omitempty"`
	Nodes       int      `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Fingerprint string   `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	Unreachable []string `json:"unreachable,omitempty" yaml:"unreachable,omitempty"`
	Error       string   `json:"error,omitempty" yaml:"error,omitempty"`
}

var errInvalidGraphs = errors.New("invalid graphs")

func newValidateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <pattern>...",
		Short: "Parse, check and build graph files",
		Long: `validate loads every file matching the patterns into one library, so
sub nodes may refer to any graph among them, and builds each graph.
Patterns support ** as in graphs/**/*.yaml.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := expand(args)
			if err != nil {
				return err
			}
			reports := validateFiles(files)

			failed := 0
			for _, r := range reports {
				if r.Error != "" {
					failed++
				}
			}
			err = render(cmd.OutOrStdout(), flags.output, reports, func(w io.Writer) error {
				for _, r := range reports {
					switch {
					case r.Error != "":
						fmt.Fprintf(w, "FAIL %s: %s\n", r.File, r.Error)
					case len(r.Unreachable) > 0:
						fmt.Fprintf(w, "ok   %s (%s, %d nodes, unreachable: %v)\n", r.File, r.Graph, r.Nodes, r.Unreachable)
					default:
						fmt.Fprintf(w, "ok   %s (%s, %d nodes)\n", r.File, r.Graph, r.Nodes)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errInvalidGraphs, failed, len(reports))
			}
			return nil
		},
	}
}

// expand resolves glob patterns to a sorted, de-duplicated file list.
func expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("pattern %s matches no files", p)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func validateFiles(files []string) []graphReport {
	loader := definition.NewLoader()
	builtin.RegisterAll(loader)

	reports := make([]graphReport, len(files))
	names := make([]string, len(files))
	for i, f := range files {
		reports[i].File = f
		def, err := definition.ParseFile(f)
		if err == nil {
			err = loader.Add(def)
		}
		if err != nil {
			reports[i].Error = err.Error()
			continue
		}
		names[i] = def.Name
		reports[i].Graph = def.Name
	}

	for i := range reports {
		if reports[i].Error != "" {
			continue
		}
		g, err := loader.Graph(names[i])
		if err != nil {
			reports[i].Error = err.Error()
			continue
		}
		reports[i].Nodes = len(g.Nodes())
		reports[i].Fingerprint = g.Fingerprint()
		reports[i].Unreachable = g.Unreachable()
	}
	return reports
}
