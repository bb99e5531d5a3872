package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/agentstation/operation/builtin"
)

func newNodesCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List the node types available to YAML graphs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			nodes := builtin.Default().All()
			sort.SliceStable(nodes, func(i, j int) bool {
				return nodes[i].Category < nodes[j].Category
			})
			return render(cmd.OutOrStdout(), flags.output, nodes, func(w io.Writer) error {
				return nodesTable(w, nodes)
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "info <type>",
		Short: "Show the config schema and examples of a node type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, ok := builtin.Default().Get(args[0])
			if !ok {
				return fmt.Errorf("node type %q not found", args[0])
			}
			meta := b.Metadata()
			return render(cmd.OutOrStdout(), flags.output, meta, func(w io.Writer) error {
				return nodeInfo(w, meta)
			})
		},
	})
	return cmd
}

func nodesTable(w io.Writer, nodes []builtin.NodeMetadata) error {
	category := ""
	for _, node := range nodes {
		if node.Category != category {
			category = node.Category
			fmt.Fprintf(w, "\n%s:\n", strings.ToUpper(category[:1])+category[1:])
			fmt.Fprintln(w, strings.Repeat("-", len(category)+1))
		}
		fmt.Fprintf(w, "  %-12s %s\n", node.Type, node.Description)
	}
	fmt.Fprintf(w, "\nTotal: %d node types\n", len(nodes))
	fmt.Fprintln(w, "\nUse 'operation nodes info <type>' for the config of a node type.")
	return nil
}

func nodeInfo(w io.Writer, node builtin.NodeMetadata) error {
	fmt.Fprintf(w, "Node Type: %s\n", node.Type)
	fmt.Fprintf(w, "Category: %s\n", node.Category)
	fmt.Fprintf(w, "Description: %s\n", node.Description)
	if len(node.Statuses) > 0 {
		fmt.Fprintf(w, "Statuses: %s\n", strings.Join(node.Statuses, ", "))
	}
	if node.Since != "" {
		fmt.Fprintf(w, "Since: %s\n", node.Since)
	}
	fmt.Fprintln(w)

	if len(node.ConfigSchema) > 0 {
		schema, err := json.MarshalIndent(node.ConfigSchema, "  ", "  ")
		if err != nil {
			return fmt.Errorf("marshal schema: %w", err)
		}
		fmt.Fprintln(w, "Configuration:")
		fmt.Fprintf(w, "  %s\n\n", schema)
	}

	if len(node.Examples) > 0 {
		fmt.Fprintln(w, "Examples:")
		for i, ex := range node.Examples {
			fmt.Fprintf(w, "  %d. %s\n", i+1, ex.Name)
			if ex.Description != "" {
				fmt.Fprintf(w, "     %s\n", ex.Description)
			}
			config, err := yaml.Marshal(ex.Config)
			if err != nil {
				return fmt.Errorf("marshal example: %w", err)
			}
			for _, line := range strings.Split(strings.TrimRight(string(config), "\n"), "\n") {
				fmt.Fprintf(w, "       %s\n", line)
			}
		}
	}
	return nil
}
