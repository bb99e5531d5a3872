package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newVersionCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Example: `  operation version
  operation version --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":   version,
				"commit":    commit,
				"buildDate": buildDate,
				"goVersion": goVersion,
			}
			return render(cmd.OutOrStdout(), flags.output, info, func(w io.Writer) error {
				fmt.Fprintf(w, "operation version %s\n", version)
				if version != "dev" {
					fmt.Fprintf(w, "  commit:     %s\n", commit)
					fmt.Fprintf(w, "  built:      %s\n", buildDate)
					fmt.Fprintf(w, "  go version: %s\n", goVersion)
				}
				return nil
			})
		},
	}
}
