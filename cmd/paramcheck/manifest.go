package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"paramcheck/internal/manifest"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest <file>",
	Short: "Print a parsed manifest",
	Long:  "manifest prints the parameters of a manifest file sorted by name and flags values that are not numbers.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := manifest.Load(args[0])
		if err != nil {
			return err
		}
		return printManifest(m)
	},
}

func printManifest(m *manifest.Manifest) error {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	bad := 0
	for _, e := range m.Entries() {
		note := ""
		if _, err := e.Float(); err != nil {
			note = fmt.Sprintf("not a number (line %d)", e.Line)
			bad++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Raw, note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(stdout, "%d params, %d unparsable\n", m.Len(), bad)
	return err
}
