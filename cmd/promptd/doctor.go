package main

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newDoctorCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the llama.cpp tools for the configured strategy are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := newManager(root.cfg, managerOptions{})
			if err != nil {
				return err
			}
			defer mgr.Close()

			rep := mgr.SanityCheck()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "strategy:   %s\n", rep.Strategy)
			fmt.Fprintf(out, "models dir: %s\n", rep.ModelsDir)
			fmt.Fprintf(out, "in-process: %t\n\n", rep.InProcessAvailable)

			table := tablewriter.NewWriter(out)
			table.SetHeader([]string{"Role", "Found", "Path / hint"})
			table.SetAutoWrapText(false)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetBorder(false)
			for _, b := range rep.Binaries {
				detail := b.Path
				if !b.Found {
					detail = b.Hint
				}
				table.Append([]string{b.Role, fmt.Sprintf("%t", b.Found), detail})
			}
			table.Render()

			if !rep.OK {
				return fmt.Errorf("%s strategy is missing required tools", rep.Strategy)
			}
			return nil
		},
	}
}
