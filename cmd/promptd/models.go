package main

import (
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"promptd/pkg/types"
)

func newModelsCmd(root *rootOptions) *cobra.Command {
	var inspect bool
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"ls", "list"},
		Short:   "List catalog models and their state",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, err := newManager(root.cfg, managerOptions{})
			if err != nil {
				return err
			}
			defer mgr.Close()

			models := mgr.ListModels()
			if inspect {
				for i, m := range models {
					if detailed, err := mgr.Model(m.ID); err == nil {
						models[i] = detailed
					}
				}
			}
			renderModels(cmd, models, mgr.Selected(), inspect)
			return nil
		},
	}
	cmd.Flags().BoolVar(&inspect, "inspect", false, "Read GGUF metadata of downloaded models")
	return cmd
}

func renderModels(cmd *cobra.Command, models []types.Model, selected string, inspect bool) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	header := []string{"", "ID", "Name", "Size", "State", "Status"}
	if inspect {
		header = append(header, "Arch", "Params", "File type")
	}
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, m := range models {
		mark := ""
		if m.ID == selected {
			mark = "*"
		}
		status := m.Status
		if m.Error != "" {
			status = m.Error
		}
		row := []string{mark, m.ID, m.Name, m.Size, m.State, status}
		if inspect {
			var arch, params, ft string
			if a := m.Artifact; a != nil {
				arch, params, ft = a.Architecture, a.Parameters, a.FileType
			}
			row = append(row, arch, params, ft)
		}
		table.Append(row)
	}
	table.Render()
}
