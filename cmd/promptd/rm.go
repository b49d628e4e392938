package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRmCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <model-id>",
		Aliases: []string{"delete"},
		Short:   "Delete a model's files",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager(root.cfg, managerOptions{})
			if err != nil {
				return err
			}
			defer mgr.Close()
			if err := mgr.DeleteModel(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}
