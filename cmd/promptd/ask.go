package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"promptd/internal/manager"
	"promptd/internal/prompt"
)

type askOptions struct {
	model        string
	frontmostApp string
	clipboard    string
	noWait       bool
}

func newAskCmd(root *rootOptions) *cobra.Command {
	o := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Stream a completion for a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mgr, err := newManager(root.cfg, managerOptions{})
			if err != nil {
				return err
			}
			defer mgr.Close()
			if o.model != "" {
				if err := mgr.SelectModel(o.model); err != nil {
					return err
				}
			}
			pc := prompt.Context{FrontmostApp: o.frontmostApp, Clipboard: o.clipboard}
			return ask(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), mgr, strings.Join(args, " "), pc, !o.noWait)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&o.model, "model", "m", "", "Model to use instead of the configured default")
	f.StringVar(&o.frontmostApp, "app", "", "Name of the application the request comes from")
	f.StringVar(&o.clipboard, "clipboard", "", "Clipboard text to include as context")
	f.BoolVar(&o.noWait, "no-wait", false, "Fail instead of waiting when the model still has to be downloaded")
	return cmd
}

// ask streams one completion to out. When the selected model is not ready
// the download it triggered is awaited once, then the request is retried.
func ask(ctx context.Context, out, errOut io.Writer, mgr *manager.Manager, input string, pc prompt.Context, wait bool) error {
	err := streamTo(ctx, out, mgr, input, pc)
	if err == nil || !wait || !manager.IsNotReady(err) {
		return err
	}
	fmt.Fprintln(errOut, err.Error())
	id := mgr.Selected()
	if werr := mgr.Wait(ctx, id); werr != nil {
		return werr
	}
	if e, ok := mgr.Entry(id); ok && e.State == manager.StateError {
		return errors.New(e.LastError)
	}
	return streamTo(ctx, out, mgr, input, pc)
}

func streamTo(ctx context.Context, out io.Writer, mgr *manager.Manager, input string, pc prompt.Context) error {
	s := mgr.RequestCompletion(ctx, input, pc)
	defer s.Close()
	wrote := false
	for c := range s.C() {
		if c.Err != nil {
			if wrote {
				fmt.Fprintln(out)
			}
			return c.Err
		}
		if _, err := io.WriteString(out, c.Text); err != nil {
			return err
		}
		wrote = true
	}
	if wrote {
		fmt.Fprintln(out)
	}
	return ctx.Err()
}
