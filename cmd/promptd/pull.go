package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"promptd/internal/manager"
)

func newPullCmd(root *rootOptions) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "pull <model-id>",
		Short: "Download (and convert, if needed) a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var bars *fileBars
			mo := managerOptions{}
			if !quiet {
				bars = &fileBars{w: cmd.ErrOrStderr()}
				mo.onProgress = bars.update
			}
			mgr, err := newManager(root.cfg, mo)
			if err != nil {
				return err
			}
			defer mgr.Close()
			return pull(ctx, cmd.OutOrStdout(), mgr, args[0], bars)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not draw progress bars")
	return cmd
}

func pull(ctx context.Context, out io.Writer, mgr *manager.Manager, id string, bars *fileBars) error {
	if e, ok := mgr.Entry(id); ok && e.State == manager.StateReady {
		fmt.Fprintf(out, "%s is already downloaded\n", id)
		return nil
	}
	if err := mgr.DownloadModel(id); err != nil {
		return err
	}
	err := mgr.Wait(ctx, id)
	if bars != nil {
		bars.finish()
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("download of %s interrupted", id)
		}
		return err
	}
	e, _ := mgr.Entry(id)
	switch e.State {
	case manager.StateReady:
		fmt.Fprintf(out, "%s ready\n", id)
		return nil
	case manager.StateError:
		return errors.New(e.LastError)
	default:
		return fmt.Errorf("%s: %s", id, e.Status)
	}
}

// fileBars draws one progress bar per downloaded file.
type fileBars struct {
	w io.Writer

	mu   sync.Mutex
	name string
	bar  *progressbar.ProgressBar
}

func (f *fileBars) update(name string, written, total int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bar == nil || f.name != name {
		if f.bar != nil {
			_ = f.bar.Finish()
		}
		f.name = name
		f.bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(f.w),
			progressbar.OptionSetDescription(name),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = f.bar.Set64(written)
}

func (f *fileBars) finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bar != nil {
		_ = f.bar.Finish()
		f.bar = nil
	}
}
