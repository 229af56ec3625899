package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"hugin/internal/dispatch"
	"hugin/internal/job"
	"hugin/internal/logging"
	"hugin/internal/watch"
)

var watchExisting bool

// watchCmd runs jobs as they are written to the jobs directory
var watchCmd = &cobra.Command{
	Use:   "watch <session.toml>",
	Short: "Run jobs as they appear in the session's jobs directory",
	Long: `Watches the session's jobs directory and runs each job file once it has
been created or modified and left alone for a moment. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: watchSession,
}

func init() {
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "Run the jobs already present before watching")
}

func watchSession(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	session, err := job.LoadSession(args[0])
	if err != nil {
		return err
	}
	jobsDir, err := session.AbsoluteJobsPath()
	if err != nil {
		return err
	}
	r, err := newRunner(cfg, session)
	if err != nil {
		return err
	}
	sinks, finish, err := openSinks(ctx, cfg, args[0])
	if err != nil {
		return err
	}

	d := &dispatch.Dispatcher{Runner: r, Concurrency: cfg.Dispatch.Concurrency, Sink: sinks}
	out := cmd.OutOrStdout()
	var all []dispatch.Outcome

	if watchExisting {
		entries, err := job.Discover(jobsDir)
		if err != nil {
			return err
		}
		outcomes, err := d.Run(ctx, entries)
		if err != nil {
			logging.WatchError("initial dispatch: %v", err)
		}
		printSummary(out, outcomes, dispatch.Summarize(outcomes))
		all = append(all, outcomes...)
	}

	w, err := watch.New(jobsDir, func(ctx context.Context, path string) {
		outcomes, err := d.Run(ctx, []job.Entry{job.NewEntry(path)})
		if err != nil {
			logging.WatchError("dispatch %s: %v", path, err)
		}
		printSummary(out, outcomes, dispatch.Summarize(outcomes))
		all = append(all, outcomes...)
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	fmt.Fprintf(out, "watching %s (interrupt to stop)\n", jobsDir)

	<-ctx.Done()
	w.Stop()
	return finish(dispatch.Summarize(all))
}
