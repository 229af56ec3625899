package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"hugin/internal/config"
	"hugin/internal/detector"
	"hugin/internal/dispatch"
	"hugin/internal/job"
	"hugin/internal/logging"
	"hugin/internal/runner"
	"hugin/internal/store"
)

var failFast bool

// runCmd dispatches every job of a session
var runCmd = &cobra.Command{
	Use:   "run <session.toml>",
	Short: "Run every job of a session",
	Long: `Loads the session, discovers the *.toml job files in its jobs directory and
runs them concurrently. A failing job does not stop the others; each job's
outcome is listed in the summary and, when configured, stored in the result
database and as a JSON document.`,
	Args: cobra.ExactArgs(1),
	RunE: runSession,
}

func init() {
	runCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Exit non-zero when no job succeeds")
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	session, err := job.LoadSession(args[0])
	if err != nil {
		return err
	}
	entries, err := session.Jobs()
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

	d := &dispatch.Dispatcher{
		Runner:      r,
		Concurrency: cfg.Dispatch.Concurrency,
		Sink:        sinks,
	}
	audit := logging.Audit()
	audit.RunStart(args[0], len(entries))
	start := time.Now()
	outcomes, runErr := d.Run(ctx, entries)
	summary := dispatch.Summarize(outcomes)
	audit.RunEnd(args[0], summary.OK, summary.Failed+summary.Canceled, time.Since(start))
	if err := finish(summary); err != nil {
		runErr = errors.Join(runErr, err)
	}

	printSummary(cmd.OutOrStdout(), outcomes, summary)

	if runErr != nil {
		return runErr
	}
	if failFast && summary.AllFailed() {
		return fmt.Errorf("all %d jobs failed", summary.Total)
	}
	return nil
}

// newRunner builds a job runner for the session's project with the
// configured detector.
func newRunner(c *config.Config, session *job.Session) (*runner.Runner, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	projectPath, err := session.AbsoluteProjectPath()
	if err != nil {
		return nil, fmt.Errorf("failed to locate project directory: %w", err)
	}
	databasePath, err := c.DatabasePath()
	if err != nil {
		return nil, err
	}
	det, err := detector.New(c)
	if err != nil {
		return nil, err
	}
	logging.Boot("project %s, database %s", projectPath, databasePath)
	return runner.New(projectPath, databasePath, det), nil
}

// openSinks opens the configured result sinks. finish closes them,
// completing the run record in the database.
func openSinks(ctx context.Context, c *config.Config, sessionFile string) (dispatch.MultiSink, func(dispatch.Summary) error, error) {
	var sinks dispatch.MultiSink
	var closers []func(dispatch.Summary) error
	finish := func(s dispatch.Summary) error {
		var errs []error
		for _, fn := range closers {
			errs = append(errs, fn(s))
		}
		return errors.Join(errs...)
	}

	jsonDir, err := c.JSONDir()
	if err != nil {
		return nil, nil, err
	}
	if jsonDir != "" {
		w, err := store.NewJSONWriter(jsonDir)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, w)
	}

	dbPath, err := c.StorePath()
	if err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		db, err := store.Open(dbPath)
		if err != nil {
			return nil, nil, err
		}
		session, err := filepath.Abs(sessionFile)
		if err != nil {
			session = sessionFile
		}
		runID, err := db.BeginRun(ctx, session)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		sinks = append(sinks, db.Sink(runID))
		closers = append(closers, func(s dispatch.Summary) error {
			defer db.Close()
			return db.FinishRun(context.WithoutCancel(ctx), runID, s)
		})
	}
	return sinks, finish, nil
}
