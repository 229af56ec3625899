package main

import (
	"github.com/spf13/cobra"

	"hugin/internal/job"
	"hugin/internal/types"
)

// jobCmd runs a single job file
var jobCmd = &cobra.Command{
	Use:   "job <session.toml> <job.toml>",
	Short: "Run one job and print its clone pairs as JSON",
	Args:  cobra.ExactArgs(2),
	RunE:  runSingleJob,
}

func runSingleJob(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	session, err := job.LoadSession(args[0])
	if err != nil {
		return err
	}
	j, err := job.Load(args[1])
	if err != nil {
		return err
	}
	r, err := newRunner(cfg, session)
	if err != nil {
		return err
	}

	pairs, err := r.RunJob(ctx, *j)
	if err != nil {
		return err
	}
	if pairs == nil {
		pairs = []types.ClonePair{}
	}
	return writeJSON(cmd.OutOrStdout(), pairs)
}
