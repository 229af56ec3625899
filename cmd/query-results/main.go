// query-results prints the most recent runs recorded in a hugin result
// database, with each job's outcome and clone pairs.
//
//	go run ./cmd/query-results <hugin.db> [limit]
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"hugin/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: query-results <hugin.db> [limit]")
		os.Exit(1)
	}

	limit := 5
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fmt.Printf("Invalid limit %q: %v\n", os.Args[2], err)
			os.Exit(1)
		}
		limit = n
	}

	if err := queryDB(os.Stdout, os.Args[1], limit); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func queryDB(w io.Writer, dbPath string, limit int) error {
	if _, err := os.Stat(dbPath); err != nil {
		return err
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	runs, err := s.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	for _, run := range runs {
		fmt.Fprintf(w, "\n=== run %s ===\n", run.ID)
		fmt.Fprintf(w, "Session: %s\n", run.Session)
		fmt.Fprintf(w, "Started: %s\n", run.Started.Local().Format("2006-01-02 15:04:05"))
		if run.Finished.IsZero() {
			fmt.Fprintln(w, "Finished: (still open)")
		} else {
			fmt.Fprintf(w, "Finished: %s (%d jobs, %d ok, %d failed)\n",
				run.Finished.Local().Format("2006-01-02 15:04:05"), run.Total, run.OK, run.Failed)
		}

		jobs, err := s.Jobs(ctx, run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "─────────────────────────────────────────────────────────────")
		for i, j := range jobs {
			fmt.Fprintf(w, "%d. %s [%s] %s\n", i+1, j.Name, j.Status, j.Duration)
			if j.Error != "" {
				fmt.Fprintf(w, "   error: %s\n", j.Error)
				continue
			}
			fmt.Fprintf(w, "   %s vs %s (%s)\n", j.Project, j.Example, j.Library)
			pairs, err := s.ClonePairs(ctx, j.ID)
			if err != nil {
				return err
			}
			for _, p := range pairs {
				fmt.Fprintf(w, "   - %s\n", p)
			}
		}
	}
	return nil
}
