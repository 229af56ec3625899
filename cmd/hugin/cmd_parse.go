package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hugin/internal/ccfinder"
)

var (
	parseProject string
	parseExample string
)

// parseCmd inspects a detector report without running anything
var parseCmd = &cobra.Command{
	Use:   "parse <result.txt>",
	Short: "Parse a CCFinderSW report",
	Long: `Parses a CCFinderSW report and prints the files and clone sets it contains
as JSON. With --project and --example the report is instead correlated and
the clone pairs between those two files are printed. File names may be given
as base names or as paths relative to the detector's working directory.

Example:
  hugin parse result.txt --project src/MyProject.ino --example src/Sweep.ino`,
	Args: cobra.ExactArgs(1),
	RunE: parseReport,
}

func init() {
	parseCmd.Flags().StringVar(&parseProject, "project", "", "Project file to correlate")
	parseCmd.Flags().StringVar(&parseExample, "example", "", "Example sketch file to correlate")
	parseCmd.MarkFlagsRequiredTogether("project", "example")
}

type fileView struct {
	Number string `json:"number"`
	Path   string `json:"path"`
	Lines  uint32 `json:"lines"`
	Tokens uint32 `json:"tokens"`
}

type reportView struct {
	Files []fileView          `json:"files"`
	Clone []ccfinder.CloneSet `json:"clone"`
}

func parseReport(cmd *cobra.Command, args []string) error {
	result, err := ccfinder.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	if parseProject != "" {
		pairs, err := result.ClonePairs(parseProject, parseExample)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), pairs)
	}

	view := reportView{Files: []fileView{}, Clone: result.Clone}
	for _, n := range result.FileNumbers() {
		stat := result.FileStats[n]
		view.Files = append(view.Files, fileView{
			Number: n.String(),
			Path:   result.FileDescription[n],
			Lines:  stat.Lines,
			Tokens: stat.Tokens,
		})
	}
	if view.Clone == nil {
		view.Clone = []ccfinder.CloneSet{}
	}
	return writeJSON(cmd.OutOrStdout(), view)
}
