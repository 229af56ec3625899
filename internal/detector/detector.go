// Package detector runs an external clone detector over a staged working
// directory.
package detector

import (
	"context"
	"fmt"
	"time"
)

const (
	// SourceDir is the working directory subdirectory the detector scans.
	SourceDir = "src"
	// ResultName is the output base name passed to the detector.
	ResultName = "result"
	// ResultFile is the report the detector writes into the working directory.
	ResultFile = ResultName + ".txt"
)

// Outcome describes a finished detector run.
type Outcome struct {
	ExitCode   int
	ResultPath string // report location, set when ExitCode is 0
	Duration   time.Duration
	Output     string // captured stdout and stderr
}

// Detector runs clone detection over workDir/src and leaves its report in
// workDir.
type Detector interface {
	Detect(ctx context.Context, workDir string) (*Outcome, error)
}

// ProcessFailedError reports a detector process that exited unsuccessfully.
type ProcessFailedError struct {
	ExitCode int  // -1 when the process was killed
	Killed   bool // terminated on timeout or cancellation
	Reason   string
	Output   string
}

func (e *ProcessFailedError) Error() string {
	if e.Killed {
		return fmt.Sprintf("clone detector killed: %s", e.Reason)
	}
	return fmt.Sprintf("clone detector failed with exit code %d", e.ExitCode)
}
