// Package runner executes a single job: it stages the project source and the
// example sketch in a private working directory, runs the clone detector over
// them and reduces the detector's report to clone pairs.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zip"

	"hugin/internal/ccfinder"
	"hugin/internal/detector"
	"hugin/internal/job"
	"hugin/internal/logging"
	"hugin/internal/types"
)

// ArchiveEntryMissingError reports an example sketch that is not present in
// its library archive.
type ArchiveEntryMissingError struct {
	Archive string
	Entry   string
}

func (e *ArchiveEntryMissingError) Error() string {
	return fmt.Sprintf("could not open example sketch source %s in %s", e.Entry, e.Archive)
}

// Runner runs jobs against one project tree and one library database.
type Runner struct {
	projectPath  string
	databasePath string
	detector     detector.Detector
	tempDir      string
}

// Option configures a Runner.
type Option func(*Runner)

// WithTempDir places working directories below dir instead of the system
// temporary directory.
func WithTempDir(dir string) Option {
	return func(r *Runner) { r.tempDir = dir }
}

// New creates a runner. projectPath is the root job project locations are
// relative to; databasePath holds the libraries directory.
func New(projectPath, databasePath string, det detector.Detector, opts ...Option) *Runner {
	r := &Runner{
		projectPath:  projectPath,
		databasePath: databasePath,
		detector:     det,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// staged records where the two files of a job were placed, relative to the
// working directory and slash-separated.
type staged struct {
	project string
	example string
}

// RunJob runs one job and returns its clone pairs in report order. An empty
// result means the detector found no clones between the two files. The
// working directory is removed before RunJob returns.
func (r *Runner) RunJob(ctx context.Context, j job.Job) ([]types.ClonePair, error) {
	timer := logging.StartTimer(logging.CategoryRunner, "run job "+j.Project.Location)
	defer timer.Stop()

	workDir, err := os.MkdirTemp(r.tempDir, "hugin-")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logging.RunnerWarn("failed to remove working directory %s: %v", workDir, err)
		}
	}()
	logging.RunnerDebug("working directory: %s", workDir)

	files, err := r.stage(j, workDir)
	if err != nil {
		return nil, err
	}

	outcome, err := r.detector.Detect(ctx, workDir)
	if err != nil {
		return nil, err
	}

	result, err := ccfinder.ParseFile(outcome.ResultPath)
	if err != nil {
		return nil, fmt.Errorf("failed to interpret detector result: %w", err)
	}

	pairs, err := result.ClonePairs(files.project, files.example)
	if err != nil {
		return nil, err
	}
	logging.Runner("%s vs %s: %d clone pairs", j.Project.Location, j.LibraryInfo.ExampleEntry(j.ExampleSketch), len(pairs))
	return pairs, nil
}

func (r *Runner) stage(j job.Job, workDir string) (staged, error) {
	projectName, err := j.Project.FileName()
	if err != nil {
		return staged{}, err
	}
	exampleName, err := j.ExampleSketch.FileName()
	if err != nil {
		return staged{}, err
	}

	srcDir := filepath.Join(workDir, detector.SourceDir)
	if err := os.Mkdir(srcDir, 0755); err != nil {
		return staged{}, fmt.Errorf("failed to create source directory: %w", err)
	}

	projectSource, err := j.Project.LocationFrom(r.projectPath)
	if err != nil {
		return staged{}, fmt.Errorf("failed to locate project source: %w", err)
	}
	logging.RunnerDebug("copying the project source file: %s", projectSource)
	if err := copyFile(projectSource, filepath.Join(srcDir, projectName)); err != nil {
		return staged{}, err
	}

	// Same-named files would overwrite each other in src.
	exampleRel := exampleName
	if exampleName == projectName {
		exampleRel = path.Join("example", exampleName)
		if err := os.Mkdir(filepath.Join(srcDir, "example"), 0755); err != nil {
			return staged{}, fmt.Errorf("failed to create source directory: %w", err)
		}
	}

	archive, err := j.LibraryInfo.AbsoluteLocation(r.databasePath)
	if err != nil {
		return staged{}, fmt.Errorf("failed to locate library archive: %w", err)
	}
	entry := j.LibraryInfo.ExampleEntry(j.ExampleSketch)
	if err := extractEntry(archive, entry, filepath.Join(srcDir, filepath.FromSlash(exampleRel))); err != nil {
		return staged{}, err
	}

	return staged{
		project: path.Join(detector.SourceDir, projectName),
		example: path.Join(detector.SourceDir, exampleRel),
	}, nil
}

func copyFile(from, to string) error {
	in, err := os.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(to)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", from, err)
	}
	return out.Close()
}

// extractEntry writes the named archive entry to dest.
func extractEntry(archive, name, dest string) error {
	logging.RunnerDebug("opening the library archive: %s", archive)
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open library archive: %w", err)
	}
	defer zr.Close()

	var entry *zip.File
	for _, f := range zr.File {
		if f.Name == name && !f.FileInfo().IsDir() {
			entry = f
			break
		}
	}
	if entry == nil {
		logging.RunnerError("could not open example sketch source: %s", name)
		return &ArchiveEntryMissingError{Archive: archive, Entry: name}
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s from library archive: %w", name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("failed to extract %s from library archive: %w", name, err)
	}
	return out.Close()
}
