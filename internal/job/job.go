// Package job loads session and job descriptors. A session names a project
// directory and a directory of job files; each job pairs one project source
// file with one example sketch inside a library archive.
package job

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/mod/semver"

	"hugin/internal/logging"
)

// InvalidPathError reports a location that does not name a file.
type InvalidPathError struct {
	Location string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path: %q", e.Location)
}

// SourceInfo locates one source file.
type SourceInfo struct {
	Location string `toml:"location" json:"location"`
}

// LocationFrom joins the location to root and canonicalises the result. The
// file must exist.
func (s SourceInfo) LocationFrom(root string) (string, error) {
	return canonicalize(filepath.Join(root, filepath.FromSlash(s.Location)))
}

// PathFrom joins the location to a slash-separated root without touching the
// filesystem, for addressing archive entries.
func (s SourceInfo) PathFrom(root string) string {
	return path.Join(root, filepath.ToSlash(s.Location))
}

// FileName returns the final element of the location.
func (s SourceInfo) FileName() (string, error) {
	name := path.Base(filepath.ToSlash(s.Location))
	if s.Location == "" || name == "." || name == "/" || name == ".." {
		return "", &InvalidPathError{Location: s.Location}
	}
	return name, nil
}

// LibraryInfo identifies the library archive holding the example sketch.
type LibraryInfo struct {
	Name        string `toml:"name" json:"name"`
	Version     string `toml:"version" json:"version"`
	Location    string `toml:"location" json:"location"`
	ArchiveRoot string `toml:"archive_root" json:"archive_root"`
}

// AbsoluteLocation returns the canonical archive path below
// <database>/libraries.
func (l LibraryInfo) AbsoluteLocation(database string) (string, error) {
	return canonicalize(filepath.Join(database, "libraries", filepath.FromSlash(l.Location)))
}

// ExampleEntry returns the archive entry name of example:
// <archive_root>/examples/<location>.
func (l LibraryInfo) ExampleEntry(example SourceInfo) string {
	return example.PathFrom(path.Join(l.ArchiveRoot, "examples"))
}

// String returns name@version.
func (l LibraryInfo) String() string {
	return l.Name + "@" + l.Version
}

// Validate checks the library metadata.
func (l LibraryInfo) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("library_info.name is required")
	}
	if !validVersion(l.Version) {
		return fmt.Errorf("library_info.version is not a semantic version: %q", l.Version)
	}
	if l.Location == "" {
		return fmt.Errorf("library_info.location is required")
	}
	return nil
}

// validVersion accepts full MAJOR.MINOR.PATCH versions with optional
// pre-release and build suffixes.
func validVersion(version string) bool {
	v := "v" + version
	if !semver.IsValid(v) {
		return false
	}
	core := v
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	return strings.Count(core, ".") == 2
}

// Job is one unit of clone detection work.
type Job struct {
	Project       SourceInfo  `toml:"project" json:"project"`
	ExampleSketch SourceInfo  `toml:"example_sketch" json:"example_sketch"`
	LibraryInfo   LibraryInfo `toml:"library_info" json:"library_info"`
}

// Validate checks that every section is present and well formed.
func (j Job) Validate() error {
	if _, err := j.Project.FileName(); err != nil {
		return fmt.Errorf("project: %w", err)
	}
	if _, err := j.ExampleSketch.FileName(); err != nil {
		return fmt.Errorf("example_sketch: %w", err)
	}
	return j.LibraryInfo.Validate()
}

// Load reads and validates a job file.
func Load(file string) (*Job, error) {
	var j Job
	md, err := toml.DecodeFile(file, &j)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job %s: %w", file, err)
	}
	warnUndecoded(file, md)
	if err := j.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job %s: %w", file, err)
	}
	return &j, nil
}

func warnUndecoded(file string, md toml.MetaData) {
	for _, key := range md.Undecoded() {
		logging.SessionWarn("%s: ignoring unknown key %s", file, key.String())
	}
}

func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
