package job

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"hugin/internal/logging"
)

// Session ties a project directory to a directory of job files. Relative
// paths are resolved against the directory containing the session file.
type Session struct {
	ProjectPath string `toml:"project_path"`
	JobsPath    string `toml:"jobs_path"`

	dir string
}

// LoadSession reads a session file.
func LoadSession(file string) (*Session, error) {
	var s Session
	md, err := toml.DecodeFile(file, &s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session %s: %w", file, err)
	}
	warnUndecoded(file, md)
	if s.ProjectPath == "" || s.JobsPath == "" {
		return nil, fmt.Errorf("invalid session %s: project_path and jobs_path are required", file)
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	s.dir = filepath.Dir(abs)
	logging.SessionDebug("loaded session %s (project=%s, jobs=%s)", abs, s.ProjectPath, s.JobsPath)
	return &s, nil
}

// Dir returns the directory relative paths are resolved against.
func (s *Session) Dir() string {
	return s.dir
}

// AbsoluteProjectPath returns the canonical project directory.
func (s *Session) AbsoluteProjectPath() (string, error) {
	return s.resolve(s.ProjectPath)
}

// AbsoluteJobsPath returns the canonical jobs directory.
func (s *Session) AbsoluteJobsPath() (string, error) {
	return s.resolve(s.JobsPath)
}

func (s *Session) resolve(p string) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.dir, p)
	}
	return canonicalize(p)
}

// Entry is one discovered job file. Err is set when the file could not be
// loaded; Job is nil in that case.
type Entry struct {
	Name string
	Path string
	Job  *Job
	Err  error
}

// NewEntry loads the job file at path into an Entry.
func NewEntry(path string) Entry {
	e := Entry{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path: path,
	}
	e.Job, e.Err = Load(path)
	if e.Err != nil {
		logging.SessionWarn("skipping job %s: %v", e.Name, e.Err)
	}
	return e
}

// IsJobFile reports whether name looks like a job descriptor.
func IsJobFile(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".toml") && !strings.HasPrefix(base, ".")
}

// Discover loads every *.toml file in dir, sorted by file name.
func Discover(dir string) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read jobs directory: %w", err)
	}

	var names []string
	for _, item := range items {
		if item.IsDir() || !IsJobFile(item.Name()) {
			continue
		}
		names = append(names, item.Name())
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, NewEntry(filepath.Join(dir, name)))
	}
	logging.Session("discovered %d jobs in %s", len(entries), dir)
	return entries, nil
}

// Jobs discovers the session's job files.
func (s *Session) Jobs() ([]Entry, error) {
	dir, err := s.AbsoluteJobsPath()
	if err != nil {
		return nil, err
	}
	return Discover(dir)
}
