package config

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DetectorKindCCFinderSW is the only supported clone detector.
const DetectorKindCCFinderSW = "CCFinderSW"

// Languages maps configuration language names to CCFinderSW -l values.
var Languages = map[string]string{
	"CPlusPlus": "cpp",
}

// DetectorConfig configures the clone detector.
type DetectorConfig struct {
	Kind           string   `yaml:"kind"`
	ExecutablePath string   `yaml:"executable_path"`
	TokenLength    uint32   `yaml:"token_length"`
	Language       string   `yaml:"language"`
	Extensions     []string `yaml:"extensions"`
	Timeout        string   `yaml:"timeout"` // Go duration; empty = no timeout
}

// DefaultDetectorConfig returns the CCFinderSW defaults for Arduino sketches.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Kind:           DetectorKindCCFinderSW,
		ExecutablePath: "CCFinderSW",
		TokenLength:    50,
		Language:       "CPlusPlus",
		Extensions:     []string{"pde", "ino"},
	}
}

// LanguageOption returns the value passed to the detector's -l option.
func (d DetectorConfig) LanguageOption() (string, error) {
	opt, ok := Languages[d.Language]
	if !ok {
		known := make([]string, 0, len(Languages))
		for name := range Languages {
			known = append(known, name)
		}
		sort.Strings(known)
		return "", fmt.Errorf("invalid detector.language: %q (valid: %v)", d.Language, known)
	}
	return opt, nil
}

// ExtensionsOption returns the value passed to the detector's -antlr option.
func (d DetectorConfig) ExtensionsOption() string {
	return strings.Join(d.Extensions, "|")
}

// ResolveExecutable expands and canonicalises the executable path. A bare
// command name is looked up in PATH.
func (d DetectorConfig) ResolveExecutable() (string, error) {
	path, err := ExpandPath(d.ExecutablePath)
	if err != nil {
		return "", err
	}
	if !strings.ContainsRune(path, filepath.Separator) && !strings.ContainsRune(path, '/') {
		found, err := exec.LookPath(path)
		if err != nil {
			return "", fmt.Errorf("detector executable not found: %w", err)
		}
		path = found
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("could not canonicalize detector path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("could not canonicalize detector path: %w", err)
	}
	return resolved, nil
}

// Validate checks the detector settings without touching the filesystem.
func (d DetectorConfig) Validate() error {
	if d.Kind != DetectorKindCCFinderSW {
		return fmt.Errorf("invalid detector.kind: %q (valid: [%s])", d.Kind, DetectorKindCCFinderSW)
	}
	if strings.TrimSpace(d.ExecutablePath) == "" {
		return fmt.Errorf("detector.executable_path is required")
	}
	if d.TokenLength == 0 {
		return fmt.Errorf("detector.token_length must be positive")
	}
	if _, err := d.LanguageOption(); err != nil {
		return err
	}
	if len(d.Extensions) == 0 {
		return fmt.Errorf("detector.extensions must not be empty")
	}
	for _, ext := range d.Extensions {
		if ext == "" || strings.ContainsAny(ext, "|.") {
			return fmt.Errorf("invalid detector extension: %q", ext)
		}
	}
	if d.Timeout != "" {
		t, err := time.ParseDuration(d.Timeout)
		if err != nil {
			return fmt.Errorf("invalid detector.timeout: %w", err)
		}
		if t < 0 {
			return fmt.Errorf("detector.timeout must not be negative")
		}
	}
	return nil
}
