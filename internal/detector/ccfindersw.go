package detector

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"hugin/internal/config"
	"hugin/internal/logging"
	"hugin/internal/tactile"
)

// Settings are the CCFinderSW options that vary between runs.
type Settings struct {
	ExecutablePath string
	TokenLength    uint32
	Language       string // -l value, e.g. "cpp"
	Extensions     string // -antlr value, e.g. "pde|ino"
	Timeout        time.Duration
}

// SettingsFromConfig resolves the detector section of the configuration.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	lang, err := cfg.Detector.LanguageOption()
	if err != nil {
		return Settings{}, err
	}
	exe, err := cfg.Detector.ResolveExecutable()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		ExecutablePath: exe,
		TokenLength:    cfg.Detector.TokenLength,
		Language:       lang,
		Extensions:     cfg.Detector.ExtensionsOption(),
		Timeout:        cfg.GetDetectorTimeout(),
	}, nil
}

// CCFinderSW invokes the CCFinderSW command line tool.
type CCFinderSW struct {
	settings Settings
	executor tactile.Executor
}

// NewCCFinderSW creates a detector running through executor. A nil executor
// uses a DirectExecutor.
func NewCCFinderSW(settings Settings, executor tactile.Executor) *CCFinderSW {
	if executor == nil {
		executor = tactile.NewDirectExecutor()
	}
	return &CCFinderSW{settings: settings, executor: executor}
}

// New creates the detector selected by the configuration.
func New(cfg *config.Config) (Detector, error) {
	if cfg.Detector.Kind != config.DetectorKindCCFinderSW {
		return nil, fmt.Errorf("unsupported clone detector: %q", cfg.Detector.Kind)
	}
	settings, err := SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewCCFinderSW(settings, nil), nil
}

// Args returns the detector command line, without the executable.
func (d *CCFinderSW) Args() []string {
	return []string{
		"D",
		"-d", SourceDir,
		"-l", d.settings.Language,
		"-o", ResultName,
		"-t", strconv.FormatUint(uint64(d.settings.TokenLength), 10),
		"-w", "2",
		"-antlr", d.settings.Extensions,
		"-charset", "auto",
	}
}

// Detect runs CCFinderSW in workDir and waits for it to exit.
func (d *CCFinderSW) Detect(ctx context.Context, workDir string) (*Outcome, error) {
	cmd := tactile.Command{
		Binary:           d.settings.ExecutablePath,
		Arguments:        d.Args(),
		WorkingDirectory: workDir,
		Limits:           &tactile.ResourceLimits{TimeoutMs: d.settings.Timeout.Milliseconds()},
	}
	logging.DetectorDebug("running %s in %s", cmd.CommandString(), workDir)

	result, err := d.executor.Execute(ctx, cmd)
	if err != nil {
		logging.Audit().DetectorExec(cmd.CommandString(), -1, 0, err.Error())
		return nil, fmt.Errorf("failed to run clone detector: %w", err)
	}
	logging.Audit().DetectorExec(cmd.CommandString(), result.ExitCode, result.Duration, result.Error)
	if result.IsError() {
		return nil, fmt.Errorf("failed to run clone detector %s: %s", d.settings.ExecutablePath, result.Error)
	}
	if result.Killed {
		logging.DetectorWarn("detector killed after %s: %s", result.Duration, result.KillReason)
		return nil, &ProcessFailedError{
			ExitCode: -1,
			Killed:   true,
			Reason:   result.KillReason,
			Output:   result.Output(),
		}
	}
	if result.ExitCode != 0 {
		logging.DetectorWarn("detector exited with code %d: %s", result.ExitCode, result.Stderr)
		return nil, &ProcessFailedError{ExitCode: result.ExitCode, Output: result.Output()}
	}

	logging.Detector("detector finished in %s", result.Duration)
	return &Outcome{
		ExitCode:   0,
		ResultPath: filepath.Join(workDir, ResultFile),
		Duration:   result.Duration,
		Output:     result.Output(),
	}, nil
}
