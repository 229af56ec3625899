package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names one kind of audit record.
type AuditEventType string

const (
	// Run lifecycle
	AuditRunStart AuditEventType = "run_start"
	AuditRunEnd   AuditEventType = "run_end"

	// Job lifecycle
	AuditJobStart    AuditEventType = "job_start"
	AuditJobComplete AuditEventType = "job_complete"
	AuditJobError    AuditEventType = "job_error"
	AuditJobCanceled AuditEventType = "job_canceled"

	// Detector process
	AuditDetectorExec  AuditEventType = "detector_exec"
	AuditDetectorError AuditEventType = "detector_error"
)

// AuditEvent is one line of the audit log.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  AuditEventType         `json:"event"`
	Category   string                 `json:"cat,omitempty"`
	RunID      string                 `json:"run,omitempty"`
	JobID      string                 `json:"job,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditMu  sync.Mutex
	auditOut io.WriteCloser
)

// AuditLogger writes audit events, filling in its scope.
type AuditLogger struct {
	runID    string
	jobID    string
	category Category
}

// InitAudit appends audit events to path. An empty path disables auditing.
func InitAudit(path string) error {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditOut != nil {
		auditOut.Close()
		auditOut = nil
	}
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditOut = file
	return nil
}

// CloseAudit closes the audit log.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditOut != nil {
		auditOut.Close()
		auditOut = nil
	}
}

// Audit returns an unscoped audit logger.
func Audit() *AuditLogger {
	return &AuditLogger{}
}

// AuditWithRun scopes events to a dispatch run.
func AuditWithRun(runID string) *AuditLogger {
	return &AuditLogger{runID: runID}
}

// AuditWithJob scopes events to one job.
func AuditWithJob(jobID string, category Category) *AuditLogger {
	return &AuditLogger{jobID: jobID, category: category}
}

// Log writes an audit event. It is a no-op when auditing is disabled.
func (a *AuditLogger) Log(event AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditOut == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RunID == "" {
		event.RunID = a.runID
	}
	if event.JobID == "" {
		event.JobID = a.jobID
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}

	data, err := json.Marshal(event)
	if err == nil {
		auditOut.Write(append(data, '\n'))
	}
}

// =============================================================================
// CONVENIENCE METHODS
// =============================================================================

// RunStart records the start of a dispatch over a session.
func (a *AuditLogger) RunStart(session string, jobs int) {
	a.Log(AuditEvent{
		EventType: AuditRunStart,
		Target:    session,
		Success:   true,
		Fields:    map[string]interface{}{"jobs": jobs},
	})
}

// RunEnd records the end of a dispatch.
func (a *AuditLogger) RunEnd(session string, ok, failed int, duration time.Duration) {
	a.Log(AuditEvent{
		EventType:  AuditRunEnd,
		Target:     session,
		Success:    failed == 0,
		DurationMs: duration.Milliseconds(),
		Fields:     map[string]interface{}{"ok": ok, "failed": failed},
	})
}

// JobStart records that a job began running.
func (a *AuditLogger) JobStart(name string) {
	a.Log(AuditEvent{EventType: AuditJobStart, Target: name, Success: true})
}

// JobEnd records a job's outcome. status is the dispatcher's status string.
func (a *AuditLogger) JobEnd(name, status string, pairs int, duration time.Duration, err error) {
	event := AuditEvent{
		EventType:  AuditJobComplete,
		Target:     name,
		Success:    err == nil,
		DurationMs: duration.Milliseconds(),
		Fields:     map[string]interface{}{"status": status, "pairs": pairs},
	}
	if err != nil {
		event.EventType = AuditJobError
		if status == "canceled" {
			event.EventType = AuditJobCanceled
		}
		event.Error = err.Error()
	}
	a.Log(event)
}

// DetectorExec records one detector process run. errMsg is set when the
// process could not be run at all.
func (a *AuditLogger) DetectorExec(command string, exitCode int, duration time.Duration, errMsg string) {
	event := AuditEvent{
		EventType:  AuditDetectorExec,
		Category:   string(CategoryDetector),
		Target:     command,
		Success:    errMsg == "" && exitCode == 0,
		DurationMs: duration.Milliseconds(),
		Fields:     map[string]interface{}{"exit_code": exitCode},
	}
	if errMsg != "" {
		event.EventType = AuditDetectorError
		event.Error = errMsg
	}
	a.Log(event)
}
