package ccfinder

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks input that does not match the report grammar.
	ErrMalformed = errors.New("malformed result")
	// ErrDuplicatedBlocks marks a second file description or clone block.
	ErrDuplicatedBlocks = errors.New("duplicated blocks")
	// ErrMissingBlocks marks a report without a file description or clone block.
	ErrMissingBlocks = errors.New("missing mandatory result blocks")
)

// ParseError reports a structural problem in a detector report.
type ParseError struct {
	Err    error  // ErrMalformed, ErrDuplicatedBlocks or ErrMissingBlocks
	Line   int    // 1-based line where the problem was detected, 0 if unknown
	Offset int    // byte offset of Line
	Detail string // human readable context
}

func (e *ParseError) Error() string {
	msg := "invalid CCFinderSW result: " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Side names one of the two files a clone pair relates.
type Side string

const (
	SideProject Side = "project"
	SideExample Side = "example"
)

// CorrelationErrorKind classifies correlation failures.
type CorrelationErrorKind int

const (
	// FileNotFound: no file description entry matches the requested file.
	FileNotFound CorrelationErrorKind = iota
	// AmbiguousFile: more than one entry matches, or both sides resolve to the same entry.
	AmbiguousFile
	// DuplicatedPart: a clone set holds two fragments of the same tracked file.
	DuplicatedPart
	// UnknownFileNumber: a clone set references a file number with no description.
	UnknownFileNumber
)

func (k CorrelationErrorKind) String() string {
	switch k {
	case FileNotFound:
		return "file not found in result"
	case AmbiguousFile:
		return "ambiguous file in result"
	case DuplicatedPart:
		return "duplicated code part entries"
	case UnknownFileNumber:
		return "undescribed file number in clone set"
	default:
		return "correlation error"
	}
}

// CorrelationError reports why a parsed result could not be reduced to clone pairs.
type CorrelationError struct {
	Kind       CorrelationErrorKind
	Side       Side     // empty for UnknownFileNumber
	Name       string   // requested file, or file number for UnknownFileNumber
	Set        int      // index of the offending clone set, -1 if not applicable
	Candidates []string // matching paths for AmbiguousFile
}

func (e *CorrelationError) Error() string {
	switch e.Kind {
	case FileNotFound:
		return fmt.Sprintf("%s file not found in result: %s", e.Side, e.Name)
	case AmbiguousFile:
		return fmt.Sprintf("%s file %s is ambiguous in result: %v", e.Side, e.Name, e.Candidates)
	case DuplicatedPart:
		return fmt.Sprintf("duplicated %s code part entries in clone set %d", e.Side, e.Set)
	case UnknownFileNumber:
		return fmt.Sprintf("clone set %d references undescribed file %s", e.Set, e.Name)
	default:
		return e.Kind.String()
	}
}
