// Package types holds the clone pair model shared by the correlator, the
// dispatcher and the result store.
package types

import "fmt"

// CodePosition identifies a point in a source file as reported by the detector.
type CodePosition struct {
	Line   uint32 `json:"line" yaml:"line"`
	Column uint32 `json:"column" yaml:"column"`
}

// NewCodePosition returns the position at line:column.
func NewCodePosition(line, column uint32) CodePosition {
	return CodePosition{Line: line, Column: column}
}

func (p CodePosition) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before reports whether p comes strictly before q.
func (p CodePosition) Before(q CodePosition) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

// CodeSlice is one contiguous code fragment. End is inclusive.
type CodeSlice struct {
	Start CodePosition `json:"start" yaml:"start"`
	End   CodePosition `json:"end" yaml:"end"`
}

// NewCodeSlice returns the fragment spanning start..end.
func NewCodeSlice(start, end CodePosition) CodeSlice {
	return CodeSlice{Start: start, End: end}
}

func (s CodeSlice) String() string {
	return fmt.Sprintf("(%s)-(%s)", s.Start, s.End)
}

// Lines returns the number of source lines the fragment touches.
func (s CodeSlice) Lines() uint32 {
	if s.End.Line < s.Start.Line {
		return 0
	}
	return s.End.Line - s.Start.Line + 1
}

// Scores carries optional per-side similarity ratios for a clone pair.
type Scores struct {
	ProjectPart       float64 `json:"project_part" yaml:"project_part"`
	ExampleSketchPart float64 `json:"example_sketch_part" yaml:"example_sketch_part"`
}

// ClonePair is one clone instance between the project file and the example sketch.
// Pairs are produced by correlating a detector report and are not mutated afterwards.
type ClonePair struct {
	Project       CodeSlice `json:"project" yaml:"project"`
	ExampleSketch CodeSlice `json:"example_sketch" yaml:"example_sketch"`
	Scores        *Scores   `json:"scores,omitempty" yaml:"scores,omitempty"`
}

// NewClonePair returns a pair without scores.
func NewClonePair(project, example CodeSlice) ClonePair {
	return ClonePair{Project: project, ExampleSketch: example}
}

func (c ClonePair) String() string {
	return fmt.Sprintf("project %s ~ example %s", c.Project, c.ExampleSketch)
}
