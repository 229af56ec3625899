// Package ccfinder interprets the text reports written by the CCFinderSW clone
// detector and reduces them to the clone pairs between two files of interest.
//
// A report is a sequence of #directives and #begin{NAME} ... #end{NAME}
// blocks. Only the "file description" and "clone" blocks carry data needed
// here; everything else is skipped.
package ccfinder

import (
	"fmt"
	"sort"

	"hugin/internal/types"
)

// FileNumber is the detector's two-level identifier of an input file. It is
// only meaningful within a single detector invocation.
type FileNumber struct {
	Archive uint32 `json:"archive"`
	File    uint32 `json:"file"`
}

func (n FileNumber) String() string {
	return fmt.Sprintf("%d.%d", n.Archive, n.File)
}

// Less orders file numbers archive first.
func (n FileNumber) Less(m FileNumber) bool {
	if n.Archive != m.Archive {
		return n.Archive < m.Archive
	}
	return n.File < m.File
}

// FileStat holds the line and token counts reported next to each file.
type FileStat struct {
	Lines  uint32 `json:"lines"`
	Tokens uint32 `json:"tokens"`
}

// SetElement is one file's participation in a clone set.
type SetElement struct {
	FileNumber FileNumber         `json:"file_number"`
	Start      types.CodePosition `json:"start"`
	End        types.CodePosition `json:"end"`
	// StartOffset and EndOffset are the third component of each position
	// triplet. Their meaning is not documented by the detector.
	StartOffset uint32 `json:"start_offset"`
	EndOffset   uint32 `json:"end_offset"`
	Extent      uint32 `json:"extent"`
}

// Slice returns the code fragment covered by the element.
func (e SetElement) Slice() types.CodeSlice {
	return types.NewCodeSlice(e.Start, e.End)
}

// CloneSet is a group of mutually similar fragments. It is never empty.
type CloneSet struct {
	Elements []SetElement `json:"elements"`
}

// ParsedResult is the typed content of one detector report.
type ParsedResult struct {
	FileDescription map[FileNumber]string   `json:"-"`
	FileStats       map[FileNumber]FileStat `json:"-"`
	Clone           []CloneSet              `json:"clone"`
}

// FileNumbers returns the described file numbers in ascending order.
func (r *ParsedResult) FileNumbers() []FileNumber {
	numbers := make([]FileNumber, 0, len(r.FileDescription))
	for n := range r.FileDescription {
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i].Less(numbers[j]) })
	return numbers
}

// Path returns the recorded path of file number n.
func (r *ParsedResult) Path(n FileNumber) (string, bool) {
	p, ok := r.FileDescription[n]
	return p, ok
}
