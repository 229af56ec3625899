package ccfinder

import (
	"path"
	"strings"

	"hugin/internal/logging"
	"hugin/internal/types"
)

// matchesTarget reports whether a recorded path names target. The target is
// either a bare file name or a slash-separated path relative to the detector's
// working directory; it must match whole path components at the end.
func matchesTarget(recorded, target string) bool {
	recorded = strings.ReplaceAll(recorded, "\\", "/")
	return recorded == target || strings.HasSuffix(recorded, "/"+target)
}

// Resolve returns the file number whose recorded path matches target.
func (r *ParsedResult) Resolve(side Side, target string) (FileNumber, error) {
	target = path.Clean(strings.ReplaceAll(target, "\\", "/"))

	var found []FileNumber
	for _, n := range r.FileNumbers() {
		if matchesTarget(r.FileDescription[n], target) {
			found = append(found, n)
		}
	}

	switch len(found) {
	case 0:
		return FileNumber{}, &CorrelationError{Kind: FileNotFound, Side: side, Name: target, Set: -1}
	case 1:
		return found[0], nil
	default:
		candidates := make([]string, len(found))
		for i, n := range found {
			candidates[i] = r.FileDescription[n]
		}
		return FileNumber{}, &CorrelationError{
			Kind:       AmbiguousFile,
			Side:       side,
			Name:       target,
			Set:        -1,
			Candidates: candidates,
		}
	}
}

// ClonePairs reduces the result to the clone pairs between the project file
// and the example file, in report order. Sets that do not contain both files
// are dropped. A set containing two fragments of the same tracked file is an
// error.
func (r *ParsedResult) ClonePairs(project, example string) ([]types.ClonePair, error) {
	projectNumber, err := r.Resolve(SideProject, project)
	if err != nil {
		return nil, err
	}
	exampleNumber, err := r.Resolve(SideExample, example)
	if err != nil {
		return nil, err
	}
	if projectNumber == exampleNumber {
		return nil, &CorrelationError{
			Kind:       AmbiguousFile,
			Side:       SideExample,
			Name:       example,
			Set:        -1,
			Candidates: []string{r.FileDescription[projectNumber]},
		}
	}
	logging.ParserDebug("correlating %s (%s) with %s (%s)", project, projectNumber, example, exampleNumber)

	pairs := make([]types.ClonePair, 0)
	for i, set := range r.Clone {
		var projectPart, examplePart *types.CodeSlice
		for _, e := range set.Elements {
			if _, ok := r.FileDescription[e.FileNumber]; !ok {
				return nil, &CorrelationError{Kind: UnknownFileNumber, Name: e.FileNumber.String(), Set: i}
			}
			slice := e.Slice()
			switch e.FileNumber {
			case projectNumber:
				if projectPart != nil {
					return nil, &CorrelationError{Kind: DuplicatedPart, Side: SideProject, Name: project, Set: i}
				}
				projectPart = &slice
			case exampleNumber:
				if examplePart != nil {
					return nil, &CorrelationError{Kind: DuplicatedPart, Side: SideExample, Name: example, Set: i}
				}
				examplePart = &slice
			}
		}
		if projectPart == nil || examplePart == nil {
			continue
		}
		pairs = append(pairs, types.NewClonePair(*projectPart, *examplePart))
	}

	logging.ParserDebug("%d of %d clone sets relate %s and %s", len(pairs), len(r.Clone), project, example)
	return pairs, nil
}
