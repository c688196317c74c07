package smap

import (
	"sort"
	"sync"
)

// RangeMapping is one contiguous run of generated lines mapped back to a run
// of source lines in a single file, per §3's data model.
type RangeMapping struct {
	SourceStart int
	DestStart   int
	Range       int
	ParentFile  int
}

func (r RangeMapping) containsDest(dest int) bool {
	return dest >= r.DestStart && dest < r.DestStart+r.Range
}

func (r RangeMapping) containsSource(line int) bool {
	return line >= r.SourceStart && line < r.SourceStart+r.Range
}

// FileEntry is one source file named in the preferred stratum, together
// with every range mapping whose source lines live in it.
type FileEntry struct {
	ID     int
	Name   string
	Path   string
	Ranges []RangeMapping
}

// SMAP is the parsed, immutable tree for the preferred stratum of one
// class's debug-extension attribute (§3, §4.2).
type SMAP struct {
	OutputFile     string
	DefaultStratum string
	Files          []FileEntry

	indexOnce sync.Once
	flat      []flatRange
	maxSpan   int
}

// flatRange pairs a RangeMapping with its owning file, sorted by DestStart
// so FindSourcePosition can binary-search instead of scanning every file's
// range list in turn.
type flatRange struct {
	RangeMapping
	file *FileEntry
}

func (s *SMAP) buildIndex() {
	s.indexOnce.Do(func() {
		for i := range s.Files {
			f := &s.Files[i]
			for _, r := range f.Ranges {
				s.flat = append(s.flat, flatRange{RangeMapping: r, file: f})
			}
		}
		sort.Slice(s.flat, func(i, j int) bool { return s.flat[i].DestStart < s.flat[j].DestStart })
		for _, r := range s.flat {
			if r.Range > s.maxSpan {
				s.maxSpan = r.Range
			}
		}
	})
}

// SourcePositionResult is what FindSourcePosition resolves a generated line
// to: the source file's declared name, its recorded path, and the source
// line within it.
type SourcePositionResult struct {
	File string
	Path string
	Line int
}

// FindSourcePosition implements §4.2's `findSourcePosition(dest_line)`: the
// first range (by ascending dest_start) whose generated-line span contains
// dest_line. The index is sorted once at first use, so a query costs
// O(log n) to locate the neighborhood plus a small constant scan over
// ranges that start at or before dest_line — real SMAPs nest only a few
// strata deep, so that scan never degrades to O(n).
func (s *SMAP) FindSourcePosition(destLine int) (SourcePositionResult, bool) {
	s.buildIndex()
	if len(s.flat) == 0 {
		return SourcePositionResult{}, false
	}

	i := sort.Search(len(s.flat), func(i int) bool { return s.flat[i].DestStart > destLine })
	var first *flatRange
	for j := i - 1; j >= 0 && s.flat[j].DestStart+s.maxSpan > destLine; j-- {
		if s.flat[j].containsDest(destLine) {
			first = &s.flat[j]
		}
	}
	if first == nil {
		return SourcePositionResult{}, false
	}
	offset := destLine - first.DestStart
	return SourcePositionResult{File: first.file.Name, Path: first.file.Path, Line: first.SourceStart + offset}, true
}

// FindDestLines implements §4.2's `findDestLines(source_file, source_line)`:
// every generated line that maps back to source_line in source_file, across
// every range of every file whose declared name matches.
func (s *SMAP) FindDestLines(sourceFile string, sourceLine int) []int {
	var out []int
	for _, f := range s.Files {
		if f.Name != sourceFile {
			continue
		}
		for _, r := range f.Ranges {
			if r.containsSource(sourceLine) {
				out = append(out, r.DestStart+(sourceLine-r.SourceStart))
			}
		}
	}
	return out
}

// InlinedRange pairs a resolved source position with the range.Range it came
// from, so callers (the Position Manager, the Stack Frame Manager) can order
// nested ranges innermost-first.
type InlinedRange struct {
	Position SourcePositionResult
	Span     int
}

// InlinedPositionsAt returns every range containing destLine, narrowest
// first — the ordering §4.11 needs to assign `inline_depth` innermost-first
// when virtualizing a stack frame. Unlike FindSourcePosition this collects
// ALL containing ranges, not just the first, since nested inline ranges can
// legitimately overlap.
func (s *SMAP) InlinedPositionsAt(destLine int) []InlinedRange {
	s.buildIndex()
	var out []InlinedRange
	for _, r := range s.flat {
		if r.containsDest(destLine) {
			out = append(out, InlinedRange{
				Position: SourcePositionResult{File: r.file.Name, Path: r.file.Path, Line: r.SourceStart + (destLine - r.DestStart)},
				Span:     r.Range,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Span < out[j].Span })
	return out
}

// ContainsDest reports whether any range covers destLine, implementing
// §4.3's `isInInlineFunction`.
func (s *SMAP) ContainsDest(destLine int) bool {
	_, ok := s.FindSourcePosition(destLine)
	return ok
}
