// Package position implements the Position Manager (C3, spec.md §4.3): the
// translation layer between a target VM's own idea of "where" — a
// RemoteLocation carrying a class, method, and generated line number — and
// the source position a user actually wants to see, which may live in a
// different file entirely when the generated line falls inside inlined code.
package position

import (
	"sort"

	"github.com/dontbug-kt/ktdbg/internal/proto"
	"github.com/dontbug-kt/ktdbg/internal/smap"
)

// Manager answers every remote-location/source-position translation the
// core needs, backed by a VM handle and a per-session SMAP cache.
type Manager struct {
	vm    proto.VM
	smaps *smap.Cache
}

// New builds a Manager over vm, using cache for SMAP lookups. The cache is
// owned by the session, not the Manager, so multiple components (stack
// virtualization, breakpoint resolution) share one set of parsed SMAPs.
func New(vm proto.VM, cache *smap.Cache) *Manager {
	return &Manager{vm: vm, smaps: cache}
}

func (m *Manager) smapFor(loc proto.RemoteLocation) (*smap.SMAP, error) {
	classes, err := m.vm.ClassesByName(loc.ClassName)
	if err != nil {
		return nil, err
	}
	for _, c := range classes {
		if c.Name == loc.ClassName {
			return m.smaps.Get(c.Name, c.DebugExtension)
		}
	}
	return nil, nil
}

// LocationToPosition implements `locationToPosition`: when the declaring
// class carries an SMAP, the generated line is resolved through it;
// otherwise the location's own (sourceName, lineNumber) is the answer.
func (m *Manager) LocationToPosition(loc proto.RemoteLocation) (proto.SourcePosition, bool, error) {
	sm, err := m.smapFor(loc)
	if err != nil {
		return proto.SourcePosition{}, false, err
	}
	if sm == nil {
		return proto.SourcePosition{File: loc.GeneratedSource, Line: loc.CodeLine}, true, nil
	}
	res, ok := sm.FindSourcePosition(loc.CodeLine)
	if !ok {
		return proto.SourcePosition{}, false, nil
	}
	return proto.SourcePosition{File: res.File, Line: res.Line}, true, nil
}

// InlinedPositionsAt implements `inlinedPositionsAt`: every range whose
// generated-line span contains loc's line, deduplicated by (file,line), in
// innermost-first order (the order the Stack Frame Manager needs to
// assign inline_depth).
func (m *Manager) InlinedPositionsAt(loc proto.RemoteLocation) ([]proto.SourcePosition, error) {
	sm, err := m.smapFor(loc)
	if err != nil || sm == nil {
		return nil, err
	}

	seen := make(map[proto.SourcePosition]bool)
	var out []proto.SourcePosition
	for _, r := range sm.InlinedPositionsAt(loc.CodeLine) {
		p := proto.SourcePosition{File: r.Position.File, Line: r.Position.Line}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

// IsInInlineFunction implements `isInInlineFunction`.
func (m *Manager) IsInInlineFunction(loc proto.RemoteLocation) (bool, error) {
	sm, err := m.smapFor(loc)
	if err != nil || sm == nil {
		return false, err
	}
	return sm.ContainsDest(loc.CodeLine), nil
}

// FindLocations implements `findLocations(source_file, line)`: the union of
// (a) every class whose own declared source name matches sourceFile, probed
// directly at line, and (b) every loaded class whose SMAP maps
// sourceFile:line to some generated line, probed there instead. Results are
// deduplicated by (class, generated_line).
func (m *Manager) FindLocations(sourceFile string, line int) ([]proto.RemoteLocation, error) {
	classes, err := m.vm.Classes()
	if err != nil {
		return nil, err
	}

	type key struct {
		class string
		gen   int
	}
	seen := make(map[key]bool)
	var out []proto.RemoteLocation

	add := func(class proto.ClassInfo, genLine int) error {
		locs, err := m.vm.AllLocations(proto.ClassID(class.Name))
		if err != nil {
			return err
		}
		for _, l := range locs {
			if l.CodeLine != genLine {
				continue
			}
			k := key{class: class.Name, gen: l.CodeLine}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, l)
		}
		return nil
	}

	for _, class := range classes {
		if class.SourceName == sourceFile {
			if err := add(class, line); err != nil {
				return nil, err
			}
		}
	}

	for _, class := range classes {
		sm, err := m.smaps.Get(class.Name, class.DebugExtension)
		if err != nil {
			return nil, err
		}
		if sm == nil {
			continue
		}
		for _, gen := range sm.FindDestLines(sourceFile, line) {
			if err := add(class, gen); err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ClassName != out[j].ClassName {
			return out[i].ClassName < out[j].ClassName
		}
		return out[i].CodeLine < out[j].CodeLine
	})
	return out, nil
}
