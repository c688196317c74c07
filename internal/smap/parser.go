package smap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// lineMappingPattern matches `<src-line> ('#' <file-id> (',' <repeat>)?)? ':' <dest-line> (',' <increment>)?`.
var lineMappingPattern = regexp.MustCompile(`^(\d+)(?:#(\d+))?(?:,(\d+))?:(\d+)(?:,(\d+))?$`)

// parseError reports the offending line number alongside the raw text, the
// way a compiler front-end would, instead of just an opaque "parse failed".
type parseError struct {
	line int
	text string
	msg  string
}

func (e *parseError) Error() string {
	return fmt.Sprintf("smap: line %d (%q): %s", e.line, e.text, e.msg)
}

// stratumBlock is one `*S <name> ... ` section before it has been filtered
// down to the preferred stratum.
type stratumBlock struct {
	name  string
	files []FileEntry
}

// Parse builds an SMAP from the raw debug-extension text of a class, per the
// grammar in §4.2: a header, output file, default stratum, one or more `*S`
// stratum blocks, each with a `*F` file section and a `*L` line-mapping
// section, terminated by `*E`.
//
// Only the `Kotlin` or `KotlinDebug` stratum is kept (KotlinDebug preferred
// when both are present); every other stratum is parsed structurally, to
// stay in sync with the cursor, then discarded. A class whose debug
// extension carries neither stratum yields (nil, nil): the caller falls
// back to the location's own source name and line, same as a class with no
// debug extension at all.
func Parse(src string) (*SMAP, error) {
	lines := lexLines(src)
	if len(lines) == 0 {
		return nil, &parseError{text: src, msg: "empty input"}
	}

	idx := 0
	expect := func(k lineKind, what string) error {
		if idx >= len(lines) || lines[idx].kind != k {
			got := "<eof>"
			ln := 0
			if idx < len(lines) {
				got = lines[idx].text
				ln = lines[idx].num
			}
			return &parseError{line: ln, text: got, msg: "expected " + what}
		}
		return nil
	}

	if err := expect(lineHeader, "SMAP header"); err != nil {
		return nil, err
	}
	idx++

	if idx >= len(lines) {
		return nil, &parseError{msg: "missing output file name"}
	}
	outputFile := lines[idx].text
	idx++

	if idx >= len(lines) {
		return nil, &parseError{msg: "missing default stratum name"}
	}
	defaultStratum := lines[idx].text
	idx++

	var blocks []stratumBlock
	for idx < len(lines) && lines[idx].kind == lineStratum {
		name := strings.TrimPrefix(lines[idx].text, "*S ")
		idx++

		if err := expect(lineFileSection, "*F"); err != nil {
			return nil, err
		}
		idx++

		files, n, err := parseFileEntries(lines, idx)
		if err != nil {
			return nil, err
		}
		idx = n

		if err := expect(lineLineSection, "*L"); err != nil {
			return nil, err
		}
		idx++

		ranges, n, err := parseLineMappings(lines, idx)
		if err != nil {
			return nil, err
		}
		idx = n

		for i := range files {
			files[i].Ranges = ranges[files[i].ID]
		}
		blocks = append(blocks, stratumBlock{name: name, files: files})
	}

	preferred := selectStratum(blocks)
	if preferred == nil {
		return nil, nil
	}

	return &SMAP{
		OutputFile:     outputFile,
		DefaultStratum: defaultStratum,
		Files:          preferred.files,
	}, nil
}

func selectStratum(blocks []stratumBlock) *stratumBlock {
	var kotlin *stratumBlock
	for i := range blocks {
		switch blocks[i].name {
		case "KotlinDebug":
			return &blocks[i]
		case "Kotlin":
			kotlin = &blocks[i]
		}
	}
	return kotlin
}

// parseFileEntries consumes `(<file-entry>)+` starting at idx, stopping at
// the `*L` marker. A `+`-prefixed entry's path is the following line; a bare
// entry's path equals its name.
func parseFileEntries(lines []lexLine, idx int) ([]FileEntry, int, error) {
	var files []FileEntry
	for idx < len(lines) && lines[idx].kind != lineLineSection {
		text := lines[idx].text
		hasPath := strings.HasPrefix(text, "+ ")
		if hasPath {
			text = strings.TrimPrefix(text, "+ ")
		}
		sp := strings.IndexByte(text, ' ')
		if sp < 0 {
			return nil, 0, &parseError{line: lines[idx].num, text: lines[idx].text, msg: "malformed file-entry"}
		}
		idStr, name := text[:sp], text[sp+1:]
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, 0, &parseError{line: lines[idx].num, text: lines[idx].text, msg: "non-numeric file id"}
		}
		idx++

		path := name
		if hasPath {
			if idx >= len(lines) {
				return nil, 0, &parseError{msg: "missing file path after '+' entry"}
			}
			path = lines[idx].text
			idx++
		}
		files = append(files, FileEntry{ID: id, Name: name, Path: path})
	}
	return files, idx, nil
}

// parseLineMappings consumes `(<line-mapping>)+` starting at idx, stopping
// at the next `*S`, `*F`, or `*E` marker. Mappings are grouped by the file id
// they belong to, defaulting to file 1 when omitted (§4.2).
func parseLineMappings(lines []lexLine, idx int) (map[int][]RangeMapping, int, error) {
	ranges := make(map[int][]RangeMapping)
	for idx < len(lines) {
		k := lines[idx].kind
		if k == lineStratum || k == lineFileSection || k == lineEnd {
			break
		}
		m := lineMappingPattern.FindStringSubmatch(lines[idx].text)
		if m == nil {
			return nil, 0, &parseError{line: lines[idx].num, text: lines[idx].text, msg: "malformed line-mapping"}
		}
		src, _ := strconv.Atoi(m[1])
		fileID := 1
		if m[2] != "" {
			fileID, _ = strconv.Atoi(m[2])
		}
		repeat := 1
		if m[3] != "" {
			repeat, _ = strconv.Atoi(m[3])
		}
		dest, _ := strconv.Atoi(m[4])
		// m[5] is the increment; accepted per the grammar but does not alter
		// the mapping (§4.2: non-unit increments are out of scope).

		ranges[fileID] = append(ranges[fileID], RangeMapping{
			SourceStart: src,
			DestStart:   dest,
			Range:       repeat,
			ParentFile:  fileID,
		})
		idx++
	}
	return ranges, idx, nil
}
