// Package smap parses and queries the SMAP ("source map") debug metadata a
// Kotlin compiler embeds in a class's debug-extension attribute so that code
// inlined from another file can still be stepped through and shown to the
// user under its own source name and line.
package smap

import "strings"

// lineKind classifies a non-empty, trimmed line of SMAP text enough for the
// parser to drive its state machine. Content lines (output file name, file
// entries, line mappings) are deliberately left unclassified here and
// interpreted by the parser according to its current section, the same way
// a hand-written recursive-descent parser over a line grammar works rather
// than a full tokenizer with a rich token alphabet.
type lineKind int

const (
	lineUnclassified lineKind = iota
	lineHeader                // "SMAP"
	lineFileSection           // "*F"
	lineLineSection           // "*L"
	lineEnd                   // "*E"
	lineStratum               // "*S <name>"
)

// lexLine is one physical line together with its 1-based position in the
// original text, kept for error messages the way krotik-ecal's LexToken
// tracks Lline/Lpos alongside each token's value.
type lexLine struct {
	kind lineKind
	text string
	num  int
}

func lexLines(src string) []lexLine {
	raw := strings.Split(src, "\n")
	out := make([]lexLine, 0, len(raw))
	for i, l := range raw {
		l = strings.TrimRight(l, "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, lexLine{kind: classify(l), text: l, num: i + 1})
	}
	return out
}

func classify(l string) lineKind {
	switch {
	case l == "SMAP":
		return lineHeader
	case l == "*F":
		return lineFileSection
	case l == "*L":
		return lineLineSection
	case l == "*E":
		return lineEnd
	case strings.HasPrefix(l, "*S "):
		return lineStratum
	default:
		return lineUnclassified
	}
}
