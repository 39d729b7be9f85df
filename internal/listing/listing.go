// Package listing recovers the three artifacts Specter leaves in a pycdc
// listing of its loader: the scrambled state table, the decode key, and the
// reconstruction order.
//
// The listing has no grammar of its own. It is read as blank-line separated
// paragraphs, and each artifact has one extraction rule tied to a paragraph
// position and a textual pattern:
//
//	paragraph 0  decompiler header comment (discarded)
//	paragraph 1  last line: (n1, n2, ...) = (v1, v2, ...)      -> StateTableRule
//	paragraph 2  second line: ... int(b'<key>'))) ...          -> KeyRule
//	last         ...)(\n    n7,\n    n2,\n    n5))            -> OrderRule
//
// These positions hold for pycdc output on Python 3.9 bytecode only.
package listing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrReconstructionParse is returned whenever the listing does not have the
// expected layout. No partial result accompanies it.
var ErrReconstructionParse = errors.New("listing does not match the expected layout")

// paragraphSeparator splits a listing into paragraphs.
const paragraphSeparator = "\n\n"

// Layout is a listing split into paragraphs, with the decompiler's header
// paragraph already dropped. Paragraph(0) is the first payload paragraph.
type Layout struct {
	paragraphs []string
}

// Split divides listing into paragraphs and drops the header.
func Split(listing string) (*Layout, error) {
	if listing == "" {
		return nil, fmt.Errorf("%w: empty listing", ErrReconstructionParse)
	}
	parts := strings.Split(listing, paragraphSeparator)
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: no paragraph follows the header", ErrReconstructionParse)
	}
	return &Layout{paragraphs: parts[1:]}, nil
}

// Len returns the number of paragraphs after the header.
func (l *Layout) Len() int {
	return len(l.paragraphs)
}

// Paragraph returns paragraph i; negative indexes count from the end.
func (l *Layout) Paragraph(i int) (string, error) {
	idx := i
	if idx < 0 {
		idx += len(l.paragraphs)
	}
	if idx < 0 || idx >= len(l.paragraphs) {
		return "", fmt.Errorf("%w: paragraph %d requested, listing has %d", ErrReconstructionParse, i, len(l.paragraphs))
	}
	return l.paragraphs[idx], nil
}

// Artifacts are the three values recovered from a listing.
type Artifacts struct {
	Table *StateTable
	Key   int
	Order []string
}

// Parse applies every extraction rule to listing.
func Parse(listing string) (*Artifacts, error) {
	layout, err := Split(listing)
	if err != nil {
		return nil, err
	}

	table, err := StateTableRule(layout)
	if err != nil {
		return nil, fmt.Errorf("state table: %w", err)
	}
	key, err := KeyRule(layout)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	order, err := OrderRule(layout)
	if err != nil {
		return nil, fmt.Errorf("reconstruction order: %w", err)
	}

	return &Artifacts{Table: table, Key: key, Order: order}, nil
}

// splitLines splits s at "\n" the way str.splitlines does for LF text: a
// trailing newline does not produce an empty final line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
