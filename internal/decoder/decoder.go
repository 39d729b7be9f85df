// Package decoder inverts Specter's per-character shift cipher and
// reassembles the original source from the state table.
//
// Each table entry is a NUL-separated list of decimal numbers; number n
// stands for the character with code point n-key.
package decoder

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/whit3rabbit/unspecter/internal/listing"
	"github.com/whit3rabbit/unspecter/internal/pysyntax"
)

// tokenSeparator separates encoded characters within one entry.
const tokenSeparator = "\x00"

// EntryText returns the text form of a state table value. Bytes must be
// valid UTF-8; str values are used as they are.
func EntryText(lit *pysyntax.Literal) (string, error) {
	switch lit.Kind() {
	case pysyntax.KindBytes:
		if !utf8.Valid(lit.Bytes) {
			return "", fmt.Errorf("%w: entry is not valid UTF-8", listing.ErrReconstructionParse)
		}
		return string(lit.Bytes), nil
	case pysyntax.KindStr:
		return lit.Text, nil
	default:
		return "", fmt.Errorf("%w: entry is a %s literal, want bytes or str", listing.ErrReconstructionParse, lit.Kind())
	}
}

// DecodeEntry decodes one encoded entry with key.
func DecodeEntry(encoded string, key int) (string, error) {
	tokens := strings.Split(encoded, tokenSeparator)
	var sb strings.Builder
	sb.Grow(len(tokens))
	for i, tok := range tokens {
		n, err := strconv.Atoi(strings.TrimSpace(tok))
		if err != nil {
			return "", fmt.Errorf("%w: token %d (%q) is not a number", listing.ErrReconstructionParse, i, tok)
		}
		cp := n - key
		if cp < 0 || cp > utf8.MaxRune || !utf8.ValidRune(rune(cp)) {
			return "", fmt.Errorf("%w: token %d decodes to invalid code point %d", listing.ErrReconstructionParse, i, cp)
		}
		sb.WriteRune(rune(cp))
	}
	return sb.String(), nil
}

// Reassemble decodes the entries named by order, in that order, and
// concatenates them. A name missing from table is an error.
func Reassemble(table *listing.StateTable, order []string, key int) (string, error) {
	var sb strings.Builder
	for _, name := range order {
		lit, ok := table.Get(name)
		if !ok {
			return "", fmt.Errorf("%w: order references unknown name %q", listing.ErrReconstructionParse, name)
		}
		text, err := EntryText(lit)
		if err != nil {
			return "", fmt.Errorf("entry %q: %w", name, err)
		}
		decoded, err := DecodeEntry(text, key)
		if err != nil {
			return "", fmt.Errorf("entry %q: %w", name, err)
		}
		sb.WriteString(decoded)
	}
	return sb.String(), nil
}

// Decode reassembles the source described by a parsed listing.
func Decode(a *listing.Artifacts) (string, error) {
	return Reassemble(a.Table, a.Order, a.Key)
}
