package pysyntax

import (
	"strings"
)

// Skipped is a top-level statement ParseLenient could not parse.
type Skipped struct {
	Line int // first line of the statement, 1-based
	Err  error
}

// Skipped lists the statements dropped by ParseLenient, in source order.
// It is empty for modules returned by Parse.
func (m *Module) Skipped() []Skipped {
	return m.skipped
}

// ParseLenient parses src like Parse. When the file as a whole is rejected,
// usually because it uses syntax newer than the gpython grammar (f-strings,
// assignment expressions, annotated assignments, async functions, the @
// operator), each top-level statement is parsed on its own instead and the
// ones that fail are recorded in Skipped. Statements nested in a rejected
// statement are lost with it.
//
// The error of the whole-file parse is returned when no statement parses.
func ParseLenient(src, filename string) (*Module, error) {
	m, err := Parse(src, filename)
	if err == nil {
		return m, nil
	}

	recovered := &Module{}
	for _, chunk := range splitStatements(src) {
		part, perr := Parse(chunk.text, filename)
		if perr != nil {
			recovered.skipped = append(recovered.skipped, Skipped{Line: chunk.line, Err: perr})
			continue
		}
		for _, stmt := range part.body {
			stmt.lineOffset = chunk.line - 1
			recovered.body = append(recovered.body, stmt)
		}
	}
	if len(recovered.body) == 0 {
		return nil, err
	}
	return recovered, nil
}

type sourceChunk struct {
	line int
	text string
}

// splitStatements cuts src into top-level statements. A statement starts on
// an unindented line that is outside any bracket, string or backslash
// continuation. Decorators stay with the definition they decorate, and
// else, elif, except and finally clauses stay with their compound statement.
// Blank and comment lines belong to the statement before them.
func splitStatements(src string) []sourceChunk {
	var (
		chunks    []sourceChunk
		current   []string
		start     = 1
		sc        lineScanner
		decorated bool
	)
	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, sourceChunk{line: start, text: strings.Join(current, "\n") + "\n"})
		}
		current = nil
	}

	for i, line := range strings.Split(src, "\n") {
		if sc.atTopLevel() && startsStatement(line) {
			if !decorated && !isClauseContinuation(line) {
				flush()
				start = i + 1
			}
			decorated = strings.HasPrefix(line, "@")
		}
		current = append(current, line)
		sc.scan(line)
	}
	flush()
	return chunks
}

func startsStatement(line string) bool {
	if line == "" {
		return false
	}
	switch line[0] {
	case ' ', '\t', '\f', '\r', '#':
		return false
	}
	return true
}

var clauseKeywords = []string{"else", "elif", "except", "finally"}

func isClauseContinuation(line string) bool {
	for _, kw := range clauseKeywords {
		if rest, ok := strings.CutPrefix(line, kw); ok {
			if rest == "" || !isIdentByte(rest[0]) {
				return true
			}
		}
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

// lineScanner tracks the lexical state that lets a logical line span several
// physical lines.
type lineScanner struct {
	depth     int    // open brackets
	triple    string // delimiter of an open triple-quoted string
	continued bool   // previous line ended with a backslash
}

func (s *lineScanner) atTopLevel() bool {
	return s.depth == 0 && s.triple == "" && !s.continued
}

func (s *lineScanner) scan(line string) {
	s.continued = false
	i := 0
	for i < len(line) {
		if s.triple != "" {
			end := closingQuote(line, i, s.triple)
			if end < 0 {
				return
			}
			s.triple = ""
			i = end
			continue
		}
		switch c := line[i]; c {
		case '#':
			return
		case '\'', '"':
			if q := strings.Repeat(string(c), 3); strings.HasPrefix(line[i:], q) {
				s.triple = q
				i += 3
				continue
			}
			end := closingQuote(line, i+1, string(c))
			if end < 0 {
				// Unterminated, or continued with a backslash.
				s.continued = strings.HasSuffix(line, "\\")
				return
			}
			i = end
			continue
		case '(', '[', '{':
			s.depth++
		case ')', ']', '}':
			if s.depth > 0 {
				s.depth--
			}
		case '\\':
			if i == len(strings.TrimRight(line, " \t\r"))-1 {
				s.continued = true
				return
			}
		}
		i++
	}
}

// closingQuote returns the index just past the first unescaped quote in
// line at or after from, or -1.
func closingQuote(line string, from int, quote string) int {
	for i := from; i < len(line); i++ {
		if line[i] == '\\' {
			i++
			continue
		}
		if strings.HasPrefix(line[i:], quote) {
			return i + len(quote)
		}
	}
	return -1
}
