// Package scanner provides literal-boundary-aware scanning of C# code
// fragments. Contract documents carry raw C# (Wrap expressions, Dispose and
// Pre/Post/Prologue snippets) that the generator splices into its output;
// this package lets callers ask whether a byte sits inside a string literal,
// a character literal, a verbatim string, or a comment without each caller
// re-implementing that state machine.
package scanner

import (
	"fmt"
	"strings"
)

// closingKind tracks which kind of literal was just closed.
type closingKind byte

const (
	noClosing       closingKind = iota
	closingString               // just closed a "..." string
	closingChar                 // just closed a '...' character literal
	closingVerbatim             // just closed a @"..." verbatim string
	closingComment              // just closed a /* */ comment
)

// CodeScanner iterates byte-by-byte over C# source text, tracking literal
// and comment boundaries plus escape sequences. Callers check InCode()
// instead of maintaining their own inString/inChar/escaped flags.
//
// InString() returns true for the entire literal span including both
// opening and closing delimiters.
type CodeScanner struct {
	src        string
	pos        int
	line       int
	inStr      bool
	inChar     bool
	inVerbatim bool
	inLine     bool // inside a // comment
	inBlock    bool // inside a /* */ comment
	blockStart int  // offset of the '*' that opened the current block comment
	escaped    bool
	closing    closingKind
}

// New creates a CodeScanner for the given source text.
// Call Next() to advance to the first byte.
func New(src string) *CodeScanner {
	return &CodeScanner{src: src, pos: -1, line: 1}
}

// Next advances to the next byte, updating literal/comment state.
// Returns the byte and true, or (0, false) at end of input.
func (s *CodeScanner) Next() (byte, bool) {
	s.closing = noClosing
	s.pos++
	if s.pos >= len(s.src) {
		return 0, false
	}
	ch := s.src[s.pos]
	if ch == '\n' {
		s.line++
		s.inLine = false
		return ch, true
	}

	switch {
	case s.inLine:
		return ch, true
	case s.inBlock:
		if ch == '/' && s.pos > 0 && s.src[s.pos-1] == '*' && s.blockOpenedBefore(s.pos-1) {
			s.inBlock = false
			s.closing = closingComment
		}
		return ch, true
	case s.escaped:
		s.escaped = false
		return ch, true
	case s.inVerbatim:
		if ch == '"' {
			// "" inside a verbatim string is an escaped quote.
			if next, ok := s.Peek(); ok && next == '"' {
				s.pos++
				return ch, true
			}
			s.inVerbatim = false
			s.closing = closingVerbatim
		}
		return ch, true
	case s.inStr || s.inChar:
		if ch == '\\' {
			s.escaped = true
			return ch, true
		}
		if ch == '"' && s.inStr {
			s.inStr = false
			s.closing = closingString
		} else if ch == '\'' && s.inChar {
			s.inChar = false
			s.closing = closingChar
		}
		return ch, true
	}

	switch ch {
	case '"':
		s.inStr = true
	case '\'':
		s.inChar = true
	case '@':
		if next, ok := s.Peek(); ok && next == '"' {
			s.pos++
			s.inVerbatim = true
		}
	case '/':
		if next, ok := s.Peek(); ok {
			if next == '/' {
				s.inLine = true
			} else if next == '*' {
				s.pos++
				s.inBlock = true
				s.blockStart = s.pos
			}
		}
	}
	return ch, true
}

// blockOpenedBefore reports whether the '*' at star belongs to the body of
// the comment rather than to its "/*" opener.
func (s *CodeScanner) blockOpenedBefore(star int) bool {
	return star > s.blockStart
}

// InString reports whether the current position is inside a string,
// character or verbatim literal, including both delimiters.
func (s *CodeScanner) InString() bool {
	return s.inStr || s.inChar || s.inVerbatim ||
		s.closing == closingString || s.closing == closingChar || s.closing == closingVerbatim
}

// InVerbatim reports whether the current position is inside a verbatim
// string. Verbatim strings may span lines.
func (s *CodeScanner) InVerbatim() bool { return s.inVerbatim || s.closing == closingVerbatim }

// InComment reports whether the current position is inside a comment.
func (s *CodeScanner) InComment() bool {
	return s.inLine || s.inBlock || s.closing == closingComment
}

// InCode reports whether the current position is outside all literals and
// comments.
func (s *CodeScanner) InCode() bool { return !s.InString() && !s.InComment() }

// Pos returns the current byte offset (the position of the last byte
// returned by Next). Returns -1 before the first call to Next.
func (s *CodeScanner) Pos() int { return s.pos }

// Line returns the current 1-based line number.
func (s *CodeScanner) Line() int { return s.line }

// Peek returns the next byte without advancing, or (0, false) at end.
func (s *CodeScanner) Peek() (byte, bool) {
	if s.pos+1 >= len(s.src) {
		return 0, false
	}
	return s.src[s.pos+1], true
}

// IsOpenBracket reports whether ch is an opening bracket/paren/brace.
func IsOpenBracket(ch byte) bool {
	return ch == '(' || ch == '[' || ch == '{'
}

// IsCloseBracket reports whether ch is a closing bracket/paren/brace.
func IsCloseBracket(ch byte) bool {
	return ch == ')' || ch == ']' || ch == '}'
}

func matching(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	default:
		return '}'
	}
}

// CheckBalanced verifies that brackets in src are balanced and correctly
// nested outside literals and comments, and that no literal or block
// comment is left open.
func CheckBalanced(src string) error {
	var stack []byte
	var lines []int
	sc := New(src)
	for ch, ok := sc.Next(); ok; ch, ok = sc.Next() {
		if !sc.InCode() {
			continue
		}
		if IsOpenBracket(ch) {
			stack = append(stack, ch)
			lines = append(lines, sc.Line())
		} else if IsCloseBracket(ch) {
			if len(stack) == 0 {
				return fmt.Errorf("line %d: unexpected %q", sc.Line(), ch)
			}
			top := stack[len(stack)-1]
			if matching(top) != ch {
				return fmt.Errorf("line %d: %q closes %q opened on line %d", sc.Line(), ch, top, lines[len(lines)-1])
			}
			stack = stack[:len(stack)-1]
			lines = lines[:len(lines)-1]
		}
	}
	if sc.inStr || sc.inChar || sc.inVerbatim {
		return fmt.Errorf("unterminated literal")
	}
	if sc.inBlock {
		return fmt.Errorf("unterminated comment")
	}
	if len(stack) > 0 {
		return fmt.Errorf("line %d: unclosed %q", lines[len(lines)-1], stack[len(stack)-1])
	}
	return nil
}

// ContinuationLines reports, for each line of src, whether the line begins
// inside a multi-line literal or block comment. Such lines must be copied
// verbatim when re-indenting a snippet.
func ContinuationLines(src string) []bool {
	result := []bool{false}
	sc := New(src)
	for ch, ok := sc.Next(); ok; ch, ok = sc.Next() {
		if ch != '\n' {
			continue
		}
		result = append(result, sc.inVerbatim || sc.inBlock)
	}
	return result
}

// Reindent strips the leading tabs and spaces of src's lines except
// for lines that continue a multi-line literal or comment, which are kept
// byte for byte. The result has no trailing newline.
func Reindent(src string) []string {
	lines := strings.Split(strings.TrimRight(src, "\n"), "\n")
	cont := ContinuationLines(src)
	out := make([]string, len(lines))
	for i, ln := range lines {
		if i < len(cont) && cont[i] {
			out[i] = ln
			continue
		}
		out[i] = strings.TrimLeft(ln, " \t")
	}
	return out
}
