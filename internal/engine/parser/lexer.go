package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokPunct
	tokInclude
	tokDoc
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of file"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokPunct:
		return "punctuation"
	case tokInclude:
		return "#include"
	case tokDoc:
		return "doc comment"
	}
	return "token"
}

type token struct {
	kind  tokenKind
	text  string
	line  int
	start int // byte offsets into the source, used to slice default values verbatim
	end   int
}

type lexError struct {
	line int
	msg  string
}

func (e *lexError) Error() string { return fmt.Sprintf("line %d: %s", e.line, e.msg) }

// lex splits src into tokens. Plain comments are dropped; doc comments
// (/** */ and ///) survive as tokDoc so the parser can attach them to the
// following declaration.
func lex(src string) ([]token, error) {
	var toks []token
	line := 1
	i := 0
	atLineStart := true

	for i < len(src) {
		c := src[i]

		switch {
		case c == '\n':
			line++
			i++
			atLineStart = true
			continue
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++
			continue
		}

		if c == '#' && atLineStart {
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			directive := strings.TrimSpace(src[i : i+end])
			path, ok := parseIncludeDirective(directive)
			if !ok {
				return nil, &lexError{line: line, msg: fmt.Sprintf("unsupported preprocessor directive %q", directive)}
			}
			toks = append(toks, token{kind: tokInclude, text: path, line: line, start: i, end: i + end})
			i += end
			continue
		}
		atLineStart = false

		if strings.HasPrefix(src[i:], "///") {
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			text := strings.TrimSpace(src[i+3 : i+end])
			toks = appendDoc(toks, text, line, i, i+end)
			i += end
			continue
		}
		if strings.HasPrefix(src[i:], "//") {
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				end = len(src) - i
			}
			i += end
			continue
		}
		if strings.HasPrefix(src[i:], "/*") {
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, &lexError{line: line, msg: "unterminated block comment"}
			}
			body := src[i+2 : i+2+end]
			startLine := line
			line += strings.Count(body, "\n")
			if strings.HasPrefix(body, "*") && !strings.HasPrefix(body, "**") {
				toks = append(toks, token{kind: tokDoc, text: cleanBlockDoc(body[1:]), line: startLine, start: i, end: i + end + 4})
			}
			i += end + 4
			continue
		}

		start := i
		switch {
		case isIdentStart(c):
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], line: line, start: start, end: i})
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			i = scanNumber(src, i)
			toks = append(toks, token{kind: tokNumber, text: src[start:i], line: line, start: start, end: i})
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(src) && src[j] != c {
				if src[j] == '\\' {
					j++
				}
				if j < len(src) && src[j] == '\n' {
					return nil, &lexError{line: line, msg: "newline in string literal"}
				}
				j++
			}
			if j >= len(src) {
				return nil, &lexError{line: line, msg: "unterminated string literal"}
			}
			i = j + 1
			toks = append(toks, token{kind: tokString, text: src[start:i], line: line, start: start, end: i})
		case c == ':' && i+1 < len(src) && src[i+1] == ':':
			i += 2
			toks = append(toks, token{kind: tokPunct, text: "::", line: line, start: start, end: i})
		case strings.IndexByte("{}()<>[],;:=*&@+-/!~%|^.?", c) >= 0:
			i++
			toks = append(toks, token{kind: tokPunct, text: string(c), line: line, start: start, end: i})
		default:
			r, _ := utf8.DecodeRuneInString(src[i:])
			return nil, &lexError{line: line, msg: fmt.Sprintf("unexpected character %q", r)}
		}
	}

	toks = append(toks, token{kind: tokEOF, line: line, start: len(src), end: len(src)})
	return toks, nil
}

// appendDoc merges consecutive /// lines into one doc token.
func appendDoc(toks []token, text string, line, start, end int) []token {
	if n := len(toks); n > 0 && toks[n-1].kind == tokDoc && toks[n-1].line == line-1 {
		prev := &toks[n-1]
		prev.text += "\n" + text
		prev.line = line
		prev.end = end
		return toks
	}
	return append(toks, token{kind: tokDoc, text: text, line: line, start: start, end: end})
}

func cleanBlockDoc(body string) string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		l = strings.TrimPrefix(l, "*")
		out = append(out, strings.TrimSpace(l))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func parseIncludeDirective(d string) (string, bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(d, "#"))
	if !strings.HasPrefix(rest, "include") {
		return "", false
	}
	rest = strings.TrimSpace(strings.TrimPrefix(rest, "include"))
	if len(rest) < 2 {
		return "", false
	}
	switch {
	case rest[0] == '<' && rest[len(rest)-1] == '>':
		return rest, true
	case rest[0] == '"' && rest[len(rest)-1] == '"':
		return rest, true
	}
	return "", false
}

func scanNumber(src string, i int) int {
	if strings.HasPrefix(src[i:], "0x") || strings.HasPrefix(src[i:], "0X") {
		i += 2
		for i < len(src) && isHexDigit(src[i]) {
			i++
		}
		return scanNumberSuffix(src, i)
	}
	for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
		i++
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			i = j
			for i < len(src) && isDigit(src[i]) {
				i++
			}
		}
	}
	return scanNumberSuffix(src, i)
}

func scanNumberSuffix(src string, i int) int {
	for i < len(src) && strings.IndexByte("uUlLfF", src[i]) >= 0 {
		i++
	}
	return i
}

// Identifiers are ASCII only.
func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
