package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokIdent:
		return "identifier"
	default:
		return "operator"
	}
}

type token struct {
	kind tokenKind
	text string
	num  any // int64 or float64 for tokNumber
	pos  int
}

// twoCharOps must be checked before single-character operators.
var twoCharOps = []string{"==", "!=", "<=", ">=", "&&", "||"}

const singleCharOps = "<>!()[].,-"

// tokenize splits an expression into tokens.
// Characters outside the grammar (e.g. '~', '=', '+') are rejected.
func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		if len(toks) == maxTokens {
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("expression longer than %d tokens", maxTokens)}
		}
		c, size := utf8.DecodeRuneInString(src[i:])

		if unicode.IsSpace(c) {
			i += size
			continue
		}

		if c == '\'' || c == '"' {
			s, n, err := scanString(src[i:])
			if err != nil {
				return nil, &SyntaxError{Pos: i, Msg: err.Error()}
			}
			toks = append(toks, token{kind: tokString, text: s, pos: i})
			i += n
			continue
		}

		if isDigit(c) {
			start := i
			for i < len(src) && (isDigit(rune(src[i])) || src[i] == '.' || src[i] == '_') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				i++
				if i < len(src) && (src[i] == '+' || src[i] == '-') {
					i++
				}
				for i < len(src) && isDigit(rune(src[i])) {
					i++
				}
			}
			text := src[start:i]
			num, err := parseNumber(text)
			if err != nil {
				return nil, &SyntaxError{Pos: start, Msg: fmt.Sprintf("invalid number %q", text)}
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: num, pos: start})
			continue
		}

		if isIdentStart(c) {
			start := i
			for i < len(src) {
				r, n := utf8.DecodeRuneInString(src[i:])
				if !isIdentPart(r) {
					break
				}
				i += n
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
			continue
		}

		matched := false
		for _, op := range twoCharOps {
			if strings.HasPrefix(src[i:], op) {
				toks = append(toks, token{kind: tokOp, text: op, pos: i})
				i += len(op)
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		if strings.ContainsRune(singleCharOps, c) {
			toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
			i++
			continue
		}

		return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
	}

	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

// scanString reads a quoted string starting at s[0].
// Returns the unquoted value and the number of bytes consumed.
func scanString(s string) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(s[i])
			}
		case c == quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func parseNumber(text string) (any, error) {
	clean := strings.ReplaceAll(text, "_", "")
	if i, err := strconv.ParseInt(clean, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }

func isIdentStart(c rune) bool { return c == '_' || unicode.IsLetter(c) }

func isIdentPart(c rune) bool { return isIdentStart(c) || isDigit(c) }
