package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var codeBlockRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

func stripCodeBlock(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// ParseList parses a model reply holding a list of strings. JSON arrays and
// Python-style literals are accepted: single or double quotes, backslash
// escapes, and a trailing comma. The reply may be wrapped in a code fence.
// Any other shape yields a *ResponseParseError.
func ParseList(raw string) ([]string, error) {
	text := stripCodeBlock(raw)

	var elems []*string
	if err := json.Unmarshal([]byte(text), &elems); err == nil && elems != nil {
		out := make([]string, len(elems))
		for i, e := range elems {
			if e == nil {
				return nil, &ResponseParseError{Raw: raw, Err: fmt.Errorf("element %d is null", i)}
			}
			out[i] = *e
		}
		return out, nil
	}

	out, err := parseLiteral(text)
	if err != nil {
		return nil, &ResponseParseError{Raw: raw, Err: err}
	}
	return out, nil
}

type literalScanner struct {
	s   string
	pos int
}

func parseLiteral(text string) ([]string, error) {
	sc := &literalScanner{s: text}
	sc.skipSpace()
	if !sc.consume('[') {
		return nil, errors.New("expected '['")
	}

	out := []string{}
	for {
		sc.skipSpace()
		if sc.consume(']') {
			break
		}
		s, err := sc.quoted()
		if err != nil {
			return nil, err
		}
		out = append(out, s)

		sc.skipSpace()
		if sc.consume(',') {
			continue
		}
		if sc.consume(']') {
			break
		}
		return nil, fmt.Errorf("expected ',' or ']' at offset %d", sc.pos)
	}

	sc.skipSpace()
	if sc.pos != len(sc.s) {
		return nil, fmt.Errorf("unexpected text after list at offset %d", sc.pos)
	}
	return out, nil
}

func (sc *literalScanner) skipSpace() {
	for sc.pos < len(sc.s) {
		switch sc.s[sc.pos] {
		case ' ', '\t', '\n', '\r':
			sc.pos++
		default:
			return
		}
	}
}

func (sc *literalScanner) consume(c byte) bool {
	if sc.pos < len(sc.s) && sc.s[sc.pos] == c {
		sc.pos++
		return true
	}
	return false
}

func (sc *literalScanner) quoted() (string, error) {
	if sc.pos >= len(sc.s) {
		return "", errors.New("unexpected end of input")
	}
	quote := sc.s[sc.pos]
	if quote != '"' && quote != '\'' {
		return "", fmt.Errorf("expected string at offset %d", sc.pos)
	}
	sc.pos++

	var sb strings.Builder
	for sc.pos < len(sc.s) {
		c := sc.s[sc.pos]
		switch {
		case c == quote:
			sc.pos++
			return sb.String(), nil
		case c == '\n':
			return "", fmt.Errorf("unterminated string at offset %d", sc.pos)
		case c == '\\':
			if err := sc.escape(&sb); err != nil {
				return "", err
			}
		default:
			r, size := utf8.DecodeRuneInString(sc.s[sc.pos:])
			sb.WriteRune(r)
			sc.pos += size
		}
	}
	return "", errors.New("unterminated string")
}

func (sc *literalScanner) escape(sb *strings.Builder) error {
	sc.pos++ // backslash
	if sc.pos >= len(sc.s) {
		return errors.New("dangling escape")
	}
	c := sc.s[sc.pos]
	sc.pos++
	switch c {
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case '\\', '\'', '"', '/':
		sb.WriteByte(c)
	case 'u':
		if sc.pos+4 > len(sc.s) {
			return errors.New("short \\u escape")
		}
		n, err := strconv.ParseUint(sc.s[sc.pos:sc.pos+4], 16, 32)
		if err != nil {
			return fmt.Errorf("bad \\u escape: %w", err)
		}
		sb.WriteRune(rune(n))
		sc.pos += 4
	default:
		// Unknown escapes keep the backslash.
		sb.WriteByte('\\')
		sb.WriteByte(c)
	}
	return nil
}
