// Package action extracts tool invocations from free-form model output.
//
// The model requests a tool with a line of the form
//
//	Action: tool.name(key="value", other="value")
//
// Parsing is deliberately forgiving: values keep escaped quotes, a truncated
// parameter list yields the pairs seen so far, and anything unparseable means
// no action at all.
package action

import "strings"

// ToolCall is one parsed tool invocation.
type ToolCall struct {
	Name   string
	Params map[string]string
}

const actionPrefix = "Action:"

// Parse scans text for the first Action line and returns the invocation it
// carries, or nil when the text contains no usable action. It never errors:
// a final answer and a malformed action look the same to the caller.
func Parse(text string) *ToolCall {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(trimmed, actionPrefix)
		if !ok {
			continue
		}
		// The first Action line decides; later ones are model noise.
		return parseInvocation(strings.TrimSpace(rest))
	}
	return nil
}

func parseInvocation(s string) *ToolCall {
	name, rest := scanToolName(s)
	if name == "" {
		return nil
	}
	if !strings.HasPrefix(rest, "(") {
		return nil
	}
	return &ToolCall{Name: name, Params: scanParams(rest[1:])}
}

// scanToolName reads identifier or identifier.identifier from the front of s
// and returns it with the remainder. A dangling dot fails the whole scan.
func scanToolName(s string) (string, string) {
	first := scanIdentifier(s)
	if first == 0 {
		return "", s
	}
	if first < len(s) && s[first] == '.' {
		second := scanIdentifier(s[first+1:])
		if second == 0 {
			return "", s
		}
		end := first + 1 + second
		return s[:end], s[end:]
	}
	return s[:first], s[first:]
}

// scanIdentifier returns the length of the leading identifier in s.
func scanIdentifier(s string) int {
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return 0
			}
		default:
			return i
		}
		i++
	}
	return i
}

// scanParams reads key="value" pairs up to the closing parenthesis. Pairs
// parsed before any malformed or truncated input are kept.
func scanParams(s string) map[string]string {
	params := make(map[string]string)
	i := 0
	for {
		// Separators between pairs.
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == ',') {
			i++
		}
		if i >= len(s) || s[i] == ')' {
			return params
		}

		keyLen := scanIdentifier(s[i:])
		if keyLen == 0 {
			return params
		}
		key := s[i : i+keyLen]
		i += keyLen

		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) || s[i] != '=' {
			return params
		}
		i++
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) || s[i] != '"' {
			return params
		}

		value, consumed, terminated := scanQuoted(s[i+1:])
		params[key] = value
		if !terminated {
			return params
		}
		i += 1 + consumed
	}
}

// scanQuoted reads a double-quoted value starting just past the opening
// quote. It unescapes \" and \\ and reports how much input it consumed
// including the closing quote. An unterminated value keeps what was read.
func scanQuoted(s string) (value string, consumed int, terminated bool) {
	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '\\' && i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
			b.WriteByte(s[i+1])
			i += 2
			continue
		}
		if c == '"' {
			return b.String(), i + 1, true
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), i, false
}
