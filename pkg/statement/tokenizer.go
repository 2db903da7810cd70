package statement

import (
	"strings"

	"github.com/ekaya-inc/sqlbind/pkg/cache"
)

// DefaultTokenizerCacheSize bounds the per-SQL-string extraction cache.
const DefaultTokenizerCacheSize = 5000

// Tokenizer extracts ordered placeholder occurrences from raw SQL text.
// Extraction is a pure function of the SQL string, so results are cached by
// exact text in a bounded LRU.
type Tokenizer struct {
	cache *cache.Cache[string, []ParameterInfo]
}

// NewTokenizer builds a tokenizer with its own LRU. When registry is non-nil
// the cache is registered under cache.NameTokenizer for operational tooling.
func NewTokenizer(registry *cache.Registry, maxEntries int) *Tokenizer {
	if maxEntries <= 0 {
		maxEntries = DefaultTokenizerCacheSize
	}
	c := cache.MustNew[string, []ParameterInfo](maxEntries)
	if registry != nil {
		registry.Register(cache.NameTokenizer, c)
	}
	return &Tokenizer{cache: c}
}

// Extract returns the placeholders of sql ordered by source position. The
// returned slice is shared with the cache and must not be mutated.
func (t *Tokenizer) Extract(sql string) []ParameterInfo {
	if infos, ok := t.cache.Get(sql); ok {
		return infos
	}
	infos := scanPlaceholders(sql)
	t.cache.Put(sql, infos)
	return infos
}

// scanPlaceholders is a single forward pass that alternates between skip
// tokens (string/identifier literals, comments, dollar-quoted bodies,
// operator sequences that resemble placeholders) and placeholder tokens for
// each supported style. Skip tokens are matched but never emitted. Malformed
// SQL never fails the scan; unterminated constructs consume to end of input.
func scanPlaceholders(sql string) []ParameterInfo {
	// Fast path: no parameter-like characters at all, skip the scan.
	if !strings.ContainsAny(sql, "?:@$%") {
		return nil
	}

	var infos []ParameterInfo
	emit := func(style ParameterStyle, name string, start, end int) {
		infos = append(infos, ParameterInfo{
			Name:        name,
			Style:       style,
			Position:    start,
			Ordinal:     len(infos),
			Placeholder: sql[start:end],
		})
	}

	n := len(sql)
	i := 0
	for i < n {
		switch c := sql[i]; c {
		case '\'':
			i = consumeSingleQuoted(sql, i)
		case '"':
			i = consumeUntil(sql, i+1, '"')
		case '`':
			i = consumeUntil(sql, i+1, '`')
		case '[':
			i = consumeUntil(sql, i+1, ']')
		case 'q', 'Q':
			if i+1 < n && sql[i+1] == '\'' {
				i = consumeOracleQuoted(sql, i)
			} else {
				i++
			}
		case '-':
			if i+1 < n && sql[i+1] == '-' {
				i = consumeLineComment(sql, i+2)
			} else {
				i++
			}
		case '#':
			i = consumeLineComment(sql, i+1)
		case '/':
			if i+1 < n && sql[i+1] == '*' {
				i = consumeBlockComment(sql, i+2)
			} else {
				i++
			}
		case '<':
			// <@ containment operator, not a placeholder lead-in.
			if i+1 < n && sql[i+1] == '@' {
				i += 2
			} else {
				i++
			}
		case '@':
			switch {
			case i+1 < n && (sql[i+1] == '@' || sql[i+1] == '>'):
				// @@sysvar or @> containment operator.
				i += 2
			case i+1 < n && isIdentStart(sql[i+1]):
				j := consumeIdent(sql, i+1)
				emit(StyleNamedAt, sql[i+1:j], i, j)
				i = j
			default:
				i++
			}
		case '?':
			switch {
			case i+1 < n && (sql[i+1] == '|' || sql[i+1] == '&' || sql[i+1] == '?'):
				// JSON existence operators ?| ?& and the ?? escape.
				i += 2
			case i+1 < n && (sql[i+1] == '\'' || sql[i+1] == '"'):
				// A mark glued to a quote is a stray literal, not a parameter.
				i++
			default:
				emit(StyleQmark, "", i, i+1)
				i++
			}
		case ':':
			switch {
			case i+1 < n && (sql[i+1] == ':' || sql[i+1] == '='):
				// ::cast and := assignment.
				i += 2
			case i+1 < n && isDigit(sql[i+1]):
				j := consumeDigits(sql, i+1)
				emit(StylePositionalColon, sql[i+1:j], i, j)
				i = j
			case i+1 < n && isIdentStart(sql[i+1]):
				j := consumeIdent(sql, i+1)
				emit(StyleNamedColon, sql[i+1:j], i, j)
				i = j
			default:
				i++
			}
		case '$':
			switch {
			case i+1 < n && sql[i+1] == '$':
				i = consumeDollarQuoted(sql, i, "$$")
			case i+1 < n && isDigit(sql[i+1]):
				j := consumeDigits(sql, i+1)
				emit(StyleNumeric, sql[i+1:j], i, j)
				i = j
			case i+1 < n && isIdentStart(sql[i+1]):
				j := consumeIdent(sql, i+1)
				if j < n && sql[j] == '$' {
					// $tag$ ... $tag$ quoted body.
					i = consumeDollarQuoted(sql, i, sql[i:j+1])
				} else {
					emit(StyleNamedDollar, sql[i+1:j], i, j)
					i = j
				}
			default:
				i++
			}
		case '%':
			switch {
			case i+1 < n && sql[i+1] == '%':
				i += 2
			case i+1 < n && sql[i+1] == '(':
				j := strings.IndexByte(sql[i+2:], ')')
				if j < 0 {
					i++
					break
				}
				name := sql[i+2 : i+2+j]
				end := i + 2 + j + 1
				if end < n && isFormatChar(sql[end]) && isIdentName(name) {
					emit(StyleNamedPyformat, name, i, end+1)
					i = end + 1
				} else {
					i++
				}
			case i+1 < n && isFormatChar(sql[i+1]):
				emit(StylePyformat, "", i, i+2)
				i += 2
			default:
				i++
			}
		default:
			i++
		}
	}
	return infos
}

// consumeSingleQuoted skips a '...' literal, honoring both the doubled-quote
// escape ('') and backslash escapes.
func consumeSingleQuoted(sql string, i int) int {
	n := len(sql)
	i++
	for i < n {
		switch sql[i] {
		case '\\':
			i += 2
			continue
		case '\'':
			if i+1 < n && sql[i+1] == '\'' {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return n
}

// consumeUntil skips to the byte after the next occurrence of close.
func consumeUntil(sql string, i int, close byte) int {
	for i < len(sql) {
		if sql[i] == close {
			return i + 1
		}
		i++
	}
	return i
}

// consumeOracleQuoted skips an Oracle q'(...)' literal. The byte after the
// opening quote picks the closing delimiter.
func consumeOracleQuoted(sql string, i int) int {
	n := len(sql)
	i += 2 // past q'
	if i >= n {
		return n
	}
	open := sql[i]
	close := open
	switch open {
	case '(':
		close = ')'
	case '[':
		close = ']'
	case '{':
		close = '}'
	case '<':
		close = '>'
	}
	i++
	for i < n {
		if sql[i] == close && i+1 < n && sql[i+1] == '\'' {
			return i + 2
		}
		i++
	}
	return n
}

func consumeLineComment(sql string, i int) int {
	for i < len(sql) && sql[i] != '\n' {
		i++
	}
	return i
}

func consumeBlockComment(sql string, i int) int {
	n := len(sql)
	for i+1 < n {
		if sql[i] == '*' && sql[i+1] == '/' {
			return i + 2
		}
		i++
	}
	return n
}

// consumeDollarQuoted skips a dollar-tagged body; tag includes both dollars,
// e.g. "$fn$". Unterminated bodies consume to end of input.
func consumeDollarQuoted(sql string, i int, tag string) int {
	body := i + len(tag)
	if body > len(sql) {
		return len(sql)
	}
	idx := strings.Index(sql[body:], tag)
	if idx < 0 {
		return len(sql)
	}
	return body + idx + len(tag)
}

func consumeIdent(sql string, i int) int {
	for i < len(sql) && isIdentChar(sql[i]) {
		i++
	}
	return i
}

func consumeDigits(sql string, i int) int {
	for i < len(sql) && isDigit(sql[i]) {
		i++
	}
	return i
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentChar(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// isFormatChar matches the printf-style conversion characters accepted after
// %% placeholders.
func isFormatChar(b byte) bool {
	return b == 's' || b == 'd' || b == 'f' || b == 'b'
}

func isIdentName(s string) bool {
	if s == "" || !isIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !isIdentChar(s[i]) {
			return false
		}
	}
	return true
}
