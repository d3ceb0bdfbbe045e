package format

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/taosdata/taosgen-sub001/internal/model"
)

// token is one piece of a compiled topic/key template.
type token struct {
	text        string // meaningful when isPlaceholder is false
	placeholder string // meaningful when isPlaceholder is true
	isPlaceholder bool
}

// Template is a pattern compiled once into a sequence of literal-text and
// placeholder tokens, resolved per row at format time (spec §4.5
// "TopicGenerator / KeyGenerator").
type Template struct {
	tokens []token
}

// CompileTemplate parses pattern, splitting on {name} placeholders.
func CompileTemplate(pattern string) *Template {
	var tokens []token
	rest := pattern
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			if rest != "" {
				tokens = append(tokens, token{text: rest})
			}
			break
		}
		if start > 0 {
			tokens = append(tokens, token{text: rest[:start]})
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			// Unterminated placeholder: treat the rest as literal text.
			tokens = append(tokens, token{text: rest[start:]})
			break
		}
		name := rest[start+1 : start+end]
		tokens = append(tokens, token{placeholder: name, isPlaceholder: true})
		rest = rest[start+end+1:]
	}
	return &Template{tokens: tokens}
}

// Resolve renders the template against one row, in placeholder priority
// order: "table" -> table name, "ts" -> decimal timestamp, a data column
// name, a tag name, or else the literal "{COL_NOT_FOUND:key}" (spec §4.5).
// Resolution failures never abort; they render as "{ERROR:...}".
func (t *Template) Resolve(columns, tags []model.ColumnConfig, src RowSource) string {
	var sb strings.Builder
	for _, tok := range t.tokens {
		if !tok.isPlaceholder {
			sb.WriteString(tok.text)
			continue
		}
		sb.WriteString(resolvePlaceholder(tok.placeholder, columns, tags, src))
	}
	return sb.String()
}

func resolvePlaceholder(name string, columns, tags []model.ColumnConfig, src RowSource) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = fmt.Sprintf("{ERROR:%v}", r)
		}
	}()

	switch name {
	case "table":
		if src.TableName == "" {
			return "UNKNOWN_TABLE"
		}
		return src.TableName
	case "ts":
		if !src.HasTimestamp {
			return "INVALID_TS"
		}
		return strconv.FormatInt(src.Timestamp, 10)
	}
	for i, c := range columns {
		if c.Name == name {
			if i < len(src.Columns) {
				return plainText(src.Columns[i])
			}
			return "{ERROR:column index out of range}"
		}
	}
	for i, c := range tags {
		if c.Name == name {
			if i < len(src.Tags) {
				return plainText(src.Tags[i])
			}
			return "{ERROR:tag index out of range}"
		}
	}
	return "{COL_NOT_FOUND:" + name + "}"
}
