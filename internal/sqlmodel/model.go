// Copyright 2026 the objectiv-analytics authors.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package sqlmodel holds compiled query units: immutable, content-hashed
// select statements that may reference each other through placeholders.
//
// A model stores its SQL as a format string in which {name} placeholders
// stand for referenced models. Literal braces in SQL text are escaped by
// doubling them. The final statement is only assembled once every referenced
// unit is final, which lets expressions be built before the models they
// reference are.
package sqlmodel

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// QuoteIdentifier quotes a SQL identifier, escaping embedded double quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString quotes a string literal, escaping embedded single quotes.
func QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// EscapeFormatString doubles braces so that literal text survives placeholder
// substitution untouched.
func EscapeFormatString(s string) string {
	s = strings.ReplaceAll(s, "{", "{{")
	return strings.ReplaceAll(s, "}", "}}")
}

// Model is an immutable compiled query unit.
type Model struct {
	sqlFormat  string
	references map[string]*Model
	columns    []string
	hash       string
}

// New returns a model for the given SQL format string. references must map
// every placeholder name appearing in sqlFormat to the model it stands for.
// columns names the result columns the statement selects, in order.
func New(sqlFormat string, references map[string]*Model, columns []string) *Model {
	m := &Model{
		sqlFormat:  sqlFormat,
		references: make(map[string]*Model, len(references)),
		columns:    append([]string(nil), columns...),
	}
	for name, ref := range references {
		m.references[name] = ref
	}
	m.hash = m.contentHash()
	return m
}

// NewTable returns the model selecting everything from an existing database
// table.
func NewTable(tableName string, columns []string) *Model {
	return New("select * from "+QuoteIdentifier(tableName), nil, columns)
}

func (m *Model) contentHash() string {
	h := sha1.New()
	h.Write([]byte(m.sqlFormat))
	for _, name := range sortedNames(m.references) {
		h.Write([]byte(name))
		h.Write([]byte(m.references[name].Hash()))
	}
	for _, c := range m.columns {
		h.Write([]byte{0})
		h.Write([]byte(c))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the stable content-derived identity of this model. Models with
// equal hashes compile to the same SQL.
func (m *Model) Hash() string { return m.hash }

// RefName returns the name under which other models reference this one.
func (m *Model) RefName() string { return "reference" + m.hash }

// Columns returns the result columns this model selects.
func (m *Model) Columns() []string { return append([]string(nil), m.columns...) }

// References returns the directly referenced models keyed by placeholder name.
func (m *Model) References() map[string]*Model {
	refs := make(map[string]*Model, len(m.references))
	for name, ref := range m.references {
		refs[name] = ref
	}
	return refs
}

// Equals reports content equality.
func (m *Model) Equals(other *Model) bool {
	return other != nil && m.hash == other.hash
}

// SQLFormat returns the unsubstituted SQL format string.
func (m *Model) SQLFormat() string { return m.sqlFormat }

// ToSQL assembles the final statement. Every transitively referenced model
// becomes a common table expression named after its hash; placeholders
// resolve to those names. Distinct references to the same model share one
// common table expression.
func (m *Model) ToSQL() (string, error) {
	var ctes []string
	seen := make(map[string]bool)
	var collect func(model *Model) error
	collect = func(model *Model) error {
		for _, name := range sortedNames(model.references) {
			ref := model.references[name]
			if seen[ref.RefName()] {
				continue
			}
			seen[ref.RefName()] = true
			if err := collect(ref); err != nil {
				return err
			}
			body, err := substitute(ref.sqlFormat, ref.references)
			if err != nil {
				return err
			}
			ctes = append(ctes, QuoteIdentifier(ref.RefName())+" as ("+body+")")
		}
		return nil
	}
	if err := collect(m); err != nil {
		return "", err
	}
	body, err := substitute(m.sqlFormat, m.references)
	if err != nil {
		return "", err
	}
	if len(ctes) == 0 {
		return body, nil
	}
	return "with " + strings.Join(ctes, ", ") + " " + body, nil
}

// substitute replaces {name} placeholders with the quoted name and unescapes
// doubled braces.
func substitute(format string, references map[string]*Model) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		switch format[i] {
		case '{':
			if i+1 < len(format) && format[i+1] == '{' {
				sb.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(format[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("sqlmodel: unterminated placeholder in %q", format)
			}
			name := format[i+1 : i+end]
			if _, ok := references[name]; !ok {
				return "", fmt.Errorf("sqlmodel: unknown reference %q in %q", name, format)
			}
			sb.WriteString(QuoteIdentifier(name))
			i += end
		case '}':
			if i+1 < len(format) && format[i+1] == '}' {
				sb.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("sqlmodel: unbalanced '}' in %q", format)
		default:
			sb.WriteByte(format[i])
		}
	}
	return sb.String(), nil
}

func sortedNames(references map[string]*Model) []string {
	names := make([]string, 0, len(references))
	for name := range references {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
