// Package bibtex parses and serializes BibTeX bibliography files.
//
// The parser produces flat key-value entries: raw BibTeX field names in
// lowercase plus the ENTRYTYPE and ID pseudo-fields. Field-name
// remapping to the internal schema is the normalizer's job, not ours.
package bibtex

import (
	"fmt"
	"io"
	"strings"
	"unicode"
)

// Entry is one parsed BibTeX entry: raw field names plus ENTRYTYPE and ID.
type Entry map[string]string

// DOI returns the entry's DOI field, if any.
func (e Entry) DOI() string {
	return e["doi"]
}

// Key returns the entry's citation key.
func (e Entry) Key() string {
	return e["ID"]
}

// Parse reads a BibTeX file and returns its entries in file order.
// @comment, @preamble and @string blocks are skipped. A malformed entry
// aborts the parse with a position-annotated error.
func Parse(r io.Reader) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading bibtex input: %w", err)
	}

	p := &parser{input: string(data)}
	return p.parse()
}

type parser struct {
	input string
	pos   int
}

func (p *parser) parse() ([]Entry, error) {
	var entries []Entry

	for {
		// Scan to the next @ block
		at := strings.IndexByte(p.input[p.pos:], '@')
		if at < 0 {
			return entries, nil
		}
		p.pos += at + 1

		entryType := p.readIdentifier()
		if entryType == "" {
			return nil, fmt.Errorf("offset %d: missing entry type after @", p.pos)
		}

		switch strings.ToLower(entryType) {
		case "comment", "preamble", "string":
			if err := p.skipBlock(); err != nil {
				return nil, err
			}
			continue
		}

		entry, err := p.readEntry(entryType)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
}

// readEntry parses "{key, field = value, ...}" after the entry type.
func (p *parser) readEntry(entryType string) (Entry, error) {
	p.skipSpace()
	if !p.consume('{') {
		return nil, fmt.Errorf("offset %d: expected '{' after @%s", p.pos, entryType)
	}

	key := p.readUntil(",}")
	entry := Entry{
		"ENTRYTYPE": strings.ToLower(entryType),
		"ID":        strings.TrimSpace(key),
	}

	for {
		p.skipSpace()
		if p.consume('}') {
			return entry, nil
		}
		if !p.consume(',') {
			return nil, fmt.Errorf("offset %d: expected ',' or '}' in @%s{%s}", p.pos, entryType, entry["ID"])
		}
		p.skipSpace()
		if p.consume('}') {
			// Trailing comma before closing brace
			return entry, nil
		}

		name := strings.ToLower(strings.TrimSpace(p.readUntil("=")))
		if !p.consume('=') {
			return nil, fmt.Errorf("offset %d: expected '=' after field %q", p.pos, name)
		}

		value, err := p.readValue()
		if err != nil {
			return nil, fmt.Errorf("@%s{%s} field %q: %w", entryType, entry["ID"], name, err)
		}
		if name != "" {
			entry[name] = value
		}
	}
}

// readValue parses a field value: {braced}, "quoted", or a bare word.
// Nested braces are tracked; the outermost pair is stripped.
func (p *parser) readValue() (string, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return "", fmt.Errorf("offset %d: unexpected end of input", p.pos)
	}

	switch p.input[p.pos] {
	case '{':
		return p.readBraced()
	case '"':
		return p.readQuoted()
	default:
		return strings.TrimSpace(p.readUntil(",}")), nil
	}
}

func (p *parser) readBraced() (string, error) {
	start := p.pos + 1
	depth := 0
	for i := p.pos; i < len(p.input); i++ {
		switch p.input[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				p.pos = i + 1
				return collapseSpace(p.input[start:i]), nil
			}
		}
	}
	return "", fmt.Errorf("offset %d: unterminated braced value", p.pos)
}

func (p *parser) readQuoted() (string, error) {
	start := p.pos + 1
	for i := start; i < len(p.input); i++ {
		if p.input[i] == '"' && p.input[i-1] != '\\' {
			p.pos = i + 1
			return collapseSpace(p.input[start:i]), nil
		}
	}
	return "", fmt.Errorf("offset %d: unterminated quoted value", p.pos)
}

// skipBlock skips a balanced {...} block (used for @comment and friends).
func (p *parser) skipBlock() error {
	p.skipSpace()
	if !p.consume('{') {
		return nil // @comment without braces runs to end of line, ignore
	}
	depth := 1
	for ; p.pos < len(p.input); p.pos++ {
		switch p.input[p.pos] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				p.pos++
				return nil
			}
		}
	}
	return fmt.Errorf("offset %d: unterminated block", p.pos)
}

func (p *parser) readIdentifier() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if !unicode.IsLetter(rune(c)) && !unicode.IsDigit(rune(c)) {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) readUntil(stop string) string {
	start := p.pos
	for p.pos < len(p.input) && !strings.ContainsRune(stop, rune(p.input[p.pos])) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *parser) consume(c byte) bool {
	if p.pos < len(p.input) && p.input[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

// collapseSpace folds runs of whitespace (including newlines from wrapped
// fields) into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
