package workflow

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

var ErrDuplicateKey = errors.New("duplicate workflow key")

// Entry is one workflow body mapping: a process and its successors in order.
type Entry struct {
	Process Descriptor
	Next    []Descriptor
}

// Definition is the structured form of a serialized workflow document.
type Definition struct {
	Name    string
	Version string
	Schema  string
	Entries []Entry
}

// Successors returns the successors of process, in order.
func (d *Definition) Successors(process Descriptor) ([]Descriptor, bool) {
	for _, e := range d.Entries {
		if e.Process == process {
			return e.Next, true
		}
	}
	return nil, false
}

// Rollback returns the reversed graph: for each edge A→B it lists A under B.
// Keys appear in the order they are first reached as targets; sources keep
// entry order. A failed step walks this graph to find the steps to compensate.
func (d *Definition) Rollback() []Entry {
	var out []Entry
	index := map[Descriptor]int{}
	for _, e := range d.Entries {
		for _, target := range e.Next {
			i, ok := index[target]
			if !ok {
				i = len(out)
				index[target] = i
				out = append(out, Entry{Process: target})
			}
			out[i].Next = append(out[i].Next, e.Process)
		}
	}
	return out
}

// SyntaxError reports malformed document input at a byte offset.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("document syntax error at offset %d: %s", e.Offset, e.Msg)
}

// ParseDocument decodes a serialized workflow. Whitespace between tokens is
// accepted so hand-formatted documents decode too.
func ParseDocument(src []byte) (*Definition, error) {
	p := &docParser{src: string(src)}
	return p.document()
}

// ─── recursive-descent parser ─────────────────────────────────────────────────

type docParser struct {
	src string
	pos int
}

func (p *docParser) errorf(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *docParser) skipSpace() {
	for p.pos < len(p.src) {
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		p.pos += size
	}
}

func (p *docParser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *docParser) expect(c byte) error {
	if got := p.peek(); got != c {
		if got == 0 {
			return p.errorf("expected %q, got end of input", c)
		}
		return p.errorf("expected %q, got %q", c, got)
	}
	p.pos++
	return nil
}

// accept consumes c if it is next.
func (p *docParser) accept(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

func (p *docParser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || (p.pos > start && '0' <= c && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", p.errorf("expected identifier")
	}
	return p.src[start:p.pos], nil
}

func (p *docParser) str() (string, error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case '"':
			return sb.String(), nil
		case '\\':
			if p.pos >= len(p.src) {
				return "", p.errorf("unterminated escape")
			}
			switch e := p.src[p.pos]; e {
			case '"', '\\':
				sb.WriteByte(e)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return "", p.errorf("unsupported escape \\%c", e)
			}
			p.pos++
		default:
			sb.WriteByte(c)
		}
	}
	return "", p.errorf("unterminated string")
}

// field parses `<name>:` and checks the name.
func (p *docParser) field(want string) error {
	at := p.pos
	name, err := p.ident()
	if err != nil {
		return err
	}
	if name != want {
		p.pos = at
		p.skipSpace()
		return p.errorf("expected field %q, got %q", want, name)
	}
	return p.expect(':')
}

func (p *docParser) stringField(want string) (string, error) {
	if err := p.field(want); err != nil {
		return "", err
	}
	return p.str()
}

// separator consumes the ',' between items. It reports whether another item
// follows, allowing a trailing comma before close.
func (p *docParser) separator(close byte) (bool, error) {
	if p.accept(close) {
		return false, nil
	}
	if err := p.expect(','); err != nil {
		return false, err
	}
	if p.accept(close) {
		return false, nil
	}
	return true, nil
}

func (p *docParser) document() (*Definition, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	def := &Definition{}
	var err error
	if def.Name, err = p.stringField("name"); err != nil {
		return nil, err
	}
	if err = p.expect(','); err != nil {
		return nil, err
	}
	if def.Version, err = p.stringField("version"); err != nil {
		return nil, err
	}
	if err = p.expect(','); err != nil {
		return nil, err
	}
	if def.Schema, err = p.stringField("schema"); err != nil {
		return nil, err
	}
	if err = p.expect(','); err != nil {
		return nil, err
	}
	if err = p.field("workflow"); err != nil {
		return nil, err
	}
	if def.Entries, err = p.body(); err != nil {
		return nil, err
	}
	p.accept(',')
	if err = p.expect(')'); err != nil {
		return nil, err
	}
	if p.peek() != 0 {
		return nil, p.errorf("unexpected trailing input")
	}
	return def, nil
}

func (p *docParser) body() ([]Entry, error) {
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	entries := []Entry{}
	if p.accept('}') {
		return entries, nil
	}
	seen := map[Descriptor]bool{}
	for {
		at := p.pos
		key, err := p.descriptor()
		if err != nil {
			return nil, err
		}
		if seen[key] {
			p.pos = at
			p.skipSpace()
			return nil, fmt.Errorf("%w %s: %w", ErrDuplicateKey, key, p.errorf("key repeated"))
		}
		seen[key] = true
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		next, err := p.list()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Process: key, Next: next})

		more, err := p.separator('}')
		if err != nil {
			return nil, err
		}
		if !more {
			return entries, nil
		}
	}
}

func (p *docParser) list() ([]Descriptor, error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}
	out := []Descriptor{}
	if p.accept(']') {
		return out, nil
	}
	for {
		d, err := p.descriptor()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
		more, err := p.separator(']')
		if err != nil {
			return nil, err
		}
		if !more {
			return out, nil
		}
	}
}

func (p *docParser) descriptor() (Descriptor, error) {
	var d Descriptor
	if err := p.expect('('); err != nil {
		return d, err
	}
	var err error
	if d.Service, err = p.stringField("service"); err != nil {
		return d, err
	}
	if err = p.expect(','); err != nil {
		return d, err
	}
	if d.Function, err = p.stringField("function"); err != nil {
		return d, err
	}
	p.accept(',')
	if err = p.expect(')'); err != nil {
		return d, err
	}
	return d, nil
}
