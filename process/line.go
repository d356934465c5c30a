package process

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/taosdata/bouncerkeeper/schema"
	"github.com/taosdata/bouncerkeeper/util/pool"
)

// EmptyFieldSetError is returned for a row that would render without any field.
type EmptyFieldSetError struct {
	Query schema.QueryType
}

func (e *EmptyFieldSetError) Error() string {
	return fmt.Sprintf("row of query type %q has no field columns", e.Query)
}

// DuplicateTagError is returned when a row tag reuses the key of a static tag or an earlier row tag.
type DuplicateTagError struct {
	Query schema.QueryType
	Key   string
}

func (e *DuplicateTagError) Error() string {
	return fmt.Sprintf("row of query type %q repeats tag key %q", e.Query, e.Key)
}

type Tag struct {
	Key   string
	Value string
}

type Field struct {
	Key   string
	Value Value
}

type MetricLine struct {
	Measurement string
	Tags        []Tag
	Fields      []Field
}

var fieldStringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

// AppendTo writes the line without a trailing newline. Tag values are written verbatim,
// reserved characters are not escaped. String fields escape backslash, quote and line breaks.
func (m *MetricLine) AppendTo(b *bytes.Buffer) {
	b.WriteString(m.Measurement)
	for _, t := range m.Tags {
		b.WriteByte(',')
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	b.WriteByte(' ')
	for i, f := range m.Fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		if f.Value.Kind == Text {
			b.WriteByte('"')
			fieldStringEscaper.WriteString(b, f.Value.Text())
			b.WriteByte('"')
		} else {
			b.WriteString(f.Value.String())
		}
	}
}

func (m *MetricLine) String() string {
	b := pool.BytesPoolGet()
	m.AppendTo(b)
	s := b.String()
	pool.BytesPoolPut(b)
	return s
}

type Emitter struct {
	prefix   string
	registry *schema.Registry
	tags     []Tag
}

// NewEmitter prepends tags, in order, to every line it builds.
func NewEmitter(prefix string, registry *schema.Registry, tags []Tag) *Emitter {
	return &Emitter{
		prefix:   prefix,
		registry: registry,
		tags:     append([]Tag(nil), tags...),
	}
}

func (e *Emitter) Measurement(q schema.QueryType) string {
	return e.prefix + "_" + string(q)
}

// Line classifies every column of row. Absent values and empty tag values are skipped.
// A tag key may appear only once per line.
func (e *Emitter) Line(q schema.QueryType, row Row) (*MetricLine, error) {
	line := &MetricLine{
		Measurement: e.Measurement(q),
		Tags:        make([]Tag, 0, len(e.tags)+len(row)),
		Fields:      make([]Field, 0, len(row)),
	}
	line.Tags = append(line.Tags, e.tags...)
	keys := make(map[string]struct{}, cap(line.Tags))
	for _, t := range e.tags {
		keys[t.Key] = struct{}{}
	}
	for _, c := range row {
		role, err := e.registry.RoleOf(q, c.Name)
		if err != nil {
			return nil, err
		}
		if c.Value.Kind == Absent {
			continue
		}
		switch role {
		case schema.Tag:
			if v := c.Value.String(); v != "" {
				if _, dup := keys[c.Name]; dup {
					return nil, &DuplicateTagError{Query: q, Key: c.Name}
				}
				keys[c.Name] = struct{}{}
				line.Tags = append(line.Tags, Tag{Key: c.Name, Value: v})
			}
		case schema.Field:
			line.Fields = append(line.Fields, Field{Key: c.Name, Value: c.Value})
		}
	}
	if len(line.Fields) == 0 {
		return nil, &EmptyFieldSetError{Query: q}
	}
	return line, nil
}

// Lines stops at the first failing row.
func (e *Emitter) Lines(q schema.QueryType, rows []Row) ([]*MetricLine, error) {
	lines := make([]*MetricLine, 0, len(rows))
	for _, row := range rows {
		line, err := e.Line(q, row)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}
