package process

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/influxdata/telegraf"
	tmetric "github.com/influxdata/telegraf/metric"
	"github.com/influxdata/telegraf/plugins/serializers/influx"
	"github.com/taosdata/bouncerkeeper/infrastructure/config"
)

// Serializer renders one batch of lines, newline terminated.
type Serializer interface {
	Serialize(lines []*MetricLine, ts time.Time) ([]byte, error)
}

func NewSerializer(format string) (Serializer, error) {
	switch format {
	case config.FormatPlain, "":
		return PlainSerializer{}, nil
	case config.FormatInflux:
		return NewInfluxSerializer(), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// PlainSerializer writes timestamp-less lines, numbers bare and strings quoted without escaping.
type PlainSerializer struct{}

func (PlainSerializer) Serialize(lines []*MetricLine, _ time.Time) ([]byte, error) {
	var b bytes.Buffer
	for _, line := range lines {
		line.AppendTo(&b)
		b.WriteByte('\n')
	}
	return b.Bytes(), nil
}

// InfluxSerializer goes through telegraf: reserved characters escaped, integers suffixed
// with i, tags sorted and a nanosecond timestamp appended.
type InfluxSerializer struct {
	serializer *influx.Serializer
}

func NewInfluxSerializer() *InfluxSerializer {
	return &InfluxSerializer{serializer: influx.NewSerializer()}
}

func (s *InfluxSerializer) Serialize(lines []*MetricLine, ts time.Time) ([]byte, error) {
	var b bytes.Buffer
	for _, line := range lines {
		data, err := s.serializer.Serialize(toTelegraf(line, ts))
		if err != nil {
			return nil, fmt.Errorf("serialize %s: %w", line.Measurement, err)
		}
		b.Write(data)
	}
	return b.Bytes(), nil
}

// telegraf leaves line breaks inside string fields as is
var lineBreakEscaper = strings.NewReplacer("\n", `\n`, "\r", `\r`)

func toTelegraf(line *MetricLine, ts time.Time) telegraf.Metric {
	tags := make(map[string]string, len(line.Tags))
	for _, t := range line.Tags {
		tags[t.Key] = t.Value
	}
	m := tmetric.New(line.Measurement, tags, map[string]interface{}{}, ts, telegraf.Untyped)
	for _, f := range line.Fields {
		switch f.Value.Kind {
		case Int:
			m.AddField(f.Key, f.Value.Int())
		case Float:
			m.AddField(f.Key, f.Value.Float())
		case Text:
			m.AddField(f.Key, lineBreakEscaper.Replace(f.Value.Text()))
		}
	}
	return m
}
