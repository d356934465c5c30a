package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/taosdata/bouncerkeeper/db"
	"github.com/taosdata/bouncerkeeper/infrastructure/config"
	"github.com/taosdata/bouncerkeeper/infrastructure/log"
	"github.com/taosdata/bouncerkeeper/schema"
	"github.com/taosdata/bouncerkeeper/util/pool"
)

var logger = log.GetLogger("handle")

// Dispatcher runs one admin command and returns its materialized result.
type Dispatcher interface {
	RunQuery(ctx context.Context, q schema.QueryType) (*db.Data, error)
}

type Processor struct {
	dispatcher       Dispatcher
	emitter          *Emitter
	serializer       Serializer
	validate         bool
	queries          []schema.QueryType
	out              io.Writer
	rotationInterval time.Duration
	nextTime         time.Time
	exitChan         chan struct{}
	closeOnce        sync.Once
	done             sync.WaitGroup

	cycles   prometheus.Counter
	lines    *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration prometheus.Gauge
}

// NewProcessor resolves the configured query types against registry and prepares the emitter.
func NewProcessor(conf *config.Config, registry *schema.Registry, dispatcher Dispatcher, out io.Writer) (*Processor, error) {
	queries := make([]schema.QueryType, 0, len(conf.Metrics.Queries))
	seen := make(map[schema.QueryType]struct{}, len(conf.Metrics.Queries))
	for _, name := range conf.Metrics.Queries {
		q, err := registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		if _, exist := seen[q]; exist {
			continue
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no query type given")
	}
	serializer, err := NewSerializer(conf.Metrics.Format)
	if err != nil {
		return nil, err
	}
	interval, err := conf.Interval()
	if err != nil {
		return nil, err
	}
	staticTags := conf.Metrics.StaticTags()
	tags := make([]Tag, 0, len(staticTags))
	for _, t := range staticTags {
		if owners := registry.TagOwners(t[0]); len(owners) > 0 {
			return nil, fmt.Errorf("%w: static tag %q is a tag column of %v", config.ErrUsage, t[0], owners)
		}
		tags = append(tags, Tag{Key: t[0], Value: t[1]})
	}

	return &Processor{
		dispatcher:       dispatcher,
		emitter:          NewEmitter(conf.Metrics.Prefix, registry, tags),
		serializer:       serializer,
		validate:         conf.Metrics.Validate,
		queries:          queries,
		out:              out,
		rotationInterval: interval,
		exitChan:         make(chan struct{}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bouncerkeeper_cycles_total",
			Help: "Number of finished poll cycles.",
		}),
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bouncerkeeper_lines_total",
			Help: "Number of metric lines written.",
		}, []string{"query"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bouncerkeeper_failures_total",
			Help: "Number of failed query types by error kind.",
		}, []string{"query", "kind"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bouncerkeeper_last_cycle_duration_seconds",
			Help: "Duration of the last poll cycle.",
		}),
	}, nil
}

func (p *Processor) Queries() []schema.QueryType {
	return append([]schema.QueryType(nil), p.queries...)
}

func (p *Processor) Describe(descs chan<- *prometheus.Desc) {
	p.cycles.Describe(descs)
	p.lines.Describe(descs)
	p.failures.Describe(descs)
	p.duration.Describe(descs)
}

func (p *Processor) Collect(metrics chan<- prometheus.Metric) {
	p.cycles.Collect(metrics)
	p.lines.Collect(metrics)
	p.failures.Collect(metrics)
	p.duration.Collect(metrics)
}

type result struct {
	data  []byte
	lines int
	err   error
}

// Render runs one query type through the dispatcher, normalizer, emitter and serializer.
func (p *Processor) Render(ctx context.Context, q schema.QueryType, ts time.Time) ([]byte, int, error) {
	data, err := p.dispatcher.RunQuery(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	rows := Normalize(data)
	lines, err := p.emitter.Lines(q, rows)
	if err != nil {
		return nil, 0, err
	}
	out, err := p.serializer.Serialize(lines, ts)
	if err != nil {
		return nil, 0, err
	}
	if p.validate {
		if err = Validate(out, len(lines)); err != nil {
			return nil, 0, err
		}
	}
	logger.Debugf("%s: %d rows", q.Command(), len(rows))
	return out, len(lines), nil
}

func (p *Processor) renderAll(ctx context.Context, ts time.Time) []result {
	results := make([]result, len(p.queries))
	if len(p.queries) == 1 || pool.GoroutinePool == nil {
		for i, q := range p.queries {
			results[i].data, results[i].lines, results[i].err = p.Render(ctx, q, ts)
		}
		return results
	}

	wg := sync.WaitGroup{}
	wg.Add(len(p.queries))
	for i, q := range p.queries {
		index, query := i, q
		err := pool.GoroutinePool.Submit(func() {
			defer wg.Done()
			r := &results[index]
			r.data, r.lines, r.err = p.Render(ctx, query, ts)
		})
		if err != nil {
			wg.Done()
			results[index].err = fmt.Errorf("submit %s: %w", query, err)
		}
	}
	wg.Wait()
	return results
}

// Process runs one poll cycle. When atomic is set, any failing query type suppresses all
// output of the cycle; otherwise only the failing types are left out. The first error in
// query order is returned.
func (p *Processor) Process(ctx context.Context, atomic bool) error {
	start := time.Now()
	defer func() {
		p.cycles.Inc()
		p.duration.Set(time.Since(start).Seconds())
	}()

	results := p.renderAll(ctx, start)
	var firstErr error
	for i, r := range results {
		if r.err != nil {
			p.failures.WithLabelValues(string(p.queries[i]), ErrorKind(r.err)).Inc()
			logger.WithError(r.err).Errorf("process %s failed", p.queries[i])
			if firstErr == nil {
				firstErr = r.err
			}
		}
	}
	if firstErr != nil && atomic {
		return firstErr
	}

	for i, r := range results {
		if r.err != nil {
			continue
		}
		if _, err := p.out.Write(r.data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		p.lines.WithLabelValues(string(p.queries[i])).Add(float64(r.lines))
	}
	return firstErr
}

// ErrorKind labels err for logs and self metrics.
func ErrorKind(err error) string {
	var (
		connErr      *db.ConnectionError
		queryErr     *db.QueryExecutionError
		columnErr    *schema.UnknownColumnError
		emptyErr     *EmptyFieldSetError
		malformedErr *MalformedLineError
		dupErr       *DuplicateTagError
	)
	switch {
	case errors.As(err, &connErr):
		return "connection"
	case errors.As(err, &queryErr):
		return "query"
	case errors.As(err, &columnErr):
		return "unknown_column"
	case errors.As(err, &emptyErr):
		return "empty_field_set"
	case errors.As(err, &malformedErr):
		return "malformed_line"
	case errors.As(err, &dupErr):
		return "duplicate_tag"
	default:
		return "other"
	}
}

// Start polls every rotationInterval until Close. Cycles never overlap.
func (p *Processor) Start(ctx context.Context) {
	p.setNextTime(time.Now())
	p.done.Add(1)
	go p.work(ctx)
}

func (p *Processor) setNextTime(t time.Time) {
	p.nextTime = t.Round(p.rotationInterval)
	if p.nextTime.Before(time.Now()) {
		p.nextTime = p.nextTime.Add(p.rotationInterval)
	}
}

func (p *Processor) work(ctx context.Context) {
	defer p.done.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case t := <-ticker.C:
			if t.After(p.nextTime) {
				_ = p.Process(ctx, false)
				p.setNextTime(time.Now())
			}
		case <-ctx.Done():
			logger.Warn("exit process")
			return
		case <-p.exitChan:
			logger.Warn("exit process")
			return
		}
	}
}

// Close stops the poll loop and waits for a running cycle to finish.
func (p *Processor) Close() error {
	p.closeOnce.Do(func() {
		close(p.exitChan)
	})
	p.done.Wait()
	return nil
}
