package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/blang/semver/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/taosdata/bouncerkeeper/schema"
)

// ConnectionError means the admin console could not be reached or refused the login.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to pgbouncer admin console: %s", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// QueryExecutionError means the admin console rejected or failed a command.
type QueryExecutionError struct {
	Query string
	Err   error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("execute %q: %s", e.Query, e.Err)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// Connector holds one admin console session. Commands from concurrent callers are serialized.
type Connector struct {
	lock    sync.Mutex
	db      *sql.DB
	conn    *sql.Conn
	timeout time.Duration
}

type Data struct {
	Head  []string        `json:"head"`
	Types []string        `json:"types"`
	Data  [][]interface{} `json:"data"`
}

// NewConnector opens a lazy handle on the admin console. The console only speaks the simple
// query protocol, nothing is sent until Connect or the first query.
func NewConnector(dsn string, timeout time.Duration) (*Connector, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, &ConnectionError{Err: fmt.Errorf("parse connection string: %w", err)}
	}
	cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	if timeout > 0 {
		cfg.ConnectTimeout = timeout
	}
	return NewConnectorWithDB(stdlib.OpenDB(*cfg), timeout), nil
}

func NewConnectorWithDB(db *sql.DB, timeout time.Duration) *Connector {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)
	return &Connector{db: db, timeout: timeout}
}

func (c *Connector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Connect pins one session for the lifetime of the connector.
func (c *Connector) Connect(ctx context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.connect(ctx)
}

func (c *Connector) connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	c.conn = conn
	return nil
}

// Query materializes the full result of an admin command.
func (c *Connector) Query(ctx context.Context, query string) (*Data, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
			// the next call dials a fresh session
			_ = c.conn.Close()
			c.conn = nil
			return nil, &ConnectionError{Err: err}
		}
		return nil, &QueryExecutionError{Query: query, Err: err}
	}
	defer func() { _ = rows.Close() }()

	data := &Data{}
	data.Head, err = rows.Columns()
	if err != nil {
		return nil, &QueryExecutionError{Query: query, Err: err}
	}
	columnCount := len(data.Head)
	data.Types = make([]string, columnCount)
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			data.Types[i] = ct.DatabaseTypeName()
		}
	}
	scanData := make([]interface{}, columnCount)
	for rows.Next() {
		tmp := make([]interface{}, columnCount)
		for i := 0; i < columnCount; i++ {
			scanData[i] = &tmp[i]
		}
		if err = rows.Scan(scanData...); err != nil {
			return nil, &QueryExecutionError{Query: query, Err: err}
		}
		data.Data = append(data.Data, tmp)
	}
	if err = rows.Err(); err != nil {
		return nil, &QueryExecutionError{Query: query, Err: err}
	}
	return data, nil
}

func (c *Connector) RunQuery(ctx context.Context, q schema.QueryType) (*Data, error) {
	return c.Query(ctx, q.Command())
}

var reVersion = regexp.MustCompile(`\d+\.\d+\.\d+`)

// Version asks SHOW VERSION and fails when the peer is not PgBouncer.
func (c *Connector) Version(ctx context.Context) (*semver.Version, error) {
	data, err := c.Query(ctx, schema.QueryType("version").Command())
	if err != nil {
		return nil, err
	}
	if len(data.Data) == 0 || len(data.Data[0]) == 0 {
		return nil, fmt.Errorf("empty version response")
	}
	resp := fmt.Sprintf("%s", data.Data[0][0])
	if !strings.Contains(resp, "PgBouncer") {
		return nil, fmt.Errorf("not PgBouncer instance: version response: %s", resp)
	}
	ver := reVersion.FindString(resp)
	if ver == "" {
		return nil, fmt.Errorf("couldn't parse version string '%s' (expected pattern '%s')", resp, reVersion)
	}
	v, err := semver.New(ver)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse version string '%s': %w", ver, err)
	}
	return v, nil
}

func (c *Connector) Close() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	return c.db.Close()
}
