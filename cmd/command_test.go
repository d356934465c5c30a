package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/blang/semver/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taosdata/bouncerkeeper/db"
	"github.com/taosdata/bouncerkeeper/infrastructure/config"
	"github.com/taosdata/bouncerkeeper/process"
	"github.com/taosdata/bouncerkeeper/schema"
)

func testConfig(queries ...string) *config.Config {
	return &config.Config{
		RotationInterval: "15s",
		Metrics: config.MetricsConfig{
			Prefix:   "pgbouncer",
			TagKey:   "server",
			Identity: "host1",
			Format:   config.FormatPlain,
			Queries:  queries,
		},
	}
}

func newMock(t *testing.T) (*db.Connector, sqlmock.Sqlmock) {
	mdb, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	conn := db.NewConnectorWithDB(mdb, time.Second)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, mock
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{nil, ExitOK},
		{&db.ConnectionError{Err: errors.New("refused")}, ExitConnection},
		{&db.QueryExecutionError{Query: "SHOW POOLS", Err: errors.New("bad")}, ExitQuery},
		{&schema.UnknownColumnError{Query: "pools", Column: "x"}, ExitUnknownColumn},
		{&process.EmptyFieldSetError{Query: "pools"}, ExitEmptyFieldSet},
		{&process.MalformedLineError{Err: errors.New("bad")}, ExitMalformedLine},
		{fmt.Errorf("wrapped: %w", &db.ConnectionError{Err: errors.New("refused")}), ExitConnection},
		{config.ErrUsage, ExitUsage},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, ExitCode(tt.err), fmt.Sprint(tt.err))
	}
}

func TestRun(t *testing.T) {
	conn, mock := newMock(t)
	mock.ExpectQuery("SHOW POOLS").WillReturnRows(
		sqlmock.NewRows([]string{"database", "user", "cl_active", "pool_mode"}).AddRow("foo", "bob", int64(3), "session"),
	)
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), testConfig("pools"), schema.Default(), conn, &out))
	assert.Equal(t, "pgbouncer_pools,server=host1,database=foo,user=bob,pool_mode=session cl_active=3\n", out.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunNoPartialOutput(t *testing.T) {
	conn, mock := newMock(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery("SHOW LISTS").WillReturnRows(
		sqlmock.NewRows([]string{"list", "items"}).AddRow("databases", int64(2)),
	)
	mock.ExpectQuery("SHOW MEM").WillReturnError(errors.New("unknown command"))
	var out bytes.Buffer
	err := Run(context.Background(), testConfig("lists", "mem"), schema.Default(), conn, &out)
	assert.Equal(t, ExitQuery, ExitCode(err))
	assert.Empty(t, out.String())
}

func TestRunUnknownQuery(t *testing.T) {
	conn, _ := newMock(t)
	err := Run(context.Background(), testConfig("reload"), schema.Default(), conn, &bytes.Buffer{})
	assert.True(t, errors.Is(err, config.ErrUsage))
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestConnectionRefused(t *testing.T) {
	conn, err := db.NewConnector("host=127.0.0.1 port=1 user=pgbouncer dbname=pgbouncer sslmode=disable", time.Second)
	require.NoError(t, err)
	defer conn.Close()
	var out bytes.Buffer
	err = Run(context.Background(), testConfig("pools"), schema.Default(), conn, &out)
	assert.Equal(t, ExitConnection, ExitCode(err))
	assert.Empty(t, out.String())
}

type fakeVersion struct {
	ver *semver.Version
	err error
}

func (f fakeVersion) Version(context.Context) (*semver.Version, error) {
	return f.ver, f.err
}

func TestCheckVersion(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, CheckVersion(ctx, fakeVersion{ver: &semver.Version{Major: 1, Minor: 23, Patch: 1}}))
	assert.NoError(t, CheckVersion(ctx, fakeVersion{ver: &semver.Version{Major: 1, Minor: 7}}))
	assert.NoError(t, CheckVersion(ctx, fakeVersion{err: errors.New("not PgBouncer instance")}))
	err := CheckVersion(ctx, fakeVersion{err: &db.ConnectionError{Err: errors.New("refused")}})
	assert.Equal(t, ExitConnection, ExitCode(err))
}

func TestLoadRegistry(t *testing.T) {
	conf := testConfig("pools")
	registry, err := LoadRegistry(conf)
	require.NoError(t, err)
	assert.True(t, registry.Has("pools"))

	path := filepath.Join(t.TempDir(), "schema.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[column]]
query = "pools"
column = "cl_new_counter"
role = "field"
`), 0o644))
	conf.Metrics.Schema = path
	registry, err = LoadRegistry(conf)
	require.NoError(t, err)
	role, err := registry.RoleOf("pools", "cl_new_counter")
	require.NoError(t, err)
	assert.Equal(t, schema.Field, role)

	conf.Metrics.Schema = filepath.Join(t.TempDir(), "missing.toml")
	_, err = LoadRegistry(conf)
	assert.Equal(t, ExitUsage, ExitCode(err))
}

func TestListQueries(t *testing.T) {
	var out bytes.Buffer
	ListQueries(&out, schema.Default())
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, len(schema.Default().Types()))
	assert.Contains(t, out.String(), "SHOW POOLS")
}

func TestRunTagCollision(t *testing.T) {
	conn, _ := newMock(t)
	conf := testConfig("databases")
	conf.Metrics.TagKey = "host"
	var out bytes.Buffer
	err := Run(context.Background(), conf, schema.Default(), conn, &out)
	assert.Equal(t, ExitUsage, ExitCode(err))
	assert.True(t, errors.Is(err, config.ErrUsage))
	assert.Empty(t, out.String())
}
