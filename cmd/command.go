package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/blang/semver/v4"
	"github.com/taosdata/bouncerkeeper/db"
	"github.com/taosdata/bouncerkeeper/infrastructure/config"
	"github.com/taosdata/bouncerkeeper/infrastructure/log"
	"github.com/taosdata/bouncerkeeper/process"
	"github.com/taosdata/bouncerkeeper/schema"
)

var logger = log.GetLogger("command")

const (
	ExitOK            = 0
	ExitUsage         = 1
	ExitConnection    = 2
	ExitQuery         = 3
	ExitUnknownColumn = 4
	ExitEmptyFieldSet = 5
	ExitMalformedLine = 6
)

var minVersion = semver.Version{Major: 1, Minor: 8, Patch: 0}

// LoadRegistry returns the built-in registry extended by the configured schema file.
func LoadRegistry(conf *config.Config) (*schema.Registry, error) {
	registry := schema.Default()
	if conf.Metrics.Schema == "" {
		return registry, nil
	}
	entries, err := schema.LoadFile(conf.Metrics.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrUsage, err)
	}
	registry, err = registry.Extend(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrUsage, err)
	}
	return registry, nil
}

// ListQueries prints one supported query type per line with its admin command.
func ListQueries(w io.Writer, registry *schema.Registry) {
	for _, q := range registry.Types() {
		fmt.Fprintf(w, "%-16s %s\n", q, q.Command())
	}
}

// Process runs a single poll against the admin console, writes the lines to stdout and
// returns the process exit code.
func Process(conf *config.Config) int {
	registry, err := LoadRegistry(conf)
	if err != nil {
		logger.WithError(err).Error("load schema")
		return ExitCode(err)
	}
	if conf.ListQueries {
		ListQueries(os.Stdout, registry)
		return ExitOK
	}

	conn, err := db.NewConnector(conf.PgBouncer.ConnString(), conf.PgBouncer.QueryTimeout())
	if err != nil {
		logger.WithError(err).Error("init connector")
		return ExitCode(err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.WithError(err).Warn("close connector")
		}
	}()

	ctx := context.Background()
	if err = CheckVersion(ctx, conn); err != nil {
		logger.WithError(err).Error("check pgbouncer version")
		return ExitCode(err)
	}
	if err = Run(ctx, conf, registry, conn, os.Stdout); err != nil {
		logger.WithError(err).Error("poll failed")
		return ExitCode(err)
	}
	return ExitOK
}

// Run renders every configured query type and writes nothing unless all of them succeed.
func Run(ctx context.Context, conf *config.Config, registry *schema.Registry, dispatcher process.Dispatcher, out io.Writer) error {
	processor, err := process.NewProcessor(conf, registry, dispatcher, out)
	if err != nil {
		var unknown *schema.UnknownQueryError
		if errors.As(err, &unknown) {
			return fmt.Errorf("%w: %s", config.ErrUsage, err)
		}
		return err
	}
	return processor.Process(ctx, true)
}

type versioner interface {
	Version(ctx context.Context) (*semver.Version, error)
}

// CheckVersion only fails when the console is unreachable. Old or unparsable versions are logged.
func CheckVersion(ctx context.Context, v versioner) error {
	ver, err := v.Version(ctx)
	if err != nil {
		var connErr *db.ConnectionError
		if errors.As(err, &connErr) {
			return err
		}
		logger.WithError(err).Warn("unknown pgbouncer version")
		return nil
	}
	if ver.LT(minVersion) {
		logger.Warnf("pgbouncer %s is older than %s, some columns may be missing", ver, minVersion)
	} else {
		logger.Debugf("pgbouncer version %s", ver)
	}
	return nil
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var (
		connErr      *db.ConnectionError
		queryErr     *db.QueryExecutionError
		columnErr    *schema.UnknownColumnError
		emptyErr     *process.EmptyFieldSetError
		malformedErr *process.MalformedLineError
	)
	switch {
	case errors.As(err, &connErr):
		return ExitConnection
	case errors.As(err, &queryErr):
		return ExitQuery
	case errors.As(err, &columnErr):
		return ExitUnknownColumn
	case errors.As(err, &emptyErr):
		return ExitEmptyFieldSet
	case errors.As(err, &malformedErr):
		return ExitMalformedLine
	default:
		return ExitUsage
	}
}
