package system

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/kardianos/service"
	"github.com/taosdata/bouncerkeeper/api"
	"github.com/taosdata/bouncerkeeper/cmd"
	"github.com/taosdata/bouncerkeeper/db"
	"github.com/taosdata/bouncerkeeper/infrastructure/config"
	"github.com/taosdata/bouncerkeeper/infrastructure/log"
	"github.com/taosdata/bouncerkeeper/monitor"
	"github.com/taosdata/bouncerkeeper/process"
	"github.com/taosdata/bouncerkeeper/version"
	"github.com/taosdata/go-utils/web"
)

var logger = log.GetLogger("program")

type Daemon struct {
	server    *http.Server
	processor *process.Processor
	monitor   *monitor.Monitor
	conn      *db.Connector
	cancel    context.CancelFunc
}

// Init wires the poll loop, the self monitor and the http side server. Nothing runs until Start.
func Init(conf *config.Config) (*Daemon, error) {
	registry, err := cmd.LoadRegistry(conf)
	if err != nil {
		return nil, err
	}
	conn, err := db.NewConnector(conf.PgBouncer.ConnString(), conf.PgBouncer.QueryTimeout())
	if err != nil {
		return nil, err
	}
	processor, err := process.NewProcessor(conf, registry, conn, os.Stdout)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	sysMonitor, err := monitor.NewMonitor()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	router := web.CreateRouter(conf.Debug, &conf.Cors, false)
	api.NewCheckHealth(version.Version).Init(router)
	api.NewNodeExporter(processor, sysMonitor).Init(router)

	return &Daemon{
		server: &http.Server{
			Addr:    ":" + strconv.Itoa(conf.Port),
			Handler: router,
		},
		processor: processor,
		monitor:   sysMonitor,
		conn:      conn,
	}, nil
}

func (d *Daemon) Handler() http.Handler {
	return d.server.Handler
}

func (d *Daemon) run(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	if err := cmd.CheckVersion(ctx, d.conn); err != nil {
		logger.WithError(err).Warn("pgbouncer not reachable yet")
	}
	d.monitor.Start(interval)
	d.processor.Start(ctx)
}

func (d *Daemon) shutdown() {
	if d.cancel != nil {
		d.cancel()
	}
	if err := d.processor.Close(); err != nil {
		logger.WithError(err).Error("close processor")
	}
	d.monitor.Close()
	if err := d.conn.Close(); err != nil {
		logger.WithError(err).Error("close connector")
	}
}

func Start(d *Daemon, interval time.Duration) {
	prg := newProgram(d, interval)
	svcConfig := &service.Config{
		Name:        "bouncerkeeper",
		DisplayName: "bouncerkeeper",
		Description: "bouncerKeeper polls the PgBouncer admin console and prints line protocol metrics",
	}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		logger.Fatal(err)
	}
	err = s.Run()
	if err != nil {
		logger.Fatal(err)
	}
}

type program struct {
	daemon   *Daemon
	interval time.Duration
}

func newProgram(d *Daemon, interval time.Duration) *program {
	return &program{daemon: d, interval: interval}
}

func (p *program) Start(s service.Service) error {
	if service.Interactive() {
		logger.Info("Running in terminal.")
	} else {
		logger.Info("Running under service manager.")
	}

	p.daemon.run(p.interval)
	go func() {
		if err := p.daemon.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(fmt.Errorf("bouncerkeeper start up fail! %v", err))
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	logger.Println("Shutdown WebServer ...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.daemon.server.Shutdown(ctx); err != nil {
		logger.Println("WebServer Shutdown error:", err)
	}
	p.daemon.shutdown()

	logger.Println("Server exiting")
	return nil
}
