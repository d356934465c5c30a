package main

import (
	"os"

	"github.com/taosdata/bouncerkeeper/cmd"
	"github.com/taosdata/bouncerkeeper/infrastructure/config"
	"github.com/taosdata/bouncerkeeper/infrastructure/log"
	"github.com/taosdata/bouncerkeeper/system"
)

func main() {
	conf := config.InitConfig()
	if !conf.Daemon || conf.ListQueries {
		os.Exit(cmd.Process(conf))
	}

	logger := log.GetLogger("main")
	daemon, err := system.Init(conf)
	if err != nil {
		logger.WithError(err).Error("init daemon")
		os.Exit(cmd.ExitCode(err))
	}
	interval, _ := conf.Interval()
	system.Start(daemon, interval)
	logger.Warn("stop server")
}
