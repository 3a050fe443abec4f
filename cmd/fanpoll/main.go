//go:build linux

package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/ikilobyte/fanpoll"
	"github.com/ikilobyte/fanpoll/config"
	"github.com/ikilobyte/fanpoll/util"
	"go.uber.org/automaxprocs/maxprocs"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {

	var (
		configPath = flag.String("config", "", "path to a yaml config file")
		workers    = flag.Int("workers", -1, "number of worker threads, 0 means GOMAXPROCS")
		logLevel   = flag.String("log-level", "", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *workers >= 0 {
		cfg.Workers = *workers
	}

	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	closer, err := util.SetupLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closer.Close()

	util.Logger.WithField("version", Version).Info("starting fanpoll")

	// 容器中按cgroup的CPU配额设置GOMAXPROCS
	if _, err := maxprocs.Set(maxprocs.Logger(util.Logger.Infof)); err != nil {
		util.Logger.WithError(err).Warn("failed to set GOMAXPROCS")
	}

	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	server, err := fanpoll.NewServer(cfg)
	if err != nil {
		util.Logger.WithError(err).Error("failed to start")
		return 1
	}

	runErr := server.Start(nil)

	if err := server.Close(); err != nil {
		util.Logger.WithError(err).Error("failed to clean up")
	}

	if runErr != nil {
		util.Logger.WithError(runErr).Error("dispatcher stopped with error")
		return 1
	}

	util.Logger.Info("bye")
	return 0
}
