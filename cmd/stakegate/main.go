package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ubiq/go-ubiq/v3/log"

	"github.com/octanolabs/go-stakegate/config"
	"github.com/octanolabs/go-stakegate/crawler"
	"github.com/octanolabs/go-stakegate/events"
	"github.com/octanolabs/go-stakegate/monitor"
	"github.com/octanolabs/go-stakegate/rpc"
	"github.com/octanolabs/go-stakegate/storage"
)

const version = "0.1.0"

var (
	cfg        *config.Config
	appLogger  = log.Root()
	mainLogger log.Logger

	RootHandler *log.GlogHandler

	monitorHandler *monitor.PaneRouter

	enableMonitor  bool
	logLevel       string
	configFileName string
)

const (
	configFlagDefault = "config.json"
	configFlagDesc    = "specify name of config file (should be in working dir)"

	logLevelFlagDefault = "info"
	logLevelFlagDesc    = "set level of logs"
)

func init() {

	flag.StringVar(&configFileName, "c", configFlagDefault, configFlagDesc)
	flag.StringVar(&configFileName, "config", configFlagDefault, configFlagDesc)

	flag.StringVar(&logLevel, "ll", logLevelFlagDefault, logLevelFlagDesc)
	flag.StringVar(&logLevel, "logLevel", logLevelFlagDefault, logLevelFlagDesc)

	flag.BoolVar(&enableMonitor, "monitor", false, "Enables the terminal monitor")

	flag.Parse()

	if enableMonitor {
		monitorHandler = monitor.NewPaneRouter()
		RootHandler = log.NewGlogHandler(monitorHandler)
	} else {
		RootHandler = log.NewGlogHandler(log.StreamHandler(os.Stdout, log.TerminalFormat(true)))
	}

	switch logLevel {
	case "debug", "d", "dbg":
		RootHandler.Verbosity(log.LvlDebug)
	case "trace", "t":
		RootHandler.Verbosity(log.LvlTrace)
	default:
		RootHandler.Verbosity(log.LvlInfo)
	}

	appLogger.SetHandler(RootHandler)

	mainLogger = log.Root().New("pkg", "main")
}

func main() {
	log.Info("go-stakegate " + version)

	cfg = readConfig()

	if cfg.Threads > 0 {
		runtime.GOMAXPROCS(cfg.Threads)
		mainLogger.Info("App running", "threads", cfg.Threads)
	}

	symbol := cfg.Engine.Symbol
	if symbol == "" {
		symbol = "stake"
	}

	mongo, err := storage.NewConnection(&cfg.Mongo, symbol)
	if err != nil {
		mainLogger.Crit("can't establish connection to mongo", "err", err)
	}

	if err := mongo.Ping(); err != nil {
		mainLogger.Crit("Can't establish connection to mongo", "addr", cfg.Mongo.Address, "err", err)
	}
	mainLogger.Info("mongo: PONG", "addr", cfg.Mongo.Address)

	rpcClient, err := rpc.NewRPCClient(&cfg.Rpc)
	if err != nil {
		mainLogger.Crit("can't dial node", "err", err)
	}

	if err := rpcClient.Ping(); err != nil {
		mainLogger.Crit("node offline", "err", err)
	}
	mainLogger.Info("connected to rpc server", "type", cfg.Rpc.Type, "endpoint", cfg.Rpc.Endpoint)

	sinks := events.Fanout{mongo}

	if cfg.Nats.Enabled {
		publisher, err := events.DialNats(&cfg.Nats, appLogger.New("pkg", "nats"))
		if err != nil {
			mainLogger.Crit("can't connect to nats", "url", cfg.Nats.URL, "err", err)
		}
		defer publisher.Close()
		sinks = append(sinks, publisher)
	}

	var mon *monitor.Monitor
	if enableMonitor {
		mon = monitor.New(monitorHandler, appLogger.New("pkg", "monitor"))
		sinks = append(sinks, mon)
	}

	e, err := startEngine(mongo, rpcClient, sinks)
	if err != nil {
		mainLogger.Crit("can't start engine", "err", err)
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if err := startSettler(bgCtx, e, rpcClient); err != nil {
		mainLogger.Crit("can't start settler", "err", err)
	}

	if cfg.Crawler.Enabled {
		c := crawler.New(mongo, rpcClient, e, rpcClient.Custodian(), &cfg.Crawler, appLogger.New("pkg", "crawler"))
		if err := c.Start(bgCtx); err != nil {
			mainLogger.Crit("can't start deposit crawler", "err", err)
		}
	}

	if cfg.Api.Enabled {
		if err := startApi(e, mongo, &cfg.Api, appLogger.New("pkg", "api")); err != nil {
			mainLogger.Crit("can't start api", "err", err)
		}
	} else {
		mainLogger.Warn("api disabled")
	}

	if enableMonitor {
		if err := mon.Run(); err != nil {
			mainLogger.Error("monitor exited", "err", err)
		}
	} else {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		mainLogger.Info("shutting down", "signal", sig)
	}

	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rpcClient.Close()
	if err := mongo.Close(ctx); err != nil {
		mainLogger.Error("mongo disconnect", "err", err)
	}
}
