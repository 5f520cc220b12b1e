package main

import (
	"os"

	"github.com/octanolabs/go-stakegate/config"
)

func readConfig() *config.Config {

	if configFileName == "" {
		mainLogger.Error("Invalid arguments", "args", os.Args)
		os.Exit(1)
	}

	mainLogger.Info("Loading config", "path", configFileName)

	c, err := config.Load(configFileName)
	if err != nil {
		mainLogger.Crit("Config error", "err", err)
	}

	mainLogger.Debug("Printing config", "engine", c.Engine, "rpc", c.Rpc.Endpoint, "api", c.Api.Enabled)

	return c
}
