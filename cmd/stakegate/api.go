package main

import (
	"github.com/ubiq/go-ubiq/v3/log"

	"github.com/octanolabs/go-stakegate/api"
	"github.com/octanolabs/go-stakegate/engine"
	"github.com/octanolabs/go-stakegate/storage"
)

func startApi(e *engine.Engine, mongo *storage.MongoDB, cfg *api.Config, logger log.Logger) error {
	a := api.NewApiServer(e, mongo, cfg, logger)
	return a.Start()
}
