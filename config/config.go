package config

import (
	"fmt"
	"os"
	"path/filepath"

	json "github.com/json-iterator/go"

	"github.com/octanolabs/go-stakegate/api"
	"github.com/octanolabs/go-stakegate/crawler"
	"github.com/octanolabs/go-stakegate/engine"
	"github.com/octanolabs/go-stakegate/events"
	"github.com/octanolabs/go-stakegate/rpc"
	"github.com/octanolabs/go-stakegate/storage"
)

type Config struct {
	Threads int               `json:"threads"`
	Engine  engine.Config     `json:"engine"`
	Crawler crawler.Config    `json:"crawler"`
	Mongo   storage.Config    `json:"mongo"`
	Rpc     rpc.Config        `json:"rpc"`
	Api     api.Config        `json:"api"`
	Nats    events.NatsConfig `json:"nats"`
}

// Load reads a JSON config file.
func Load(path string) (*Config, error) {
	confPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("could not resolve config path: %w", err)
	}

	f, err := os.Open(confPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", confPath, err)
	}

	return &cfg, nil
}

// {
//   "threads": 2,
//   "engine": {
//     "symbol": "stake",
//     "mode": "oracle",
//     "minimum": "5 usd",
//     "maxPriceAge": "2h",
//     "priceSource": "0x...",
//     "owner": "0x...",
//     "sweepMode": "reconcile"
//   },
//   "mongo": { "user": "stakegate", "password": "", "database": "stakegate", "address": "localhost:27017" },
//   "rpc": { "type": "http", "endpoint": "http://127.0.0.1:8588", "custodian": "0x...", "receiptTimeout": "2m" },
//   "crawler": { "enabled": true, "interval": "15s", "confirmations": 12, "batchSize": 500 },
//   "api": { "enabled": true, "port": "3000" },
//   "nats": { "enabled": true, "url": "nats://127.0.0.1:4222", "subject": "stakegate" }
// }
