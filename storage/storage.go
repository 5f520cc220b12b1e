package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/octanolabs/go-stakegate/models"
)

const connectTimeout = 10 * time.Second

type Config struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	Address  string `json:"address"`
}

type MongoDB struct {
	client *mongo.Client
	db     *mongo.Database
	symbol string
}

func NewConnection(cfg *Config, symbol string) (*MongoDB, error) {
	opts := options.Client().
		ApplyURI(fmt.Sprintf("mongodb://%s", cfg.Address)).
		SetConnectTimeout(connectTimeout)

	if cfg.User != "" {
		opts.SetAuth(options.Credential{
			AuthSource: cfg.Database,
			Username:   cfg.User,
			Password:   cfg.Password,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &MongoDB{client: client, db: client.Database(cfg.Database), symbol: symbol}, nil
}

// C returns a handle to the named collection.
func (m *MongoDB) C(name string) *mongo.Collection {
	return m.db.Collection(name)
}

func (m *MongoDB) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// IsFirstRun reports whether the sysstore holds no state for this symbol yet.
func (m *MongoDB) IsFirstRun(ctx context.Context) (bool, error) {
	var state models.State

	err := m.C(models.STORE).FindOne(ctx, bson.M{"symbol": m.symbol}, options.FindOne()).Decode(&state)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	return false, nil
}
