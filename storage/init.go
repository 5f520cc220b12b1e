package storage

import (
	"context"

	"github.com/ubiq/go-ubiq/v3/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/octanolabs/go-stakegate/models"
)

// Init creates the indexes and writes the initial state document.
func (m *MongoDB) Init(ctx context.Context, state *models.State) error {
	if _, err := m.C(models.STORE).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{"symbol", 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}

	if _, err := m.C(models.ACCOUNTS).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{"address", 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}

	if _, err := m.C(models.EVENTS).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{"timestamp", -1}}},
		{Keys: bson.D{{"account", 1}, {"timestamp", -1}}},
	}); err != nil {
		return err
	}

	if _, err := m.C(models.DEPOSITS).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{"hash", 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{"account", 1}, {"block", -1}}},
	}); err != nil {
		return err
	}

	if _, err := m.C(models.CURSORS).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{"name", 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}

	state.Symbol = m.symbol

	if _, err := m.C(models.STORE).InsertOne(ctx, state, options.InsertOne()); err != nil {
		return err
	}

	log.Warn("Initialized sysStore", "symbol", m.symbol, "mode", state.Mode)

	return nil
}
