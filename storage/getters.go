package storage

import (
	"context"
	"errors"

	"github.com/ubiq/go-ubiq/v3/common"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/octanolabs/go-stakegate/models"
)

// State

func (m *MongoDB) State(ctx context.Context) (*models.State, error) {
	var state models.State

	err := m.C(models.STORE).FindOne(ctx, bson.M{"symbol": m.symbol}, options.FindOne()).Decode(&state)
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// Accounts

func (m *MongoDB) Account(ctx context.Context, account common.Address) (*models.Account, error) {
	var a models.Account

	err := m.C(models.ACCOUNTS).FindOne(ctx, bson.M{"address": account.Hex()}, options.FindOne()).Decode(&a)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// Accounts returns every account with a non-zero balance.
func (m *MongoDB) Accounts(ctx context.Context) ([]*models.Account, error) {
	var accounts = make([]*models.Account, 0)

	c, err := m.IterAccounts(ctx)
	if err != nil {
		return accounts, err
	}

	err = c.All(ctx, &accounts)

	return accounts, err
}

func (m *MongoDB) AccountCount(ctx context.Context) (int64, error) {
	return m.C(models.ACCOUNTS).CountDocuments(ctx, bson.M{"balance": bson.M{"$ne": "0"}}, options.Count())
}

// Events

func (m *MongoDB) LatestEvents(ctx context.Context, limit int64) ([]*models.Event, error) {
	return m.events(ctx, bson.M{}, limit)
}

func (m *MongoDB) AccountEvents(ctx context.Context, account common.Address, limit int64) ([]*models.Event, error) {
	return m.events(ctx, bson.M{"account": account.Hex()}, limit)
}

func (m *MongoDB) events(ctx context.Context, filter bson.M, limit int64) ([]*models.Event, error) {
	var evs = make([]*models.Event, 0)

	c, err := m.C(models.EVENTS).Find(ctx, filter, options.Find().SetSort(bson.D{{"timestamp", -1}}).SetLimit(limit))
	if err != nil {
		return evs, err
	}

	err = c.All(ctx, &evs)

	return evs, err
}

// Crawler

// Cursor returns the named crawler cursor, or nil when there is none yet.
func (m *MongoDB) Cursor(ctx context.Context, name string) (*models.Cursor, error) {
	var c models.Cursor

	err := m.C(models.CURSORS).FindOne(ctx, bson.M{"name": name}, options.FindOne()).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (m *MongoDB) AccountDeposits(ctx context.Context, account common.Address, limit int64) ([]*models.Deposit, error) {
	var deposits = make([]*models.Deposit, 0)

	c, err := m.C(models.DEPOSITS).Find(ctx, bson.M{"account": account.Hex()}, options.Find().SetSort(bson.D{{"block", -1}}).SetLimit(limit))
	if err != nil {
		return deposits, err
	}

	err = c.All(ctx, &deposits)

	return deposits, err
}
