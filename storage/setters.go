package storage

import (
	"context"
	"math/big"

	"github.com/ubiq/go-ubiq/v3/common"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/octanolabs/go-stakegate/events"
	"github.com/octanolabs/go-stakegate/models"
	"github.com/octanolabs/go-stakegate/util"
)

// SaveAccount writes the account and then the total. The two writes are not
// atomic; engine.Restore rebuilds the total from the accounts when they
// disagree.
func (m *MongoDB) SaveAccount(ctx context.Context, account common.Address, balance, total *big.Int) error {
	a := models.NewAccount(account, balance, util.MakeTimestamp())

	if _, err := m.C(models.ACCOUNTS).UpdateOne(ctx, bson.M{"address": a.Address}, bson.D{{"$set", a}}, options.Update().SetUpsert(true)); err != nil {
		return err
	}

	return m.saveTotal(ctx, total)
}

func (m *MongoDB) SaveAccounts(ctx context.Context, balances map[common.Address]*big.Int, total *big.Int) error {
	if len(balances) > 0 {
		now := util.MakeTimestamp()
		writes := make([]mongo.WriteModel, 0, len(balances))

		for account, balance := range balances {
			a := models.NewAccount(account, balance, now)
			writes = append(writes, mongo.NewUpdateOneModel().
				SetFilter(bson.M{"address": a.Address}).
				SetUpdate(bson.D{{"$set", a}}).
				SetUpsert(true))
		}

		if _, err := m.C(models.ACCOUNTS).BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
			return err
		}
	}

	return m.saveTotal(ctx, total)
}

func (m *MongoDB) saveTotal(ctx context.Context, total *big.Int) error {
	_, err := m.C(models.STORE).UpdateOne(ctx, bson.M{"symbol": m.symbol}, bson.D{{"$set", bson.M{
		"total":   total.String(),
		"updated": util.MakeTimestamp(),
	}}}, options.Update().SetUpsert(true))

	return err
}

func (m *MongoDB) SaveState(ctx context.Context, state *models.State) error {
	s := *state
	s.Symbol = m.symbol

	_, err := m.C(models.STORE).UpdateOne(ctx, bson.M{"symbol": m.symbol}, bson.D{{"$set", &s}}, options.Update().SetUpsert(true))

	return err
}

// Publish appends events to the event log.
func (m *MongoDB) Publish(ctx context.Context, evs ...events.Event) error {
	if len(evs) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(evs))
	for _, ev := range evs {
		docs = append(docs, models.NewEvent(ev))
	}

	_, err := m.C(models.EVENTS).InsertMany(ctx, docs, options.InsertMany())

	return err
}

func (m *MongoDB) SaveCursor(ctx context.Context, c *models.Cursor) error {
	c.Updated = util.MakeTimestamp()

	_, err := m.C(models.CURSORS).UpdateOne(ctx, bson.M{"name": c.Name}, bson.D{{"$set", c}}, options.Update().SetUpsert(true))

	return err
}

// MarkDeposit records a deposit transaction. It reports false when the
// transaction was already recorded.
func (m *MongoDB) MarkDeposit(ctx context.Context, d *models.Deposit) (bool, error) {
	res, err := m.C(models.DEPOSITS).UpdateOne(ctx, bson.M{"hash": d.Hash}, bson.D{{"$setOnInsert", d}}, options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}

	return res.UpsertedCount == 1, nil
}

func (m *MongoDB) UnmarkDeposit(ctx context.Context, hash string) error {
	_, err := m.C(models.DEPOSITS).DeleteOne(ctx, bson.M{"hash": hash}, options.Delete())

	return err
}
