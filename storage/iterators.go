package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/octanolabs/go-stakegate/models"
)

func (m *MongoDB) IterAccounts(ctx context.Context) (*mongo.Cursor, error) {

	return m.C(models.ACCOUNTS).Find(ctx, bson.M{"balance": bson.M{"$ne": "0"}}, options.Find().SetSort(bson.D{{"address", 1}}))

}

func (m *MongoDB) IterEvents(ctx context.Context) (*mongo.Cursor, error) {

	return m.C(models.EVENTS).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{"timestamp", 1}}))

}
