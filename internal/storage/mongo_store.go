package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoBlobStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoBlobStore stores envelope blobs in a Mongo collection keyed
// by blob id.
func NewMongoBlobStore(ctx context.Context, uri, dbName, collName string) (BlobStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	cli, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	// Verify connection quickly
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, err
	}

	coll := cli.Database(dbName).Collection(collName)
	return &mongoBlobStore{client: cli, coll: coll}, nil
}

func (m *mongoBlobStore) Put(ctx context.Context, id string, data []byte) error {
	if id == "" {
		return errors.New("empty id")
	}
	_, err := m.coll.UpdateByID(
		ctx,
		id,
		bson.M{
			"$set": bson.M{
				"data":      data,
				"updatedAt": time.Now(),
			},
			"$setOnInsert": bson.M{
				"createdAt": time.Now(),
			},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (m *mongoBlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, errors.New("empty id")
	}
	var doc struct {
		Data []byte `bson:"data"`
	}
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	return doc.Data, err
}

func (m *mongoBlobStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("empty id")
	}
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (m *mongoBlobStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
