package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicate is returned when a unique field (user email) is already taken
var ErrDuplicate = errors.New("duplicate key")

// Store groups the repositories one backend provides
type Store struct {
	Users    UserRepo
	Saves    SaveRepo
	Sessions GameSessionRepo
	Close    func(ctx context.Context) error
}

// NewMongoStore wires the Mongo repositories and makes sure the indexes exist
func NewMongoStore(ctx context.Context, client *mongo.Client, dbName string) (*Store, error) {
	db := client.Database(dbName)
	if err := ensureIndexes(ctx, db); err != nil {
		return nil, err
	}
	return &Store{
		Users:    NewUserRepo(db),
		Saves:    NewSaveRepo(db),
		Sessions: NewGameSessionRepo(db),
		Close:    client.Disconnect,
	}, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"saves": {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "updatedAt", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		"game_sessions": {
			{Keys: bson.D{{Key: "difficulty", Value: 1}, {Key: "timeTaken", Value: 1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}
