package repository

import (
	"codingescape/internal/model"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GameSessionRepo stores finished runs for the leaderboard
type GameSessionRepo interface {
	Create(ctx context.Context, session *model.GameSession) error
	// ListByDifficulty returns sessions fastest first, ties by finish time
	ListByDifficulty(ctx context.Context, difficulty string) ([]*model.GameSession, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type gameSessionRepo struct {
	collection *mongo.Collection
}

func NewGameSessionRepo(db *mongo.Database) GameSessionRepo {
	return &gameSessionRepo{
		collection: db.Collection("game_sessions"),
	}
}

func (r *gameSessionRepo) Create(ctx context.Context, session *model.GameSession) error {
	if session.ID == "" {
		session.ID = primitive.NewObjectID().Hex()
	}
	if session.FinishedAt.IsZero() {
		session.FinishedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, session)
	return err
}

func (r *gameSessionRepo) ListByDifficulty(ctx context.Context, difficulty string) ([]*model.GameSession, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "timeTaken", Value: 1},
		{Key: "finishedAt", Value: 1},
	})
	cursor, err := r.collection.Find(ctx, bson.M{"difficulty": difficulty}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sessions := []*model.GameSession{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *gameSessionRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
