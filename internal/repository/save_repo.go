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

// SaveRepo stores resumable run snapshots
type SaveRepo interface {
	Create(ctx context.Context, save *model.SaveState) error
	GetByID(ctx context.Context, id string) (*model.SaveState, error)
	Update(ctx context.Context, save *model.SaveState) error
	// Latest is the most recently updated save of a user
	Latest(ctx context.Context, userID string) (*model.SaveState, error)
	// ListByUser returns saves newest first by creation time
	ListByUser(ctx context.Context, userID string) ([]*model.SaveState, error)
	DeleteByUser(ctx context.Context, userID string) (int64, error)
}

type saveRepo struct {
	collection *mongo.Collection
}

func NewSaveRepo(db *mongo.Database) SaveRepo {
	return &saveRepo{
		collection: db.Collection("saves"),
	}
}

func (r *saveRepo) Create(ctx context.Context, save *model.SaveState) error {
	if save.ID == "" {
		save.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	save.CreatedAt = now
	save.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, save)
	return err
}

func (r *saveRepo) GetByID(ctx context.Context, id string) (*model.SaveState, error) {
	var save model.SaveState
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&save)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &save, nil
}

func (r *saveRepo) Update(ctx context.Context, save *model.SaveState) error {
	save.UpdatedAt = time.Now().UTC()
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": save.ID}, save)
	return err
}

func (r *saveRepo) Latest(ctx context.Context, userID string) (*model.SaveState, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "updatedAt", Value: -1}})

	var save model.SaveState
	err := r.collection.FindOne(ctx, bson.M{"userId": userID}, opts).Decode(&save)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &save, nil
}

func (r *saveRepo) ListByUser(ctx context.Context, userID string) ([]*model.SaveState, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	saves := []*model.SaveState{}
	if err := cursor.All(ctx, &saves); err != nil {
		return nil, err
	}
	return saves, nil
}

func (r *saveRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
