package repository

import (
	"context"
	"time"

	"fleet-safety/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ManagerRepository struct {
	collection *mongo.Collection
}

func NewManagerRepository(db *mongo.Database) *ManagerRepository {
	return &ManagerRepository{
		collection: db.Collection("managers"),
	}
}

func (r *ManagerRepository) Create(ctx context.Context, manager *models.Manager) (*models.Manager, error) {
	id, err := insertOne(ctx, r.collection, manager)
	if err != nil {
		return nil, err
	}
	manager.ID = id
	return manager, nil
}

func (r *ManagerRepository) FindByID(ctx context.Context, id string) (*models.Manager, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return findOne[models.Manager](ctx, r.collection, bson.M{"_id": oid})
}

func (r *ManagerRepository) FindByUsername(ctx context.Context, username string) (*models.Manager, error) {
	return findOne[models.Manager](ctx, r.collection, bson.M{"username": username})
}

func (r *ManagerRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"last_login": at, "updated_at": at}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
