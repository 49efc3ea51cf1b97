package repository

import (
	"context"
	"time"

	"fleet-safety/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DriverRepository struct {
	collection *mongo.Collection
}

func NewDriverRepository(db *mongo.Database) *DriverRepository {
	return &DriverRepository{
		collection: db.Collection("drivers"),
	}
}

func (r *DriverRepository) Create(ctx context.Context, driver *models.Driver) (*models.Driver, error) {
	id, err := insertOne(ctx, r.collection, driver)
	if err != nil {
		return nil, err
	}
	driver.ID = id
	return driver, nil
}

func (r *DriverRepository) FindByNumber(ctx context.Context, driverNumber string) (*models.Driver, error) {
	return findOne[models.Driver](ctx, r.collection, bson.M{"driver_number": driverNumber})
}

func (r *DriverRepository) FindAll(ctx context.Context) ([]*models.Driver, error) {
	return findMany[models.Driver](ctx, r.collection, bson.M{}, options.Find().SetSort(bson.D{{Key: "driver_number", Value: 1}}))
}

func (r *DriverRepository) UpdateContact(ctx context.Context, driverNumber string, update models.DriverContactUpdate) (*models.Driver, error) {
	set := bson.M{"updated_at": time.Now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}

	qctx, cancel := withTimeout(ctx)
	defer cancel()

	var driver models.Driver
	err := r.collection.FindOneAndUpdate(
		qctx,
		bson.M{"driver_number": driverNumber},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&driver)
	if err != nil {
		return nil, translate(err)
	}
	return &driver, nil
}
