package repository

import (
	"context"
	"fmt"
	"time"

	"fleet-safety/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type VehicleRepository struct {
	collection *mongo.Collection
}

func NewVehicleRepository(db *mongo.Database) *VehicleRepository {
	return &VehicleRepository{
		collection: db.Collection("vehicles"),
	}
}

func (r *VehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) (*models.Vehicle, error) {
	id, err := insertOne(ctx, r.collection, vehicle)
	if err != nil {
		return nil, err
	}
	vehicle.ID = id
	return vehicle, nil
}

func (r *VehicleRepository) FindByNumber(ctx context.Context, vehicleNumber string) (*models.Vehicle, error) {
	return findOne[models.Vehicle](ctx, r.collection, bson.M{"vehicle_number": vehicleNumber})
}

func (r *VehicleRepository) FindAll(ctx context.Context) ([]*models.Vehicle, error) {
	return findMany[models.Vehicle](ctx, r.collection, bson.M{}, options.Find().SetSort(bson.D{{Key: "vehicle_number", Value: 1}}))
}

func (r *VehicleRepository) UpdateTelemetry(ctx context.Context, vehicleNumber string, update models.VehicleTelemetryUpdate) (*models.Vehicle, error) {
	set := bson.M{"updated_at": time.Now()}
	if update.CurrentFuel != nil {
		set["current_fuel"] = *update.CurrentFuel
	}
	if update.CurrentMileage != nil {
		set["current_mileage"] = *update.CurrentMileage
	}

	qctx, cancel := withTimeout(ctx)
	defer cancel()

	var vehicle models.Vehicle
	err := r.collection.FindOneAndUpdate(
		qctx,
		bson.M{"vehicle_number": vehicleNumber},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&vehicle)
	if err != nil {
		return nil, translate(err)
	}
	return &vehicle, nil
}

func locationSet(fix models.LocationFix) bson.M {
	return bson.M{
		"last_location":    fix.Location,
		"last_location_at": fix.ReportedAt,
		"updated_at":       time.Now(),
	}
}

// UpdateLastLocation stores a single fix. Older fixes never overwrite newer
// ones and fixes for unknown vehicles are ignored.
func (r *VehicleRepository) UpdateLastLocation(ctx context.Context, fix models.LocationFix) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := r.collection.UpdateOne(ctx, staleFilter(fix), bson.M{"$set": locationSet(fix)}); err != nil {
		return fmt.Errorf("failed to update location for vehicle %s: %w", fix.VehicleNumber, err)
	}
	return nil
}

// UpdateLastLocations applies one fix per vehicle in a single bulk write.
func (r *VehicleRepository) UpdateLastLocations(ctx context.Context, fixes map[string]models.LocationFix) error {
	if len(fixes) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	operations := make([]mongo.WriteModel, 0, len(fixes))
	for _, fix := range fixes {
		operations = append(operations, mongo.NewUpdateOneModel().
			SetFilter(staleFilter(fix)).
			SetUpdate(bson.M{"$set": locationSet(fix)}).
			SetUpsert(false))
	}

	if _, err := r.collection.BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("bulk location write failed: %w", err)
	}
	return nil
}

func staleFilter(fix models.LocationFix) bson.M {
	return bson.M{
		"vehicle_number": fix.VehicleNumber,
		"$or": bson.A{
			bson.M{"last_location_at": bson.M{"$exists": false}},
			bson.M{"last_location_at": bson.M{"$lte": fix.ReportedAt}},
		},
	}
}
