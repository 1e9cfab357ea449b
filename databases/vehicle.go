package databases

// go generate: mockery --name VehicleDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wastecollect/waste-dispatch-api/models"
)

const vehicleName = "vehicles"

// VehicleDatabase contains the methods to use with the vehicle database
type VehicleDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Vehicle, error)
	FindVehicleByID(context.Context, primitive.ObjectID) (*models.Vehicle, error)
}

type vehicleDatabase struct {
	db DatabaseHelper
}

// NewVehicleDatabase initializes a new instance of vehicle database with the provided db connection
func NewVehicleDatabase(db DatabaseHelper) VehicleDatabase {
	return &vehicleDatabase{
		db: db,
	}
}

func (v *vehicleDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Vehicle, error) {
	vehicle := &models.Vehicle{}
	err := v.db.Collection(vehicleName).FindOne(ctx, filter, opts...).Decode(&vehicle)
	if err != nil {
		return nil, err
	}
	return vehicle, nil
}

func (v *vehicleDatabase) FindVehicleByID(ctx context.Context, id primitive.ObjectID) (*models.Vehicle, error) {
	return v.FindOne(ctx, bson.M{"_id": id})
}
