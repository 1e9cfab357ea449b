package databases

// go generate: mockery --name UserDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wastecollect/waste-dispatch-api/models"
)

const userName = "users"

// UserDatabase contains the methods to use with the user database. It doubles as
// the collector location store.
type UserDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.User, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.User, error)
	FindCollectorByID(context.Context, primitive.ObjectID) (*models.User, error)
	FindOnDutyCollectors(context.Context) ([]models.User, error)
	FindRecentCollectors(context.Context, time.Time) ([]models.User, error)
	UpdateCollectorLocation(context.Context, primitive.ObjectID, models.Point, float64, time.Time) error
	SetCollectorDuty(context.Context, primitive.ObjectID, bool) error
}

type userDatabase struct {
	db DatabaseHelper
}

// NewUserDatabase initializes a new instance of user database with the provided db connection
func NewUserDatabase(db DatabaseHelper) UserDatabase {
	return &userDatabase{
		db: db,
	}
}

// collectorFilter matches collectors whichever of role or the legacy userType field carries it
func collectorFilter() bson.M {
	return bson.M{"$or": []bson.M{
		{"user.role": models.RoleCollector},
		{"user.userType": bson.M{"$in": []string{"collector", "Collector"}}},
	}}
}

func (u *userDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.User, error) {
	user := &models.User{}
	err := u.db.Collection(userName).FindOne(ctx, filter, opts...).Decode(&user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error) {
	var users []models.User
	cr, err := u.db.Collection(userName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&users)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (u *userDatabase) FindCollectorByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	filter := collectorFilter()
	filter["_id"] = id
	return u.FindOne(ctx, filter)
}

func (u *userDatabase) FindOnDutyCollectors(ctx context.Context) ([]models.User, error) {
	filter := collectorFilter()
	filter["user.onDuty"] = true
	filter["user.location"] = bson.M{"$exists": true}
	return u.Find(ctx, filter)
}

// FindRecentCollectors returns collectors, on duty or not, whose position was updated at or after since
func (u *userDatabase) FindRecentCollectors(ctx context.Context, since time.Time) ([]models.User, error) {
	filter := collectorFilter()
	filter["user.lastLocationAt"] = bson.M{"$gte": since}
	filter["user.location"] = bson.M{"$exists": true}
	return u.Find(ctx, filter)
}

// UpdateCollectorLocation stores the latest position and marks the collector on duty
func (u *userDatabase) UpdateCollectorLocation(ctx context.Context, id primitive.ObjectID, point models.Point, accuracy float64, at time.Time) error {
	filter := collectorFilter()
	filter["_id"] = id
	update := bson.M{"$set": bson.M{
		"user.location":         point,
		"user.locationAccuracy": accuracy,
		"user.lastLocationAt":   at,
		"user.onDuty":           true,
		"user.updatedAt":        at,
	}}
	res, err := u.db.Collection(userName).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (u *userDatabase) SetCollectorDuty(ctx context.Context, id primitive.ObjectID, onDuty bool) error {
	filter := collectorFilter()
	filter["_id"] = id
	update := bson.M{"$set": bson.M{
		"user.onDuty":    onDuty,
		"user.updatedAt": time.Now(),
	}}
	res, err := u.db.Collection(userName).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
