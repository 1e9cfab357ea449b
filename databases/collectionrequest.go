package databases

// go generate: mockery --name CollectionRequestDatabase

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wastecollect/waste-dispatch-api/models"
)

const collectionRequestName = "collectionrequests"

// CollectionRequestDatabase contains the methods to use with the collection request database
type CollectionRequestDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.CollectionRequest, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.CollectionRequest, error)
	FindRequestByID(context.Context, primitive.ObjectID) (*models.CollectionRequest, error)
	FindRecentPending(context.Context, int) ([]models.CollectionRequest, error)
	InsertRequest(context.Context, *models.CollectionRequest) error
	TransitionRequest(context.Context, primitive.ObjectID, models.RequestChange) (bool, error)
}

type collectionRequestDatabase struct {
	db DatabaseHelper
}

// NewCollectionRequestDatabase initializes a new instance of collection request database with the provided db connection
func NewCollectionRequestDatabase(db DatabaseHelper) CollectionRequestDatabase {
	return &collectionRequestDatabase{
		db: db,
	}
}

func (c *collectionRequestDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.CollectionRequest, error) {
	req := &models.CollectionRequest{}
	err := c.db.Collection(collectionRequestName).FindOne(ctx, filter, opts...).Decode(&req)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (c *collectionRequestDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.CollectionRequest, error) {
	var reqs []models.CollectionRequest
	cr, err := c.db.Collection(collectionRequestName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&reqs)
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (c *collectionRequestDatabase) FindRequestByID(ctx context.Context, id primitive.ObjectID) (*models.CollectionRequest, error) {
	return c.FindOne(ctx, bson.M{"_id": id})
}

// FindRecentPending returns the n most recently created pending requests
func (c *collectionRequestDatabase) FindRecentPending(ctx context.Context, n int) ([]models.CollectionRequest, error) {
	return c.Find(ctx, bson.M{"status": models.RequestPending}, newestFirst(n))
}

func (c *collectionRequestDatabase) InsertRequest(ctx context.Context, req *models.CollectionRequest) error {
	_, err := c.db.Collection(collectionRequestName).InsertOne(ctx, req)
	return err
}

// TransitionRequest applies change only while the stored status is still one of change.From.
// It returns false when the request exists but the condition did not hold, and
// mongo.ErrNoDocuments when there is no request with that id.
func (c *collectionRequestDatabase) TransitionRequest(ctx context.Context, id primitive.ObjectID, change models.RequestChange) (bool, error) {
	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": change.From},
	}
	res, err := c.db.Collection(collectionRequestName).UpdateOne(ctx, filter, requestChangeUpdate(change))
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	// tell a lost race apart from a missing document
	if _, err := c.FindRequestByID(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func requestChangeUpdate(change models.RequestChange) bson.M {
	set := bson.M{
		"status":    change.To,
		"updatedAt": change.At,
	}
	if change.AssignedCollector != nil {
		set["assignedCollector"] = *change.AssignedCollector
	}
	if change.Proof != nil {
		set["proof"] = change.Proof
	}
	if change.CancellationReason != "" {
		set["cancellationReason"] = change.CancellationReason
	}
	switch change.To {
	case models.RequestScheduled:
		set["scheduledAt"] = change.At
	case models.RequestInProgress:
		set["startedAt"] = change.At
	case models.RequestCompleted:
		set["completedAt"] = change.At
	case models.RequestCancelled:
		set["cancelledAt"] = change.At
	}
	update := bson.M{"$set": set}
	if change.ClearCollector {
		update["$unset"] = bson.M{"assignedCollector": ""}
	}
	return update
}

// IsNotFound reports whether err means no document matched
func IsNotFound(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
