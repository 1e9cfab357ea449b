package databases

// go generate: mockery --name OrganizationDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wastecollect/waste-dispatch-api/models"
)

const organizationName = "organizations"

// OrganizationDatabase contains the methods to use with the organization database
type OrganizationDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Organization, error)
	FindOrganizationByID(context.Context, primitive.ObjectID) (*models.Organization, error)
	UpdateWebhooks(context.Context, primitive.ObjectID, []models.WebhookRegistration) error
}

type organizationDatabase struct {
	db DatabaseHelper
}

// NewOrganizationDatabase initializes a new instance of organization database with the provided db connection
func NewOrganizationDatabase(db DatabaseHelper) OrganizationDatabase {
	return &organizationDatabase{
		db: db,
	}
}

func (o *organizationDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Organization, error) {
	org := &models.Organization{}
	err := o.db.Collection(organizationName).FindOne(ctx, filter, opts...).Decode(&org)
	if err != nil {
		return nil, err
	}
	return org, nil
}

func (o *organizationDatabase) FindOrganizationByID(ctx context.Context, id primitive.ObjectID) (*models.Organization, error) {
	return o.FindOne(ctx, bson.M{"_id": id})
}

func (o *organizationDatabase) UpdateWebhooks(ctx context.Context, id primitive.ObjectID, hooks []models.WebhookRegistration) error {
	if hooks == nil {
		hooks = []models.WebhookRegistration{}
	}
	update := bson.M{"$set": bson.M{
		"webhooks":  hooks,
		"updatedAt": time.Now(),
	}}
	res, err := o.db.Collection(organizationName).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
