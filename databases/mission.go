package databases

// go generate: mockery --name MissionDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wastecollect/waste-dispatch-api/models"
)

const missionName = "missions"

// MissionDatabase contains the methods to use with the mission database
type MissionDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Mission, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Mission, error)
	FindMissionByID(context.Context, primitive.ObjectID) (*models.Mission, error)
	FindMissionsByOrganization(context.Context, primitive.ObjectID, models.MissionStatus, int, int) ([]models.Mission, error)
	InsertMission(context.Context, *models.Mission) error
	ReplaceMission(context.Context, *models.Mission, int64) (bool, error)
}

type missionDatabase struct {
	db DatabaseHelper
}

// NewMissionDatabase initializes a new instance of mission database with the provided db connection
func NewMissionDatabase(db DatabaseHelper) MissionDatabase {
	return &missionDatabase{
		db: db,
	}
}

func (m *missionDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Mission, error) {
	mission := &models.Mission{}
	err := m.db.Collection(missionName).FindOne(ctx, filter, opts...).Decode(&mission)
	if err != nil {
		return nil, err
	}
	return mission, nil
}

func (m *missionDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Mission, error) {
	var missions []models.Mission
	cr, err := m.db.Collection(missionName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&missions)
	if err != nil {
		return nil, err
	}
	return missions, nil
}

func (m *missionDatabase) FindMissionByID(ctx context.Context, id primitive.ObjectID) (*models.Mission, error) {
	return m.FindOne(ctx, bson.M{"_id": id})
}

// FindMissionsByOrganization pages through an organization's missions, newest first.
// An empty status matches every status.
func (m *missionDatabase) FindMissionsByOrganization(ctx context.Context, orgID primitive.ObjectID, status models.MissionStatus, limit, page int) ([]models.Mission, error) {
	filter := bson.M{"organizationId": orgID}
	if status != "" {
		filter["status"] = status
	}
	return m.Find(ctx, filter, newMongoPaginate(limit, page).getPaginatedOpts())
}

func (m *missionDatabase) InsertMission(ctx context.Context, mission *models.Mission) error {
	_, err := m.db.Collection(missionName).InsertOne(ctx, mission)
	return err
}

// ReplaceMission writes mission only if the stored version still equals expectedVersion.
// It returns false when another writer got there first.
func (m *missionDatabase) ReplaceMission(ctx context.Context, mission *models.Mission, expectedVersion int64) (bool, error) {
	filter := bson.M{"_id": mission.ID, "version": expectedVersion}
	res, err := m.db.Collection(missionName).ReplaceOne(ctx, filter, mission)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}
