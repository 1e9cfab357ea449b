package databases_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wastecollect/waste-dispatch-api/config"
	"github.com/wastecollect/waste-dispatch-api/databases"
	"github.com/wastecollect/waste-dispatch-api/databases/mocks"
	"github.com/wastecollect/waste-dispatch-api/models"
)

func TestNewUserDatabase(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf, err := config.New("")
	assert.NoError(t, err)

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	userDB := databases.NewUserDatabase(db)

	assert.NotEmpty(t, userDB)
}

func TestUserDatabase_UpdateCollectorLocation(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	id := primitive.NewObjectID()
	at := time.Now()
	point := models.NewPoint(9.70, 4.05)

	collectionHelper.On("UpdateOne", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
		return filter["_id"] == id && filter["$or"] != nil
	}), mock.MatchedBy(func(update bson.M) bool {
		set := update["$set"].(bson.M)
		return set["user.onDuty"] == true && set["user.lastLocationAt"] == at && set["user.locationAccuracy"] == 12.5
	})).Return(&mongo.UpdateResult{MatchedCount: 1}, nil)
	dbHelper.On("Collection", "users").Return(collectionHelper)

	userDB := databases.NewUserDatabase(dbHelper)
	err := userDB.UpdateCollectorLocation(context.Background(), id, point, 12.5, at)

	assert.NoError(t, err)
}

func TestUserDatabase_UpdateCollectorLocationUnknownCollector(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)
	dbHelper.On("Collection", "users").Return(collectionHelper)

	userDB := databases.NewUserDatabase(dbHelper)
	err := userDB.UpdateCollectorLocation(context.Background(), primitive.NewObjectID(), models.NewPoint(1, 1), 5, time.Now())

	assert.True(t, databases.IsNotFound(err))
}

func TestUserDatabase_FindOnDutyCollectors(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	cursor := &mocks.CursorHelper{}

	cursor.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.User)
		*arg = []models.User{{ID: primitive.NewObjectID(), Details: models.UserDetails{Role: "collector", OnDuty: true}}}
	})
	collectionHelper.On("Find", mock.Anything, mock.MatchedBy(func(filter bson.M) bool {
		return filter["user.onDuty"] == true
	})).Return(cursor, nil)
	dbHelper.On("Collection", "users").Return(collectionHelper)

	userDB := databases.NewUserDatabase(dbHelper)
	users, err := userDB.FindOnDutyCollectors(context.Background())

	assert.NoError(t, err)
	assert.Len(t, users, 1)
	assert.True(t, users[0].IsCollector())
}
