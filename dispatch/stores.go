package dispatch

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wastecollect/waste-dispatch-api/models"
)

// CollectorStore is the location store: collector positions, duty flags and staleness.
// Lookups of a missing collector return mongo.ErrNoDocuments.
type CollectorStore interface {
	FindCollectorByID(context.Context, primitive.ObjectID) (*models.User, error)
	FindOnDutyCollectors(context.Context) ([]models.User, error)
	FindRecentCollectors(context.Context, time.Time) ([]models.User, error)
	UpdateCollectorLocation(context.Context, primitive.ObjectID, models.Point, float64, time.Time) error
}

// RequestStore persists collection requests. TransitionRequest is a compare-and-set on status.
type RequestStore interface {
	FindRequestByID(context.Context, primitive.ObjectID) (*models.CollectionRequest, error)
	FindRecentPending(context.Context, int) ([]models.CollectionRequest, error)
	InsertRequest(context.Context, *models.CollectionRequest) error
	TransitionRequest(context.Context, primitive.ObjectID, models.RequestChange) (bool, error)
}

// MissionStore persists missions. ReplaceMission only writes when the stored version matches.
type MissionStore interface {
	FindMissionByID(context.Context, primitive.ObjectID) (*models.Mission, error)
	FindMissionsByOrganization(context.Context, primitive.ObjectID, models.MissionStatus, int, int) ([]models.Mission, error)
	InsertMission(context.Context, *models.Mission) error
	ReplaceMission(context.Context, *models.Mission, int64) (bool, error)
}

type VehicleStore interface {
	FindVehicleByID(context.Context, primitive.ObjectID) (*models.Vehicle, error)
}

// Notifier takes a notification off the caller's hands. Publish must not block on delivery.
type Notifier interface {
	Publish(models.Notification)
}

// Stores groups the persistence the engine works against
type Stores struct {
	Requests   RequestStore
	Missions   MissionStore
	Collectors CollectorStore
	Vehicles   VehicleStore
}

type noopNotifier struct{}

func (noopNotifier) Publish(models.Notification) {}

func notifierOrNoop(n Notifier) Notifier {
	if n == nil {
		return noopNotifier{}
	}
	return n
}
