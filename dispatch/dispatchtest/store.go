// Package dispatchtest provides in-memory stores and a recording notifier for
// exercising the dispatch engine without MongoDB.
package dispatchtest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wastecollect/waste-dispatch-api/models"
)

// Store keeps users, requests, missions, vehicles and organizations in memory. It
// honors the same conditional write rules as the mongo databases.
type Store struct {
	mu            sync.Mutex
	users         map[primitive.ObjectID]models.User
	requests      map[primitive.ObjectID]models.CollectionRequest
	missions      map[primitive.ObjectID]models.Mission
	vehicles      map[primitive.ObjectID]models.Vehicle
	organizations map[primitive.ObjectID]models.Organization

	staleReplaces int

	// BeforeTransition, when set, runs before each TransitionRequest takes the lock
	BeforeTransition func(primitive.ObjectID)
	// Err, when set, is returned by every read
	Err error
}

func NewStore() *Store {
	return &Store{
		users:         map[primitive.ObjectID]models.User{},
		requests:      map[primitive.ObjectID]models.CollectionRequest{},
		missions:      map[primitive.ObjectID]models.Mission{},
		vehicles:      map[primitive.ObjectID]models.Vehicle{},
		organizations: map[primitive.ObjectID]models.Organization{},
	}
}

// StaleReplaces makes the next n ReplaceMission calls behave as if another writer won
func (s *Store) StaleReplaces(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleReplaces = n
}

func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) AddRequest(r models.CollectionRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = r
}

func (s *Store) AddMission(m models.Mission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions[m.ID] = m.Clone()
}

func (s *Store) AddVehicle(v models.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vehicles[v.ID] = v
}

func (s *Store) AddOrganization(o models.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.organizations[o.ID] = o
}

// Request returns the stored copy of a request
func (s *Store) Request(id primitive.ObjectID) (models.CollectionRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	return r, ok
}

// Mission returns the stored copy of a mission
func (s *Store) Mission(id primitive.ObjectID) (models.Mission, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.missions[id]
	return m.Clone(), ok
}

// User returns the stored copy of a user
func (s *Store) User(id primitive.ObjectID) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *Store) FindCollectorByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.users[id]
	if !ok || !u.IsCollector() {
		return nil, mongo.ErrNoDocuments
	}
	return &u, nil
}

func (s *Store) FindOnDutyCollectors(_ context.Context) ([]models.User, error) {
	return s.collectors(func(u models.User) bool {
		return u.Details.OnDuty && u.Details.Location != nil
	})
}

func (s *Store) FindRecentCollectors(_ context.Context, since time.Time) ([]models.User, error) {
	return s.collectors(func(u models.User) bool {
		return u.Details.Location != nil && u.Details.LastLocationAt != nil && !u.Details.LastLocationAt.Before(since)
	})
}

func (s *Store) collectors(keep func(models.User) bool) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.User
	for _, u := range s.users {
		if u.IsCollector() && keep(u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *Store) UpdateCollectorLocation(_ context.Context, id primitive.ObjectID, point models.Point, accuracy float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || !u.IsCollector() {
		return mongo.ErrNoDocuments
	}
	p := point
	t := at
	u.Details.Location = &p
	u.Details.LocationAccuracy = accuracy
	u.Details.LastLocationAt = &t
	u.Details.OnDuty = true
	u.Details.UpdatedAt = at
	s.users[id] = u
	return nil
}

func (s *Store) SetCollectorDuty(_ context.Context, id primitive.ObjectID, onDuty bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || !u.IsCollector() {
		return mongo.ErrNoDocuments
	}
	u.Details.OnDuty = onDuty
	s.users[id] = u
	return nil
}

func (s *Store) FindRequestByID(_ context.Context, id primitive.ObjectID) (*models.CollectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	r, ok := s.requests[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &r, nil
}

func (s *Store) FindRecentPending(_ context.Context, n int) ([]models.CollectionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.CollectionRequest
	for _, r := range s.requests {
		if r.Status == models.RequestPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *Store) InsertRequest(_ context.Context, r *models.CollectionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[r.ID]; exists {
		return errors.New("duplicate request id")
	}
	s.requests[r.ID] = *r
	return nil
}

func (s *Store) TransitionRequest(_ context.Context, id primitive.ObjectID, change models.RequestChange) (bool, error) {
	if s.BeforeTransition != nil {
		s.BeforeTransition(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return false, mongo.ErrNoDocuments
	}
	if !change.Allows(r.Status) {
		return false, nil
	}
	change.Apply(&r)
	s.requests[id] = r
	return true, nil
}

func (s *Store) FindMissionByID(_ context.Context, id primitive.ObjectID) (*models.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	m, ok := s.missions[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	c := m.Clone()
	return &c, nil
}

func (s *Store) FindMissionsByOrganization(_ context.Context, orgID primitive.ObjectID, status models.MissionStatus, limit, page int) ([]models.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []models.Mission
	for _, m := range s.missions {
		if m.OrganizationID == orgID && (status == "" || m.Status == status) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if page < 1 {
		page = 1
	}
	if limit > 0 {
		start := (page - 1) * limit
		if start >= len(out) {
			return []models.Mission{}, nil
		}
		end := start + limit
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, nil
}

func (s *Store) InsertMission(_ context.Context, m *models.Mission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.missions[m.ID]; exists {
		return errors.New("duplicate mission id")
	}
	s.missions[m.ID] = m.Clone()
	return nil
}

func (s *Store) ReplaceMission(_ context.Context, m *models.Mission, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.missions[m.ID]
	if !ok {
		return false, nil
	}
	if s.staleReplaces > 0 {
		s.staleReplaces--
		return false, nil
	}
	if current.Version != expectedVersion {
		return false, nil
	}
	s.missions[m.ID] = m.Clone()
	return true, nil
}

func (s *Store) FindVehicleByID(_ context.Context, id primitive.ObjectID) (*models.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	v, ok := s.vehicles[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &v, nil
}

func (s *Store) FindOrganizationByID(_ context.Context, id primitive.ObjectID) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	o, ok := s.organizations[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	o.Webhooks = append([]models.WebhookRegistration(nil), o.Webhooks...)
	return &o, nil
}

func (s *Store) UpdateWebhooks(_ context.Context, id primitive.ObjectID, hooks []models.WebhookRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.organizations[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	o.Webhooks = append([]models.WebhookRegistration(nil), hooks...)
	o.UpdatedAt = time.Now()
	s.organizations[id] = o
	return nil
}
