package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/api"
	"github.com/wastecollect/waste-dispatch-api/config"
	"github.com/wastecollect/waste-dispatch-api/databases"
	"github.com/wastecollect/waste-dispatch-api/dispatch"
	"github.com/wastecollect/waste-dispatch-api/metrics"
	"github.com/wastecollect/waste-dispatch-api/notify"
)

// Backends is the persistence the services run against
type Backends struct {
	Stores        dispatch.Stores
	Duty          DutyStore
	Organizations WebhookStore
}

// MongoBackends builds every backend on top of the mongo database helper
func MongoBackends(db databases.DatabaseHelper) Backends {
	users := databases.NewUserDatabase(db)
	return Backends{
		Stores: dispatch.Stores{
			Requests:   databases.NewCollectionRequestDatabase(db),
			Missions:   databases.NewMissionDatabase(db),
			Collectors: users,
			Vehicles:   databases.NewVehicleDatabase(db),
		},
		Duty:          users,
		Organizations: databases.NewOrganizationDatabase(db),
	}
}

// Services holds everything the routes dispatch to
type Services struct {
	Requests      *dispatch.RequestService
	Missions      *dispatch.MissionService
	AutoAssign    *dispatch.AutoAssigner
	Duty          DutyStore
	Organizations WebhookStore
	Hub           *notify.Hub
	Metrics       *metrics.Recorder
	Gatherer      prometheus.Gatherer
}

// NewServices wires the dispatch engine. notifier, hub and rec may be nil.
func NewServices(conf *config.Config, b Backends, notifier dispatch.Notifier, hub *notify.Hub, rec *metrics.Recorder) Services {
	matcher := dispatch.NewMatcher(b.Stores.Collectors, conf.RecentWindow())
	requests := dispatch.NewRequestService(b.Stores, matcher, notifier, rec, dispatch.RequestOptions{
		DefaultPoint: conf.DefaultPoint(),
		RadiusMeters: conf.MatchRadiusMeters,
	})
	if hub == nil {
		hub = notify.NewHub(rec)
	}
	return Services{
		Requests:      requests,
		Missions:      dispatch.NewMissionService(b.Stores, notifier, rec),
		AutoAssign:    dispatch.NewAutoAssigner(b.Stores, requests, conf.AutoAssignPool),
		Duty:          b.Duty,
		Organizations: b.Organizations,
		Hub:           hub,
		Metrics:       rec,
		Gatherer:      prometheus.DefaultGatherer,
	}
}

// App stores the router, services and connections, so they can be reused
type App struct {
	Router   *mux.Router
	Config   config.Config
	Services Services
	Auth     *api.Authenticator

	client   databases.ClientHelper
	dbHelper databases.DatabaseHelper
	fanout   *notify.Fanout
	mirror   *notify.MQTTBridge
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	if a.Auth == nil {
		a.Auth = api.NewAuthenticator(a.Config.JWTSecret)
	}

	req := Request{Service: a.Services.Requests}
	m := Mission{Service: a.Services.Missions}
	c := Collector{AutoAssign: a.Services.AutoAssign, DB: a.Services.Duty}
	org := Organization{DB: a.Services.Organizations}
	rt := Realtime{Hub: a.Services.Hub}
	cloudinaryHandler := CloudinaryHandler{
		APISecret:    a.Config.CloudinaryAPISecret,
		UploadPreset: a.Config.CloudinaryUploadPreset,
	}

	r := mux.NewRouter()
	r.Use(api.MetricsMiddleware(a.Services.Metrics))

	// healthchex
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	r.Handle("/metrics", api.MetricsHandler(a.Services.Gatherer)).Methods("GET")
	r.Handle("/ws", api.QueryToken(a.Auth.Middleware(http.HandlerFunc(rt.WebsocketHandler)))).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(a.Auth.Middleware, api.TimeoutMiddleware(a.Config.RequestTimeout()))

	v1.HandleFunc("/request", req.CreateRequestHandler).Methods("POST")
	v1.HandleFunc("/request/{request_id}", req.RequestByIDHandler).Methods("GET")
	v1.HandleFunc("/request/{request_id}/start", req.StartRequestHandler).Methods("POST")
	v1.HandleFunc("/request/{request_id}/complete", req.CompleteRequestHandler).Methods("POST")
	v1.HandleFunc("/request/{request_id}/cancel", req.CancelRequestHandler).Methods("POST")
	v1.HandleFunc("/request/{request_id}/match", req.MatchRequestHandler).Methods("POST")

	v1.HandleFunc("/mission", m.CreateMissionHandler).Methods("POST")
	v1.HandleFunc("/mission/{mission_id}", m.MissionByIDHandler).Methods("GET")
	v1.HandleFunc("/mission/{mission_id}/status", m.UpdateMissionStatusHandler).Methods("PATCH")
	v1.HandleFunc("/mission/{mission_id}/assign", m.AssignMissionHandler).Methods("POST")

	v1.HandleFunc("/organization/{organization_id}/missions", m.MissionsByOrganizationHandler).Methods("GET")
	v1.HandleFunc("/organization/{organization_id}/webhooks", org.UpdateWebhooksHandler).Methods("PUT")

	v1.HandleFunc("/collector/location", c.UpdateLocationHandler).Methods("POST")
	v1.HandleFunc("/collector/duty", c.UpdateDutyHandler).Methods("POST")

	v1.HandleFunc("/proofs/upload-signature", cloudinaryHandler.GenerateSignature).Methods("POST")

	return r
}

// Initialize is invoked by the serve command to connect with the database, start the
// notification workers and create a router
func (a *App) Initialize() error {
	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	a.client = client
	a.dbHelper = databases.NewDatabase(&a.Config, client)
	zap.S().Info("waste-dispatch-api has connected to the database")

	rec, err := metrics.NewRecorder(nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	backends := MongoBackends(a.dbHelper)
	hub := notify.NewHub(rec)

	var mirror notify.EventMirror
	if a.Config.MQTTBroker != "" {
		bridge, err := notify.NewMQTTBridge(notify.MQTTConfig{
			Broker:      a.Config.MQTTBroker,
			ClientID:    a.Config.MQTTClientID,
			TopicPrefix: a.Config.MQTTTopicPrefix,
			QoS:         byte(a.Config.MQTTQoS),
		})
		if err != nil {
			// the mirror is optional; dispatch keeps working without it
			zap.S().Errorw("mqtt event mirror disabled", "broker", a.Config.MQTTBroker, "error", err)
		} else {
			a.mirror = bridge
			mirror = bridge
		}
	}

	webhooks := notify.NewWebhookSender(a.Config.WebhookTimeout(), a.Config.NotifyRetries)
	a.fanout = notify.NewFanout(notify.FanoutOptions{
		Workers:         a.Config.NotifyWorkers,
		QueueSize:       a.Config.NotifyQueueSize,
		DeliveryTimeout: a.Config.WebhookTimeout() * time.Duration(a.Config.NotifyRetries+2),
	}, hub, webhooks, mirror, backends.Organizations, rec)
	a.fanout.Start()

	a.Services = NewServices(&a.Config, backends, a.fanout, hub, rec)
	a.initializeRoutes()
	return nil
}

// Database returns the connected database helper
func (a *App) Database() databases.DatabaseHelper {
	return a.dbHelper
}

// Close disconnects websocket clients, drains pending notifications and closes connections
func (a *App) Close(ctx context.Context) {
	if a.Services.Hub != nil {
		a.Services.Hub.Close()
	}
	if a.fanout != nil {
		a.fanout.Close()
	}
	if a.mirror != nil {
		a.mirror.Close()
	}
	if a.client != nil {
		if err := a.client.Disconnect(ctx); err != nil {
			zap.S().Errorw("failed to disconnect from database", "error", err)
		}
	}
}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}
