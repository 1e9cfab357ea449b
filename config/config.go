package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/models"
)

// Config holds the project config values
type Config struct {
	URL          string `koanf:"db_uri"`
	DatabaseName string `koanf:"db_name"`
	BaseURL      string `koanf:"base_url"`
	Port         string `koanf:"port"`
	Env          string `koanf:"app_env"`
	JWTSecret    string `koanf:"jwt_secret"`

	MatchRadiusMeters   float64 `koanf:"match_radius_meters"`
	RecentWindowMinutes int     `koanf:"recent_window_minutes"`
	AutoAssignPool      int     `koanf:"auto_assign_pool"`
	DefaultLongitude    float64 `koanf:"default_longitude"`
	DefaultLatitude     float64 `koanf:"default_latitude"`

	WebhookTimeoutSeconds int `koanf:"webhook_timeout_seconds"`
	NotifyRetries         int `koanf:"notify_retries"`
	NotifyWorkers         int `koanf:"notify_workers"`
	NotifyQueueSize       int `koanf:"notify_queue_size"`

	RematchCron string `koanf:"rematch_cron"`

	MQTTBroker      string `koanf:"mqtt_broker"`
	MQTTClientID    string `koanf:"mqtt_client_id"`
	MQTTTopicPrefix string `koanf:"mqtt_topic_prefix"`
	MQTTQoS         int    `koanf:"mqtt_qos"`

	CloudinaryAPISecret    string `koanf:"cloudinary_api_secret"`
	CloudinaryUploadPreset string `koanf:"cloudinary_upload_preset"`

	RequestTimeoutSeconds int `koanf:"request_timeout_seconds"`
}

// Default returns a Config populated with every default value
func Default() *Config {
	return &Config{
		Port:                  "8080",
		Env:                   "local",
		MatchRadiusMeters:     50000,
		RecentWindowMinutes:   60,
		AutoAssignPool:        10,
		DefaultLongitude:      9.7043,
		DefaultLatitude:       4.0511,
		WebhookTimeoutSeconds: 10,
		NotifyRetries:         0,
		NotifyWorkers:         4,
		NotifyQueueSize:       256,
		RematchCron:           "*/5 * * * *",
		MQTTClientID:          "waste-dispatch-api",
		MQTTTopicPrefix:       "waste/events",
		MQTTQoS:               1,
		RequestTimeoutSeconds: 30,
	}
}

// New loads the config from defaults, the optional file at path (or CONFIG_FILE) and
// the environment, in that order, and sets up the global zap logger
func New(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}

	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = kjson.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", path)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	conf := Default()
	if err := k.UnmarshalWithConf("", conf, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	//setup zap logger and replace default logger
	logger, err := setLogger(conf.Env)
	if err != nil {
		return nil, err
	}
	_ = zap.ReplaceGlobals(logger)

	return conf, nil
}

// Validate rejects values the dispatch engine cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.MatchRadiusMeters <= 0 {
		errs = append(errs, errors.New("match_radius_meters must be positive"))
	}
	if c.RecentWindowMinutes <= 0 {
		errs = append(errs, errors.New("recent_window_minutes must be positive"))
	}
	if c.AutoAssignPool <= 0 {
		errs = append(errs, errors.New("auto_assign_pool must be positive"))
	}
	if c.NotifyWorkers <= 0 {
		errs = append(errs, errors.New("notify_workers must be positive"))
	}
	if c.NotifyQueueSize <= 0 {
		errs = append(errs, errors.New("notify_queue_size must be positive"))
	}
	if c.NotifyRetries < 0 {
		errs = append(errs, errors.New("notify_retries must not be negative"))
	}
	if c.WebhookTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("webhook_timeout_seconds must be positive"))
	}
	if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
		errs = append(errs, errors.New("mqtt_qos must be 0, 1 or 2"))
	}
	if !models.NewPoint(c.DefaultLongitude, c.DefaultLatitude).Valid() {
		errs = append(errs, errors.New("default_longitude/default_latitude out of range"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// DefaultPoint is where requests without a location are placed
func (c *Config) DefaultPoint() models.Point {
	return models.NewPoint(c.DefaultLongitude, c.DefaultLatitude)
}

// RecentWindow is how far back a collector's last position still counts for fallback matching
func (c *Config) RecentWindow() time.Duration {
	return time.Duration(c.RecentWindowMinutes) * time.Minute
}

func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ErrorStatus logs the failure and writes the JSON error body with the given status code
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message, "status", httpStatusCode, "error", err)
	body := models.NewErrorResponse(message, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_ = json.NewEncoder(w).Encode(body)
}
