package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wastecollect/waste-dispatch-api/models"
)

func TestNew(t *testing.T) {
	t.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	t.Setenv("DB_NAME", "test")
	conf, err := New("")
	require.NoError(t, err)

	assert.Equal(t, "mongodb://127.0.0.1:27017", conf.URL)
	assert.Equal(t, "test", conf.DatabaseName)
	assert.Equal(t, 50000.0, conf.MatchRadiusMeters)
	assert.Equal(t, 60*time.Minute, conf.RecentWindow())
	assert.Equal(t, 10, conf.AutoAssignPool)
	assert.Equal(t, 0, conf.NotifyRetries)
}

func TestNewEnvironmentOverrides(t *testing.T) {
	t.Setenv("MATCH_RADIUS_METERS", "1200.5")
	t.Setenv("AUTO_ASSIGN_POOL", "25")
	t.Setenv("NOTIFY_RETRIES", "2")
	conf, err := New("")
	require.NoError(t, err)

	assert.Equal(t, 1200.5, conf.MatchRadiusMeters)
	assert.Equal(t, 25, conf.AutoAssignPool)
	assert.Equal(t, 2, conf.NotifyRetries)
}

func TestNewFromFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	err := os.WriteFile(path, []byte("db_name: fromfile\nrecent_window_minutes: 15\nmqtt_topic_prefix: city/events\n"), 0o600)
	require.NoError(t, err)
	t.Setenv("DB_NAME", "fromenv")

	conf, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "fromenv", conf.DatabaseName)
	assert.Equal(t, 15*time.Minute, conf.RecentWindow())
	assert.Equal(t, "city/events", conf.MQTTTopicPrefix)
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New("dispatch.toml")
	assert.Error(t, err)
}

func TestNewRejectsInvalidValues(t *testing.T) {
	t.Setenv("MATCH_RADIUS_METERS", "0")
	t.Setenv("DEFAULT_LATITUDE", "95")
	_, err := New("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match_radius_meters")
	assert.Contains(t, err.Error(), "default_longitude/default_latitude")
}

func TestDefaultPoint(t *testing.T) {
	p := Default().DefaultPoint()
	assert.Equal(t, 9.7043, p.Longitude())
	assert.Equal(t, 4.0511, p.Latitude())
}

func TestErrorStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	ErrorStatus("error it borked", http.StatusBadRequest, rr, errors.New("bad request"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var body models.ErrorMessageResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "error it borked", body.Response.Message)
	assert.Equal(t, "bad request", body.Response.Error)
}

func TestSetLoggerSetsDevelopmentLogger(t *testing.T) {
	l, err := setLogger("development")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(1))
	assert.False(t, l.Core().Enabled(-1))
}

func TestSetLoggerSetsProductionLogger(t *testing.T) {
	l, err := setLogger("production")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(2))
}

func TestSetLoggerSetsLocalLogger(t *testing.T) {
	l, err := setLogger("local")
	assert.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))
}

func TestSetLoggerRejectsUnknownEnv(t *testing.T) {
	_, err := setLogger("staging-ish")
	assert.Error(t, err)
}
