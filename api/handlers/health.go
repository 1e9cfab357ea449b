package handlers

import (
	"net/http"

	"github.com/wastecollect/waste-dispatch-api/models"
)

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthCheckResponse{Alive: true})
}
