package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/wastecollect/waste-dispatch-api/api"
	"github.com/wastecollect/waste-dispatch-api/config"
	"github.com/wastecollect/waste-dispatch-api/databases"
	"github.com/wastecollect/waste-dispatch-api/dispatch"
	"github.com/wastecollect/waste-dispatch-api/models"
)

var knownEvents = map[string]bool{
	"*":                              true,
	models.EventMissionCreated:       true,
	models.EventMissionAssigned:      true,
	models.EventMissionStatusChanged: true,
	models.EventRequestAssigned:      true,
	models.EventRequestStatusChanged: true,
}

// WebhookStore reads and replaces an organization's webhook registrations
type WebhookStore interface {
	FindOrganizationByID(context.Context, primitive.ObjectID) (*models.Organization, error)
	UpdateWebhooks(context.Context, primitive.ObjectID, []models.WebhookRegistration) error
}

// Organization exposes organization administration
type Organization struct {
	DB WebhookStore
}

// WebhooksBody replaces the full webhook list of an organization
type WebhooksBody struct {
	Webhooks []models.WebhookRegistration `json:"webhooks"`
}

// UpdateWebhooksHandler replaces an organization's webhooks. A registration sent without a
// secret keeps the secret already stored for the same url. Secrets are never returned.
func (h Organization) UpdateWebhooksHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	orgID, ok := pathID(w, r, "organization_id")
	if !ok {
		return
	}
	if !actor.CanAdministerOrganization(orgID.Hex()) {
		config.ErrorStatus("only organization admins may manage webhooks", http.StatusForbidden, w, dispatch.ErrForbidden)
		return
	}
	var in WebhooksBody
	if err := decodeBody(r, &in); err != nil {
		config.ErrorStatus("failed to decode webhooks", http.StatusBadRequest, w, err)
		return
	}
	if err := validateWebhooks(in.Webhooks); err != nil {
		config.ErrorStatus("invalid webhooks", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context(), 0)
	defer cancel()
	org, err := h.DB.FindOrganizationByID(ctx, orgID)
	if err != nil {
		if databases.IsNotFound(err) {
			config.ErrorStatus("organization not found", http.StatusNotFound, w, err)
			return
		}
		config.ErrorStatus("failed to get organization", http.StatusInternalServerError, w, err)
		return
	}

	previous := make(map[string]string, len(org.Webhooks))
	for _, hook := range org.Webhooks {
		previous[hook.URL] = hook.Secret
	}
	hooks := make([]models.WebhookRegistration, 0, len(in.Webhooks))
	for _, hook := range in.Webhooks {
		if hook.Secret == "" {
			hook.Secret = previous[hook.URL]
		}
		hooks = append(hooks, hook)
	}

	if err := h.DB.UpdateWebhooks(ctx, orgID, hooks); err != nil {
		config.ErrorStatus("failed to update webhooks", http.StatusInternalServerError, w, err)
		return
	}
	zap.S().Infow("webhooks updated", "organizationId", orgID.Hex(), "count", len(hooks), "actorId", actor.ID)

	out := WebhooksBody{Webhooks: make([]models.WebhookRegistration, 0, len(hooks))}
	for _, hook := range hooks {
		out.Webhooks = append(out.Webhooks, hook.Redacted())
	}
	writeJSON(w, http.StatusOK, out)
}

func validateWebhooks(hooks []models.WebhookRegistration) error {
	seen := make(map[string]bool, len(hooks))
	for i, hook := range hooks {
		u, err := url.ParseRequestURI(hook.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhooks[%d]: url must be an absolute http(s) url", i)
		}
		if seen[hook.URL] {
			return fmt.Errorf("webhooks[%d]: duplicate url %s", i, hook.URL)
		}
		seen[hook.URL] = true
		if len(hook.Events) == 0 {
			return fmt.Errorf("webhooks[%d]: at least one event is required", i)
		}
		for _, e := range hook.Events {
			if !knownEvents[e] {
				return fmt.Errorf("webhooks[%d]: unknown event %q, expected one of %s", i, e, strings.Join(eventNames(), ", "))
			}
		}
	}
	return nil
}

func eventNames() []string {
	return []string{
		models.EventMissionCreated,
		models.EventMissionAssigned,
		models.EventMissionStatusChanged,
		models.EventRequestAssigned,
		models.EventRequestStatusChanged,
		"*",
	}
}
