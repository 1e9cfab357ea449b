package handlers

import (
	"net/http"

	"github.com/wastecollect/waste-dispatch-api/notify"
)

// Realtime upgrades the caller to the websocket channel keyed by their id
type Realtime struct {
	Hub *notify.Hub
}

// WebsocketHandler holds the connection open until the client leaves
func (h Realtime) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOr401(w, r)
	if !ok {
		return
	}
	h.Hub.ServeWS(w, r, actor.ID)
}
