// Package gwapi exposes the gateway's dispatcher and inventory over HTTP,
// routed with gorilla/mux, matching the route table documented for the
// gateway's REST surface.
package gwapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ale/aos-ssh-gateway/pkg/dispatch"
	"github.com/ale/aos-ssh-gateway/pkg/gwerr"
	"github.com/ale/aos-ssh-gateway/pkg/inventory"
	"github.com/gorilla/mux"
)

// API bundles the handlers' dependencies.
type API struct {
	Dispatcher *dispatch.Dispatcher
	Inventory  *inventory.Inventory
}

// NewRouter builds the gateway's mux.Router over disp and inv.
func NewRouter(disp *dispatch.Dispatcher, inv *inventory.Inventory) *mux.Router {
	api := &API{Dispatcher: disp, Inventory: inv}

	r := mux.NewRouter()
	r.HandleFunc("/", api.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/health", api.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/favicon.ico", api.handleFavicon).Methods(http.MethodGet)
	r.HandleFunc("/devices", api.handleListDevices).Methods(http.MethodGet)
	r.HandleFunc("/devices/{host}", api.handleGetDevice).Methods(http.MethodGet)
	r.HandleFunc("/management/devices", api.handleUpsertDevice).Methods(http.MethodPost)
	r.HandleFunc("/management/devices/{host}", api.handleDeleteDevice).Methods(http.MethodDelete)
	r.HandleFunc("/command", api.handleCommand).Methods(http.MethodPost)
	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Detail string `json:"detail"`
}

// writeError maps a *gwerr.GatewayError to the HTTP status documented in
// SPEC_FULL.md A.2: NotFound -> 404, Forbidden -> 403, every other kind
// (auth/network/ssh-protocol/session-missing failures encountered while
// reaching a device) -> 404, since from the caller's side an unreachable
// device and an unknown one are indistinguishable. ConfigError never
// reaches this path; it only occurs at startup.
func writeError(w http.ResponseWriter, err error) {
	var gerr *gwerr.GatewayError
	if !errors.As(err, &gerr) {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: err.Error()})
		return
	}

	status := http.StatusNotFound
	switch {
	case errors.Is(gerr.Kind, gwerr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(gerr.Kind, gwerr.ErrNotFound),
		errors.Is(gerr.Kind, gwerr.ErrAuth),
		errors.Is(gerr.Kind, gwerr.ErrNetwork),
		errors.Is(gerr.Kind, gwerr.ErrSSHProtocol),
		errors.Is(gerr.Kind, gwerr.ErrSessionMissing):
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorBody{Detail: gerr.Error()})
}
