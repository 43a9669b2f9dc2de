package gwapi

import (
	"encoding/json"
	"net/http"

	"github.com/ale/aos-ssh-gateway/pkg/inventory"
	"github.com/gorilla/mux"
)

type upsertResponse struct {
	Status string           `json:"status"`
	Device inventory.Device `json:"device"`
}

// handleUpsertDevice answers POST /management/devices, creating or replacing
// a device entry by host and rewriting the inventory file atomically. The
// echoed device never carries the password or key path back to the caller
// (spec §7: "no secrets ... appear in responses"), even though the caller
// just supplied them.
func (api *API) handleUpsertDevice(w http.ResponseWriter, r *http.Request) {
	var dev inventory.Device
	if err := json.NewDecoder(r.Body).Decode(&dev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid device payload: " + err.Error()})
		return
	}

	if err := api.Inventory.Upsert(dev); err != nil {
		writeError(w, err)
		return
	}

	echoed := dev
	echoed.Password = ""
	echoed.KeyPath = ""
	writeJSON(w, http.StatusOK, upsertResponse{Status: "success", Device: echoed})
}

type deleteResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleDeleteDevice answers DELETE /management/devices/{host}. Any live SSH
// session for the removed device is left for the idle reaper to close; the
// deletion itself only rewrites the inventory file.
func (api *API) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	host := mux.Vars(r)["host"]

	if err := api.Inventory.Delete(host); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Status: "success", Message: "device " + host + " removed"})
}
