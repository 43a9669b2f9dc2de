package gwapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

// handleListDevices answers GET /devices?tags=a&tags=b, returning every
// device whose tags intersect the repeated tags query parameter (no tags
// given returns every device).
func (api *API) handleListDevices(w http.ResponseWriter, r *http.Request) {
	tags := r.URL.Query()["tags"]
	writeJSON(w, http.StatusOK, api.Inventory.List(tags))
}

type getDeviceResponse struct {
	Host string `json:"host"`
}

// handleGetDevice answers GET /devices/{host}, resolving by host or tag the
// same way the dispatcher does. Only the host is returned, matching spec
// §6's success body {host}.
func (api *API) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	host := mux.Vars(r)["host"]

	dev, err := api.Inventory.Resolve(host)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, getDeviceResponse{Host: dev.Host})
}
