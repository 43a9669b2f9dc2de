package gwapi

import "net/http"

type rootResponse struct {
	AosSSHAPI string `json:"aos ssh api"`
}

func (api *API) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rootResponse{AosSSHAPI: "1.0.0"})
}

type healthResponse struct {
	Status string `json:"status"`
}

func (api *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
}

// handleFavicon answers browser favicon probes with a bare 204, matching the
// original FastAPI service's behavior when the API is hit directly.
func (api *API) handleFavicon(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
