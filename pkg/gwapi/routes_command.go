package gwapi

import (
	"encoding/json"
	"net/http"
)

type commandRequest struct {
	Host    string `json:"host"`
	Command string `json:"command"`
}

type commandResponse struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// handleCommand answers POST /command: resolve, authorize, acquire session,
// execute. A 404 covers both an unknown device and an SSH-level failure
// reaching it; a 403 covers a command the allow-list rejects.
func (api *API) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Detail: "invalid command payload: " + err.Error()})
		return
	}

	stdout, stderr, err := api.Dispatcher.Run(req.Host, req.Command)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Stdout: stdout, Stderr: stderr})
}
