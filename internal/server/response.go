package server

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes a success payload.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
