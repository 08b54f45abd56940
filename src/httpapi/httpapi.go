// Package httpapi implements the plain HTTP surface around the
// WebSocket endpoint (spec.md §6, §11.1 supplement), grounded on
// original_source/src/http_api.py and server.py.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
)

// ServerName/ServerVersion mirror original_source's
// SERVER_NAME="SEPIA STT Server V2 BETA" / SERVER_VERSION, renamed for
// this server.
const (
	ServerName    = "sttserve"
	ServerVersion = "0.1.0"
)

// Capabilities describes what GET /settings reports.
type Capabilities struct {
	Engine    string
	Models    []string
	Languages []string
}

// Reloader reloads settings from disk and returns the Capabilities they
// imply, wired to config.Load plus model-list introspection by
// cmd/sttserve/main.go. POST /settings mirrors
// original_source/src/http_api.py's settings-reload endpoint: it never
// touches sessions already in flight, only what a later session reads at
// welcome time (spec.md §5, "Shared-resource policy").
type Reloader func() (Capabilities, error)

// settingsHandler holds the Capabilities GET /settings reports, updated
// in place by a successful POST /settings reload.
type settingsHandler struct {
	mu     sync.RWMutex
	caps   Capabilities
	reload Reloader
}

// RegisterHandlers mounts /ping, /online, and GET+POST /settings on mux.
// reload may be nil, in which case POST /settings reports 501 Not
// Implemented.
func RegisterHandlers(mux *http.ServeMux, caps Capabilities, reload Reloader) {
	h := &settingsHandler{caps: caps, reload: reload}
	mux.HandleFunc("/ping", withCORS(handlePing))
	mux.HandleFunc("/online", withCORS(handleOnline))
	mux.HandleFunc("/settings", withCORS(h.handle))
}

func withCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next(w, r)
	}
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"result":  "success",
		"server":  ServerName,
		"version": ServerVersion,
	})
}

func handleOnline(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *settingsHandler) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		h.handleReload(w, r)
		return
	}
	h.mu.RLock()
	caps := h.caps
	h.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":   ServerVersion,
		"engine":    caps.Engine,
		"models":    caps.Models,
		"languages": caps.Languages,
	})
}

func (h *settingsHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	if h.reload == nil {
		http.Error(w, "settings reload not configured", http.StatusNotImplemented)
		return
	}
	caps, err := h.reload()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"result": "error",
			"error":  err.Error(),
		})
		return
	}
	h.mu.Lock()
	h.caps = caps
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"result":    "success",
		"engine":    caps.Engine,
		"models":    caps.Models,
		"languages": caps.Languages,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
