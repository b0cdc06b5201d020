package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/relaystack/configrelay/internal/store"
)

// configCacheMaxAge is the client-side cache window for config responses.
const configCacheMaxAge = 300

// ResponseMetadata decorates every config response with per-request context.
type ResponseMetadata struct {
	Timestamp     string `json:"timestamp"`
	RequestID     string `json:"requestId"`
	ServerVersion string `json:"serverVersion"`
	Environment   string `json:"environment"`
	APIVersion    string `json:"apiVersion,omitempty"`
}

// ConfigResponse is the full body served by the config endpoints.
type ConfigResponse struct {
	store.Document
	Metadata ResponseMetadata `json:"_metadata"`
}

// handleConfig serves GET /api/config and its versioned/environment variants.
// The resolver never errors; an unknown version or environment degrades to the
// default document.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	version := chi.URLParam(r, "version")
	environment := chi.URLParam(r, "environment")

	doc := s.store.Resolve(version, environment)

	resp := ConfigResponse{
		Document: doc,
		Metadata: ResponseMetadata{
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			RequestID:     newRequestID(),
			ServerVersion: s.cfg.ServerVersion,
			Environment:   s.cfg.Environment,
			APIVersion:    version,
		},
	}

	// The ETag covers the document only, so it stays stable across requests
	// and the per-request metadata does not defeat caching.
	raw, err := json.Marshal(doc)
	if err != nil {
		s.handleError(w, r, err)
		return
	}
	etag := `"` + base64.StdEncoding.EncodeToString(raw) + `"`

	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", configCacheMaxAge))
	w.Header().Set("ETag", etag)

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleConfigVersion serves GET /api/config/version with a checksum clients
// can poll to detect configuration drift without downloading the document.
func (s *Server) handleConfigVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":   s.store.DefaultVersion(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checksum":  s.store.Checksum(),
	})
}

// newRequestID builds a unique, human-debuggable id. Not a security token.
func newRequestID() string {
	return fmt.Sprintf("req-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
