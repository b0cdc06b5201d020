package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/relaystack/configrelay/internal/errors"
	"github.com/relaystack/configrelay/internal/middleware"
)

type updateFeaturesRequest struct {
	Features map[string]bool `json:"features"`
}

// handleUpdateFeatures serves POST /api/config/features. The admin gate has
// already passed. Flags are shallow-merged into the live default document:
// new keys added, existing keys overwritten, absent keys untouched. The
// change lives for the process only.
func (s *Server) handleUpdateFeatures(w http.ResponseWriter, r *http.Request) {
	var req updateFeaturesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.handleError(w, r, apierrors.BadRequestf("invalid request body: %v", err))
		return
	}
	if len(req.Features) == 0 {
		s.handleError(w, r, apierrors.BadRequest("features object is required"))
		return
	}

	merged := s.store.UpdateFeatures(req.Features)

	s.logger.Info("feature flags updated",
		slog.Int("changed", len(req.Features)),
		slog.String("platform", middleware.Platform(r.Context())))

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "feature flags updated",
		"features":  merged,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
