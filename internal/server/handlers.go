package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/rate-map/internal/export"
	"github.com/sells-group/rate-map/internal/marker"
	"github.com/sells-group/rate-map/internal/pipeline"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("server: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStartPass(w http.ResponseWriter, r *http.Request) {
	records, err := s.source.FetchRecords(r.Context())
	if err != nil {
		zap.L().Warn("server: fetch records failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to fetch rate records")
		return
	}

	sess := s.startPass(records)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  "accepted",
		"pass_id": sess.pass.ID,
		"records": len(records),
	})
}

type passStatus struct {
	ID      string         `json:"id"`
	Done    bool           `json:"done"`
	Markers int            `json:"markers"`
	Stats   pipeline.Stats `json:"stats"`
}

func (s *Server) handleCurrentPass(w http.ResponseWriter, _ *http.Request) {
	sess := s.session()
	if sess == nil {
		writeError(w, http.StatusNotFound, "no pass has been started")
		return
	}

	done := false
	select {
	case <-sess.pass.Done():
		done = true
	default:
	}
	writeJSON(w, http.StatusOK, passStatus{
		ID:      sess.pass.ID,
		Done:    done,
		Markers: sess.set.Len(),
		Stats:   sess.pass.Stats(),
	})
}

func (s *Server) snapshot() []marker.Marker {
	if sess := s.session(); sess != nil {
		return sess.set.Snapshot()
	}
	return []marker.Marker{}
}

func (s *Server) handleMarkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleMarkersGeoJSON(w http.ResponseWriter, _ *http.Request) {
	data, err := export.GeoJSON(s.snapshot())
	if err != nil {
		zap.L().Error("server: encode geojson", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to encode markers")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleMarkersStream writes the current set as newline-delimited JSON, then
// each marker as it is appended. The response ends when the pass is fully
// drained, a newer pass replaces it, or the client goes away.
func (s *Server) handleMarkersStream(w http.ResponseWriter, r *http.Request) {
	sess := s.session()
	if sess == nil {
		writeError(w, http.StatusNotFound, "no pass has been started")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	from := 0
	for {
		batch, notify := sess.set.Since(from)
		for _, m := range batch {
			if err := enc.Encode(m); err != nil {
				return
			}
		}
		from += len(batch)
		if err := rc.Flush(); err != nil {
			zap.L().Debug("server: flush stream", zap.Error(err))
		}

		select {
		case <-notify:
		case <-sess.drained:
			// Write whatever arrived between Since and the drain finishing.
			rest, _ := sess.set.Since(from)
			for _, m := range rest {
				if err := enc.Encode(m); err != nil {
					return
				}
			}
			_ = rc.Flush()
			return
		case <-sess.replaced:
			return
		case <-r.Context().Done():
			return
		}
	}
}
