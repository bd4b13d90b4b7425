package api

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oceanwatch/hazard-monitor/internal/models"
	"github.com/oceanwatch/hazard-monitor/internal/storage"
)

// triggerIngest starts an ingestion run in the background. Only officials
// and analysts may trigger runs.
func (s *Server) triggerIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "ingestion is not configured")
		return
	}

	role, err := s.profiles.Role(r.Context(), UserID(r.Context()))
	if err != nil {
		fail(w, r, err)
		return
	}
	if role != models.RoleOfficial && role != models.RoleAnalyst {
		writeError(w, r, http.StatusForbidden, CodeForbidden, "only officials and analysts may trigger ingestion")
		return
	}

	// An empty target runs every platform.
	platforms := s.ingest.Platforms()
	target := ""
	if name := strings.TrimSpace(r.URL.Query().Get("platform")); name != "" {
		for _, p := range platforms {
			if strings.EqualFold(p, name) {
				target = p
			}
		}
		if target == "" {
			writeError(w, r, http.StatusBadRequest, CodeInvalidInput, "unknown platform "+name)
			return
		}
		platforms = []string{target}
	}
	for _, p := range platforms {
		if s.ingest.IsRunning(p) {
			writeError(w, r, http.StatusConflict, CodeConflict, "ingestion already running for "+p)
			return
		}
	}

	requestID := RequestID(r.Context())
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		if target == "" {
			s.ingest.RunAll(s.baseCtx)
			return
		}
		if _, err := s.ingest.Run(s.baseCtx, target); err != nil {
			logrus.WithFields(logrus.Fields{"request_id": requestID, "platform": target}).
				Errorf("Manual ingestion trigger failed: %v", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message":   "Ingestion triggered",
		"platforms": platforms,
	})
}

func (s *Server) ingestStatus(w http.ResponseWriter, r *http.Request) {
	if s.ingest == nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "ingestion is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.ingest.Status())
}

func (s *Server) listArchives(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "archive is not configured")
		return
	}

	prefix := "ingest/"
	if platform := r.URL.Query().Get("platform"); platform != "" {
		prefix = storage.SnapshotPrefix(platform)
	}
	names, err := s.archive.List(r.Context(), prefix)
	if err != nil {
		fail(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"archives": names})
}

// Wait blocks until runs started by triggerIngest have finished.
func (s *Server) Wait() {
	s.bg.Wait()
}
