package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oceanwatch/hazard-monitor/internal/repo"
)

// platformID resolves the platform query parameter; 0 means all.
func (s *Server) platformID(r *http.Request) (uint, error) {
	name := r.URL.Query().Get("platform")
	if name == "" {
		return 0, nil
	}
	platforms, err := repo.ListPlatforms(r.Context(), s.db)
	if err != nil {
		return 0, err
	}
	for _, p := range platforms {
		if strings.EqualFold(p.Name, name) {
			return p.ID, nil
		}
	}
	return 0, fmt.Errorf("unknown platform %q", name)
}

func (s *Server) listPosts(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r, 50, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}
	platformID, err := s.platformID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}

	disasterOnly := false
	if v := r.URL.Query().Get("disaster"); v != "" {
		if disasterOnly, err = strconv.ParseBool(v); err != nil {
			writeError(w, r, http.StatusBadRequest, CodeInvalidInput, "disaster must be a boolean")
			return
		}
	}

	posts, err := repo.ListPosts(r.Context(), s.db, repo.PostFilter{
		PlatformID:   platformID,
		DisasterOnly: disasterOnly,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) listUsage(w http.ResponseWriter, r *http.Request) {
	platformID, err := s.platformID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}
	date := r.URL.Query().Get("date")
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			writeError(w, r, http.StatusBadRequest, CodeInvalidInput, "date must be YYYY-MM-DD")
			return
		}
	}

	rows, err := repo.ListUsage(r.Context(), s.db, platformID, date)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) twitterTrends(w http.ResponseWriter, r *http.Request) {
	if s.twitter == nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "twitter is not configured")
		return
	}
	woeid, err := intParam(r.URL.Query().Get("woeid"), 1)
	if err != nil || woeid < 1 {
		writeError(w, r, http.StatusBadRequest, CodeInvalidInput, "woeid must be a positive integer")
		return
	}

	trends, err := s.twitter.Trends(r.Context(), woeid, s.twitterUsage)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"woeid":  woeid,
		"trends": trends,
	})
}

func (s *Server) instagramStatus(w http.ResponseWriter, r *http.Request) {
	if s.instagram == nil {
		writeError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "instagram is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.instagram.Status(r.Context(), s.instagramUsage))
}
