package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/oceanwatch/hazard-monitor/internal/hazards"
	"github.com/oceanwatch/hazard-monitor/internal/models"
	"github.com/oceanwatch/hazard-monitor/internal/repo"
)

type reportUpdate func(ctx context.Context, callerID, id uint, in hazards.ReportInput) (*models.HazardReport, error)

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r, 50, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}

	f := repo.ReportFilter{Limit: limit, Offset: offset}
	q := r.URL.Query()
	if status := strings.ToLower(q.Get("status")); status != "" {
		if status != models.StatusUnverified && status != models.StatusVerified {
			writeError(w, r, http.StatusBadRequest, CodeInvalidInput, "status must be unverified or verified")
			return
		}
		f.Status = status
	}
	if user := q.Get("user"); user != "" {
		id, ok := pathID(user)
		if !ok {
			writeError(w, r, http.StatusBadRequest, CodeInvalidInput, "user must be a positive integer")
			return
		}
		f.UserID = id
	}

	reports, err := s.reports.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	var in hazards.ReportInput
	if !decode(w, r, &in) {
		return
	}
	report, err := s.reports.Create(r.Context(), UserID(r.Context()), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(mux.Vars(r)["id"])
	if !ok {
		fail(w, r, hazards.ErrNotFound)
		return
	}
	report, err := s.reports.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) replaceReport(w http.ResponseWriter, r *http.Request) {
	s.updateReport(w, r, s.reports.Replace)
}

func (s *Server) patchReport(w http.ResponseWriter, r *http.Request) {
	s.updateReport(w, r, s.reports.Patch)
}

func (s *Server) updateReport(w http.ResponseWriter, r *http.Request, apply reportUpdate) {
	id, ok := pathID(mux.Vars(r)["id"])
	if !ok {
		fail(w, r, hazards.ErrNotFound)
		return
	}
	var in hazards.ReportInput
	if !decode(w, r, &in) {
		return
	}
	report, err := apply(r.Context(), UserID(r.Context()), id, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(mux.Vars(r)["id"])
	if !ok {
		fail(w, r, hazards.ErrNotFound)
		return
	}
	if err := s.reports.Delete(r.Context(), UserID(r.Context()), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
