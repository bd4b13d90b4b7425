package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/oceanwatch/hazard-monitor/internal/hazards"
	"github.com/oceanwatch/hazard-monitor/internal/models"
)

type profileUpdate func(ctx context.Context, callerID, id uint, in hazards.ProfileInput) (*models.UserProfile, error)

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := page(r, 100, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidInput, err.Error())
		return
	}
	profiles, err := s.profiles.List(r.Context(), limit, offset)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *Server) createProfile(w http.ResponseWriter, r *http.Request) {
	var in hazards.ProfileInput
	if !decode(w, r, &in) {
		return
	}
	p, err := s.profiles.Create(r.Context(), UserID(r.Context()), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(mux.Vars(r)["id"])
	if !ok {
		fail(w, r, hazards.ErrNotFound)
		return
	}
	p, err := s.profiles.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) replaceProfile(w http.ResponseWriter, r *http.Request) {
	s.updateProfile(w, r, s.profiles.Replace)
}

func (s *Server) patchProfile(w http.ResponseWriter, r *http.Request) {
	s.updateProfile(w, r, s.profiles.Patch)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request, apply profileUpdate) {
	id, ok := pathID(mux.Vars(r)["id"])
	if !ok {
		fail(w, r, hazards.ErrNotFound)
		return
	}
	var in hazards.ProfileInput
	if !decode(w, r, &in) {
		return
	}
	p, err := apply(r.Context(), UserID(r.Context()), id, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(mux.Vars(r)["id"])
	if !ok {
		fail(w, r, hazards.ErrNotFound)
		return
	}
	if err := s.profiles.Delete(r.Context(), UserID(r.Context()), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
