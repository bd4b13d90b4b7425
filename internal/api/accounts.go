package api

import (
	"net/http"

	"github.com/oceanwatch/hazard-monitor/internal/hazards"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in hazards.Registration
	if !decode(w, r, &in) {
		return
	}
	user, err := s.accounts.Register(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if !decode(w, r, &in) {
		return
	}
	if in.Username == "" || in.Password == "" {
		writeError(w, r, http.StatusBadRequest, CodeInvalidInput, "username and password are required")
		return
	}
	tok, err := s.accounts.Login(r.Context(), in.Username, in.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}
