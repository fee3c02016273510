package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lifeflow/guidance/internal/model"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type resolveRequest struct {
	UserID      string `json:"user_id"`
	Description string `json:"description"`
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", model.ErrValidation))
		return
	}

	result, err := s.session.Resolve(r.Context(), req.UserID, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type clarifyRequest struct {
	Answers []model.ClarificationAnswer `json:"answers"`
}

func (s *Server) clarify(w http.ResponseWriter, r *http.Request) {
	var req clarifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", model.ErrValidation))
		return
	}

	sit, err := s.session.Clarify(r.Context(), mux.Vars(r)["id"], req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sit)
}

type guidanceResponse struct {
	Situation *model.Situation        `json:"situation"`
	Guidance  *model.GuidanceResponse `json:"guidance"`
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	sit, resp, err := s.session.Generate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, guidanceResponse{Situation: sit, Guidance: resp})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	sit, err := s.session.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sit)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	situations, err := s.session.List(r.Context(), r.URL.Query().Get("user"))
	if err != nil {
		writeError(w, err)
		return
	}
	if situations == nil {
		situations = []*model.Situation{}
	}
	writeJSON(w, http.StatusOK, situations)
}

type feedbackRequest struct {
	SituationID string `json:"situation_id"`
	UserID      string `json:"user_id"`
	Helpful     bool   `json:"helpful"`
	Comment     string `json:"comment,omitempty"`
}

func (s *Server) feedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid request body", model.ErrValidation))
		return
	}

	fb, err := s.session.Feedback(r.Context(), req.SituationID, req.UserID, req.Helpful, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}
