package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/TimurManjosov/triagem/internal/intake"
	"github.com/TimurManjosov/triagem/internal/store"
)

type createSessionRequest struct {
	Defensor string `json:"defensor"`
}

type setProcessoRequest struct {
	Value string `json:"value"`
}

type pinRequest struct {
	Pinned bool `json:"pinned"`
}

type confirmResponse struct {
	Demanda *store.Demanda `json:"demanda"`
	Session intake.Draft   `json:"session"`
}

// handleCreateSession handles POST /v1/intake/sessions
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	d, err := s.intake.Create(r.Context(), req.Defensor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/intake/sessions/"+d.ID)
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.respondDraft(w, r)(s.intake.Get(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var u intake.FieldUpdate
	if !decodeJSON(w, r, &u) {
		return
	}
	s.respondDraft(w, r)(s.intake.Update(r.Context(), chi.URLParam(r, "id"), u))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.intake.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddProcesso(w http.ResponseWriter, r *http.Request) {
	s.respondDraft(w, r)(s.intake.AddProcesso(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleSetProcesso(w http.ResponseWriter, r *http.Request) {
	i, ok := processoIndex(w, r)
	if !ok {
		return
	}
	var req setProcessoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.respondDraft(w, r)(s.intake.SetProcesso(r.Context(), chi.URLParam(r, "id"), i, req.Value))
}

func (s *Server) handleRemoveProcesso(w http.ResponseWriter, r *http.Request) {
	i, ok := processoIndex(w, r)
	if !ok {
		return
	}
	s.respondDraft(w, r)(s.intake.RemoveProcesso(r.Context(), chi.URLParam(r, "id"), i))
}

func (s *Server) handlePinServidor(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s.respondDraft(w, r)(s.intake.Pin(r.Context(), chi.URLParam(r, "id"), req.Pinned))
}

func (s *Server) handleSubmitSession(w http.ResponseWriter, r *http.Request) {
	s.respondDraft(w, r)(s.intake.Submit(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	s.respondDraft(w, r)(s.intake.Cancel(r.Context(), chi.URLParam(r, "id")))
}

// handleConfirmSession handles POST /v1/intake/sessions/{id}/confirm: the
// pending demanda is saved and the form is cleared for the next one.
func (s *Server) handleConfirmSession(w http.ResponseWriter, r *http.Request) {
	saved, next, err := s.intake.Confirm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, confirmResponse{Demanda: saved, Session: next})
}

func (s *Server) respondDraft(w http.ResponseWriter, r *http.Request) func(intake.Draft, error) {
	return func(d intake.Draft, err error) {
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func processoIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidProcesso, "index must be an integer")
		return 0, false
	}
	return i, true
}
