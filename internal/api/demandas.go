package api

import (
	"net/http"
	"strings"

	"github.com/TimurManjosov/triagem/internal/demanda"
	"github.com/TimurManjosov/triagem/internal/store"
)

type listDemandasResponse struct {
	Demandas []store.Demanda `json:"demandas"`
	Total    int             `json:"total"`
}

type updateDemandaResponse struct {
	Demanda *store.Demanda `json:"demanda"`
	Changed bool           `json:"changed"`
}

type batchUpdateRequest struct {
	Edits []demanda.Edit `json:"edits"`
}

type batchUpdateResponse struct {
	Changed int `json:"changed"`
}

// handleListDemandas handles GET /v1/demandas?nome=&cpf=&defensor=&limit=
func (s *Server) handleListDemandas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.DemandaFilter{
		Nome:     q.Get("nome"),
		CPF:      q.Get("cpf"),
		Defensor: strings.TrimSpace(q.Get("defensor")),
		Limit:    queryInt(r, "limit", 0, 1000),
	}
	list, err := s.demandas.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listDemandasResponse{Demandas: list, Total: len(list)})
}

// handleGetDemanda handles GET /v1/demandas/{id}
func (s *Server) handleGetDemanda(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	d, err := s.demandas.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleCreateDemanda handles POST /v1/demandas
func (s *Server) handleCreateDemanda(w http.ResponseWriter, r *http.Request) {
	var req store.CreateDemandaParams
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := s.demandas.Create(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/demandas/"+itoa(d.ID))
	writeJSON(w, http.StatusCreated, d)
}

// handleUpdateDemanda handles PATCH /v1/demandas/{id}
func (s *Server) handleUpdateDemanda(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch store.DemandaPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	d, changed, err := s.demandas.Update(r.Context(), id, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updateDemandaResponse{Demanda: d, Changed: changed})
}

// handleBatchUpdateDemandas handles PUT /v1/demandas: saves the edited rows
// of a search result and reports how many actually changed.
func (s *Server) handleBatchUpdateDemandas(w http.ResponseWriter, r *http.Request) {
	var req batchUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Edits) == 0 {
		BadRequestError(w, r, ErrCodeMissingField, "edits must not be empty")
		return
	}
	n, err := s.demandas.BatchUpdate(r.Context(), req.Edits)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batchUpdateResponse{Changed: n})
}
