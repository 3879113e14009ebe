package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/TimurManjosov/triagem/internal/eligibility"
	"github.com/TimurManjosov/triagem/internal/store"
	"github.com/TimurManjosov/triagem/internal/triage"
)

type evaluateResponse struct {
	eligibility.Verdict
	EvaluatedAt string `json:"evaluatedAt"`
}

type analyzeResponse struct {
	Analise *store.Analise      `json:"analise"`
	Verdict eligibility.Verdict `json:"verdict"`
}

type listAnalisesResponse struct {
	Analises []store.Analise `json:"analises"`
}

// handleEvaluate handles POST /v1/hipossuficiencia/evaluate. Nothing is stored.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var in triage.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	v, err := s.triage.Evaluate(in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{
		Verdict:     v,
		EvaluatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAnalyze handles POST /v1/hipossuficiencia/analises
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var in triage.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.Documento) == "" {
		BadRequestErrorWithFields(w, r, ErrCodeMissingField, "documento is required",
			map[string]string{"documento": "CPF ou CNPJ é obrigatório"})
		return
	}
	a, v, err := s.triage.Analyze(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, analyzeResponse{Analise: a, Verdict: v})
}

// handleListAnalises handles GET /v1/hipossuficiencia/analises?documento=
func (s *Server) handleListAnalises(w http.ResponseWriter, r *http.Request) {
	doc := r.URL.Query().Get("documento")
	if strings.TrimSpace(doc) == "" {
		BadRequestError(w, r, ErrCodeMissingField, "documento query parameter is required")
		return
	}
	list, err := s.triage.History(r.Context(), doc)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listAnalisesResponse{Analises: list})
}
