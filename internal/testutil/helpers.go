// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/TimurManjosov/triagem/internal/store"
)

// ValidDemanda returns creation params accepted by the default catalog.
func ValidDemanda() store.CreateDemandaParams {
	return store.CreateDemandaParams{
		Servidor:       "THAIS",
		Defensor:       "Dra. Ana Carolina 1DP",
		NomeAssistido:  "Maria da Silva",
		CPF:            "52998224725",
		Codigo:         "2025-001",
		Descricao:      "Revisão de pensão",
		SelecaoDemanda: []string{"Alimentos"},
		Status:         "Pendente",
		Data:           "10/03/2025",
		Horario:        "09:15:30",
		NumeroProcesso: []string{"0001234-56.2024.8.05.0001"},
	}
}

// SeedDemandas writes rows straight to st, bypassing validation.
func SeedDemandas(ctx context.Context, st store.Store, rows []store.CreateDemandaParams) ([]store.Demanda, error) {
	out := make([]store.Demanda, 0, len(rows))
	for _, r := range rows {
		d, err := st.CreateDemanda(ctx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

// HTTPRequest is a helper for making test HTTP requests.
type HTTPRequest struct {
	Method  string
	Path    string
	Body    string
	APIKey  string
	Headers map[string]string
}

// Do executes the HTTP request and returns the response recorder.
func (r *HTTPRequest) Do(t *testing.T, handler http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.Body != "" {
		body = bytes.NewBufferString(r.Body)
	}
	req := httptest.NewRequest(r.Method, r.Path, body)
	if r.Body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.APIKey)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
