package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/triagem/internal/store"
)

func newDemandaBody() map[string]any {
	return map[string]any{
		"servidor":       "THAIS",
		"defensor":       "Dra. Ana Carolina 1DP",
		"nomeAssistido":  "Maria da Silva",
		"cpf":            "529.982.247-25",
		"codigo":         "2025-001",
		"demanda":        "Revisão de pensão",
		"selecaoDemanda": []string{"Alimentos"},
		"numeroProcesso": []string{"0001234-56.2024.8.05.0001"},
	}
}

func TestDemandas_CreateGetList(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/demandas", adminKey, newDemandaBody())
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody[store.Demanda](t, rr)
	assert.Equal(t, "52998224725", created.CPF)
	assert.Equal(t, "Pendente", created.Status)
	assert.Equal(t, "/v1/demandas/"+itoa(created.ID), rr.Header().Get("Location"))

	rr = env.do(t, http.MethodGet, "/v1/demandas/"+itoa(created.ID), clientKey, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, created, decodeBody[store.Demanda](t, rr))

	rr = env.do(t, http.MethodGet, "/v1/demandas?nome=maria", clientKey, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decodeBody[listDemandasResponse](t, rr)
	assert.Equal(t, 1, list.Total)

	rr = env.do(t, http.MethodGet, "/v1/demandas?cpf=000", clientKey, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decodeBody[listDemandasResponse](t, rr).Total)
}

func TestDemandas_CreateValidation(t *testing.T) {
	env := newTestEnv(t)

	body := newDemandaBody()
	body["cpf"] = "123.45"
	body["defensor"] = "Ninguém"

	rr := env.do(t, http.MethodPost, "/v1/demandas", adminKey, body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeBody[ErrorResponse](t, rr)
	assert.Equal(t, ErrCodeValidation, resp.Code)
	assert.Contains(t, resp.Fields, "cpf")
	assert.Contains(t, resp.Fields, "defensor")
}

func TestDemandas_GetErrors(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/v1/demandas/abc", clientKey, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, ErrCodeInvalidID, decodeBody[ErrorResponse](t, rr).Code)

	rr = env.do(t, http.MethodGet, "/v1/demandas/99", clientKey, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDemandas_Update(t *testing.T) {
	env := newTestEnv(t)
	created := decodeBody[store.Demanda](t, env.do(t, http.MethodPost, "/v1/demandas", adminKey, newDemandaBody()))
	path := "/v1/demandas/" + itoa(created.ID)

	rr := env.do(t, http.MethodPatch, path, adminKey, map[string]any{"status": "Concluída"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decodeBody[updateDemandaResponse](t, rr)
	assert.True(t, resp.Changed)
	assert.Equal(t, "Concluída", resp.Demanda.Status)

	rr = env.do(t, http.MethodPatch, path, adminKey, map[string]any{"status": "Concluída"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decodeBody[updateDemandaResponse](t, rr).Changed)

	rr = env.do(t, http.MethodPatch, path, adminKey, map[string]any{"status": "Perdida"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDemandas_BatchUpdate(t *testing.T) {
	env := newTestEnv(t)
	a := decodeBody[store.Demanda](t, env.do(t, http.MethodPost, "/v1/demandas", adminKey, newDemandaBody()))
	b := decodeBody[store.Demanda](t, env.do(t, http.MethodPost, "/v1/demandas", adminKey, newDemandaBody()))

	rr := env.do(t, http.MethodPut, "/v1/demandas", adminKey, map[string]any{
		"edits": []map[string]any{
			{"id": a.ID, "patch": map[string]any{"status": "Em andamento"}},
			{"id": b.ID, "patch": map[string]any{"status": "Pendente"}},
		},
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, decodeBody[batchUpdateResponse](t, rr).Changed)

	rr = env.do(t, http.MethodPut, "/v1/demandas", adminKey, map[string]any{
		"edits": []map[string]any{
			{"id": a.ID, "patch": map[string]any{"status": "Arquivada"}},
			{"id": b.ID, "patch": map[string]any{"status": "???"}},
		},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	got, err := env.store.GetDemanda(t.Context(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Em andamento", got.Status)
}

func TestDemandas_InvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/demandas", adminKey, "not an object")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, ErrCodeInvalidJSON, decodeBody[ErrorResponse](t, rr).Code)
}
