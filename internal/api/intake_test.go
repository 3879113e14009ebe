package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/triagem/internal/intake"
	"github.com/TimurManjosov/triagem/internal/store"
)

func TestIntake_RegistrationFlow(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/intake/sessions", adminKey, map[string]any{"defensor": "Dra. Ana Carolina 1DP"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	d := decodeBody[intake.Draft](t, rr)
	require.NotEmpty(t, d.ID)
	base := "/v1/intake/sessions/" + d.ID

	rr = env.do(t, http.MethodPatch, base, adminKey, map[string]any{
		"servidor":      "WELDER",
		"nomeAssistido": "Ana Lima",
		"cpf":           "529.982.247-25",
		"codigo":        "C-1",
		"demanda":       "Ação de alimentos",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodPost, base+"/pin", adminKey, map[string]any{"pinned": true})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPut, base+"/processos/0", adminKey, map[string]any{"value": "0000003-00.2025.8.05.0001"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = env.do(t, http.MethodPost, base+"/processos", adminKey, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeBody[intake.Draft](t, rr).Processos, 2)

	rr = env.do(t, http.MethodPost, base+"/submit", adminKey, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decodeBody[intake.Draft](t, rr).AwaitingConfirmation)

	rr = env.do(t, http.MethodPost, base+"/confirm", adminKey, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decodeBody[confirmResponse](t, rr)
	assert.Equal(t, "Ana Lima", resp.Demanda.NomeAssistido)
	assert.Equal(t, "52998224725", resp.Demanda.CPF)
	assert.Equal(t, []string{"0000003-00.2025.8.05.0001"}, resp.Demanda.NumeroProcesso)
	assert.Equal(t, "WELDER", resp.Session.Servidor)
	assert.Empty(t, resp.Session.NomeAssistido)

	list, err := env.store.ListDemandas(t.Context(), store.DemandaFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestIntake_StateErrors(t *testing.T) {
	env := newTestEnv(t)
	d := decodeBody[intake.Draft](t, env.do(t, http.MethodPost, "/v1/intake/sessions", adminKey, nil))
	base := "/v1/intake/sessions/" + d.ID

	rr := env.do(t, http.MethodPost, base+"/confirm", adminKey, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, ErrCodeSessionState, decodeBody[ErrorResponse](t, rr).Code)

	rr = env.do(t, http.MethodDelete, base+"/processos/0", adminKey, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, ErrCodeInvalidProcesso, decodeBody[ErrorResponse](t, rr).Code)

	rr = env.do(t, http.MethodPut, base+"/processos/x", adminKey, map[string]any{"value": "1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// incomplete form fails validation and stays editable
	rr = env.do(t, http.MethodPost, base+"/submit", adminKey, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, ErrCodeValidation, decodeBody[ErrorResponse](t, rr).Code)

	rr = env.do(t, http.MethodPost, "/v1/intake/sessions", adminKey, map[string]any{"defensor": "Dr. Fulano"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIntake_DeleteAndNotFound(t *testing.T) {
	env := newTestEnv(t)
	d := decodeBody[intake.Draft](t, env.do(t, http.MethodPost, "/v1/intake/sessions", adminKey, nil))
	base := "/v1/intake/sessions/" + d.ID

	rr := env.do(t, http.MethodDelete, base, adminKey, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodGet, base, adminKey, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, ErrCodeNotFound, decodeBody[ErrorResponse](t, rr).Code)
}
