package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/triagem/internal/report"
)

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 2; i++ {
		rr := env.do(t, http.MethodPost, "/v1/demandas", adminKey, newDemandaBody())
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}
	rr := env.do(t, http.MethodPost, "/v1/hipossuficiencia/analises", adminKey, naturalPersonBody("52998224725", "1000"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/v1/stats", clientKey, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	stats := decodeBody[report.Stats](t, rr)
	assert.Equal(t, 2, stats.TotalDemandas)
	assert.Equal(t, 2, stats.PorDefensor["Dra. Ana Carolina 1DP"])
	assert.Equal(t, 1, stats.Analises.Total)
	assert.Equal(t, 1, stats.Analises.Aprovadas)

	rr = env.do(t, http.MethodGet, "/v1/stats?defensor=Orienta%C3%A7%C3%A3o", clientKey, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decodeBody[report.Stats](t, rr).TotalDemandas)
}

func TestStats_InvalidDate(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/v1/stats?from=2025-01-01", clientKey, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeBody[ErrorResponse](t, rr)
	assert.Equal(t, ErrCodeValidation, resp.Code)
	assert.Contains(t, resp.Fields, "from")
}
