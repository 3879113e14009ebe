package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/triagem/internal/eligibility"
)

func naturalPersonBody(doc string, renda string) map[string]any {
	return map[string]any{
		"documento":  doc,
		"tipoPessoa": "pessoa_fisica",
		"pessoaFisica": map[string]any{
			"rendaIndividual":     renda,
			"rendaFamiliar":       renda,
			"possuiInvestimentos": false,
		},
	}
}

func withVulnerability(body map[string]any, tags ...string) map[string]any {
	body["vulnerabilidades"] = tags
	return body
}

func TestEvaluate(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name       string
		body       map[string]any
		wantReason eligibility.Reason
		approved   bool
	}{
		{"low income", naturalPersonBody("", "1000"), eligibility.ReasonEconomic, true},
		{"high income", naturalPersonBody("", "20000"), eligibility.ReasonIncomeExceedsLimit, false},
		{
			"vulnerability with high income",
			withVulnerability(naturalPersonBody("", "90000"), "idoso"),
			eligibility.ReasonVulnerability, true,
		},
		{
			"non-profit serving vulnerable people",
			map[string]any{
				"tipoPessoa":        "pessoa_juridica_sem_fins_lucrativos",
				"semFinsLucrativos": map[string]any{"atendePopulacaoVulneravel": true},
			},
			eligibility.ReasonNonProfitMission, true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/v1/hipossuficiencia/evaluate", clientKey, tt.body)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			resp := decodeBody[evaluateResponse](t, rr)
			assert.Equal(t, tt.wantReason, resp.Reason)
			assert.Equal(t, tt.approved, resp.Approved)
			assert.NotEmpty(t, resp.Explanation)
			assert.NotEmpty(t, resp.EvaluatedAt)
		})
	}

	list, err := env.store.ListAnalises(t.Context(), "")
	require.NoError(t, err)
	assert.Empty(t, list, "evaluate must not persist")
}

func TestEvaluate_InvalidInput(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/hipossuficiencia/evaluate", clientKey, map[string]any{"tipoPessoa": "marciano"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, ErrCodeInvalidInput, decodeBody[ErrorResponse](t, rr).Code)

	rr = env.do(t, http.MethodPost, "/v1/hipossuficiencia/evaluate", clientKey, map[string]any{"tipoPessoa": "pessoa_fisica"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, ErrCodeInvalidInput, decodeBody[ErrorResponse](t, rr).Code)

	rr = env.do(t, http.MethodPost, "/v1/hipossuficiencia/evaluate", clientKey,
		map[string]any{"tipoPessoa": "pessoa_fisica", "vulnerabilidades": []string{"idoso"}})
	require.Equal(t, http.StatusBadRequest, rr.Code, "vulnerability does not excuse missing facts")
}

func TestEvaluate_PartialFacts(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name      string
		drop      string
		wantField string
	}{
		{"renda individual", "rendaIndividual", "pessoaFisica.rendaIndividual"},
		{"renda familiar", "rendaFamiliar", "pessoaFisica.rendaFamiliar"},
		{"possui investimentos", "possuiInvestimentos", "pessoaFisica.possuiInvestimentos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := naturalPersonBody("", "1000")
			delete(body["pessoaFisica"].(map[string]any), tt.drop)

			rr := env.do(t, http.MethodPost, "/v1/hipossuficiencia/evaluate", clientKey, body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			resp := decodeBody[ErrorResponse](t, rr)
			assert.Equal(t, ErrCodeInvalidInput, resp.Code)
			assert.Contains(t, resp.Fields, tt.wantField)
		})
	}

	socio := naturalPersonBody("", "1000")
	socio["pessoaFisica"].(map[string]any)["socio"] = map[string]any{"capitalSocial": "100"}
	rr := env.do(t, http.MethodPost, "/v1/hipossuficiencia/evaluate", clientKey, socio)
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Contains(t, decodeBody[ErrorResponse](t, rr).Fields, "pessoaFisica.socio.numeroSocios")

	rr = env.do(t, http.MethodPost, "/v1/hipossuficiencia/evaluate", clientKey, map[string]any{
		"tipoPessoa":     "pessoa_juridica_lucrativa",
		"pessoaJuridica": map[string]any{"socioComRendaAcima": false, "patrimonioAcima": false, "numeroSocios": 1},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Contains(t, decodeBody[ErrorResponse](t, rr).Fields, "pessoaJuridica.capitalSocial")
}

func TestAnalyze_RejectsOversizedAmount(t *testing.T) {
	env := newTestEnv(t)

	body := naturalPersonBody("52998224725", "100")
	body["pessoaFisica"].(map[string]any)["rendaIndividual"] = "1e50000000"
	rr := env.do(t, http.MethodPost, "/v1/hipossuficiencia/analises", adminKey, body)
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	assert.Equal(t, ErrCodeInvalidInput, decodeBody[ErrorResponse](t, rr).Code)

	list, err := env.store.ListAnalises(t.Context(), "52998224725")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAnalyze_AndHistory(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/hipossuficiencia/analises", adminKey, naturalPersonBody("529.982.247-25", "1000"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	resp := decodeBody[analyzeResponse](t, rr)
	assert.Equal(t, "52998224725", resp.Analise.Documento)
	assert.True(t, resp.Analise.Resultado)
	assert.Equal(t, string(eligibility.ReasonEconomic), resp.Analise.Motivo)

	rr = env.do(t, http.MethodPost, "/v1/hipossuficiencia/analises", adminKey, naturalPersonBody("52998224725", "9000"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = env.do(t, http.MethodGet, "/v1/hipossuficiencia/analises?documento=529.982.247-25", clientKey, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	hist := decodeBody[listAnalisesResponse](t, rr)
	require.Len(t, hist.Analises, 2)
	assert.False(t, hist.Analises[0].Resultado, "newest first")
}

func TestAnalyze_Errors(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/v1/hipossuficiencia/analises", adminKey, naturalPersonBody("", "1000"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, ErrCodeMissingField, decodeBody[ErrorResponse](t, rr).Code)

	// a natural person must be identified by CPF
	rr = env.do(t, http.MethodPost, "/v1/hipossuficiencia/analises", adminKey, naturalPersonBody("11.222.333/0001-81", "1000"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, ErrCodeInvalidDocumento, decodeBody[ErrorResponse](t, rr).Code)

	rr = env.do(t, http.MethodPost, "/v1/hipossuficiencia/analises", clientKey, naturalPersonBody("52998224725", "1000"))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodGet, "/v1/hipossuficiencia/analises", clientKey, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
