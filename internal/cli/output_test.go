package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/triagem/internal/eligibility"
	"github.com/TimurManjosov/triagem/internal/report"
	"github.com/TimurManjosov/triagem/internal/store"
)

func sampleDemandas() []store.Demanda {
	return []store.Demanda{{
		ID:            3,
		NomeAssistido: "Maria da Silva",
		CPF:           "52998224725",
		Defensor:      "Dr. Caio Cesar 2DP",
		Servidor:      "THAIS",
		Status:        "Pendente",
		Data:          "10/03/2025",
		Horario:       "09:15:30",
		Descricao:     "Ação revisional de alimentos com pedido de tutela de urgência",
	}}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestPrintDemandas(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintDemandas(&buf, sampleDemandas(), FormatJSON))
		var got map[string][]store.Demanda
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, sampleDemandas(), got["demandas"])
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintDemandas(&buf, sampleDemandas(), FormatYAML))
		var got []store.Demanda
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, sampleDemandas(), got)
	})

	t.Run("table truncates long descriptions", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, PrintDemandas(&buf, sampleDemandas(), FormatTable))
		out := buf.String()
		assert.Contains(t, out, "Maria da Silva")
		assert.Contains(t, out, "...")
		assert.NotContains(t, out, "urgência")
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.Error(t, PrintDemandas(&bytes.Buffer{}, nil, "xml"))
	})
}

func TestPrintVerdict_Table(t *testing.T) {
	var buf bytes.Buffer
	v := eligibility.Verdict{Approved: true, Reason: eligibility.ReasonEconomic, Explanation: "Renda dentro do limite."}
	require.NoError(t, PrintVerdict(&buf, v, FormatTable))
	assert.Equal(t, "APROVADO (ECONOMIC_CRITERION)\n\nRenda dentro do limite.\n", buf.String())
}

func TestPrintStats_Table(t *testing.T) {
	var buf bytes.Buffer
	s := &report.Stats{
		TotalDemandas: 2,
		PorDefensor:   map[string]int{"Orientação": 2},
		PorStatus:     map[string]int{"Pendente": 2},
		Analises:      report.AnaliseStats{Total: 4, Aprovadas: 1, TaxaAprovacao: 0.25},
	}
	require.NoError(t, PrintStats(&buf, s, FormatTable))
	out := buf.String()
	assert.Contains(t, out, "Demandas: 2")
	assert.Contains(t, out, "Análises: 4 (1 aprovadas, 25%)")
	assert.Contains(t, out, "Orientação")
}
