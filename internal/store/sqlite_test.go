package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	testStore(t, func(t *testing.T) Store {
		s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "demandas.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestSQLiteStore_UpgradesLegacyFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "demandas.db")

	// First-release layout: no cpf, no numero_processo.
	legacy, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = legacy.Exec(`CREATE TABLE demandas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		servidor TEXT NOT NULL,
		defensor TEXT NOT NULL,
		nome_assistido TEXT NOT NULL,
		codigo TEXT NOT NULL,
		demanda TEXT NOT NULL,
		selecao_demanda TEXT,
		status TEXT NOT NULL,
		data TEXT NOT NULL,
		horario TEXT NOT NULL
	)`)
	require.NoError(t, err)
	_, err = legacy.Exec(`INSERT INTO demandas (servidor, defensor, nome_assistido, codigo, demanda,
		selecao_demanda, status, data, horario)
		VALUES ('RAYSSA', 'Orientação', 'João', 'C-9', 'Divórcio', 'Divórcio, Alimentos', 'Pendente', '01/02/2024', '09:00:00')`)
	require.NoError(t, err)
	require.NoError(t, legacy.Close())

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	cols, err := s.tableColumns(ctx, "demandas")
	require.NoError(t, err)
	assert.True(t, cols["cpf"])
	assert.True(t, cols["numero_processo"])

	list, err := s.ListDemandas(ctx, DemandaFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "João", list[0].NomeAssistido)
	assert.Empty(t, list[0].CPF)
	assert.Empty(t, list[0].NumeroProcesso)
	assert.Equal(t, []string{"Divórcio", "Alimentos"}, list[0].SelecaoDemanda)

	// Reopening must not try to add the columns twice.
	require.NoError(t, s.Close())
	s2, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}
