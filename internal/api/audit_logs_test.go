package api

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TimurManjosov/triagem/internal/store"
)

func seedAuditLogs(t *testing.T, env *testEnv, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		err := env.store.WriteAuditLog(t.Context(), store.AuditLog{
			OccurredAt:   time.Date(2025, 1, i, 0, 0, 0, 0, time.UTC),
			Actor:        "admin",
			Action:       "created",
			ResourceType: "demanda",
			ResourceID:   fmt.Sprint(i),
			Status:       "success",
			Changes:      map[string]any{"status": "Pendente"},
		})
		require.NoError(t, err)
	}
}

func TestListAuditLogs_Pagination(t *testing.T) {
	env := newTestEnv(t)
	seedAuditLogs(t, env, 5)

	rr := env.do(t, http.MethodGet, "/v1/audit-logs?limit=2&offset=1", adminKey, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decodeBody[listAuditLogsResponse](t, rr)
	assert.Equal(t, 2, resp.Limit)
	assert.Equal(t, 1, resp.Offset)
	require.Len(t, resp.Logs, 2)
	assert.Equal(t, "4", resp.Logs[0].ResourceID)
	assert.Equal(t, "3", resp.Logs[1].ResourceID)
}

func TestExportAuditLogs(t *testing.T) {
	env := newTestEnv(t)
	seedAuditLogs(t, env, 3)

	t.Run("csv", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/v1/audit-logs/export?format=csv", adminKey, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
		records, err := csv.NewReader(rr.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 4)
		assert.Equal(t, "ID", records[0][0])
		assert.Equal(t, `{"status":"Pendente"}`, records[1][8])
	})

	t.Run("json", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/v1/audit-logs/export", adminKey, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var logs []store.AuditLog
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&logs))
		assert.Len(t, logs, 3)
	})

	t.Run("jsonl", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/v1/audit-logs/export?format=jsonl", adminKey, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
		assert.Len(t, lines, 3)
	})

	t.Run("unknown format", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/v1/audit-logs/export?format=xml", adminKey, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
