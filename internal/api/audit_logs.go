package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/TimurManjosov/triagem/internal/store"
)

type listAuditLogsResponse struct {
	Logs   []store.AuditLog `json:"logs"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// handleListAuditLogs handles GET /v1/audit-logs?limit=&offset= (superadmin)
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20, 100)
	if limit == 0 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0, 0)

	logs, err := s.store.ListAuditLogs(r.Context(), limit, offset)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listAuditLogsResponse{Logs: logs, Limit: limit, Offset: offset})
}

// handleExportAuditLogs handles GET /v1/audit-logs/export?format=csv|json|jsonl
func (s *Server) handleExportAuditLogs(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "csv" && format != "json" && format != "jsonl" {
		BadRequestError(w, r, ErrCodeBadRequest, "format must be csv, json or jsonl")
		return
	}

	logs, err := s.store.ListAuditLogs(r.Context(), queryInt(r, "limit", 10000, 10000), 0)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	switch format {
	case "csv":
		exportCSV(w, logs)
	case "json":
		exportJSON(w, logs)
	case "jsonl":
		exportJSONL(w, logs)
	}
}

// exportCSV exports audit logs as CSV using proper CSV encoding
func exportCSV(w http.ResponseWriter, logs []store.AuditLog) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.csv")

	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if err := csvWriter.Write([]string{
		"ID", "OccurredAt", "RequestID", "Actor", "Action",
		"ResourceType", "ResourceID", "Status", "Changes", "ErrorMessage",
	}); err != nil {
		// Header already sent, can't return error response
		return
	}

	for _, e := range logs {
		changes := ""
		if len(e.Changes) > 0 {
			b, _ := json.Marshal(e.Changes)
			changes = string(b)
		}
		if err := csvWriter.Write([]string{
			strconv.FormatInt(e.ID, 10),
			e.OccurredAt.UTC().Format(time.RFC3339),
			e.RequestID,
			e.Actor,
			e.Action,
			e.ResourceType,
			e.ResourceID,
			e.Status,
			changes,
			e.ErrorMessage,
		}); err != nil {
			return
		}
	}
}

// exportJSON exports audit logs as JSON array
func exportJSON(w http.ResponseWriter, logs []store.AuditLog) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.json")
	_ = json.NewEncoder(w).Encode(logs)
}

// exportJSONL exports audit logs as JSON Lines (one JSON object per line)
func exportJSONL(w http.ResponseWriter, logs []store.AuditLog) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", "attachment; filename=audit-logs.jsonl")
	encoder := json.NewEncoder(w)
	for _, e := range logs {
		_ = encoder.Encode(e)
	}
}
