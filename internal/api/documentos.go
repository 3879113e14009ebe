package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/TimurManjosov/triagem/internal/audit"
	"github.com/TimurManjosov/triagem/internal/document"
)

// generateDocumentRequest fills a template either from a registered
// demanda, from explicit fields, or both (explicit fields win).
type generateDocumentRequest struct {
	DemandaID int64 `json:"demandaId,omitempty"`
	document.Data
}

// handleGenerateDocument handles POST /v1/documentos/{kind}
func (s *Server) handleGenerateDocument(w http.ResponseWriter, r *http.Request) {
	kind := document.Kind(chi.URLParam(r, "kind"))
	var req generateDocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	data := req.Data
	if req.DemandaID > 0 {
		d, err := s.demandas.Get(r.Context(), req.DemandaID)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		data = mergeDocumentData(document.DataFromDemanda(*d), req.Data)
	}

	doc, err := s.documents.Generate(kind, data)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if s.audit != nil {
		after := map[string]any{"kind": string(doc.Kind), "verificationCode": doc.VerificationCode}
		if req.DemandaID > 0 {
			after["demandaId"] = req.DemandaID
		}
		s.audit.Log(audit.NewEventBuilder(r.Context()).
			ForResource(audit.ResourceTypeDocumento, doc.VerificationCode).
			WithAction(audit.ActionGenerated).
			WithAfterState(after).
			Build())
	}

	if strings.Contains(r.Header.Get("Accept"), "text/markdown") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("X-Verification-Code", doc.VerificationCode)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(doc.Body))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// mergeDocumentData overlays the non-empty fields of override on base.
func mergeDocumentData(base, override document.Data) document.Data {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&base.NomeAssistido, override.NomeAssistido)
	str(&base.CPF, override.CPF)
	str(&base.Defensor, override.Defensor)
	str(&base.Servidor, override.Servidor)
	str(&base.Horario, override.Horario)
	str(&base.Endereco, override.Endereco)
	str(&base.Destinatario, override.Destinatario)
	str(&base.Local, override.Local)
	str(&base.Assunto, override.Assunto)
	str(&base.Certidao, override.Certidao)
	str(&base.NomeRegistrado, override.NomeRegistrado)
	str(&base.Cartorio, override.Cartorio)
	if !override.Data.IsZero() {
		base.Data = override.Data
	}
	if !override.DataAgendada.IsZero() {
		base.DataAgendada = override.DataAgendada
	}
	return base
}
