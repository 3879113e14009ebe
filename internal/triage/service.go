// Package triage runs the means test for a subject document and keeps the
// history of verdicts.
package triage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/TimurManjosov/triagem/internal/audit"
	"github.com/TimurManjosov/triagem/internal/demanda"
	"github.com/TimurManjosov/triagem/internal/eligibility"
	"github.com/TimurManjosov/triagem/internal/store"
	"github.com/TimurManjosov/triagem/internal/telemetry"
	"github.com/TimurManjosov/triagem/internal/validation"
	"github.com/TimurManjosov/triagem/internal/webhook"
)

// ErrInvalidDocumento is wrapped when the subject document is malformed or
// does not match the subject kind.
var ErrInvalidDocumento = errors.New("invalid documento")

// AnaliseStore is the part of store.Store the service needs.
type AnaliseStore interface {
	SaveAnalise(ctx context.Context, params store.SaveAnaliseParams) (*store.Analise, error)
	ListAnalises(ctx context.Context, documento string) ([]store.Analise, error)
}

type Service struct {
	evaluator *eligibility.Evaluator
	store     AnaliseStore
	audit     demanda.AuditLogger
	events    demanda.EventDispatcher
	now       func() time.Time
}

// NewService creates a Service. auditor and events may be nil.
func NewService(ev *eligibility.Evaluator, st AnaliseStore, auditor demanda.AuditLogger, events demanda.EventDispatcher) *Service {
	return &Service{
		evaluator: ev,
		store:     st,
		audit:     auditor,
		events:    events,
		now:       time.Now,
	}
}

// Evaluate runs the means test without recording anything but metrics.
func (s *Service) Evaluate(in Input) (eligibility.Verdict, error) {
	req, err := in.Request()
	if err != nil {
		return eligibility.Verdict{}, err
	}
	v, err := s.evaluator.Evaluate(req)
	if err != nil {
		return eligibility.Verdict{}, err
	}
	telemetry.ObserveVerdict(string(v.Reason), v.Approved)
	return v, nil
}

// Analyze evaluates in and records the verdict against its document.
func (s *Service) Analyze(ctx context.Context, in Input) (*store.Analise, eligibility.Verdict, error) {
	doc, kind, err := validation.NormalizeDocumento(in.Documento)
	if err != nil {
		return nil, eligibility.Verdict{}, fmt.Errorf("%w: %v", ErrInvalidDocumento, err)
	}
	if err := checkDocumentKind(in.TipoPessoa, kind); err != nil {
		return nil, eligibility.Verdict{}, err
	}

	v, err := s.Evaluate(in)
	if err != nil {
		return nil, eligibility.Verdict{}, err
	}

	vulns := make([]string, len(in.Vulnerabilidades))
	for i, t := range in.Vulnerabilidades {
		vulns[i] = string(t)
	}
	a, err := s.store.SaveAnalise(ctx, store.SaveAnaliseParams{
		Documento:        doc,
		TipoPessoa:       string(in.TipoPessoa),
		Vulnerabilidades: vulns,
		Detalhes:         in.details(),
		Resultado:        v.Approved,
		Motivo:           string(v.Reason),
		Explicacao:       v.Explanation,
		DataAnalise:      s.now(),
	})
	if err != nil {
		return nil, v, fmt.Errorf("save analise: %w", err)
	}

	after := audit.StateOf(a)
	id := strconv.FormatInt(a.ID, 10)
	if s.audit != nil {
		s.audit.Log(audit.NewEventBuilder(ctx).
			ForResource(audit.ResourceTypeAnalise, id).
			WithAction(audit.ActionEvaluated).
			WithAfterState(after).
			Build())
	}
	if s.events != nil {
		s.events.Dispatch(webhook.NewEventBuilder(ctx).
			ForResource(audit.ResourceTypeAnalise, id).
			WithStates(nil, after).
			Build())
	}
	return a, v, nil
}

// History lists the verdicts recorded for documento, newest first.
func (s *Service) History(ctx context.Context, documento string) ([]store.Analise, error) {
	doc, _, err := validation.NormalizeDocumento(documento)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocumento, err)
	}
	return s.store.ListAnalises(ctx, doc)
}

func checkDocumentKind(subject eligibility.SubjectKind, kind validation.DocumentKind) error {
	switch {
	case subject == eligibility.NaturalPerson && kind != validation.DocumentCPF:
		return fmt.Errorf("%w: pessoa física deve ser identificada por CPF", ErrInvalidDocumento)
	case (subject == eligibility.LegalEntityForProfit || subject == eligibility.LegalEntityNonProfit) &&
		kind != validation.DocumentCNPJ:
		return fmt.Errorf("%w: pessoa jurídica deve ser identificada por CNPJ", ErrInvalidDocumento)
	}
	return nil
}
