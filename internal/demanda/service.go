// Package demanda registers, searches and edits demandas. Writes are
// validated against the active catalog, then audited and announced to
// webhook subscribers.
package demanda

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/TimurManjosov/triagem/internal/audit"
	"github.com/TimurManjosov/triagem/internal/catalog"
	"github.com/TimurManjosov/triagem/internal/store"
	"github.com/TimurManjosov/triagem/internal/telemetry"
	"github.com/TimurManjosov/triagem/internal/validation"
	"github.com/TimurManjosov/triagem/internal/webhook"
)

// ErrValidation is wrapped by every *ValidationError.
var ErrValidation = errors.New("demanda validation failed")

// ValidationError carries field-level messages keyed by JSON field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "invalid demanda: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// AuditLogger receives audit events. *audit.Service implements it.
type AuditLogger interface {
	Log(event audit.AuditEvent)
}

// EventDispatcher receives webhook events. *webhook.Dispatcher implements it.
type EventDispatcher interface {
	Dispatch(event webhook.Event)
}

// Edit is one row of a batch edit.
type Edit struct {
	ID    int64              `json:"id"`
	Patch store.DemandaPatch `json:"patch"`
}

// Service coordinates demanda writes.
type Service struct {
	store   store.Store
	audit   AuditLogger
	events  EventDispatcher
	catalog func() catalog.Catalog
	now     func() time.Time
}

// NewService creates a Service. auditor and events may be nil.
func NewService(st store.Store, auditor AuditLogger, events EventDispatcher) *Service {
	return &Service{
		store:   st,
		audit:   auditor,
		events:  events,
		catalog: func() catalog.Catalog { return catalog.Load().Catalog },
		now:     time.Now,
	}
}

// Create registers a new demanda. The CPF is reduced to digits, an empty
// status becomes "Pendente" and missing data/horario are taken from the clock.
func (s *Service) Create(ctx context.Context, params store.CreateDemandaParams) (*store.Demanda, error) {
	params.CPF = validation.Digits(params.CPF)
	if params.Status == "" {
		params.Status = catalog.StatusPendente
	}
	now := s.now()
	if params.Data == "" {
		params.Data = now.Format(validation.DateLayout)
	}
	if params.Horario == "" {
		params.Horario = now.Format(validation.TimeLayout)
	}

	if res := validation.ValidateDemanda(params, s.catalog()); !res.Valid {
		return nil, &ValidationError{Fields: res.Errors}
	}

	d, err := s.store.CreateDemanda(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create demanda: %w", err)
	}
	telemetry.DemandasCreated.WithLabelValues(d.Defensor).Inc()

	after := audit.StateOf(d)
	id := strconv.FormatInt(d.ID, 10)
	s.logAudit(audit.NewEventBuilder(ctx).
		ForResource(audit.ResourceTypeDemanda, id).
		WithAction(audit.ActionCreated).
		WithAfterState(after).
		Build())
	s.dispatch(webhook.NewEventBuilder(ctx).
		ForResource(audit.ResourceTypeDemanda, id).
		WithStates(nil, after).
		Build())
	return d, nil
}

// Get returns one demanda or store.ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*store.Demanda, error) {
	return s.store.GetDemanda(ctx, id)
}

// List searches demandas. A CPF filter is compared digits to digits.
func (s *Service) List(ctx context.Context, filter store.DemandaFilter) ([]store.Demanda, error) {
	filter.Nome = strings.TrimSpace(filter.Nome)
	filter.CPF = validation.Digits(filter.CPF)
	return s.store.ListDemandas(ctx, filter)
}

// Update applies patch to one demanda. changed is false when the patch
// leaves the row as it was; nothing is written in that case.
func (s *Service) Update(ctx context.Context, id int64, patch store.DemandaPatch) (d *store.Demanda, changed bool, err error) {
	current, err := s.store.GetDemanda(ctx, id)
	if err != nil {
		return nil, false, err
	}
	patch = normalizePatch(patch)
	if res := validation.ValidateDemandaPatch(patch, *current, s.catalog()); !res.Valid {
		return nil, false, &ValidationError{Fields: res.Errors}
	}
	return s.write(ctx, current, patch)
}

// BatchUpdate applies a set of row edits, as saved from the search grid.
// Every edit is validated before anything is written; unchanged rows are
// skipped. It returns how many rows changed.
func (s *Service) BatchUpdate(ctx context.Context, edits []Edit) (int, error) {
	type pending struct {
		current *store.Demanda
		patch   store.DemandaPatch
	}
	cat := s.catalog()
	plan := make([]pending, 0, len(edits))
	fields := make(map[string]string)

	for _, e := range edits {
		current, err := s.store.GetDemanda(ctx, e.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return 0, fmt.Errorf("demanda %d: %w", e.ID, err)
			}
			return 0, err
		}
		patch := normalizePatch(e.Patch)
		if res := validation.ValidateDemandaPatch(patch, *current, cat); !res.Valid {
			for f, msg := range res.Errors {
				fields[fmt.Sprintf("%d.%s", e.ID, f)] = msg
			}
			continue
		}
		plan = append(plan, pending{current, patch})
	}
	if len(fields) > 0 {
		return 0, &ValidationError{Fields: fields}
	}

	changed := 0
	for _, p := range plan {
		_, ok, err := s.write(ctx, p.current, p.patch)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

func (s *Service) write(ctx context.Context, current *store.Demanda, patch store.DemandaPatch) (*store.Demanda, bool, error) {
	before := audit.StateOf(current)
	changes := audit.ComputeChanges(before, audit.StateOf(patch.Apply(*current)))
	if changes == nil {
		return current, false, nil
	}

	updated, err := s.store.UpdateDemanda(ctx, current.ID, patch)
	if err != nil {
		return nil, false, fmt.Errorf("update demanda %d: %w", current.ID, err)
	}

	after := audit.StateOf(updated)
	id := strconv.FormatInt(updated.ID, 10)
	s.logAudit(audit.NewEventBuilder(ctx).
		ForResource(audit.ResourceTypeDemanda, id).
		WithAction(audit.ActionUpdated).
		WithBeforeState(before).
		WithAfterState(after).
		WithChanges(changes).
		Build())
	s.dispatch(webhook.NewEventBuilder(ctx).
		ForResource(audit.ResourceTypeDemanda, id).
		WithStates(before, after).
		WithChanges(changes).
		Build())
	return updated, true, nil
}

func normalizePatch(p store.DemandaPatch) store.DemandaPatch {
	if p.CPF != nil {
		cpf := validation.Digits(*p.CPF)
		p.CPF = &cpf
	}
	if p.NumeroProcesso != nil {
		procs := make([]string, 0, len(*p.NumeroProcesso))
		for _, n := range *p.NumeroProcesso {
			if n = strings.TrimSpace(n); n != "" {
				procs = append(procs, n)
			}
		}
		p.NumeroProcesso = &procs
	}
	return p
}

func (s *Service) logAudit(e audit.AuditEvent) {
	if s.audit != nil {
		s.audit.Log(e)
	}
}

func (s *Service) dispatch(e webhook.Event) {
	if s.events != nil {
		s.events.Dispatch(e)
	}
}
