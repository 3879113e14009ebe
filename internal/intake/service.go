package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TimurManjosov/triagem/internal/audit"
	"github.com/TimurManjosov/triagem/internal/catalog"
	"github.com/TimurManjosov/triagem/internal/demanda"
	"github.com/TimurManjosov/triagem/internal/session"
	"github.com/TimurManjosov/triagem/internal/store"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired drafts.
var ErrSessionNotFound = errors.New("intake session not found")

// Service keeps drafts in a session store and saves confirmed ones
// through the demanda service.
type Service struct {
	sessions session.Store
	demandas *demanda.Service
	audit    demanda.AuditLogger
	catalog  func() catalog.Catalog
	now      func() time.Time
	newID    func() string
}

// NewService creates a Service. auditor may be nil.
func NewService(sessions session.Store, demandas *demanda.Service, auditor demanda.AuditLogger) *Service {
	return &Service{
		sessions: sessions,
		demandas: demandas,
		audit:    auditor,
		catalog:  func() catalog.Catalog { return catalog.Load().Catalog },
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Create opens a new draft for defensor.
func (s *Service) Create(ctx context.Context, defensor string) (Draft, error) {
	d, err := NewDraft(s.newID(), defensor, s.catalog())
	if err != nil {
		return Draft{}, err
	}
	if err := s.save(ctx, d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Get loads a draft.
func (s *Service) Get(ctx context.Context, id string) (Draft, error) {
	data, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Draft{}, ErrSessionNotFound
		}
		return Draft{}, fmt.Errorf("load intake session: %w", err)
	}
	return decodeDraft(id, data)
}

// Update overwrites form fields.
func (s *Service) Update(ctx context.Context, id string, u FieldUpdate) (Draft, error) {
	return s.mutate(ctx, id, func(d Draft) (Draft, error) { return d.WithFields(u) })
}

// Pin pins or unpins the servidor.
func (s *Service) Pin(ctx context.Context, id string, pinned bool) (Draft, error) {
	return s.mutate(ctx, id, func(d Draft) (Draft, error) { return d.PinServidor(pinned), nil })
}

// AddProcesso appends a blank process entry.
func (s *Service) AddProcesso(ctx context.Context, id string) (Draft, error) {
	return s.mutate(ctx, id, Draft.AddProcesso)
}

// SetProcesso replaces process entry i.
func (s *Service) SetProcesso(ctx context.Context, id string, i int, value string) (Draft, error) {
	return s.mutate(ctx, id, func(d Draft) (Draft, error) { return d.SetProcesso(i, value) })
}

// RemoveProcesso deletes process entry i.
func (s *Service) RemoveProcesso(ctx context.Context, id string, i int) (Draft, error) {
	return s.mutate(ctx, id, func(d Draft) (Draft, error) { return d.RemoveProcesso(i) })
}

// Submit validates the draft and holds it for confirmation.
func (s *Service) Submit(ctx context.Context, id string) (Draft, error) {
	return s.mutate(ctx, id, func(d Draft) (Draft, error) { return d.Submit(s.catalog(), s.now()) })
}

// Cancel returns a submitted draft to editing.
func (s *Service) Cancel(ctx context.Context, id string) (Draft, error) {
	return s.mutate(ctx, id, Draft.Cancel)
}

// Confirm saves the pending demanda and resets the draft for the next
// registration. The draft leaves the awaiting state atomically before the
// demanda is created, so concurrent confirms of one submission save it once.
func (s *Service) Confirm(ctx context.Context, id string) (*store.Demanda, Draft, error) {
	var submitted Draft
	next, err := s.mutate(ctx, id, func(d Draft) (Draft, error) {
		if !d.AwaitingConfirmation || d.Pending == nil {
			return d, ErrNotAwaitingConfirmation
		}
		submitted = d
		return d.Reset(), nil
	})
	if err != nil {
		return nil, next, err
	}

	saved, err := s.demandas.Create(ctx, *submitted.Pending)
	if err != nil {
		return nil, s.restore(ctx, submitted, next), err
	}
	if s.audit != nil {
		s.audit.Log(audit.NewEventBuilder(ctx).
			ForResource(audit.ResourceTypeSession, id).
			WithAction(audit.ActionConfirmed).
			WithAfterState(map[string]any{"demandaId": saved.ID}).
			Build())
	}
	return saved, next, nil
}

// restore puts a submission back after a failed save, unless the reset
// draft was edited in the meantime. It returns the draft left in the store.
func (s *Service) restore(ctx context.Context, submitted, reset Draft) Draft {
	want, err := json.Marshal(reset)
	if err != nil {
		return reset
	}
	d, _ := s.mutate(ctx, submitted.ID, func(cur Draft) (Draft, error) {
		got, err := json.Marshal(cur)
		if err != nil || !bytes.Equal(got, want) {
			return cur, errDraftChanged
		}
		return submitted, nil
	})
	return d
}

var errDraftChanged = errors.New("draft changed")

// Delete discards a draft.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.sessions.Delete(ctx, id)
}

// mutate applies op to the stored draft as one atomic session update. On
// error it returns the draft as stored.
func (s *Service) mutate(ctx context.Context, id string, op func(Draft) (Draft, error)) (Draft, error) {
	var cur, next Draft
	_, err := s.sessions.Update(ctx, id, func(data []byte) ([]byte, error) {
		var err error
		if cur, err = decodeDraft(id, data); err != nil {
			return nil, err
		}
		if next, err = op(cur); err != nil {
			return nil, err
		}
		return encodeDraft(next)
	})
	if errors.Is(err, session.ErrNotFound) {
		return Draft{}, ErrSessionNotFound
	}
	if err != nil {
		return cur, err
	}
	return next, nil
}

func (s *Service) save(ctx context.Context, d Draft) error {
	data, err := encodeDraft(d)
	if err != nil {
		return err
	}
	if err := s.sessions.Put(ctx, d.ID, data); err != nil {
		return fmt.Errorf("save intake session: %w", err)
	}
	return nil
}

func encodeDraft(d Draft) ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode intake session: %w", err)
	}
	return data, nil
}

func decodeDraft(id string, data []byte) (Draft, error) {
	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return Draft{}, fmt.Errorf("decode intake session %s: %w", id, err)
	}
	return d, nil
}
