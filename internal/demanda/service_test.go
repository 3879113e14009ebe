package demanda

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/TimurManjosov/triagem/internal/audit"
	"github.com/TimurManjosov/triagem/internal/store"
	"github.com/TimurManjosov/triagem/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	audits []audit.AuditEvent
	events []webhook.Event
}

func (r *recorder) Log(e audit.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, e)
}

func (r *recorder) Dispatch(e webhook.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newTestService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	svc := NewService(store.NewMemoryStore(), rec, rec)
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 9, 15, 30, 0, time.Local) }
	return svc, rec
}

func validParams() store.CreateDemandaParams {
	return store.CreateDemandaParams{
		Servidor:       "THAIS",
		Defensor:       "Dra. Ana Carolina 1DP",
		NomeAssistido:  "Maria da Silva",
		CPF:            "529.982.247-25",
		Codigo:         "2025-001",
		Descricao:      "Revisão de pensão",
		SelecaoDemanda: []string{"Alimentos"},
		NumeroProcesso: []string{"0001234-56.2024.8.05.0001"},
	}
}

func ptr[T any](v T) *T { return &v }

func TestCreate_NormalisesAndDefaults(t *testing.T) {
	svc, rec := newTestService(t)

	d, err := svc.Create(context.Background(), validParams())
	require.NoError(t, err)

	assert.Equal(t, "52998224725", d.CPF)
	assert.Equal(t, "Pendente", d.Status)
	assert.Equal(t, "10/03/2025", d.Data)
	assert.Equal(t, "09:15:30", d.Horario)

	require.Len(t, rec.audits, 1)
	assert.Equal(t, audit.ActionCreated, rec.audits[0].Action)
	assert.Equal(t, "1", rec.audits[0].ResourceID)
	require.Len(t, rec.events, 1)
	assert.Equal(t, webhook.EventDemandaCreated, rec.events[0].Type)
}

func TestCreate_ValidationError(t *testing.T) {
	svc, rec := newTestService(t)

	p := validParams()
	p.Servidor = "NINGUEM"
	p.Defensor = "Dr. Caio Cesar 2DP" // no quick selections
	p.NomeAssistido = "  "

	_, err := svc.Create(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "servidor")
	assert.Contains(t, verr.Fields, "nomeAssistido")
	assert.Contains(t, verr.Fields, "selecaoDemanda")
	assert.Empty(t, rec.audits)
	assert.Empty(t, rec.events)
}

func TestList_FiltersByCPFDigits(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, validParams())
	require.NoError(t, err)
	other := validParams()
	other.NomeAssistido = "João Souza"
	other.CPF = ""
	_, err = svc.Create(ctx, other)
	require.NoError(t, err)

	got, err := svc.List(ctx, store.DemandaFilter{CPF: "529.982"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Maria da Silva", got[0].NomeAssistido)

	got, err = svc.List(ctx, store.DemandaFilter{Nome: " joão "})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "João Souza", got[0].NomeAssistido)
}

func TestUpdate(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()
	d, err := svc.Create(ctx, validParams())
	require.NoError(t, err)

	t.Run("changes are written and audited", func(t *testing.T) {
		updated, changed, err := svc.Update(ctx, d.ID, store.DemandaPatch{Status: ptr("Concluída")})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, "Concluída", updated.Status)

		last := rec.audits[len(rec.audits)-1]
		assert.Equal(t, audit.ActionUpdated, last.Action)
		assert.Contains(t, last.Changes, "status")
		assert.Equal(t, webhook.EventDemandaUpdated, rec.events[len(rec.events)-1].Type)
	})

	t.Run("unchanged patch writes nothing", func(t *testing.T) {
		n := len(rec.audits)
		_, changed, err := svc.Update(ctx, d.ID, store.DemandaPatch{Status: ptr("Concluída")})
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Len(t, rec.audits, n)
	})

	t.Run("cpf is normalised before comparing", func(t *testing.T) {
		_, changed, err := svc.Update(ctx, d.ID, store.DemandaPatch{CPF: ptr("529.982.247-25")})
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("blank process numbers are dropped", func(t *testing.T) {
		updated, changed, err := svc.Update(ctx, d.ID, store.DemandaPatch{
			NumeroProcesso: ptr([]string{"0001234-56.2024.8.05.0001", " ", "0009999-11.2023.8.05.0001"}),
		})
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, []string{"0001234-56.2024.8.05.0001", "0009999-11.2023.8.05.0001"}, updated.NumeroProcesso)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, _, err := svc.Update(ctx, d.ID, store.DemandaPatch{Status: ptr("Perdida")})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("missing demanda", func(t *testing.T) {
		_, _, err := svc.Update(ctx, 999, store.DemandaPatch{Status: ptr("Pendente")})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestBatchUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var ids []int64
	for range 3 {
		d, err := svc.Create(ctx, validParams())
		require.NoError(t, err)
		ids = append(ids, d.ID)
	}

	n, err := svc.BatchUpdate(ctx, []Edit{
		{ID: ids[0], Patch: store.DemandaPatch{Status: ptr("Em andamento")}},
		{ID: ids[1], Patch: store.DemandaPatch{Status: ptr("Pendente")}}, // unchanged
		{ID: ids[2], Patch: store.DemandaPatch{NomeAssistido: ptr("Maria S. Oliveira")}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := svc.Get(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, "Maria S. Oliveira", got.NomeAssistido)
}

func TestBatchUpdate_InvalidRowWritesNothing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	a, err := svc.Create(ctx, validParams())
	require.NoError(t, err)
	b, err := svc.Create(ctx, validParams())
	require.NoError(t, err)

	_, err = svc.BatchUpdate(ctx, []Edit{
		{ID: a.ID, Patch: store.DemandaPatch{Status: ptr("Concluída")}},
		{ID: b.ID, Patch: store.DemandaPatch{CPF: ptr("123")}},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "2.cpf")

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pendente", got.Status)
}

func TestBatchUpdate_UnknownID(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.BatchUpdate(context.Background(), []Edit{{ID: 42, Patch: store.DemandaPatch{Status: ptr("Pendente")}}})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
