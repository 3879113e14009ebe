package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of the Store interface.
// It uses maps for storage and RWMutex for thread-safe concurrent access.
// This implementation is suitable for development, testing, or single-instance deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	demandas  map[int64]Demanda
	analises  []Analise
	auditLogs []AuditLog
	nextID    int64
	nextAnID  int64
	nextLogID int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		demandas: make(map[int64]Demanda),
	}
}

// CreateDemanda inserts a demanda with the next sequential ID.
func (m *MemoryStore) CreateDemanda(ctx context.Context, params CreateDemandaParams) (*Demanda, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	d := demandaFromParams(m.nextID, params)
	m.demandas[d.ID] = d
	return cloneDemanda(d), nil
}

// GetDemanda retrieves a single demanda by ID.
func (m *MemoryStore) GetDemanda(ctx context.Context, id int64) (*Demanda, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.demandas[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDemanda(d), nil
}

// ListDemandas returns matching demandas ordered by ID descending.
func (m *MemoryStore) ListDemandas(ctx context.Context, filter DemandaFilter) ([]Demanda, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Demanda, 0, len(m.demandas))
	for _, d := range m.demandas {
		if matchesFilter(d, filter) {
			result = append(result, *cloneDemanda(d))
		}
	}
	slices.SortFunc(result, func(a, b Demanda) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// UpdateDemanda applies patch to the stored demanda.
func (m *MemoryStore) UpdateDemanda(ctx context.Context, id int64, patch DemandaPatch) (*Demanda, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.demandas[id]
	if !ok {
		return nil, ErrNotFound
	}
	d = patch.Apply(d)
	m.demandas[id] = d
	return cloneDemanda(d), nil
}

// SaveAnalise appends an analysis.
func (m *MemoryStore) SaveAnalise(ctx context.Context, params SaveAnaliseParams) (*Analise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextAnID++
	a := Analise{
		ID:               m.nextAnID,
		Documento:        params.Documento,
		TipoPessoa:       params.TipoPessoa,
		Vulnerabilidades: append([]string{}, params.Vulnerabilidades...),
		Detalhes:         params.Detalhes,
		Resultado:        params.Resultado,
		Motivo:           params.Motivo,
		Explicacao:       params.Explicacao,
		DataAnalise:      params.DataAnalise.UTC(),
	}
	m.analises = append(m.analises, a)
	return &a, nil
}

// ListAnalises returns the analyses of documento, newest first.
func (m *MemoryStore) ListAnalises(ctx context.Context, documento string) ([]Analise, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Analise, 0)
	for i := len(m.analises) - 1; i >= 0; i-- {
		if m.analises[i].Documento == documento {
			result = append(result, m.analises[i])
		}
	}
	return result, nil
}

// CountAnalises aggregates every analysis.
func (m *MemoryStore) CountAnalises(ctx context.Context) (AnaliseCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := AnaliseCounts{ByMotivo: make(map[string]int)}
	for _, a := range m.analises {
		c.add(a.Motivo, a.Resultado, 1)
	}
	return c, nil
}

// WriteAuditLog appends an audit entry.
func (m *MemoryStore) WriteAuditLog(ctx context.Context, entry AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextLogID++
	entry.ID = m.nextLogID
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	m.auditLogs = append(m.auditLogs, entry)
	return nil
}

// ListAuditLogs returns audit entries, newest first.
func (m *MemoryStore) ListAuditLogs(ctx context.Context, limit, offset int) ([]AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]AuditLog, 0)
	skipped := 0
	for i := len(m.auditLogs) - 1; i >= 0; i-- {
		if skipped < offset {
			skipped++
			continue
		}
		if limit > 0 && len(result) >= limit {
			break
		}
		result = append(result, m.auditLogs[i])
	}
	return result, nil
}

// Close is a no-op for MemoryStore as there are no resources to release.
func (m *MemoryStore) Close() error {
	return nil
}

func cloneDemanda(d Demanda) *Demanda {
	d.SelecaoDemanda = append([]string{}, d.SelecaoDemanda...)
	d.NumeroProcesso = append([]string{}, d.NumeroProcesso...)
	return &d
}
