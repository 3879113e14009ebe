// Package report aggregates demandas and means-test verdicts for the
// office dashboard.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/TimurManjosov/triagem/internal/store"
	"github.com/TimurManjosov/triagem/internal/validation"
)

// Source is the part of store.Store a report reads.
type Source interface {
	ListDemandas(ctx context.Context, filter store.DemandaFilter) ([]store.Demanda, error)
	CountAnalises(ctx context.Context) (store.AnaliseCounts, error)
}

// Filter narrows the demandas counted. Zero values are ignored; From and
// To are inclusive calendar days.
type Filter struct {
	Defensor string
	From     time.Time
	To       time.Time
}

// DayCount is the number of demandas registered on one day.
type DayCount struct {
	Data  string `json:"data"` // dd/mm/yyyy
	Total int    `json:"total"`
}

// Stats is the dashboard payload.
type Stats struct {
	TotalDemandas int            `json:"totalDemandas"`
	PorDefensor   map[string]int `json:"porDefensor"`
	PorStatus     map[string]int `json:"porStatus"`
	PorServidor   map[string]int `json:"porServidor"`
	PorDia        []DayCount     `json:"porDia"`
	Analises      AnaliseStats   `json:"analises"`
}

type AnaliseStats struct {
	Total         int            `json:"total"`
	Aprovadas     int            `json:"aprovadas"`
	TaxaAprovacao float64        `json:"taxaAprovacao"` // 0..1
	PorMotivo     map[string]int `json:"porMotivo"`
}

// Build computes Stats from src.
func Build(ctx context.Context, src Source, f Filter) (*Stats, error) {
	demandas, err := src.ListDemandas(ctx, store.DemandaFilter{Defensor: f.Defensor})
	if err != nil {
		return nil, fmt.Errorf("list demandas: %w", err)
	}

	s := &Stats{
		PorDefensor: make(map[string]int),
		PorStatus:   make(map[string]int),
		PorServidor: make(map[string]int),
		PorDia:      []DayCount{},
	}
	days := make(map[time.Time]int)
	for _, d := range demandas {
		day, err := time.Parse(validation.DateLayout, d.Data)
		dated := err == nil
		if dated && !inRange(day, f) {
			continue
		}
		if !dated && (!f.From.IsZero() || !f.To.IsZero()) {
			continue
		}
		s.TotalDemandas++
		s.PorDefensor[d.Defensor]++
		s.PorStatus[d.Status]++
		s.PorServidor[d.Servidor]++
		if dated {
			days[day]++
		}
	}

	keys := make([]time.Time, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	for _, k := range keys {
		s.PorDia = append(s.PorDia, DayCount{Data: k.Format(validation.DateLayout), Total: days[k]})
	}

	counts, err := src.CountAnalises(ctx)
	if err != nil {
		return nil, fmt.Errorf("count analises: %w", err)
	}
	s.Analises = AnaliseStats{
		Total:     counts.Total,
		Aprovadas: counts.Approved,
		PorMotivo: counts.ByMotivo,
	}
	if s.Analises.PorMotivo == nil {
		s.Analises.PorMotivo = map[string]int{}
	}
	if counts.Total > 0 {
		s.Analises.TaxaAprovacao = float64(counts.Approved) / float64(counts.Total)
	}
	return s, nil
}

func inRange(day time.Time, f Filter) bool {
	if !f.From.IsZero() && day.Before(truncateDay(f.From)) {
		return false
	}
	if !f.To.IsZero() && day.After(truncateDay(f.To)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
