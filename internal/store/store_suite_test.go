package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func ptr[T any](v T) *T { return &v }

func sampleDemanda(nome, cpf, defensor string) CreateDemandaParams {
	return CreateDemandaParams{
		Servidor:       "THAIS",
		Defensor:       defensor,
		NomeAssistido:  nome,
		CPF:            cpf,
		Codigo:         "A-1",
		Descricao:      "Pedido de pensão",
		SelecaoDemanda: []string{"Alimentos", "Curatela"},
		Status:         "Pendente",
		Data:           "05/03/2025",
		Horario:        "14:03:09",
		NumeroProcesso: []string{"0800001-11.2025.8.05.0001", "0800002-22.2025.8.05.0001"},
	}
}

// testStore exercises the Store contract; every backend runs it.
func testStore(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		created, err := s.CreateDemanda(ctx, sampleDemanda("Maria José", "12345678901", "Orientação"))
		if err != nil {
			t.Fatalf("CreateDemanda failed: %v", err)
		}
		if created.ID == 0 {
			t.Fatal("Expected non-zero ID")
		}

		got, err := s.GetDemanda(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetDemanda failed: %v", err)
		}
		if got.NomeAssistido != "Maria José" || got.CPF != "12345678901" {
			t.Errorf("Unexpected demanda: %+v", got)
		}
		if len(got.NumeroProcesso) != 2 || got.NumeroProcesso[1] != "0800002-22.2025.8.05.0001" {
			t.Errorf("Expected 2 process numbers, got %v", got.NumeroProcesso)
		}
		if len(got.SelecaoDemanda) != 2 || got.SelecaoDemanda[0] != "Alimentos" {
			t.Errorf("Expected quick selections to round-trip, got %v", got.SelecaoDemanda)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetDemanda(context.Background(), 999)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, p := range []CreateDemandaParams{
			sampleDemanda("ÁLVARO Souza", "11122233344", "Dr. Caio Cesar 2DP"),
			sampleDemanda("Beatriz Lima", "55566677788", "Orientação"),
			sampleDemanda("álvaro Neto", "11199900011", "Orientação"),
		} {
			if _, err := s.CreateDemanda(ctx, p); err != nil {
				t.Fatalf("CreateDemanda failed: %v", err)
			}
		}

		all, err := s.ListDemandas(ctx, DemandaFilter{})
		if err != nil {
			t.Fatalf("ListDemandas failed: %v", err)
		}
		if len(all) != 3 || all[0].NomeAssistido != "álvaro Neto" {
			t.Fatalf("Expected 3 demandas newest first, got %+v", all)
		}

		byName, _ := s.ListDemandas(ctx, DemandaFilter{Nome: "álvaro"})
		if len(byName) != 2 {
			t.Errorf("Expected case-insensitive name match on 2 rows, got %d", len(byName))
		}

		byCPF, _ := s.ListDemandas(ctx, DemandaFilter{CPF: "111"})
		if len(byCPF) != 2 {
			t.Errorf("Expected CPF substring match on 2 rows, got %d", len(byCPF))
		}

		combined, _ := s.ListDemandas(ctx, DemandaFilter{CPF: "111", Defensor: "Orientação"})
		if len(combined) != 1 || combined[0].NomeAssistido != "álvaro Neto" {
			t.Errorf("Expected one combined match, got %+v", combined)
		}

		limited, _ := s.ListDemandas(ctx, DemandaFilter{Limit: 2})
		if len(limited) != 2 {
			t.Errorf("Expected limit 2, got %d", len(limited))
		}

		none, _ := s.ListDemandas(ctx, DemandaFilter{Nome: "ninguém"})
		if none == nil || len(none) != 0 {
			t.Errorf("Expected empty non-nil slice, got %#v", none)
		}
	})

	t.Run("UpdateWritesOnlySetFields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		created, _ := s.CreateDemanda(ctx, sampleDemanda("Carla", "", "Orientação"))

		updated, err := s.UpdateDemanda(ctx, created.ID, DemandaPatch{
			Status:         ptr("Concluída"),
			NumeroProcesso: ptr([]string{"123"}),
		})
		if err != nil {
			t.Fatalf("UpdateDemanda failed: %v", err)
		}
		if updated.Status != "Concluída" {
			t.Errorf("Expected status Concluída, got %s", updated.Status)
		}
		if len(updated.NumeroProcesso) != 1 || updated.NumeroProcesso[0] != "123" {
			t.Errorf("Expected process list [123], got %v", updated.NumeroProcesso)
		}
		if updated.NomeAssistido != "Carla" || updated.Codigo != "A-1" {
			t.Errorf("Untouched fields changed: %+v", updated)
		}

		same, err := s.UpdateDemanda(ctx, created.ID, DemandaPatch{})
		if err != nil {
			t.Fatalf("Empty patch failed: %v", err)
		}
		if same.Status != "Concluída" {
			t.Errorf("Empty patch should return current row, got %+v", same)
		}

		if _, err := s.UpdateDemanda(ctx, 999, DemandaPatch{Status: ptr("x")}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Analises", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Date(2025, 3, 5, 10, 0, 0, 0, time.UTC)

		for i, motivo := range []string{"ECONOMIC_CRITERION", "INCOME_EXCEEDS_LIMIT"} {
			_, err := s.SaveAnalise(ctx, SaveAnaliseParams{
				Documento:        "12345678901",
				TipoPessoa:       "pessoa_fisica",
				Vulnerabilidades: []string{"idoso"},
				Resultado:        i == 0,
				Motivo:           motivo,
				Explicacao:       "texto",
				DataAnalise:      base.Add(time.Duration(i) * time.Hour),
			})
			if err != nil {
				t.Fatalf("SaveAnalise failed: %v", err)
			}
		}
		if _, err := s.SaveAnalise(ctx, SaveAnaliseParams{Documento: "other", TipoPessoa: "pessoa_fisica", DataAnalise: base}); err != nil {
			t.Fatalf("SaveAnalise failed: %v", err)
		}

		list, err := s.ListAnalises(ctx, "12345678901")
		if err != nil {
			t.Fatalf("ListAnalises failed: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("Expected 2 analyses, got %d", len(list))
		}
		if list[0].Motivo != "INCOME_EXCEEDS_LIMIT" || list[0].Resultado {
			t.Errorf("Expected newest first, got %+v", list[0])
		}
		if !list[1].DataAnalise.Equal(base) {
			t.Errorf("Expected timestamp %v, got %v", base, list[1].DataAnalise)
		}
		if len(list[1].Vulnerabilidades) != 1 || list[1].Vulnerabilidades[0] != "idoso" {
			t.Errorf("Expected vulnerabilities to round-trip, got %v", list[1].Vulnerabilidades)
		}

		counts, err := s.CountAnalises(ctx)
		if err != nil {
			t.Fatalf("CountAnalises failed: %v", err)
		}
		if counts.Total != 3 || counts.Approved != 1 {
			t.Errorf("Expected 3 total / 1 approved, got %+v", counts)
		}
		if counts.ByMotivo["ECONOMIC_CRITERION"] != 1 || counts.ByMotivo["INCOME_EXCEEDS_LIMIT"] != 1 {
			t.Errorf("Unexpected per-reason counts: %v", counts.ByMotivo)
		}
	})

	t.Run("AuditLogs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, action := range []string{"create", "update", "confirm"} {
			err := s.WriteAuditLog(ctx, AuditLog{
				OccurredAt:   time.Now(),
				Actor:        "admin",
				Action:       action,
				ResourceType: "demanda",
				ResourceID:   "1",
				Status:       "success",
				Changes:      map[string]any{"status": map[string]any{"before": "Pendente", "after": "Concluída"}},
			})
			if err != nil {
				t.Fatalf("WriteAuditLog failed: %v", err)
			}
		}

		logs, err := s.ListAuditLogs(ctx, 2, 0)
		if err != nil {
			t.Fatalf("ListAuditLogs failed: %v", err)
		}
		if len(logs) != 2 || logs[0].Action != "confirm" {
			t.Fatalf("Expected 2 newest logs, got %+v", logs)
		}
		if logs[0].Changes == nil {
			t.Error("Expected changes to round-trip")
		}

		page2, _ := s.ListAuditLogs(ctx, 2, 2)
		if len(page2) != 1 || page2[0].Action != "create" {
			t.Errorf("Expected oldest log on page 2, got %+v", page2)
		}
	})
}
