package validation

import (
	"strings"
	"testing"

	"github.com/TimurManjosov/triagem/internal/catalog"
	"github.com/TimurManjosov/triagem/internal/store"
)

func validParams() store.CreateDemandaParams {
	return store.CreateDemandaParams{
		Servidor:       "THAIS",
		Defensor:       "Dra. Ana Carolina 1DP",
		NomeAssistido:  "Maria da Silva",
		CPF:            "52998224725",
		Codigo:         "2025-001",
		Descricao:      "Ação de alimentos",
		SelecaoDemanda: []string{"Alimentos"},
		Status:         catalog.StatusPendente,
		Data:           "05/03/2025",
		Horario:        "09:15:00",
		NumeroProcesso: []string{"8000001-11.2025.8.05.0001"},
	}
}

func TestValidateDemanda(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *store.CreateDemandaParams)
		wantField string
	}{
		{"valid", func(p *store.CreateDemandaParams) {}, ""},
		{"missing servidor", func(p *store.CreateDemandaParams) { p.Servidor = " " }, "servidor"},
		{"unknown servidor", func(p *store.CreateDemandaParams) { p.Servidor = "FULANO" }, "servidor"},
		{"unknown defensor", func(p *store.CreateDemandaParams) { p.Defensor = "Dr. Ninguém" }, "defensor"},
		{"missing nome", func(p *store.CreateDemandaParams) { p.NomeAssistido = "" }, "nomeAssistido"},
		{"nome too long", func(p *store.CreateDemandaParams) { p.NomeAssistido = strings.Repeat("a", MaxNomeLength+1) }, "nomeAssistido"},
		{"control chars", func(p *store.CreateDemandaParams) { p.NomeAssistido = "Ana\x00" }, "nomeAssistido"},
		{"missing codigo", func(p *store.CreateDemandaParams) { p.Codigo = "" }, "codigo"},
		{"missing demanda", func(p *store.CreateDemandaParams) { p.Descricao = "\n" }, "demanda"},
		{"cpf with punctuation", func(p *store.CreateDemandaParams) { p.CPF = "529.982.247-25" }, "cpf"},
		{"short cpf", func(p *store.CreateDemandaParams) { p.CPF = "123" }, "cpf"},
		{"empty cpf allowed", func(p *store.CreateDemandaParams) { p.CPF = "" }, ""},
		{"bad status", func(p *store.CreateDemandaParams) { p.Status = "Perdida" }, "status"},
		{"selection without quick list", func(p *store.CreateDemandaParams) { p.Defensor = "Orientação" }, "selecaoDemanda"},
		{"unknown selection", func(p *store.CreateDemandaParams) { p.SelecaoDemanda = []string{"Usucapião marciano"} }, "selecaoDemanda"},
		{"blank processo", func(p *store.CreateDemandaParams) { p.NumeroProcesso = []string{"1", " "} }, "numeroProcesso"},
		{"separator in processo", func(p *store.CreateDemandaParams) { p.NumeroProcesso = []string{"1;2"} }, "numeroProcesso"},
		{"no processos allowed", func(p *store.CreateDemandaParams) { p.NumeroProcesso = nil }, ""},
		{"bad date", func(p *store.CreateDemandaParams) { p.Data = "2025-03-05" }, "data"},
		{"impossible date", func(p *store.CreateDemandaParams) { p.Data = "31/02/2025" }, "data"},
		{"bad time", func(p *store.CreateDemandaParams) { p.Horario = "9h15" }, "horario"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			result := ValidateDemanda(p, catalog.Default())

			if tt.wantField == "" {
				if !result.Valid {
					t.Fatalf("expected valid, got errors %v", result.Errors)
				}
				return
			}
			if result.Valid {
				t.Fatalf("expected error on %s", tt.wantField)
			}
			if _, ok := result.Errors[tt.wantField]; !ok {
				t.Errorf("expected error on %s, got %v", tt.wantField, result.Errors)
			}
		})
	}
}

func TestValidateDemandaPatch_UsesCurrentDefensor(t *testing.T) {
	current := store.Demanda{Defensor: "Orientação"}
	sel := []string{"Alimentos"}

	result := ValidateDemandaPatch(store.DemandaPatch{SelecaoDemanda: &sel}, current, catalog.Default())
	if result.Valid {
		t.Fatal("quick selections must be rejected for a defensor without them")
	}

	defensor := "Dra. Ana Carolina 1DP"
	result = ValidateDemandaPatch(store.DemandaPatch{SelecaoDemanda: &sel, Defensor: &defensor}, current, catalog.Default())
	if !result.Valid {
		t.Fatalf("expected valid after switching defensor, got %v", result.Errors)
	}
}

func TestValidateDemandaPatch_OnlySetFields(t *testing.T) {
	status := "Concluída"
	result := ValidateDemandaPatch(store.DemandaPatch{Status: &status}, store.Demanda{}, catalog.Default())
	if !result.Valid {
		t.Fatalf("expected valid, got %v", result.Errors)
	}
}

func TestNormalizeDocumento(t *testing.T) {
	tests := []struct {
		raw      string
		want     string
		wantKind DocumentKind
		wantErr  bool
	}{
		{"529.982.247-25", "52998224725", DocumentCPF, false},
		{"11.222.333/0001-81", "11222333000181", DocumentCNPJ, false},
		{"529.982.247-26", "", "", true},
		{"111.111.111-11", "", "", true},
		{"11.222.333/0001-82", "", "", true},
		{"1234", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, kind, err := NormalizeDocumento(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeDocumento(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if got != tt.want || kind != tt.wantKind {
				t.Errorf("NormalizeDocumento(%q) = %q, %q", tt.raw, got, kind)
			}
		})
	}
}

func TestDigits(t *testing.T) {
	if got := Digits(" 123.456-7 a٣"); got != "1234567" {
		t.Errorf("Digits() = %q", got)
	}
}

func TestValidationResult_Merge(t *testing.T) {
	a := NewValidationResult()
	b := NewValidationResult()
	b.AddError("x", "bad")
	a.Merge(b)
	a.Merge(nil)
	if a.Valid || a.Errors["x"] != "bad" {
		t.Errorf("Merge did not carry errors: %+v", a)
	}
}
