package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/TimurManjosov/triagem/internal/catalog"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for persistence of demandas, means-test
// analyses and the audit trail.
// Implementations must be thread-safe and support concurrent access.
type Store interface {
	// CreateDemanda inserts a new demanda and returns it with its ID.
	CreateDemanda(ctx context.Context, params CreateDemandaParams) (*Demanda, error)

	// GetDemanda retrieves a single demanda by ID.
	// Returns ErrNotFound if the demanda does not exist.
	GetDemanda(ctx context.Context, id int64) (*Demanda, error)

	// ListDemandas returns the demandas matching filter, newest first.
	// Returns an empty slice if nothing matches.
	ListDemandas(ctx context.Context, filter DemandaFilter) ([]Demanda, error)

	// UpdateDemanda writes the fields set in patch and returns the result.
	// Returns ErrNotFound if the demanda does not exist.
	UpdateDemanda(ctx context.Context, id int64, patch DemandaPatch) (*Demanda, error)

	// SaveAnalise records a means-test verdict.
	SaveAnalise(ctx context.Context, params SaveAnaliseParams) (*Analise, error)

	// ListAnalises returns the analyses of one subject document, newest first.
	ListAnalises(ctx context.Context, documento string) ([]Analise, error)

	// CountAnalises aggregates every recorded analysis by reason.
	CountAnalises(ctx context.Context) (AnaliseCounts, error)

	// WriteAuditLog appends an entry to the audit trail.
	WriteAuditLog(ctx context.Context, entry AuditLog) error

	// ListAuditLogs returns audit entries, newest first.
	ListAuditLogs(ctx context.Context, limit, offset int) ([]AuditLog, error)

	// Close releases any resources held by the store.
	// After Close is called, the store should not be used.
	Close() error
}

// Demanda is a registered service request.
type Demanda struct {
	ID             int64    `json:"id" yaml:"id"`
	Servidor       string   `json:"servidor" yaml:"servidor"`
	Defensor       string   `json:"defensor" yaml:"defensor"`
	NomeAssistido  string   `json:"nomeAssistido" yaml:"nome_assistido"`
	CPF            string   `json:"cpf" yaml:"cpf"`
	Codigo         string   `json:"codigo" yaml:"codigo"`
	Descricao      string   `json:"demanda" yaml:"demanda"`
	SelecaoDemanda []string `json:"selecaoDemanda" yaml:"selecao_demanda"`
	Status         string   `json:"status" yaml:"status"`
	Data           string   `json:"data" yaml:"data"`       // dd/mm/yyyy
	Horario        string   `json:"horario" yaml:"horario"` // HH:MM:SS
	NumeroProcesso []string `json:"numeroProcesso" yaml:"numero_processo"`
}

// CreateDemandaParams contains the fields of a new demanda.
type CreateDemandaParams struct {
	Servidor       string   `json:"servidor"`
	Defensor       string   `json:"defensor"`
	NomeAssistido  string   `json:"nomeAssistido"`
	CPF            string   `json:"cpf"`
	Codigo         string   `json:"codigo"`
	Descricao      string   `json:"demanda"`
	SelecaoDemanda []string `json:"selecaoDemanda,omitempty"`
	Status         string   `json:"status"`
	Data           string   `json:"data"`
	Horario        string   `json:"horario"`
	NumeroProcesso []string `json:"numeroProcesso,omitempty"`
}

// DemandaPatch lists the fields to change; nil fields are left untouched.
type DemandaPatch struct {
	Servidor       *string   `json:"servidor,omitempty"`
	Defensor       *string   `json:"defensor,omitempty"`
	NomeAssistido  *string   `json:"nomeAssistido,omitempty"`
	CPF            *string   `json:"cpf,omitempty"`
	Codigo         *string   `json:"codigo,omitempty"`
	Descricao      *string   `json:"demanda,omitempty"`
	SelecaoDemanda *[]string `json:"selecaoDemanda,omitempty"`
	Status         *string   `json:"status,omitempty"`
	Data           *string   `json:"data,omitempty"`
	Horario        *string   `json:"horario,omitempty"`
	NumeroProcesso *[]string `json:"numeroProcesso,omitempty"`
}

// DemandaFilter narrows ListDemandas. Empty fields are ignored.
type DemandaFilter struct {
	Nome     string // case-insensitive substring of nome_assistido
	CPF      string // substring of the digits-only CPF
	Defensor string // exact match
	Limit    int    // 0 means no limit
}

// Analise is a persisted means-test verdict.
type Analise struct {
	ID               int64     `json:"id"`
	Documento        string    `json:"documento"`
	TipoPessoa       string    `json:"tipoPessoa"`
	Vulnerabilidades []string  `json:"vulnerabilidades"`
	Detalhes         string    `json:"detalhes"`
	Resultado        bool      `json:"resultado"`
	Motivo           string    `json:"motivo"`
	Explicacao       string    `json:"explicacao"`
	DataAnalise      time.Time `json:"dataAnalise"`
}

// SaveAnaliseParams contains the fields of a new analysis.
type SaveAnaliseParams struct {
	Documento        string
	TipoPessoa       string
	Vulnerabilidades []string
	Detalhes         string
	Resultado        bool
	Motivo           string
	Explicacao       string
	DataAnalise      time.Time
}

// AnaliseCounts aggregates recorded analyses.
type AnaliseCounts struct {
	Total    int            `json:"total"`
	Approved int            `json:"approved"`
	ByMotivo map[string]int `json:"byMotivo"`
}

func (c *AnaliseCounts) add(motivo string, approved bool, n int) {
	if c.ByMotivo == nil {
		c.ByMotivo = make(map[string]int)
	}
	c.Total += n
	c.ByMotivo[motivo] += n
	if approved {
		c.Approved += n
	}
}

// AuditLog is one persisted audit event.
type AuditLog struct {
	ID           int64          `json:"id"`
	OccurredAt   time.Time      `json:"occurredAt"`
	RequestID    string         `json:"requestId,omitempty"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resourceType"`
	ResourceID   string         `json:"resourceId"`
	Status       string         `json:"status"`
	BeforeState  map[string]any `json:"beforeState,omitempty"`
	AfterState   map[string]any `json:"afterState,omitempty"`
	Changes      map[string]any `json:"changes,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// Separators used by the legacy demandas table for list columns.
const (
	processoSeparator = ";"
	selecaoSeparator  = catalog.SelectionSeparator
)

func joinList(items []string, sep string) string {
	return strings.Join(items, sep)
}

func splitList(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// column is one SET assignment of an UPDATE.
type column struct {
	name  string
	value any
}

// columns returns the assignments for the fields set in p, in table order.
// Column names come from this fixed list only.
func (p DemandaPatch) columns() []column {
	var cols []column
	add := func(name string, v *string) {
		if v != nil {
			cols = append(cols, column{name, *v})
		}
	}
	add("servidor", p.Servidor)
	add("defensor", p.Defensor)
	add("nome_assistido", p.NomeAssistido)
	add("cpf", p.CPF)
	add("codigo", p.Codigo)
	add("demanda", p.Descricao)
	if p.SelecaoDemanda != nil {
		cols = append(cols, column{"selecao_demanda", joinList(*p.SelecaoDemanda, selecaoSeparator)})
	}
	add("status", p.Status)
	add("data", p.Data)
	add("horario", p.Horario)
	if p.NumeroProcesso != nil {
		cols = append(cols, column{"numero_processo", joinList(*p.NumeroProcesso, processoSeparator)})
	}
	return cols
}

// IsEmpty reports whether the patch changes nothing.
func (p DemandaPatch) IsEmpty() bool { return len(p.columns()) == 0 }

// Apply returns d with the patch applied.
func (p DemandaPatch) Apply(d Demanda) Demanda {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&d.Servidor, p.Servidor)
	set(&d.Defensor, p.Defensor)
	set(&d.NomeAssistido, p.NomeAssistido)
	set(&d.CPF, p.CPF)
	set(&d.Codigo, p.Codigo)
	set(&d.Descricao, p.Descricao)
	if p.SelecaoDemanda != nil {
		d.SelecaoDemanda = append([]string{}, (*p.SelecaoDemanda)...)
	}
	set(&d.Status, p.Status)
	set(&d.Data, p.Data)
	set(&d.Horario, p.Horario)
	if p.NumeroProcesso != nil {
		d.NumeroProcesso = append([]string{}, (*p.NumeroProcesso)...)
	}
	return d
}

// buildUpdate renders "col = <ph>, ..." for the patch. placeholder maps the
// 1-based argument position to the driver's placeholder syntax.
func buildUpdate(p DemandaPatch, placeholder func(n int) string) (string, []any) {
	cols := p.columns()
	sets := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		sets[i] = c.name + " = " + placeholder(i+1)
		args[i] = c.value
	}
	return strings.Join(sets, ", "), args
}

// matchesFilter applies f in Go. Backends without Unicode-aware
// case folding use it for the name filter.
func matchesFilter(d Demanda, f DemandaFilter) bool {
	if f.Nome != "" && !strings.Contains(strings.ToLower(d.NomeAssistido), strings.ToLower(f.Nome)) {
		return false
	}
	if f.CPF != "" && !strings.Contains(d.CPF, f.CPF) {
		return false
	}
	if f.Defensor != "" && d.Defensor != f.Defensor {
		return false
	}
	return true
}

func demandaFromParams(id int64, p CreateDemandaParams) Demanda {
	sel := p.SelecaoDemanda
	if sel == nil {
		sel = []string{}
	}
	proc := p.NumeroProcesso
	if proc == nil {
		proc = []string{}
	}
	return Demanda{
		ID:             id,
		Servidor:       p.Servidor,
		Defensor:       p.Defensor,
		NomeAssistido:  p.NomeAssistido,
		CPF:            p.CPF,
		Codigo:         p.Codigo,
		Descricao:      p.Descricao,
		SelecaoDemanda: append([]string{}, sel...),
		Status:         p.Status,
		Data:           p.Data,
		Horario:        p.Horario,
		NumeroProcesso: append([]string{}, proc...),
	}
}
