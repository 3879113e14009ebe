// Package intake models the registration form as an immutable Draft and
// keeps drafts between requests in a session store until they are confirmed.
package intake

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/TimurManjosov/triagem/internal/catalog"
	"github.com/TimurManjosov/triagem/internal/demanda"
	"github.com/TimurManjosov/triagem/internal/store"
	"github.com/TimurManjosov/triagem/internal/validation"
)

var (
	ErrAwaitingConfirmation    = errors.New("draft is awaiting confirmation")
	ErrNotAwaitingConfirmation = errors.New("draft has not been submitted")
	ErrProcessoIndex           = errors.New("process index out of range")
	ErrFirstProcesso           = errors.New("the first process entry cannot be removed")
	ErrUnknownDefensor         = errors.New("unknown defensor")
)

// Draft is the state of one registration form. Every operation returns a
// new Draft and leaves the receiver untouched.
type Draft struct {
	ID             string   `json:"id"`
	Defensor       string   `json:"defensor"`
	Servidor       string   `json:"servidor"`
	ServidorPinned bool     `json:"servidorPinned"`
	NomeAssistido  string   `json:"nomeAssistido"`
	CPF            string   `json:"cpf"`
	Codigo         string   `json:"codigo"`
	Processos      []string `json:"processos"`
	Descricao      string   `json:"demanda"`
	SelecaoDemanda []string `json:"selecaoDemanda"`

	AwaitingConfirmation bool                       `json:"awaitingConfirmation"`
	Pending              *store.CreateDemandaParams `json:"pending,omitempty"`
}

// FieldUpdate lists form fields to overwrite; nil fields are kept.
type FieldUpdate struct {
	Defensor       *string   `json:"defensor,omitempty"`
	Servidor       *string   `json:"servidor,omitempty"`
	NomeAssistido  *string   `json:"nomeAssistido,omitempty"`
	CPF            *string   `json:"cpf,omitempty"`
	Codigo         *string   `json:"codigo,omitempty"`
	Descricao      *string   `json:"demanda,omitempty"`
	SelecaoDemanda *[]string `json:"selecaoDemanda,omitempty"`
}

// NewDraft starts an empty form for defensor with one blank process entry.
func NewDraft(id, defensor string, c catalog.Catalog) (Draft, error) {
	if defensor != "" && !c.HasDefensor(defensor) {
		return Draft{}, fmt.Errorf("%w: %q", ErrUnknownDefensor, defensor)
	}
	return Draft{
		ID:             id,
		Defensor:       defensor,
		Processos:      []string{""},
		SelecaoDemanda: []string{},
	}, nil
}

func (d Draft) clone() Draft {
	d.Processos = slices.Clone(d.Processos)
	d.SelecaoDemanda = slices.Clone(d.SelecaoDemanda)
	if d.Pending != nil {
		p := *d.Pending
		p.SelecaoDemanda = slices.Clone(p.SelecaoDemanda)
		p.NumeroProcesso = slices.Clone(p.NumeroProcesso)
		d.Pending = &p
	}
	return d
}

func (d Draft) editable() error {
	if d.AwaitingConfirmation {
		return ErrAwaitingConfirmation
	}
	return nil
}

// WithFields overwrites the fields set in u.
func (d Draft) WithFields(u FieldUpdate) (Draft, error) {
	if err := d.editable(); err != nil {
		return d, err
	}
	n := d.clone()
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&n.Defensor, u.Defensor)
	set(&n.Servidor, u.Servidor)
	set(&n.NomeAssistido, u.NomeAssistido)
	set(&n.CPF, u.CPF)
	set(&n.Codigo, u.Codigo)
	set(&n.Descricao, u.Descricao)
	if u.SelecaoDemanda != nil {
		n.SelecaoDemanda = slices.Clone(*u.SelecaoDemanda)
	}
	return n, nil
}

// PinServidor keeps the servidor across resets when pinned.
func (d Draft) PinServidor(pinned bool) Draft {
	n := d.clone()
	n.ServidorPinned = pinned
	return n
}

// AddProcesso appends a blank process entry.
func (d Draft) AddProcesso() (Draft, error) {
	if err := d.editable(); err != nil {
		return d, err
	}
	n := d.clone()
	n.Processos = append(n.Processos, "")
	return n, nil
}

// SetProcesso replaces entry i.
func (d Draft) SetProcesso(i int, value string) (Draft, error) {
	if err := d.editable(); err != nil {
		return d, err
	}
	if i < 0 || i >= len(d.Processos) {
		return d, fmt.Errorf("%w: %d", ErrProcessoIndex, i)
	}
	n := d.clone()
	n.Processos[i] = value
	return n, nil
}

// RemoveProcesso deletes entry i; later entries shift down. Entry 0 stays.
func (d Draft) RemoveProcesso(i int) (Draft, error) {
	if err := d.editable(); err != nil {
		return d, err
	}
	if i == 0 {
		return d, ErrFirstProcesso
	}
	if i < 0 || i >= len(d.Processos) {
		return d, fmt.Errorf("%w: %d", ErrProcessoIndex, i)
	}
	n := d.clone()
	n.Processos = slices.Delete(n.Processos, i, i+1)
	return n, nil
}

// Submit checks the form and moves it to awaiting confirmation. The
// returned draft carries the params that Confirm will save.
func (d Draft) Submit(c catalog.Catalog, now time.Time) (Draft, error) {
	if err := d.editable(); err != nil {
		return d, err
	}

	processos := make([]string, 0, len(d.Processos))
	for _, p := range d.Processos {
		if p = strings.TrimSpace(p); p != "" {
			processos = append(processos, p)
		}
	}
	params := store.CreateDemandaParams{
		Servidor:       d.Servidor,
		Defensor:       d.Defensor,
		NomeAssistido:  strings.TrimSpace(d.NomeAssistido),
		CPF:            validation.Digits(d.CPF),
		Codigo:         strings.TrimSpace(d.Codigo),
		Descricao:      strings.TrimSpace(d.Descricao),
		SelecaoDemanda: slices.Clone(d.SelecaoDemanda),
		Status:         catalog.StatusPendente,
		Data:           now.Format(validation.DateLayout),
		Horario:        now.Format(validation.TimeLayout),
		NumeroProcesso: processos,
	}
	if res := validation.ValidateDemanda(params, c); !res.Valid {
		return d, &demanda.ValidationError{Fields: res.Errors}
	}

	n := d.clone()
	n.AwaitingConfirmation = true
	n.Pending = &params
	return n, nil
}

// Cancel returns a submitted draft to editing.
func (d Draft) Cancel() (Draft, error) {
	if !d.AwaitingConfirmation {
		return d, ErrNotAwaitingConfirmation
	}
	n := d.clone()
	n.AwaitingConfirmation = false
	n.Pending = nil
	return n, nil
}

// Reset clears the form after a save. The defensor stays, and so does the
// servidor when pinned.
func (d Draft) Reset() Draft {
	n := Draft{
		ID:             d.ID,
		Defensor:       d.Defensor,
		ServidorPinned: d.ServidorPinned,
		Processos:      []string{""},
		SelecaoDemanda: []string{},
	}
	if d.ServidorPinned {
		n.Servidor = d.Servidor
	}
	return n
}
