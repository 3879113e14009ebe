// Package document fills the office's standard letters from demanda data.
// Output is markdown text; every document carries a verification code
// derived from its body.
package document

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/TimurManjosov/triagem/internal/store"
	"github.com/TimurManjosov/triagem/internal/telemetry"
	"github.com/TimurManjosov/triagem/internal/validation"
	"github.com/cespare/xxhash/v2"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Kind names a document template.
type Kind string

const (
	DeclaracaoComparecimento Kind = "declaracao_comparecimento"
	DeclaracaoResidencia     Kind = "declaracao_residencia"
	CartaConvite             Kind = "carta_convite"
	RequisicaoCRC            Kind = "requisicao_crc"
)

// Kinds returns every supported kind.
func Kinds() []Kind {
	return []Kind{DeclaracaoComparecimento, DeclaracaoResidencia, CartaConvite, RequisicaoCRC}
}

var titles = map[Kind]string{
	DeclaracaoComparecimento: "Declaração de comparecimento",
	DeclaracaoResidencia:     "Declaração de residência",
	CartaConvite:             "Carta convite",
	RequisicaoCRC:            "Requisição de certidão",
}

// Certificate types accepted by RequisicaoCRC.
const (
	CertidaoNascimento = "nascimento"
	CertidaoCasamento  = "casamento"
	CertidaoObito      = "obito"
)

var (
	ErrUnknownKind  = errors.New("unknown document kind")
	ErrMissingField = errors.New("missing required field")
)

// FieldError reports a required field that was empty or invalid.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

func (e *FieldError) Unwrap() error { return ErrMissingField }

// Data is everything a template may use. Office, City and GeneratedAt are
// filled by the Generator.
type Data struct {
	NomeAssistido string    `json:"nomeAssistido"`
	CPF           string    `json:"cpf,omitempty"`
	Defensor      string    `json:"defensor,omitempty"`
	Servidor      string    `json:"servidor,omitempty"`
	Data          time.Time `json:"data,omitempty"`
	Horario       string    `json:"horario,omitempty"`

	// declaração de residência
	Endereco string `json:"endereco,omitempty"`

	// carta convite
	Destinatario string    `json:"destinatario,omitempty"`
	DataAgendada time.Time `json:"dataAgendada,omitempty"`
	Local        string    `json:"local,omitempty"`
	Assunto      string    `json:"assunto,omitempty"`

	// requisição de certidão
	Certidao       string `json:"certidao,omitempty"`
	NomeRegistrado string `json:"nomeRegistrado,omitempty"`
	Cartorio       string `json:"cartorio,omitempty"`

	Office      string    `json:"-"`
	City        string    `json:"-"`
	GeneratedAt time.Time `json:"-"`
}

// DataFromDemanda prefills Data from a registered demanda.
func DataFromDemanda(d store.Demanda) Data {
	out := Data{
		NomeAssistido: d.NomeAssistido,
		CPF:           d.CPF,
		Defensor:      d.Defensor,
		Servidor:      d.Servidor,
		Horario:       d.Horario,
	}
	if t, err := time.ParseInLocation(validation.DateLayout, d.Data, time.Local); err == nil {
		out.Data = t
	}
	return out
}

// Document is a filled template.
type Document struct {
	Kind             Kind      `json:"kind"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	VerificationCode string    `json:"verificationCode"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

// Generator fills templates for one office.
type Generator struct {
	office string
	city   string
	tmpl   *template.Template
	now    func() time.Time
}

// NewGenerator parses the embedded templates.
func NewGenerator(office, city string) (*Generator, error) {
	tmpl, err := template.New("document").
		Funcs(template.FuncMap{
			"extenso":  DataPorExtenso,
			"hora":     func(t time.Time) string { return t.Format("15h04") },
			"cpf":      FormatCPF,
			"certidao": certidaoLabel,
		}).
		Option("missingkey=error").
		ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse document templates: %w", err)
	}
	return &Generator{office: office, city: city, tmpl: tmpl, now: time.Now}, nil
}

// Generate fills the template for kind.
func (g *Generator) Generate(kind Kind, data Data) (*Document, error) {
	title, ok := titles[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	data.CPF = validation.Digits(data.CPF)
	data.Office = g.office
	data.City = g.city
	data.GeneratedAt = g.now()
	if data.Data.IsZero() {
		data.Data = data.GeneratedAt
	}
	if err := checkRequired(kind, data); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := g.tmpl.ExecuteTemplate(&buf, string(kind)+".tmpl", data); err != nil {
		return nil, fmt.Errorf("render %s: %w", kind, err)
	}
	body := buf.String()
	code := VerificationCode(body)
	body += "\n---\nCódigo de verificação: `" + code + "`\n"
	telemetry.DocumentsGenerated.WithLabelValues(string(kind)).Inc()

	return &Document{
		Kind:             kind,
		Title:            title,
		Body:             body,
		VerificationCode: code,
		GeneratedAt:      data.GeneratedAt,
	}, nil
}

func checkRequired(kind Kind, d Data) error {
	missing := func(field, value string) error {
		if strings.TrimSpace(value) == "" {
			return &FieldError{Field: field, Message: "campo obrigatório"}
		}
		return nil
	}
	if err := missing("nomeAssistido", d.NomeAssistido); err != nil {
		return err
	}
	if d.CPF != "" && len(d.CPF) != 11 {
		return &FieldError{Field: "cpf", Message: "CPF deve ter 11 dígitos"}
	}

	switch kind {
	case DeclaracaoResidencia:
		if err := missing("cpf", d.CPF); err != nil {
			return err
		}
		return missing("endereco", d.Endereco)
	case CartaConvite:
		if err := missing("destinatario", d.Destinatario); err != nil {
			return err
		}
		if d.DataAgendada.IsZero() {
			return &FieldError{Field: "dataAgendada", Message: "campo obrigatório"}
		}
	case RequisicaoCRC:
		if err := missing("nomeRegistrado", d.NomeRegistrado); err != nil {
			return err
		}
		if certidaoLabel(d.Certidao) == "" {
			return &FieldError{Field: "certidao", Message: "use nascimento, casamento ou obito"}
		}
	}
	return nil
}

// VerificationCode derives a 16-hex-digit code from body, grouped in fours.
func VerificationCode(body string) string {
	h := strconv.FormatUint(xxhash.Sum64String(body), 16)
	h = strings.ToUpper(strings.Repeat("0", 16-len(h)) + h)
	return h[0:4] + "-" + h[4:8] + "-" + h[8:12] + "-" + h[12:16]
}

// Verify reports whether doc's body still matches its verification code.
func Verify(doc *Document) bool {
	body, _, found := strings.Cut(doc.Body, "\n---\nCódigo de verificação:")
	return found && VerificationCode(body) == doc.VerificationCode
}

func certidaoLabel(c string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case CertidaoNascimento:
		return "nascimento"
	case CertidaoCasamento:
		return "casamento"
	case CertidaoObito, "óbito":
		return "óbito"
	}
	return ""
}
