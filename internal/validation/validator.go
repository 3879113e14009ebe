// Package validation checks demanda fields against the catalog and
// normalises Brazilian document numbers.
package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/TimurManjosov/triagem/internal/catalog"
	"github.com/TimurManjosov/triagem/internal/store"
)

const (
	// MaxNomeLength is the maximum length for the assisted person's name
	MaxNomeLength = 200
	// MaxCodigoLength is the maximum length for the case code
	MaxCodigoLength = 64
	// MaxDescricaoLength is the maximum length for the demanda description
	MaxDescricaoLength = 4000
	// MaxProcessos is the maximum number of process numbers per demanda
	MaxProcessos = 50

	DateLayout = "02/01/2006"
	TimeLayout = "15:04:05"
)

// ValidationResult holds the result of validation
type ValidationResult struct {
	Valid  bool
	Errors map[string]string
}

// NewValidationResult creates a new validation result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Valid:  true,
		Errors: make(map[string]string),
	}
}

// AddError adds a field error and marks the result as invalid
func (v *ValidationResult) AddError(field, message string) {
	v.Valid = false
	v.Errors[field] = message
}

// Merge combines another validation result into this one
func (v *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	for field, message := range other.Errors {
		v.AddError(field, message)
	}
}

// Digits keeps only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DocumentKind classifies a normalised subject document.
type DocumentKind string

const (
	DocumentCPF  DocumentKind = "cpf"
	DocumentCNPJ DocumentKind = "cnpj"
)

// NormalizeDocumento strips punctuation and checks the CPF or CNPJ check
// digits. It returns the digits and which kind of document they form.
func NormalizeDocumento(raw string) (string, DocumentKind, error) {
	d := Digits(raw)
	switch len(d) {
	case 11:
		if !ValidCPF(d) {
			return "", "", fmt.Errorf("CPF %s tem dígitos verificadores inválidos", d)
		}
		return d, DocumentCPF, nil
	case 14:
		if !ValidCNPJ(d) {
			return "", "", fmt.Errorf("CNPJ %s tem dígitos verificadores inválidos", d)
		}
		return d, DocumentCNPJ, nil
	default:
		return "", "", fmt.Errorf("documento deve ter 11 (CPF) ou 14 (CNPJ) dígitos, recebido %d", len(d))
	}
}

// ValidCPF reports whether the 11 digits carry correct check digits.
// Sequences of one repeated digit are rejected.
func ValidCPF(d string) bool {
	if len(d) != 11 || allSame(d) {
		return false
	}
	for n := 9; n <= 10; n++ {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(d[i]-'0') * (n + 1 - i)
		}
		if (sum*10)%11%10 != int(d[n]-'0') {
			return false
		}
	}
	return true
}

var cnpjWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}

// ValidCNPJ reports whether the 14 digits carry correct check digits.
func ValidCNPJ(d string) bool {
	if len(d) != 14 || allSame(d) {
		return false
	}
	for n := 12; n <= 13; n++ {
		weights := cnpjWeights[13-n:]
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(d[i]-'0') * weights[i]
		}
		r := sum % 11
		if r < 2 {
			r = 0
		} else {
			r = 11 - r
		}
		if r != int(d[n]-'0') {
			return false
		}
	}
	return true
}

func allSame(s string) bool {
	return strings.Count(s, s[:1]) == len(s)
}

// ValidateDemanda checks a new demanda against the catalog.
func ValidateDemanda(p store.CreateDemandaParams, c catalog.Catalog) *ValidationResult {
	result := NewValidationResult()

	result.Merge(validateServidor(p.Servidor, c))
	result.Merge(validateDefensor(p.Defensor, c))
	result.Merge(validateRequiredText("nomeAssistido", "Nome do assistido", p.NomeAssistido, MaxNomeLength))
	result.Merge(validateRequiredText("codigo", "Código", p.Codigo, MaxCodigoLength))
	result.Merge(validateRequiredText("demanda", "Demanda", p.Descricao, MaxDescricaoLength))
	result.Merge(ValidateCPF(p.CPF))
	result.Merge(validateStatus(p.Status, c))
	result.Merge(validateSelecao(p.Defensor, p.SelecaoDemanda, c))
	result.Merge(validateProcessos(p.NumeroProcesso))
	result.Merge(validateDate(p.Data))
	result.Merge(validateTime(p.Horario))

	return result
}

// ValidateDemandaPatch checks the fields set in patch. current is the stored
// row the patch applies to.
func ValidateDemandaPatch(p store.DemandaPatch, current store.Demanda, c catalog.Catalog) *ValidationResult {
	result := NewValidationResult()

	if p.Servidor != nil {
		result.Merge(validateServidor(*p.Servidor, c))
	}
	defensor := current.Defensor
	if p.Defensor != nil {
		defensor = *p.Defensor
		result.Merge(validateDefensor(defensor, c))
	}
	if p.NomeAssistido != nil {
		result.Merge(validateRequiredText("nomeAssistido", "Nome do assistido", *p.NomeAssistido, MaxNomeLength))
	}
	if p.Codigo != nil {
		result.Merge(validateRequiredText("codigo", "Código", *p.Codigo, MaxCodigoLength))
	}
	if p.Descricao != nil {
		result.Merge(validateRequiredText("demanda", "Demanda", *p.Descricao, MaxDescricaoLength))
	}
	if p.CPF != nil {
		result.Merge(ValidateCPF(*p.CPF))
	}
	if p.Status != nil {
		result.Merge(validateStatus(*p.Status, c))
	}
	if p.SelecaoDemanda != nil {
		result.Merge(validateSelecao(defensor, *p.SelecaoDemanda, c))
	}
	if p.NumeroProcesso != nil {
		result.Merge(validateProcessos(*p.NumeroProcesso))
	}
	if p.Data != nil {
		result.Merge(validateDate(*p.Data))
	}
	if p.Horario != nil {
		result.Merge(validateTime(*p.Horario))
	}

	return result
}

// ValidateCPF accepts an empty value or exactly 11 digits. Legacy records
// predate check-digit validation, so only the length is enforced here.
func ValidateCPF(cpf string) *ValidationResult {
	result := NewValidationResult()
	if cpf == "" {
		return result
	}
	if Digits(cpf) != cpf {
		result.AddError("cpf", "CPF deve conter apenas dígitos")
	} else if len(cpf) != 11 {
		result.AddError("cpf", "CPF deve ter 11 dígitos")
	}
	return result
}

func validateServidor(s string, c catalog.Catalog) *ValidationResult {
	result := NewValidationResult()
	if strings.TrimSpace(s) == "" {
		result.AddError("servidor", "Servidor é obrigatório")
	} else if !c.HasServidor(s) {
		result.AddError("servidor", fmt.Sprintf("Servidor %q não está cadastrado", s))
	}
	return result
}

func validateDefensor(d string, c catalog.Catalog) *ValidationResult {
	result := NewValidationResult()
	if strings.TrimSpace(d) == "" {
		result.AddError("defensor", "Defensor é obrigatório")
	} else if !c.HasDefensor(d) {
		result.AddError("defensor", fmt.Sprintf("Defensor %q não está cadastrado", d))
	}
	return result
}

func validateStatus(s string, c catalog.Catalog) *ValidationResult {
	result := NewValidationResult()
	if !c.HasStatus(s) {
		result.AddError("status", fmt.Sprintf("Status %q inválido", s))
	}
	return result
}

func validateRequiredText(field, label, value string, max int) *ValidationResult {
	result := NewValidationResult()
	trimmed := strings.TrimSpace(value)
	switch {
	case trimmed == "":
		result.AddError(field, label+" é obrigatório")
	case utf8.RuneCountInString(value) > max:
		result.AddError(field, fmt.Sprintf("%s deve ter no máximo %d caracteres", label, max))
	case strings.IndexFunc(value, isControl) >= 0:
		result.AddError(field, label+" contém caracteres inválidos")
	}
	return result
}

func isControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t'
}

func validateSelecao(defensor string, sel []string, c catalog.Catalog) *ValidationResult {
	result := NewValidationResult()
	if len(sel) == 0 {
		return result
	}
	if !c.OffersQuickSelection(defensor) {
		result.AddError("selecaoDemanda", fmt.Sprintf("Defensor %q não possui demandas rápidas", defensor))
		return result
	}
	for _, s := range sel {
		if !c.HasDemandaRapida(s) {
			result.AddError("selecaoDemanda", fmt.Sprintf("Demanda rápida %q desconhecida", s))
			return result
		}
	}
	return result
}

func validateProcessos(ps []string) *ValidationResult {
	result := NewValidationResult()
	if len(ps) > MaxProcessos {
		result.AddError("numeroProcesso", fmt.Sprintf("No máximo %d processos por demanda", MaxProcessos))
		return result
	}
	for _, p := range ps {
		if strings.TrimSpace(p) == "" {
			result.AddError("numeroProcesso", "Número de processo vazio")
			return result
		}
		if strings.Contains(p, ";") {
			result.AddError("numeroProcesso", "Número de processo não pode conter ';'")
			return result
		}
	}
	return result
}

func validateDate(s string) *ValidationResult {
	result := NewValidationResult()
	if _, err := time.Parse(DateLayout, s); err != nil {
		result.AddError("data", "Data deve estar no formato dd/mm/aaaa")
	}
	return result
}

func validateTime(s string) *ValidationResult {
	result := NewValidationResult()
	if _, err := time.Parse(TimeLayout, s); err != nil {
		result.AddError("horario", "Horário deve estar no formato HH:MM:SS")
	}
	return result
}
