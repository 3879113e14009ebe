package triage

import (
	"encoding/json"

	"github.com/TimurManjosov/triagem/internal/eligibility"
	"github.com/shopspring/decimal"
)

// Input is the wire form of a means-test request. Only the facts block
// matching TipoPessoa is read, and every field of that block is required.
type Input struct {
	Documento         string                      `json:"documento,omitempty" yaml:"documento,omitempty"`
	TipoPessoa        eligibility.SubjectKind     `json:"tipoPessoa" yaml:"tipo_pessoa"`
	Vulnerabilidades  []eligibility.Vulnerability `json:"vulnerabilidades,omitempty" yaml:"vulnerabilidades,omitempty"`
	PessoaFisica      *NaturalPersonInput         `json:"pessoaFisica,omitempty" yaml:"pessoa_fisica,omitempty"`
	PessoaJuridica    *ForProfitInput             `json:"pessoaJuridica,omitempty" yaml:"pessoa_juridica,omitempty"`
	SemFinsLucrativos *NonProfitInput             `json:"semFinsLucrativos,omitempty" yaml:"sem_fins_lucrativos,omitempty"`
	Detalhes          string                      `json:"detalhes,omitempty" yaml:"detalhes,omitempty"`
}

// NaturalPersonInput holds monthly incomes in reais. Socio is omitted when
// the person holds no company shares.
type NaturalPersonInput struct {
	RendaIndividual     *decimal.Decimal `json:"rendaIndividual" yaml:"renda_individual"`
	RendaFamiliar       *decimal.Decimal `json:"rendaFamiliar" yaml:"renda_familiar"`
	PossuiInvestimentos *bool            `json:"possuiInvestimentos" yaml:"possui_investimentos"`
	Socio               *PartnerInput    `json:"socio,omitempty" yaml:"socio,omitempty"`
}

type PartnerInput struct {
	CapitalSocial *decimal.Decimal `json:"capitalSocial" yaml:"capital_social"`
	NumeroSocios  *int             `json:"numeroSocios" yaml:"numero_socios"`
}

type ForProfitInput struct {
	SocioComRendaAcima *bool            `json:"socioComRendaAcima" yaml:"socio_com_renda_acima"`
	PatrimonioAcima    *bool            `json:"patrimonioAcima" yaml:"patrimonio_acima"`
	CapitalSocial      *decimal.Decimal `json:"capitalSocial" yaml:"capital_social"`
	NumeroSocios       *int             `json:"numeroSocios" yaml:"numero_socios"`
}

type NonProfitInput struct {
	AtendePopulacaoVulneravel *bool `json:"atendePopulacaoVulneravel" yaml:"atende_populacao_vulneravel"`
}

// Request converts the input into an evaluator request. A missing facts
// block is left for the evaluator to reject; a block with missing fields
// fails here with an *eligibility.InputError naming the first one.
func (in Input) Request() (eligibility.Request, error) {
	req := eligibility.Request{
		Subject:         in.TipoPessoa,
		Vulnerabilities: in.Vulnerabilidades,
	}
	var r required
	switch in.TipoPessoa {
	case eligibility.NaturalPerson:
		if p := in.PessoaFisica; p != nil {
			f := eligibility.NaturalPersonFacts{
				IndividualIncome: r.amount("pessoaFisica.rendaIndividual", p.RendaIndividual),
				HouseholdIncome:  r.amount("pessoaFisica.rendaFamiliar", p.RendaFamiliar),
				HasInvestments:   r.flag("pessoaFisica.possuiInvestimentos", p.PossuiInvestimentos),
			}
			if s := p.Socio; s != nil {
				f.Partner = &eligibility.PartnerStake{
					Capital: r.amount("pessoaFisica.socio.capitalSocial", s.CapitalSocial),
					Count:   r.count("pessoaFisica.socio.numeroSocios", s.NumeroSocios),
				}
			}
			req.Facts = f
		}
	case eligibility.LegalEntityForProfit:
		if p := in.PessoaJuridica; p != nil {
			req.Facts = eligibility.ForProfitFacts{
				AnyPartnerEarnsAboveThreshold: r.flag("pessoaJuridica.socioComRendaAcima", p.SocioComRendaAcima),
				AssetsExceedThreshold:         r.flag("pessoaJuridica.patrimonioAcima", p.PatrimonioAcima),
				Capital:                       r.amount("pessoaJuridica.capitalSocial", p.CapitalSocial),
				PartnerCount:                  r.count("pessoaJuridica.numeroSocios", p.NumeroSocios),
			}
		}
	case eligibility.LegalEntityNonProfit:
		if p := in.SemFinsLucrativos; p != nil {
			req.Facts = eligibility.NonProfitFacts{
				ServesVulnerablePopulations: r.flag("semFinsLucrativos.atendePopulacaoVulneravel", p.AtendePopulacaoVulneravel),
			}
		}
	}
	if r.missing != "" {
		return eligibility.Request{}, &eligibility.InputError{Field: r.missing, Message: "is required"}
	}
	return req, nil
}

// required dereferences optional wire fields and remembers the first one
// that was absent.
type required struct {
	missing string
}

func (r *required) note(field string) {
	if r.missing == "" {
		r.missing = field
	}
}

func (r *required) amount(field string, v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		r.note(field)
		return decimal.Zero
	}
	return *v
}

func (r *required) flag(field string, v *bool) bool {
	if v == nil {
		r.note(field)
		return false
	}
	return *v
}

func (r *required) count(field string, v *int) int {
	if v == nil {
		r.note(field)
		return 0
	}
	return *v
}

// details returns the free-text details, or the facts block as JSON when
// none were given.
func (in Input) details() string {
	if in.Detalhes != "" {
		return in.Detalhes
	}
	var facts any
	switch in.TipoPessoa {
	case eligibility.NaturalPerson:
		facts = in.PessoaFisica
	case eligibility.LegalEntityForProfit:
		facts = in.PessoaJuridica
	case eligibility.LegalEntityNonProfit:
		facts = in.SemFinsLucrativos
	}
	b, err := json.Marshal(facts)
	if err != nil || string(b) == "null" {
		return ""
	}
	return string(b)
}
