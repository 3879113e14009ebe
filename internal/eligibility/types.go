// Package eligibility implements the hipossuficiência means test: a pure
// decision function that classifies a person or legal entity as eligible or
// ineligible for free legal aid.
package eligibility

import (
	"github.com/shopspring/decimal"
)

// SubjectKind identifies who is being assessed.
type SubjectKind string

const (
	NaturalPerson        SubjectKind = "pessoa_fisica"
	LegalEntityForProfit SubjectKind = "pessoa_juridica_lucrativa"
	LegalEntityNonProfit SubjectKind = "pessoa_juridica_sem_fins_lucrativos"
)

// Valid reports whether k is one of the known subject kinds.
func (k SubjectKind) Valid() bool {
	switch k {
	case NaturalPerson, LegalEntityForProfit, LegalEntityNonProfit:
		return true
	}
	return false
}

// Vulnerability is a category that grants eligibility on its own.
type Vulnerability string

const (
	VulnElderly           Vulnerability = "idoso"
	VulnDisability        Vulnerability = "pessoa_com_deficiencia"
	VulnChildOrTeen       Vulnerability = "crianca_adolescente"
	VulnDomesticViolence  Vulnerability = "violencia_domestica"
	VulnHomeless          Vulnerability = "situacao_de_rua"
	VulnIndigenous        Vulnerability = "indigena"
	VulnQuilombola        Vulnerability = "quilombola"
	VulnRefugee           Vulnerability = "refugiado_migrante"
	VulnDeprivedOfLiberty Vulnerability = "privado_de_liberdade"
)

var vulnerabilityLabels = map[Vulnerability]string{
	VulnElderly:           "pessoa idosa",
	VulnDisability:        "pessoa com deficiência",
	VulnChildOrTeen:       "criança ou adolescente",
	VulnDomesticViolence:  "vítima de violência doméstica",
	VulnHomeless:          "pessoa em situação de rua",
	VulnIndigenous:        "pessoa indígena",
	VulnQuilombola:        "pessoa quilombola",
	VulnRefugee:           "refugiado ou migrante",
	VulnDeprivedOfLiberty: "pessoa privada de liberdade",
}

// Label returns the human-readable name of the category.
func (v Vulnerability) Label() string {
	if label, ok := vulnerabilityLabels[v]; ok {
		return label
	}
	return string(v)
}

// Valid reports whether v is a known category.
func (v Vulnerability) Valid() bool {
	_, ok := vulnerabilityLabels[v]
	return ok
}

// Vulnerabilities returns every known category.
func Vulnerabilities() []Vulnerability {
	return []Vulnerability{
		VulnElderly, VulnDisability, VulnChildOrTeen, VulnDomesticViolence,
		VulnHomeless, VulnIndigenous, VulnQuilombola, VulnRefugee, VulnDeprivedOfLiberty,
	}
}

// Facts holds the economic facts for one subject kind. The set of
// implementations is closed: NaturalPersonFacts, ForProfitFacts and
// NonProfitFacts.
type Facts interface {
	Kind() SubjectKind
	isFacts()
}

// PartnerStake describes a natural person's participation in a company.
type PartnerStake struct {
	Capital decimal.Decimal
	Count   int
}

// NaturalPersonFacts are the economic facts of an individual.
// Partner is nil when the person holds no company shares.
type NaturalPersonFacts struct {
	IndividualIncome decimal.Decimal
	HouseholdIncome  decimal.Decimal
	HasInvestments   bool
	Partner          *PartnerStake
}

func (NaturalPersonFacts) Kind() SubjectKind { return NaturalPerson }
func (NaturalPersonFacts) isFacts()          {}

// IsPartner reports whether the person holds company shares.
func (f NaturalPersonFacts) IsPartner() bool { return f.Partner != nil }

// ForProfitFacts are the economic facts of a for-profit legal entity.
type ForProfitFacts struct {
	AnyPartnerEarnsAboveThreshold bool
	AssetsExceedThreshold         bool
	Capital                       decimal.Decimal
	PartnerCount                  int
}

func (ForProfitFacts) Kind() SubjectKind { return LegalEntityForProfit }
func (ForProfitFacts) isFacts()          {}

// NonProfitFacts are the facts of a non-profit legal entity.
type NonProfitFacts struct {
	ServesVulnerablePopulations bool
}

func (NonProfitFacts) Kind() SubjectKind { return LegalEntityNonProfit }
func (NonProfitFacts) isFacts()          {}

// Request describes one evaluation. Facts are always required and validated;
// a declared vulnerability only stops them from being consulted.
type Request struct {
	Subject         SubjectKind
	Vulnerabilities []Vulnerability
	Facts           Facts
}

// Reason is the machine-readable cause of a verdict.
type Reason string

const (
	ReasonVulnerability               Reason = "VULNERABILITY_CRITERION"
	ReasonEconomic                    Reason = "ECONOMIC_CRITERION"
	ReasonPartnerCapitalExceedsIncome Reason = "PARTNER_CAPITAL_EXCEEDS_INCOME"
	ReasonIncomeExceedsLimit          Reason = "INCOME_EXCEEDS_LIMIT"
	ReasonForProfit                   Reason = "FOR_PROFIT_CRITERION"
	ReasonForProfitFailed             Reason = "FOR_PROFIT_CRITERION_FAILED"
	ReasonNonProfitMission            Reason = "NON_PROFIT_MISSION"
	ReasonNonProfitMissionFailed      Reason = "NON_PROFIT_MISSION_FAILED"
)

// Verdict is the deterministic output of Evaluate.
type Verdict struct {
	Approved    bool   `json:"approved"`
	Reason      Reason `json:"reason"`
	Explanation string `json:"explanation"`
}
