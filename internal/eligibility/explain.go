package eligibility

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func (e *Evaluator) explain(reason Reason, req Request, share *decimal.Decimal) string {
	switch reason {
	case ReasonVulnerability:
		return "Hipossuficiência reconhecida por critério de vulnerabilidade: " +
			strings.Join(vulnerabilityNames(req.Vulnerabilities), ", ") + "."
	case ReasonEconomic:
		f := naturalFacts(req)
		return fmt.Sprintf(
			"Hipossuficiência reconhecida por critério econômico: renda individual de %s (limite %s) ou renda familiar de %s (limite %s), sem investimentos e sem participação societária.",
			FormatBRL(f.IndividualIncome), FormatBRL(e.minimumWage.Mul(individualIncomeFactor)),
			FormatBRL(f.HouseholdIncome), FormatBRL(e.minimumWage.Mul(householdIncomeFactor)),
		)
	case ReasonPartnerCapitalExceedsIncome:
		return fmt.Sprintf(
			"Hipossuficiência não reconhecida: a cota de capital social por sócio (%s) supera a renda individual ou a renda familiar declarada.",
			FormatBRL(deref(share)),
		)
	case ReasonIncomeExceedsLimit:
		f := naturalFacts(req)
		var causes []string
		if f.IndividualIncome.GreaterThan(e.minimumWage.Mul(individualIncomeFactor)) &&
			f.HouseholdIncome.GreaterThan(e.minimumWage.Mul(householdIncomeFactor)) {
			causes = append(causes, "renda acima do limite")
		}
		if f.HasInvestments {
			causes = append(causes, "possui investimentos")
		}
		if f.IsPartner() {
			causes = append(causes, "possui participação societária")
		}
		return "Hipossuficiência não reconhecida: " + strings.Join(causes, "; ") + "."
	case ReasonForProfit:
		return fmt.Sprintf(
			"Hipossuficiência de pessoa jurídica reconhecida: capital social por sócio de %s, dentro do limite de %s.",
			FormatBRL(deref(share)), FormatBRL(e.minimumWage.Mul(entityCapitalFactor)),
		)
	case ReasonForProfitFailed:
		if share != nil {
			return fmt.Sprintf(
				"Hipossuficiência de pessoa jurídica não reconhecida: capital social por sócio de %s supera o limite de %s.",
				FormatBRL(*share), FormatBRL(e.minimumWage.Mul(entityCapitalFactor)),
			)
		}
		return "Hipossuficiência de pessoa jurídica não reconhecida: sócio com renda acima do limite ou patrimônio acima do limite."
	case ReasonNonProfitMission:
		return "Hipossuficiência reconhecida: entidade sem fins lucrativos que atende população vulnerável."
	case ReasonNonProfitMissionFailed:
		return "Hipossuficiência não reconhecida: entidade sem fins lucrativos que não atende população vulnerável."
	}
	return string(reason)
}

func vulnerabilityNames(tags []Vulnerability) []string {
	seen := make(map[Vulnerability]bool, len(tags))
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		names = append(names, t.Label())
	}
	return names
}

func naturalFacts(req Request) NaturalPersonFacts {
	switch f := req.Facts.(type) {
	case NaturalPersonFacts:
		return f
	case *NaturalPersonFacts:
		return *f
	}
	return NaturalPersonFacts{}
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// FormatBRL renders an amount as Brazilian currency, e.g. "R$ 1.518,00".
func FormatBRL(amount decimal.Decimal) string {
	s := amount.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	return sign + "R$ " + b.String() + "," + frac
}
