package eligibility

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	individualIncomeFactor = decimal.NewFromInt(3)
	householdIncomeFactor  = decimal.NewFromInt(5)
	entityCapitalFactor    = decimal.NewFromInt(5)
)

// Evaluator applies the means test against a fixed minimum wage unit.
// It holds no state across calls and is safe for concurrent use.
type Evaluator struct {
	minimumWage decimal.Decimal
}

// NewEvaluator returns an Evaluator scaled by the given minimum wage.
func NewEvaluator(minimumWage decimal.Decimal) (*Evaluator, error) {
	if !minimumWage.IsPositive() {
		return nil, errors.New("minimum wage must be positive")
	}
	return &Evaluator{minimumWage: minimumWage}, nil
}

// MinimumWage returns the reference amount thresholds are scaled from.
func (e *Evaluator) MinimumWage() decimal.Decimal { return e.minimumWage }

// Evaluate classifies the subject of req.
//
// Rule priority (first match wins):
//  1. Any vulnerability category approves, economic facts are not consulted.
//  2. Natural person: partner capital share above either income denies;
//     otherwise income thresholds, no investments and no partnership approve.
//  3. For-profit entity: high-earning partner, excess assets or capital per
//     partner above 5 minimum wages deny.
//  4. Non-profit entity: approved only when it serves vulnerable populations.
func (e *Evaluator) Evaluate(req Request) (Verdict, error) {
	facts, err := validate(req)
	if err != nil {
		return Verdict{}, err
	}

	if len(req.Vulnerabilities) > 0 {
		return e.verdict(ReasonVulnerability, req, nil), nil
	}

	switch f := facts.(type) {
	case NaturalPersonFacts:
		return e.evaluateNaturalPerson(req, f), nil
	case ForProfitFacts:
		return e.evaluateForProfit(req, f), nil
	case NonProfitFacts:
		if f.ServesVulnerablePopulations {
			return e.verdict(ReasonNonProfitMission, req, nil), nil
		}
		return e.verdict(ReasonNonProfitMissionFailed, req, nil), nil
	}
	// unreachable: validate guarantees one of the variants above
	return Verdict{}, invalid("facts", "unsupported facts type %T", facts)
}

func (e *Evaluator) evaluateNaturalPerson(req Request, f NaturalPersonFacts) Verdict {
	if f.IsPartner() {
		share := f.Partner.Capital.Div(decimal.NewFromInt(int64(f.Partner.Count)))
		if share.GreaterThan(f.IndividualIncome) || share.GreaterThan(f.HouseholdIncome) {
			return e.verdict(ReasonPartnerCapitalExceedsIncome, req, &share)
		}
	}

	withinIncome := f.IndividualIncome.LessThanOrEqual(e.minimumWage.Mul(individualIncomeFactor)) ||
		f.HouseholdIncome.LessThanOrEqual(e.minimumWage.Mul(householdIncomeFactor))

	// A partner who cleared the share check still fails here. Kept as defined
	// pending product-owner clarification.
	if withinIncome && !f.HasInvestments && !f.IsPartner() {
		return e.verdict(ReasonEconomic, req, nil)
	}
	return e.verdict(ReasonIncomeExceedsLimit, req, nil)
}

func (e *Evaluator) evaluateForProfit(req Request, f ForProfitFacts) Verdict {
	if f.AnyPartnerEarnsAboveThreshold || f.AssetsExceedThreshold {
		return e.verdict(ReasonForProfitFailed, req, nil)
	}
	perPartner := f.Capital.Div(decimal.NewFromInt(int64(f.PartnerCount)))
	if perPartner.GreaterThan(e.minimumWage.Mul(entityCapitalFactor)) {
		return e.verdict(ReasonForProfitFailed, req, &perPartner)
	}
	return e.verdict(ReasonForProfit, req, &perPartner)
}

func (e *Evaluator) verdict(reason Reason, req Request, share *decimal.Decimal) Verdict {
	return Verdict{
		Approved:    reason.Approves(),
		Reason:      reason,
		Explanation: e.explain(reason, req, share),
	}
}

// Approves reports whether the reason belongs to an approving verdict.
func (r Reason) Approves() bool {
	switch r {
	case ReasonVulnerability, ReasonEconomic, ReasonForProfit, ReasonNonProfitMission:
		return true
	}
	return false
}

// validate checks req and returns its facts dereferenced to a value type.
func validate(req Request) (Facts, error) {
	if !req.Subject.Valid() {
		return nil, invalid("subject", "unknown subject kind %q", req.Subject)
	}
	for _, v := range req.Vulnerabilities {
		if !v.Valid() {
			return nil, invalid("vulnerabilities", "unknown vulnerability %q", v)
		}
	}

	facts := req.Facts
	switch f := facts.(type) {
	case *NaturalPersonFacts:
		if f != nil {
			facts = *f
		} else {
			facts = nil
		}
	case *ForProfitFacts:
		if f != nil {
			facts = *f
		} else {
			facts = nil
		}
	case *NonProfitFacts:
		if f != nil {
			facts = *f
		} else {
			facts = nil
		}
	}

	if facts == nil {
		return nil, invalid("facts", "economic facts are required for %s", req.Subject)
	}
	if facts.Kind() != req.Subject {
		return nil, invalid("facts", "facts for %s do not match subject %s", facts.Kind(), req.Subject)
	}

	switch f := facts.(type) {
	case NaturalPersonFacts:
		if err := checkAmount("individual_income", f.IndividualIncome); err != nil {
			return nil, err
		}
		if err := checkAmount("household_income", f.HouseholdIncome); err != nil {
			return nil, err
		}
		if f.Partner != nil {
			if err := checkAmount("partner_capital", f.Partner.Capital); err != nil {
				return nil, err
			}
			if f.Partner.Count < 1 {
				return nil, invalid("partner_count", "must be at least 1, got %d", f.Partner.Count)
			}
		}
	case ForProfitFacts:
		if err := checkAmount("capital", f.Capital); err != nil {
			return nil, err
		}
		if f.PartnerCount < 1 {
			return nil, invalid("partner_count", "must be at least 1, got %d", f.PartnerCount)
		}
	}
	return facts, nil
}

// Amounts are bounded before any arithmetic touches them.
const (
	maxIntegerDigits  = 15
	maxFractionDigits = 10
)

func checkAmount(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return invalid(field, "must not be negative")
	}
	exp := int64(d.Exponent())
	if exp > maxIntegerDigits {
		return invalid(field, "must be below 10^%d", maxIntegerDigits)
	}
	if exp < -maxFractionDigits {
		return invalid(field, "must have at most %d decimal places", maxFractionDigits)
	}
	if int64(d.NumDigits())+exp > maxIntegerDigits {
		return invalid(field, "must be below 10^%d", maxIntegerDigits)
	}
	return nil
}
