// Package enforcement implements the real-time pipeline that turns an
// inbound detection into a persisted violation, an updated vehicle risk
// profile, a computed fine, a conditional alert and a set of bus events.
package enforcement

import (
	"strings"

	"github.com/trafficgrid/backend/models"
	"github.com/trafficgrid/backend/repository"
)

// RuleResolver looks up the fine rule for a violation type. Lookup tolerates
// mixed-case input from upstream detectors: exact match first, then
// uppercased. A missing rule means "fine amount 0", not an error, since new
// violation types may appear before their rule is seeded.
type RuleResolver struct {
	rules repository.FineRuleRepository
}

func NewRuleResolver(rules repository.FineRuleRepository) *RuleResolver {
	return &RuleResolver{rules: rules}
}

// Resolve returns (nil, nil) when no rule exists for the type.
func (r *RuleResolver) Resolve(violationType string) (*models.FineRule, error) {
	rule, err := r.rules.GetByType(violationType)
	if err != nil {
		return nil, err
	}
	if rule != nil {
		return rule, nil
	}
	return r.rules.GetByType(strings.ToUpper(violationType))
}
