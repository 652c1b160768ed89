package batch

import (
	"strings"

	dErrors "veritag/pkg/domain-errors"
)

// CodePolicy declares how many identity codes one unit of a product gets and
// which code prefix the product uses. The mapping is data, not logic: new
// product types register a policy instead of growing a switch somewhere.
type CodePolicy struct {
	Prefix       string
	CodesPerUnit int
}

// PolicyTable maps product types (case-insensitive) to their code policy.
type PolicyTable struct {
	policies map[string]CodePolicy
}

// NewPolicyTable creates an empty table.
func NewPolicyTable() *PolicyTable {
	return &PolicyTable{policies: make(map[string]CodePolicy)}
}

// DefaultPolicies seeds the fertilizer product lines currently in production.
// Bulk products shipped by the ton are double-coded (outer bag + inner seal);
// pre-bagged products get one code per bag.
func DefaultPolicies() *PolicyTable {
	t := NewPolicyTable()
	t.Register("urea", CodePolicy{Prefix: "UP", CodesPerUnit: 2})
	t.Register("npk", CodePolicy{Prefix: "NPK", CodesPerUnit: 2})
	t.Register("dap", CodePolicy{Prefix: "DAP", CodesPerUnit: 1})
	t.Register("potash", CodePolicy{Prefix: "MOP", CodesPerUnit: 1})
	return t
}

// Register adds or replaces the policy for a product type.
func (t *PolicyTable) Register(productType string, policy CodePolicy) {
	t.policies[strings.ToLower(strings.TrimSpace(productType))] = policy
}

// Lookup resolves the policy for a product type. Unregistered product types
// are a validation error: issuing codes without a declared policy would mean
// guessing a prefix and a count.
func (t *PolicyTable) Lookup(productType string) (CodePolicy, error) {
	policy, ok := t.policies[strings.ToLower(strings.TrimSpace(productType))]
	if !ok {
		return CodePolicy{}, dErrors.Newf(dErrors.CodeBadRequest, "no code policy registered for product type %q", productType)
	}
	return policy, nil
}
