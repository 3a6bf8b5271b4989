package risk

import (
	"fmt"
	"strings"

	engerrors "github.com/ducminhle1904/quantile-risk-engine/internal/errors"
	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// ConstraintError carries every rule an order breached, in evaluation order
type ConstraintError struct {
	Symbol     string
	Violations []types.Violation
}

// Error implements the error interface
func (e *ConstraintError) Error() string {
	rules := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		rules[i] = string(v.Rule)
	}
	return fmt.Sprintf("[%s] order for %s rejected: %s", engerrors.KindConstraint, e.Symbol, strings.Join(rules, ", "))
}

// Unwrap exposes the constraint sentinel for errors.Is
func (e *ConstraintError) Unwrap() error {
	return engerrors.New(engerrors.ErrConstraintViolated, "risk", "validate", e.Error())
}

// Rules lists the breached rules
func (e *ConstraintError) Rules() []types.Rule {
	out := make([]types.Rule, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Rule
	}
	return out
}

// Has reports whether rule was breached
func (e *ConstraintError) Has(rule types.Rule) bool {
	for _, v := range e.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

// DrawdownBreached reports whether the portfolio must be force-liquidated
func (e *ConstraintError) DrawdownBreached() bool {
	return e.Has(types.RuleMaxDrawdown)
}
