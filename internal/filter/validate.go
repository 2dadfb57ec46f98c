package filter

import (
	"fmt"
	"strings"
)

// ValidationError lists every problem found in one rule
type ValidationError struct {
	Index    int // 1-based position in the rule set
	Name     string
	Problems []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("filter %d (%s): %s", e.Index, e.Name, strings.Join(e.Problems, "; "))
}

// ValidationErrors is the result of validating a whole rule set
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "\n")
}

// Validate checks every rule and returns one ValidationError per invalid
// rule. It does not stop at the first invalid rule.
func Validate(rs RuleSet) ValidationErrors {
	var errs ValidationErrors
	for i, rule := range rs {
		if problems := validateRule(rule); len(problems) > 0 {
			errs = append(errs, ValidationError{
				Index:    i + 1,
				Name:     rule.Name,
				Problems: problems,
			})
		}
	}
	return errs
}

func validateRule(rule Rule) []string {
	problems := validateHeader(rule)
	problems = append(problems, validateConditions(rule.Conditions)...)
	problems = append(problems, validateActions(rule.Actions)...)
	return problems
}

func validateHeader(rule Rule) []string {
	var problems []string
	if strings.TrimSpace(rule.Name) == "" {
		problems = append(problems, "name is required")
	}
	if rule.Priority < 1 {
		problems = append(problems, fmt.Sprintf("priority must be 1 or greater, got %d", rule.Priority))
	}
	return problems
}

func validateConditions(conds []Condition) []string {
	if len(conds) == 0 {
		return []string{"at least one condition is required"}
	}
	var problems []string
	for i, cond := range conds {
		if err := validateCondition(cond); err != nil {
			problems = append(problems, fmt.Sprintf("condition %d: %v", i+1, err))
		}
	}
	return problems
}

func validateActions(actions []Action) []string {
	if len(actions) == 0 {
		return []string{"at least one action is required"}
	}
	var problems []string
	for i, action := range actions {
		if action == nil {
			problems = append(problems, fmt.Sprintf("action %d: missing action", i+1))
			continue
		}
		if err := action.validate(); err != nil {
			problems = append(problems, fmt.Sprintf("action %d: %v", i+1, err))
		}
	}
	return problems
}

func validateCondition(cond Condition) error {
	if !cond.Field.Valid() {
		return fmt.Errorf("invalid field: %q (valid: %s)", cond.Field, joinFields())
	}
	if !cond.Operator.Valid() {
		return fmt.Errorf("invalid operator: %q (valid: %s)", cond.Operator, joinOperators())
	}
	if cond.Field.IsText() && !cond.Operator.IsText() {
		return fmt.Errorf("operator %s cannot be used with text field %s", cond.Operator, cond.Field)
	}
	if !cond.Field.IsText() && !cond.Operator.IsValue() {
		return fmt.Errorf("operator %s cannot be used with field %s", cond.Operator, cond.Field)
	}
	return nil
}

func joinFields() string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

func joinOperators() string {
	names := make([]string, 0, len(textOperators)+len(valueOperators))
	for _, op := range textOperators {
		names = append(names, string(op))
	}
	for _, op := range valueOperators {
		names = append(names, string(op))
	}
	return strings.Join(names, ", ")
}
