package filter

import (
	"strconv"
	"strings"
)

// Evaluate reports whether cond holds for msg. It never fails: an absent
// field, an unparsable value or an operator that does not apply to the
// field all evaluate to false. Negated operators are no exception, an
// absent subject does not "not contain" anything.
func Evaluate(cond Condition, msg Message) bool {
	value, ok := msg.Get(cond.Field)
	if !ok {
		return false
	}

	switch cond.Field {
	case FieldSize:
		return compareSize(cond.Operator, value, cond.Value)
	case FieldHasAttachment:
		return compareAttachment(cond.Operator, value, cond.Value)
	}

	if !cond.Field.IsText() {
		return false
	}
	return compareText(cond.Operator, value, cond.Value)
}

// EvaluateAll reports whether every condition holds
func EvaluateAll(conds []Condition, msg Message) bool {
	for _, cond := range conds {
		if !Evaluate(cond, msg) {
			return false
		}
	}
	return true
}

func compareText(op Operator, value, literal string) bool {
	value = strings.ToLower(value)
	literal = strings.ToLower(literal)

	switch op {
	case OpContains:
		return strings.Contains(value, literal)
	case OpIs:
		return value == literal
	case OpStartsWith:
		return strings.HasPrefix(value, literal)
	case OpEndsWith:
		return strings.HasSuffix(value, literal)
	case OpDoesntContain:
		return !strings.Contains(value, literal)
	}
	return false
}

func compareSize(op Operator, value, literal string) bool {
	target, err := strconv.ParseInt(strings.TrimSpace(literal), 10, 64)
	if err != nil {
		return false
	}
	current, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return false
	}
	return compareOrdered(op, current, target)
}

// compareAttachment orders false before true so that greater_than and
// less_than behave consistently with the size operators.
func compareAttachment(op Operator, value, literal string) bool {
	current, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	return compareOrdered(op, boolRank(current), boolRank(parseTruthy(literal)))
}

func compareOrdered(op Operator, current, target int64) bool {
	switch op {
	case OpGreaterThan:
		return current > target
	case OpLessThan:
		return current < target
	case OpEquals:
		return current == target
	case OpNotEquals:
		return current != target
	}
	return false
}

// parseTruthy accepts "true", "1" and "yes"; everything else is false
func parseTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func boolRank(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
