package filter

import (
	"fmt"
	"strings"
)

// Field is a message attribute a condition can test
type Field string

const (
	FieldFrom          Field = "from"
	FieldTo            Field = "to"
	FieldSubject       Field = "subject"
	FieldBody          Field = "body"
	FieldDate          Field = "date"
	FieldSize          Field = "size"
	FieldCc            Field = "cc"
	FieldBcc           Field = "bcc"
	FieldHasAttachment Field = "has_attachment"
)

var fields = []Field{
	FieldFrom, FieldTo, FieldSubject, FieldBody, FieldDate,
	FieldSize, FieldCc, FieldBcc, FieldHasAttachment,
}

// Valid reports whether f is one of the known fields
func (f Field) Valid() bool {
	for _, known := range fields {
		if f == known {
			return true
		}
	}
	return false
}

// IsText reports whether the field is compared as a string
func (f Field) IsText() bool {
	return f.Valid() && f != FieldSize && f != FieldHasAttachment
}

// ParseField normalizes a field token. Unknown tokens are returned as-is so
// that Validate can report them.
func ParseField(s string) Field {
	return Field(strings.ToLower(strings.TrimSpace(s)))
}

// Operator is a comparison applied by a condition
type Operator string

const (
	OpContains      Operator = "contains"
	OpIs            Operator = "is"
	OpStartsWith    Operator = "starts_with"
	OpEndsWith      Operator = "ends_with"
	OpDoesntContain Operator = "doesnt_contain"
	OpGreaterThan   Operator = "greater_than"
	OpLessThan      Operator = "less_than"
	OpEquals        Operator = "equals"
	OpNotEquals     Operator = "not_equals"
)

var textOperators = []Operator{OpContains, OpIs, OpStartsWith, OpEndsWith, OpDoesntContain}

var valueOperators = []Operator{OpGreaterThan, OpLessThan, OpEquals, OpNotEquals}

// Valid reports whether op is one of the known operators
func (op Operator) Valid() bool {
	return op.IsText() || op.IsValue()
}

// IsText reports whether op is a string operator
func (op Operator) IsText() bool {
	for _, known := range textOperators {
		if op == known {
			return true
		}
	}
	return false
}

// IsValue reports whether op is a numeric/boolean operator
func (op Operator) IsValue() bool {
	for _, known := range valueOperators {
		if op == known {
			return true
		}
	}
	return false
}

// ParseOperator normalizes an operator token. Both "starts_with" and the
// older spaced form "starts with" are accepted, as is "doesn't contain".
func ParseOperator(s string) Operator {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "'", "")
	s = strings.Join(strings.Fields(s), "_")
	return Operator(s)
}

// Condition is a single field/operator/value test. The value is kept as
// written and interpreted per field kind at evaluation time.
type Condition struct {
	Field    Field
	Operator Operator
	Value    string
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %q", c.Field, c.Operator, c.Value)
}

// ActionType tags the Action variants
type ActionType string

const (
	ActionMove   ActionType = "move"
	ActionCopy   ActionType = "copy"
	ActionDelete ActionType = "delete"
	ActionMark   ActionType = "mark"
)

// Action is one of Move, Copy, Delete or Mark
type Action interface {
	Type() ActionType
	validate() error
	String() string
}

// Move moves the message to Folder
type Move struct {
	Folder string
}

// Copy copies the message to Folder
type Copy struct {
	Folder string
}

// Delete deletes the message
type Delete struct{}

// Mark sets Flag on the message
type Mark struct {
	Flag string
}

func (Move) Type() ActionType   { return ActionMove }
func (Copy) Type() ActionType   { return ActionCopy }
func (Delete) Type() ActionType { return ActionDelete }
func (Mark) Type() ActionType   { return ActionMark }

func (a Move) String() string { return "move to " + a.Folder }
func (a Copy) String() string { return "copy to " + a.Folder }
func (Delete) String() string { return "delete" }
func (a Mark) String() string { return "mark " + a.Flag }

func (a Move) validate() error {
	if strings.TrimSpace(a.Folder) == "" {
		return fmt.Errorf("folder is required for move actions")
	}
	return nil
}

func (a Copy) validate() error {
	if strings.TrimSpace(a.Folder) == "" {
		return fmt.Errorf("folder is required for copy actions")
	}
	return nil
}

func (Delete) validate() error { return nil }

func (a Mark) validate() error {
	if strings.TrimSpace(a.Flag) == "" {
		return fmt.Errorf("flag is required for mark actions")
	}
	return nil
}

// NewMove returns a Move action, rejecting an empty folder
func NewMove(folder string) (Move, error) {
	a := Move{Folder: folder}
	return a, a.validate()
}

// NewCopy returns a Copy action, rejecting an empty folder
func NewCopy(folder string) (Copy, error) {
	a := Copy{Folder: folder}
	return a, a.validate()
}

// NewMark returns a Mark action, rejecting an empty flag
func NewMark(flag string) (Mark, error) {
	a := Mark{Flag: flag}
	return a, a.validate()
}

// ParseAction builds the Action variant named by typ. Payload not used by
// the variant is ignored.
func ParseAction(typ, folder, flag string) (Action, error) {
	var a Action
	switch ActionType(strings.ToLower(strings.TrimSpace(typ))) {
	case ActionMove:
		a = Move{Folder: folder}
	case ActionCopy:
		a = Copy{Folder: folder}
	case ActionDelete:
		a = Delete{}
	case ActionMark:
		a = Mark{Flag: flag}
	default:
		return nil, fmt.Errorf("invalid action type: %q (valid: move, copy, delete, mark)", typ)
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Rule is a named, prioritized set of AND-combined conditions and the
// actions to run when they all hold.
type Rule struct {
	Name       string
	Enabled    bool
	Priority   int
	Conditions []Condition
	Actions    []Action
}

// RuleSet is the ordered list of rules loaded for a run. It is not modified
// once loaded.
type RuleSet []Rule

// Enabled returns the number of enabled rules
func (rs RuleSet) Enabled() int {
	n := 0
	for _, r := range rs {
		if r.Enabled {
			n++
		}
	}
	return n
}

// Message holds the field values known for one message. A field missing
// from the map is absent.
type Message map[Field]string

// Get returns the value of f and whether it is present
func (m Message) Get(f Field) (string, bool) {
	v, ok := m[f]
	return v, ok
}
