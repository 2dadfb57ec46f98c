package filter

import "sort"

// Matcher selects the rules that apply to a message
type Matcher struct {
	rules RuleSet // enabled rules, ascending priority
}

// NewMatcher keeps the enabled rules of rs ordered by ascending priority.
// Rules with equal priority keep their relative order from rs.
func NewMatcher(rs RuleSet) *Matcher {
	enabled := make(RuleSet, 0, len(rs))
	for _, r := range rs {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return enabled[i].Priority < enabled[j].Priority
	})
	return &Matcher{rules: enabled}
}

// Match returns every enabled rule whose conditions all hold for msg, in
// priority order. Each rule is evaluated independently.
func (m *Matcher) Match(msg Message) []Rule {
	var matched []Rule
	for _, r := range m.rules {
		if EvaluateAll(r.Conditions, msg) {
			matched = append(matched, r)
		}
	}
	return matched
}

// Match is a convenience wrapper around NewMatcher(rs).Match(msg)
func Match(rs RuleSet, msg Message) []Rule {
	return NewMatcher(rs).Match(msg)
}
