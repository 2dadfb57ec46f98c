package filter

// RuleSummary describes one rule for status output
type RuleSummary struct {
	Name           string `json:"name" yaml:"name"`
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	Priority       int    `json:"priority" yaml:"priority"`
	ConditionCount int    `json:"conditions_count" yaml:"conditions_count"`
	ActionCount    int    `json:"actions_count" yaml:"actions_count"`
}

// Summary is a read-only projection of a rule set
type Summary struct {
	Total   int           `json:"total_filters" yaml:"total_filters"`
	Enabled int           `json:"enabled_filters" yaml:"enabled_filters"`
	Rules   []RuleSummary `json:"filters" yaml:"filters"`
}

// Summarize reports counts for rs in its original order
func Summarize(rs RuleSet) Summary {
	s := Summary{
		Total:   len(rs),
		Enabled: rs.Enabled(),
		Rules:   make([]RuleSummary, 0, len(rs)),
	}
	for _, r := range rs {
		s.Rules = append(s.Rules, RuleSummary{
			Name:           r.Name,
			Enabled:        r.Enabled,
			Priority:       r.Priority,
			ConditionCount: len(r.Conditions),
			ActionCount:    len(r.Actions),
		})
	}
	return s
}
