package filter

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Document is the on-disk shape of a rules file
type Document struct {
	Filters []RuleDoc `yaml:"filters"`
}

// RuleDoc is one rule as written in a rules file
type RuleDoc struct {
	Name       string         `yaml:"name"`
	Enabled    *bool          `yaml:"enabled,omitempty"`
	Priority   *int           `yaml:"priority,omitempty"`
	Conditions []ConditionDoc `yaml:"conditions"`
	Actions    []ActionDoc    `yaml:"actions"`
}

// ConditionDoc is one condition as written in a rules file
type ConditionDoc struct {
	Field    string `yaml:"field"`
	Operator string `yaml:"operator"`
	Value    string `yaml:"value"`
}

// ActionDoc is one action as written in a rules file
type ActionDoc struct {
	Type   string `yaml:"type"`
	Folder string `yaml:"folder,omitempty"`
	Flag   string `yaml:"flag,omitempty"`
}

// DefaultPath is where rules are read from when no path is configured
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "IMAPMessageFilter", "filters.yaml")
	}
	return filepath.Join(home, ".config", "IMAPMessageFilter", "filters.yaml")
}

// ExpandPath replaces a leading ~ with the home directory
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// Build turns a document into a rule set. Every problem in every rule is
// reported; the rule set is only returned when there are none.
func Build(doc Document) (RuleSet, error) {
	rs := make(RuleSet, 0, len(doc.Filters))
	var errs ValidationErrors

	for i, rd := range doc.Filters {
		rule, problems := buildRule(rd)
		problems = append(validateHeader(rule), problems...)
		problems = append(problems, validateConditions(rule.Conditions)...)
		if len(rd.Actions) == len(rule.Actions) {
			problems = append(problems, validateActions(rule.Actions)...)
		}
		if len(problems) > 0 {
			errs = append(errs, ValidationError{Index: i + 1, Name: rd.Name, Problems: problems})
			continue
		}
		rs = append(rs, rule)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return rs, nil
}

func buildRule(rd RuleDoc) (Rule, []string) {
	rule := Rule{
		Name:     rd.Name,
		Enabled:  true,
		Priority: 1,
	}
	if rd.Enabled != nil {
		rule.Enabled = *rd.Enabled
	}
	if rd.Priority != nil {
		rule.Priority = *rd.Priority
	}

	for _, cd := range rd.Conditions {
		rule.Conditions = append(rule.Conditions, Condition{
			Field:    ParseField(cd.Field),
			Operator: ParseOperator(cd.Operator),
			Value:    cd.Value,
		})
	}

	var problems []string
	for i, ad := range rd.Actions {
		action, err := ParseAction(ad.Type, ad.Folder, ad.Flag)
		if err != nil {
			problems = append(problems, fmt.Sprintf("action %d: %v", i+1, err))
			continue
		}
		rule.Actions = append(rule.Actions, action)
	}
	return rule, problems
}

// Parse decodes and validates a rules document
func Parse(data []byte) (RuleSet, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules document: %w", err)
	}
	return Build(doc)
}

// ReadFile parses the rules file at path. A missing file yields an error
// wrapping os.ErrNotExist.
func ReadFile(path string) (RuleSet, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Load reads the rules file at path. A missing or invalid file is not fatal:
// the problem is logged and an empty rule set is returned.
func Load(path string, logger *slog.Logger) RuleSet {
	if path == "" {
		path = DefaultPath()
	}
	path = ExpandPath(path)

	rs, err := ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("filters file not found", "path", path)
		} else {
			logger.Warn("failed to load filters, continuing with no filters", "path", path, "error", err)
		}
		return RuleSet{}
	}

	logger.Info("loaded filters", "count", len(rs), "enabled", rs.Enabled(), "path", path)
	return rs
}

// Marshal encodes a document as YAML
func Marshal(doc Document) ([]byte, error) {
	return yaml.Marshal(doc)
}
