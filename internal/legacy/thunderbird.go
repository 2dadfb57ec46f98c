// Package legacy imports message filters from other mail clients.
package legacy

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/altafino/imap-message-filter/internal/filter"
)

// FilterFileName is the per-account rules file of a Thunderbird profile
const FilterFileName = "msgFilterRules.dat"

// RawFilter is one filter block of a msgFilterRules.dat file
type RawFilter struct {
	Name      string
	Enabled   bool
	Type      string
	Actions   []RawAction
	Condition string
}

// RawAction is an action line with its optional actionValue line
type RawAction struct {
	Action string
	Value  string
}

// DefaultProfilesDir returns where Thunderbird keeps profiles on this OS
func DefaultProfilesDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Thunderbird", "Profiles")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Thunderbird", "Profiles")
	default:
		return filepath.Join(home, ".thunderbird")
	}
}

// FindProfiles lists the default profiles under dir
func FindProfiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles directory: %w", err)
	}

	var profiles []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".default") || strings.HasSuffix(e.Name(), ".default-release") {
			profiles = append(profiles, filepath.Join(dir, e.Name()))
		}
	}
	return profiles, nil
}

// FindFilterFiles walks profile for msgFilterRules.dat files
func FindFilterFiles(profile string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(profile, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped
			if d != nil && d.IsDir() && path != profile {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() && d.Name() == FilterFileName {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", profile, err)
	}
	return files, nil
}

// ParseFilters reads the key="value" line format of msgFilterRules.dat
func ParseFilters(r io.Reader) ([]RawFilter, error) {
	var (
		filters []RawFilter
		current *RawFilter
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		key, value, ok := splitLine(scanner.Text())
		if !ok {
			continue
		}

		if key == "name" {
			if current != nil {
				filters = append(filters, *current)
			}
			current = &RawFilter{Name: value, Enabled: true}
			continue
		}
		if current == nil {
			// version and logging header lines
			continue
		}

		switch key {
		case "enabled":
			current.Enabled = value == "yes"
		case "type":
			current.Type = value
		case "action":
			current.Actions = append(current.Actions, RawAction{Action: value})
		case "actionValue":
			if n := len(current.Actions); n > 0 {
				current.Actions[n-1].Value = value
			}
		case "condition":
			current.Condition = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read filter file: %w", err)
	}

	if current != nil {
		filters = append(filters, *current)
	}
	return filters, nil
}

func splitLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	eq := strings.Index(line, `="`)
	if eq <= 0 || !strings.HasSuffix(line, `"`) || len(line) < eq+3 {
		return "", "", false
	}
	value = line[eq+2 : len(line)-1]
	value = strings.ReplaceAll(value, `\"`, `"`)
	value = strings.ReplaceAll(value, `\\`, `\`)
	return line[:eq], value, true
}

var termPattern = regexp.MustCompile(`\(([^,()]+),([^,()]+),(.*?)\)(?:\s+(?:AND|OR)\s+|\s*$)`)

// Term is one (field,operator,value) group of a condition string
type Term struct {
	Field    string
	Operator string
	Value    string
}

// ParseCondition splits a condition string such as
// `AND (subject,contains,foo) AND (from,is,bar)` into its terms. or
// reports whether the terms are OR-ed.
func ParseCondition(condition string) (terms []Term, or bool) {
	condition = strings.TrimSpace(condition)
	if condition == "ALL" {
		return nil, false
	}
	or = strings.HasPrefix(condition, "OR ")

	for _, m := range termPattern.FindAllStringSubmatch(condition, -1) {
		terms = append(terms, Term{
			Field:    strings.TrimSpace(m[1]),
			Operator: strings.TrimSpace(m[2]),
			Value:    strings.Trim(strings.TrimSpace(m[3]), `"`),
		})
	}
	return terms, or
}

var fieldNames = map[string]filter.Field{
	"subject": filter.FieldSubject,
	"from":    filter.FieldFrom,
	"to":      filter.FieldTo,
	"cc":      filter.FieldCc,
	"bcc":     filter.FieldBcc,
	"body":    filter.FieldBody,
	"date":    filter.FieldDate,
	"size":    filter.FieldSize,
}

var textOperatorNames = map[string]filter.Operator{
	"contains":        filter.OpContains,
	"doesn't contain": filter.OpDoesntContain,
	"is":              filter.OpIs,
	"begins with":     filter.OpStartsWith,
	"ends with":       filter.OpEndsWith,
}

var sizeOperatorNames = map[string]filter.Operator{
	"is":              filter.OpEquals,
	"isn't":           filter.OpNotEquals,
	"is greater than": filter.OpGreaterThan,
	"is less than":    filter.OpLessThan,
}

func convertOperator(field filter.Field, name string) (filter.Operator, bool) {
	name = strings.ToLower(name)
	if field == filter.FieldSize {
		op, ok := sizeOperatorNames[name]
		return op, ok
	}
	op, ok := textOperatorNames[name]
	return op, ok
}

// FolderFromURI turns an actionValue folder URI like
// imap://user%40host@server/INBOX/Work into "INBOX/Work"
func FolderFromURI(uri string) string {
	_, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	// drop the account@server authority
	_, folder, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	if unescaped, err := url.PathUnescape(folder); err == nil {
		folder = unescaped
	}
	return folder
}

func convertAction(a RawAction) (filter.ActionDoc, bool) {
	switch a.Action {
	case "Move to folder":
		return filter.ActionDoc{Type: string(filter.ActionMove), Folder: FolderFromURI(a.Value)}, true
	case "Copy to folder":
		return filter.ActionDoc{Type: string(filter.ActionCopy), Folder: FolderFromURI(a.Value)}, true
	case "Delete":
		return filter.ActionDoc{Type: string(filter.ActionDelete)}, true
	case "Mark read":
		return filter.ActionDoc{Type: string(filter.ActionMark), Flag: "read"}, true
	case "Mark flagged":
		return filter.ActionDoc{Type: string(filter.ActionMark), Flag: "flagged"}, true
	case "Mark":
		return filter.ActionDoc{Type: string(filter.ActionMark), Flag: a.Value}, true
	default:
		return filter.ActionDoc{}, false
	}
}

// Convert builds a rules document from Thunderbird filters. Conditions and
// actions without an equivalent are dropped with a warning.
func Convert(raw []RawFilter, logger *slog.Logger) filter.Document {
	doc := filter.Document{Filters: make([]filter.RuleDoc, 0, len(raw))}

	for _, rf := range raw {
		enabled := rf.Enabled
		priority := 1
		rd := filter.RuleDoc{
			Name:     rf.Name,
			Enabled:  &enabled,
			Priority: &priority,
		}

		terms, or := ParseCondition(rf.Condition)
		if or && len(terms) > 1 {
			logger.Warn("OR conditions imported as AND", "filter", rf.Name)
		}
		for _, t := range terms {
			field, fok := fieldNames[strings.ToLower(t.Field)]
			op, ook := convertOperator(field, t.Operator)
			if !fok || !ook {
				logger.Warn("skipping unsupported condition",
					"filter", rf.Name,
					"field", t.Field,
					"operator", t.Operator,
				)
				continue
			}
			rd.Conditions = append(rd.Conditions, filter.ConditionDoc{
				Field:    string(field),
				Operator: string(op),
				Value:    t.Value,
			})
		}

		for _, a := range rf.Actions {
			ad, ok := convertAction(a)
			if !ok {
				logger.Warn("skipping unsupported action", "filter", rf.Name, "action", a.Action)
				continue
			}
			rd.Actions = append(rd.Actions, ad)
		}

		doc.Filters = append(doc.Filters, rd)
	}

	return doc
}

// ImportFile parses and converts one msgFilterRules.dat file
func ImportFile(path string, logger *slog.Logger) (filter.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return filter.Document{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	raw, err := ParseFilters(f)
	if err != nil {
		return filter.Document{}, err
	}
	logger.Info("read Thunderbird filters", "file", path, "count", len(raw))
	return Convert(raw, logger), nil
}

// ImportProfile imports every filter file below profile into one document
func ImportProfile(profile string, logger *slog.Logger) (filter.Document, error) {
	files, err := FindFilterFiles(profile)
	if err != nil {
		return filter.Document{}, err
	}

	var doc filter.Document
	for _, path := range files {
		part, err := ImportFile(path, logger)
		if err != nil {
			logger.Warn("skipping unreadable filter file", "file", path, "error", err)
			continue
		}
		doc.Filters = append(doc.Filters, part.Filters...)
	}
	return doc, nil
}
