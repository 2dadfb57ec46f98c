package email

import (
	"strings"

	"github.com/emersion/go-imap"
)

var flagAliases = map[string]string{
	"read":      imap.SeenFlag,
	"seen":      imap.SeenFlag,
	"flagged":   imap.FlaggedFlag,
	"starred":   imap.FlaggedFlag,
	"important": imap.FlaggedFlag,
	"answered":  imap.AnsweredFlag,
	"draft":     imap.DraftFlag,
	"deleted":   imap.DeletedFlag,
}

// MapFlag turns a rule's mark flag into the IMAP flag to store. System
// flags given with a leading backslash pass through, unknown names are
// stored as keywords.
func MapFlag(flag string) string {
	flag = strings.TrimSpace(flag)
	if strings.HasPrefix(flag, `\`) {
		return flag
	}
	if mapped, ok := flagAliases[strings.ToLower(flag)]; ok {
		return mapped
	}
	return flag
}
