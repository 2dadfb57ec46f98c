package legacy

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/altafino/imap-message-filter/internal/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDat = `version="9"
logging="no"
name="Newsletters"
enabled="yes"
type="17"
action="Move to folder"
actionValue="imap://jane%40example.com@imap.example.com/INBOX/News%20Letters"
action="Mark read"
condition="AND (subject,contains,newsletter) AND (from,ends with,@lists.example.com)"
name="Big mail"
enabled="no"
type="17"
action="Delete"
condition="OR (size,is greater than,5000) OR (subject,contains,\"huge\")"
name="Forward"
enabled="yes"
type="17"
action="Forward"
actionValue="someone@example.com"
condition="AND (all addresses,contains,boss)"
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseFilters(t *testing.T) {
	raw, err := ParseFilters(strings.NewReader(sampleDat))
	require.NoError(t, err)
	require.Len(t, raw, 3)

	assert.Equal(t, "Newsletters", raw[0].Name)
	assert.True(t, raw[0].Enabled)
	assert.Equal(t, []RawAction{
		{Action: "Move to folder", Value: "imap://jane%40example.com@imap.example.com/INBOX/News%20Letters"},
		{Action: "Mark read"},
	}, raw[0].Actions)

	assert.False(t, raw[1].Enabled)
	assert.Equal(t, `OR (size,is greater than,5000) OR (subject,contains,"huge")`, raw[1].Condition)
}

func TestParseCondition(t *testing.T) {
	terms, or := ParseCondition("AND (subject,contains,foo bar) AND (from,is,a@b.c)")
	assert.False(t, or)
	assert.Equal(t, []Term{
		{Field: "subject", Operator: "contains", Value: "foo bar"},
		{Field: "from", Operator: "is", Value: "a@b.c"},
	}, terms)

	terms, or = ParseCondition(`OR (subject,contains,"x")`)
	assert.True(t, or)
	assert.Equal(t, []Term{{Field: "subject", Operator: "contains", Value: "x"}}, terms)

	terms, _ = ParseCondition("ALL")
	assert.Empty(t, terms)
}

func TestFolderFromURI(t *testing.T) {
	assert.Equal(t, "INBOX/Work", FolderFromURI("imap://user%40host.com@imap.host.com/INBOX/Work"))
	assert.Equal(t, "News Letters", FolderFromURI("mailbox://nobody@Local%20Folders/News%20Letters"))
	assert.Equal(t, "Archive", FolderFromURI("Archive"))
}

func TestConvert(t *testing.T) {
	raw, err := ParseFilters(strings.NewReader(sampleDat))
	require.NoError(t, err)

	doc := Convert(raw, discardLogger())
	require.Len(t, doc.Filters, 3)

	news := doc.Filters[0]
	assert.Equal(t, []filter.ConditionDoc{
		{Field: "subject", Operator: "contains", Value: "newsletter"},
		{Field: "from", Operator: "ends_with", Value: "@lists.example.com"},
	}, news.Conditions)
	assert.Equal(t, []filter.ActionDoc{
		{Type: "move", Folder: "INBOX/News Letters"},
		{Type: "mark", Flag: "read"},
	}, news.Actions)

	big := doc.Filters[1]
	require.NotNil(t, big.Enabled)
	assert.False(t, *big.Enabled)
	assert.Equal(t, []filter.ConditionDoc{
		{Field: "size", Operator: "greater_than", Value: "5000"},
		{Field: "subject", Operator: "contains", Value: "huge"},
	}, big.Conditions)

	// nothing had an equivalent
	forward := doc.Filters[2]
	assert.Empty(t, forward.Conditions)
	assert.Empty(t, forward.Actions)
}

func TestConvertedDocumentValidates(t *testing.T) {
	raw, err := ParseFilters(strings.NewReader(sampleDat))
	require.NoError(t, err)
	doc := Convert(raw, discardLogger())
	doc.Filters = doc.Filters[:2]

	rs, err := filter.Build(doc)
	require.NoError(t, err)
	assert.Len(t, rs, 2)
}

func TestImportProfile(t *testing.T) {
	profile := t.TempDir()
	account := filepath.Join(profile, "ImapMail", "imap.example.com")
	require.NoError(t, os.MkdirAll(account, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(account, FilterFileName), []byte(sampleDat), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(profile, "prefs.js"), []byte("//"), 0644))

	files, err := FindFilterFiles(profile)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	doc, err := ImportProfile(profile, discardLogger())
	require.NoError(t, err)
	assert.Len(t, doc.Filters, 3)
}

func TestFindProfiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"abc.default", "def.default-release", "other"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0755))
	}

	profiles, err := FindProfiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "abc.default"),
		filepath.Join(dir, "def.default-release"),
	}, profiles)
}
