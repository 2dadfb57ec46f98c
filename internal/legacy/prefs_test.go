package legacy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/altafino/imap-message-filter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePrefs = `// Mozilla User Preferences
user_pref("mail.account.account1.server", "server1");
user_pref("mail.server.server1.hostname", "Local Folders");
user_pref("mail.server.server1.type", "none");
user_pref("mail.server.server1.userName", "nobody");
user_pref("mail.server.server10.hostname", "mail.example.org");
user_pref("mail.server.server10.type", "imap");
user_pref("mail.server.server10.userName", "bob");
user_pref("mail.server.server10.socketType", 2);
user_pref("mail.server.server2.hostname", "imap.example.com");
user_pref("mail.server.server2.port", 993);
user_pref("mail.server.server2.socketType", 3);
user_pref("mail.server.server2.authMethod", 3);
user_pref("mail.server.server2.type", "imap");
user_pref("mail.server.server2.userName", "jane@example.com");
user_pref("mail.server.server3.hostname", "pop.example.com");
user_pref("mail.server.server3.type", "pop3");
user_pref("mail.server.server3.userName", "jane");
user_pref("mail.server.server4.hostname", "imap.gmail.com");
user_pref("mail.server.server4.socketType", 3);
user_pref("mail.server.server4.authMethod", 10);
user_pref("mail.server.server4.type", "imap");
user_pref("mail.server.server4.userName", "jane@gmail.com");
user_pref("mail.server.server5.hostname", "half.example.com");
user_pref("mail.server.server5.type", "imap");
`

func TestParsePrefs(t *testing.T) {
	accounts, err := ParsePrefs(strings.NewReader(samplePrefs))
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	assert.Equal(t, Account{
		Key: "server2", Type: "imap", Host: "imap.example.com", Port: 993,
		Username: "jane@example.com", SocketType: 3, AuthMethod: 3,
	}, accounts[0])
	assert.Equal(t, "server4", accounts[1].Key)
	assert.Equal(t, "server10", accounts[2].Key)
	assert.Equal(t, "STARTTLS", accounts[2].Security())
}

func TestAccountApply(t *testing.T) {
	accounts, err := ParsePrefs(strings.NewReader(samplePrefs))
	require.NoError(t, err)

	cfg := types.IMAPConfig{Password: "kept", Timeout: 30, VerifyCert: true}
	accounts[0].Apply(&cfg)
	assert.Equal(t, types.IMAPConfig{
		Host: "imap.example.com", Port: 993, Username: "jane@example.com", Password: "kept",
		UseSSL: true, VerifyCert: true, Timeout: 30,
	}, cfg)

	accounts[1].Apply(&cfg)
	assert.True(t, cfg.OAuth2.Enabled)
	assert.Equal(t, "google", cfg.OAuth2.Provider)
	assert.Equal(t, 993, cfg.Port)

	accounts[2].Apply(&cfg)
	assert.False(t, cfg.OAuth2.Enabled)
	assert.False(t, cfg.UseSSL)
	assert.True(t, cfg.UseStartTLS)
	assert.Equal(t, 143, cfg.Port)
}

func TestKnownServer(t *testing.T) {
	acct, ok := KnownServer("Someone@Hotmail.com")
	require.True(t, ok)
	assert.Equal(t, "outlook.office365.com", acct.Host)
	assert.Equal(t, "Someone@Hotmail.com", acct.Username)
	assert.Equal(t, "SSL/TLS", acct.Security())

	_, ok = KnownServer("jane@example.com")
	assert.False(t, ok)
	_, ok = KnownServer("not-an-address")
	assert.False(t, ok)

	assert.Contains(t, KnownDomains(), "gmail.com")
}

func TestImportAccounts(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "abcd.default-release")
	require.NoError(t, os.MkdirAll(profile, 0755))

	accounts, err := ImportAccounts(profile, discardLogger())
	require.NoError(t, err)
	assert.Empty(t, accounts)

	require.NoError(t, os.WriteFile(filepath.Join(profile, PrefsFileName), []byte(samplePrefs), 0644))
	accounts, err = ImportAccounts(profile, discardLogger())
	require.NoError(t, err)
	assert.Len(t, accounts, 3)
}
