package legacy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/altafino/imap-message-filter/internal/types"
)

// PrefsFileName holds the account settings of a Thunderbird profile
const PrefsFileName = "prefs.js"

// Thunderbird socketType and authMethod values
const (
	SocketSSL  = 3
	AuthOAuth2 = 10
)

const (
	defaultIMAP  = 143
	defaultIMAPS = 993
)

// Account is one incoming server configured in prefs.js
type Account struct {
	Key        string // serverN
	Type       string // imap, pop3, none, nntp, rss
	Host       string
	Port       int
	Username   string
	SocketType int
	AuthMethod int
}

var serverPref = regexp.MustCompile(`^user_pref\("mail\.server\.(server\d+)\.([A-Za-z]+)",\s*(.+?)\);`)

// ParsePrefs returns the IMAP servers of a prefs.js file ordered by their
// server number. Servers without a hostname or user name are left out.
func ParsePrefs(r io.Reader) ([]Account, error) {
	byKey := map[string]*Account{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := serverPref.FindStringSubmatch(strings.TrimSpace(scanner.Text()))
		if m == nil {
			continue
		}
		key, name, raw := m[1], m[2], m[3]

		acct, ok := byKey[key]
		if !ok {
			acct = &Account{Key: key}
			byKey[key] = acct
		}

		switch name {
		case "hostname":
			acct.Host = prefString(raw)
		case "userName":
			acct.Username = prefString(raw)
		case "type":
			acct.Type = prefString(raw)
		case "port":
			acct.Port, _ = strconv.Atoi(raw)
		case "socketType":
			acct.SocketType, _ = strconv.Atoi(raw)
		case "authMethod":
			acct.AuthMethod, _ = strconv.Atoi(raw)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prefs: %w", err)
	}

	var accounts []Account
	for _, acct := range byKey {
		if acct.Host == "" || acct.Username == "" {
			continue
		}
		if acct.Type != "" && acct.Type != "imap" {
			continue
		}
		accounts = append(accounts, *acct)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return serverNumber(accounts[i].Key) < serverNumber(accounts[j].Key)
	})
	return accounts, nil
}

func prefString(raw string) string {
	if s, err := strconv.Unquote(raw); err == nil {
		return s
	}
	return strings.Trim(raw, `"`)
}

func serverNumber(key string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(key, "server"))
	return n
}

// Apply copies the server settings onto cfg. Credentials other than the
// user name are left alone.
func (a Account) Apply(cfg *types.IMAPConfig) {
	cfg.Host = a.Host
	cfg.Username = a.Username
	cfg.UseSSL = a.SocketType == SocketSSL
	cfg.UseStartTLS = a.SocketType == 1 || a.SocketType == 2

	cfg.Port = a.Port
	if cfg.Port == 0 {
		cfg.Port = defaultIMAP
		if cfg.UseSSL {
			cfg.Port = defaultIMAPS
		}
	}

	cfg.OAuth2.Enabled = a.AuthMethod == AuthOAuth2
	if cfg.OAuth2.Enabled {
		cfg.OAuth2.Provider = oauthProvider(a.Host)
	}
}

// Security describes the connection encryption for display
func (a Account) Security() string {
	switch a.SocketType {
	case SocketSSL:
		return "SSL/TLS"
	case 1, 2:
		return "STARTTLS"
	default:
		return "none"
	}
}

func oauthProvider(host string) string {
	host = strings.ToLower(host)
	switch {
	case strings.HasSuffix(host, "gmail.com"), strings.HasSuffix(host, "googlemail.com"):
		return "google"
	case strings.HasSuffix(host, "office365.com"), strings.HasSuffix(host, "outlook.com"):
		return "microsoft"
	default:
		return ""
	}
}

// knownServers are the IMAP endpoints of common providers by mail domain
var knownServers = map[string]string{
	"gmail.com":   "imap.gmail.com",
	"outlook.com": "outlook.office365.com",
	"hotmail.com": "outlook.office365.com",
	"yahoo.com":   "imap.mail.yahoo.com",
	"icloud.com":  "imap.mail.me.com",
	"aol.com":     "imap.aol.com",
}

// KnownServer returns the account of a common provider for an address
func KnownServer(address string) (Account, bool) {
	at := strings.LastIndex(address, "@")
	if at < 0 {
		return Account{}, false
	}
	host, ok := knownServers[strings.ToLower(address[at+1:])]
	if !ok {
		return Account{}, false
	}
	return Account{Type: "imap", Host: host, Port: defaultIMAPS, Username: address, SocketType: SocketSSL}, true
}

// KnownDomains lists the mail domains KnownServer recognizes
func KnownDomains() []string {
	domains := make([]string, 0, len(knownServers))
	for d := range knownServers {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// ImportAccounts reads the IMAP accounts of a profile. A profile without
// prefs.js has no accounts.
func ImportAccounts(profile string, logger *slog.Logger) ([]Account, error) {
	path := filepath.Join(profile, PrefsFileName)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("profile has no prefs file", "profile", profile)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	accounts, err := ParsePrefs(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Debug("read Thunderbird accounts", "file", path, "accounts", len(accounts))
	return accounts, nil
}
