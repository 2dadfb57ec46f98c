package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/altafino/imap-message-filter/internal/engine"
	"github.com/altafino/imap-message-filter/internal/oauth2"
	"github.com/altafino/imap-message-filter/internal/types"
	"github.com/emersion/go-imap"
	uidplus "github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/charset"
)

func init() {
	// decode encoded-word headers in any charset, not just UTF-8
	imap.CharsetReader = charset.Reader
}

// IMAPStore is the go-imap backed MailStore. It holds one connection and
// is not safe for concurrent commands beyond what the mutex serializes.
type IMAPStore struct {
	config    types.IMAPConfig
	fetchBody bool
	client    *client.Client
	logger    *slog.Logger

	mu       sync.Mutex
	folders  map[string]bool
	selected string
}

var _ engine.MailStore = (*IMAPStore)(nil)

// NewIMAPStore creates an unconnected store. With fetchBody the full
// message is downloaded with BODY.PEEK[] for body conditions.
func NewIMAPStore(config types.IMAPConfig, fetchBody bool, logger *slog.Logger) *IMAPStore {
	return &IMAPStore{
		config:    config,
		fetchBody: fetchBody,
		logger:    logger,
	}
}

// Connect dials the server and authenticates
func (s *IMAPStore) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	server := net.JoinHostPort(s.config.Host, fmt.Sprintf("%d", s.config.Port))
	timeout := time.Duration(s.config.Timeout) * time.Second
	dialer := &net.Dialer{Timeout: timeout}

	s.logger.Info("connecting to IMAP server",
		"server", s.config.Host,
		"port", s.config.Port,
		"ssl", s.config.UseSSL,
		"starttls", s.config.UseStartTLS,
		"username", s.config.Username,
	)

	tlsConfig := &tls.Config{
		ServerName:         s.config.Host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !s.config.VerifyCert,
	}

	var (
		c   *client.Client
		err error
	)
	if s.config.UseSSL {
		s.logger.Debug("using direct TLS connection")
		c, err = client.DialWithDialerTLS(dialer, server, tlsConfig)
	} else {
		s.logger.Debug("using plain connection")
		c, err = client.DialWithDialer(dialer, server)
	}
	if err != nil {
		return engine.ConnectionError(fmt.Errorf("failed to connect to IMAP server: %w", err))
	}

	if !s.config.UseSSL && s.config.UseStartTLS {
		s.logger.Debug("upgrading connection with STARTTLS")
		if err := c.StartTLS(tlsConfig); err != nil {
			if !s.config.AllowInsecure {
				c.Logout()
				return engine.ConnectionError(fmt.Errorf("STARTTLS failed: %w", err))
			}
			s.logger.Warn("STARTTLS failed, continuing with plain connection", "error", err)
		}
	}

	c.Timeout = timeout

	if err := s.authenticate(ctx, c); err != nil {
		c.Logout()
		return engine.ConnectionError(err)
	}

	s.mu.Lock()
	s.client = c
	s.folders = nil
	s.selected = ""
	s.mu.Unlock()

	s.logger.Info("successfully connected to IMAP server and logged in")
	return nil
}

func (s *IMAPStore) authenticate(ctx context.Context, c *client.Client) error {
	if !s.config.OAuth2.Enabled {
		if err := c.Login(s.config.Username, s.config.Password); err != nil {
			return fmt.Errorf("IMAP login failed: %w", err)
		}
		return nil
	}

	token, err := oauth2.AccessToken(ctx, s.config.OAuth2)
	if err != nil {
		return fmt.Errorf("failed to obtain OAuth2 token: %w", err)
	}
	if err := c.Authenticate(oauth2.NewXOAUTH2Client(s.config.Username, token)); err != nil {
		return fmt.Errorf("XOAUTH2 authentication failed: %w", err)
	}
	return nil
}

// Close logs out and terminates the connection
func (s *IMAPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Logout()
	s.client = nil
	if err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// conn returns the live client, or a connection error
func (s *IMAPStore) conn(ctx context.Context) (*client.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.client == nil {
		return nil, engine.ConnectionError(errors.New("not connected"))
	}
	return s.client, nil
}

// classify marks errors after which the connection is unusable
func (s *IMAPStore) classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case s.client != nil && s.client.State() == imap.LogoutState,
		errors.Is(err, io.EOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, client.ErrNotLoggedIn),
		errors.As(err, &netErr):
		return engine.ConnectionError(err)
	}
	return err
}

// ListFolders returns all folder names sorted
func (s *IMAPStore) ListFolders(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// list refreshes the folder cache, callers hold mu
func (s *IMAPStore) list(ctx context.Context) ([]string, error) {
	c, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.List("", "*", mailboxes)
	}()

	var names []string
	for m := range mailboxes {
		names = append(names, m.Name)
	}
	if err := <-done; err != nil {
		return nil, s.classify(fmt.Errorf("failed to list folders: %w", err))
	}

	s.folders = make(map[string]bool, len(names))
	for _, name := range names {
		s.folders[name] = true
	}
	return names, nil
}

// SelectFolder opens name read-write
func (s *IMAPStore) SelectFolder(ctx context.Context, name string) (engine.FolderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.conn(ctx)
	if err != nil {
		return engine.FolderStatus{}, err
	}

	mbox, err := c.Select(name, false)
	if err != nil {
		return engine.FolderStatus{}, s.classify(fmt.Errorf("failed to select %s: %w", name, err))
	}
	s.selected = name

	s.logger.Debug("selected folder", "folder", name, "messages", mbox.Messages, "recent", mbox.Recent)
	return engine.FolderStatus{
		Name:   mbox.Name,
		Total:  mbox.Messages,
		Recent: mbox.Recent,
	}, nil
}

// Search returns matching UIDs in ascending order
func (s *IMAPStore) Search(ctx context.Context, criteria engine.SearchCriteria) ([]engine.MessageID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	uids, err := c.UidSearch(searchCriteria(criteria))
	if err != nil {
		return nil, s.classify(fmt.Errorf("failed to search %s: %w", s.selected, err))
	}

	ids := make([]engine.MessageID, len(uids))
	for i, uid := range uids {
		ids[i] = engine.MessageID(uid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func searchCriteria(criteria engine.SearchCriteria) *imap.SearchCriteria {
	sc := imap.NewSearchCriteria()
	if criteria.Unseen {
		sc.WithoutFlags = []string{imap.SeenFlag}
	}
	if !criteria.Since.IsZero() {
		sc.Since = criteria.Since
	}
	return sc
}

func (s *IMAPStore) fetchItems() []imap.FetchItem {
	items := []imap.FetchItem{
		imap.FetchUid,
		imap.FetchEnvelope,
		imap.FetchRFC822Size,
		imap.FetchBodyStructure,
	}
	if s.fetchBody {
		section := &imap.BodySectionName{Peek: true}
		items = append(items, section.FetchItem())
	}
	return items
}

// FetchEnvelopes fetches metadata for ids. Ids the server does not return
// are missing from the result.
func (s *IMAPStore) FetchEnvelopes(ctx context.Context, ids []engine.MessageID) (map[engine.MessageID]engine.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return map[engine.MessageID]engine.Envelope{}, nil
	}

	seqSet := uidSet(ids...)
	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, s.fetchItems(), messages)
	}()

	out := make(map[engine.MessageID]engine.Envelope, len(ids))
	for msg := range messages {
		env, err := toEnvelope(msg)
		if err != nil {
			// keep the envelope, the body is simply unavailable
			s.logger.Warn("failed to parse message", "uid", msg.Uid, "error", err)
		}
		out[engine.MessageID(msg.Uid)] = env
	}
	if err := <-done; err != nil {
		return nil, s.classify(fmt.Errorf("failed to fetch messages: %w", err))
	}
	return out, nil
}

// EnsureFolder creates name when it does not exist yet
func (s *IMAPStore) EnsureFolder(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.folders == nil {
		if _, err := s.list(ctx); err != nil {
			return err
		}
	}
	if s.folders[name] {
		return nil
	}

	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := c.Create(name); err != nil {
		return s.classify(fmt.Errorf("failed to create folder %s: %w", name, err))
	}
	s.folders[name] = true
	s.logger.Info("created folder", "folder", name)
	return nil
}

// Move moves the message. Servers without the MOVE extension get COPY
// followed by a delete of only this message.
func (s *IMAPStore) Move(ctx context.Context, id engine.MessageID, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.conn(ctx)
	if err != nil {
		return err
	}

	supported, err := c.Support("MOVE")
	if err != nil {
		return s.classify(fmt.Errorf("failed to read capabilities: %w", err))
	}
	if supported {
		if err := c.UidMove(uidSet(id), folder); err != nil {
			return s.classify(fmt.Errorf("failed to move to %s: %w", folder, err))
		}
		return nil
	}

	if err := c.UidCopy(uidSet(id), folder); err != nil {
		return s.classify(fmt.Errorf("failed to copy to %s: %w", folder, err))
	}
	return s.remove(c, id)
}

// Copy copies the message to folder
func (s *IMAPStore) Copy(ctx context.Context, id engine.MessageID, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if err := c.UidCopy(uidSet(id), folder); err != nil {
		return s.classify(fmt.Errorf("failed to copy to %s: %w", folder, err))
	}
	return nil
}

// Delete flags the message \Deleted and expunges it. Other messages
// already flagged \Deleted are never expunged along with it.
func (s *IMAPStore) Delete(ctx context.Context, id engine.MessageID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return s.remove(c, id)
}

// remove flags one message \Deleted and expunges only that message. With
// UIDPLUS this is UID EXPUNGE. Without it the folder is expunged only when
// no other message carries \Deleted, otherwise the message stays flagged.
func (s *IMAPStore) remove(c *client.Client, id engine.MessageID) error {
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}
	if err := c.UidStore(uidSet(id), item, flags, nil); err != nil {
		return s.classify(fmt.Errorf("failed to mark message for deletion: %w", err))
	}

	uidClient := uidplus.NewClient(c)
	supported, err := uidClient.SupportUidPlus()
	if err != nil {
		return s.classify(fmt.Errorf("failed to read capabilities: %w", err))
	}
	if supported {
		if err := uidClient.UidExpunge(uidSet(id), nil); err != nil {
			return s.classify(fmt.Errorf("failed to expunge: %w", err))
		}
		return nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithFlags = []string{imap.DeletedFlag}
	marked, err := c.UidSearch(criteria)
	if err != nil {
		return s.classify(fmt.Errorf("failed to search deleted messages: %w", err))
	}
	if len(marked) != 1 || marked[0] != uint32(id) {
		s.logger.Warn("other messages are flagged deleted, leaving message flagged instead of expunging",
			"uid", id,
			"folder", s.selected,
			"flagged", len(marked),
		)
		return nil
	}

	if err := c.Expunge(nil); err != nil {
		return s.classify(fmt.Errorf("failed to expunge: %w", err))
	}
	return nil
}

// Mark adds flag, see MapFlag for the accepted names
func (s *IMAPStore) Mark(ctx context.Context, id engine.MessageID, flag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.conn(ctx)
	if err != nil {
		return err
	}

	mapped := MapFlag(flag)
	if mapped == "" || strings.ContainsAny(mapped, " ()") {
		return fmt.Errorf("invalid flag %q", flag)
	}

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(uidSet(id), item, []interface{}{mapped}, nil); err != nil {
		return s.classify(fmt.Errorf("failed to set flag %s: %w", mapped, err))
	}
	return nil
}

func uidSet(ids ...engine.MessageID) *imap.SeqSet {
	seqSet := new(imap.SeqSet)
	for _, id := range ids {
		seqSet.AddNum(uint32(id))
	}
	return seqSet
}
