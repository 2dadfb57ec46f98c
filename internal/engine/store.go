package engine

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrConnection marks failures of the mail store connection itself (lost
// connection, revoked authentication). The executor aborts the run on
// these instead of recording them against a single action.
var ErrConnection = errors.New("mail store connection failed")

// ConnectionError wraps err so that errors.Is(err, ErrConnection) holds
func ConnectionError(err error) error {
	if err == nil || errors.Is(err, ErrConnection) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}

// IsFatal reports whether err means no further progress is possible
func IsFatal(err error) bool {
	return errors.Is(err, ErrConnection) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// MessageID identifies a message within the selected folder
type MessageID uint32

// FolderStatus is returned when a folder is selected
type FolderStatus struct {
	Name   string
	Total  uint32
	Recent uint32
}

// SearchCriteria restricts which messages a search returns. The zero value
// matches every message.
type SearchCriteria struct {
	Unseen bool
	Since  time.Time
}

// Envelope is the metadata fetched for one message. From, Subject, Date
// and Size are always requested; the remaining fields are filled when the
// store has them.
type Envelope struct {
	From    string
	To      string
	Cc      string
	Bcc     string
	Subject string
	Date    time.Time
	Size    int64

	// HasAttachment is nil when the store did not look at the structure
	HasAttachment *bool
	// Body is nil when the body was not fetched
	Body *string
}

// MailStore is the mailbox surface the executor and CLI depend on
type MailStore interface {
	ListFolders(ctx context.Context) ([]string, error)
	SelectFolder(ctx context.Context, name string) (FolderStatus, error)
	Search(ctx context.Context, criteria SearchCriteria) ([]MessageID, error)
	FetchEnvelopes(ctx context.Context, ids []MessageID) (map[MessageID]Envelope, error)
	EnsureFolder(ctx context.Context, name string) error
	Move(ctx context.Context, id MessageID, folder string) error
	Copy(ctx context.Context, id MessageID, folder string) error
	Delete(ctx context.Context, id MessageID) error
	Mark(ctx context.Context, id MessageID, flag string) error
}
