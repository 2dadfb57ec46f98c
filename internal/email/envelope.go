package email

import (
	"fmt"
	"io"
	"strings"

	"github.com/altafino/imap-message-filter/internal/engine"
	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
)

// toEnvelope converts one fetched message. The full body is parsed only
// when it was requested, in which case it also decides has_attachment and
// fills a Bcc header the envelope does not carry.
func toEnvelope(msg *imap.Message) (engine.Envelope, error) {
	env := engine.Envelope{
		Size: int64(msg.Size),
	}

	if e := msg.Envelope; e != nil {
		env.From = formatAddress(e.From)
		env.To = formatAddresses(e.To)
		env.Cc = formatAddresses(e.Cc)
		env.Bcc = formatAddresses(e.Bcc)
		env.Subject = e.Subject
		env.Date = e.Date
	}

	if msg.BodyStructure != nil {
		has := hasAttachment(msg.BodyStructure)
		env.HasAttachment = &has
	}

	for _, literal := range msg.Body {
		if literal == nil {
			continue
		}
		if err := parseBody(literal, &env); err != nil {
			return env, err
		}
		break
	}

	return env, nil
}

func parseBody(r io.Reader, env *engine.Envelope) error {
	parsed, err := enmime.ReadEnvelope(r)
	if err != nil {
		return fmt.Errorf("failed to parse message body: %w", err)
	}

	body := parsed.Text
	if body == "" {
		body = parsed.HTML
	}
	env.Body = &body

	has := len(parsed.Attachments) > 0
	env.HasAttachment = &has

	if env.Bcc == "" {
		env.Bcc = parsed.GetHeader("Bcc")
	}
	return nil
}

// formatAddress renders the first address as "Name <addr>" or "addr"
func formatAddress(list []*imap.Address) string {
	for _, a := range list {
		if a == nil {
			continue
		}
		addr := a.Address()
		if a.PersonalName != "" {
			return fmt.Sprintf("%s <%s>", a.PersonalName, addr)
		}
		return addr
	}
	return ""
}

func formatAddresses(list []*imap.Address) string {
	parts := make([]string, 0, len(list))
	for _, a := range list {
		if a == nil {
			continue
		}
		parts = append(parts, formatAddress([]*imap.Address{a}))
	}
	return strings.Join(parts, ", ")
}

func hasAttachment(bs *imap.BodyStructure) bool {
	if strings.EqualFold(bs.Disposition, "attachment") {
		return true
	}
	if len(bs.Parts) == 0 {
		if bs.DispositionParams["filename"] != "" {
			return true
		}
		// named non-text leaf parts are attachments in older mailers
		return bs.Params["name"] != "" && !strings.EqualFold(bs.MIMEType, "text")
	}
	for _, part := range bs.Parts {
		if part != nil && hasAttachment(part) {
			return true
		}
	}
	return false
}
