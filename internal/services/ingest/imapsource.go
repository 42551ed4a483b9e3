package ingest

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/pkg/errors"
)

// IMAPSource fetches mail over IMAP. A fresh connection is made per fetch;
// poll cycles are minutes apart and long-lived IMAP sessions get dropped by
// most providers anyway.
type IMAPSource struct {
	addr     string
	username string
	password string
	mailbox  string
}

func NewIMAPSource(addr, username, password, mailbox string) *IMAPSource {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &IMAPSource{addr: addr, username: username, password: password, mailbox: mailbox}
}

func (s *IMAPSource) FetchSince(ctx context.Context, uid uint32) ([]Message, error) {
	c, err := client.DialTLS(s.addr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "imap dial")
	}
	defer c.Logout()

	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}

	if err := c.Login(s.username, s.password); err != nil {
		return nil, errors.Wrap(err, "imap login")
	}

	mbox, err := c.Select(s.mailbox, true)
	if err != nil {
		return nil, errors.Wrapf(err, "imap select %s", s.mailbox)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddRange(uid+1, 0)

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Specifier: imap.TextSpecifier},
		Peek:         true,
	}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}

	ch := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, ch)
	}()

	var out []Message
	for msg := range ch {
		// UidFetch with an open-ended range always returns at least the
		// last message; drop anything at or below the cursor.
		if msg.Uid <= uid {
			continue
		}
		m := Message{UID: msg.Uid}
		if msg.Envelope != nil {
			m.Subject = msg.Envelope.Subject
			m.Date = msg.Envelope.Date
			if len(msg.Envelope.From) > 0 {
				m.From = msg.Envelope.From[0].Address()
			}
		}
		if body := msg.GetBody(section); body != nil {
			b, err := io.ReadAll(body)
			if err != nil {
				return nil, errors.Wrapf(err, "read body uid %d", msg.Uid)
			}
			m.Body = string(b)
		}
		out = append(out, m)
	}
	if err := <-done; err != nil {
		// Some servers reject an open-ended UID range past the end of the
		// mailbox instead of returning nothing.
		if len(out) == 0 && strings.Contains(strings.ToLower(err.Error()), "invalid") {
			return nil, nil
		}
		return nil, errors.Wrap(err, "imap fetch")
	}
	return out, nil
}
