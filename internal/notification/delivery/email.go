package delivery

import (
	"context"
	"fmt"
	"strings"

	awsclient "servicedesk/internal/common/aws"
	"servicedesk/internal/directory"
)

// EmailChannel sends plain text email through SES.
type EmailChannel struct {
	ses      awsclient.SESService
	contacts directory.ContactDirectory
	from     string
}

func NewEmailChannel(ses awsclient.SESService, contacts directory.ContactDirectory, from string) *EmailChannel {
	return &EmailChannel{ses: ses, contacts: contacts, from: from}
}

func (c *EmailChannel) Deliver(ctx context.Context, recipientID, title, body string) error {
	contact, err := c.contacts.Contact(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}
	if strings.TrimSpace(contact.Email) == "" {
		return missingAddress("email address", recipientID)
	}

	if _, err := c.ses.SendEmail(ctx, awsclient.TextEmail(c.from, contact.Email, title, body)); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}
