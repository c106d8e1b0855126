package delivery

import (
	"context"
	"fmt"
	"strings"

	awsclient "servicedesk/internal/common/aws"
	"servicedesk/internal/directory"
)

const maxSMSLength = 160

// SMSChannel publishes transactional SMS through SNS.
type SMSChannel struct {
	sns      awsclient.SNSService
	contacts directory.ContactDirectory
	senderID string
}

func NewSMSChannel(sns awsclient.SNSService, contacts directory.ContactDirectory, senderID string) *SMSChannel {
	return &SMSChannel{sns: sns, contacts: contacts, senderID: senderID}
}

func (c *SMSChannel) Deliver(ctx context.Context, recipientID, title, body string) error {
	contact, err := c.contacts.Contact(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("resolve contact: %w", err)
	}
	if strings.TrimSpace(contact.Phone) == "" {
		return missingAddress("phone number", recipientID)
	}

	if _, err := c.sns.Publish(ctx, awsclient.SMS(contact.Phone, smsText(title, body), c.senderID)); err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

func smsText(title, body string) string {
	text := title + ": " + body
	if len([]rune(text)) <= maxSMSLength {
		return text
	}
	return string([]rune(text)[:maxSMSLength-3]) + "..."
}
