package connectors

import "context"

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is a composed notification ready for delivery.
type Message struct {
	TaskNumber string
	Template   string
	Subject    string
	HTML       string
	Text       string
	Raw        []byte
}

// MailDelivery hands a composed message to a mail provider and returns the
// provider's reference for it (a file name, draft id or mailbox).
type MailDelivery interface {
	Provider() string
	Deliver(ctx context.Context, msg Message) (string, error)
}
