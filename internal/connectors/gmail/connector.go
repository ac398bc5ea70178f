package gmail

import (
	"context"
	"encoding/base64"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"worksync/internal/config"
	"worksync/internal/connectors"
	"worksync/internal/googleauth"
)

// Connector leaves composed messages as drafts in the authorised mailbox.
type Connector struct {
	service *gmail.Service
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	opts, err := googleauth.ClientOptions(ctx, cfg, gmail.GmailComposeScope)
	if err != nil {
		return nil, err
	}
	return NewConnectorWithOptions(ctx, opts...)
}

func NewConnectorWithOptions(ctx context.Context, opts ...option.ClientOption) (*Connector, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Connector{service: svc}, nil
}

func (c *Connector) Provider() string { return "gmail" }

func (c *Connector) Deliver(ctx context.Context, msg connectors.Message) (string, error) {
	draft := &gmail.Draft{
		Message: &gmail.Message{Raw: base64.URLEncoding.EncodeToString(msg.Raw)},
	}
	created, err := c.service.Users.Drafts.Create("me", draft).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}
