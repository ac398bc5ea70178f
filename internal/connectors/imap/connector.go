package imap

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"worksync/internal/config"
	"worksync/internal/connectors"
)

// Connector appends composed messages to the drafts mailbox of an IMAP account.
type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	mailbox  string
	now      func() time.Time
}

func NewConnector(cfg config.Config) (*Connector, error) {
	if err := cfg.Require("IMAP_HOST", cfg.IMAPHost); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_USER", cfg.IMAPUser); err != nil {
		return nil, err
	}
	if err := cfg.Require("IMAP_PASSWORD", cfg.IMAPPassword); err != nil {
		return nil, err
	}

	mailbox := cfg.IMAPDraftsMailbox
	if mailbox == "" {
		mailbox = "Drafts"
	}

	return &Connector{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		mailbox:  mailbox,
		now:      time.Now,
	}, nil
}

func (c *Connector) Provider() string { return "imap" }

func (c *Connector) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

func (c *Connector) Deliver(ctx context.Context, msg connectors.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var client *imapclient.Client
	var err error
	if c.secure {
		client, err = imapclient.DialTLS(c.Addr(), &tls.Config{ServerName: c.host})
	} else {
		client, err = imapclient.Dial(c.Addr())
	}
	if err != nil {
		return "", err
	}
	defer client.Logout()

	if err := client.Login(c.user, c.password); err != nil {
		return "", err
	}

	flags := []string{imap.DraftFlag, imap.SeenFlag}
	if err := client.Append(c.mailbox, flags, c.now(), bytes.NewBuffer(msg.Raw)); err != nil {
		return "", fmt.Errorf("append to %s: %w", c.mailbox, err)
	}
	return c.mailbox, nil
}
