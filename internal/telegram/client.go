// Package telegram wraps the gotd/td MTProto client for TGArchive.
//
// It owns the connection scope, logs the account in (login code, two-step
// verification password or QR code), resolves the conversation to archive and
// exposes that conversation as an archive.Source.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	td "github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	"github.com/BTreeMap/TGArchive/internal/credentials"
)

// DefaultBatchSize is the number of messages requested per history page.
const DefaultBatchSize = 100

// Opts holds configuration options for the Telegram client.
type Opts struct {
	SessionStorage td.SessionStorage // where the MTProto session is kept between runs
	QRLogin        bool              // log in by scanning a QR code instead of a login code
	QROutput       io.Writer         // where the login QR code is drawn
	BatchSize      int               // history page size
}

// Option defines a configuration option for the Telegram client.
type Option func(*Opts)

// WithSessionStorage persists the session through s.
func WithSessionStorage(s td.SessionStorage) Option {
	return func(o *Opts) {
		o.SessionStorage = s
	}
}

// WithQRLogin instructs the client to log in with a QR code.
func WithQRLogin() Option {
	return func(o *Opts) {
		o.QRLogin = true
	}
}

// WithQROutput draws the login QR code to w instead of stdout.
func WithQROutput(w io.Writer) Option {
	return func(o *Opts) {
		o.QROutput = w
	}
}

// WithBatchSize sets the history page size.
func WithBatchSize(n int) Option {
	return func(o *Opts) {
		o.BatchSize = n
	}
}

// Client wraps the gotd client for modular use.
type Client struct {
	td         *td.Client
	dispatcher tg.UpdateDispatcher
	cfg        Opts
}

// NewClient creates a Telegram client for creds. Nothing touches the network
// until Run is called.
func NewClient(creds credentials.Credentials, opts ...Option) *Client {
	cfg := Opts{QROutput: os.Stdout, BatchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	slog.Debug("Telegram NewClient options set",
		"session_storage_set", cfg.SessionStorage != nil, "qr_login", cfg.QRLogin, "batch_size", cfg.BatchSize)

	// Login token updates only arrive through the dispatcher.
	dispatcher := tg.NewUpdateDispatcher()
	client := td.NewClient(creds.APIID, creds.APIHash, td.Options{
		SessionStorage: cfg.SessionStorage,
		UpdateHandler:  dispatcher,
	})
	return &Client{td: client, dispatcher: dispatcher, cfg: cfg}
}

// Run connects, calls f and disconnects once f returns or ctx is done.
func (c *Client) Run(ctx context.Context, f func(ctx context.Context) error) error {
	slog.Debug("Connecting to Telegram")
	err := c.td.Run(ctx, func(ctx context.Context) error {
		slog.Info("Telegram client connected")
		return f(ctx)
	})
	slog.Debug("Telegram connection closed", "error", err)
	return err
}

// Self returns the logged in account.
func (c *Client) Self(ctx context.Context) (*tg.User, error) {
	self, err := c.td.Self(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return self, nil
}

// API exposes the raw MTProto method client.
func (c *Client) API() *tg.Client {
	return c.td.API()
}
