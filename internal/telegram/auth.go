package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/mdp/qrterminal/v3"
)

// Prompter asks the user for one-time secrets during login.
type Prompter interface {
	Code(ctx context.Context, phone string) (string, error)
	Password(ctx context.Context) (string, error)
}

// authenticator is the part of auth.Client the login flow drives.
type authenticator interface {
	Status(ctx context.Context) (*auth.Status, error)
	SendCode(ctx context.Context, phone string, options auth.SendCodeOptions) (tg.AuthSentCodeClass, error)
	SignIn(ctx context.Context, phone, code, codeHash string) (*tg.AuthAuthorization, error)
	Password(ctx context.Context, password string) (*tg.AuthAuthorization, error)
}

// Authorize logs the session in unless it already is. It must run inside Run.
// It reports whether a new login happened.
func (c *Client) Authorize(ctx context.Context, phone string, p Prompter) (bool, error) {
	a := c.td.Auth()
	if c.cfg.QRLogin {
		return authorizeQR(ctx, a, p, func(ctx context.Context) (*tg.AuthAuthorization, error) {
			loggedIn := qrlogin.OnLoginToken(c.dispatcher)
			return c.td.QR().Auth(ctx, loggedIn, func(ctx context.Context, token qrlogin.Token) error {
				return showQR(c.cfg.QROutput, token)
			})
		})
	}
	return authorize(ctx, a, phone, p)
}

func authorize(ctx context.Context, a authenticator, phone string, p Prompter) (bool, error) {
	status, err := a.Status(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check authorization status: %w", err)
	}
	if status.Authorized {
		slog.Debug("Telegram session already authorized")
		return false, nil
	}

	slog.Info("Telegram login required; sending login code")
	sent, err := a.SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to send login code: %w", err)
	}
	var codeHash string
	switch s := sent.(type) {
	case *tg.AuthSentCode:
		codeHash = s.PhoneCodeHash
	case *tg.AuthSentCodeSuccess:
		slog.Info("Telegram login completed without a code")
		return true, nil
	default:
		return false, fmt.Errorf("unexpected sent code type %T", sent)
	}

	code, err := p.Code(ctx, phone)
	if err != nil {
		return false, fmt.Errorf("failed to read login code: %w", err)
	}
	_, err = a.SignIn(ctx, phone, code, codeHash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return true, enterPassword(ctx, a, p)
	}
	if err != nil {
		return false, fmt.Errorf("failed to sign in: %w", err)
	}
	slog.Info("Telegram login completed")
	return true, nil
}

func authorizeQR(ctx context.Context, a authenticator, p Prompter, qr func(context.Context) (*tg.AuthAuthorization, error)) (bool, error) {
	status, err := a.Status(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check authorization status: %w", err)
	}
	if status.Authorized {
		slog.Debug("Telegram session already authorized")
		return false, nil
	}

	slog.Info("Telegram login required; starting QR code flow")
	_, err = qr(ctx)
	if tgerr.Is(err, "SESSION_PASSWORD_NEEDED") {
		return true, enterPassword(ctx, a, p)
	}
	if err != nil {
		return false, fmt.Errorf("QR login failed: %w", err)
	}
	slog.Info("Telegram QR login completed")
	return true, nil
}

func enterPassword(ctx context.Context, a authenticator, p Prompter) error {
	slog.Info("Two-step verification password required")
	password, err := p.Password(ctx)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if _, err := a.Password(ctx, password); err != nil {
		return fmt.Errorf("failed to check password: %w", err)
	}
	return nil
}

// showQR draws token as a terminal QR code followed by its tg:// URL.
func showQR(w io.Writer, token qrlogin.Token) error {
	slog.Debug("Telegram login token received", "expires", token.Expires())
	fmt.Fprintln(w, "Scan this code in Telegram: Settings > Devices > Link Desktop Device")
	qrterminal.GenerateHalfBlock(token.URL(), qrterminal.L, w)
	_, err := fmt.Fprintln(w, token.URL())
	return err
}
