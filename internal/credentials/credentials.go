// Package credentials resolves the Telegram application credentials and phone
// number, and writes interactively entered values back to the .env file.
package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment keys read and written by this package.
const (
	EnvAPIID   = "API_ID"
	EnvAPIHash = "API_HASH"
	EnvPhone   = "PHONE"
)

// DefaultEnvFile is the file credentials are persisted to.
const DefaultEnvFile = ".env"

var (
	ErrMissing      = errors.New("API ID, API hash and phone number are all required")
	ErrInvalidAPIID = errors.New("API ID must be a positive integer")
)

// Credentials are validated login parameters.
type Credentials struct {
	APIID   int
	APIHash string
	Phone   string
}

// Draft holds raw values as found in the environment or typed by the user.
type Draft struct {
	APIID   string
	APIHash string
	Phone   string

	// Prompted is set once any application value had to be asked for; such
	// drafts are saved after a successful login.
	Prompted bool
}

// FromEnv reads a draft from the process environment.
func FromEnv() Draft {
	d := Draft{
		APIID:   strings.TrimSpace(os.Getenv(EnvAPIID)),
		APIHash: strings.TrimSpace(os.Getenv(EnvAPIHash)),
		Phone:   strings.TrimSpace(os.Getenv(EnvPhone)),
	}
	slog.Debug("credentials loaded from environment",
		"API_ID_SET", d.APIID != "", "API_HASH_SET", d.APIHash != "", "PHONE_SET", d.Phone != "")
	return d
}

// NeedsApp reports whether the application ID or hash is missing.
func (d Draft) NeedsApp() bool {
	return d.APIID == "" || d.APIHash == ""
}

// Validate converts the draft into Credentials.
func (d Draft) Validate() (Credentials, error) {
	if d.APIID == "" || d.APIHash == "" || d.Phone == "" {
		return Credentials{}, ErrMissing
	}
	id, err := strconv.Atoi(d.APIID)
	if err != nil || id <= 0 {
		return Credentials{}, fmt.Errorf("%w: %q", ErrInvalidAPIID, d.APIID)
	}
	return Credentials{APIID: id, APIHash: d.APIHash, Phone: d.Phone}, nil
}

// Save merges the credentials into the env file at path, keeping every other
// key already present. The file is written with owner-only permissions.
func Save(path string, c Credentials) error {
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		env = map[string]string{}
	} else if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	env[EnvAPIID] = strconv.Itoa(c.APIID)
	env[EnvAPIHash] = c.APIHash
	env[EnvPhone] = c.Phone

	if err := os.WriteFile(path, []byte(marshal(env)), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	slog.Info("Credentials saved", "path", path)
	return nil
}

// marshal renders env sorted by key with every value quoted. godotenv.Marshal
// writes anything strconv.Atoi accepts unquoted, which drops the plus sign of
// international phone numbers.
func marshal(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, strconv.Quote(env[k]))
	}
	return b.String()
}
