package telegram

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram/auth/qrlogin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/TGArchive/internal/credentials"
)

func TestOptions(t *testing.T) {
	opts := &Opts{}
	storage := &session.StorageMemory{}
	var out bytes.Buffer

	WithSessionStorage(storage)(opts)
	WithQRLogin()(opts)
	WithQROutput(&out)(opts)
	WithBatchSize(20)(opts)

	assert.Same(t, storage, opts.SessionStorage)
	assert.True(t, opts.QRLogin)
	assert.Same(t, &out, opts.QROutput)
	assert.Equal(t, 20, opts.BatchSize)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(credentials.Credentials{APIID: 1, APIHash: "h", Phone: "+1"}, WithBatchSize(-5))
	require.NotNil(t, c.td)
	assert.Equal(t, DefaultBatchSize, c.cfg.BatchSize)
	assert.False(t, c.cfg.QRLogin)
	assert.NotNil(t, c.cfg.QROutput)
	assert.NotNil(t, c.API())
}

func TestShowQR(t *testing.T) {
	var out bytes.Buffer
	token := qrlogin.NewToken([]byte("secret"), 0)
	require.NoError(t, showQR(&out, token))

	text := out.String()
	assert.True(t, strings.HasSuffix(text, token.URL()+"\n"))
	assert.Contains(t, text, "Link Desktop Device")
	assert.Greater(t, strings.Count(text, "\n"), 5, "QR code should span several lines")
}
