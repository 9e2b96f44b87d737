package inference

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefoxdp/firefoxdp"
	"github.com/firefoxdp/firefoxdp/internal/biditest"
)

// newTestClient returns a client attached to a fake browser which emulates
// every runner command.
func newTestClient(t *testing.T, opts ...biditest.Option) (*Client, *biditest.Server) {
	t.Helper()
	srv := biditest.New(t, opts...)
	srv.Emulate()

	cfg := DefaultConfig()
	cfg.RemoteURL = srv.URL()
	c, err := New(context.Background(), cfg, WithLogger(NullLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })
	return c, srv
}

func TestNewMissingBinary(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "firefox")
	cfg := DefaultConfig()
	cfg.BinaryPath = missing

	c, err := New(context.Background(), cfg, WithLogger(NullLogger()))
	assert.Nil(t, c)
	var serr *firefoxdp.StartupError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, missing, serr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewInvalidPref(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Prefs = map[string]interface{}{"browser.ml.enable": []string{"yes"}}
	_, err := New(context.Background(), cfg, WithLogger(NullLogger()))
	assert.ErrorContains(t, err, `pref "browser.ml.enable"`)
}

func TestNewUnreachable(t *testing.T) {
	t.Parallel()

	srv := biditest.New(t)
	cfg := DefaultConfig()
	// A URL the server doesn't upgrade.
	cfg.RemoteURL = srv.URL() + "/missing"
	_, err := New(context.Background(), cfg, WithLogger(NullLogger()))
	assert.Error(t, err)
}

func TestConfigIsCopied(t *testing.T) {
	t.Parallel()

	srv := biditest.New(t)
	cfg := DefaultConfig()
	cfg.RemoteURL = srv.URL()
	cfg.Prefs = map[string]interface{}{"browser.ml.logLevel": "Error"}
	c, err := New(context.Background(), cfg, WithLogger(NullLogger()))
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	cfg.Prefs["browser.ml.logLevel"] = "All"
	assert.Equal(t, "Error", c.cfg.Prefs["browser.ml.logLevel"])
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	c, srv := newTestClient(t)
	require.NoError(t, c.Shutdown(context.Background()))
	assert.Contains(t, srv.Methods(), "browsingContext.close")

	assert.ErrorIs(t, c.Shutdown(context.Background()), ErrSessionClosed)
	assert.ErrorIs(t, c.Navigate(context.Background(), "https://example.com/"), ErrSessionClosed)
	_, err := c.CreateMLEngine(context.Background(), SummarizationEngine)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestShutdownLaunchedBrowser(t *testing.T) {
	t.Parallel()

	srv := biditest.New(t)
	srv.Emulate()
	cfg := DefaultConfig()
	cfg.BinaryPath = srv.FakeFirefox(t, t.TempDir())

	c, err := New(context.Background(), cfg, WithLogger(NullLogger()))
	require.NoError(t, err)
	b := firefoxdp.FromContext(c.ctx).Browser
	proc, profile := b.Process(), b.UserDataDir()
	require.NotNil(t, proc)
	assert.DirExists(t, profile)

	text, err := c.GetSelectionText(context.Background(), "https://example.com/")
	require.NoError(t, err)
	assert.Empty(t, text)

	// The browser exits by itself on browser.close, well before the deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	require.NoError(t, c.Shutdown(ctx))
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.True(t, srv.Closed())
	assert.ErrorIs(t, proc.Signal(syscall.Signal(0)), os.ErrProcessDone)
	assert.NoDirExists(t, profile)
	assert.ErrorIs(t, c.Shutdown(context.Background()), ErrSessionClosed)
}

func TestNavigate(t *testing.T) {
	t.Parallel()

	c, srv := newTestClient(t)
	require.NoError(t, c.Navigate(context.Background(), "https://example.com/"))
	assert.Equal(t, []string{"https://example.com/"}, srv.Navigations())
}

func TestNavigateNotReady(t *testing.T) {
	t.Parallel()

	srv := biditest.New(t, biditest.WithReadyStates("loading"))
	cfg := DefaultConfig()
	cfg.RemoteURL = srv.URL()
	cfg.ReadyTimeout = 50 * time.Millisecond
	c, err := New(context.Background(), cfg,
		WithLogger(NullLogger()),
		WithWaitReadyOptions(firefoxdp.WithReadyInterval(time.Millisecond, 10*time.Millisecond)),
	)
	require.NoError(t, err)
	defer c.Shutdown(context.Background())

	err = c.Navigate(context.Background(), "https://example.com/")
	assert.ErrorIs(t, err, firefoxdp.ErrPageNotReady)
}

func TestInvokePrivilegedErrors(t *testing.T) {
	t.Parallel()

	c, srv := newTestClient(t)
	srv.Reply("failing", `{"name":"error","error":{"message":"Engine not ready"}}`)
	srv.Reply("malformed", `{"status":"ok"}`)

	err := c.InvokePrivileged(context.Background(), "failing", nil)
	var cerr *firefoxdp.CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "failing", cerr.Command)
	assert.Equal(t, "Engine not ready", cerr.Message)

	err = c.InvokePrivileged(context.Background(), "malformed", nil)
	var perr *firefoxdp.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "malformed", perr.Command)

	// An unregistered command is reported by the runner itself.
	err = c.InvokePrivileged(context.Background(), "no_such_command", nil)
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, `unknown command "no_such_command"`, cerr.Message)
}

func TestCallTimeout(t *testing.T) {
	t.Parallel()

	c, srv := newTestClient(t)
	release := make(chan struct{})
	srv.Handle("slow", func(args []json.RawMessage) (interface{}, error) {
		<-release
		return "done", nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.InvokePrivileged(ctx, "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)

	// The session survives the abandoned call.
	var res string
	require.NoError(t, c.InvokePrivileged(context.Background(), "slow", &res))
	assert.Equal(t, "done", res)
}

func TestNoChromeContext(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, biditest.WithoutChrome)
	_, err := c.GetSelectionText(context.Background(), "https://example.com/")
	assert.True(t, errors.Is(err, firefoxdp.ErrNoChromeContext), "got %v", err)
}
