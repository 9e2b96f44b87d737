package firefoxdp

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefoxdp/firefoxdp/bidi"
	"github.com/firefoxdp/firefoxdp/internal/biditest"
)

func TestNewBrowser(t *testing.T) {
	t.Parallel()

	srv := biditest.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := NewBrowser(ctx, srv.URL(), WithBrowserLogf(nopf))
	require.NoError(t, err)
	assert.Equal(t, "test-session", b.SessionID)
	assert.Equal(t, "firefox", b.BrowserName)
	assert.Equal(t, "test", b.BrowserVersion)
	assert.Nil(t, b.Process())
	assert.Empty(t, b.UserDataDir())
	assert.Equal(t, []string{"session.new", "session.subscribe"}, srv.Methods())

	var res bidi.GetTreeResult
	require.NoError(t, b.Execute(ctx, bidi.CommandBrowsingContextGetTree, bidi.GetTree(), &res))
	require.Len(t, res.Contexts, 1)
	assert.Equal(t, biditest.TabContext, res.Contexts[0].Context)
}

func TestNewBrowserDialError(t *testing.T) {
	t.Parallel()

	srv := biditest.New(t)
	_, err := NewBrowser(context.Background(), srv.URL()+"/missing", WithBrowserLogf(nopf), WithDialTimeout(time.Second))
	assert.Error(t, err)
}

func TestBrowserCommandError(t *testing.T) {
	t.Parallel()

	srv := biditest.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, err := NewBrowser(ctx, srv.URL(), WithBrowserLogf(nopf))
	require.NoError(t, err)

	err = b.Execute(ctx, bidi.MethodType("browsingContext.print"), nil, nil)
	var berr *bidi.Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "unknown command", berr.Code)
	assert.Equal(t, "browsingContext.print", berr.Message)
}

func TestBrowserLostConnection(t *testing.T) {
	t.Parallel()

	srv := biditest.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, err := NewBrowser(ctx, srv.URL(), WithBrowserLogf(nopf))
	require.NoError(t, err)

	// The server hangs up after answering browser.close, which may win the
	// race against the response.
	if err := b.Execute(ctx, bidi.CommandBrowserClose, nil, nil); err != nil {
		require.ErrorIs(t, err, ErrChannelClosed)
	}
	select {
	case <-b.LostConnection:
	case <-time.After(5 * time.Second):
		t.Fatal("connection was not lost")
	}
	assert.ErrorIs(t, b.Execute(ctx, bidi.CommandSessionEnd, nil, nil), ErrChannelClosed)
	assert.True(t, srv.Closed())
}

func TestBrowserConsole(t *testing.T) {
	t.Parallel()

	srv := biditest.New(t, biditest.WithConsoleEntry("warn", "deprecated API"))
	allocCtx, allocCancel := NewRemoteAllocator(context.Background(), srv.URL())
	defer allocCancel()

	var mu sync.Mutex
	var lines []string
	ctx, cancel := NewContext(allocCtx, WithLogf(nopf), WithConsolef(func(format string, args ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, args...))
	}))
	defer cancel()

	entries := make(chan *bidi.EventEntryAdded, 1)
	ListenTarget(ctx, func(ev interface{}) {
		if e, ok := ev.(*bidi.EventEntryAdded); ok {
			entries <- e
		}
	})
	require.NoError(t, Run(ctx, Navigate("https://example.com/")))
	assert.Contains(t, srv.Methods(), "session.subscribe")

	select {
	case e := <-entries:
		assert.Equal(t, "console", e.Type)
		assert.Equal(t, "deprecated API", e.Text)
		assert.Equal(t, FromContext(ctx).Target.Context, e.Context)
	case <-time.After(5 * time.Second):
		t.Fatal("no console entry")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"[warn] deprecated API"}, lines)
}
