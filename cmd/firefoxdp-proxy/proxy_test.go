package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefoxdp/firefoxdp/internal/biditest"
)

// syncBuffer is a bytes.Buffer safe for concurrent use.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProxySession(t *testing.T) {
	t.Parallel()

	srv := biditest.New(t)
	remote := strings.TrimPrefix(srv.Server.URL, "http://")

	dir := t.TempDir()
	var out syncBuffer
	// The log directory is created on the first connection.
	p := &proxy{remote: remote, logMask: filepath.Join(dir, "logs", "bidi-%d.log"), out: &out}
	ps := httptest.NewServer(p.handler())
	defer ps.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ps.URL, "http")+"/session", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"method":"session.new","params":{"capabilities":{}}}`)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"sessionId":"test-session"`)

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), `-> {\"id\":1`)
	}, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), `<- {\"id\":1,\"method\":\"session.new\"`)
	assert.Contains(t, out.String(), "conn=1")

	conn.Close()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "---------- closing")
	}, 5*time.Second, 10*time.Millisecond)

	buf, err := os.ReadFile(filepath.Join(dir, "logs", "bidi-1.log"))
	require.NoError(t, err)
	assert.Contains(t, string(buf), "session.new")
}

func TestProxyUnreachable(t *testing.T) {
	t.Parallel()

	var out syncBuffer
	p := &proxy{remote: "127.0.0.1:1", noLog: true, out: &out}
	ps := httptest.NewServer(p.handler())
	defer ps.Close()

	_, res, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ps.URL, "http")+"/session", nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 502, res.StatusCode)
	assert.Contains(t, out.String(), "could not connect to ws://127.0.0.1:1/session")
}
