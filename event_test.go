package firefoxdp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefoxdp/firefoxdp/bidi"
)

func TestListenTarget(t *testing.T) {
	t.Parallel()

	ctx, _ := testAllocate(t)

	loaded := make(chan string, 1)
	lctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ListenTarget(lctx, func(ev interface{}) {
		if ev, ok := ev.(*bidi.EventLoad); ok {
			select {
			case loaded <- ev.URL:
			default:
			}
		}
	})

	require.NoError(t, Run(ctx, Navigate("https://example.com/listen")))
	select {
	case url := <-loaded:
		assert.Equal(t, "https://example.com/listen", url)
	case <-time.After(5 * time.Second):
		t.Fatal("no load event")
	}
}

func TestListenBrowser(t *testing.T) {
	t.Parallel()

	ctx, _ := testAllocate(t)

	var sawResponse atomic.Bool
	done := make(chan struct{})
	ListenBrowser(ctx, func(ev interface{}) {
		switch ev.(type) {
		case *bidi.Message:
			// Command responses aren't events.
			sawResponse.Store(true)
		case *bidi.EventLoad:
			close(done)
		}
	})
	require.NoError(t, Run(ctx, Navigate("https://example.com/")))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("no load event")
	}
	assert.False(t, sawResponse.Load())
}
