package firefoxdp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/firefoxdp/firefoxdp/internal/biditest"
)

// testAllocate returns a context attached to a fake remote browser, with
// the emulated runner commands registered.
func testAllocate(tb testing.TB, opts ...biditest.Option) (context.Context, *biditest.Server) {
	tb.Helper()
	srv := biditest.New(tb, opts...)
	srv.Emulate()

	allocCtx, allocCancel := NewRemoteAllocator(context.Background(), srv.URL())
	tb.Cleanup(allocCancel)

	ctx, cancel := NewContext(allocCtx, WithLogf(nopf))
	tb.Cleanup(cancel)
	return ctx, srv
}

func TestSleep(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(time.Hour).Do(ctx), context.Canceled)
	assert.NoError(t, Sleep(time.Millisecond).Do(context.Background()))
}
