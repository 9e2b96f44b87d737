package firefoxdp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefoxdp/firefoxdp/internal/biditest"
)

func TestRunInvalidContext(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, Run(context.Background()), ErrInvalidContext)
	assert.ErrorIs(t, Cancel(context.Background()), ErrInvalidContext)

	// An allocator context isn't enough to run actions.
	allocCtx, cancel := NewRemoteAllocator(context.Background(), "ws://127.0.0.1:1/session")
	defer cancel()
	assert.ErrorIs(t, Run(allocCtx), ErrInvalidContext)
}

func TestCancelClosesTab(t *testing.T) {
	t.Parallel()

	ctx, srv := testAllocate(t)
	require.NoError(t, Run(ctx))

	require.NoError(t, Cancel(ctx))
	assert.Contains(t, srv.Methods(), "browsingContext.close")

	// Running on a cancelled context fails.
	assert.Error(t, Run(ctx, Navigate("https://example.com/")))
}

func TestNewContextTabs(t *testing.T) {
	t.Parallel()

	ctx, srv := testAllocate(t)
	require.NoError(t, Run(ctx))
	parent := FromContext(ctx)

	child, cancel := NewContext(ctx)
	require.NoError(t, Run(child, Navigate("https://example.com/child")))
	c := FromContext(child)
	assert.Same(t, parent.Browser, c.Browser)
	assert.NotEqual(t, parent.Target.Context, c.Target.Context)
	assert.Equal(t, biditest.ChromeContext, c.Target.Chrome)

	cancel()
	require.NoError(t, Run(ctx, Navigate("https://example.com/parent")))
	assert.Equal(t, []string{"https://example.com/child", "https://example.com/parent"}, srv.Navigations())
}
