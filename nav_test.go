package firefoxdp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefoxdp/firefoxdp/bidi"
	"github.com/firefoxdp/firefoxdp/internal/biditest"
)

func TestNavigate(t *testing.T) {
	t.Parallel()

	ctx, srv := testAllocate(t)

	var location, title string
	require.NoError(t, Run(ctx,
		Navigate("https://example.com/article"),
		Location(&location),
		Title(&title),
	))
	assert.Equal(t, "https://example.com/article", location)
	assert.Equal(t, "Test Page", title)
	assert.Equal(t, []string{"https://example.com/article"}, srv.Navigations())
	assert.Equal(t, "https://example.com/article", FromContext(ctx).Target.URL())
}

func TestNavigateError(t *testing.T) {
	t.Parallel()

	ctx, _ := testAllocate(t, biditest.WithNavigationError("unknown error"))

	err := Run(ctx, Navigate("https://unreachable.invalid/"))
	var berr *bidi.Error
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, "unknown error", berr.Code)
	assert.Equal(t, "could not load https://unreachable.invalid/", berr.Message)
}
