// Package inference runs Firefox's built-in machine learning and translation
// features from Go.
//
// A Client owns one Firefox session. Page-scoped helpers load a URL in the
// visible tab and then run a command against it, while the engine and
// translation helpers work on handles returned by their create calls:
//
//	c, err := inference.New(ctx, inference.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer c.Shutdown(context.Background())
//
//	summary, err := c.Summarize(ctx, text)
//
// Handles are never tracked by the Client. Either destroy them explicitly, or
// use WithMLEngine and WithTranslationsSession.
package inference

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/firefoxdp/firefoxdp"
)

// ErrSessionClosed is returned by calls made after Shutdown.
var ErrSessionClosed = errors.New("firefox session closed")

// Client is a Firefox session. Calls are serialized, since they share the
// tab's navigation state.
type Client struct {
	cfg       Config
	log       Logger
	allocOpts []firefoxdp.ExecAllocatorOption
	readyOpts []firefoxdp.WaitReadyOption

	registerer prometheus.Registerer
	metrics    *metrics

	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	output      io.Closer
	closed      bool
}

// Option is a Client option.
type Option = func(*Client)

// WithLogger sets the logging sink. The default is NewLogger.
func WithLogger(l Logger) Option {
	return func(c *Client) {
		if l == nil {
			l = NullLogger()
		}
		c.log = l
	}
}

// WithAllocatorOptions adds options to the allocator that launches Firefox,
// after the ones derived from the Config.
func WithAllocatorOptions(opts ...firefoxdp.ExecAllocatorOption) Option {
	return func(c *Client) {
		c.allocOpts = append(c.allocOpts, opts...)
	}
}

// WithWaitReadyOptions sets how navigations wait for the page to load.
func WithWaitReadyOptions(opts ...firefoxdp.WaitReadyOption) Option {
	return func(c *Client) {
		c.readyOpts = append(c.readyOpts, opts...)
	}
}

// New starts a Firefox session as described by cfg, with the prefs that
// enable the machine learning and translation features. A BinaryPath that
// does not exist fails with a *firefoxdp.StartupError before anything is
// launched.
//
// ctx only bounds the start up; the browser lives until Shutdown.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	cfg = cfg.clone()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = NewLogger(cfg.VerboseLogging)
	}
	if c.registerer != nil {
		m, err := newMetrics(c.registerer)
		if err != nil {
			return nil, err
		}
		c.metrics = m
	}
	if cfg.ReadyTimeout > 0 {
		c.readyOpts = append([]firefoxdp.WaitReadyOption{firefoxdp.WithReadyTimeout(cfg.ReadyTimeout)}, c.readyOpts...)
	}

	if cfg.RemoteURL == "" && cfg.BinaryPath != "" {
		if _, err := os.Stat(cfg.BinaryPath); err != nil {
			return nil, &firefoxdp.StartupError{Path: cfg.BinaryPath, Err: err}
		}
	}

	base := context.WithoutCancel(ctx)
	var allocCtx context.Context
	if cfg.RemoteURL != "" {
		c.log.Infof("Attaching to %s", cfg.RemoteURL)
		allocCtx, c.allocCancel = firefoxdp.NewRemoteAllocator(base, cfg.RemoteURL)
	} else {
		allocCtx, c.allocCancel = firefoxdp.NewExecAllocator(base, c.execAllocatorOptions()...)
	}

	ctxOpts := []firefoxdp.ContextOption{
		firefoxdp.WithLogf(c.log.Infof),
		firefoxdp.WithErrorf(c.log.Errorf),
	}
	if cfg.VerboseLogging {
		ctxOpts = append(ctxOpts,
			firefoxdp.WithDebugf(c.log.Debugf),
			firefoxdp.WithConsolef(c.log.Infof),
		)
	}
	c.ctx, c.cancel = firefoxdp.NewContext(allocCtx, ctxOpts...)

	errc := make(chan error, 1)
	go func() { errc <- firefoxdp.Run(c.ctx) }()
	var err error
	select {
	case err = <-errc:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		c.release()
		return nil, err
	}
	b := firefoxdp.FromContext(c.ctx).Browser
	c.log.Infof("Started %s %s", b.BrowserName, b.BrowserVersion)
	return c, nil
}

func (c *Client) execAllocatorOptions() []firefoxdp.ExecAllocatorOption {
	opts := append([]firefoxdp.ExecAllocatorOption(nil), firefoxdp.DefaultExecAllocatorOptions[:]...)
	if !c.cfg.Headless {
		opts = append(opts, firefoxdp.Flag("headless", false))
	}
	if c.cfg.BinaryPath != "" {
		opts = append(opts, firefoxdp.ExecPath(c.cfg.BinaryPath))
	}
	if len(c.cfg.Prefs) > 0 {
		opts = append(opts, firefoxdp.Prefs(c.cfg.Prefs))
	}
	if c.cfg.VerboseLogging {
		w := outputWriter(c.log)
		c.output = w
		opts = append(opts, firefoxdp.CombinedOutput(w))
	}
	return append(opts, c.allocOpts...)
}

// release stops the browser and frees the profile, without a graceful close.
func (c *Client) release() {
	c.cancel()
	c.allocCancel()
	if c.output != nil {
		c.output.Close()
	}
}

// run runs actions on the session, one call at a time. Cancelling ctx
// aborts the actions but leaves the browser running.
func (c *Client) run(ctx context.Context, actions ...firefoxdp.Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSessionClosed
	}

	rctx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := firefoxdp.Run(rctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Client) navigate(url string) firefoxdp.Action {
	return firefoxdp.ActionFunc(func(ctx context.Context) error {
		c.log.Infof("Loading %s", url)
		return firefoxdp.Navigate(url, c.readyOpts...).Do(ctx)
	})
}

// Navigate loads url in the tab and waits until it has finished loading.
// Page-scoped commands then run against it.
func (c *Client) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, c.navigate(url))
}

// InvokePrivileged runs command with args in the chrome window, and
// unmarshals its result into res. See firefoxdp.Privileged.
func (c *Client) InvokePrivileged(ctx context.Context, command string, res interface{}, args ...interface{}) error {
	c.log.Debugf("Running %s", command)
	return c.run(ctx, c.privileged(command, res, args...))
}

// Shutdown closes the browser and waits for it to exit and for its
// temporary profile to be removed. A second call returns ErrSessionClosed.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSessionClosed
	}
	c.closed = true

	sctx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	err := firefoxdp.Cancel(sctx)
	c.release()
	if err != nil {
		c.log.Errorf("Could not close the browser cleanly: %v", err)
		return err
	}
	c.log.Debugf("Browser closed in %v", time.Since(start))
	return nil
}
