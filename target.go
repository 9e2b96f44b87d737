package firefoxdp

import (
	"context"
	"sync"

	"github.com/mailru/easyjson"

	"github.com/firefoxdp/firefoxdp/bidi"
)

// Target manages the two browsing contexts actions run against: a content
// tab and, when the browser allows system access, the privileged chrome
// window.
type Target struct {
	browser *Browser

	// Context is the id of the content browsing context (the tab).
	Context string

	// Chrome is the id of the top-level chrome browsing context. It is
	// empty when the browser doesn't expose the chrome scope.
	Chrome string

	listenersMu sync.Mutex
	listeners   []cancelableListener

	// urlMu protects url.
	urlMu sync.RWMutex
	// url is the URL of the last load event seen for Context.
	url string
}

// Execute sends a command to the browser the target belongs to.
func (t *Target) Execute(ctx context.Context, method bidi.MethodType, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	return t.browser.Execute(ctx, method, params, res)
}

// Browser returns the browser the target belongs to.
func (t *Target) Browser() *Browser {
	return t.browser
}

// URL returns the URL of the last page that finished loading in the tab.
func (t *Target) URL() string {
	t.urlMu.RLock()
	defer t.urlMu.RUnlock()
	return t.url
}

// content returns the script target of the tab.
func (t *Target) content() bidi.Target {
	return bidi.Target{Context: t.Context}
}

// chrome returns the script target of the chrome window.
func (t *Target) chrome() (bidi.Target, error) {
	if t.Chrome == "" {
		return bidi.Target{}, ErrNoChromeContext
	}
	return bidi.Target{Context: t.Chrome}, nil
}

// handleEvent is registered as a browser listener, and forwards the events
// of the tab to the target listeners.
func (t *Target) handleEvent(ev interface{}) {
	var context string
	switch ev := ev.(type) {
	case *bidi.EventLoad:
		context = ev.Context
		if context == t.Context {
			t.urlMu.Lock()
			t.url = ev.URL
			t.urlMu.Unlock()
		}
	case *bidi.EventDOMContentLoaded:
		context = ev.Context
	case *bidi.EventEntryAdded:
		context = ev.Context
	default:
		return
	}
	if context != t.Context {
		return
	}
	t.listenersMu.Lock()
	t.listeners = runListeners(t.listeners, ev)
	t.listenersMu.Unlock()
}

// findContext returns the first top-level browsing context in scope.
func findContext(ctx context.Context, b *Browser, scope bidi.Scope) (string, error) {
	var res bidi.GetTreeResult
	if err := b.Execute(ctx, bidi.CommandBrowsingContextGetTree, bidi.GetTree().WithScope(scope), &res); err != nil {
		return "", err
	}
	for _, info := range res.Contexts {
		if info.Parent == "" {
			return info.Context, nil
		}
	}
	return "", nil
}

// targetFromContext returns the target of a context that went through Run.
func targetFromContext(ctx context.Context) (*Target, error) {
	c := FromContext(ctx)
	if c == nil || c.Target == nil {
		return nil, ErrInvalidContext
	}
	return c.Target, nil
}
