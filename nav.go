package firefoxdp

import (
	"context"

	"github.com/firefoxdp/firefoxdp/bidi"
)

// NavigateAction are actions which always trigger a page navigation, waiting
// for the page to load.
type NavigateAction Action

// Navigate is an action that navigates the tab, and then waits for the
// document to be complete with WaitReady and the given options.
func Navigate(urlstr string, opts ...WaitReadyOption) NavigateAction {
	return Tasks{
		navigate(urlstr),
		WaitReady(opts...),
	}
}

// navigate loads urlstr, returning once the document is interactive.
func navigate(urlstr string) Action {
	return ActionFunc(func(ctx context.Context) error {
		t, err := targetFromContext(ctx)
		if err != nil {
			return err
		}
		p := bidi.Navigate(t.Context, urlstr).WithWait(bidi.ReadinessInteractive)
		return t.Execute(ctx, bidi.CommandBrowsingContextNavigate, p, nil)
	})
}

// Location is an action that retrieves the document location.
func Location(urlstr *string) Action {
	if urlstr == nil {
		panic("urlstr cannot be nil")
	}
	return Evaluate(`document.location.toString()`, urlstr)
}

// Title is an action that retrieves the document title.
func Title(title *string) Action {
	if title == nil {
		panic("title cannot be nil")
	}
	return Evaluate(`document.title`, title)
}
