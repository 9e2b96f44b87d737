package firefoxdp

import (
	"errors"
	"fmt"
)

// Error types.
var (
	// ErrInvalidContext is the error returned when a context is not a
	// firefoxdp context, or when it was not set up properly.
	ErrInvalidContext = errors.New("invalid context")

	// ErrChannelClosed is the error returned when a command response never
	// arrives because the connection to the browser was closed.
	ErrChannelClosed = errors.New("channel closed")

	// ErrInvalidWebsocketMessage is the error returned when a binary
	// websocket message is received.
	ErrInvalidWebsocketMessage = errors.New("invalid websocket message")

	// ErrNoContentContext is the error returned when the browser reports no
	// top-level tab to navigate.
	ErrNoContentContext = errors.New("no content browsing context")

	// ErrNoChromeContext is the error returned when the browser reports no
	// chrome window, usually because it was not started with
	// -remote-allow-system-access.
	ErrNoChromeContext = errors.New("no chrome browsing context; is -remote-allow-system-access set?")

	// ErrPageNotReady is the error returned when a loaded page does not
	// reach the complete ready state in time.
	ErrPageNotReady = errors.New("page did not finish loading")
)

// StartupError is returned when the browser process cannot be started, for
// example because the binary does not exist.
type StartupError struct {
	Path string
	Err  error
}

// Error satisfies the error interface.
func (e *StartupError) Error() string {
	return fmt.Sprintf("could not start browser %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *StartupError) Unwrap() error {
	return e.Err
}

// CommandError is returned when a privileged command reports a failure. The
// message is the one reported by the browser, unchanged.
type CommandError struct {
	Command string
	Message string
}

// Error satisfies the error interface.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Command, e.Message)
}

// ProtocolError is returned when a privileged command answers with an
// envelope that is neither a success nor an error.
type ProtocolError struct {
	Command  string
	Response string
}

// Error satisfies the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed with no response: %s", e.Command, e.Response)
}
