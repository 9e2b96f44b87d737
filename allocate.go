package firefoxdp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// An Allocator is responsible for creating and managing a number of browsers.
//
// This interface abstracts away how the browser process is actually run. For
// example, an Allocator implementation may start a local Firefox process, or
// connect to an already-running browser on a remote machine.
type Allocator interface {
	// Allocate creates a new browser. It can be cancelled via the provided
	// context, at which point all the resources used by the browser (such
	// as the temporary profile directory) will be freed.
	Allocate(context.Context, ...BrowserOption) (*Browser, error)

	// Wait blocks until an allocator has freed all of its resources.
	// Cancelling the allocator context will already perform this operation,
	// so normally there's no need to call Wait directly.
	Wait()
}

// setupExecAllocator is similar to NewExecAllocator, but it allows NewContext
// to create the allocator without the unnecessary context layer.
func setupExecAllocator(opts ...ExecAllocatorOption) *ExecAllocator {
	ep := &ExecAllocator{
		initFlags: make(map[string]interface{}),
		prefs:     make(map[string]interface{}),

		wsURLReadTimeout: 20 * time.Second,
	}
	for _, o := range opts {
		o(ep)
	}
	if ep.execPath == "" {
		ep.execPath = findExecPath()
	}
	return ep
}

// DefaultExecAllocatorOptions are the ExecAllocator options used by NewContext
// if the given parent context doesn't have an allocator set up. Do not modify
// this global; instead, use NewExecAllocator. See ExampleExecAllocator.
var DefaultExecAllocatorOptions = [...]ExecAllocatorOption{
	NoRemote,
	RemoteAllowSystemAccess,
	Headless,

	// After Puppeteer's and geckodriver's recommended prefs for
	// automation.
	Pref("browser.shell.checkDefaultBrowser", false),
	Pref("browser.startup.homepage_override.mstone", "ignore"),
	Pref("browser.startup.page", 0),
	Pref("browser.tabs.warnOnClose", false),
	Pref("datareporting.policy.dataSubmissionEnabled", false),
	Pref("toolkit.telemetry.reportingpolicy.firstRun", false),
	Pref("app.update.disabledForTesting", true),
	Pref("dom.disable_open_during_load", false),

	// The features this package exists to drive.
	MLPrefs,
}

// NewExecAllocator creates a new context set up with an ExecAllocator,
// suitable for use with NewContext.
func NewExecAllocator(parent context.Context, opts ...ExecAllocatorOption) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c := &Context{Allocator: setupExecAllocator(opts...)}

	ctx = context.WithValue(ctx, contextKey{}, c)
	cancelWait := func() {
		cancel()
		c.Allocator.Wait()
	}
	return ctx, cancelWait
}

// ExecAllocatorOption is an exec allocator option.
type ExecAllocatorOption = func(*ExecAllocator)

// ExecAllocator is an Allocator which starts new Firefox processes on the
// host machine.
type ExecAllocator struct {
	execPath  string
	initFlags map[string]interface{}
	prefs     map[string]interface{}

	wg sync.WaitGroup

	combinedOutputWriter io.Writer

	wsURLReadTimeout time.Duration
}

// allocTempDir is used to group all ExecAllocator temporary profile dirs in
// the same location.
const allocTempDir = "firefoxdp-runner"

// Allocate satisfies the Allocator interface.
func (a *ExecAllocator) Allocate(ctx context.Context, opts ...BrowserOption) (*Browser, error) {
	c := FromContext(ctx)
	if c == nil {
		return nil, ErrInvalidContext
	}

	// Fail before any side effect when the binary is missing.
	execPath, err := exec.LookPath(a.execPath)
	if err != nil {
		return nil, &StartupError{Path: a.execPath, Err: err}
	}

	var args []string
	for _, name := range sortedKeys(a.initFlags) {
		switch value := a.initFlags[name].(type) {
		case string:
			args = append(args, "--"+name, value)
		case bool:
			if value {
				args = append(args, "--"+name)
			}
		default:
			return nil, fmt.Errorf("invalid exec pool flag %q", name)
		}
	}

	removeDir := false
	dataDir, ok := a.initFlags["profile"].(string)
	if !ok {
		tempDir, err := os.MkdirTemp("", allocTempDir)
		if err != nil {
			return nil, err
		}
		args = append(args, "--profile", tempDir)
		dataDir = tempDir
		removeDir = true
	}
	if err := writeUserPrefs(dataDir, a.prefs); err != nil {
		if removeDir {
			os.RemoveAll(dataDir)
		}
		return nil, err
	}
	// Port 0 lets Firefox pick a free port, reported on stderr.
	args = append(args, "--remote-debugging-port", "0")

	// Force the first page to be blank, instead of the welcome page.
	args = append(args, "about:blank")

	cmd := exec.CommandContext(ctx, execPath, args...)
	defer func() {
		if removeDir && cmd.Process == nil {
			// We couldn't start the process, so we didn't get to
			// the goroutine that handles RemoveAll below. Remove it
			// to not leave an empty directory.
			os.RemoveAll(dataDir)
		}
	}()
	allocateCmdOptions(cmd)

	// Wait must not close stderr before readOutput has seen all of it, so
	// own the pipe: it is closed once the process is waited for.
	stderr, stderrW := io.Pipe()
	cmd.Stderr = stderrW
	// Child processes inheriting stderr must not block Wait forever.
	cmd.WaitDelay = time.Second
	if a.combinedOutputWriter != nil {
		cmd.Stdout = a.combinedOutputWriter
	}

	// We must start the cmd before calling cmd.Wait, as otherwise the two
	// can run into a data race.
	if err := cmd.Start(); err != nil {
		stderrW.Close()
		return nil, &StartupError{Path: execPath, Err: err}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.allocated: // for this browser's root context
	}
	a.wg.Add(1) // for the entire allocator
	if a.combinedOutputWriter != nil {
		a.wg.Add(1) // for the io.Copy in a separate goroutine
	}
	go func() {
		// First wait for the process to be finished.
		// The error is most likely "signal: killed" after a
		// cancellation, which isn't interesting.
		_ = cmd.Wait()
		stderrW.Close()

		// Then delete the temporary profile directory, if needed.
		if removeDir {
			// Firefox may still be flushing the session store right
			// after exiting; give it a moment.
			<-time.After(10 * time.Millisecond)
			if err := os.RemoveAll(dataDir); c.cancelErr == nil {
				c.cancelErr = err
			}
		}
		a.wg.Done()
		close(c.allocated)
	}()

	type output struct {
		wsURL string
		err   error
	}
	var wsURL string
	wsURLChan := make(chan output, 1)
	// readOutput may still find the address after a timeout.
	copyDone := sync.OnceFunc(a.wg.Done)
	go func() {
		url, err := readOutput(stderr, a.combinedOutputWriter, copyDone)
		wsURLChan <- output{url, err}
	}()
	select {
	case out := <-wsURLChan:
		wsURL, err = out.wsURL, out.err
	case <-time.After(a.wsURLReadTimeout):
		err = fmt.Errorf("websocket url timeout reached")
	}
	if err != nil {
		if a.combinedOutputWriter != nil {
			// There's no io.Copy goroutine to call the done func.
			copyDone()
		}
		_ = cmd.Process.Kill()
		return nil, &StartupError{Path: execPath, Err: err}
	}

	browser, err := NewBrowser(ctx, wsURL+"/session", opts...)
	if err != nil {
		return nil, err
	}
	go func() {
		// If the browser loses connection, kill the entire process and
		// handler at once. Don't use Cancel, as that will attempt to
		// gracefully close the browser, which will hang.
		// Don't cancel if we're in the middle of a graceful Close,
		// since we want to let Firefox shut itself when it is fully
		// finished.
		<-browser.LostConnection
		select {
		case <-browser.closingGracefully:
		default:
			c.cancel()
		}
	}()
	browser.process = cmd.Process
	browser.userDataDir = dataDir
	return browser, nil
}

// bidiListening is the stderr line Firefox prints once the remote agent is
// accepting WebDriver BiDi connections.
const bidiListening = "WebDriver BiDi listening on"

// readOutput grabs the websocket address from Firefox's output, returning as
// soon as it is found. All read output is forwarded to forward, if non-nil.
// done is used to signal that the asynchronous io.Copy is done, if any.
func readOutput(rc io.ReadCloser, forward io.Writer, done func()) (wsURL string, _ error) {
	var accumulated strings.Builder
	bufr := bufio.NewReader(rc)
	for {
		line, err := bufr.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("firefox failed to start:\n%s", accumulated.String())
		}

		if forward != nil {
			if _, err := forward.Write([]byte(line)); err != nil {
				return "", err
			}
		}

		if s := strings.TrimPrefix(line, bidiListening); s != line {
			if forward != nil {
				go func() {
					_, _ = io.Copy(forward, bufr)
					done()
				}()
			} else {
				// Keep draining stderr so a chatty Firefox never
				// blocks on a full pipe.
				go func() { _, _ = io.Copy(io.Discard, bufr) }()
			}
			return strings.TrimSpace(s), nil
		}
		accumulated.WriteString(line)
	}
}

// writeUserPrefs writes prefs to the user.js file of the profile at dir,
// which Firefox applies on every start. Keys are sorted so the file is
// stable across runs.
func writeUserPrefs(dir string, prefs map[string]interface{}) error {
	var b strings.Builder
	for _, name := range sortedKeys(prefs) {
		value, err := json.Marshal(prefs[name])
		if err != nil {
			return fmt.Errorf("invalid pref %q: %w", name, err)
		}
		fmt.Fprintf(&b, "user_pref(%q, %s);\n", name, value)
	}
	return os.WriteFile(filepath.Join(dir, "user.js"), []byte(b.String()), 0o644)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// Wait satisfies the Allocator interface.
func (a *ExecAllocator) Wait() {
	a.wg.Wait()
}

// ExecPath returns an ExecAllocatorOption which uses the given path to execute
// browser processes. The given path can be an absolute path to a binary, or
// just the name of the program to find via exec.LookPath.
//
// A path that cannot be found makes Allocate fail with a *StartupError.
func ExecPath(path string) ExecAllocatorOption {
	return func(a *ExecAllocator) {
		if fullPath, _ := exec.LookPath(path); fullPath != "" {
			// Convert to an absolute path if possible, to avoid
			// repeated LookPath calls in each Allocate.
			path = fullPath
		}
		a.execPath = path
	}
}

// findExecPath tries to find the Firefox browser somewhere in the current
// system. It finds in different locations on different OS systems.
// It could perform more validations (e.g. the binary is executable) but it's
// not needed since Allocate does that anyway.
func findExecPath() string {
	var locations []string
	switch runtime.GOOS {
	case "darwin":
		locations = []string{
			// Mac
			"/Applications/Firefox Nightly.app/Contents/MacOS/firefox",
			"/Applications/Firefox.app/Contents/MacOS/firefox",
		}
	case "windows":
		locations = []string{
			// Windows
			"firefox",
			"firefox.exe", // in case PATHEXT is misconfigured
			`C:\Program Files\Firefox Nightly\firefox.exe`,
			`C:\Program Files\Mozilla Firefox\firefox.exe`,
			filepath.Join(os.Getenv("USERPROFILE"), `AppData\Local\Mozilla Firefox\firefox.exe`),
		}
	default:
		locations = []string{
			// Unix-like
			"firefox-nightly",
			"firefox",
			"firefox-esr",
			"/usr/bin/firefox",
			"/usr/lib/firefox/firefox",
			"/snap/bin/firefox",
		}
	}

	for _, path := range locations {
		found, err := exec.LookPath(path)
		if err == nil {
			return found
		}
	}
	// Fall back to something simple and sensible, to give a useful error
	// message.
	return "firefox"
}

// Flag is a generic command line option to pass a flag to Firefox. If the
// value is a string, it will be passed as "--name value". If it's a boolean,
// it will be passed as --name if value is true.
func Flag(name string, value interface{}) ExecAllocatorOption {
	return func(a *ExecAllocator) {
		a.initFlags[name] = value
	}
}

// Pref sets a Firefox preference in the profile's user.js. Values must be
// strings, booleans or numbers. A later Pref for the same name overrides an
// earlier one, so caller prefs win over DefaultExecAllocatorOptions.
func Pref(name string, value interface{}) ExecAllocatorOption {
	return func(a *ExecAllocator) {
		a.prefs[name] = value
	}
}

// Prefs is like Pref, for many prefs at once.
func Prefs(prefs map[string]interface{}) ExecAllocatorOption {
	return func(a *ExecAllocator) {
		for name, value := range prefs {
			a.prefs[name] = value
		}
	}
}

// RequiredPrefs are the prefs that enable Firefox's machine learning and
// translations features, with their verbose logging.
var RequiredPrefs = map[string]interface{}{
	"browser.ml.enable":                       true,
	"browser.ml.logLevel":                     "All",
	"browser.translations.enable":             true,
	"browser.translations.logLevel":           "All",
	"browser.translations.automaticallyPopup": false,
}

// MLPrefs is the option that sets RequiredPrefs.
func MLPrefs(a *ExecAllocator) {
	Prefs(RequiredPrefs)(a)
}

// ProfileDir is the command line option to set the profile directory.
//
// Note: set this option to manually set the profile directory used by
// Firefox. When this is not set, then a temporary directory is created and
// removed once the browser stops.
func ProfileDir(dir string) ExecAllocatorOption {
	return Flag("profile", dir)
}

// CombinedOutput is used to set an io.Writer where stdout and stderr
// from the browser will be sent.
func CombinedOutput(w io.Writer) ExecAllocatorOption {
	return func(a *ExecAllocator) {
		a.combinedOutputWriter = w
	}
}

// WSURLReadTimeout sets the waiting time for reading the WebSocket URL.
// The default value is 20 seconds.
func WSURLReadTimeout(t time.Duration) ExecAllocatorOption {
	return func(a *ExecAllocator) {
		a.wsURLReadTimeout = t
	}
}

// Headless is the command line option to run in headless mode.
func Headless(a *ExecAllocator) {
	Flag("headless", true)(a)
}

// NoRemote is the command line option to not talk to an already running
// Firefox instance.
func NoRemote(a *ExecAllocator) {
	Flag("no-remote", true)(a)
}

// RemoteAllowSystemAccess is the command line option that exposes the
// privileged chrome scope to the remote agent.
func RemoteAllowSystemAccess(a *ExecAllocator) {
	Flag("remote-allow-system-access", true)(a)
}

// NewRemoteAllocator creates a new context set up with a RemoteAllocator,
// suitable for use with NewContext. The url should point to the browser's
// WebDriver BiDi session endpoint, such as "ws://127.0.0.1:9222/session".
func NewRemoteAllocator(parent context.Context, url string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c := &Context{Allocator: &RemoteAllocator{
		wsURL: url,
	}}
	ctx = context.WithValue(ctx, contextKey{}, c)
	return ctx, cancel
}

// RemoteAllocator is an Allocator which connects to an already running
// browser.
type RemoteAllocator struct {
	wsURL string

	wg sync.WaitGroup
}

// Allocate satisfies the Allocator interface.
func (a *RemoteAllocator) Allocate(ctx context.Context, opts ...BrowserOption) (*Browser, error) {
	c := FromContext(ctx)
	if c == nil {
		return nil, ErrInvalidContext
	}

	// Use a different context for the websocket, so we can have a chance at
	// ending the session before closing the websocket connection.
	wctx, cancel := context.WithCancel(context.Background())
	close(c.allocated)
	a.wg.Add(1) // for the entire allocator
	go func() {
		<-ctx.Done()
		// Let the tab be closed before the connection goes away.
		c.closedTarget.Wait()
		cancel() // close the websocket connection
		a.wg.Done()
	}()
	browser, err := NewBrowser(wctx, a.wsURL, opts...)
	if err != nil {
		return nil, err
	}
	go func() {
		// If the browser loses connection, kill the entire process and
		// handler at once.
		<-browser.LostConnection
		select {
		case <-browser.closingGracefully:
		default:
			c.cancel()
		}
	}()
	return browser, nil
}

// Wait satisfies the Allocator interface.
func (a *RemoteAllocator) Wait() {
	a.wg.Wait()
}
