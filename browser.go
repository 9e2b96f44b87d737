package firefoxdp

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mailru/easyjson"

	"github.com/firefoxdp/firefoxdp/bidi"
)

// Browser is the high-level WebDriver BiDi browser manager, handling the
// websocket connection, the BiDi session, command responses and events.
type Browser struct {
	// LostConnection is closed when the websocket connection to Firefox is
	// dropped. This can be useful to make sure that Browser's context is
	// cancelled (and the handler stopped) once the connection has failed.
	LostConnection chan struct{}

	// closingGracefully is closed by Cancel to gracefully shut down the
	// browser via browser.close.
	closingGracefully chan struct{}

	dialTimeout time.Duration

	// next is the next message id.
	next int64

	conn Transport

	// cmdQueue is the outgoing command queue.
	cmdQueue chan cmdJob

	listenersMu sync.Mutex
	listeners   []cancelableListener

	// SessionID is the BiDi session id returned by session.new.
	SessionID string
	// BrowserName and BrowserVersion are the capabilities reported by
	// session.new.
	BrowserName    string
	BrowserVersion string

	// process can be initialized by the allocators which start the process
	// when allocating a browser.
	process *os.Process

	// userDataDir can be initialized by the allocators which set up user
	// data dirs directly.
	userDataDir string

	// logging funcs
	logf, errf, dbgf, consolef func(string, ...interface{})
}

// NewBrowser creates a new browser. Typically, this function wouldn't be
// called directly, as the Allocator interface takes care of it.
//
// NewBrowser dials urlstr, creates a BiDi session and subscribes to the
// events the package relies on.
func NewBrowser(ctx context.Context, urlstr string, opts ...BrowserOption) (*Browser, error) {
	b := &Browser{
		LostConnection:    make(chan struct{}),
		closingGracefully: make(chan struct{}),

		dialTimeout: 10 * time.Second,

		cmdQueue: make(chan cmdJob),

		logf: defaultLogf,
	}
	// apply options
	for _, o := range opts {
		o(b)
	}
	// ensure errf is set
	if b.errf == nil {
		b.errf = prefixed(b.logf, "ERROR: ")
	}

	dctx := ctx
	if b.dialTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, b.dialTimeout)
		defer cancel()
	}

	var err error
	urlstr = ForceIP(urlstr)
	var dialOpts []DialOption
	if b.dbgf != nil {
		dialOpts = append(dialOpts, WithConnDebugf(b.dbgf))
	}
	if b.conn, err = DialContext(dctx, urlstr, dialOpts...); err != nil {
		return nil, err
	}

	go b.run(ctx)

	if err := b.newSession(ctx); err != nil {
		b.conn.Close()
		return nil, err
	}
	return b, nil
}

func (b *Browser) newSession(ctx context.Context) error {
	var res bidi.NewSessionResult
	if err := b.Execute(ctx, bidi.CommandSessionNew, bidi.NewSession(), &res); err != nil {
		return err
	}
	b.SessionID = res.SessionID
	b.BrowserName, b.BrowserVersion = res.BrowserName, res.BrowserVersion
	b.logf("session %s started (%s %s)", b.SessionID, b.BrowserName, b.BrowserVersion)

	events := []bidi.MethodType{
		bidi.EventBrowsingContextLoad,
		bidi.EventBrowsingContextDOMContentLoaded,
	}
	if b.consolef != nil {
		events = append(events, bidi.EventLogEntryAdded)
	}
	return b.Execute(ctx, bidi.CommandSessionSubscribe, bidi.Subscribe(events...), nil)
}

// Process returns the process object of the browser.
//
// It could be nil when the browser is allocated with RemoteAllocator.
func (b *Browser) Process() *os.Process {
	return b.process
}

// UserDataDir returns the temporary profile directory of the browser, if
// the allocator created one.
func (b *Browser) UserDataDir() string {
	return b.userDataDir
}

// Execute sends a command to the browser and waits for its result. res may
// be nil when the result is not needed.
func (b *Browser) Execute(ctx context.Context, method bidi.MethodType, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	if params == nil {
		params = bidi.EmptyParams{}
	}
	buf, err := easyjson.Marshal(params)
	if err != nil {
		return err
	}

	id := atomic.AddInt64(&b.next, 1)
	ch := make(chan *bidi.Message, 1)
	cmd := cmdJob{
		msg: &bidi.Message{
			ID:     id,
			Method: method,
			Params: buf,
		},
		resp: ch,
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.LostConnection:
		return ErrChannelClosed
	case b.cmdQueue <- cmd:
	}

	// wait for result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.LostConnection:
		return ErrChannelClosed
	case msg := <-ch:
		switch {
		case msg == nil:
			return ErrChannelClosed
		case msg.Err() != nil:
			return msg.Err()
		case res != nil:
			return easyjson.Unmarshal(msg.Result, res)
		}
	}
	return nil
}

type cmdJob struct {
	// msg is the message being sent.
	msg *bidi.Message

	// resp is the channel to send the response to; must be non-nil.
	resp chan *bidi.Message
}

func (b *Browser) run(ctx context.Context) {
	defer b.conn.Close()

	// incomingQueue is the queue of incoming messages, both command
	// results and events.
	incomingQueue := make(chan *bidi.Message, 1)

	// This goroutine continuously reads events from the websocket
	// connection. The separate goroutine is needed since a websocket read
	// is blocking, so it cannot be used in a select statement.
	go func() {
		// Signal to run and exit the browser cleanup goroutine.
		defer close(b.LostConnection)

		for {
			msg := new(bidi.Message)
			if err := b.conn.Read(ctx, msg); err != nil {
				return
			}

			switch {
			case msg.Type == bidi.MessageTypeEvent, msg.ID != 0:
			case msg.Type == bidi.MessageTypeError:
				// An error without an id; the command could not
				// even be parsed.
				b.errf("%s", msg.Err())
				continue
			default:
				b.errf("ignoring malformed incoming message (missing id or method): %#v", msg)
				continue
			}

			select {
			case <-ctx.Done():
				return
			case incomingQueue <- msg:
			}
		}
	}()

	respByID := make(map[int64]chan *bidi.Message)

	for {
		select {
		case <-ctx.Done():
			return

		case job := <-b.cmdQueue:
			if _, ok := respByID[job.msg.ID]; ok {
				b.errf("id %d present in response queue", job.msg.ID)
				continue
			}
			respByID[job.msg.ID] = job.resp
			if err := b.conn.Write(ctx, job.msg); err != nil {
				b.errf("%s", err)
				continue
			}

		case msg := <-incomingQueue:
			if msg.Type != bidi.MessageTypeEvent {
				resp, ok := respByID[msg.ID]
				if !ok {
					b.errf("id %d not present in response map", msg.ID)
					continue
				}
				resp <- msg
				delete(respByID, msg.ID)
				continue
			}
			ev, err := bidi.UnmarshalEvent(msg)
			if err != nil {
				if _, ok := err.(bidi.ErrUnknownEvent); !ok {
					b.errf("could not unmarshal event: %v", err)
				}
				continue
			}
			if e, ok := ev.(*bidi.EventEntryAdded); ok && b.consolef != nil {
				b.consolef("[%s] %s", e.Level, e.Text)
			}
			b.listenersMu.Lock()
			b.listeners = runListeners(b.listeners, ev)
			b.listenersMu.Unlock()

		case <-b.LostConnection:
			return // to avoid "write: broken pipe" errors
		}
	}
}

// BrowserOption is a browser option.
type BrowserOption = func(*Browser)

// WithBrowserLogf is a browser option to specify a func to receive general logging.
func WithBrowserLogf(f func(string, ...interface{})) BrowserOption {
	return func(b *Browser) { b.logf = f }
}

// WithBrowserErrorf is a browser option to specify a func to receive error logging.
func WithBrowserErrorf(f func(string, ...interface{})) BrowserOption {
	return func(b *Browser) { b.errf = f }
}

// WithBrowserDebugf is a browser option to specify a func to log actual
// websocket messages.
func WithBrowserDebugf(f func(string, ...interface{})) BrowserOption {
	return func(b *Browser) { b.dbgf = f }
}

// WithBrowserConsolef is a browser option to specify a func to receive
// console log entries from the browser.
func WithBrowserConsolef(f func(string, ...interface{})) BrowserOption {
	return func(b *Browser) { b.consolef = f }
}

// WithDialTimeout is a browser option to specify the timeout when dialing a
// browser's websocket address. The default is ten seconds; use a zero
// duration to not use a timeout.
func WithDialTimeout(d time.Duration) BrowserOption {
	return func(b *Browser) { b.dialTimeout = d }
}
