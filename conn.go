package firefoxdp

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/firefoxdp/firefoxdp/bidi"
)

// Transport is the common interface to send/receive messages to a browser.
type Transport interface {
	Read(context.Context, *bidi.Message) error
	Write(context.Context, *bidi.Message) error
	io.Closer
}

// Conn implements Transport with a gobwas/ws websocket connection.
type Conn struct {
	conn net.Conn

	// buf helps us reuse space when reading from the websocket.
	buf bytes.Buffer

	// reuse the websocket reader and writer to avoid an alloc per
	// Read/Write.
	reader wsutil.Reader
	writer wsutil.Writer

	// reuse the easyjson structs to avoid allocs per Read/Write.
	decoder jlexer.Lexer
	encoder jwriter.Writer

	dbgf func(string, ...interface{})
}

// DialContext dials the specified websocket URL using gobwas/ws.
func DialContext(ctx context.Context, urlstr string, opts ...DialOption) (*Conn, error) {
	// connect
	conn, br, _, err := ws.Dial(ctx, urlstr)
	if err != nil {
		return nil, err
	}
	// br holds frames the server sent right after the handshake, if any.
	var src io.Reader = conn
	if br != nil {
		src = br
	}

	// apply opts
	c := &Conn{
		conn: conn,
		reader: wsutil.Reader{
			Source:         src,
			State:          ws.StateClientSide,
			OnIntermediate: wsutil.ControlFrameHandler(conn, ws.StateClientSide),
		},
		// 0 uses the default buffer size (4KiB); outgoing BiDi commands
		// are small.
		writer: *wsutil.NewWriterBufferSize(conn, ws.StateClientSide, ws.OpText, 0),
	}
	for _, o := range opts {
		o(c)
	}

	return c, nil
}

// Close satisfies the io.Closer interface.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Read reads the next message.
func (c *Conn) Read(_ context.Context, msg *bidi.Message) error {
	// get websocket reader
	var h ws.Header
	for {
		var err error
		h, err = c.reader.NextFrame()
		if err != nil {
			return err
		}
		if !h.OpCode.IsControl() {
			break
		}
		if err := c.reader.OnIntermediate(h, &c.reader); err != nil {
			return err
		}
	}
	if h.OpCode != ws.OpText {
		return ErrInvalidWebsocketMessage
	}

	c.buf.Reset()
	if _, err := c.buf.ReadFrom(&c.reader); err != nil {
		return err
	}
	// The raw params and results of msg point into buf, which must outlive
	// the next Read.
	buf := bytes.Clone(c.buf.Bytes())
	if c.dbgf != nil {
		c.dbgf("<- %s", buf)
	}

	// unmarshal, reusing lexer
	c.decoder = jlexer.Lexer{Data: buf}
	msg.UnmarshalEasyJSON(&c.decoder)
	return c.decoder.Error()
}

// Write writes a message.
func (c *Conn) Write(_ context.Context, msg *bidi.Message) error {
	c.writer.Reset(c.conn, ws.StateClientSide, ws.OpText)

	// Reuse the easyjson writer.
	c.encoder = jwriter.Writer{}

	// Perform the marshal.
	msg.MarshalEasyJSON(&c.encoder)
	if err := c.encoder.Error; err != nil {
		return err
	}

	// Write the bytes to the websocket.
	// BuildBytes consumes the buffer, so we can't use it as well as DumpTo.
	if c.dbgf != nil {
		buf, _ := c.encoder.BuildBytes()
		c.dbgf("-> %s", buf)
		if _, err := c.writer.Write(buf); err != nil {
			return err
		}
	} else {
		if _, err := c.encoder.DumpTo(&c.writer); err != nil {
			return err
		}
	}
	return c.writer.Flush()
}

// DialOption is a dial option.
type DialOption = func(*Conn)

// WithConnDebugf is a dial option to set a protocol logger.
func WithConnDebugf(f func(string, ...interface{})) DialOption {
	return func(c *Conn) {
		c.dbgf = f
	}
}

// ForceIP forces the host component in urlstr to be an IP address.
//
// Firefox's remote agent rejects connections whose Host header is not an IP
// address or "localhost".
func ForceIP(urlstr string) string {
	if i := strings.Index(urlstr, "://"); i != -1 {
		scheme := urlstr[:i+3]
		host, port, path := urlstr[len(scheme):], "", ""
		if i := strings.Index(host, "/"); i != -1 {
			host, path = host[:i], host[i:]
		}
		if i := strings.Index(host, ":"); i != -1 {
			host, port = host[:i], host[i:]
		}
		if addr, err := net.ResolveIPAddr("ip", host); err == nil {
			urlstr = scheme + addr.IP.String() + port + path
		}
	}
	return urlstr
}
