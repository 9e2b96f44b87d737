// Package biditest provides an in-process WebDriver BiDi server which speaks
// just enough of the protocol for firefoxdp, so that tests don't need a
// Firefox binary.
//
// The server knows one tab, one chrome window, and a set of privileged
// commands registered with Handle or Emulate.
package biditest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Context ids reported by the server.
const (
	TabContext    = "tab-1"
	ChromeContext = "chrome-1"
)

// CommandFunc implements a privileged command. args are the raw JSON
// arguments the client sent. A returned error becomes an error envelope with
// its message.
type CommandFunc func(args []json.RawMessage) (interface{}, error)

// Server is a fake Firefox remote agent.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	commands    map[string]CommandFunc
	replies     map[string]json.RawMessage
	readyStates []string
	noChrome    bool
	navError    string
	console     []consoleEntry
	methods     []string
	navigations []string
	url         string
	nextID      int
	closed      bool
	fakeDirs    []string
}

// Option configures a Server.
type Option func(*Server)

// WithoutChrome makes the server report no chrome browsing context, like a
// Firefox started without -remote-allow-system-access.
func WithoutChrome(s *Server) {
	s.noChrome = true
}

// WithReadyStates sets the successive values document.readyState evaluates
// to. The last one repeats. The default is always "complete".
func WithReadyStates(states ...string) Option {
	return func(s *Server) { s.readyStates = states }
}

// WithNavigationError makes every navigation fail with a BiDi error of the
// given code.
func WithNavigationError(code string) Option {
	return func(s *Server) { s.navError = code }
}

type consoleEntry struct {
	level, text string
}

// WithConsoleEntry makes every navigation log a console message of the given
// level, as a page script would.
func WithConsoleEntry(level, text string) Option {
	return func(s *Server) { s.console = append(s.console, consoleEntry{level, text}) }
}

// New starts a Server, which is closed at the end of the test.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := &Server{
		commands: make(map[string]CommandFunc),
		replies:  make(map[string]json.RawMessage),
		url:      "about:blank",
	}
	for _, o := range opts {
		o(s)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

// URL returns the websocket URL of the BiDi session endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http") + "/session"
}

// Handle registers fn as the implementation of a privileged command.
func (s *Server) Handle(command string, fn CommandFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[command] = fn
}

// Reply makes command return envelope as the runner reply, verbatim. Use it
// to test malformed replies.
func (s *Server) Reply(command, envelope string) {
	b, _ := json.Marshal(map[string]string{"type": "string", "value": envelope})
	s.ReplyRemote(command, string(b))
}

// ReplyRemote makes the runner call for command evaluate to the given BiDi
// remote value, such as {"type":"null"}.
func (s *Server) ReplyRemote(command, remote string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[command] = json.RawMessage(remote)
}

// Methods returns the BiDi methods received so far, in order.
func (s *Server) Methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.methods...)
}

// Navigations returns the URLs navigated to so far, in order.
func (s *Server) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Closed reports whether a client sent browser.close.
func (s *Server) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/session" {
		http.NotFound(w, r)
		return
	}
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			return
		}
		if op != ws.OpText {
			continue
		}
		if !s.handleMessage(conn, data) {
			return
		}
	}
}

type command struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// errBiDi is a BiDi error response.
type errBiDi struct {
	code, message string
}

func (e *errBiDi) Error() string { return e.code + ": " + e.message }

// handleMessage answers one command, returning false once the connection
// should be closed.
func (s *Server) handleMessage(conn net.Conn, data []byte) bool {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		write(conn, map[string]interface{}{
			"type": "error", "id": nil, "error": "invalid argument", "message": err.Error(),
		})
		return true
	}
	s.mu.Lock()
	s.methods = append(s.methods, cmd.Method)
	s.mu.Unlock()

	result, err := s.dispatch(conn, cmd)
	if err != nil {
		code, message := "unknown error", err.Error()
		var berr *errBiDi
		if errors.As(err, &berr) {
			code, message = berr.code, berr.message
		}
		write(conn, map[string]interface{}{
			"type": "error", "id": cmd.ID, "error": code, "message": message, "stacktrace": "",
		})
		return true
	}
	write(conn, map[string]interface{}{"type": "success", "id": cmd.ID, "result": result})
	return cmd.Method != "browser.close"
}

func write(conn net.Conn, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	_ = wsutil.WriteServerText(conn, b)
}

func (s *Server) dispatch(conn net.Conn, cmd command) (interface{}, error) {
	switch cmd.Method {
	case "session.new":
		return map[string]interface{}{
			"sessionId": "test-session",
			"capabilities": map[string]interface{}{
				"browserName":    "firefox",
				"browserVersion": "test",
			},
		}, nil

	case "session.subscribe", "session.end", "browsingContext.close":
		return map[string]interface{}{}, nil

	case "browser.close":
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.closeFakeFirefox()
		return map[string]interface{}{}, nil

	case "browsingContext.getTree":
		var p struct {
			Scope string `json:"moz:scope"`
		}
		_ = json.Unmarshal(cmd.Params, &p)
		s.mu.Lock()
		defer s.mu.Unlock()
		if p.Scope == "chrome" {
			if s.noChrome {
				return map[string]interface{}{"contexts": []interface{}{}}, nil
			}
			return contexts(ChromeContext, "chrome://browser/content/browser.xhtml"), nil
		}
		return contexts(TabContext, s.url), nil

	case "browsingContext.create":
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextID++
		return map[string]interface{}{"context": fmt.Sprintf("tab-%d", s.nextID+1)}, nil

	case "browsingContext.navigate":
		var p struct {
			Context string `json:"context"`
			URL     string `json:"url"`
		}
		if err := json.Unmarshal(cmd.Params, &p); err != nil {
			return nil, &errBiDi{"invalid argument", err.Error()}
		}
		s.mu.Lock()
		navError, console := s.navError, s.console
		if navError == "" {
			s.url = p.URL
			s.navigations = append(s.navigations, p.URL)
		}
		s.mu.Unlock()
		if navError != "" {
			return nil, &errBiDi{navError, "could not load " + p.URL}
		}
		write(conn, map[string]interface{}{
			"type":   "event",
			"method": "browsingContext.load",
			"params": map[string]interface{}{
				"context": p.Context, "navigation": "nav-1", "url": p.URL, "timestamp": 1,
			},
		})
		for _, e := range console {
			write(conn, map[string]interface{}{
				"type":   "event",
				"method": "log.entryAdded",
				"params": map[string]interface{}{
					"type": "console", "method": e.level, "level": e.level, "text": e.text, "timestamp": 2,
					"source": map[string]interface{}{"realm": "realm-1", "context": p.Context},
					"args":   []interface{}{map[string]interface{}{"type": "string", "value": e.text}},
				},
			})
		}
		return map[string]interface{}{"navigation": "nav-1", "url": p.URL}, nil

	case "script.evaluate":
		var p struct {
			Expression string `json:"expression"`
		}
		if err := json.Unmarshal(cmd.Params, &p); err != nil {
			return nil, &errBiDi{"invalid argument", err.Error()}
		}
		return s.evaluate(p.Expression), nil

	case "script.callFunction":
		return s.callFunction(cmd.Params)
	}
	return nil, &errBiDi{"unknown command", cmd.Method}
}

func contexts(id, url string) map[string]interface{} {
	return map[string]interface{}{"contexts": []interface{}{
		map[string]interface{}{"context": id, "url": url, "parent": nil, "children": []interface{}{}},
	}}
}

func (s *Server) evaluate(expr string) interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch expr {
	case "document.readyState":
		state := "complete"
		if len(s.readyStates) > 0 {
			state = s.readyStates[0]
			if len(s.readyStates) > 1 {
				s.readyStates = s.readyStates[1:]
			}
		}
		return scriptResult(stringValue(state))
	case "document.title":
		return scriptResult(stringValue("Test Page"))
	case "document.location.toString()":
		return scriptResult(stringValue(s.url))
	}
	return map[string]interface{}{
		"type":  "exception",
		"realm": "realm-1",
		"exceptionDetails": map[string]interface{}{
			"text":         "ReferenceError: " + expr + " is not defined",
			"lineNumber":   0,
			"columnNumber": 0,
			"exception":    map[string]interface{}{"type": "error"},
		},
	}
}

func (s *Server) callFunction(params json.RawMessage) (interface{}, error) {
	var p struct {
		Target struct {
			Context string `json:"context"`
		} `json:"target"`
		Arguments []struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"arguments"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, &errBiDi{"invalid argument", err.Error()}
	}
	if p.Target.Context != ChromeContext {
		return nil, &errBiDi{"no such frame", "privileged calls need the chrome context"}
	}
	if len(p.Arguments) != 1 || p.Arguments[0].Type != "string" {
		return nil, &errBiDi{"invalid argument", "expected a single string argument"}
	}
	var raw string
	if err := json.Unmarshal(p.Arguments[0].Value, &raw); err != nil {
		return nil, &errBiDi{"invalid argument", err.Error()}
	}
	var req struct {
		Command string            `json:"command"`
		Args    []json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return nil, &errBiDi{"invalid argument", err.Error()}
	}

	s.mu.Lock()
	reply, hasReply := s.replies[req.Command]
	fn := s.commands[req.Command]
	s.mu.Unlock()
	if hasReply {
		return scriptResult(reply), nil
	}

	var envelope interface{}
	if fn == nil {
		envelope = map[string]interface{}{
			"name":  "error",
			"error": map[string]string{"message": fmt.Sprintf("unknown command %q", req.Command)},
		}
	} else if result, err := fn(req.Args); err != nil {
		envelope = map[string]interface{}{
			"name":  "error",
			"error": map[string]string{"message": err.Error()},
		}
	} else {
		envelope = map[string]interface{}{"name": "success", "result": result}
	}
	b, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	return scriptResult(stringValue(string(b))), nil
}

func scriptResult(v interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "success", "realm": "realm-1", "result": v}
}

func stringValue(s string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "value": s}
}
