// Package bidi provides the WebDriver BiDi protocol types used by firefoxdp.
//
// Only the subset of the protocol needed to drive Firefox is covered: session
// management, browsing context discovery and navigation, script evaluation
// and the events that firefoxdp listens to. All types carry easyjson codecs.
package bidi

import (
	"fmt"
	"strings"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// MethodType is a BiDi command or event name, such as "session.new".
type MethodType string

// String satisfies fmt.Stringer.
func (t MethodType) String() string {
	return string(t)
}

// Module returns the module part of the method name.
func (t MethodType) Module() string {
	return string(t[:strings.IndexByte(string(t)+".", '.')])
}

// MessageType is the type tag of an incoming message.
type MessageType string

// Message types.
const (
	MessageTypeSuccess MessageType = "success"
	MessageTypeError   MessageType = "error"
	MessageTypeEvent   MessageType = "event"
)

// Message is a BiDi message. Outgoing commands only use ID, Method and
// Params; incoming messages are either command results (ID, Type and Result
// or the error fields) or events (Type, Method and Params).
type Message struct {
	ID         int64               `json:"id,omitempty"`
	Type       MessageType         `json:"type,omitempty"`
	Method     MethodType          `json:"method,omitempty"`
	Params     easyjson.RawMessage `json:"params,omitempty"`
	Result     easyjson.RawMessage `json:"result,omitempty"`
	Error      string              `json:"error,omitempty"`
	ErrMessage string              `json:"message,omitempty"`
	Stacktrace string              `json:"stacktrace,omitempty"`
}

// Err returns the protocol error carried by the message, if any.
func (m *Message) Err() error {
	if m.Type != MessageTypeError {
		return nil
	}
	return &Error{Code: m.Error, Message: m.ErrMessage}
}

// Error is a protocol level error returned by the remote end, for example
// "no such frame" or "unknown command".
type Error struct {
	Code    string
	Message string
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (m Message) MarshalEasyJSON(out *jwriter.Writer) {
	o := beginObject(out)
	if m.ID != 0 {
		o.field("id").Int64(m.ID)
	}
	if m.Type != "" {
		o.field("type").String(string(m.Type))
	}
	if m.Method != "" {
		o.field("method").String(string(m.Method))
	}
	if len(m.Params) != 0 {
		(m.Params).MarshalEasyJSON(o.field("params"))
	}
	if len(m.Result) != 0 {
		(m.Result).MarshalEasyJSON(o.field("result"))
	}
	if m.Error != "" {
		o.field("error").String(m.Error)
	}
	if m.ErrMessage != "" {
		o.field("message").String(m.ErrMessage)
	}
	if m.Stacktrace != "" {
		o.field("stacktrace").String(m.Stacktrace)
	}
	o.end()
}

// MarshalJSON satisfies json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	m.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (m *Message) UnmarshalEasyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(key string) {
		switch key {
		case "id":
			m.ID = in.Int64()
		case "type":
			m.Type = MessageType(in.String())
		case "method":
			m.Method = MethodType(in.String())
		case "params":
			(&m.Params).UnmarshalEasyJSON(in)
		case "result":
			(&m.Result).UnmarshalEasyJSON(in)
		case "error":
			m.Error = in.String()
		case "message":
			m.ErrMessage = in.String()
		case "stacktrace":
			m.Stacktrace = in.String()
		default:
			in.SkipRecursive()
		}
	})
}

// UnmarshalJSON satisfies json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	r := jlexer.Lexer{Data: data}
	m.UnmarshalEasyJSON(&r)
	return r.Error()
}

// decodeObject walks a JSON object, calling fn for every non-null field. fn
// must consume the value.
func decodeObject(in *jlexer.Lexer, fn func(key string)) {
	isTopLevel := in.IsStart()
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		fn(key)
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

// decodeArray walks a JSON array, calling fn for every element. fn must
// consume the element.
func decodeArray(in *jlexer.Lexer, fn func()) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('[')
	for !in.IsDelim(']') {
		fn()
		in.WantComma()
	}
	in.Delim(']')
}

// objectWriter writes the fields of a JSON object, taking care of commas.
type objectWriter struct {
	out   *jwriter.Writer
	first bool
}

func beginObject(out *jwriter.Writer) *objectWriter {
	out.RawByte('{')
	return &objectWriter{out: out, first: true}
}

func (o *objectWriter) field(name string) *jwriter.Writer {
	if !o.first {
		o.out.RawByte(',')
	}
	o.first = false
	o.out.String(name)
	o.out.RawByte(':')
	return o.out
}

func (o *objectWriter) end() {
	o.out.RawByte('}')
}

// EmptyParams is used for commands that take no parameters.
type EmptyParams struct{}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (EmptyParams) MarshalEasyJSON(out *jwriter.Writer) {
	out.RawString("{}")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
