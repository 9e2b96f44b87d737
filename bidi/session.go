package bidi

import (
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// Session and browser module commands.
const (
	CommandSessionNew       MethodType = "session.new"
	CommandSessionEnd       MethodType = "session.end"
	CommandSessionSubscribe MethodType = "session.subscribe"
	CommandBrowserClose     MethodType = "browser.close"
)

// NewSessionParams are the parameters of session.new.
type NewSessionParams struct {
	// AlwaysMatch holds the requested capabilities. A nil map requests the
	// defaults.
	AlwaysMatch map[string]bool
}

// NewSession returns the parameters of a session.new command.
func NewSession() *NewSessionParams {
	return &NewSessionParams{}
}

// WithCapability requests a boolean capability, such as
// "acceptInsecureCerts".
func (p NewSessionParams) WithCapability(name string, value bool) *NewSessionParams {
	m := make(map[string]bool, len(p.AlwaysMatch)+1)
	for k, v := range p.AlwaysMatch {
		m[k] = v
	}
	m[name] = value
	p.AlwaysMatch = m
	return &p
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (p NewSessionParams) MarshalEasyJSON(out *jwriter.Writer) {
	o := beginObject(out)
	caps := beginObject(o.field("capabilities"))
	if len(p.AlwaysMatch) != 0 {
		am := beginObject(caps.field("alwaysMatch"))
		for _, k := range sortedKeys(p.AlwaysMatch) {
			am.field(k).Bool(p.AlwaysMatch[k])
		}
		am.end()
	}
	caps.end()
	o.end()
}

// NewSessionResult is the result of session.new.
type NewSessionResult struct {
	SessionID      string
	BrowserName    string
	BrowserVersion string
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (r *NewSessionResult) UnmarshalEasyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(key string) {
		switch key {
		case "sessionId":
			r.SessionID = in.String()
		case "capabilities":
			decodeObject(in, func(key string) {
				switch key {
				case "browserName":
					r.BrowserName = in.String()
				case "browserVersion":
					r.BrowserVersion = in.String()
				default:
					in.SkipRecursive()
				}
			})
		default:
			in.SkipRecursive()
		}
	})
}

// SubscribeParams are the parameters of session.subscribe.
type SubscribeParams struct {
	Events []MethodType
}

// Subscribe returns the parameters of a session.subscribe command.
func Subscribe(events ...MethodType) *SubscribeParams {
	return &SubscribeParams{Events: events}
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (p SubscribeParams) MarshalEasyJSON(out *jwriter.Writer) {
	o := beginObject(out)
	w := o.field("events")
	w.RawByte('[')
	for i, ev := range p.Events {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(string(ev))
	}
	w.RawByte(']')
	o.end()
}
