package bidi

import (
	"github.com/mailru/easyjson/jlexer"
)

// Log module events.
const (
	EventLogEntryAdded MethodType = "log.entryAdded"
)

// EventEntryAdded is a console or javascript log entry.
type EventEntryAdded struct {
	Type      string
	Level     string
	Text      string
	Method    string
	Context   string
	Timestamp int64
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (e *EventEntryAdded) UnmarshalEasyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(key string) {
		switch key {
		case "type":
			e.Type = in.String()
		case "level":
			e.Level = in.String()
		case "text":
			e.Text = in.String()
		case "method":
			e.Method = in.String()
		case "timestamp":
			e.Timestamp = in.Int64()
		case "source":
			decodeObject(in, func(key string) {
				switch key {
				case "context":
					e.Context = in.String()
				default:
					in.SkipRecursive()
				}
			})
		default:
			in.SkipRecursive()
		}
	})
}
