package bidi

import (
	"errors"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// ErrUndefined is returned when converting a top-level undefined remote
// value to JSON.
var ErrUndefined = errors.New("encountered an undefined value")

// RemoteValue is a value serialized by the remote end. Value holds the raw
// BiDi serialization, which for containers is a list of remote values (or
// key/value pairs) rather than plain JSON; use JSON to convert it.
type RemoteValue struct {
	Type   string
	Value  easyjson.RawMessage
	Handle string
}

// String returns a string remote value.
func String(s string) *RemoteValue {
	w := jwriter.Writer{}
	w.String(s)
	return &RemoteValue{Type: "string", Value: w.Buffer.BuildBytes()}
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (v RemoteValue) MarshalEasyJSON(out *jwriter.Writer) {
	o := beginObject(out)
	o.field("type").String(v.Type)
	if len(v.Value) != 0 {
		(v.Value).MarshalEasyJSON(o.field("value"))
	}
	if v.Handle != "" {
		o.field("handle").String(v.Handle)
	}
	o.end()
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (v *RemoteValue) UnmarshalEasyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(key string) {
		switch key {
		case "type":
			v.Type = in.String()
		case "value":
			(&v.Value).UnmarshalEasyJSON(in)
		case "handle":
			v.Handle = in.String()
		default:
			in.SkipRecursive()
		}
	})
}

// JSON converts the remote value to plain JSON, the way JSON.stringify
// would. Values without a JSON form, such as functions, nodes, NaN or
// values past the serialization depth, become null.
func (v *RemoteValue) JSON() ([]byte, error) {
	if v.Type == "undefined" {
		return nil, ErrUndefined
	}
	w := jwriter.Writer{}
	if err := v.writeJSON(&w); err != nil {
		return nil, err
	}
	return w.BuildBytes()
}

func (v *RemoteValue) writeJSON(w *jwriter.Writer) error {
	switch v.Type {
	case "string", "boolean", "date", "regexp":
		if len(v.Value) == 0 {
			w.RawString("null")
			return nil
		}
		w.Raw(v.Value, nil)
	case "number":
		switch {
		case len(v.Value) == 0:
			w.RawString("null")
		case v.Value[0] != '"':
			w.Raw(v.Value, nil)
		case string(v.Value) == `"-0"`:
			w.RawString("0")
		default:
			// NaN, Infinity and -Infinity
			w.RawString("null")
		}
	case "bigint":
		in := jlexer.Lexer{Data: v.Value}
		digits := in.String()
		if err := in.Error(); err != nil {
			return err
		}
		w.RawString(digits)
	case "array", "set":
		if len(v.Value) == 0 {
			w.RawString("null")
			return nil
		}
		items, err := decodeRemoteValues(v.Value)
		if err != nil {
			return err
		}
		w.RawByte('[')
		for i, item := range items {
			if i > 0 {
				w.RawByte(',')
			}
			if err := item.writeJSON(w); err != nil {
				return err
			}
		}
		w.RawByte(']')
	case "object", "map":
		if len(v.Value) == 0 {
			w.RawString("null")
			return nil
		}
		pairs, err := decodeRemotePairs(v.Value)
		if err != nil {
			return err
		}
		w.RawByte('{')
		first := true
		for _, p := range pairs {
			if p.value.Type == "undefined" {
				continue
			}
			if !first {
				w.RawByte(',')
			}
			first = false
			w.String(p.key)
			w.RawByte(':')
			if err := p.value.writeJSON(w); err != nil {
				return err
			}
		}
		w.RawByte('}')
	default:
		w.RawString("null")
	}
	return w.Error
}

func decodeRemoteValues(data []byte) ([]*RemoteValue, error) {
	in := jlexer.Lexer{Data: data}
	var values []*RemoteValue
	decodeArray(&in, func() {
		v := new(RemoteValue)
		v.UnmarshalEasyJSON(&in)
		values = append(values, v)
	})
	return values, in.Error()
}

type remotePair struct {
	key   string
	value RemoteValue
}

func decodeRemotePairs(data []byte) ([]remotePair, error) {
	in := jlexer.Lexer{Data: data}
	var pairs []remotePair
	decodeArray(&in, func() {
		var p remotePair
		i := 0
		decodeArray(&in, func() {
			switch i {
			case 0:
				p.key = decodeKey(in.Raw())
			case 1:
				p.value.UnmarshalEasyJSON(&in)
			default:
				in.SkipRecursive()
			}
			i++
		})
		pairs = append(pairs, p)
	})
	return pairs, in.Error()
}

// decodeKey decodes an object key, which is either a plain string or, for
// maps, a remote value.
func decodeKey(raw []byte) string {
	kl := jlexer.Lexer{Data: raw}
	if len(raw) > 0 && raw[0] == '"' {
		return kl.String()
	}
	var k RemoteValue
	k.UnmarshalEasyJSON(&kl)
	if k.Type == "string" {
		sl := jlexer.Lexer{Data: k.Value}
		return sl.String()
	}
	if buf, err := k.JSON(); err == nil {
		return string(buf)
	}
	return k.Type
}
