package firefoxdp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"

	"github.com/firefoxdp/firefoxdp/bidi"
)

// Privileged is an action that runs a named command in the chrome window
// through the bundled runner script, unmarshaling its result to res.
//
// args are encoded with encoding/json, and passed to the command in order.
// When res is nil, the result is ignored; when res is a *[]byte, it is set to
// the raw JSON result; otherwise the result is unmarshaled into res.
//
// A command that fails returns a *CommandError with the message reported by
// the browser. A reply that is neither a success nor an error returns a
// *ProtocolError.
func Privileged(command string, res interface{}, args ...interface{}) Action {
	return ActionFunc(func(ctx context.Context) error {
		if args == nil {
			args = []interface{}{}
		}
		req, err := json.Marshal(request{Command: command, Args: args})
		if err != nil {
			return fmt.Errorf("could not encode %s arguments: %w", command, err)
		}

		var v *bidi.RemoteValue
		if err := CallFunction(runnerJS, &v, []EvaluateOption{EvalInChrome}, string(req)).Do(ctx); err != nil {
			return err
		}
		if v.Type != "string" {
			buf, _ := v.JSON()
			if len(buf) == 0 {
				buf = []byte(v.Type)
			}
			return &ProtocolError{Command: command, Response: string(buf)}
		}
		var reply string
		if err := json.Unmarshal(v.Value, &reply); err != nil {
			return &ProtocolError{Command: command, Response: string(v.Value)}
		}

		result, err := decodeResponse(command, []byte(reply))
		if err != nil {
			return err
		}
		switch x := res.(type) {
		case nil:
			return nil
		case *[]byte:
			*x = result
			return nil
		}
		return json.Unmarshal(result, res)
	})
}

// request is the payload handed to the runner script.
type request struct {
	Command string        `json:"command"`
	Args    []interface{} `json:"args"`
}

// response is the envelope the runner script replies with.
type response struct {
	Name   string
	Result easyjson.RawMessage
	Error  easyjson.RawMessage
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (r *response) UnmarshalEasyJSON(in *jlexer.Lexer) {
	if in.IsNull() {
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeFieldName(false)
		in.WantColon()
		switch key {
		case "name":
			if in.IsNull() {
				in.Skip()
			} else {
				r.Name = in.String()
			}
		case "result":
			r.Result = in.Raw()
		case "error":
			r.Error = in.Raw()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}

// decodeResponse decodes a runner reply into either the raw JSON result of
// a successful command, or an error.
func decodeResponse(command string, data []byte) (easyjson.RawMessage, error) {
	var r response
	if err := easyjson.Unmarshal(data, &r); err != nil {
		return nil, &ProtocolError{Command: command, Response: string(data)}
	}
	switch r.Name {
	case "success":
		if len(r.Result) == 0 {
			return easyjson.RawMessage("null"), nil
		}
		return r.Result, nil
	case "error":
		return nil, &CommandError{Command: command, Message: errorMessage(r.Error)}
	}
	return nil, &ProtocolError{Command: command, Response: string(data)}
}

// errorMessage returns the message of an error that is either a string or
// an object with a message field. Anything else is reported as raw JSON.
func errorMessage(raw easyjson.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "unknown error"
	}
	var message string
	if err := json.Unmarshal(raw, &message); err == nil {
		return message
	}
	var details struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(raw, &details); err == nil && details.Message != nil {
		return *details.Message
	}
	return string(raw)
}
