package bidi

import (
	"fmt"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// Script module commands.
const (
	CommandScriptEvaluate     MethodType = "script.evaluate"
	CommandScriptCallFunction MethodType = "script.callFunction"
)

// ResultOwnership controls whether the remote end keeps a handle to the
// returned value.
type ResultOwnership string

// Result ownership values.
const (
	ResultOwnershipNone ResultOwnership = "none"
	ResultOwnershipRoot ResultOwnership = "root"
)

// Target is the browsing context a script is run against. Sandbox names an
// isolated realm; it is empty for the context's default realm.
type Target struct {
	Context string
	Sandbox string
}

func (t Target) marshal(out *jwriter.Writer) {
	o := beginObject(out)
	o.field("context").String(t.Context)
	if t.Sandbox != "" {
		o.field("sandbox").String(t.Sandbox)
	}
	o.end()
}

// LocalValue is a primitive value passed to script.callFunction. Only the
// primitive BiDi local values are supported.
type LocalValue struct {
	Type  string
	Value interface{}
}

// StringValue returns a string local value.
func StringValue(s string) LocalValue {
	return LocalValue{Type: "string", Value: s}
}

// BooleanValue returns a boolean local value.
func BooleanValue(b bool) LocalValue {
	return LocalValue{Type: "boolean", Value: b}
}

// NumberValue returns a number local value.
func NumberValue(f float64) LocalValue {
	return LocalValue{Type: "number", Value: f}
}

// NullValue returns the null local value.
func NullValue() LocalValue {
	return LocalValue{Type: "null"}
}

func (v LocalValue) marshal(out *jwriter.Writer) {
	o := beginObject(out)
	o.field("type").String(v.Type)
	switch x := v.Value.(type) {
	case string:
		o.field("value").String(x)
	case bool:
		o.field("value").Bool(x)
	case float64:
		o.field("value").Float64(x)
	case int64:
		o.field("value").Int64(x)
	}
	o.end()
}

// EvaluateParams are the parameters of script.evaluate.
type EvaluateParams struct {
	Expression      string
	Target          Target
	AwaitPromise    bool
	ResultOwnership ResultOwnership
}

// Evaluate returns the parameters of a script.evaluate command.
func Evaluate(expression string, target Target) *EvaluateParams {
	return &EvaluateParams{
		Expression:      expression,
		Target:          target,
		ResultOwnership: ResultOwnershipNone,
	}
}

// WithAwaitPromise sets whether the remote end awaits a returned promise.
func (p EvaluateParams) WithAwaitPromise(await bool) *EvaluateParams {
	p.AwaitPromise = await
	return &p
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (p EvaluateParams) MarshalEasyJSON(out *jwriter.Writer) {
	o := beginObject(out)
	o.field("expression").String(p.Expression)
	p.Target.marshal(o.field("target"))
	o.field("awaitPromise").Bool(p.AwaitPromise)
	if p.ResultOwnership != "" {
		o.field("resultOwnership").String(string(p.ResultOwnership))
	}
	o.end()
}

// CallFunctionParams are the parameters of script.callFunction.
type CallFunctionParams struct {
	FunctionDeclaration string
	Target              Target
	Arguments           []LocalValue
	AwaitPromise        bool
	ResultOwnership     ResultOwnership
}

// CallFunction returns the parameters of a script.callFunction command.
func CallFunction(functionDeclaration string, target Target) *CallFunctionParams {
	return &CallFunctionParams{
		FunctionDeclaration: functionDeclaration,
		Target:              target,
		ResultOwnership:     ResultOwnershipNone,
	}
}

// WithArguments sets the function arguments.
func (p CallFunctionParams) WithArguments(args ...LocalValue) *CallFunctionParams {
	p.Arguments = args
	return &p
}

// WithAwaitPromise sets whether the remote end awaits a returned promise.
func (p CallFunctionParams) WithAwaitPromise(await bool) *CallFunctionParams {
	p.AwaitPromise = await
	return &p
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (p CallFunctionParams) MarshalEasyJSON(out *jwriter.Writer) {
	o := beginObject(out)
	o.field("functionDeclaration").String(p.FunctionDeclaration)
	p.Target.marshal(o.field("target"))
	o.field("awaitPromise").Bool(p.AwaitPromise)
	if len(p.Arguments) != 0 {
		w := o.field("arguments")
		w.RawByte('[')
		for i, arg := range p.Arguments {
			if i > 0 {
				w.RawByte(',')
			}
			arg.marshal(w)
		}
		w.RawByte(']')
	}
	if p.ResultOwnership != "" {
		o.field("resultOwnership").String(string(p.ResultOwnership))
	}
	o.end()
}

// EvaluateResult is the result of script.evaluate and script.callFunction.
// Exactly one of Result and ExceptionDetails is set.
type EvaluateResult struct {
	Type             string
	Realm            string
	Result           *RemoteValue
	ExceptionDetails *ExceptionDetails
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (r *EvaluateResult) UnmarshalEasyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(key string) {
		switch key {
		case "type":
			r.Type = in.String()
		case "realm":
			r.Realm = in.String()
		case "result":
			r.Result = new(RemoteValue)
			r.Result.UnmarshalEasyJSON(in)
		case "exceptionDetails":
			r.ExceptionDetails = new(ExceptionDetails)
			r.ExceptionDetails.UnmarshalEasyJSON(in)
		default:
			in.SkipRecursive()
		}
	})
}

// ExceptionDetails describes an exception thrown by an evaluated script.
type ExceptionDetails struct {
	Text         string
	LineNumber   int64
	ColumnNumber int64
	Exception    *RemoteValue
}

// Error satisfies the error interface.
func (e *ExceptionDetails) Error() string {
	return fmt.Sprintf("exception %q (%d:%d)", e.Text, e.LineNumber, e.ColumnNumber)
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (e *ExceptionDetails) UnmarshalEasyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(key string) {
		switch key {
		case "text":
			e.Text = in.String()
		case "lineNumber":
			e.LineNumber = in.Int64()
		case "columnNumber":
			e.ColumnNumber = in.Int64()
		case "exception":
			e.Exception = new(RemoteValue)
			e.Exception.UnmarshalEasyJSON(in)
		default:
			in.SkipRecursive()
		}
	})
}
