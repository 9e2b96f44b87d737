package firefoxdp

import (
	"context"
	"fmt"

	"github.com/firefoxdp/firefoxdp/bidi"
)

// CallAction are actions that call a Javascript function using
// script.callFunction.
type CallAction Action

// CallFunction is an action to call a Javascript function in the tab,
// unmarshaling the result of the function to res.
//
// The handling of res is the same as that of Evaluate, and so are the
// options: use EvalInChrome to call the function in the chrome window.
//
// args may be strings, booleans, numbers, nil, or bidi.LocalValue.
//
// Note: any exception encountered will be returned as an error.
func CallFunction(functionDeclaration string, res interface{}, opts []EvaluateOption, args ...interface{}) CallAction {
	return ActionFunc(func(ctx context.Context) error {
		t, err := targetFromContext(ctx)
		if err != nil {
			return err
		}
		e := &evaluation{target: t.content()}
		for _, o := range opts {
			if err := o(t, e); err != nil {
				return err
			}
		}

		values := make([]bidi.LocalValue, 0, len(args))
		for _, arg := range args {
			v, err := localValue(arg)
			if err != nil {
				return err
			}
			values = append(values, v)
		}

		p := bidi.CallFunction(functionDeclaration, e.target).
			WithArguments(values...).
			WithAwaitPromise(true)
		var v bidi.EvaluateResult
		if err := t.Execute(ctx, bidi.CommandScriptCallFunction, p, &v); err != nil {
			return err
		}
		if v.ExceptionDetails != nil {
			return v.ExceptionDetails
		}
		return parseRemoteValue(v.Result, res)
	})
}

func localValue(arg interface{}) (bidi.LocalValue, error) {
	switch x := arg.(type) {
	case nil:
		return bidi.NullValue(), nil
	case bidi.LocalValue:
		return x, nil
	case string:
		return bidi.StringValue(x), nil
	case bool:
		return bidi.BooleanValue(x), nil
	case int:
		return bidi.NumberValue(float64(x)), nil
	case int64:
		return bidi.NumberValue(float64(x)), nil
	case float64:
		return bidi.NumberValue(x), nil
	}
	return bidi.LocalValue{}, fmt.Errorf("unsupported argument type %T", arg)
}
