package firefoxdp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/firefoxdp/firefoxdp/bidi"
)

// EvaluateAction are actions that evaluate Javascript expressions using
// script.evaluate.
type EvaluateAction Action

// Evaluate is an action to evaluate the Javascript expression in the tab,
// unmarshaling the result of the script evaluation to res.
//
// When res is nil, the script result will be ignored.
//
// When res is a *[]byte, the result converted to JSON will be placed in res.
//
// When res is a **bidi.RemoteValue, res will be set to the low-level
// protocol type, and no attempt will be made to convert the result.
//
// For all other cases, the result of the script is converted to JSON, and
// subsequently an attempt will be made to json.Unmarshal it to res. It
// returns an error if the script result is "undefined" in this case.
//
// Promises are awaited. Any exception encountered will be returned as an
// error.
func Evaluate(expression string, res interface{}, opts ...EvaluateOption) EvaluateAction {
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

		p := bidi.Evaluate(expression, e.target).WithAwaitPromise(true)
		var v bidi.EvaluateResult
		if err := t.Execute(ctx, bidi.CommandScriptEvaluate, p, &v); err != nil {
			return err
		}
		if v.ExceptionDetails != nil {
			return v.ExceptionDetails
		}
		return parseRemoteValue(v.Result, res)
	})
}

// evaluation holds the settings EvaluateOption and CallOption modify.
type evaluation struct {
	target bidi.Target
}

// EvaluateOption is the type for Javascript evaluation options.
type EvaluateOption = func(*Target, *evaluation) error

// EvalInChrome is an evaluate option to run the expression in the privileged
// chrome window instead of the tab.
func EvalInChrome(t *Target, e *evaluation) error {
	target, err := t.chrome()
	if err != nil {
		return err
	}
	e.target.Context = target.Context
	return nil
}

// EvalInSandbox is an evaluate option to run the expression in an isolated
// sandbox of the tab, sharing the DOM but not the page's globals.
func EvalInSandbox(sandbox string) EvaluateOption {
	return func(_ *Target, e *evaluation) error {
		e.target.Sandbox = sandbox
		return nil
	}
}

func parseRemoteValue(v *bidi.RemoteValue, res interface{}) error {
	if res == nil {
		return nil
	}
	if v == nil {
		return errors.New("script returned no result")
	}

	if x, ok := res.(**bidi.RemoteValue); ok {
		*x = v
		return nil
	}

	buf, err := v.JSON()
	if errors.Is(err, bidi.ErrUndefined) {
		// The unmarshal below would fail with the cryptic
		// "unexpected end of JSON input" error, so try to give
		// a better one here.
		return errors.New("encountered an undefined value")
	}
	if err != nil {
		return err
	}
	if x, ok := res.(*[]byte); ok {
		*x = buf
		return nil
	}

	// unmarshal
	return json.Unmarshal(buf, res)
}
