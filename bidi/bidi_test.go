package bidi

import (
	"testing"

	"github.com/mailru/easyjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodTypeModule(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "browsingContext", CommandBrowsingContextNavigate.Module())
	assert.Equal(t, "log", EventLogEntryAdded.Module())
	assert.Equal(t, "nodot", MethodType("nodot").Module())
}

func TestMessageMarshal(t *testing.T) {
	t.Parallel()

	params, err := easyjson.Marshal(Navigate("ctx-1", "https://example.com").WithWait(ReadinessInteractive))
	require.NoError(t, err)

	buf, err := easyjson.Marshal(&Message{
		ID:     7,
		Method: CommandBrowsingContextNavigate,
		Params: params,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 7,
		"method": "browsingContext.navigate",
		"params": {"context": "ctx-1", "url": "https://example.com", "wait": "interactive"}
	}`, string(buf))
}

func TestMessageUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Message
		wantErr error
	}{
		{
			name:  "success",
			input: `{"type":"success","id":3,"result":{"navigation":"n1","url":"about:blank"}}`,
			want: Message{
				ID:     3,
				Type:   MessageTypeSuccess,
				Result: easyjson.RawMessage(`{"navigation":"n1","url":"about:blank"}`),
			},
		},
		{
			name:  "error",
			input: `{"type":"error","id":4,"error":"no such frame","message":"context gone","stacktrace":""}`,
			want: Message{
				ID:         4,
				Type:       MessageTypeError,
				Error:      "no such frame",
				ErrMessage: "context gone",
			},
			wantErr: &Error{Code: "no such frame", Message: "context gone"},
		},
		{
			name:  "error without id",
			input: `{"type":"error","id":null,"error":"invalid argument","message":"bad json"}`,
			want: Message{
				Type:       MessageTypeError,
				Error:      "invalid argument",
				ErrMessage: "bad json",
			},
			wantErr: &Error{Code: "invalid argument", Message: "bad json"},
		},
		{
			name:  "event",
			input: `{"type":"event","method":"log.entryAdded","params":{"level":"info"},"extra":[1,2]}`,
			want: Message{
				Type:   MessageTypeEvent,
				Method: EventLogEntryAdded,
				Params: easyjson.RawMessage(`{"level":"info"}`),
			},
		},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			var msg Message
			require.NoError(t, easyjson.Unmarshal([]byte(test.input), &msg))
			assert.Equal(t, test.want, msg)
			assert.Equal(t, test.wantErr, msg.Err())
		})
	}
}

func TestMessageUnmarshalInvalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{``, `   `, `{"id":1`, `[1,2]`} {
		var msg Message
		assert.Error(t, easyjson.Unmarshal([]byte(input), &msg), "input %q", input)
	}
}

func TestGetTreeParams(t *testing.T) {
	t.Parallel()

	buf, err := easyjson.Marshal(GetTree().WithScope(ScopeChrome))
	require.NoError(t, err)
	assert.JSONEq(t, `{"maxDepth":0,"moz:scope":"chrome"}`, string(buf))

	buf, err = easyjson.Marshal(GetTree().WithScope(ScopeContent))
	require.NoError(t, err)
	assert.JSONEq(t, `{"maxDepth":0}`, string(buf))
}

func TestGetTreeResult(t *testing.T) {
	t.Parallel()

	var res GetTreeResult
	require.NoError(t, easyjson.Unmarshal([]byte(`{"contexts":[
		{"context":"a","url":"about:blank","parent":null,"children":[
			{"context":"b","url":"https://example.com/frame","parent":"a","children":null}
		],"userContext":"default"}
	]}`), &res))

	require.Len(t, res.Contexts, 1)
	assert.Equal(t, "a", res.Contexts[0].Context)
	assert.Equal(t, "about:blank", res.Contexts[0].URL)
	require.Len(t, res.Contexts[0].Children, 1)
	assert.Equal(t, "b", res.Contexts[0].Children[0].Context)
	assert.Equal(t, "a", res.Contexts[0].Children[0].Parent)
}

func TestCallFunctionParams(t *testing.T) {
	t.Parallel()

	p := CallFunction("(x) => x", Target{Context: "chrome-1"}).
		WithArguments(StringValue(`{"command":"get_selection_text","args":[]}`), BooleanValue(true), NullValue()).
		WithAwaitPromise(true)
	buf, err := easyjson.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"functionDeclaration": "(x) => x",
		"target": {"context": "chrome-1"},
		"awaitPromise": true,
		"arguments": [
			{"type": "string", "value": "{\"command\":\"get_selection_text\",\"args\":[]}"},
			{"type": "boolean", "value": true},
			{"type": "null"}
		],
		"resultOwnership": "none"
	}`, string(buf))
}

func TestEvaluateResultException(t *testing.T) {
	t.Parallel()

	var res EvaluateResult
	require.NoError(t, easyjson.Unmarshal([]byte(`{
		"type":"exception","realm":"r1",
		"exceptionDetails":{"text":"ReferenceError: foo is not defined","lineNumber":1,"columnNumber":2,
			"exception":{"type":"error","handle":"h"},"stackTrace":{"callFrames":[]}}
	}`), &res))

	assert.Nil(t, res.Result)
	require.NotNil(t, res.ExceptionDetails)
	assert.Equal(t, "exception", res.Type)
	assert.Equal(t, `exception "ReferenceError: foo is not defined" (1:2)`, res.ExceptionDetails.Error())
}

func TestRemoteValueJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"string", `{"type":"string","value":"hello"}`, `"hello"`},
		{"number", `{"type":"number","value":4.5}`, `4.5`},
		{"negative zero", `{"type":"number","value":"-0"}`, `0`},
		{"nan", `{"type":"number","value":"NaN"}`, `null`},
		{"boolean", `{"type":"boolean","value":true}`, `true`},
		{"null", `{"type":"null"}`, `null`},
		{"bigint", `{"type":"bigint","value":"12345678901234567890"}`, `12345678901234567890`},
		{"function", `{"type":"function","handle":"x"}`, `null`},
		{"array", `{"type":"array","value":[{"type":"number","value":1},{"type":"string","value":"two"},{"type":"undefined"}]}`, `[1,"two",null]`},
		{"object", `{"type":"object","value":[["a",{"type":"number","value":1}],["b",{"type":"object","value":[["c",{"type":"boolean","value":false}]]}],["u",{"type":"undefined"}]]}`, `{"a":1,"b":{"c":false}}`},
		{"map", `{"type":"map","value":[[{"type":"string","value":"k"},{"type":"string","value":"v"}],[{"type":"number","value":2},{"type":"null"}]]}`, `{"k":"v","2":null}`},
		{"past depth", `{"type":"object","handle":"h"}`, `null`},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			var v RemoteValue
			require.NoError(t, easyjson.Unmarshal([]byte(test.input), &v))
			buf, err := v.JSON()
			require.NoError(t, err)
			assert.JSONEq(t, test.want, string(buf))
		})
	}
}

func TestRemoteValueUndefined(t *testing.T) {
	t.Parallel()

	v := RemoteValue{Type: "undefined"}
	_, err := v.JSON()
	assert.ErrorIs(t, err, ErrUndefined)
}

func TestStringRemoteValue(t *testing.T) {
	t.Parallel()

	v := String("a \"quoted\" value")
	buf, err := v.JSON()
	require.NoError(t, err)
	assert.Equal(t, `"a \"quoted\" value"`, string(buf))
}

func TestUnmarshalEvent(t *testing.T) {
	t.Parallel()

	ev, err := UnmarshalEvent(&Message{
		Type:   MessageTypeEvent,
		Method: EventLogEntryAdded,
		Params: easyjson.RawMessage(`{"type":"console","level":"warn","text":"careful","method":"warn","source":{"realm":"r","context":"c1"},"timestamp":12}`),
	})
	require.NoError(t, err)
	assert.Equal(t, &EventEntryAdded{
		Type:      "console",
		Level:     "warn",
		Text:      "careful",
		Method:    "warn",
		Context:   "c1",
		Timestamp: 12,
	}, ev)

	ev, err = UnmarshalEvent(&Message{
		Method: EventBrowsingContextLoad,
		Params: easyjson.RawMessage(`{"context":"c1","navigation":"n","url":"https://example.com","timestamp":3}`),
	})
	require.NoError(t, err)
	load, ok := ev.(*EventLoad)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", load.URL)

	_, err = UnmarshalEvent(&Message{Method: "network.beforeRequestSent"})
	assert.Equal(t, ErrUnknownEvent("network.beforeRequestSent"), err)
}

func TestNewSessionParams(t *testing.T) {
	t.Parallel()

	buf, err := easyjson.Marshal(NewSession())
	require.NoError(t, err)
	assert.JSONEq(t, `{"capabilities":{}}`, string(buf))

	buf, err = easyjson.Marshal(NewSession().WithCapability("acceptInsecureCerts", true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"capabilities":{"alwaysMatch":{"acceptInsecureCerts":true}}}`, string(buf))

	var res NewSessionResult
	require.NoError(t, easyjson.Unmarshal([]byte(`{"sessionId":"s1","capabilities":{"browserName":"firefox","browserVersion":"140.0","setWindowRect":true}}`), &res))
	assert.Equal(t, NewSessionResult{SessionID: "s1", BrowserName: "firefox", BrowserVersion: "140.0"}, res)
}
