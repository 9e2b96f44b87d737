package inference

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firefoxdp/firefoxdp"
)

func TestEngineOptionsJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(EngineOptions{
		TaskName: "text-generation",
		ModelID:  "Xenova/distilgpt2",
		Extra:    map[string]interface{}{"backend": "onnx", "taskName": "ignored"},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"taskName":"text-generation","modelId":"Xenova/distilgpt2","backend":"onnx"}`, string(b))
}

func TestMLEngineRoundTrip(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	ctx := context.Background()

	engine, err := c.CreateMLEngine(ctx, SummarizationEngine)
	require.NoError(t, err)
	require.NotEmpty(t, engine.EngineID)

	res, err := c.RunMLEngine(ctx, engine.EngineID, []interface{}{"one two three four five six seven"}, map[string]interface{}{"max_new_tokens": 10})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "Summary: one two three four five", res.Entries[0]["summary_text"])

	// Another id is rejected by the browser.
	_, err = c.RunMLEngine(ctx, "engine-999", []interface{}{"text"}, nil)
	var cerr *firefoxdp.CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CommandRunMLEngine, cerr.Command)
	assert.Contains(t, cerr.Message, "engine-999")

	ack, err := c.DestroyMLEngine(ctx, engine.EngineID, true)
	require.NoError(t, err)
	assert.Equal(t, engine.EngineID, ack["engineId"])

	// Destroying twice is an error.
	_, err = c.DestroyMLEngine(ctx, engine.EngineID, true)
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, CommandDestroyMLEngine, cerr.Command)
}

func TestRunMLEngineRequest(t *testing.T) {
	t.Parallel()

	c, srv := newTestClient(t)
	calls := make(chan []json.RawMessage, 1)
	srv.Handle(CommandRunMLEngine, func(args []json.RawMessage) (interface{}, error) {
		calls <- args
		return map[string]interface{}{"entries": []interface{}{}}, nil
	})

	_, err := c.RunMLEngine(context.Background(), "engine-1", nil, nil)
	require.NoError(t, err)
	got := <-calls
	require.Len(t, got, 2)
	assert.JSONEq(t, `"engine-1"`, string(got[0]))
	// Options are left out when empty.
	assert.JSONEq(t, `{"args":[]}`, string(got[1]))
}

func TestCreateMLEngineFailure(t *testing.T) {
	t.Parallel()

	c, srv := newTestClient(t)
	_, err := c.CreateMLEngine(context.Background(), EngineOptions{ModelID: "no-task"})
	var cerr *firefoxdp.CommandError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "taskName is required", cerr.Message)

	srv.Reply(CommandCreateMLEngine, `{"name":"success","result":{}}`)
	_, err = c.CreateMLEngine(context.Background(), SummarizationEngine)
	assert.ErrorContains(t, err, "no engineId")
}

func TestWithMLEngine(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	ctx := context.Background()

	var id string
	errFn := errors.New("inference failed")
	err := c.WithMLEngine(ctx, SummarizationEngine, func(e Engine) error {
		id = e.EngineID
		return errFn
	})
	assert.ErrorIs(t, err, errFn)
	require.NotEmpty(t, id)

	// The engine was destroyed even though fn failed.
	_, err = c.DestroyMLEngine(ctx, id, true)
	var cerr *firefoxdp.CommandError
	assert.ErrorAs(t, err, &cerr)

	// A failed destroy is reported along with fn's error.
	err = c.WithMLEngine(ctx, SummarizationEngine, func(e Engine) error {
		_, err := c.DestroyMLEngine(ctx, e.EngineID, true)
		return err
	})
	assert.ErrorAs(t, err, &cerr)
	assert.Equal(t, CommandDestroyMLEngine, cerr.Command)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	c, srv := newTestClient(t)
	summary, err := c.Summarize(context.Background(), "Money is a song by the English rock band Pink Floyd")
	require.NoError(t, err)
	assert.Equal(t, "Summary: Money is a song by", summary)

	srv.Handle(CommandRunMLEngine, func(args []json.RawMessage) (interface{}, error) {
		return map[string]interface{}{"entries": []interface{}{}}, nil
	})
	_, err = c.Summarize(context.Background(), "text")
	assert.ErrorContains(t, err, "no entries")
}
