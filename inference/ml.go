package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// destroyTimeout bounds the clean up of scoped handles, which runs even when
// the caller's context is done.
const destroyTimeout = 10 * time.Second

// EngineOptions configure an ML engine. Extra holds any other option of
// Firefox's createEngine, such as "backend" or "dtype".
type EngineOptions struct {
	TaskName      string
	ModelID       string
	ModelRevision string
	Extra         map[string]interface{}
}

// MarshalJSON encodes o as a single object, with Extra's fields alongside the
// named ones.
func (o EngineOptions) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(o.Extra)+3)
	for k, v := range o.Extra {
		m[k] = v
	}
	if o.TaskName != "" {
		m["taskName"] = o.TaskName
	}
	if o.ModelID != "" {
		m["modelId"] = o.ModelID
	}
	if o.ModelRevision != "" {
		m["modelRevision"] = o.ModelRevision
	}
	return json.Marshal(m)
}

// SummarizationEngine is the engine used by Summarize.
var SummarizationEngine = EngineOptions{
	TaskName:      "summarization",
	ModelID:       "mozilla/text_summarization",
	ModelRevision: "main",
}

// Engine is a handle to an ML engine running in the browser.
type Engine struct {
	EngineID string `json:"engineId"`
}

// Inference is the output of an engine run. The fields of each entry depend
// on the task, such as "summary_text" for summarization.
type Inference struct {
	Entries []map[string]interface{} `json:"entries"`
}

// CreateMLEngine creates an ML engine. It must be destroyed with
// DestroyMLEngine.
func (c *Client) CreateMLEngine(ctx context.Context, opts EngineOptions) (Engine, error) {
	var res Engine
	if err := c.InvokePrivileged(ctx, CommandCreateMLEngine, &res, opts); err != nil {
		return Engine{}, err
	}
	if res.EngineID == "" {
		return Engine{}, fmt.Errorf("%s: no engineId in result", CommandCreateMLEngine)
	}
	c.log.Debugf("Created engine %s for %s", res.EngineID, opts.TaskName)
	return res, nil
}

// RunMLEngine runs inference on args with an existing engine. opts are the
// inference options, like "max_new_tokens", and may be nil.
func (c *Client) RunMLEngine(ctx context.Context, engineID string, args []interface{}, opts map[string]interface{}) (*Inference, error) {
	if args == nil {
		args = []interface{}{}
	}
	req := map[string]interface{}{"args": args}
	if len(opts) > 0 {
		req["options"] = opts
	}
	var res Inference
	if err := c.InvokePrivileged(ctx, CommandRunMLEngine, &res, engineID, req); err != nil {
		return nil, err
	}
	return &res, nil
}

// DestroyMLEngine terminates an engine, and with shutdown, the inference
// process behind it. Unknown ids, including ones already destroyed, fail
// with a *firefoxdp.CommandError.
func (c *Client) DestroyMLEngine(ctx context.Context, engineID string, shutdown bool) (map[string]interface{}, error) {
	var res map[string]interface{}
	if err := c.InvokePrivileged(ctx, CommandDestroyMLEngine, &res, engineID, map[string]interface{}{"shutdown": shutdown}); err != nil {
		return nil, err
	}
	return res, nil
}

// WithMLEngine creates an engine, calls fn with it, and destroys it whatever
// fn returns.
func (c *Client) WithMLEngine(ctx context.Context, opts EngineOptions, fn func(Engine) error) (err error) {
	engine, err := c.CreateMLEngine(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), destroyTimeout)
		defer cancel()
		if _, derr := c.DestroyMLEngine(dctx, engine.EngineID, true); derr != nil {
			err = errors.Join(err, derr)
		}
	}()
	return fn(engine)
}

// Summarize summarizes text with SummarizationEngine.
func (c *Client) Summarize(ctx context.Context, text string) (summary string, err error) {
	err = c.WithMLEngine(ctx, SummarizationEngine, func(e Engine) error {
		res, err := c.RunMLEngine(ctx, e.EngineID, []interface{}{text}, map[string]interface{}{"max_new_tokens": 1000})
		if err != nil {
			return err
		}
		if len(res.Entries) == 0 {
			return fmt.Errorf("%s: no entries in result", CommandRunMLEngine)
		}
		s, ok := res.Entries[0]["summary_text"].(string)
		if !ok {
			return fmt.Errorf("%s: no summary_text in %v", CommandRunMLEngine, res.Entries[0])
		}
		summary = s
		return nil
	})
	return summary, err
}
