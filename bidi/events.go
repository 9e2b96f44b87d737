package bidi

import (
	"fmt"

	"github.com/mailru/easyjson"
)

// ErrUnknownEvent is returned by UnmarshalEvent for events without a
// registered type.
type ErrUnknownEvent MethodType

// Error satisfies the error interface.
func (e ErrUnknownEvent) Error() string {
	return fmt.Sprintf("unknown event %q", string(e))
}

// UnmarshalEvent decodes the params of an event message into its typed
// value.
func UnmarshalEvent(msg *Message) (interface{}, error) {
	var v easyjson.Unmarshaler
	switch msg.Method {
	case EventLogEntryAdded:
		v = new(EventEntryAdded)
	case EventBrowsingContextLoad:
		v = new(EventLoad)
	case EventBrowsingContextDOMContentLoaded:
		v = new(EventDOMContentLoaded)
	default:
		return nil, ErrUnknownEvent(msg.Method)
	}
	if err := easyjson.Unmarshal(msg.Params, v); err != nil {
		return nil, err
	}
	return v, nil
}
