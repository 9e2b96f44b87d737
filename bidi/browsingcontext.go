package bidi

import (
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// Browsing context module commands and events.
const (
	CommandBrowsingContextClose    MethodType = "browsingContext.close"
	CommandBrowsingContextCreate   MethodType = "browsingContext.create"
	CommandBrowsingContextGetTree  MethodType = "browsingContext.getTree"
	CommandBrowsingContextNavigate MethodType = "browsingContext.navigate"

	EventBrowsingContextLoad             MethodType = "browsingContext.load"
	EventBrowsingContextDOMContentLoaded MethodType = "browsingContext.domContentLoaded"
)

// Scope selects which browsing contexts are reported by getTree. Firefox
// only reports chrome contexts when started with -remote-allow-system-access.
type Scope string

// Scopes.
const (
	ScopeContent Scope = "content"
	ScopeChrome  Scope = "chrome"
)

// ReadinessState is the wait condition of browsingContext.navigate.
type ReadinessState string

// Readiness states.
const (
	ReadinessNone        ReadinessState = "none"
	ReadinessInteractive ReadinessState = "interactive"
	ReadinessComplete    ReadinessState = "complete"
)

// GetTreeParams are the parameters of browsingContext.getTree.
type GetTreeParams struct {
	MaxDepth int64
	Root     string
	Scope    Scope
}

// GetTree returns the parameters of a browsingContext.getTree command.
// MaxDepth defaults to 0, so only top-level contexts are returned.
func GetTree() *GetTreeParams {
	return &GetTreeParams{}
}

// WithScope sets the moz:scope extension parameter.
func (p GetTreeParams) WithScope(scope Scope) *GetTreeParams {
	p.Scope = scope
	return &p
}

// WithRoot restricts the tree to the given context.
func (p GetTreeParams) WithRoot(root string) *GetTreeParams {
	p.Root = root
	return &p
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (p GetTreeParams) MarshalEasyJSON(out *jwriter.Writer) {
	o := beginObject(out)
	o.field("maxDepth").Int64(p.MaxDepth)
	if p.Root != "" {
		o.field("root").String(p.Root)
	}
	if p.Scope != "" && p.Scope != ScopeContent {
		o.field("moz:scope").String(string(p.Scope))
	}
	o.end()
}

// Info describes a browsing context.
type Info struct {
	Context  string
	URL      string
	Parent   string
	Children []*Info
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (i *Info) UnmarshalEasyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(key string) {
		switch key {
		case "context":
			i.Context = in.String()
		case "url":
			i.URL = in.String()
		case "parent":
			i.Parent = in.String()
		case "children":
			i.Children = decodeInfos(in)
		default:
			in.SkipRecursive()
		}
	})
}

func decodeInfos(in *jlexer.Lexer) []*Info {
	infos := []*Info{}
	decodeArray(in, func() {
		if in.IsNull() {
			in.Skip()
			return
		}
		info := new(Info)
		info.UnmarshalEasyJSON(in)
		infos = append(infos, info)
	})
	return infos
}

// GetTreeResult is the result of browsingContext.getTree.
type GetTreeResult struct {
	Contexts []*Info
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (r *GetTreeResult) UnmarshalEasyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(key string) {
		switch key {
		case "contexts":
			r.Contexts = decodeInfos(in)
		default:
			in.SkipRecursive()
		}
	})
}

// NavigateParams are the parameters of browsingContext.navigate.
type NavigateParams struct {
	Context string
	URL     string
	Wait    ReadinessState
}

// Navigate returns the parameters of a browsingContext.navigate command.
func Navigate(context, url string) *NavigateParams {
	return &NavigateParams{Context: context, URL: url}
}

// WithWait sets the readiness state the command waits for.
func (p NavigateParams) WithWait(wait ReadinessState) *NavigateParams {
	p.Wait = wait
	return &p
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (p NavigateParams) MarshalEasyJSON(out *jwriter.Writer) {
	o := beginObject(out)
	o.field("context").String(p.Context)
	o.field("url").String(p.URL)
	if p.Wait != "" {
		o.field("wait").String(string(p.Wait))
	}
	o.end()
}

// NavigateResult is the result of browsingContext.navigate.
type NavigateResult struct {
	Navigation string
	URL        string
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (r *NavigateResult) UnmarshalEasyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(key string) {
		switch key {
		case "navigation":
			r.Navigation = in.String()
		case "url":
			r.URL = in.String()
		default:
			in.SkipRecursive()
		}
	})
}

// EventNavigationInfo is the payload of the browsingContext.load and
// browsingContext.domContentLoaded events.
type EventNavigationInfo struct {
	Context    string
	Navigation string
	URL        string
	Timestamp  int64
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (e *EventNavigationInfo) UnmarshalEasyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(key string) {
		switch key {
		case "context":
			e.Context = in.String()
		case "navigation":
			e.Navigation = in.String()
		case "url":
			e.URL = in.String()
		case "timestamp":
			e.Timestamp = in.Int64()
		default:
			in.SkipRecursive()
		}
	})
}

// EventLoad is fired when a navigation's load event fires.
type EventLoad struct {
	EventNavigationInfo
}

// EventDOMContentLoaded is fired when a navigation's DOMContentLoaded event
// fires.
type EventDOMContentLoaded struct {
	EventNavigationInfo
}

// CreateType is the kind of top-level browsing context to create.
type CreateType string

// Create types.
const (
	CreateTypeTab    CreateType = "tab"
	CreateTypeWindow CreateType = "window"
)

// CreateParams are the parameters of browsingContext.create.
type CreateParams struct {
	Type       CreateType
	Background bool
}

// Create returns the parameters of a browsingContext.create command.
func Create(typ CreateType) *CreateParams {
	return &CreateParams{Type: typ}
}

// WithBackground opens the context without focusing it.
func (p CreateParams) WithBackground(background bool) *CreateParams {
	p.Background = background
	return &p
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (p CreateParams) MarshalEasyJSON(out *jwriter.Writer) {
	o := beginObject(out)
	o.field("type").String(string(p.Type))
	if p.Background {
		o.field("background").Bool(true)
	}
	o.end()
}

// CreateResult is the result of browsingContext.create.
type CreateResult struct {
	Context string
}

// UnmarshalEasyJSON satisfies easyjson.Unmarshaler.
func (r *CreateResult) UnmarshalEasyJSON(in *jlexer.Lexer) {
	decodeObject(in, func(key string) {
		switch key {
		case "context":
			r.Context = in.String()
		default:
			in.SkipRecursive()
		}
	})
}

// CloseParams are the parameters of browsingContext.close.
type CloseParams struct {
	Context string
}

// Close returns the parameters of a browsingContext.close command.
func Close(context string) *CloseParams {
	return &CloseParams{Context: context}
}

// MarshalEasyJSON satisfies easyjson.Marshaler.
func (p CloseParams) MarshalEasyJSON(out *jwriter.Writer) {
	o := beginObject(out)
	o.field("context").String(p.Context)
	o.end()
}
