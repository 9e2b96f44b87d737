package firefoxdp

import (
	_ "embed"
)

var (
	// runnerJS is a javascript function that runs in the chrome window. It
	// takes a JSON {command, args} request, dispatches it to the Firefox
	// internals behind the command, and resolves to a JSON envelope:
	// {name: "success", result} or {name: "error", error: {message}}.
	//go:embed js/runner.js
	runnerJS string
)
