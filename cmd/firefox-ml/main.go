// firefox-ml runs Firefox's built-in machine learning and translation
// features from the command line: summarizing and translating articles,
// translating interactively, and extracting page text.
//
// It launches a local Firefox, or attaches to a running one with --remote.
// The browser needs -remote-allow-system-access, which firefox-ml sets when
// it launches Firefox itself.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(&rootOptions{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
