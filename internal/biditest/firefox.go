package biditest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// closedMarker is the file the server creates in the fake browser's
// directory once it answers browser.close.
const closedMarker = "closed"

// FakeFirefox writes a shell script to dir that behaves like Firefox's
// remote agent start up: it announces the server's BiDi address on stderr
// and keeps running until the server is asked to close the browser, or the
// script is killed. It records its arguments and the profile's user.js in
// dir.
func (s *Server) FakeFirefox(tb testing.TB, dir string) string {
	tb.Helper()
	if runtime.GOOS == "windows" {
		tb.Skip("the fake browser is a shell script")
	}
	wsURL := strings.TrimSuffix(s.URL(), "/session")
	script := fmt.Sprintf(`#!/bin/sh
echo "$@" > %[1]q/args
while [ $# -gt 0 ]; do
	if [ "$1" = "--profile" ]; then cp "$2/user.js" %[1]q/user.js; fi
	shift
done
echo "*** You are running in headless mode." >&2
echo "WebDriver BiDi listening on %[2]s" >&2
i=0
while [ ! -f %[3]q ] && [ $i -lt 1200 ]; do
	sleep 0.05
	i=$((i+1))
done
echo "Exiting due to channel error." >&2
`, dir, wsURL, filepath.Join(dir, closedMarker))
	path := filepath.Join(dir, "firefox")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		tb.Fatal(err)
	}
	s.mu.Lock()
	s.fakeDirs = append(s.fakeDirs, dir)
	s.mu.Unlock()
	return path
}

// closeFakeFirefox lets the fake browsers started from this server exit.
func (s *Server) closeFakeFirefox() {
	s.mu.Lock()
	dirs := s.fakeDirs
	s.mu.Unlock()
	for _, dir := range dirs {
		_ = os.WriteFile(filepath.Join(dir, closedMarker), nil, 0o644)
	}
}
