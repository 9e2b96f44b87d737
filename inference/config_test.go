package inference

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "firefox-ml.yaml", `
headless: false
binary_path: /opt/firefox-nightly/firefox
verbose_logging: true
ready_timeout: 45s
prefs:
  browser.ml.logLevel: Error
  browser.translations.enable: true
  dom.ipc.processCount: 4
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Headless:       false,
		BinaryPath:     "/opt/firefox-nightly/firefox",
		VerboseLogging: true,
		ReadyTimeout:   45 * time.Second,
		Prefs: map[string]interface{}{
			"browser.ml.logLevel":         "Error",
			"browser.translations.enable": true,
			"dom.ipc.processCount":        4,
		},
	}, cfg)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeFile(t, "empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = LoadConfig(writeFile(t, "remote.yaml", "remote_url: ws://127.0.0.1:9222/session\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Headless)
	assert.Equal(t, "ws://127.0.0.1:9222/session", cfg.RemoteURL)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "headles: true\n", "field headles not found"},
		{"nested pref", "prefs:\n  browser.ml:\n    enable: true\n", `pref "browser.ml"`},
		{"negative timeout", "ready_timeout: -1s\n", "negative ready_timeout"},
		{"bad yaml", "headless: [\n", "parsing"},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadConfig(writeFile(t, "config.yaml", test.content))
			assert.ErrorContains(t, err, test.wantErr)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	l := NewLogger(false)
	assert.Equal(t, "firefox-ml", l.Data["component"])
	assert.Equal(t, logrus.InfoLevel, l.Logger.GetLevel())
	assert.Equal(t, logrus.DebugLevel, NewLogger(true).Logger.GetLevel())
}

func TestOutputWriter(t *testing.T) {
	t.Parallel()

	logger, hook := logtest.NewNullLogger()
	w := outputWriter(logger)
	_, err := w.Write([]byte("console.log: hello\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// The logrus pipe is read asynchronously.
	require.Eventually(t, func() bool { return len(hook.AllEntries()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "console.log: hello", hook.LastEntry().Message)
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

// printfLogger records Infof lines.
type printfLogger struct {
	lines []string
}

func (l *printfLogger) Infof(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}
func (l *printfLogger) Debugf(string, ...interface{}) {}
func (l *printfLogger) Errorf(string, ...interface{}) {}

func TestLineWriter(t *testing.T) {
	t.Parallel()

	l := &printfLogger{}
	w := outputWriter(l)
	_, _ = w.Write([]byte("first line\nsecond "))
	_, _ = w.Write([]byte("line\ntrailing"))
	assert.Equal(t, []string{"first line", "second line"}, l.lines)
	require.NoError(t, w.Close())
	assert.Equal(t, []string{"first line", "second line", "trailing"}, l.lines)
}
