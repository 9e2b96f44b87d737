package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/firefoxdp/firefoxdp/inference"
)

// shutdownTimeout bounds the graceful close of the browser once a command
// is done.
const shutdownTimeout = 10 * time.Second

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	headless bool
	firefox  string
	verbose  bool
	config   string
	remote   string
	prefs    []string
	metrics  string
}

func newRootCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "firefox-ml",
		Short: "Run Firefox's machine learning and translation features",
		Long: `firefox-ml drives Firefox over WebDriver BiDi to run its local
machine learning engines and translations.

Examples:
  firefox-ml summarize https://en.wikipedia.org/wiki/Money_(Pink_Floyd_song)
  firefox-ml translate --to fr https://example.com/article
  firefox-ml interactive --from en --to de
  firefox-ml reader --force https://example.com/
  firefox-ml --firefox /opt/nightly/firefox --pref browser.ml.logLevel=Error page-text https://example.com/`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.BoolVar(&o.headless, "headless", true, "run Firefox without a window")
	flags.StringVar(&o.firefox, "firefox", "", "path to the Firefox binary")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log browser output and protocol traffic")
	flags.StringVar(&o.config, "config", "", "YAML configuration file")
	flags.StringVar(&o.remote, "remote", "", "attach to a running browser's BiDi endpoint, such as ws://127.0.0.1:9222/session")
	flags.StringArrayVar(&o.prefs, "pref", nil, "set a Firefox pref, as name=value (repeatable)")
	flags.StringVar(&o.metrics, "metrics-file", "", "write command metrics to this file on exit, in the Prometheus text format")

	cmd.AddCommand(
		newSummarizeCmd(o),
		newTranslateCmd(o),
		newInteractiveCmd(o),
	)
	cmd.AddCommand(newExtractCmds(o)...)
	return cmd
}

// configFor builds the session configuration from the config file and the
// flags explicitly set on cmd, which take precedence.
func (o *rootOptions) configFor(cmd *cobra.Command) (inference.Config, error) {
	cfg := inference.DefaultConfig()
	if o.config != "" {
		var err error
		if cfg, err = inference.LoadConfig(o.config); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Headless = o.headless
	}
	if flags.Changed("firefox") {
		cfg.BinaryPath = o.firefox
	}
	if flags.Changed("verbose") {
		cfg.VerboseLogging = o.verbose
	}
	if flags.Changed("remote") {
		cfg.RemoteURL = o.remote
	}
	if len(o.prefs) > 0 && cfg.Prefs == nil {
		cfg.Prefs = make(map[string]interface{}, len(o.prefs))
	}
	for _, p := range o.prefs {
		name, value, err := parsePref(p)
		if err != nil {
			return cfg, err
		}
		cfg.Prefs[name] = value
	}
	return cfg, cfg.Validate()
}

// parsePref parses a name=value pref. The value is a YAML scalar, so that
// true, 3 and "3" have their usual types.
func parsePref(s string) (string, interface{}, error) {
	name, raw, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid pref %q, want name=value", s)
	}
	var value interface{}
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return "", nil, fmt.Errorf("invalid pref %q: %w", s, err)
	}
	switch value.(type) {
	case nil:
		// An empty value is an empty string.
		value = raw
	case string, bool, int, float64:
	default:
		value = raw
	}
	return name, value, nil
}

// withClient starts a browser session, runs fn with it, and shuts the
// browser down.
func (o *rootOptions) withClient(cmd *cobra.Command, fn func(context.Context, *inference.Client) error) (err error) {
	cfg, err := o.configFor(cmd)
	if err != nil {
		return err
	}
	log := inference.NewLogger(cfg.VerboseLogging)
	log.Logger.SetOutput(cmd.ErrOrStderr())
	log.Logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	opts := []inference.Option{inference.WithLogger(log)}
	var reg *prometheus.Registry
	if o.metrics != "" {
		reg = prometheus.NewRegistry()
		opts = append(opts, inference.WithMetrics(reg))
	}

	ctx := cmd.Context()
	c, err := inference.New(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if serr := c.Shutdown(sctx); err == nil {
			err = serr
		}
		if reg == nil {
			return
		}
		if werr := prometheus.WriteToTextfile(o.metrics, reg); err == nil {
			err = werr
		}
	}()
	return fn(ctx, c)
}
