// firefoxdp-proxy provides a cli utility that will proxy requests from a
// WebDriver BiDi client to a Firefox instance, logging every message.
//
// firefoxdp-proxy is particularly useful for recording the traffic of
// geckodriver, Puppeteer or firefoxdp itself, or for debugging remote
// Firefox instances started with --remote-debugging-port.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var listen string
	p := &proxy{}
	cmd := &cobra.Command{
		Use:           "firefoxdp-proxy",
		Short:         "Proxy and log WebDriver BiDi connections to Firefox",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			p.out = cmd.OutOrStdout()
			log := logrus.New()
			log.SetOutput(cmd.ErrOrStderr())
			log.Infof("proxying %s to %s", listen, p.remote)
			return http.ListenAndServe(listen, p.handler())
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&listen, "listen", "l", "localhost:9223", "listen address")
	flags.StringVarP(&p.remote, "remote", "r", "localhost:9222", "remote address")
	flags.BoolVarP(&p.noLog, "no-log", "n", false, "disable logging to file")
	flags.StringVar(&p.logMask, "log", "logs/bidi-%d.log", "log file mask, given the connection number")
	return cmd
}
