package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firefoxdp/firefoxdp/inference"
)

func newInteractiveCmd(o *rootOptions) *cobra.Command {
	var pair inference.LanguagePair
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Translate lines typed on standard input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withClient(cmd, func(ctx context.Context, c *inference.Client) error {
				return c.WithTranslationsSession(ctx, pair, func(s inference.TranslationsSession) error {
					return translateLines(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), pair, func(text string) (string, error) {
						res, err := c.RunTranslationsSession(ctx, s.SessionID, text, false)
						if err != nil {
							return "", err
						}
						return res.TargetText, nil
					})
				})
			})
		},
	}
	cmd.Flags().StringVar(&pair.SourceLanguage, "from", "en", "BCP-47 language tag of the input text")
	cmd.Flags().StringVar(&pair.TargetLanguage, "to", "es", "BCP-47 language tag of the translations")
	return cmd
}

// translateLines is the read-translate-print loop. A blank line, EOF, exit
// or quit stops it; a failed translation is reported and the loop goes on.
func translateLines(ctx context.Context, in io.Reader, out io.Writer, pair inference.LanguagePair, translate func(string) (string, error)) error {
	fmt.Fprintf(out, "Type text to translate (blank line, EOF, or 'exit'/'quit' to stop).\nTranslating %s.\n", pair)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		text := strings.TrimSpace(sc.Text())
		switch strings.ToLower(text) {
		case "", "exit", "quit":
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		translated, err := translate(text)
		switch {
		case err != nil:
			fmt.Fprintf(out, "[error] %v\n", err)
		case translated == "":
			fmt.Fprintln(out, "<no translation>")
		default:
			fmt.Fprintln(out, translated)
		}
	}
}
