package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefoxdp/firefoxdp/inference"
)

const (
	defaultSummarizeURL = "https://en.wikipedia.org/wiki/Money_(Pink_Floyd_song)"
	defaultTranslateURL = "https://gregtatum.com/writing/2021/encoding-text-utf-32-utf-16-unicode/"
)

func newSummarizeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize [url]",
		Short: "Summarize an article with the local summarization model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := defaultSummarizeURL
			if len(args) > 0 {
				url = args[0]
			}
			return o.withClient(cmd, func(ctx context.Context, c *inference.Client) error {
				text, err := c.ArticleText(ctx, url)
				if err != nil {
					return err
				}
				summary, err := c.Summarize(ctx, text)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Summarized text:", summary)
				return nil
			})
		},
	}
}

func newTranslateCmd(o *rootOptions) *cobra.Command {
	var pair inference.LanguagePair
	var limit int
	cmd := &cobra.Command{
		Use:   "translate [url]",
		Short: "Translate the beginning of an article",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := defaultTranslateURL
			if len(args) > 0 {
				url = args[0]
			}
			return o.withClient(cmd, func(ctx context.Context, c *inference.Client) error {
				text, err := c.ArticleText(ctx, url)
				if err != nil {
					return err
				}
				translated, err := c.Translate(ctx, pair, excerpt(text, limit))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Translated excerpt:", translated)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&pair.SourceLanguage, "from", "en", "language of the article")
	cmd.Flags().StringVar(&pair.TargetLanguage, "to", "es", "language to translate to")
	cmd.Flags().IntVar(&limit, "limit", 500, "translate at most this many characters, or all when not positive")
	return cmd
}

// excerpt returns the first n characters of s.
func excerpt(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
