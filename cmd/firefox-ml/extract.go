package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/firefoxdp/firefoxdp/inference"
)

// newExtractCmds returns the commands that print the JSON result of a page
// extraction.
func newExtractCmds(o *rootOptions) []*cobra.Command {
	var pageTextOpts, pageInfoOpts, headlessOpts string
	var force bool

	pageText := &cobra.Command{
		Use:   "page-text <url>",
		Short: "Print the text and metadata of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseOptions(pageTextOpts)
			if err != nil {
				return err
			}
			return o.extract(cmd, func(ctx context.Context, c *inference.Client) (interface{}, error) {
				return c.GetPageText(ctx, args[0], opts)
			})
		},
	}
	pageText.Flags().StringVar(&pageTextOpts, "options", "", "PageExtractor options, as a JSON object")

	reader := &cobra.Command{
		Use:   "reader <url>",
		Short: "Print the reader mode article of a page, or an empty string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.extract(cmd, func(ctx context.Context, c *inference.Client) (interface{}, error) {
				return c.GetReaderModeContent(ctx, args[0], force)
			})
		},
	}
	reader.Flags().BoolVar(&force, "force", false, "parse the page even if it doesn't look readerable")

	pageInfo := &cobra.Command{
		Use:   "page-info <url>",
		Short: "Print the pagination metadata of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseOptions(pageInfoOpts)
			if err != nil {
				return err
			}
			return o.extract(cmd, func(ctx context.Context, c *inference.Client) (interface{}, error) {
				return c.GetPageInfo(ctx, args[0], opts)
			})
		},
	}
	pageInfo.Flags().StringVar(&pageInfoOpts, "options", "", "options, as a JSON object")

	selection := &cobra.Command{
		Use:   "selection <url>",
		Short: "Print the selected text of a page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.extract(cmd, func(ctx context.Context, c *inference.Client) (interface{}, error) {
				return c.GetSelectionText(ctx, args[0])
			})
		},
	}

	headless := &cobra.Command{
		Use:   "headless-text <url>",
		Short: "Print the text of a page loaded in a hidden browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseOptions(headlessOpts)
			if err != nil {
				return err
			}
			return o.extract(cmd, func(ctx context.Context, c *inference.Client) (interface{}, error) {
				return c.GetHeadlessPageText(ctx, args[0], opts)
			})
		},
	}
	headless.Flags().StringVar(&headlessOpts, "options", "", "PageExtractor options, as a JSON object")

	return []*cobra.Command{pageText, reader, pageInfo, selection, headless}
}

func parseOptions(s string) (map[string]interface{}, error) {
	if s == "" {
		return nil, nil
	}
	var opts map[string]interface{}
	if err := json.Unmarshal([]byte(s), &opts); err != nil {
		return nil, fmt.Errorf("invalid --options: %w", err)
	}
	return opts, nil
}

func (o *rootOptions) extract(cmd *cobra.Command, fn func(context.Context, *inference.Client) (interface{}, error)) error {
	return o.withClient(cmd, func(ctx context.Context, c *inference.Client) error {
		res, err := fn(ctx, c)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	})
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
