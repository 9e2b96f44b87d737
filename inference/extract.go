package inference

import (
	"context"
	"errors"
)

// ErrNoText is returned by ArticleText when a page has no text at all.
var ErrNoText = errors.New("unable to find page text")

// PageText is the text of a page, as extracted by Firefox's PageExtractor.
type PageText struct {
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
}

// options returns opts, or an empty map for the browser side to fill with
// its defaults.
func options(opts map[string]interface{}) map[string]interface{} {
	if opts == nil {
		return map[string]interface{}{}
	}
	return opts
}

// extract loads url, then runs a page-scoped command against it.
func (c *Client) extract(ctx context.Context, url, command string, res interface{}, args ...interface{}) error {
	return c.run(ctx,
		c.navigate(url),
		c.privileged(command, res, args...),
	)
}

// GetPageText loads url and returns its text and metadata.
func (c *Client) GetPageText(ctx context.Context, url string, opts map[string]interface{}) (*PageText, error) {
	var res PageText
	if err := c.extract(ctx, url, CommandGetPageText, &res, options(opts)); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetReaderModeContent loads url and returns its reader mode article. Unless
// force is set, pages which Firefox doesn't consider readerable give an
// empty string.
func (c *Client) GetReaderModeContent(ctx context.Context, url string, force bool) (string, error) {
	var res *string
	if err := c.extract(ctx, url, CommandGetReaderModeContent, &res, force); err != nil {
		return "", err
	}
	if res == nil {
		return "", nil
	}
	return *res, nil
}

// GetPageInfo loads url and returns its pagination metadata, which is nil for
// pages that have none.
func (c *Client) GetPageInfo(ctx context.Context, url string, opts map[string]interface{}) (map[string]interface{}, error) {
	var res map[string]interface{}
	if err := c.extract(ctx, url, CommandGetPageInfo, &res, options(opts)); err != nil {
		return nil, err
	}
	return res, nil
}

// GetSelectionText loads url and returns the text selected in it.
func (c *Client) GetSelectionText(ctx context.Context, url string) (string, error) {
	var res *string
	if err := c.extract(ctx, url, CommandGetSelectionText, &res); err != nil {
		return "", err
	}
	if res == nil {
		return "", nil
	}
	return *res, nil
}

// GetHeadlessPageText extracts the text of url from a hidden browser, leaving
// the tab untouched.
func (c *Client) GetHeadlessPageText(ctx context.Context, url string, opts map[string]interface{}) (*PageText, error) {
	var res PageText
	if err := c.InvokePrivileged(ctx, CommandGetHeadlessPageText, &res, url, options(opts)); err != nil {
		return nil, err
	}
	return &res, nil
}

// ArticleText returns the reader mode article of url, falling back to the
// whole page text for pages that are not readerable.
func (c *Client) ArticleText(ctx context.Context, url string) (string, error) {
	text, err := c.GetReaderModeContent(ctx, url, false)
	if err != nil {
		return "", err
	}
	if text != "" {
		return text, nil
	}
	c.log.Debugf("%s is not readerable, using the page text", url)
	page, err := c.GetPageText(ctx, url, nil)
	if err != nil {
		return "", err
	}
	if page.Text == "" {
		return "", ErrNoText
	}
	return page.Text, nil
}
