package inference

import (
	"context"
	"errors"
	"fmt"
)

// LanguagePair is a translation direction, as BCP-47 language tags.
type LanguagePair struct {
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

func (p LanguagePair) String() string {
	return p.SourceLanguage + " → " + p.TargetLanguage
}

// TranslationsSession is a handle to a translations engine for one
// LanguagePair.
type TranslationsSession struct {
	SessionID string `json:"sessionId"`
}

// Translation is the output of a translations session run.
type Translation struct {
	TargetText string `json:"targetText"`
}

// CreateTranslationsSession starts a translations engine for pair. It must be
// destroyed with DestroyTranslationsSession.
func (c *Client) CreateTranslationsSession(ctx context.Context, pair LanguagePair) (TranslationsSession, error) {
	var res TranslationsSession
	if err := c.InvokePrivileged(ctx, CommandCreateTranslationsSession, &res, map[string]interface{}{"languagePair": pair}); err != nil {
		return TranslationsSession{}, err
	}
	if res.SessionID == "" {
		return TranslationsSession{}, fmt.Errorf("%s: no sessionId in result", CommandCreateTranslationsSession)
	}
	c.log.Debugf("Created translations session %s for %s", res.SessionID, pair)
	return res, nil
}

// RunTranslationsSession translates text, which is markup when isHTML is
// set.
func (c *Client) RunTranslationsSession(ctx context.Context, sessionID, text string, isHTML bool) (*Translation, error) {
	var res Translation
	req := map[string]interface{}{"text": text, "isHTML": isHTML}
	if err := c.InvokePrivileged(ctx, CommandRunTranslationsSession, &res, sessionID, req); err != nil {
		return nil, err
	}
	return &res, nil
}

// DestroyTranslationsSession tears down a translations session. Unknown ids,
// including ones already destroyed, fail with a *firefoxdp.CommandError.
func (c *Client) DestroyTranslationsSession(ctx context.Context, sessionID string, discard bool) (map[string]interface{}, error) {
	var res map[string]interface{}
	opts := map[string]interface{}{"discardTranslations": discard}
	if err := c.InvokePrivileged(ctx, CommandDestroyTranslationsSession, &res, sessionID, opts); err != nil {
		return nil, err
	}
	return res, nil
}

// WithTranslationsSession creates a session for pair, calls fn with it, and
// destroys it whatever fn returns.
func (c *Client) WithTranslationsSession(ctx context.Context, pair LanguagePair, fn func(TranslationsSession) error) (err error) {
	session, err := c.CreateTranslationsSession(ctx, pair)
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), destroyTimeout)
		defer cancel()
		if _, derr := c.DestroyTranslationsSession(dctx, session.SessionID, true); derr != nil {
			err = errors.Join(err, derr)
		}
	}()
	return fn(session)
}

// Translate translates plain text with a session used only for it.
func (c *Client) Translate(ctx context.Context, pair LanguagePair, text string) (translated string, err error) {
	err = c.WithTranslationsSession(ctx, pair, func(s TranslationsSession) error {
		res, err := c.RunTranslationsSession(ctx, s.SessionID, text, false)
		if err != nil {
			return err
		}
		translated = res.TargetText
		return nil
	})
	return translated, err
}
