package inference_test

import (
	"context"
	"fmt"
	"log"

	"github.com/firefoxdp/firefoxdp/inference"
)

func Example() {
	ctx := context.Background()
	cfg := inference.DefaultConfig()
	cfg.BinaryPath = "/usr/bin/firefox"

	c, err := inference.New(ctx, cfg, inference.WithLogger(inference.NewLogger(false)))
	if err != nil {
		log.Fatal(err)
	}
	defer c.Shutdown(ctx)

	article, err := c.ArticleText(ctx, "https://en.wikipedia.org/wiki/Firefox")
	if err != nil {
		log.Fatal(err)
	}
	summary, err := c.Summarize(ctx, article)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(summary)
}

func ExampleClient_WithTranslationsSession() {
	ctx := context.Background()
	c, err := inference.New(ctx, inference.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer c.Shutdown(ctx)

	pair := inference.LanguagePair{SourceLanguage: "en", TargetLanguage: "fr"}
	err = c.WithTranslationsSession(ctx, pair, func(s inference.TranslationsSession) error {
		for _, text := range []string{"Hello", "How are you?"} {
			res, err := c.RunTranslationsSession(ctx, s.SessionID, text, false)
			if err != nil {
				return err
			}
			fmt.Println(res.TargetText)
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}
}
