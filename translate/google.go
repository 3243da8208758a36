package translate

import (
	"context"
	"fmt"

	gt "github.com/Conight/go-googletrans"
)

// newGoogleCall builds a call against the free Google Translate web
// endpoint. No API key is needed, which also means the endpoint rate-limits
// aggressively; the retry engine handles that.
func newGoogleCall(prov Provider) callFunc {
	client := gt.New(gt.Config{
		Proxy: prov.Proxy,
	})

	return func(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
		type reply struct {
			text string
			err  error
		}
		done := make(chan reply, 1)

		// The client has no context support; run the call in a goroutine so
		// cancellation still unblocks the caller.
		go func() {
			result, err := client.Translate(text, sourceLang, targetLang)
			if err != nil {
				done <- reply{err: fmt.Errorf("google translate: %w", err)}
				return
			}
			done <- reply{text: result.Text}
		}()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case r := <-done:
			return r.text, r.err
		}
	}
}
