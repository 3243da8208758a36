// Package translate implements the translation engine: provider
// configuration, a per-unit retry state machine with exponential backoff,
// and transient-failure classification for rate limits and timeouts.
//
// Failures never surface to the caller as errors. A unit that cannot be
// translated after the retry budget keeps its original text, so a run can
// always finish without data loss.
package translate

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	// ProviderGoogle uses the free Google Translate web endpoint.
	ProviderGoogle = "google"
	// ProviderOpenAI uses an OpenAI-compatible chat completion endpoint.
	ProviderOpenAI = "openai"
)

// Provider holds the configuration for a translation service.
type Provider struct {
	// ID is the provider identifier (google, openai).
	ID string
	// Name is the display name.
	Name string
	// BaseURL overrides the API base URL (openai only).
	BaseURL string
	// APIKey is the authentication key (empty for google).
	APIKey string
	// Model is the model identifier (openai only).
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the per-request timeout.
	Timeout time.Duration
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderGoogle: {
			ID:      ProviderGoogle,
			Name:    "Google Translate",
			Timeout: 30 * time.Second,
		},
		ProviderOpenAI: {
			ID:      ProviderOpenAI,
			Name:    "OpenAI",
			Model:   defaultOpenAIModel,
			Timeout: 60 * time.Second,
		},
	}
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls the translation behavior.
type Options struct {
	// Provider is the translation service configuration.
	Provider Provider
	// SourceLang is the source language code (e.g. "pl").
	SourceLang string
	// TargetLang is the target language code (e.g. "cs").
	TargetLang string
	// MaxRetries is the attempt budget per unit. Default: 5.
	MaxRetries int
	// RequestDelay is the base pre-attempt delay used to spread out
	// requests. Default: 300ms, growing with the attempt index.
	RequestDelay time.Duration
	// OnLog emits informational messages during translation.
	OnLog func(format string, args ...any)
	// OnError emits warning and error messages during translation.
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveMaxRetries() int {
	if o.MaxRetries > 0 {
		return o.MaxRetries
	}
	return 5
}

func (o *Options) effectiveRequestDelay() time.Duration {
	if o.RequestDelay > 0 {
		return o.RequestDelay
	}
	return 300 * time.Millisecond
}

// ---------------------------------------------------------------------------
// Outcome classification
// ---------------------------------------------------------------------------

// outcome classifies a failed attempt.
type outcome int

const (
	// outcomeTransient means a rate limit or timeout; wait longer and retry.
	outcomeTransient outcome = iota
	// outcomePermanent means any other failure; retry with plain backoff.
	outcomePermanent
)

// transientMarkers are substrings that identify rate-limit and timeout
// failures in provider error messages.
var transientMarkers = []string{
	"too many requests",
	"429",
	"timeout",
	"timed out",
}

func classify(err error) outcome {
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return outcomeTransient
		}
	}
	return outcomePermanent
}

// transientBackoff returns the wait before retrying a rate-limited attempt:
// 5*2^attempt seconds, capped at 60s.
func transientBackoff(attempt int) time.Duration {
	wait := 5 * time.Duration(1<<attempt) * time.Second
	if wait > 60*time.Second {
		wait = 60 * time.Second
	}
	return wait
}

// permanentBackoff returns the wait before retrying after a generic
// failure: 2^attempt seconds.
func permanentBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// ---------------------------------------------------------------------------
// Translator
// ---------------------------------------------------------------------------

// callFunc performs one provider API call.
type callFunc func(ctx context.Context, text, sourceLang, targetLang string) (string, error)

// Translator translates single units of text with retry.
type Translator struct {
	opts Options
	call callFunc

	// sleep and jitter are injectable for tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// New builds a translator for the configured provider.
func New(opts Options) (*Translator, error) {
	var call callFunc
	switch opts.Provider.ID {
	case ProviderGoogle:
		call = newGoogleCall(opts.Provider)
	case ProviderOpenAI:
		c, err := newOpenAICall(opts.Provider)
		if err != nil {
			return nil, err
		}
		call = c
	default:
		return nil, fmt.Errorf("unknown provider %q", opts.Provider.ID)
	}

	return &Translator{
		opts:   opts,
		call:   call,
		sleep:  sleepContext,
		jitter: randomJitter,
	}, nil
}

// Translate translates one unit of text. It returns the translated text and
// true on success, or the original text and false when the text is blank,
// the context is cancelled, or the retry budget is exhausted.
func (t *Translator) Translate(ctx context.Context, text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return text, false
	}

	maxRetries := t.opts.effectiveMaxRetries()
	base := t.opts.effectiveRequestDelay()

	for attempt := 0; attempt < maxRetries; attempt++ {
		// Spread requests out: base delay growing with the attempt index,
		// plus random jitter, to stay under provider rate limits.
		delay := base + time.Duration(attempt)*base + t.jitter()
		if err := t.sleep(ctx, delay); err != nil {
			return text, false
		}

		result, err := t.call(ctx, text, t.opts.SourceLang, t.opts.TargetLang)
		if err == nil {
			return result, true
		}
		if ctx.Err() != nil {
			return text, false
		}

		switch classify(err) {
		case outcomeTransient:
			wait := transientBackoff(attempt)
			t.opts.logError("rate limit/timeout on attempt %d/%d, waiting %s...", attempt+1, maxRetries, wait)
			if serr := t.sleep(ctx, wait); serr != nil {
				return text, false
			}

		default:
			if attempt == 0 {
				t.opts.logError("translation error for %q: %v", truncate(text, 30), err)
			}
			if attempt < maxRetries-1 {
				wait := permanentBackoff(attempt)
				t.opts.log("retrying in %s...", wait)
				if serr := t.sleep(ctx, wait); serr != nil {
					return text, false
				}
			} else {
				t.opts.logError("failed to translate after %d attempts, keeping original: %q", maxRetries, truncate(text, 30))
				return text, false
			}
		}
	}

	// Rate limiting ate the whole budget; keep the original.
	t.opts.logError("failed to translate after %d attempts, keeping original: %q", maxRetries, truncate(text, 30))
	return text, false
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// sleepContext waits for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// randomJitter returns up to 200ms of random delay.
func randomJitter() time.Duration {
	return time.Duration(rand.Int63n(int64(200 * time.Millisecond)))
}

// truncate shortens s to limit runes for log messages.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
