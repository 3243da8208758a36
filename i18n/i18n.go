// Package i18n provides internationalization support for metatrans itself.
//
// It wraps the gotext library to provide simple T() and N() functions for
// translating metatrans's user-facing strings. Translations are embedded in
// the binary via //go:embed and loaded at startup via Init().
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// locales embeds the translation files.
// Directory structure: locales/{lang}/LC_MESSAGES/metatrans.po
//
//go:embed all:locales
var locales embed.FS

// domain is the gettext domain name for metatrans.
const domain = "metatrans"

// po is the gotext locale object used for translations.
var po *gotext.Locale

// Init initializes the i18n system. If lang is empty, it auto-detects from
// the environment variables LANGUAGE, LC_ALL, LC_MESSAGES, LANG (in that
// order, matching GNU gettext behavior).
//
// Init should be called once at program startup, before any T() or N() calls.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}

	po = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// T translates a string. If no translation is available, returns the
// original string unchanged (standard gettext passthrough behavior).
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N translates a string with plural forms.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// detectLanguage reads environment variables to determine the user's
// preferred language, following GNU gettext conventions.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		// LANGUAGE can be a colon-separated list; take the first.
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		// Strip encoding suffix (e.g. "pl_PL.UTF-8" -> "pl_PL").
		if idx := strings.IndexByte(val, '.'); idx >= 0 {
			val = val[:idx]
		}
		// "C" and "POSIX" mean no translation.
		if val == "C" || val == "POSIX" || val == "" {
			continue
		}
		return val
	}
	return "en"
}
