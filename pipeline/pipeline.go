// Package pipeline drives a translation run over a parsed CSV export:
// a count pass sizing the progress display, then a translate pass that
// fills in the Translated content column row by row in input order.
//
// The pipeline is single-threaded and keeps the whole file in memory; the
// caller writes the output only after the run finishes, so there is no
// partial output to clean up after a failure.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/metatrans/metatrans/config"
	"github.com/metatrans/metatrans/csvfile"
	"github.com/metatrans/metatrans/memory"
	"github.com/metatrans/metatrans/progress"
	"github.com/metatrans/metatrans/richtext"
)

// TranslateFunc translates one unit of text. It returns the output text and
// whether the translation actually succeeded; on failure the original text
// comes back so the run never loses data.
type TranslateFunc func(ctx context.Context, text string) (string, bool)

// Options configures a run.
type Options struct {
	// Classify holds the row classification rules.
	Classify config.Classify
	// Translate is the unit translator.
	Translate TranslateFunc
	// Memory is an optional translation memory consulted before Translate.
	Memory *memory.Store
	// SourceLang and TargetLang key the translation memory.
	SourceLang string
	TargetLang string
	// Tracker receives progress updates. Optional.
	Tracker *progress.Tracker
	// OnWarn emits warnings (e.g. malformed JSON cells). Optional.
	OnWarn func(format string, args ...any)
}

func (o *Options) warn(format string, args ...any) {
	if o.OnWarn != nil {
		o.OnWarn(format, args...)
	}
}

// Result summarizes a finished run.
type Result struct {
	// Rows is the number of data rows processed.
	Rows int
	// Units is the total translatable unit count from the count pass.
	Units int
	// Translated counts units the provider translated successfully.
	Translated int
	// MemoryHits counts units served from the translation memory.
	MemoryHits int
	// Failed counts units that kept their original text.
	Failed int
}

// ---------------------------------------------------------------------------
// Count pass
// ---------------------------------------------------------------------------

// Count returns the total number of translatable units in the file: one per
// plain-text cell, one per non-blank "value" leaf in a rich-text cell, and
// one per rich-text cell whose content is not valid JSON (it falls back to
// plain text).
func Count(f *csvfile.File, cls config.Classify) int {
	total := 0
	for _, row := range f.Rows {
		total += countRow(row, cls)
	}
	return total
}

func countRow(row csvfile.Row, cls config.Classify) int {
	typ, field, content := classifyFields(row)
	if typ != cls.Type || content == "" {
		return 0
	}

	switch {
	case cls.IsPlain(field):
		return 1
	case cls.IsRich(field):
		tree, err := richtext.Decode(content)
		if err != nil {
			return 1
		}
		return richtext.CountValues(tree)
	}
	return 0
}

// classifyFields extracts the trimmed classification columns from a row.
func classifyFields(row csvfile.Row) (typ, field, content string) {
	typ = strings.TrimSpace(row[csvfile.ColType])
	field = strings.TrimSpace(row[csvfile.ColField])
	content = strings.TrimSpace(row[csvfile.ColDefaultContent])
	return
}

// ---------------------------------------------------------------------------
// Translate pass
// ---------------------------------------------------------------------------

// Run fills in the Translated content column for every row and ensures the
// column exists in the header. Rows that do not match the classification
// rules get an empty translated cell and pass through otherwise unchanged.
func Run(ctx context.Context, f *csvfile.File, opts Options) (*Result, error) {
	if opts.Translate == nil {
		return nil, fmt.Errorf("no translate function configured")
	}

	res := &Result{
		Rows:  len(f.Rows),
		Units: Count(f, opts.Classify),
	}

	translateUnit := func(text string) string {
		if strings.TrimSpace(text) == "" {
			return text
		}
		if ctx.Err() != nil {
			return text
		}

		if opts.Tracker != nil {
			opts.Tracker.Start(text)
		}

		if opts.Memory != nil {
			cached, ok, err := opts.Memory.Lookup(ctx, text, opts.SourceLang, opts.TargetLang)
			if err != nil {
				opts.warn("translation memory lookup failed: %v", err)
			} else if ok {
				res.MemoryHits++
				if opts.Tracker != nil {
					opts.Tracker.Done()
				}
				return cached
			}
		}

		out, ok := opts.Translate(ctx, text)
		if opts.Tracker != nil {
			opts.Tracker.Done()
		}
		if ok {
			res.Translated++
			if opts.Memory != nil {
				if err := opts.Memory.Save(ctx, text, opts.SourceLang, opts.TargetLang, out); err != nil {
					opts.warn("translation memory save failed: %v", err)
				}
			}
		} else {
			res.Failed++
		}
		return out
	}

	for _, row := range f.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		translated := ""
		typ, field, content := classifyFields(row)

		if typ == opts.Classify.Type && content != "" {
			switch {
			case opts.Classify.IsPlain(field):
				translated = translateUnit(content)

			case opts.Classify.IsRich(field):
				tree, err := richtext.Decode(content)
				if err != nil {
					opts.warn("field %q contains invalid JSON, translating as plain text", field)
					translated = translateUnit(content)
					break
				}
				out := richtext.TransformValues(tree, translateUnit)
				translated, err = richtext.Encode(out)
				if err != nil {
					return nil, fmt.Errorf("re-encoding rich text for field %q: %w", field, err)
				}
			}
		}

		row[csvfile.ColTranslatedContent] = translated
	}

	f.EnsureColumn(csvfile.ColTranslatedContent)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
