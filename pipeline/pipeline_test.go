package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/metatrans/metatrans/config"
	"github.com/metatrans/metatrans/csvfile"
	"github.com/metatrans/metatrans/memory"
	"github.com/metatrans/metatrans/progress"
)

func defaultClassify() config.Classify {
	return config.Default().Classify
}

func newFile(rows ...csvfile.Row) *csvfile.File {
	return &csvfile.File{
		Header: []string{csvfile.ColType, csvfile.ColField, csvfile.ColDefaultContent},
		Rows:   rows,
	}
}

func row(typ, field, content string) csvfile.Row {
	return csvfile.Row{
		csvfile.ColType:           typ,
		csvfile.ColField:          field,
		csvfile.ColDefaultContent: content,
	}
}

// prefixTranslate fakes a provider by prefixing the text.
func prefixTranslate(calls *[]string) TranslateFunc {
	return func(ctx context.Context, text string) (string, bool) {
		if calls != nil {
			*calls = append(*calls, text)
		}
		return "T:" + text, true
	}
}

// ---------------------------------------------------------------------------
// Count
// ---------------------------------------------------------------------------

func TestCount(t *testing.T) {
	f := newFile(
		row("METAOBJECT", "thumbnail_title", "Witaj"),
		row("METAOBJECT", "description", `{"value":"a","nested":[{"value":"b"},{"value":""}]}`),
		row("METAOBJECT", "tekst", `{bad json`),
		row("METAOBJECT", "unknown_field", "skip"),
		row("OTHER", "thumbnail_title", "skip"),
		row("METAOBJECT", "thumbnail_title", "   "),
	)

	// 1 plain + 2 non-blank values + 1 malformed-JSON fallback.
	if got := Count(f, defaultClassify()); got != 4 {
		t.Errorf("Count = %d, want 4", got)
	}
}

// ---------------------------------------------------------------------------
// Run scenarios
// ---------------------------------------------------------------------------

func TestRun_PlainText(t *testing.T) {
	f := newFile(row("METAOBJECT", "thumbnail_title", "Witaj"))

	res, err := Run(context.Background(), f, Options{
		Classify:  defaultClassify(),
		Translate: prefixTranslate(nil),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := f.Rows[0][csvfile.ColTranslatedContent]; got != "T:Witaj" {
		t.Errorf("translated content = %q, want T:Witaj", got)
	}
	if res.Translated != 1 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if f.Header[len(f.Header)-1] != csvfile.ColTranslatedContent {
		t.Errorf("output column missing from header: %v", f.Header)
	}
}

func TestRun_RichTextPreservesStructure(t *testing.T) {
	f := newFile(row("METAOBJECT", "description", `{"value":"Cześć","id":1}`))

	_, err := Run(context.Background(), f, Options{
		Classify:  defaultClassify(),
		Translate: prefixTranslate(nil),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := `{"value":"T:Cześć","id":1}`
	if got := f.Rows[0][csvfile.ColTranslatedContent]; got != want {
		t.Errorf("translated content = %q, want %q", got, want)
	}
}

func TestRun_MalformedJSONFallsBackToPlain(t *testing.T) {
	f := newFile(row("METAOBJECT", "description", `{bad json`))

	var warnings []string
	_, err := Run(context.Background(), f, Options{
		Classify:  defaultClassify(),
		Translate: prefixTranslate(nil),
		OnWarn: func(format string, args ...any) {
			warnings = append(warnings, format)
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := f.Rows[0][csvfile.ColTranslatedContent]; got != "T:{bad json" {
		t.Errorf("translated content = %q, want plain-text fallback", got)
	}
	if len(warnings) != 1 {
		t.Errorf("got %d warnings, want 1", len(warnings))
	}
}

func TestRun_NonMatchingRowsGetEmptyOutput(t *testing.T) {
	f := newFile(
		row("OTHER", "thumbnail_title", "anything"),
		row("METAOBJECT", "unknown_field", "anything"),
		row("METAOBJECT", "thumbnail_title", ""),
	)

	calls := []string{}
	res, err := Run(context.Background(), f, Options{
		Classify:  defaultClassify(),
		Translate: prefixTranslate(&calls),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i, r := range f.Rows {
		if got := r[csvfile.ColTranslatedContent]; got != "" {
			t.Errorf("row %d translated content = %q, want empty", i, got)
		}
	}
	if len(calls) != 0 {
		t.Errorf("translator called %d times, want 0", len(calls))
	}
	if res.Rows != 3 {
		t.Errorf("Rows = %d, want 3", res.Rows)
	}
}

func TestRun_RowCountPreserved(t *testing.T) {
	f := newFile(
		row("METAOBJECT", "thumbnail_title", "a"),
		row("OTHER", "x", "y"),
		row("METAOBJECT", "text", `{"value":"b"}`),
	)

	res, err := Run(context.Background(), f, Options{
		Classify:  defaultClassify(),
		Translate: prefixTranslate(nil),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Rows != 3 || len(f.Rows) != 3 {
		t.Errorf("row count changed: res=%d rows=%d", res.Rows, len(f.Rows))
	}
}

func TestRun_FailedTranslationKeepsOriginal(t *testing.T) {
	f := newFile(row("METAOBJECT", "thumbnail_title", "Witaj"))

	res, err := Run(context.Background(), f, Options{
		Classify: defaultClassify(),
		Translate: func(ctx context.Context, text string) (string, bool) {
			return text, false // provider exhausted its retries
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := f.Rows[0][csvfile.ColTranslatedContent]; got != "Witaj" {
		t.Errorf("translated content = %q, want original", got)
	}
	if res.Failed != 1 || res.Translated != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestRun_InvocationsMatchCount(t *testing.T) {
	f := newFile(
		row("METAOBJECT", "thumbnail_title", "Witaj"),
		row("METAOBJECT", "description", `{"value":"a","items":[{"value":"b"},{"note":"no"}]}`),
		row("METAOBJECT", "tekst", `{broken`),
		row("OTHER", "thumbnail_title", "skip"),
	)

	want := Count(f, defaultClassify())

	calls := []string{}
	_, err := Run(context.Background(), f, Options{
		Classify:  defaultClassify(),
		Translate: prefixTranslate(&calls),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(calls) != want {
		t.Errorf("translator invoked %d times, count pass said %d", len(calls), want)
	}
}

func TestRun_BlankValueLeavesUntouched(t *testing.T) {
	f := newFile(row("METAOBJECT", "description", `{"value":""}`))

	calls := []string{}
	_, err := Run(context.Background(), f, Options{
		Classify:  defaultClassify(),
		Translate: prefixTranslate(&calls),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(calls) != 0 {
		t.Errorf("translator called for blank value leaf")
	}
	if got := f.Rows[0][csvfile.ColTranslatedContent]; got != `{"value":""}` {
		t.Errorf("translated content = %q", got)
	}
}

func TestRun_TrackerProgress(t *testing.T) {
	f := newFile(
		row("METAOBJECT", "thumbnail_title", "a"),
		row("METAOBJECT", "description", `{"value":"b"}`),
	)

	cls := defaultClassify()
	tracker := progress.NewTracker(Count(f, cls))

	_, err := Run(context.Background(), f, Options{
		Classify:  cls,
		Translate: prefixTranslate(nil),
		Tracker:   tracker,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	done, total := tracker.Counts()
	if done != 2 || total != 2 {
		t.Errorf("tracker = %d/%d, want 2/2", done, total)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFile(row("METAOBJECT", "thumbnail_title", "a"))
	_, err := Run(ctx, f, Options{
		Classify:  defaultClassify(),
		Translate: prefixTranslate(nil),
	})
	if err == nil {
		t.Error("Run succeeded with cancelled context")
	}
}

// ---------------------------------------------------------------------------
// Translation memory integration
// ---------------------------------------------------------------------------

func TestRun_MemoryHitSkipsProvider(t *testing.T) {
	store, err := memory.Open(filepath.Join(t.TempDir(), "tm.db"))
	if err != nil {
		t.Fatalf("memory.Open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Save(ctx, "Witaj", "pl", "cs", "Ahoj"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	f := newFile(
		row("METAOBJECT", "thumbnail_title", "Witaj"),
		row("METAOBJECT", "thumbnail_title", "Nowy"),
	)

	calls := []string{}
	res, err := Run(ctx, f, Options{
		Classify:   defaultClassify(),
		Translate:  prefixTranslate(&calls),
		Memory:     store,
		SourceLang: "pl",
		TargetLang: "cs",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := f.Rows[0][csvfile.ColTranslatedContent]; got != "Ahoj" {
		t.Errorf("memory hit = %q, want Ahoj", got)
	}
	if got := f.Rows[1][csvfile.ColTranslatedContent]; got != "T:Nowy" {
		t.Errorf("memory miss = %q, want T:Nowy", got)
	}
	if res.MemoryHits != 1 || res.Translated != 1 {
		t.Errorf("result = %+v", res)
	}
	if len(calls) != 1 || calls[0] != "Nowy" {
		t.Errorf("provider calls = %v, want only the miss", calls)
	}

	// The miss must now be stored for the next run.
	cached, ok, err := store.Lookup(ctx, "Nowy", "pl", "cs")
	if err != nil || !ok || cached != "T:Nowy" {
		t.Errorf("miss not stored: %q %v %v", cached, ok, err)
	}
}
