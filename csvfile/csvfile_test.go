package csvfile

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

// ---------------------------------------------------------------------------
// ReadFile
// ---------------------------------------------------------------------------

func TestReadFile(t *testing.T) {
	path := writeTemp(t, "Type,Field,Default content\nMETAOBJECT,thumbnail_title,Witaj\nOTHER,x,y\n")

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	wantHeader := []string{"Type", "Field", "Default content"}
	if !reflect.DeepEqual(f.Header, wantHeader) {
		t.Errorf("Header = %v, want %v", f.Header, wantHeader)
	}
	if len(f.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(f.Rows))
	}
	if f.Rows[0][ColType] != "METAOBJECT" || f.Rows[0][ColDefaultContent] != "Witaj" {
		t.Errorf("row 0 = %v", f.Rows[0])
	}
}

func TestReadFile_StripsBOM(t *testing.T) {
	path := writeTemp(t, "\uFEFFType,Field,Default content\nA,b,c\n")

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if f.Header[0] != "Type" {
		t.Errorf("Header[0] = %q, want Type", f.Header[0])
	}
}

func TestReadFile_MissingColumns(t *testing.T) {
	path := writeTemp(t, "Type,Something\nA,b\n")

	_, err := ReadFile(path)
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
	if !strings.Contains(err.Error(), "Field") || !strings.Contains(err.Error(), "Default content") {
		t.Errorf("error %q does not name the missing columns", err)
	}
}

func TestReadFile_NotFound(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.csv"))
	if !os.IsNotExist(err) {
		t.Errorf("err = %v, want not-exist", err)
	}
}

func TestReadFile_RaggedRowsPadded(t *testing.T) {
	path := writeTemp(t, "Type,Field,Default content\nMETAOBJECT,title\n")

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := f.Rows[0][ColDefaultContent]; got != "" {
		t.Errorf("missing cell = %q, want empty", got)
	}
}

// ---------------------------------------------------------------------------
// EnsureColumn / WriteFile
// ---------------------------------------------------------------------------

func TestEnsureColumn(t *testing.T) {
	f := &File{Header: []string{"Type", "Field", "Default content"}}

	f.EnsureColumn(ColTranslatedContent)
	f.EnsureColumn(ColTranslatedContent)

	want := []string{"Type", "Field", "Default content", "Translated content"}
	if !reflect.DeepEqual(f.Header, want) {
		t.Errorf("Header = %v, want %v", f.Header, want)
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	in := writeTemp(t, "Type,Field,Default content\nMETAOBJECT,description,\"{\"\"value\"\":\"\"Cześć\"\"}\"\n")

	f, err := ReadFile(in)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	f.EnsureColumn(ColTranslatedContent)
	f.Rows[0][ColTranslatedContent] = `{"value":"Ahoj"}`

	out := filepath.Join(t.TempDir(), "output.csv")
	if err := f.WriteFile(out); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	g, err := ReadFile(out)
	if err != nil {
		t.Fatalf("re-reading output: %v", err)
	}

	// Input column order must be a prefix of the output column order.
	for i, col := range f.Header[:3] {
		if g.Header[i] != col {
			t.Errorf("Header[%d] = %q, want %q", i, g.Header[i], col)
		}
	}
	if g.Header[len(g.Header)-1] != ColTranslatedContent {
		t.Errorf("last column = %q, want Translated content", g.Header[len(g.Header)-1])
	}
	if len(g.Rows) != len(f.Rows) {
		t.Errorf("row count changed: %d != %d", len(g.Rows), len(f.Rows))
	}
	if g.Rows[0][ColDefaultContent] != `{"value":"Cześć"}` {
		t.Errorf("default content mangled: %q", g.Rows[0][ColDefaultContent])
	}
	if g.Rows[0][ColTranslatedContent] != `{"value":"Ahoj"}` {
		t.Errorf("translated content mangled: %q", g.Rows[0][ColTranslatedContent])
	}
}
