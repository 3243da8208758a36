package settings

import (
	"path/filepath"
	"testing"
)

// useTempStore points the credential store at a temp directory.
func useTempStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	return dir
}

func TestSetAndGetAPIKey(t *testing.T) {
	useTempStore(t)

	if err := SetAPIKey("openai", "sk-test-1234567890"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	if got := GetAPIKey("openai"); got != "sk-test-1234567890" {
		t.Errorf("GetAPIKey = %q", got)
	}
	if got := GetAPIKey("google"); got != "" {
		t.Errorf("GetAPIKey for unset provider = %q, want empty", got)
	}
}

func TestSetAPIKey_PreservesBaseURL(t *testing.T) {
	useTempStore(t)

	store := Load()
	store["openai"] = &Info{Key: "old", BaseURL: "https://proxy.example/v1"}
	if err := Save(store); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := SetAPIKey("openai", "new"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	if got := GetBaseURL("openai"); got != "https://proxy.example/v1" {
		t.Errorf("GetBaseURL = %q, base URL lost on key update", got)
	}
}

func TestRemove(t *testing.T) {
	useTempStore(t)

	if err := SetAPIKey("openai", "sk-x"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	if err := Remove("openai"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := GetAPIKey("openai"); got != "" {
		t.Errorf("key still present after Remove: %q", got)
	}

	// Removing a missing entry is not an error.
	if err := Remove("nope"); err != nil {
		t.Errorf("Remove missing: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	useTempStore(t)

	store := Load()
	if store == nil || len(store) != 0 {
		t.Errorf("Load = %v, want empty store", store)
	}
}

func TestFilePath(t *testing.T) {
	dir := useTempStore(t)

	want := filepath.Join(dir, "metatrans", "auth.json")
	if got := FilePath(); got != want {
		t.Errorf("FilePath = %q, want %q", got, want)
	}
}

func TestMaskKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"short", "****"},
		{"sk-abcdefghijklmnop", "sk-a...mnop"},
	}
	for _, tc := range tests {
		if got := MaskKey(tc.in); got != tc.want {
			t.Errorf("MaskKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
