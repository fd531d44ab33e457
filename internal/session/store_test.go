package session

import (
	"os"
	"path/filepath"
	"testing"
)

func testStores(t *testing.T) map[string]Store {
	t.Helper()
	sqlStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	t.Cleanup(func() { sqlStore.Close() }) //nolint:errcheck

	return map[string]Store{
		"file":   NewFileStore(filepath.Join(t.TempDir(), "nested", "token")),
		"memory": NewMemoryStore(""),
		"sqlite": sqlStore,
	}
}

func TestStores(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			tok, err := store.Load()
			if err != nil {
				t.Fatalf("Load() on empty store error: %v", err)
			}
			if tok != "" {
				t.Errorf("Load() on empty store = %q, want empty", tok)
			}

			if err := store.Save("abc"); err != nil {
				t.Fatalf("Save() error: %v", err)
			}
			if err := store.Save("def"); err != nil {
				t.Fatalf("second Save() error: %v", err)
			}
			tok, err = store.Load()
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if tok != "def" {
				t.Errorf("Load() = %q, want %q", tok, "def")
			}

			if err := store.Clear(); err != nil {
				t.Fatalf("Clear() error: %v", err)
			}
			if err := store.Clear(); err != nil {
				t.Fatalf("second Clear() error: %v", err)
			}
			tok, _ = store.Load()
			if tok != "" {
				t.Errorf("Load() after Clear = %q, want empty", tok)
			}
		})
	}
}

func TestFileStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	s := NewFileStore(path)
	if err := s.Save("secret"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("token file mode = %o, want 600", perm)
	}
}

func TestFileStoreTrimsWhitespace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("  abc\n"), 0600); err != nil {
		t.Fatal(err)
	}
	tok, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "abc" {
		t.Errorf("Load() = %q, want %q", tok, "abc")
	}
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	if err := s.Save("persisted"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	s.Close() //nolint:errcheck

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s.Close() //nolint:errcheck
	tok, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "persisted" {
		t.Errorf("Load() = %q, want %q", tok, "persisted")
	}
}
