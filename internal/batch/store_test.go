package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoreListsOnlyCSVFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.csv", "B.CSV", "notes.txt", "data.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	store := NewLocalStore(dir, 1)
	names, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Errorf("names = %v, want the two csv files", names)
	}
}

func TestLocalStoreRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, 2<<20)
	if err := os.WriteFile(filepath.Join(dir, "big.csv"), big, 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewLocalStore(dir, 1)
	if _, err := store.Open(context.Background(), "big.csv"); err == nil {
		t.Fatal("expected size-limit rejection")
	}
}

func TestLocalStoreOpenStripsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ok.csv"), []byte("h\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewLocalStore(dir, 1)
	rc, err := store.Open(context.Background(), "../../ok.csv")
	if err != nil {
		t.Fatalf("base-name resolution should find the file: %v", err)
	}
	rc.Close()
}
