package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func testStore(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing blob: got %v, want ErrNotFound", err)
	}

	data := []byte{5, 1, 16, 12, 32, 0xDE, 0xAD}
	if err := store.Put(ctx, "blob-1", data); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "blob-1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %x, want %x", got, data)
	}

	// Mutating what came back must not affect the stored copy.
	got[0] ^= 0xFF
	again, err := store.Get(ctx, "blob-1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again, data) {
		t.Fatalf("stored bytes mutated through Get result")
	}

	if err := store.Put(ctx, "blob-1", []byte{9}); err != nil {
		t.Fatal(err)
	}
	got, err = store.Get(ctx, "blob-1")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{9}) {
		t.Fatalf("overwrite not visible: got %x", got)
	}

	if err := store.Delete(ctx, "blob-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "blob-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted blob: got %v, want ErrNotFound", err)
	}
	// Deleting again is a no-op.
	if err := store.Delete(ctx, "blob-1"); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryBlobStore(t *testing.T) {
	testStore(t, NewMemoryBlobStore())
}

func TestFileBlobStore(t *testing.T) {
	testStore(t, NewFileBlobStore(t.TempDir()))
}

func TestFileBlobStoreRejectsPathIDs(t *testing.T) {
	store := NewFileBlobStore(t.TempDir())
	ctx := context.Background()
	for _, id := range []string{"", "../escape", "a/b", `a\b`} {
		if err := store.Put(ctx, id, []byte{1}); err == nil {
			t.Fatalf("id %q accepted", id)
		}
		if _, err := store.Get(ctx, id); err == nil {
			t.Fatalf("get with id %q accepted", id)
		}
	}
}

func TestMemoryBlobStoreEmptyID(t *testing.T) {
	if err := NewMemoryBlobStore().Put(context.Background(), "", []byte{1}); err == nil {
		t.Fatal("empty id accepted")
	}
}
