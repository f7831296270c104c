package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/internal/blob/core"
)

func TestPutGetHead(t *testing.T) {
	store := New()
	ctx := context.Background()
	payload := []byte(`{"closing_kg":900}`)

	info, err := store.Put(ctx, "reports/r1/summary.json", bytes.NewReader(payload), core.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"kind": "site_stock"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", info.Size, len(payload))
	}

	got, rc, err := store.Get(ctx, "reports/r1/summary.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("content mismatch: %q", data)
	}
	if got.ContentType != "application/json" || got.Metadata["kind"] != "site_stock" {
		t.Fatalf("metadata lost: %+v", got)
	}

	head, err := store.Head(ctx, "reports/r1/summary.json")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != info.Size || head.Metadata["kind"] != "site_stock" {
		t.Fatalf("head mismatch: %+v", head)
	}
	if _, err := store.Head(ctx, "ghost"); err == nil {
		t.Fatal("head of missing key must fail")
	}
}

func TestPutIsCreateOnly(t *testing.T) {
	store := New()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("one"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, err := store.Put(ctx, "k", strings.NewReader("two"), core.PutOptions{})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected create-only error, got %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	store := New()
	ctx := context.Background()
	for _, key := range []string{"reports/r2/b.csv", "reports/r1/a.json", "reports/r1/a.csv"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}

	infos, err := store.List(ctx, "reports/r1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "reports/r1/a.csv" || infos[1].Key != "reports/r1/a.json" {
		t.Fatalf("unexpected listing: %+v", infos)
	}

	existed, err := store.Delete(ctx, "reports/r1/a.csv")
	if err != nil || !existed {
		t.Fatalf("delete: %v %v", existed, err)
	}
	existed, err = store.Delete(ctx, "reports/r1/a.csv")
	if err != nil || existed {
		t.Fatalf("repeated delete should report missing: %v %v", existed, err)
	}
}

func TestPresignUnsupported(t *testing.T) {
	store := New()
	if _, err := store.PresignURL(context.Background(), "k", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
