package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/internal/blob/core"
)

func TestMockPutGetRoundTrip(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	payload := []byte("export_doc,kg\ned-1,800\n")

	info, err := store.Put(ctx, "reports/r1/exports.csv", bytes.NewReader(payload), core.PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "reports/r1/exports.csv" || info.Size != int64(len(payload)) {
		t.Fatalf("unexpected info: %+v", info)
	}

	got, rc, err := store.Get(ctx, "reports/r1/exports.csv")
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
	if got.ContentType != "text/csv" {
		t.Fatalf("content type lost: %+v", got)
	}

	head, err := store.Head(ctx, "reports/r1/exports.csv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.Size != int64(len(payload)) {
		t.Fatalf("head size = %d, want %d", head.Size, len(payload))
	}
}

func TestMockPutIsCreateOnly(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	if _, err := store.Put(ctx, "k", strings.NewReader("one"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, err := store.Put(ctx, "k", strings.NewReader("two"), core.PutOptions{})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected create-only error, got %v", err)
	}
}

func TestMockListAndDelete(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()
	for _, key := range []string{"reports/r1/a.csv", "reports/r1/a.json", "reports/r2/b.csv"} {
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

	if _, err := store.Delete(ctx, "reports/r1/a.csv"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Head(ctx, "reports/r1/a.csv"); err == nil {
		t.Fatal("head after delete should fail")
	}
}

func TestMockPresignURL(t *testing.T) {
	store := NewMockForTests()
	ctx := context.Background()

	url, err := store.PresignURL(ctx, "reports/r1/a.csv", core.SignedURLOptions{})
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(url, "mock-bucket") || !strings.Contains(url, "reports/r1/a.csv") {
		t.Fatalf("unexpected presigned url %s", url)
	}

	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for PUT, got %v", err)
	}
}

func TestDriverIdentifiers(t *testing.T) {
	if d := NewMockForTests().Driver(); d != core.DriverS3 {
		t.Fatalf("driver = %s", d)
	}
}
