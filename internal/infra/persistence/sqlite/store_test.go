package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

func TestStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateSite(domain.Site{Base: domain.Base{ID: "site-1"}, Name: "Ambanifony"}); err != nil {
			return err
		}
		weight := 42.0
		bags := 2
		_, err := tx.AppendStockMovement(domain.StockMovement{
			SiteID: "site-1", SeaweedTypeID: "st-1",
			Type: domain.StockInitial, InKg: &weight, InBags: &bags,
		})
		return err
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	var buckets int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&buckets); err != nil {
		t.Fatalf("count buckets: %v", err)
	}
	if buckets == 0 {
		t.Fatal("no buckets persisted")
	}
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.DB().Close() }()

	if err := reopened.View(context.Background(), func(view domain.TransactionView) error {
		site, found := view.FindSite("site-1")
		if !found || site.Name != "Ambanifony" {
			t.Fatalf("site not restored: %v %+v", found, site)
		}
		movements := view.ListStockMovements()
		if len(movements) != 1 {
			t.Fatalf("expected 1 restored movement, got %d", len(movements))
		}
		if movements[0].InKg == nil || *movements[0].InKg != 42 {
			t.Fatalf("movement payload lost: %+v", movements[0])
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestFailedTransactionDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.DB().Close() }()

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateSite(domain.Site{Base: domain.Base{ID: "site-1"}}); err != nil {
			return err
		}
		_, err := tx.CreateSite(domain.Site{Base: domain.Base{ID: "site-1"}})
		return err
	})
	if err == nil {
		t.Fatal("expected duplicate create to fail")
	}

	if err := store.View(context.Background(), func(view domain.TransactionView) error {
		if len(view.ListSites()) != 0 {
			t.Fatal("failed transaction persisted state")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}
