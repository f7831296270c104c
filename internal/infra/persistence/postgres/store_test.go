package postgres

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/internal/infra/persistence/postgres/testutil"
	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

func TestSnapshotUpsertAndReload(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("postgres://stub", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateSite(domain.Site{Base: domain.Base{ID: "site-1"}, Name: "Ambanifony"})
		return err
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	rows := conn.Tables["state"]
	if len(rows) != 16 {
		t.Fatalf("expected one row per bucket, got %d", len(rows))
	}
	var sitesPayload []byte
	for _, row := range rows {
		if row["bucket"] == "sites" {
			sitesPayload, _ = row["payload"].([]byte)
		}
	}
	if !strings.Contains(string(sitesPayload), "Ambanifony") {
		t.Fatalf("sites bucket payload missing site: %s", sitesPayload)
	}

	reloaded, err := NewStore("postgres://stub", nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := reloaded.View(context.Background(), func(view domain.TransactionView) error {
		site, found := view.FindSite("site-1")
		if !found || site.Name != "Ambanifony" {
			t.Fatalf("site not hydrated: %v %+v", found, site)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestPersistFailureSurfaces(t *testing.T) {
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("postgres://stub", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conn.FailBegin = true
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateSite(domain.Site{Base: domain.Base{ID: "site-1"}})
		return err
	})
	if err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin failure to surface, got %v", err)
	}
}
