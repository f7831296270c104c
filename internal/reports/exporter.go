// Package reports renders ledger reconstruction reports asynchronously and
// stores the rendered artifacts in a blob store.
package reports

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/internal/blob"
	"github.com/assamipatrick/seaweed-ambanifony-sub000/internal/core"
	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

// Kind selects which ledger a report reconstructs.
type Kind string

const (
	KindSiteStock      Kind = "site_stock"
	KindWarehouseStock Kind = "warehouse_stock"
	KindCreditSummary  Kind = "credit_summary"
)

// Format selects the rendered artifact encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Status describes the lifecycle stage of a report request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Request describes one report to render. SiteID narrows a site stock
// report to one site; empty covers every site. Window bounds the balance
// reconstruction; AsOf dates a credit summary.
type Request struct {
	Kind        Kind
	Formats     []Format
	SiteID      string
	Window      domain.Window
	AsOf        time.Time
	RequestedBy string
	Reason      string
}

// Artifact captures one stored rendering of a report.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	Rows        int       `json:"rows"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks a report request and its resulting artifacts.
type Record struct {
	ID          string     `json:"id"`
	Kind        Kind       `json:"kind"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requested_by"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// AuditLogger records report audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for report runs.
type AuditEntry struct {
	ID         string    `json:"id"`
	Actor      string    `json:"actor"`
	Kind       Kind      `json:"kind"`
	Status     Status    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Note       string    `json:"note,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Worker renders reports asynchronously.
type Worker struct {
	service *core.Service
	store   blob.Store
	audit   AuditLogger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id      string
	request Request
}

// NewWorker constructs a report worker. The audit logger may be nil.
func NewWorker(service *core.Service, store blob.Store, audit AuditLogger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		service: service,
		store:   store,
		audit:   audit,
		queue:   make(chan task, 32),
		jobs:    make(map[string]*Record),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins processing report requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for completion.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules a report and returns the queued record.
func (w *Worker) Enqueue(ctx context.Context, request Request) (Record, error) {
	switch request.Kind {
	case KindSiteStock, KindWarehouseStock, KindCreditSummary:
	default:
		return Record{}, fmt.Errorf("unknown report kind %q", request.Kind)
	}
	formats := request.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, f := range formats {
		if f != FormatCSV && f != FormatJSON {
			return Record{}, fmt.Errorf("unsupported report format %q", f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		uniq = append(uniq, f)
		seen[f] = struct{}{}
	}

	id := newID()
	now := time.Now().UTC()
	record := Record{
		ID:          id,
		Kind:        request.Kind,
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: request.RequestedBy,
		Reason:      request.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[id] = &record
	queued := record.copy()
	w.mu.Unlock()

	w.record(ctx, id, StatusQueued, "")

	select {
	case w.queue <- task{id: id, request: request}:
	default:
		return Record{}, fmt.Errorf("report queue full")
	}
	return queued, nil
}

// Get returns a snapshot of the report record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	w.updateStatus(t.id, StatusRunning, "")

	tbl, err := w.build(t.request)
	if err != nil {
		w.fail(t.id, err.Error())
		return
	}

	record, ok := w.Get(t.id)
	if !ok {
		return
	}
	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, contentType, err := render(format, tbl)
		if err != nil {
			w.fail(t.id, err.Error())
			return
		}
		key := fmt.Sprintf("reports/%s/%s.%s", t.id, t.request.Kind, format)
		artifact := Artifact{
			Key:         key,
			Format:      format,
			ContentType: contentType,
			SizeBytes:   int64(len(payload)),
			Rows:        len(tbl.rows),
			CreatedAt:   time.Now().UTC(),
		}
		if w.store != nil {
			info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
				ContentType: contentType,
				Metadata:    map[string]string{"kind": string(t.request.Kind), "rows": strconv.Itoa(len(tbl.rows))},
			})
			if err != nil {
				w.fail(t.id, fmt.Sprintf("store artifact failed: %v", err))
				return
			}
			artifact.URL = info.URL
			if info.Size > 0 {
				artifact.SizeBytes = info.Size
			}
		}
		artifacts = append(artifacts, artifact)
	}
	w.complete(t.id, artifacts)
}

// table is a rendered report before encoding: ordered columns and rows of
// pre-formatted cells keyed by column name.
type table struct {
	columns []string
	rows    []map[string]string
}

func (w *Worker) build(request Request) (table, error) {
	switch request.Kind {
	case KindSiteStock:
		return w.buildSiteStock(request)
	case KindWarehouseStock:
		return w.buildWarehouseStock(request)
	case KindCreditSummary:
		return w.buildCreditSummary(request)
	}
	return table{}, fmt.Errorf("unknown report kind %q", request.Kind)
}

func (w *Worker) buildSiteStock(request Request) (table, error) {
	tbl := table{columns: []string{"site", "seaweedType", "openingKg", "openingBags", "entriesKg", "entriesBags", "exitsKg", "exitsBags", "closingKg", "closingBags"}}
	err := w.service.View(w.ctx, func(view core.TransactionView) error {
		sites := view.ListSites()
		for _, site := range sites {
			if request.SiteID != "" && site.ID != request.SiteID {
				continue
			}
			for _, st := range view.ListSeaweedTypes() {
				b := domain.SiteStockBalance(view.ListStockMovements(), site.ID, st.ID, request.Window)
				if b == (domain.StockBalance{}) {
					continue
				}
				tbl.rows = append(tbl.rows, balanceRow(site.Name, st.Name, b))
			}
		}
		return nil
	})
	return tbl, err
}

func (w *Worker) buildWarehouseStock(request Request) (table, error) {
	tbl := table{columns: []string{"site", "seaweedType", "openingKg", "openingBags", "entriesKg", "entriesBags", "exitsKg", "exitsBags", "closingKg", "closingBags"}}
	err := w.service.View(w.ctx, func(view core.TransactionView) error {
		for _, st := range view.ListSeaweedTypes() {
			for _, sub := range []domain.WarehouseSubLedger{domain.SubLedgerBulk, domain.SubLedgerPressed} {
				b := domain.WarehouseBalance(view.ListPressedStockMovements(), st.ID, sub, request.Window)
				if b == (domain.StockBalance{}) {
					continue
				}
				tbl.rows = append(tbl.rows, balanceRow(fmt.Sprintf("warehouse/%s", sub), st.Name, b))
			}
		}
		return nil
	})
	return tbl, err
}

func (w *Worker) buildCreditSummary(request Request) (table, error) {
	asOf := request.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	tbl := table{columns: []string{"creditType", "balance"}}
	err := w.service.View(w.ctx, func(view core.TransactionView) error {
		balances := domain.CreditBalanceByType(view.ListFarmerCredits(), view.ListRepayments(), view.ListCreditTypes(), asOf)
		total := 0.0
		for _, b := range balances {
			name := b.CreditTypeID
			for _, ct := range view.ListCreditTypes() {
				if ct.ID == b.CreditTypeID {
					name = ct.Name
					break
				}
			}
			tbl.rows = append(tbl.rows, map[string]string{"creditType": name, "balance": formatFloat(b.Balance)})
			total += b.Balance
		}
		tbl.rows = append(tbl.rows, map[string]string{"creditType": "TOTAL", "balance": formatFloat(total)})
		return nil
	})
	return tbl, err
}

func balanceRow(site, seaweedType string, b domain.StockBalance) map[string]string {
	return map[string]string{
		"site":        site,
		"seaweedType": seaweedType,
		"openingKg":   formatFloat(b.OpeningKg),
		"openingBags": strconv.Itoa(b.OpeningCount),
		"entriesKg":   formatFloat(b.EntriesKg),
		"entriesBags": strconv.Itoa(b.EntriesCount),
		"exitsKg":     formatFloat(b.ExitsKg),
		"exitsBags":   strconv.Itoa(b.ExitsCount),
		"closingKg":   formatFloat(b.ClosingKg),
		"closingBags": strconv.Itoa(b.ClosingCount),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func render(format Format, tbl table) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(tbl.rows)
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return payload, "application/json", nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write(tbl.columns); err != nil {
			return nil, "", err
		}
		for _, row := range tbl.rows {
			cells := make([]string, len(tbl.columns))
			for i, col := range tbl.columns {
				cells[i] = row[col]
			}
			if err := writer.Write(cells); err != nil {
				return nil, "", err
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	}
	return nil, "", fmt.Errorf("unsupported report format %s", format)
}

func (w *Worker) updateStatus(id string, status Status, message string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
	w.record(w.ctx, id, status, message)
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.record(w.ctx, id, StatusSucceeded, "")
}

func (w *Worker) fail(id, reason string) {
	now := time.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.record(w.ctx, id, StatusFailed, reason)
}

func (w *Worker) record(ctx context.Context, id string, status Status, note string) {
	if w.audit == nil {
		return
	}
	w.mu.RLock()
	actor, kind, reason := "", Kind(""), ""
	if r, ok := w.jobs[id]; ok {
		actor, kind, reason = r.RequestedBy, r.Kind, r.Reason
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, AuditEntry{
		ID:         newID(),
		Actor:      actor,
		Kind:       kind,
		Status:     status,
		Reason:     reason,
		Note:       note,
		OccurredAt: time.Now().UTC(),
	})
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}

// MemoryAuditLog captures audit entries in memory for assertions.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a defensive copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
