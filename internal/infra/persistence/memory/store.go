// Package memory provides the in-memory implementation of the domain
// persistence store. It is the reference implementation backing both the
// ephemeral configuration and the durable stores, which persist its exported
// snapshots.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Site aliases domain.Site for in-memory persistence operations.
	Site = domain.Site
	// Farmer aliases domain.Farmer.
	Farmer = domain.Farmer
	// ServiceProvider aliases domain.ServiceProvider.
	ServiceProvider = domain.ServiceProvider
	// SeaweedType aliases domain.SeaweedType.
	SeaweedType = domain.SeaweedType
	// CreditType aliases domain.CreditType.
	CreditType = domain.CreditType
	// Module aliases domain.Module.
	Module = domain.Module
	// CultivationCycle aliases domain.CultivationCycle.
	CultivationCycle = domain.CultivationCycle
	// CuttingOperation aliases domain.CuttingOperation.
	CuttingOperation = domain.CuttingOperation
	// StockMovement aliases domain.StockMovement.
	StockMovement = domain.StockMovement
	// PressedStockMovement aliases domain.PressedStockMovement.
	PressedStockMovement = domain.PressedStockMovement
	// FarmerCredit aliases domain.FarmerCredit.
	FarmerCredit = domain.FarmerCredit
	// Repayment aliases domain.Repayment.
	Repayment = domain.Repayment
	// FarmerDelivery aliases domain.FarmerDelivery.
	FarmerDelivery = domain.FarmerDelivery
	// PressingSlip aliases domain.PressingSlip.
	PressingSlip = domain.PressingSlip
	// ExportDocument aliases domain.ExportDocument.
	ExportDocument = domain.ExportDocument
	// SiteTransfer aliases domain.SiteTransfer.
	SiteTransfer = domain.SiteTransfer
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// Snapshot aliases domain.Snapshot, the wholesale state exchange unit.
	Snapshot = domain.Snapshot
)

type memoryState struct {
	sites           map[string]Site
	farmers         map[string]Farmer
	providers       map[string]ServiceProvider
	seaweedTypes    map[string]SeaweedType
	creditTypes     map[string]CreditType
	modules         map[string]Module
	cycles          map[string]CultivationCycle
	operations      map[string]CuttingOperation
	stockMovements  map[string]StockMovement
	pressedMovement map[string]PressedStockMovement
	credits         map[string]FarmerCredit
	repayments      map[string]Repayment
	deliveries      map[string]FarmerDelivery
	pressingSlips   map[string]PressingSlip
	exportDocs      map[string]ExportDocument
	transfers       map[string]SiteTransfer
}

func newMemoryState() memoryState {
	return memoryState{
		sites:           make(map[string]Site),
		farmers:         make(map[string]Farmer),
		providers:       make(map[string]ServiceProvider),
		seaweedTypes:    make(map[string]SeaweedType),
		creditTypes:     make(map[string]CreditType),
		modules:         make(map[string]Module),
		cycles:          make(map[string]CultivationCycle),
		operations:      make(map[string]CuttingOperation),
		stockMovements:  make(map[string]StockMovement),
		pressedMovement: make(map[string]PressedStockMovement),
		credits:         make(map[string]FarmerCredit),
		repayments:      make(map[string]Repayment),
		deliveries:      make(map[string]FarmerDelivery),
		pressingSlips:   make(map[string]PressingSlip),
		exportDocs:      make(map[string]ExportDocument),
		transfers:       make(map[string]SiteTransfer),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.sites {
		cloned.sites[k] = cloneSite(v)
	}
	for k, v := range s.farmers {
		cloned.farmers[k] = v
	}
	for k, v := range s.providers {
		cloned.providers[k] = v
	}
	for k, v := range s.seaweedTypes {
		cloned.seaweedTypes[k] = cloneSeaweedType(v)
	}
	for k, v := range s.creditTypes {
		cloned.creditTypes[k] = v
	}
	for k, v := range s.modules {
		cloned.modules[k] = cloneModule(v)
	}
	for k, v := range s.cycles {
		cloned.cycles[k] = cloneCycle(v)
	}
	for k, v := range s.operations {
		cloned.operations[k] = cloneOperation(v)
	}
	for k, v := range s.stockMovements {
		cloned.stockMovements[k] = cloneStockMovement(v)
	}
	for k, v := range s.pressedMovement {
		cloned.pressedMovement[k] = clonePressedMovement(v)
	}
	for k, v := range s.credits {
		cloned.credits[k] = cloneCredit(v)
	}
	for k, v := range s.repayments {
		cloned.repayments[k] = v
	}
	for k, v := range s.deliveries {
		cloned.deliveries[k] = v
	}
	for k, v := range s.pressingSlips {
		cloned.pressingSlips[k] = cloneSlip(v)
	}
	for k, v := range s.exportDocs {
		cloned.exportDocs[k] = cloneExportDoc(v)
	}
	for k, v := range s.transfers {
		cloned.transfers[k] = cloneTransfer(v)
	}
	return cloned
}

func strPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func timePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func floatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func intPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSite(s Site) Site {
	cp := s
	cp.Zones = append([]domain.Zone(nil), s.Zones...)
	return cp
}

func cloneSeaweedType(t SeaweedType) SeaweedType {
	cp := t
	cp.PriceHistory = append([]domain.SeaweedPrice(nil), t.PriceHistory...)
	return cp
}

func cloneModule(m Module) Module {
	cp := m
	cp.FarmerID = strPtr(m.FarmerID)
	cp.StatusHistory = append([]domain.ModuleStatusEntry(nil), m.StatusHistory...)
	return cp
}

func cloneCycle(c CultivationCycle) CultivationCycle {
	cp := c
	cp.CuttingOperationID = strPtr(c.CuttingOperationID)
	cp.HarvestDate = timePtr(c.HarvestDate)
	cp.HarvestedWeight = floatPtr(c.HarvestedWeight)
	cp.DryingStartDate = timePtr(c.DryingStartDate)
	cp.DryingCompletionDate = timePtr(c.DryingCompletionDate)
	cp.ActualDryWeightKg = floatPtr(c.ActualDryWeightKg)
	cp.BaggingStartDate = timePtr(c.BaggingStartDate)
	cp.BaggedDate = timePtr(c.BaggedDate)
	cp.StockDate = timePtr(c.StockDate)
	cp.ExportDate = timePtr(c.ExportDate)
	return cp
}

func cloneOperation(o CuttingOperation) CuttingOperation {
	cp := o
	cp.ModuleCuts = append([]domain.ModuleCut(nil), o.ModuleCuts...)
	cp.PaymentDate = timePtr(o.PaymentDate)
	cp.BeneficiaryFarmerID = strPtr(o.BeneficiaryFarmerID)
	return cp
}

func cloneStockMovement(m StockMovement) StockMovement {
	cp := m
	cp.InKg = floatPtr(m.InKg)
	cp.InBags = intPtr(m.InBags)
	cp.OutKg = floatPtr(m.OutKg)
	cp.OutBags = intPtr(m.OutBags)
	cp.RelatedID = strPtr(m.RelatedID)
	return cp
}

func clonePressedMovement(m PressedStockMovement) PressedStockMovement {
	cp := m
	cp.InKg = floatPtr(m.InKg)
	cp.InBales = intPtr(m.InBales)
	cp.OutKg = floatPtr(m.OutKg)
	cp.OutBales = intPtr(m.OutBales)
	cp.RelatedID = strPtr(m.RelatedID)
	return cp
}

func cloneCredit(c FarmerCredit) FarmerCredit {
	cp := c
	cp.RelatedOperationID = strPtr(c.RelatedOperationID)
	return cp
}

func cloneSlip(p PressingSlip) PressingSlip {
	cp := p
	cp.ExportDocID = strPtr(p.ExportDocID)
	return cp
}

func cloneExportDoc(d ExportDocument) ExportDocument {
	cp := d
	cp.PressingSlipIDs = append([]string(nil), d.PressingSlipIDs...)
	return cp
}

func cloneTransfer(t SiteTransfer) SiteTransfer {
	cp := t
	cp.CompletionDate = timePtr(t.CompletionDate)
	cp.ReceivedWeightKg = floatPtr(t.ReceivedWeightKg)
	cp.ReceivedBags = intPtr(t.ReceivedBags)
	cp.History = append([]domain.TransferHistoryEntry(nil), t.History...)
	return cp
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{}
	for _, v := range state.sites {
		s.Sites = append(s.Sites, cloneSite(v))
	}
	for _, v := range state.farmers {
		s.Farmers = append(s.Farmers, v)
	}
	for _, v := range state.providers {
		s.ServiceProviders = append(s.ServiceProviders, v)
	}
	for _, v := range state.seaweedTypes {
		s.SeaweedTypes = append(s.SeaweedTypes, cloneSeaweedType(v))
	}
	for _, v := range state.creditTypes {
		s.CreditTypes = append(s.CreditTypes, v)
	}
	for _, v := range state.modules {
		s.Modules = append(s.Modules, cloneModule(v))
	}
	for _, v := range state.cycles {
		s.CultivationCycles = append(s.CultivationCycles, cloneCycle(v))
	}
	for _, v := range state.operations {
		s.CuttingOperations = append(s.CuttingOperations, cloneOperation(v))
	}
	for _, v := range state.stockMovements {
		s.StockMovements = append(s.StockMovements, cloneStockMovement(v))
	}
	for _, v := range state.pressedMovement {
		s.PressedStockMovements = append(s.PressedStockMovements, clonePressedMovement(v))
	}
	for _, v := range state.credits {
		s.FarmerCredits = append(s.FarmerCredits, cloneCredit(v))
	}
	for _, v := range state.repayments {
		s.Repayments = append(s.Repayments, v)
	}
	for _, v := range state.deliveries {
		s.FarmerDeliveries = append(s.FarmerDeliveries, v)
	}
	for _, v := range state.pressingSlips {
		s.PressingSlips = append(s.PressingSlips, cloneSlip(v))
	}
	for _, v := range state.exportDocs {
		s.ExportDocuments = append(s.ExportDocuments, cloneExportDoc(v))
	}
	for _, v := range state.transfers {
		s.SiteTransfers = append(s.SiteTransfers, cloneTransfer(v))
	}
	sortSnapshot(&s)
	return s
}

// sortSnapshot orders every collection by id so exported snapshots are
// byte-stable across runs, which keeps bucket upserts diff-friendly.
func sortSnapshot(s *Snapshot) {
	sort.Slice(s.Sites, func(i, j int) bool { return s.Sites[i].ID < s.Sites[j].ID })
	sort.Slice(s.Farmers, func(i, j int) bool { return s.Farmers[i].ID < s.Farmers[j].ID })
	sort.Slice(s.ServiceProviders, func(i, j int) bool { return s.ServiceProviders[i].ID < s.ServiceProviders[j].ID })
	sort.Slice(s.SeaweedTypes, func(i, j int) bool { return s.SeaweedTypes[i].ID < s.SeaweedTypes[j].ID })
	sort.Slice(s.CreditTypes, func(i, j int) bool { return s.CreditTypes[i].ID < s.CreditTypes[j].ID })
	sort.Slice(s.Modules, func(i, j int) bool { return s.Modules[i].ID < s.Modules[j].ID })
	sort.Slice(s.CultivationCycles, func(i, j int) bool { return s.CultivationCycles[i].ID < s.CultivationCycles[j].ID })
	sort.Slice(s.CuttingOperations, func(i, j int) bool { return s.CuttingOperations[i].ID < s.CuttingOperations[j].ID })
	sort.Slice(s.StockMovements, func(i, j int) bool { return s.StockMovements[i].ID < s.StockMovements[j].ID })
	sort.Slice(s.PressedStockMovements, func(i, j int) bool { return s.PressedStockMovements[i].ID < s.PressedStockMovements[j].ID })
	sort.Slice(s.FarmerCredits, func(i, j int) bool { return s.FarmerCredits[i].ID < s.FarmerCredits[j].ID })
	sort.Slice(s.Repayments, func(i, j int) bool { return s.Repayments[i].ID < s.Repayments[j].ID })
	sort.Slice(s.FarmerDeliveries, func(i, j int) bool { return s.FarmerDeliveries[i].ID < s.FarmerDeliveries[j].ID })
	sort.Slice(s.PressingSlips, func(i, j int) bool { return s.PressingSlips[i].ID < s.PressingSlips[j].ID })
	sort.Slice(s.ExportDocuments, func(i, j int) bool { return s.ExportDocuments[i].ID < s.ExportDocuments[j].ID })
	sort.Slice(s.SiteTransfers, func(i, j int) bool { return s.SiteTransfers[i].ID < s.SiteTransfers[j].ID })
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for _, v := range s.Sites {
		state.sites[v.ID] = cloneSite(v)
	}
	for _, v := range s.Farmers {
		state.farmers[v.ID] = v
	}
	for _, v := range s.ServiceProviders {
		state.providers[v.ID] = v
	}
	for _, v := range s.SeaweedTypes {
		state.seaweedTypes[v.ID] = cloneSeaweedType(v)
	}
	for _, v := range s.CreditTypes {
		state.creditTypes[v.ID] = v
	}
	for _, v := range s.Modules {
		state.modules[v.ID] = cloneModule(v)
	}
	for _, v := range s.CultivationCycles {
		state.cycles[v.ID] = cloneCycle(v)
	}
	for _, v := range s.CuttingOperations {
		state.operations[v.ID] = cloneOperation(v)
	}
	for _, v := range s.StockMovements {
		state.stockMovements[v.ID] = cloneStockMovement(v)
	}
	for _, v := range s.PressedStockMovements {
		state.pressedMovement[v.ID] = clonePressedMovement(v)
	}
	for _, v := range s.FarmerCredits {
		state.credits[v.ID] = cloneCredit(v)
	}
	for _, v := range s.Repayments {
		state.repayments[v.ID] = v
	}
	for _, v := range s.FarmerDeliveries {
		state.deliveries[v.ID] = v
	}
	for _, v := range s.PressingSlips {
		state.pressingSlips[v.ID] = cloneSlip(v)
	}
	for _, v := range s.ExportDocuments {
		state.exportDocs[v.ID] = cloneExportDoc(v)
	}
	for _, v := range s.SiteTransfers {
		state.transfers[v.ID] = cloneTransfer(v)
	}
	return state
}

// Store provides an in-memory transactional store for the domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot. Remote
// state wins wholesale; no per-record merge is attempted.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the store clock, used by tests for deterministic dates.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	gaps    []domain.Violation
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}
	result.Violations = append(result.Violations, tx.gaps...)

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// RecordGap notes a consistency gap without aborting the transaction.
func (tx *transaction) RecordGap(v domain.Violation) {
	tx.gaps = append(tx.gaps, v)
}

// Reference data -------------------------------------------------------------

// CreateSite stores a new site within the transaction.
func (tx *transaction) CreateSite(s Site) (Site, error) {
	if s.ID == "" {
		s.ID = tx.store.newID()
	}
	if _, exists := tx.state.sites[s.ID]; exists {
		return Site{}, fmt.Errorf("site %q already exists", s.ID)
	}
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.sites[s.ID] = cloneSite(s)
	tx.recordChange(Change{Entity: domain.EntitySite, Action: domain.ActionCreate, After: cloneSite(s)})
	return cloneSite(s), nil
}

// CreateFarmer stores a new farmer.
func (tx *transaction) CreateFarmer(f Farmer) (Farmer, error) {
	if f.ID == "" {
		f.ID = tx.store.newID()
	}
	if _, exists := tx.state.farmers[f.ID]; exists {
		return Farmer{}, fmt.Errorf("farmer %q already exists", f.ID)
	}
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	tx.state.farmers[f.ID] = f
	tx.recordChange(Change{Entity: domain.EntityFarmer, Action: domain.ActionCreate, After: f})
	return f, nil
}

// CreateServiceProvider stores a new service provider.
func (tx *transaction) CreateServiceProvider(p ServiceProvider) (ServiceProvider, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.providers[p.ID]; exists {
		return ServiceProvider{}, fmt.Errorf("service provider %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.providers[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityServiceProvider, Action: domain.ActionCreate, After: p})
	return p, nil
}

// CreateSeaweedType stores a new seaweed type.
func (tx *transaction) CreateSeaweedType(t SeaweedType) (SeaweedType, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.seaweedTypes[t.ID]; exists {
		return SeaweedType{}, fmt.Errorf("seaweed type %q already exists", t.ID)
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.seaweedTypes[t.ID] = cloneSeaweedType(t)
	tx.recordChange(Change{Entity: domain.EntitySeaweedType, Action: domain.ActionCreate, After: cloneSeaweedType(t)})
	return cloneSeaweedType(t), nil
}

// UpdateSeaweedType mutates a seaweed type using the provided mutator.
func (tx *transaction) UpdateSeaweedType(id string, mutator func(*SeaweedType) error) (SeaweedType, error) {
	current, ok := tx.state.seaweedTypes[id]
	if !ok {
		return SeaweedType{}, fmt.Errorf("seaweed type %q not found", id)
	}
	before := cloneSeaweedType(current)
	if err := mutator(&current); err != nil {
		return SeaweedType{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.seaweedTypes[id] = cloneSeaweedType(current)
	tx.recordChange(Change{Entity: domain.EntitySeaweedType, Action: domain.ActionUpdate, Before: before, After: cloneSeaweedType(current)})
	return cloneSeaweedType(current), nil
}

// CreateCreditType stores a new credit type.
func (tx *transaction) CreateCreditType(t CreditType) (CreditType, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.creditTypes[t.ID]; exists {
		return CreditType{}, fmt.Errorf("credit type %q already exists", t.ID)
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.creditTypes[t.ID] = t
	tx.recordChange(Change{Entity: domain.EntityCreditType, Action: domain.ActionCreate, After: t})
	return t, nil
}

// Modules --------------------------------------------------------------------

// CreateModule stores a new module within the transaction.
func (tx *transaction) CreateModule(m Module) (Module, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.modules[m.ID]; exists {
		return Module{}, fmt.Errorf("module %q already exists", m.ID)
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.modules[m.ID] = cloneModule(m)
	tx.recordChange(Change{Entity: domain.EntityModule, Action: domain.ActionCreate, After: cloneModule(m)})
	return cloneModule(m), nil
}

// UpdateModule mutates a module using the provided mutator function.
func (tx *transaction) UpdateModule(id string, mutator func(*Module) error) (Module, error) {
	current, ok := tx.state.modules[id]
	if !ok {
		return Module{}, fmt.Errorf("module %q not found", id)
	}
	before := cloneModule(current)
	if err := mutator(&current); err != nil {
		return Module{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.modules[id] = cloneModule(current)
	tx.recordChange(Change{Entity: domain.EntityModule, Action: domain.ActionUpdate, Before: before, After: cloneModule(current)})
	return cloneModule(current), nil
}

// DeleteModule removes a module from the transaction state.
func (tx *transaction) DeleteModule(id string) error {
	current, ok := tx.state.modules[id]
	if !ok {
		return fmt.Errorf("module %q not found", id)
	}
	delete(tx.state.modules, id)
	tx.recordChange(Change{Entity: domain.EntityModule, Action: domain.ActionDelete, Before: cloneModule(current)})
	return nil
}

// Cultivation cycles ---------------------------------------------------------

// CreateCycle stores a new cultivation cycle.
func (tx *transaction) CreateCycle(c CultivationCycle) (CultivationCycle, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.cycles[c.ID]; exists {
		return CultivationCycle{}, fmt.Errorf("cultivation cycle %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.cycles[c.ID] = cloneCycle(c)
	tx.recordChange(Change{Entity: domain.EntityCultivationCycle, Action: domain.ActionCreate, After: cloneCycle(c)})
	return cloneCycle(c), nil
}

// UpdateCycle mutates a cultivation cycle.
func (tx *transaction) UpdateCycle(id string, mutator func(*CultivationCycle) error) (CultivationCycle, error) {
	current, ok := tx.state.cycles[id]
	if !ok {
		return CultivationCycle{}, fmt.Errorf("cultivation cycle %q not found", id)
	}
	before := cloneCycle(current)
	if err := mutator(&current); err != nil {
		return CultivationCycle{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.cycles[id] = cloneCycle(current)
	tx.recordChange(Change{Entity: domain.EntityCultivationCycle, Action: domain.ActionUpdate, Before: before, After: cloneCycle(current)})
	return cloneCycle(current), nil
}

// DeleteCycle removes a cultivation cycle.
func (tx *transaction) DeleteCycle(id string) error {
	current, ok := tx.state.cycles[id]
	if !ok {
		return fmt.Errorf("cultivation cycle %q not found", id)
	}
	delete(tx.state.cycles, id)
	tx.recordChange(Change{Entity: domain.EntityCultivationCycle, Action: domain.ActionDelete, Before: cloneCycle(current)})
	return nil
}

// DeleteCyclesByModule removes every cycle attached to a module and returns
// the number removed.
func (tx *transaction) DeleteCyclesByModule(moduleID string) int {
	removed := 0
	for id, c := range tx.state.cycles {
		if c.ModuleID != moduleID {
			continue
		}
		delete(tx.state.cycles, id)
		tx.recordChange(Change{Entity: domain.EntityCultivationCycle, Action: domain.ActionDelete, Before: cloneCycle(c)})
		removed++
	}
	return removed
}

// Cutting operations ---------------------------------------------------------

// CreateCuttingOperation stores a new cutting operation.
func (tx *transaction) CreateCuttingOperation(o CuttingOperation) (CuttingOperation, error) {
	if o.ID == "" {
		o.ID = tx.store.newID()
	}
	if _, exists := tx.state.operations[o.ID]; exists {
		return CuttingOperation{}, fmt.Errorf("cutting operation %q already exists", o.ID)
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.operations[o.ID] = cloneOperation(o)
	tx.recordChange(Change{Entity: domain.EntityCuttingOperation, Action: domain.ActionCreate, After: cloneOperation(o)})
	return cloneOperation(o), nil
}

// UpdateCuttingOperation mutates a cutting operation.
func (tx *transaction) UpdateCuttingOperation(id string, mutator func(*CuttingOperation) error) (CuttingOperation, error) {
	current, ok := tx.state.operations[id]
	if !ok {
		return CuttingOperation{}, fmt.Errorf("cutting operation %q not found", id)
	}
	before := cloneOperation(current)
	if err := mutator(&current); err != nil {
		return CuttingOperation{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.operations[id] = cloneOperation(current)
	tx.recordChange(Change{Entity: domain.EntityCuttingOperation, Action: domain.ActionUpdate, Before: before, After: cloneOperation(current)})
	return cloneOperation(current), nil
}

// DeleteCuttingOperation removes a cutting operation.
func (tx *transaction) DeleteCuttingOperation(id string) error {
	current, ok := tx.state.operations[id]
	if !ok {
		return fmt.Errorf("cutting operation %q not found", id)
	}
	delete(tx.state.operations, id)
	tx.recordChange(Change{Entity: domain.EntityCuttingOperation, Action: domain.ActionDelete, Before: cloneOperation(current)})
	return nil
}

// Stock ledgers --------------------------------------------------------------

// AppendStockMovement appends an entry to the on-site stock ledger.
func (tx *transaction) AppendStockMovement(m StockMovement) (StockMovement, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.stockMovements[m.ID]; exists {
		return StockMovement{}, fmt.Errorf("stock movement %q already exists", m.ID)
	}
	tx.state.stockMovements[m.ID] = cloneStockMovement(m)
	tx.recordChange(Change{Entity: domain.EntityStockMovement, Action: domain.ActionCreate, After: cloneStockMovement(m)})
	return cloneStockMovement(m), nil
}

// DeleteStockMovementsByRelated removes every site movement carrying the
// given related id and returns the number removed.
func (tx *transaction) DeleteStockMovementsByRelated(relatedID string) int {
	removed := 0
	for id, m := range tx.state.stockMovements {
		if m.RelatedID == nil || *m.RelatedID != relatedID {
			continue
		}
		delete(tx.state.stockMovements, id)
		tx.recordChange(Change{Entity: domain.EntityStockMovement, Action: domain.ActionDelete, Before: cloneStockMovement(m)})
		removed++
	}
	return removed
}

// AppendPressedStockMovement appends an entry to the warehouse ledger.
func (tx *transaction) AppendPressedStockMovement(m PressedStockMovement) (PressedStockMovement, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	if _, exists := tx.state.pressedMovement[m.ID]; exists {
		return PressedStockMovement{}, fmt.Errorf("pressed stock movement %q already exists", m.ID)
	}
	tx.state.pressedMovement[m.ID] = clonePressedMovement(m)
	tx.recordChange(Change{Entity: domain.EntityPressedStockMovement, Action: domain.ActionCreate, After: clonePressedMovement(m)})
	return clonePressedMovement(m), nil
}

// DeletePressedStockMovementsByRelated removes every warehouse movement
// carrying the given related id and returns the number removed.
func (tx *transaction) DeletePressedStockMovementsByRelated(relatedID string) int {
	removed := 0
	for id, m := range tx.state.pressedMovement {
		if m.RelatedID == nil || *m.RelatedID != relatedID {
			continue
		}
		delete(tx.state.pressedMovement, id)
		tx.recordChange(Change{Entity: domain.EntityPressedStockMovement, Action: domain.ActionDelete, Before: clonePressedMovement(m)})
		removed++
	}
	return removed
}

// Credit ledger --------------------------------------------------------------

// AppendFarmerCredit appends a credit record.
func (tx *transaction) AppendFarmerCredit(c FarmerCredit) (FarmerCredit, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.credits[c.ID]; exists {
		return FarmerCredit{}, fmt.Errorf("farmer credit %q already exists", c.ID)
	}
	tx.state.credits[c.ID] = cloneCredit(c)
	tx.recordChange(Change{Entity: domain.EntityFarmerCredit, Action: domain.ActionCreate, After: cloneCredit(c)})
	return cloneCredit(c), nil
}

// DeleteCreditsByOperation removes every credit generated by a cutting
// operation and returns the number removed.
func (tx *transaction) DeleteCreditsByOperation(operationID string) int {
	removed := 0
	for id, c := range tx.state.credits {
		if c.RelatedOperationID == nil || *c.RelatedOperationID != operationID {
			continue
		}
		delete(tx.state.credits, id)
		tx.recordChange(Change{Entity: domain.EntityFarmerCredit, Action: domain.ActionDelete, Before: cloneCredit(c)})
		removed++
	}
	return removed
}

// AppendRepayment appends a repayment record.
func (tx *transaction) AppendRepayment(r Repayment) (Repayment, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state.repayments[r.ID]; exists {
		return Repayment{}, fmt.Errorf("repayment %q already exists", r.ID)
	}
	tx.state.repayments[r.ID] = r
	tx.recordChange(Change{Entity: domain.EntityRepayment, Action: domain.ActionCreate, After: r})
	return r, nil
}

// Deliveries, pressing, export, transfers ------------------------------------

// CreateFarmerDelivery stores a delivery slip.
func (tx *transaction) CreateFarmerDelivery(d FarmerDelivery) (FarmerDelivery, error) {
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.deliveries[d.ID]; exists {
		return FarmerDelivery{}, fmt.Errorf("farmer delivery %q already exists", d.ID)
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.deliveries[d.ID] = d
	tx.recordChange(Change{Entity: domain.EntityFarmerDelivery, Action: domain.ActionCreate, After: d})
	return d, nil
}

// DeleteFarmerDelivery removes a delivery slip.
func (tx *transaction) DeleteFarmerDelivery(id string) error {
	current, ok := tx.state.deliveries[id]
	if !ok {
		return fmt.Errorf("farmer delivery %q not found", id)
	}
	delete(tx.state.deliveries, id)
	tx.recordChange(Change{Entity: domain.EntityFarmerDelivery, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreatePressingSlip stores a pressing slip.
func (tx *transaction) CreatePressingSlip(p PressingSlip) (PressingSlip, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.pressingSlips[p.ID]; exists {
		return PressingSlip{}, fmt.Errorf("pressing slip %q already exists", p.ID)
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.pressingSlips[p.ID] = cloneSlip(p)
	tx.recordChange(Change{Entity: domain.EntityPressingSlip, Action: domain.ActionCreate, After: cloneSlip(p)})
	return cloneSlip(p), nil
}

// UpdatePressingSlip mutates a pressing slip.
func (tx *transaction) UpdatePressingSlip(id string, mutator func(*PressingSlip) error) (PressingSlip, error) {
	current, ok := tx.state.pressingSlips[id]
	if !ok {
		return PressingSlip{}, fmt.Errorf("pressing slip %q not found", id)
	}
	before := cloneSlip(current)
	if err := mutator(&current); err != nil {
		return PressingSlip{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.pressingSlips[id] = cloneSlip(current)
	tx.recordChange(Change{Entity: domain.EntityPressingSlip, Action: domain.ActionUpdate, Before: before, After: cloneSlip(current)})
	return cloneSlip(current), nil
}

// DeletePressingSlip removes a pressing slip.
func (tx *transaction) DeletePressingSlip(id string) error {
	current, ok := tx.state.pressingSlips[id]
	if !ok {
		return fmt.Errorf("pressing slip %q not found", id)
	}
	delete(tx.state.pressingSlips, id)
	tx.recordChange(Change{Entity: domain.EntityPressingSlip, Action: domain.ActionDelete, Before: cloneSlip(current)})
	return nil
}

// CreateExportDocument stores an export document.
func (tx *transaction) CreateExportDocument(d ExportDocument) (ExportDocument, error) {
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.exportDocs[d.ID]; exists {
		return ExportDocument{}, fmt.Errorf("export document %q already exists", d.ID)
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.exportDocs[d.ID] = cloneExportDoc(d)
	tx.recordChange(Change{Entity: domain.EntityExportDocument, Action: domain.ActionCreate, After: cloneExportDoc(d)})
	return cloneExportDoc(d), nil
}

// UpdateExportDocument mutates an export document.
func (tx *transaction) UpdateExportDocument(id string, mutator func(*ExportDocument) error) (ExportDocument, error) {
	current, ok := tx.state.exportDocs[id]
	if !ok {
		return ExportDocument{}, fmt.Errorf("export document %q not found", id)
	}
	before := cloneExportDoc(current)
	if err := mutator(&current); err != nil {
		return ExportDocument{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.exportDocs[id] = cloneExportDoc(current)
	tx.recordChange(Change{Entity: domain.EntityExportDocument, Action: domain.ActionUpdate, Before: before, After: cloneExportDoc(current)})
	return cloneExportDoc(current), nil
}

// DeleteExportDocument removes an export document.
func (tx *transaction) DeleteExportDocument(id string) error {
	current, ok := tx.state.exportDocs[id]
	if !ok {
		return fmt.Errorf("export document %q not found", id)
	}
	delete(tx.state.exportDocs, id)
	tx.recordChange(Change{Entity: domain.EntityExportDocument, Action: domain.ActionDelete, Before: cloneExportDoc(current)})
	return nil
}

// CreateSiteTransfer stores a site transfer.
func (tx *transaction) CreateSiteTransfer(t SiteTransfer) (SiteTransfer, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.transfers[t.ID]; exists {
		return SiteTransfer{}, fmt.Errorf("site transfer %q already exists", t.ID)
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.transfers[t.ID] = cloneTransfer(t)
	tx.recordChange(Change{Entity: domain.EntitySiteTransfer, Action: domain.ActionCreate, After: cloneTransfer(t)})
	return cloneTransfer(t), nil
}

// UpdateSiteTransfer mutates a site transfer.
func (tx *transaction) UpdateSiteTransfer(id string, mutator func(*SiteTransfer) error) (SiteTransfer, error) {
	current, ok := tx.state.transfers[id]
	if !ok {
		return SiteTransfer{}, fmt.Errorf("site transfer %q not found", id)
	}
	before := cloneTransfer(current)
	if err := mutator(&current); err != nil {
		return SiteTransfer{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.transfers[id] = cloneTransfer(current)
	tx.recordChange(Change{Entity: domain.EntitySiteTransfer, Action: domain.ActionUpdate, Before: before, After: cloneTransfer(current)})
	return cloneTransfer(current), nil
}

// View accessors -------------------------------------------------------------

func (v transactionView) ListSites() []Site {
	out := make([]Site, 0, len(v.state.sites))
	for _, s := range v.state.sites {
		out = append(out, cloneSite(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListFarmers() []Farmer {
	out := make([]Farmer, 0, len(v.state.farmers))
	for _, f := range v.state.farmers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListServiceProviders() []ServiceProvider {
	out := make([]ServiceProvider, 0, len(v.state.providers))
	for _, p := range v.state.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListSeaweedTypes() []SeaweedType {
	out := make([]SeaweedType, 0, len(v.state.seaweedTypes))
	for _, t := range v.state.seaweedTypes {
		out = append(out, cloneSeaweedType(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListCreditTypes() []CreditType {
	out := make([]CreditType, 0, len(v.state.creditTypes))
	for _, t := range v.state.creditTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListModules() []Module {
	out := make([]Module, 0, len(v.state.modules))
	for _, m := range v.state.modules {
		out = append(out, cloneModule(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (v transactionView) ListCycles() []CultivationCycle {
	out := make([]CultivationCycle, 0, len(v.state.cycles))
	for _, c := range v.state.cycles {
		out = append(out, cloneCycle(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PlantingDate.Equal(out[j].PlantingDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].PlantingDate.Before(out[j].PlantingDate)
	})
	return out
}

func (v transactionView) ListCuttingOperations() []CuttingOperation {
	out := make([]CuttingOperation, 0, len(v.state.operations))
	for _, o := range v.state.operations {
		out = append(out, cloneOperation(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (v transactionView) ListStockMovements() []StockMovement {
	out := make([]StockMovement, 0, len(v.state.stockMovements))
	for _, m := range v.state.stockMovements {
		out = append(out, cloneStockMovement(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (v transactionView) ListPressedStockMovements() []PressedStockMovement {
	out := make([]PressedStockMovement, 0, len(v.state.pressedMovement))
	for _, m := range v.state.pressedMovement {
		out = append(out, clonePressedMovement(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (v transactionView) ListFarmerCredits() []FarmerCredit {
	out := make([]FarmerCredit, 0, len(v.state.credits))
	for _, c := range v.state.credits {
		out = append(out, cloneCredit(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (v transactionView) ListRepayments() []Repayment {
	out := make([]Repayment, 0, len(v.state.repayments))
	for _, r := range v.state.repayments {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (v transactionView) ListFarmerDeliveries() []FarmerDelivery {
	out := make([]FarmerDelivery, 0, len(v.state.deliveries))
	for _, d := range v.state.deliveries {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (v transactionView) ListPressingSlips() []PressingSlip {
	out := make([]PressingSlip, 0, len(v.state.pressingSlips))
	for _, p := range v.state.pressingSlips {
		out = append(out, cloneSlip(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (v transactionView) ListExportDocuments() []ExportDocument {
	out := make([]ExportDocument, 0, len(v.state.exportDocs))
	for _, d := range v.state.exportDocs {
		out = append(out, cloneExportDoc(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (v transactionView) ListSiteTransfers() []SiteTransfer {
	out := make([]SiteTransfer, 0, len(v.state.transfers))
	for _, t := range v.state.transfers {
		out = append(out, cloneTransfer(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func (v transactionView) FindSite(id string) (Site, bool) {
	s, ok := v.state.sites[id]
	if !ok {
		return Site{}, false
	}
	return cloneSite(s), true
}

func (v transactionView) FindFarmer(id string) (Farmer, bool) {
	f, ok := v.state.farmers[id]
	return f, ok
}

func (v transactionView) FindServiceProvider(id string) (ServiceProvider, bool) {
	p, ok := v.state.providers[id]
	return p, ok
}

func (v transactionView) FindSeaweedType(id string) (SeaweedType, bool) {
	t, ok := v.state.seaweedTypes[id]
	if !ok {
		return SeaweedType{}, false
	}
	return cloneSeaweedType(t), true
}

func (v transactionView) FindModule(id string) (Module, bool) {
	m, ok := v.state.modules[id]
	if !ok {
		return Module{}, false
	}
	return cloneModule(m), true
}

func (v transactionView) FindCycle(id string) (CultivationCycle, bool) {
	c, ok := v.state.cycles[id]
	if !ok {
		return CultivationCycle{}, false
	}
	return cloneCycle(c), true
}

func (v transactionView) FindCycleByOperation(operationID string) (CultivationCycle, bool) {
	for _, c := range v.state.cycles {
		if c.CuttingOperationID != nil && *c.CuttingOperationID == operationID {
			return cloneCycle(c), true
		}
	}
	return CultivationCycle{}, false
}

func (v transactionView) FindCuttingOperation(id string) (CuttingOperation, bool) {
	o, ok := v.state.operations[id]
	if !ok {
		return CuttingOperation{}, false
	}
	return cloneOperation(o), true
}

func (v transactionView) FindPressingSlip(id string) (PressingSlip, bool) {
	p, ok := v.state.pressingSlips[id]
	if !ok {
		return PressingSlip{}, false
	}
	return cloneSlip(p), true
}

func (v transactionView) FindExportDocument(id string) (ExportDocument, bool) {
	d, ok := v.state.exportDocs[id]
	if !ok {
		return ExportDocument{}, false
	}
	return cloneExportDoc(d), true
}

func (v transactionView) FindSiteTransfer(id string) (SiteTransfer, bool) {
	t, ok := v.state.transfers[id]
	if !ok {
		return SiteTransfer{}, false
	}
	return cloneTransfer(t), true
}

func (v transactionView) FindFarmerDelivery(id string) (FarmerDelivery, bool) {
	d, ok := v.state.deliveries[id]
	return d, ok
}
