package domain

import "context"

// Transaction exposes the domain operations that a persistence
// implementation must support within an atomic scope. Mutations record
// Change entries; the rules engine evaluates the full change set before
// commit.
type Transaction interface {
	Snapshot() TransactionView

	CreateSite(Site) (Site, error)
	CreateFarmer(Farmer) (Farmer, error)
	CreateServiceProvider(ServiceProvider) (ServiceProvider, error)
	CreateSeaweedType(SeaweedType) (SeaweedType, error)
	UpdateSeaweedType(id string, mutator func(*SeaweedType) error) (SeaweedType, error)
	CreateCreditType(CreditType) (CreditType, error)

	CreateModule(Module) (Module, error)
	UpdateModule(id string, mutator func(*Module) error) (Module, error)
	DeleteModule(id string) error

	CreateCycle(CultivationCycle) (CultivationCycle, error)
	UpdateCycle(id string, mutator func(*CultivationCycle) error) (CultivationCycle, error)
	DeleteCycle(id string) error
	DeleteCyclesByModule(moduleID string) int

	CreateCuttingOperation(CuttingOperation) (CuttingOperation, error)
	UpdateCuttingOperation(id string, mutator func(*CuttingOperation) error) (CuttingOperation, error)
	DeleteCuttingOperation(id string) error

	AppendStockMovement(StockMovement) (StockMovement, error)
	DeleteStockMovementsByRelated(relatedID string) int
	AppendPressedStockMovement(PressedStockMovement) (PressedStockMovement, error)
	DeletePressedStockMovementsByRelated(relatedID string) int

	AppendFarmerCredit(FarmerCredit) (FarmerCredit, error)
	DeleteCreditsByOperation(operationID string) int
	AppendRepayment(Repayment) (Repayment, error)

	CreateFarmerDelivery(FarmerDelivery) (FarmerDelivery, error)
	DeleteFarmerDelivery(id string) error
	CreatePressingSlip(PressingSlip) (PressingSlip, error)
	UpdatePressingSlip(id string, mutator func(*PressingSlip) error) (PressingSlip, error)
	DeletePressingSlip(id string) error
	CreateExportDocument(ExportDocument) (ExportDocument, error)
	UpdateExportDocument(id string, mutator func(*ExportDocument) error) (ExportDocument, error)
	DeleteExportDocument(id string) error
	CreateSiteTransfer(SiteTransfer) (SiteTransfer, error)
	UpdateSiteTransfer(id string, mutator func(*SiteTransfer) error) (SiteTransfer, error)

	// RecordGap notes a referential integrity gap on the transaction result
	// without aborting the cascade.
	RecordGap(Violation)
}

// TransactionView provides read-only access to snapshot data for rules and
// reconstruction queries.
type TransactionView interface {
	ListSites() []Site
	ListFarmers() []Farmer
	ListServiceProviders() []ServiceProvider
	ListSeaweedTypes() []SeaweedType
	ListCreditTypes() []CreditType
	ListModules() []Module
	ListCycles() []CultivationCycle
	ListCuttingOperations() []CuttingOperation
	ListStockMovements() []StockMovement
	ListPressedStockMovements() []PressedStockMovement
	ListFarmerCredits() []FarmerCredit
	ListRepayments() []Repayment
	ListFarmerDeliveries() []FarmerDelivery
	ListPressingSlips() []PressingSlip
	ListExportDocuments() []ExportDocument
	ListSiteTransfers() []SiteTransfer

	FindSite(id string) (Site, bool)
	FindFarmer(id string) (Farmer, bool)
	FindServiceProvider(id string) (ServiceProvider, bool)
	FindSeaweedType(id string) (SeaweedType, bool)
	FindModule(id string) (Module, bool)
	FindCycle(id string) (CultivationCycle, bool)
	// FindCycleByOperation returns the cycle referencing a cutting operation.
	// At most one cycle references a given operation.
	FindCycleByOperation(operationID string) (CultivationCycle, bool)
	FindCuttingOperation(id string) (CuttingOperation, bool)
	FindPressingSlip(id string) (PressingSlip, bool)
	FindExportDocument(id string) (ExportDocument, bool)
	FindSiteTransfer(id string) (SiteTransfer, bool)
	FindFarmerDelivery(id string) (FarmerDelivery, bool)
}

// Snapshot is a wholesale copy of every collection, the unit the external
// sync collaborator pushes and pulls. Importing a snapshot replaces local
// state last-writer-wins; the engine performs no conflict resolution.
type Snapshot struct {
	Sites                 []Site                 `json:"sites"`
	Farmers               []Farmer               `json:"farmers"`
	ServiceProviders      []ServiceProvider      `json:"serviceProviders"`
	SeaweedTypes          []SeaweedType          `json:"seaweedTypes"`
	CreditTypes           []CreditType           `json:"creditTypes"`
	Modules               []Module               `json:"modules"`
	CultivationCycles     []CultivationCycle     `json:"cultivationCycles"`
	CuttingOperations     []CuttingOperation     `json:"cuttingOperations"`
	StockMovements        []StockMovement        `json:"stockMovements"`
	PressedStockMovements []PressedStockMovement `json:"pressedStockMovements"`
	FarmerCredits         []FarmerCredit         `json:"farmerCredits"`
	Repayments            []Repayment            `json:"repayments"`
	FarmerDeliveries      []FarmerDelivery       `json:"farmerDeliveries"`
	PressingSlips         []PressingSlip         `json:"pressingSlips"`
	ExportDocuments       []ExportDocument       `json:"exportDocuments"`
	SiteTransfers         []SiteTransfer         `json:"siteTransfers"`
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	ExportState() Snapshot
	ImportState(Snapshot)
}
