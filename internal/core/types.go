// Package core exposes the transactional service surface of the cultivation
// and inventory engine: one method per user-facing verb, each running its
// cascade inside a single store transaction.
package core

import "github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"

type (
	EntityType           = domain.EntityType
	ModuleStatus         = domain.ModuleStatus
	Severity             = domain.Severity
	Base                 = domain.Base
	Site                 = domain.Site
	Zone                 = domain.Zone
	Farmer               = domain.Farmer
	ServiceProvider      = domain.ServiceProvider
	SeaweedType          = domain.SeaweedType
	CreditType           = domain.CreditType
	Module               = domain.Module
	CultivationCycle     = domain.CultivationCycle
	CuttingOperation     = domain.CuttingOperation
	ModuleCut            = domain.ModuleCut
	StockMovement        = domain.StockMovement
	PressedStockMovement = domain.PressedStockMovement
	FarmerCredit         = domain.FarmerCredit
	Repayment            = domain.Repayment
	FarmerDelivery       = domain.FarmerDelivery
	DeliveryDestination  = domain.DeliveryDestination
	PressingSlip         = domain.PressingSlip
	ExportDocument       = domain.ExportDocument
	SiteTransfer         = domain.SiteTransfer
	TransferStatus       = domain.TransferStatus
	TransferHistoryEntry = domain.TransferHistoryEntry
	Change               = domain.Change
	Action               = domain.Action
	Violation            = domain.Violation
	Result               = domain.Result
	RuleViolationError   = domain.RuleViolationError
	Rule                 = domain.Rule
	RulesEngine          = domain.RulesEngine
	Transaction          = domain.Transaction
	TransactionView      = domain.TransactionView
	PersistentStore      = domain.PersistentStore
	Snapshot             = domain.Snapshot
	Window               = domain.Window
	StockBalance         = domain.StockBalance
)

const (
	EntitySite                 = domain.EntitySite
	EntityFarmer               = domain.EntityFarmer
	EntityServiceProvider      = domain.EntityServiceProvider
	EntitySeaweedType          = domain.EntitySeaweedType
	EntityCreditType           = domain.EntityCreditType
	EntityModule               = domain.EntityModule
	EntityCultivationCycle     = domain.EntityCultivationCycle
	EntityCuttingOperation     = domain.EntityCuttingOperation
	EntityStockMovement        = domain.EntityStockMovement
	EntityPressedStockMovement = domain.EntityPressedStockMovement
	EntityFarmerCredit         = domain.EntityFarmerCredit
	EntityRepayment            = domain.EntityRepayment
	EntityFarmerDelivery       = domain.EntityFarmerDelivery
	EntityPressingSlip         = domain.EntityPressingSlip
	EntityExportDocument       = domain.EntityExportDocument
	EntitySiteTransfer         = domain.EntitySiteTransfer
)

const (
	StatusCreated     = domain.StatusCreated
	StatusFree        = domain.StatusFree
	StatusAssigned    = domain.StatusAssigned
	StatusCutting     = domain.StatusCutting
	StatusPlanted     = domain.StatusPlanted
	StatusGrowing     = domain.StatusGrowing
	StatusHarvested   = domain.StatusHarvested
	StatusDrying      = domain.StatusDrying
	StatusBagging     = domain.StatusBagging
	StatusBagged      = domain.StatusBagged
	StatusInStock     = domain.StatusInStock
	StatusExported    = domain.StatusExported
	StatusMaintenance = domain.StatusMaintenance
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(MovementShapeRule())
	engine.Register(ModuleAssignmentRule())
	engine.Register(CycleStatusOrderRule())
	return engine
}
