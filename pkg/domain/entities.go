// Package domain defines the persistent entities, value types, ledger
// calculators, and rule evaluation primitives used by the cultivation and
// inventory engine.
package domain

import "time"

// EntityType identifies the type of record stored in the engine.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntitySite identifies a farm site record.
	EntitySite EntityType = "site"
	// EntityFarmer identifies a farmer record.
	EntityFarmer EntityType = "farmer"
	// EntityServiceProvider identifies a service provider record.
	EntityServiceProvider EntityType = "service_provider"
	// EntitySeaweedType identifies a seaweed type record.
	EntitySeaweedType EntityType = "seaweed_type"
	// EntityCreditType identifies a credit type record.
	EntityCreditType EntityType = "credit_type"
	// EntityModule identifies a physical cultivation module record.
	EntityModule EntityType = "module"
	// EntityCultivationCycle identifies a planting-to-export cycle record.
	EntityCultivationCycle EntityType = "cultivation_cycle"
	// EntityCuttingOperation identifies a cutting operation record.
	EntityCuttingOperation EntityType = "cutting_operation"
	// EntityStockMovement identifies an on-site stock ledger entry.
	EntityStockMovement EntityType = "stock_movement"
	// EntityPressedStockMovement identifies a processing-warehouse ledger entry.
	EntityPressedStockMovement EntityType = "pressed_stock_movement"
	// EntityFarmerCredit identifies a farmer credit record.
	EntityFarmerCredit EntityType = "farmer_credit"
	// EntityRepayment identifies a credit repayment record.
	EntityRepayment EntityType = "repayment"
	// EntityFarmerDelivery identifies a farmer delivery slip record.
	EntityFarmerDelivery EntityType = "farmer_delivery"
	// EntityPressingSlip identifies a pressing slip record.
	EntityPressingSlip EntityType = "pressing_slip"
	// EntityExportDocument identifies an export document record.
	EntityExportDocument EntityType = "export_document"
	// EntitySiteTransfer identifies an inter-site transfer record.
	EntitySiteTransfer EntityType = "site_transfer"
)

// ModuleStatus represents the canonical module lifecycle states. A module
// loops through the cultivation sequence and returns to FREE when its cycle
// reaches stock.
type ModuleStatus string

// Canonical module statuses, in forward order. MAINTENANCE is a side state
// reachable from any point and returning to FREE. GROWING is never stored on
// a module; it is derived for display only (see DisplayStatus).
const (
	StatusCreated     ModuleStatus = "CREATED"
	StatusFree        ModuleStatus = "FREE"
	StatusAssigned    ModuleStatus = "ASSIGNED"
	StatusCutting     ModuleStatus = "CUTTING"
	StatusPlanted     ModuleStatus = "PLANTED"
	StatusGrowing     ModuleStatus = "GROWING"
	StatusHarvested   ModuleStatus = "HARVESTED"
	StatusDrying      ModuleStatus = "DRYING"
	StatusBagging     ModuleStatus = "BAGGING"
	StatusBagged      ModuleStatus = "BAGGED"
	StatusInStock     ModuleStatus = "IN_STOCK"
	StatusExported    ModuleStatus = "EXPORTED"
	StatusMaintenance ModuleStatus = "MAINTENANCE"
)

// StockMovementType enumerates the on-site stock ledger movement kinds.
type StockMovementType string

// On-site ledger movement kinds. Each record carries either the in pair or
// the out pair, never both.
const (
	StockInitial       StockMovementType = "INITIAL_STOCK"
	StockBaggingIn     StockMovementType = "BAGGING_TRANSFER"
	StockExportOut     StockMovementType = "EXPORT_OUT"
	StockFarmerIn      StockMovementType = "FARMER_DELIVERY"
	StockPressingOut   StockMovementType = "PRESSING_OUT"
	StockPressingIn    StockMovementType = "PRESSING_IN"
	StockTransferIn    StockMovementType = "SITE_TRANSFER_IN"
	StockTransferOut   StockMovementType = "SITE_TRANSFER_OUT"
	StockAdjustmentIn  StockMovementType = "ADJUSTMENT_IN"
	StockAdjustmentOut StockMovementType = "ADJUSTMENT_OUT"
)

// PressedStockMovementType enumerates the processing-warehouse ledger kinds.
// The warehouse tracks two sub-ledgers per seaweed type: bulk (unpressed)
// and pressed, fed by disjoint kinds (see WarehouseBalance).
type PressedStockMovementType string

// Warehouse ledger movement kinds.
const (
	PressedInitial        PressedStockMovementType = "INITIAL_STOCK"
	PressedPressingIn     PressedStockMovementType = "PRESSING_IN"
	PressedExportOut      PressedStockMovementType = "EXPORT_OUT"
	PressedReturnToSite   PressedStockMovementType = "RETURN_TO_SITE"
	PressedBulkInFromSite PressedStockMovementType = "BULK_IN_FROM_SITE"
	PressedConsumption    PressedStockMovementType = "PRESSING_CONSUMPTION"
	PressedFarmerIn       PressedStockMovementType = "FARMER_DELIVERY"
	PressedAdjustmentIn   PressedStockMovementType = "ADJUSTMENT_IN"
	PressedAdjustmentOut  PressedStockMovementType = "ADJUSTMENT_OUT"
)

// TransferStatus enumerates inter-site transfer workflow states.
type TransferStatus string

// Canonical site transfer statuses.
const (
	TransferAwaitingOutbound TransferStatus = "AWAITING_OUTBOUND"
	TransferInTransit        TransferStatus = "IN_TRANSIT"
	TransferPendingReception TransferStatus = "PENDING_RECEPTION"
	TransferCompleted        TransferStatus = "COMPLETED"
	TransferCancelled        TransferStatus = "CANCELLED"
)

// WarehouseID is the synthetic site id under which processing-warehouse
// movements are recorded.
const WarehouseID = "pressing-warehouse"

// CreditTypeCuttingService is the credit type id used for credits generated
// by cutting operations.
const CreditTypeCuttingService = "ct-cutting-service"

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all document records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Zone is a named area within a site.
type Zone struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Site represents a physical farm location.
type Site struct {
	Base
	Name     string `json:"name"`
	Code     string `json:"code"`
	Location string `json:"location"`
	Zones    []Zone `json:"zones"`
}

// Farmer represents a farmer who can be assigned modules and carry credits.
type Farmer struct {
	Base
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Code      string `json:"code"`
	SiteID    string `json:"siteId"`
	Phone     string `json:"phone,omitempty"`
}

// FullName joins the farmer's first and last names for history notes.
func (f Farmer) FullName() string {
	if f.FirstName == "" {
		return f.LastName
	}
	return f.FirstName + " " + f.LastName
}

// ServiceProvider performs paid services such as cutting operations.
type ServiceProvider struct {
	Base
	Name        string `json:"name"`
	ServiceType string `json:"serviceType"`
	Phone       string `json:"phone,omitempty"`
}

// SeaweedPrice is one dated wet/dry price pair in a seaweed type's history.
type SeaweedPrice struct {
	Date     time.Time `json:"date"`
	WetPrice float64   `json:"wetPrice"`
	DryPrice float64   `json:"dryPrice"`
}

// SeaweedType is a cultivated material type with its price history.
type SeaweedType struct {
	Base
	Name         string         `json:"name"`
	WetPrice     float64        `json:"wetPrice"`
	DryPrice     float64        `json:"dryPrice"`
	PriceHistory []SeaweedPrice `json:"priceHistory"`
}

// CreditType categorises farmer credits for the credit ledger.
type CreditType struct {
	Base
	Name           string `json:"name"`
	Unit           string `json:"unit,omitempty"`
	IsDirectAmount bool   `json:"isDirectAmount"`
}

// ModuleStatusEntry is one entry in a module's append-only status history.
type ModuleStatusEntry struct {
	Status ModuleStatus `json:"status"`
	Date   time.Time    `json:"date"`
	Notes  string       `json:"notes,omitempty"`
}

// Module is a physical cultivation unit (a set of lines) at a site/zone,
// assignable to at most one farmer at a time. Its status history is
// append-only; the latest entry defines the current status.
type Module struct {
	Base
	Code          string              `json:"code"`
	SiteID        string              `json:"siteId"`
	ZoneID        string              `json:"zoneId"`
	FarmerID      *string             `json:"farmerId,omitempty"`
	Lines         int                 `json:"lines"`
	StatusHistory []ModuleStatusEntry `json:"statusHistory"`
}

// CurrentStatus returns the latest status history entry, or FREE when the
// history is empty.
func (m Module) CurrentStatus() ModuleStatus {
	if len(m.StatusHistory) == 0 {
		return StatusFree
	}
	return m.StatusHistory[len(m.StatusHistory)-1].Status
}

// AppendStatus appends a status entry to the module's history.
func (m *Module) AppendStatus(status ModuleStatus, date time.Time, notes string) {
	m.StatusHistory = append(m.StatusHistory, ModuleStatusEntry{Status: status, Date: date, Notes: notes})
}

// AmendPlantingTimestamp rewrites the date of the last PLANTED entry and its
// paired ASSIGNED entry in place. This is the sole permitted in-place
// mutation of status history, used when only the planting date of a cutting
// operation changes. It returns true when any entry was amended.
func (m *Module) AmendPlantingTimestamp(date time.Time) bool {
	planted := -1
	for i := len(m.StatusHistory) - 1; i >= 0; i-- {
		if m.StatusHistory[i].Status == StatusPlanted {
			planted = i
			break
		}
	}
	if planted < 0 || m.StatusHistory[planted].Date.Equal(date) {
		return false
	}
	m.StatusHistory[planted].Date = date
	for i := planted; i >= 0; i-- {
		if m.StatusHistory[i].Status == StatusAssigned {
			m.StatusHistory[i].Date = date
			break
		}
	}
	return true
}

// CultivationCycle is one planting-to-export lifecycle instance on a module.
// Its stored status advances monotonically along the harvest-relevant subset
// of the module sequence; harvest-dependent fields are set only once
// HarvestDate is set.
type CultivationCycle struct {
	Base
	ModuleID                 string       `json:"moduleId"`
	SeaweedTypeID            string       `json:"seaweedTypeId"`
	PlantingDate             time.Time    `json:"plantingDate"`
	Status                   ModuleStatus `json:"status"`
	InitialWeight            float64      `json:"initialWeight"`
	CuttingOperationID       *string      `json:"cuttingOperationId,omitempty"`
	LinesPlanted             int          `json:"linesPlanted,omitempty"`
	HarvestDate              *time.Time   `json:"harvestDate,omitempty"`
	HarvestedWeight          *float64     `json:"harvestedWeight,omitempty"`
	LinesHarvested           int          `json:"linesHarvested,omitempty"`
	CuttingsTakenAtHarvestKg float64      `json:"cuttingsTakenAtHarvestKg,omitempty"`
	DryingStartDate          *time.Time   `json:"dryingStartDate,omitempty"`
	DryingCompletionDate     *time.Time   `json:"dryingCompletionDate,omitempty"`
	ActualDryWeightKg        *float64     `json:"actualDryWeightKg,omitempty"`
	BaggingStartDate         *time.Time   `json:"baggingStartDate,omitempty"`
	BaggedDate               *time.Time   `json:"baggedDate,omitempty"`
	BaggedBagsCount          int          `json:"baggedBagsCount,omitempty"`
	BaggedWeightKg           float64      `json:"baggedWeightKg,omitempty"`
	StockDate                *time.Time   `json:"stockDate,omitempty"`
	ExportDate               *time.Time   `json:"exportDate,omitempty"`
}

// StatusEventDate returns the most specific date available for a cycle's
// current status, preferring export > stock > bagging > drying > harvest and
// falling back to now.
func (c CultivationCycle) StatusEventDate(now time.Time) time.Time {
	for _, d := range []*time.Time{c.ExportDate, c.StockDate, c.BaggedDate, c.BaggingStartDate, c.DryingStartDate, c.HarvestDate} {
		if d != nil {
			return *d
		}
	}
	return now
}

// ModuleCut records the lines cut on one module during a cutting operation.
type ModuleCut struct {
	ModuleID string `json:"moduleId"`
	LinesCut int    `json:"linesCut"`
}

// CuttingOperation is a service transaction that harvests planting material
// and plants a target module, optionally crediting a beneficiary farmer with
// Σ linesCut × unitPrice.
type CuttingOperation struct {
	Base
	Date                time.Time   `json:"date"`
	SiteID              string      `json:"siteId"`
	ServiceProviderID   string      `json:"serviceProviderId"`
	SeaweedTypeID       string      `json:"seaweedTypeId"`
	ModuleCuts          []ModuleCut `json:"moduleCuts"`
	UnitPrice           float64     `json:"unitPrice"`
	TotalAmount         float64     `json:"totalAmount"`
	IsPaid              bool        `json:"isPaid"`
	PaymentDate         *time.Time  `json:"paymentDate,omitempty"`
	BeneficiaryFarmerID *string     `json:"beneficiaryFarmerId,omitempty"`
	Notes               string      `json:"notes,omitempty"`
}

// CutTotal returns Σ linesCut × unitPrice over the operation's module cuts.
func (o CuttingOperation) CutTotal() float64 {
	total := 0.0
	for _, mc := range o.ModuleCuts {
		total += float64(mc.LinesCut) * o.UnitPrice
	}
	return total
}

// PrimaryModuleID returns the first cut module id, the module the dependent
// cultivation cycle is planted on.
func (o CuttingOperation) PrimaryModuleID() string {
	if len(o.ModuleCuts) == 0 {
		return ""
	}
	return o.ModuleCuts[0].ModuleID
}

// StockMovement is one signed entry in the on-site stock ledger. Exactly the
// in pair or the out pair is populated; reports depend on exact field
// presence, so absent components stay absent on the wire.
type StockMovement struct {
	ID            string            `json:"id"`
	Date          time.Time         `json:"date"`
	SiteID        string            `json:"siteId"`
	SeaweedTypeID string            `json:"seaweedTypeId"`
	Type          StockMovementType `json:"type"`
	Designation   string            `json:"designation"`
	InKg          *float64          `json:"inKg,omitempty"`
	InBags        *int              `json:"inBags,omitempty"`
	OutKg         *float64          `json:"outKg,omitempty"`
	OutBags       *int              `json:"outBags,omitempty"`
	RelatedID     *string           `json:"relatedId,omitempty"`
}

// PressedStockMovement is one signed entry in the processing-warehouse
// ledger. Counts are bales rather than bags.
type PressedStockMovement struct {
	ID            string                   `json:"id"`
	Date          time.Time                `json:"date"`
	SiteID        string                   `json:"siteId"`
	SeaweedTypeID string                   `json:"seaweedTypeId"`
	Type          PressedStockMovementType `json:"type"`
	Designation   string                   `json:"designation"`
	InKg          *float64                 `json:"inKg,omitempty"`
	InBales       *int                     `json:"inBales,omitempty"`
	OutKg         *float64                 `json:"outKg,omitempty"`
	OutBales      *int                     `json:"outBales,omitempty"`
	RelatedID     *string                  `json:"relatedId,omitempty"`
}

// FarmerCredit records an amount owed by a farmer, optionally tied to the
// cutting operation that produced it.
type FarmerCredit struct {
	ID                 string    `json:"id"`
	Date               time.Time `json:"date"`
	SiteID             string    `json:"siteId"`
	FarmerID           string    `json:"farmerId"`
	CreditTypeID       string    `json:"creditTypeId"`
	TotalAmount        float64   `json:"totalAmount"`
	RelatedOperationID *string   `json:"relatedOperationId,omitempty"`
	Notes              string    `json:"notes,omitempty"`
}

// Repayment records a farmer paying down credit.
type Repayment struct {
	ID       string    `json:"id"`
	Date     time.Time `json:"date"`
	FarmerID string    `json:"farmerId"`
	Amount   float64   `json:"amount"`
	Method   string    `json:"method,omitempty"`
	Notes    string    `json:"notes,omitempty"`
}

// DeliveryDestination selects where a farmer delivery lands.
type DeliveryDestination string

// Farmer delivery destinations.
const (
	DeliverToSite      DeliveryDestination = "SITE_STORAGE"
	DeliverToWarehouse DeliveryDestination = "PRESSING_WAREHOUSE_BULK"
)

// FarmerDelivery is a slip recording seaweed delivered by a farmer, feeding
// either the site ledger or the warehouse bulk sub-ledger.
type FarmerDelivery struct {
	Base
	SlipNo        string              `json:"slipNo"`
	Date          time.Time           `json:"date"`
	SiteID        string              `json:"siteId"`
	FarmerID      string              `json:"farmerId"`
	SeaweedTypeID string              `json:"seaweedTypeId"`
	TotalWeightKg float64             `json:"totalWeightKg"`
	TotalBags     int                 `json:"totalBags"`
	Destination   DeliveryDestination `json:"destination"`
}

// PressingSlip documents one pressing run: bulk consumed, pressed produced.
// Each slip always yields one consumption and one production movement,
// written together or not at all.
type PressingSlip struct {
	Base
	SlipNo             string    `json:"slipNo"`
	Date               time.Time `json:"date"`
	SourceSiteID       string    `json:"sourceSiteId"`
	SeaweedTypeID      string    `json:"seaweedTypeId"`
	ConsumedWeightKg   float64   `json:"consumedWeightKg"`
	ConsumedBags       int       `json:"consumedBags"`
	ProducedWeightKg   float64   `json:"producedWeightKg"`
	ProducedBalesCount int       `json:"producedBalesCount"`
	ExportDocID        *string   `json:"exportDocId,omitempty"`
}

// ExportDocument aggregates pressing slips into an outbound shipment and
// backs the EXPORT_OUT warehouse movement derived from them.
type ExportDocument struct {
	Base
	DocNo              string    `json:"docNo"`
	Date               time.Time `json:"date"`
	SeaweedTypeID      string    `json:"seaweedTypeId"`
	DestinationCountry string    `json:"destinationCountry,omitempty"`
	Vessel             string    `json:"vessel,omitempty"`
	PressingSlipIDs    []string  `json:"pressingSlipIds"`
}

// TransferHistoryEntry is one entry in a site transfer's status history.
type TransferHistoryEntry struct {
	Status TransferStatus `json:"status"`
	Date   time.Time      `json:"date"`
	Notes  string         `json:"notes,omitempty"`
}

// SiteTransfer moves stock between sites (or into the warehouse bulk ledger
// when the destination is the processing warehouse).
type SiteTransfer struct {
	Base
	Date              time.Time              `json:"date"`
	SourceSiteID      string                 `json:"sourceSiteId"`
	DestinationSiteID string                 `json:"destinationSiteId"`
	SeaweedTypeID     string                 `json:"seaweedTypeId"`
	Transporter       string                 `json:"transporter,omitempty"`
	WeightKg          float64                `json:"weightKg"`
	Bags              int                    `json:"bags"`
	Status            TransferStatus         `json:"status"`
	CompletionDate    *time.Time             `json:"completionDate,omitempty"`
	ReceivedWeightKg  *float64               `json:"receivedWeightKg,omitempty"`
	ReceivedBags      *int                   `json:"receivedBags,omitempty"`
	Notes             string                 `json:"notes,omitempty"`
	History           []TransferHistoryEntry `json:"history"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured per transaction.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation or a recorded consistency gap.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine and gaps recorded by
// cascades.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Gaps returns the referential integrity gaps recorded on the result.
func (r Result) Gaps() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Rule == RuleReferentialIntegrity {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}

// RuleReferentialIntegrity names the pseudo-rule under which cascades record
// dangling-reference gaps. Gaps never block; the cascade skips the missing
// step and continues.
const RuleReferentialIntegrity = "referential_integrity"

// NewIntegrityGap builds the violation recorded when a mutation references
// an id that no longer exists.
func NewIntegrityGap(entity EntityType, id, message string) Violation {
	return Violation{
		Rule:     RuleReferentialIntegrity,
		Severity: SeverityLog,
		Message:  message,
		Entity:   entity,
		EntityID: id,
	}
}
