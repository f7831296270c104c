package core

import (
	"context"
	"fmt"
	"time"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

// CuttingOperationInput carries the fields of a cutting operation. FarmerID
// is the farmer the primary module is assigned to for the resulting cycle;
// BeneficiaryFarmerID, when set, is the farmer credited for the cutting
// service. The two usually coincide but are recorded independently.
type CuttingOperationInput struct {
	Date                time.Time
	SiteID              string
	ServiceProviderID   string
	SeaweedTypeID       string
	ModuleCuts          []ModuleCut
	UnitPrice           float64
	FarmerID            string
	BeneficiaryFarmerID *string
	Notes               string
	PlantingDate        *time.Time
	InitialWeightKg     float64
}

func (in CuttingOperationInput) plantingDate() time.Time {
	if in.PlantingDate != nil {
		return *in.PlantingDate
	}
	return in.Date
}

// CreateCuttingOperation records a cutting operation and runs its full
// cascade in one transaction: service credits for the beneficiary, a new
// cultivation cycle on the primary module, and the primary module's status
// advance through CUTTING, ASSIGNED and PLANTED.
func (s *Service) CreateCuttingOperation(ctx context.Context, input CuttingOperationInput) (CuttingOperation, Result, error) {
	var op CuttingOperation
	res, err := s.run(ctx, "create_cutting_operation", func(tx Transaction) error {
		farmer, err := validateCuttingInput(tx.Snapshot(), input)
		if err != nil {
			return err
		}
		if len(input.ModuleCuts) == 0 {
			return fmt.Errorf("cutting operation requires at least one module cut")
		}

		draft := CuttingOperation{
			Date:                input.Date,
			SiteID:              input.SiteID,
			ServiceProviderID:   input.ServiceProviderID,
			SeaweedTypeID:       input.SeaweedTypeID,
			ModuleCuts:          input.ModuleCuts,
			UnitPrice:           input.UnitPrice,
			BeneficiaryFarmerID: input.BeneficiaryFarmerID,
			Notes:               input.Notes,
		}
		draft.TotalAmount = draft.CutTotal()
		created, err := tx.CreateCuttingOperation(draft)
		if err != nil {
			return err
		}
		op = created

		if err := replaceOperationCredits(tx, created); err != nil {
			return err
		}

		plantingDate := input.plantingDate()
		cycle, err := tx.CreateCycle(CultivationCycle{
			ModuleID:           created.PrimaryModuleID(),
			SeaweedTypeID:      input.SeaweedTypeID,
			PlantingDate:       plantingDate,
			Status:             StatusPlanted,
			InitialWeight:      input.InitialWeightKg,
			LinesPlanted:       created.ModuleCuts[0].LinesCut,
			CuttingOperationID: &created.ID,
		})
		if err != nil {
			return err
		}
		plantModuleTx(tx, cycle.ModuleID, farmer, created, plantingDate)
		return nil
	})
	return op, res, err
}

// UpdateCuttingOperation replaces a cutting operation's fields and re-derives
// everything downstream: the dependent cycle follows the new primary module
// and planting details, module assignments move when the primary module
// changes, and the credit set is rebuilt from scratch. A missing dependent
// cycle is recorded as a gap, never an error.
func (s *Service) UpdateCuttingOperation(ctx context.Context, operationID string, input CuttingOperationInput) (CuttingOperation, Result, error) {
	var op CuttingOperation
	res, err := s.run(ctx, "update_cutting_operation", func(tx Transaction) error {
		farmer, err := validateCuttingInput(tx.Snapshot(), input)
		if err != nil {
			return err
		}
		if len(input.ModuleCuts) == 0 {
			return fmt.Errorf("cutting operation requires at least one module cut")
		}
		previous, found := tx.Snapshot().FindCuttingOperation(operationID)
		if !found {
			return ErrNotFound{Entity: EntityCuttingOperation, ID: operationID}
		}

		updated, err := tx.UpdateCuttingOperation(operationID, func(o *CuttingOperation) error {
			o.Date = input.Date
			o.SiteID = input.SiteID
			o.ServiceProviderID = input.ServiceProviderID
			o.SeaweedTypeID = input.SeaweedTypeID
			o.ModuleCuts = input.ModuleCuts
			o.UnitPrice = input.UnitPrice
			o.BeneficiaryFarmerID = input.BeneficiaryFarmerID
			o.Notes = input.Notes
			o.TotalAmount = o.CutTotal()
			return nil
		})
		if err != nil {
			return err
		}
		op = updated

		if err := replaceOperationCredits(tx, updated); err != nil {
			return err
		}

		plantingDate := input.plantingDate()
		previousModuleID := previous.PrimaryModuleID()
		previousFarmer := moduleFarmerID(tx.Snapshot(), previousModuleID)
		previousDate := plantingDate

		if cycle, found := tx.Snapshot().FindCycleByOperation(operationID); found {
			previousDate = cycle.PlantingDate
			if _, err := tx.UpdateCycle(cycle.ID, func(c *CultivationCycle) error {
				c.ModuleID = updated.PrimaryModuleID()
				c.SeaweedTypeID = input.SeaweedTypeID
				c.PlantingDate = plantingDate
				c.LinesPlanted = updated.ModuleCuts[0].LinesCut
				c.InitialWeight = input.InitialWeightKg
				return nil
			}); err != nil {
				return err
			}
		} else {
			tx.RecordGap(domain.NewIntegrityGap(EntityCultivationCycle, operationID, "no cycle references cutting operation, module cascade continues without it"))
		}

		newModuleID := updated.PrimaryModuleID()
		switch {
		case newModuleID != previousModuleID:
			newCode := newModuleID
			if m, ok := tx.Snapshot().FindModule(newModuleID); ok {
				newCode = m.Code
			}
			freeModuleTx(tx, previousModuleID, input.Date, fmt.Sprintf("Cutting operation moved to module %s", newCode))
			assignModuleTx(tx, newModuleID, farmer, plantingDate)
		case previousFarmer == nil || *previousFarmer != input.FarmerID:
			if _, ok := tx.Snapshot().FindModule(previousModuleID); !ok {
				tx.RecordGap(domain.NewIntegrityGap(EntityModule, previousModuleID, "module missing while reassigning farmer"))
				break
			}
			if _, err := tx.UpdateModule(previousModuleID, func(m *Module) error {
				farmerID := input.FarmerID
				m.FarmerID = &farmerID
				m.AppendStatus(StatusAssigned, plantingDate, fmt.Sprintf("Reassigned to %s", farmer.FullName()))
				return nil
			}); err != nil {
				return err
			}
		case !previousDate.Equal(plantingDate):
			if _, ok := tx.Snapshot().FindModule(previousModuleID); !ok {
				tx.RecordGap(domain.NewIntegrityGap(EntityModule, previousModuleID, "module missing while amending planting date"))
				break
			}
			if _, err := tx.UpdateModule(previousModuleID, func(m *Module) error {
				m.AmendPlantingTimestamp(plantingDate)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return op, res, err
}

// DeleteCuttingOperation removes an operation together with its derived
// records: the dependent cycle is deleted, the primary module freed, and
// every credit the operation generated removed. Already-missing dependents
// are gaps, not errors.
func (s *Service) DeleteCuttingOperation(ctx context.Context, operationID string, date time.Time) (Result, error) {
	return s.run(ctx, "delete_cutting_operation", func(tx Transaction) error {
		op, found := tx.Snapshot().FindCuttingOperation(operationID)
		if !found {
			return ErrNotFound{Entity: EntityCuttingOperation, ID: operationID}
		}
		if cycle, ok := tx.Snapshot().FindCycleByOperation(operationID); ok {
			if err := tx.DeleteCycle(cycle.ID); err != nil {
				return err
			}
		} else {
			tx.RecordGap(domain.NewIntegrityGap(EntityCultivationCycle, operationID, "no cycle references cutting operation, nothing to delete"))
		}
		freeModuleTx(tx, op.PrimaryModuleID(), date, "Cutting operation deleted")
		tx.DeleteCreditsByOperation(operationID)
		return tx.DeleteCuttingOperation(operationID)
	})
}

// MarkCuttingOperationsPaid stamps a payment date on each listed operation.
// Unknown ids are recorded as gaps so a stale payment batch still applies to
// the operations that remain.
func (s *Service) MarkCuttingOperationsPaid(ctx context.Context, operationIDs []string, paymentDate time.Time) (Result, error) {
	return s.run(ctx, "mark_cutting_operations_paid", func(tx Transaction) error {
		for _, id := range operationIDs {
			if _, ok := tx.Snapshot().FindCuttingOperation(id); !ok {
				tx.RecordGap(domain.NewIntegrityGap(EntityCuttingOperation, id, "cutting operation missing while marking paid"))
				continue
			}
			if _, err := tx.UpdateCuttingOperation(id, func(o *CuttingOperation) error {
				d := paymentDate
				o.IsPaid = true
				o.PaymentDate = &d
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func moduleFarmerID(view TransactionView, moduleID string) *string {
	if m, ok := view.FindModule(moduleID); ok {
		return m.FarmerID
	}
	return nil
}

func validateCuttingInput(view TransactionView, input CuttingOperationInput) (Farmer, error) {
	if _, ok := view.FindSite(input.SiteID); !ok {
		return Farmer{}, ErrNotFound{Entity: EntitySite, ID: input.SiteID}
	}
	if _, ok := view.FindServiceProvider(input.ServiceProviderID); !ok {
		return Farmer{}, ErrNotFound{Entity: EntityServiceProvider, ID: input.ServiceProviderID}
	}
	if _, ok := view.FindSeaweedType(input.SeaweedTypeID); !ok {
		return Farmer{}, ErrNotFound{Entity: EntitySeaweedType, ID: input.SeaweedTypeID}
	}
	farmer, ok := view.FindFarmer(input.FarmerID)
	if !ok {
		return Farmer{}, ErrNotFound{Entity: EntityFarmer, ID: input.FarmerID}
	}
	if input.BeneficiaryFarmerID != nil {
		if _, ok := view.FindFarmer(*input.BeneficiaryFarmerID); !ok {
			return Farmer{}, ErrNotFound{Entity: EntityFarmer, ID: *input.BeneficiaryFarmerID}
		}
	}
	return farmer, nil
}

// replaceOperationCredits rebuilds the credit set derived from an operation:
// existing credits are removed by RelatedOperationID and one fresh credit per
// module cut is appended for the beneficiary. Repeated edits therefore never
// duplicate credits.
func replaceOperationCredits(tx Transaction, op CuttingOperation) error {
	tx.DeleteCreditsByOperation(op.ID)
	if op.BeneficiaryFarmerID == nil {
		return nil
	}
	beneficiary := *op.BeneficiaryFarmerID
	if _, ok := tx.Snapshot().FindFarmer(beneficiary); !ok {
		tx.RecordGap(domain.NewIntegrityGap(EntityFarmer, beneficiary, "beneficiary farmer missing, credits skipped"))
		return nil
	}
	for _, cut := range op.ModuleCuts {
		code := cut.ModuleID
		if m, ok := tx.Snapshot().FindModule(cut.ModuleID); ok {
			code = m.Code
		}
		opID := op.ID
		if _, err := tx.AppendFarmerCredit(FarmerCredit{
			Date:               op.Date,
			SiteID:             op.SiteID,
			FarmerID:           beneficiary,
			CreditTypeID:       domain.CreditTypeCuttingService,
			TotalAmount:        float64(cut.LinesCut) * op.UnitPrice,
			RelatedOperationID: &opID,
			Notes:              fmt.Sprintf("Cutting service on module %s", code),
		}); err != nil {
			return err
		}
	}
	return nil
}

// plantModuleTx runs the primary module's status cascade for a cutting
// operation: CUTTING at the operation date, then ASSIGNED and PLANTED at the
// planting date, with the farmer set. A missing module is a gap.
func plantModuleTx(tx Transaction, moduleID string, farmer Farmer, op CuttingOperation, plantingDate time.Time) {
	if _, ok := tx.Snapshot().FindModule(moduleID); !ok {
		tx.RecordGap(domain.NewIntegrityGap(EntityModule, moduleID, "module missing while planting after cutting"))
		return
	}
	provider := op.ServiceProviderID
	if p, ok := tx.Snapshot().FindServiceProvider(op.ServiceProviderID); ok {
		provider = p.Name
	}
	if _, err := tx.UpdateModule(moduleID, func(m *Module) error {
		farmerID := farmer.ID
		m.FarmerID = &farmerID
		m.AppendStatus(StatusCutting, op.Date, fmt.Sprintf("Cutting by %s", provider))
		m.AppendStatus(StatusAssigned, plantingDate, fmt.Sprintf("Assigned to %s", farmer.FullName()))
		m.AppendStatus(StatusPlanted, plantingDate, "")
		return nil
	}); err != nil {
		tx.RecordGap(domain.NewIntegrityGap(EntityModule, moduleID, err.Error()))
	}
}

// assignModuleTx moves an existing cycle onto a module: ASSIGNED and PLANTED
// at the planting date, with the farmer set. Unlike plantModuleTx no CUTTING
// entry is written, the cut happened on the module the cycle came from.
func assignModuleTx(tx Transaction, moduleID string, farmer Farmer, plantingDate time.Time) {
	if _, ok := tx.Snapshot().FindModule(moduleID); !ok {
		tx.RecordGap(domain.NewIntegrityGap(EntityModule, moduleID, "module missing while taking over cycle"))
		return
	}
	if _, err := tx.UpdateModule(moduleID, func(m *Module) error {
		farmerID := farmer.ID
		m.FarmerID = &farmerID
		m.AppendStatus(StatusAssigned, plantingDate, fmt.Sprintf("Assigned to %s", farmer.FullName()))
		m.AppendStatus(StatusPlanted, plantingDate, "")
		return nil
	}); err != nil {
		tx.RecordGap(domain.NewIntegrityGap(EntityModule, moduleID, err.Error()))
	}
}
