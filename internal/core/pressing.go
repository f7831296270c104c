package core

import (
	"context"
	"fmt"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

// CreatePressingSlip records one pressing run and its atomic movement pair:
// a bulk consumption exit and a pressed production entry, both referencing
// the slip. The pair is written together or not at all.
func (s *Service) CreatePressingSlip(ctx context.Context, slip PressingSlip) (PressingSlip, Result, error) {
	var created PressingSlip
	res, err := s.run(ctx, "create_pressing_slip", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindSeaweedType(slip.SeaweedTypeID); !ok {
			return ErrNotFound{Entity: EntitySeaweedType, ID: slip.SeaweedTypeID}
		}
		stored, err := tx.CreatePressingSlip(slip)
		if err != nil {
			return err
		}
		created = stored
		return appendSlipMovements(tx, stored)
	})
	return created, res, err
}

// UpdatePressingSlip replaces a slip's figures and re-derives its movement
// pair. Movements are never patched in place; the old pair is deleted by
// reference and a fresh pair appended.
func (s *Service) UpdatePressingSlip(ctx context.Context, slipID string, mutate func(*PressingSlip) error) (PressingSlip, Result, error) {
	var slip PressingSlip
	res, err := s.run(ctx, "update_pressing_slip", func(tx Transaction) error {
		updated, err := tx.UpdatePressingSlip(slipID, mutate)
		if err != nil {
			return err
		}
		slip = updated
		tx.DeletePressedStockMovementsByRelated(slipID)
		return appendSlipMovements(tx, updated)
	})
	return slip, res, err
}

// DeletePressingSlip removes a slip and its derived movement pair. A slip
// already linked to an export document cannot be deleted.
func (s *Service) DeletePressingSlip(ctx context.Context, slipID string) (Result, error) {
	return s.run(ctx, "delete_pressing_slip", func(tx Transaction) error {
		slip, ok := tx.Snapshot().FindPressingSlip(slipID)
		if !ok {
			return ErrNotFound{Entity: EntityPressingSlip, ID: slipID}
		}
		if slip.ExportDocID != nil {
			return fmt.Errorf("pressing slip %q is linked to export document %q", slipID, *slip.ExportDocID)
		}
		tx.DeletePressedStockMovementsByRelated(slipID)
		return tx.DeletePressingSlip(slipID)
	})
}

// CreateExportDocument links pressing slips into an outbound shipment and
// appends one EXPORT_OUT movement summing their produced figures. A listed
// slip that no longer exists is a gap; the document ships without it.
func (s *Service) CreateExportDocument(ctx context.Context, doc ExportDocument) (ExportDocument, Result, error) {
	var created ExportDocument
	res, err := s.run(ctx, "create_export_document", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindSeaweedType(doc.SeaweedTypeID); !ok {
			return ErrNotFound{Entity: EntitySeaweedType, ID: doc.SeaweedTypeID}
		}
		stored, err := tx.CreateExportDocument(doc)
		if err != nil {
			return err
		}
		created = stored
		return linkExportSlips(tx, stored)
	})
	return created, res, err
}

// UpdateExportDocument replaces a document's fields and slip set, unlinking
// dropped slips and re-deriving the EXPORT_OUT movement from the new set.
func (s *Service) UpdateExportDocument(ctx context.Context, docID string, mutate func(*ExportDocument) error) (ExportDocument, Result, error) {
	var doc ExportDocument
	res, err := s.run(ctx, "update_export_document", func(tx Transaction) error {
		if err := unlinkExportSlips(tx, docID); err != nil {
			return err
		}
		updated, err := tx.UpdateExportDocument(docID, mutate)
		if err != nil {
			return err
		}
		doc = updated
		tx.DeletePressedStockMovementsByRelated(docID)
		return linkExportSlips(tx, updated)
	})
	return doc, res, err
}

// DeleteExportDocument removes a document, releases its slips for future
// documents, and deletes the derived movement.
func (s *Service) DeleteExportDocument(ctx context.Context, docID string) (Result, error) {
	return s.run(ctx, "delete_export_document", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindExportDocument(docID); !ok {
			return ErrNotFound{Entity: EntityExportDocument, ID: docID}
		}
		if err := unlinkExportSlips(tx, docID); err != nil {
			return err
		}
		tx.DeletePressedStockMovementsByRelated(docID)
		return tx.DeleteExportDocument(docID)
	})
}

func appendSlipMovements(tx Transaction, slip PressingSlip) error {
	relatedID := slip.ID
	consumedKg := slip.ConsumedWeightKg
	consumedBales := slip.ConsumedBags
	if _, err := tx.AppendPressedStockMovement(PressedStockMovement{
		Date:          slip.Date,
		SiteID:        domain.WarehouseID,
		SeaweedTypeID: slip.SeaweedTypeID,
		Type:          domain.PressedConsumption,
		Designation:   fmt.Sprintf("Pressing slip %s consumption", slip.SlipNo),
		OutKg:         &consumedKg,
		OutBales:      &consumedBales,
		RelatedID:     &relatedID,
	}); err != nil {
		return err
	}
	producedKg := slip.ProducedWeightKg
	producedBales := slip.ProducedBalesCount
	_, err := tx.AppendPressedStockMovement(PressedStockMovement{
		Date:          slip.Date,
		SiteID:        domain.WarehouseID,
		SeaweedTypeID: slip.SeaweedTypeID,
		Type:          domain.PressedPressingIn,
		Designation:   fmt.Sprintf("Pressing slip %s production", slip.SlipNo),
		InKg:          &producedKg,
		InBales:       &producedBales,
		RelatedID:     &relatedID,
	})
	return err
}

// linkExportSlips stamps the document id on each listed slip and derives the
// aggregate EXPORT_OUT movement from the slips that were found.
func linkExportSlips(tx Transaction, doc ExportDocument) error {
	totalKg := 0.0
	totalBales := 0
	linked := 0
	for _, slipID := range doc.PressingSlipIDs {
		slip, ok := tx.Snapshot().FindPressingSlip(slipID)
		if !ok {
			tx.RecordGap(domain.NewIntegrityGap(EntityPressingSlip, slipID, "pressing slip missing while building export document"))
			continue
		}
		docID := doc.ID
		if _, err := tx.UpdatePressingSlip(slipID, func(p *PressingSlip) error {
			p.ExportDocID = &docID
			return nil
		}); err != nil {
			return err
		}
		totalKg += slip.ProducedWeightKg
		totalBales += slip.ProducedBalesCount
		linked++
	}
	if linked == 0 {
		return nil
	}
	relatedID := doc.ID
	_, err := tx.AppendPressedStockMovement(PressedStockMovement{
		Date:          doc.Date,
		SiteID:        domain.WarehouseID,
		SeaweedTypeID: doc.SeaweedTypeID,
		Type:          domain.PressedExportOut,
		Designation:   fmt.Sprintf("Export document %s", doc.DocNo),
		OutKg:         &totalKg,
		OutBales:      &totalBales,
		RelatedID:     &relatedID,
	})
	return err
}

func unlinkExportSlips(tx Transaction, docID string) error {
	for _, slip := range tx.Snapshot().ListPressingSlips() {
		if slip.ExportDocID == nil || *slip.ExportDocID != docID {
			continue
		}
		if _, err := tx.UpdatePressingSlip(slip.ID, func(p *PressingSlip) error {
			p.ExportDocID = nil
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}
