package core

import (
	"context"
	"fmt"
	"time"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

// AddInitialSiteStock seeds the on-site ledger with an opening entry for one
// seaweed type.
func (s *Service) AddInitialSiteStock(ctx context.Context, siteID, seaweedTypeID string, date time.Time, weightKg float64, bags int) (StockMovement, Result, error) {
	var movement StockMovement
	res, err := s.run(ctx, "add_initial_site_stock", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindSite(siteID); !ok {
			return ErrNotFound{Entity: EntitySite, ID: siteID}
		}
		if _, ok := tx.Snapshot().FindSeaweedType(seaweedTypeID); !ok {
			return ErrNotFound{Entity: EntitySeaweedType, ID: seaweedTypeID}
		}
		created, err := tx.AppendStockMovement(StockMovement{
			Date:          date,
			SiteID:        siteID,
			SeaweedTypeID: seaweedTypeID,
			Type:          domain.StockInitial,
			Designation:   "Initial stock",
			InKg:          &weightKg,
			InBags:        &bags,
		})
		movement = created
		return err
	})
	return movement, res, err
}

// AddSiteStockAdjustment appends a signed correction to the on-site ledger.
// Negative weights are rejected by the movement shape rule; direction is
// chosen by the in flag.
func (s *Service) AddSiteStockAdjustment(ctx context.Context, siteID, seaweedTypeID string, date time.Time, weightKg float64, bags int, in bool, reason string) (StockMovement, Result, error) {
	var movement StockMovement
	res, err := s.run(ctx, "add_site_stock_adjustment", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindSite(siteID); !ok {
			return ErrNotFound{Entity: EntitySite, ID: siteID}
		}
		m := StockMovement{
			Date:          date,
			SiteID:        siteID,
			SeaweedTypeID: seaweedTypeID,
			Designation:   reason,
		}
		if in {
			m.Type = domain.StockAdjustmentIn
			m.InKg = &weightKg
			m.InBags = &bags
		} else {
			m.Type = domain.StockAdjustmentOut
			m.OutKg = &weightKg
			m.OutBags = &bags
		}
		created, err := tx.AppendStockMovement(m)
		movement = created
		return err
	})
	return movement, res, err
}

// AddInitialWarehouseStock seeds the warehouse pressed ledger with an
// opening entry for one seaweed type.
func (s *Service) AddInitialWarehouseStock(ctx context.Context, seaweedTypeID string, date time.Time, weightKg float64, bales int) (PressedStockMovement, Result, error) {
	var movement PressedStockMovement
	res, err := s.run(ctx, "add_initial_warehouse_stock", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindSeaweedType(seaweedTypeID); !ok {
			return ErrNotFound{Entity: EntitySeaweedType, ID: seaweedTypeID}
		}
		created, err := tx.AppendPressedStockMovement(PressedStockMovement{
			Date:          date,
			SiteID:        domain.WarehouseID,
			SeaweedTypeID: seaweedTypeID,
			Type:          domain.PressedInitial,
			Designation:   "Initial pressed stock",
			InKg:          &weightKg,
			InBales:       &bales,
		})
		movement = created
		return err
	})
	return movement, res, err
}

// AddWarehouseAdjustment appends a signed correction to the warehouse
// pressed ledger.
func (s *Service) AddWarehouseAdjustment(ctx context.Context, seaweedTypeID string, date time.Time, weightKg float64, bales int, in bool, reason string) (PressedStockMovement, Result, error) {
	var movement PressedStockMovement
	res, err := s.run(ctx, "add_warehouse_adjustment", func(tx Transaction) error {
		m := PressedStockMovement{
			Date:          date,
			SiteID:        domain.WarehouseID,
			SeaweedTypeID: seaweedTypeID,
			Designation:   reason,
		}
		if in {
			m.Type = domain.PressedAdjustmentIn
			m.InKg = &weightKg
			m.InBales = &bales
		} else {
			m.Type = domain.PressedAdjustmentOut
			m.OutKg = &weightKg
			m.OutBales = &bales
		}
		created, err := tx.AppendPressedStockMovement(m)
		movement = created
		return err
	})
	return movement, res, err
}

// RecordFarmerDelivery records a purchase slip from an independent farmer
// and appends the matching ledger entry: on-site stock when the delivery
// lands at a site, warehouse bulk when it goes straight to pressing.
func (s *Service) RecordFarmerDelivery(ctx context.Context, delivery FarmerDelivery) (FarmerDelivery, Result, error) {
	var created FarmerDelivery
	res, err := s.run(ctx, "record_farmer_delivery", func(tx Transaction) error {
		farmer, ok := tx.Snapshot().FindFarmer(delivery.FarmerID)
		if !ok {
			return ErrNotFound{Entity: EntityFarmer, ID: delivery.FarmerID}
		}
		if _, ok := tx.Snapshot().FindSeaweedType(delivery.SeaweedTypeID); !ok {
			return ErrNotFound{Entity: EntitySeaweedType, ID: delivery.SeaweedTypeID}
		}
		if delivery.Destination == domain.DeliverToSite {
			if _, ok := tx.Snapshot().FindSite(delivery.SiteID); !ok {
				return ErrNotFound{Entity: EntitySite, ID: delivery.SiteID}
			}
		}
		stored, err := tx.CreateFarmerDelivery(delivery)
		if err != nil {
			return err
		}
		created = stored

		designation := fmt.Sprintf("Delivery %s from %s", stored.SlipNo, farmer.FullName())
		relatedID := stored.ID
		weight := stored.TotalWeightKg
		count := stored.TotalBags
		switch stored.Destination {
		case domain.DeliverToWarehouse:
			_, err = tx.AppendPressedStockMovement(PressedStockMovement{
				Date:          stored.Date,
				SiteID:        domain.WarehouseID,
				SeaweedTypeID: stored.SeaweedTypeID,
				Type:          domain.PressedFarmerIn,
				Designation:   designation,
				InKg:          &weight,
				InBales:       &count,
				RelatedID:     &relatedID,
			})
		default:
			_, err = tx.AppendStockMovement(StockMovement{
				Date:          stored.Date,
				SiteID:        stored.SiteID,
				SeaweedTypeID: stored.SeaweedTypeID,
				Type:          domain.StockFarmerIn,
				Designation:   designation,
				InKg:          &weight,
				InBags:        &count,
				RelatedID:     &relatedID,
			})
		}
		return err
	})
	return created, res, err
}

// DeleteFarmerDelivery removes a delivery slip and the ledger entries
// derived from it, in whichever ledger they landed.
func (s *Service) DeleteFarmerDelivery(ctx context.Context, deliveryID string) (Result, error) {
	return s.run(ctx, "delete_farmer_delivery", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindFarmerDelivery(deliveryID); !ok {
			return ErrNotFound{Entity: EntityFarmerDelivery, ID: deliveryID}
		}
		tx.DeleteStockMovementsByRelated(deliveryID)
		tx.DeletePressedStockMovementsByRelated(deliveryID)
		return tx.DeleteFarmerDelivery(deliveryID)
	})
}

// CreateSiteTransfer opens a transfer in AWAITING_OUTBOUND. No ledger entry
// is written until the stock actually leaves the source site.
func (s *Service) CreateSiteTransfer(ctx context.Context, transfer SiteTransfer) (SiteTransfer, Result, error) {
	var created SiteTransfer
	res, err := s.run(ctx, "create_site_transfer", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindSite(transfer.SourceSiteID); !ok {
			return ErrNotFound{Entity: EntitySite, ID: transfer.SourceSiteID}
		}
		if transfer.DestinationSiteID != domain.WarehouseID {
			if _, ok := tx.Snapshot().FindSite(transfer.DestinationSiteID); !ok {
				return ErrNotFound{Entity: EntitySite, ID: transfer.DestinationSiteID}
			}
		}
		if _, ok := tx.Snapshot().FindSeaweedType(transfer.SeaweedTypeID); !ok {
			return ErrNotFound{Entity: EntitySeaweedType, ID: transfer.SeaweedTypeID}
		}
		transfer.Status = domain.TransferAwaitingOutbound
		transfer.History = []TransferHistoryEntry{{Status: domain.TransferAwaitingOutbound, Date: transfer.Date, Notes: transfer.Notes}}
		stored, err := tx.CreateSiteTransfer(transfer)
		created = stored
		return err
	})
	return created, res, err
}

// AdvanceSiteTransfer moves a transfer to the next status and writes the
// ledger entries tied to that step: dispatch debits the source site,
// completion credits the destination (warehouse bulk when the destination is
// the processing warehouse), cancellation after dispatch returns the stock
// to the source.
func (s *Service) AdvanceSiteTransfer(ctx context.Context, transferID string, status TransferStatus, date time.Time, notes string) (SiteTransfer, Result, error) {
	var transfer SiteTransfer
	res, err := s.run(ctx, "advance_site_transfer", func(tx Transaction) error {
		current, ok := tx.Snapshot().FindSiteTransfer(transferID)
		if !ok {
			return ErrNotFound{Entity: EntitySiteTransfer, ID: transferID}
		}
		if !transferStepAllowed(current.Status, status) {
			return fmt.Errorf("transfer %q cannot move from %s to %s", transferID, current.Status, status)
		}

		updated, err := tx.UpdateSiteTransfer(transferID, func(t *SiteTransfer) error {
			t.Status = status
			t.History = append(t.History, TransferHistoryEntry{Status: status, Date: date, Notes: notes})
			if status == domain.TransferCompleted {
				d := date
				t.CompletionDate = &d
			}
			return nil
		})
		if err != nil {
			return err
		}
		transfer = updated

		relatedID := updated.ID
		switch status {
		case domain.TransferInTransit:
			weight := updated.WeightKg
			bags := updated.Bags
			_, err = tx.AppendStockMovement(StockMovement{
				Date:          date,
				SiteID:        updated.SourceSiteID,
				SeaweedTypeID: updated.SeaweedTypeID,
				Type:          domain.StockTransferOut,
				Designation:   fmt.Sprintf("Transfer to %s", transferDestinationName(tx.Snapshot(), updated)),
				OutKg:         &weight,
				OutBags:       &bags,
				RelatedID:     &relatedID,
			})
		case domain.TransferCompleted:
			weight := updated.WeightKg
			count := updated.Bags
			if updated.ReceivedWeightKg != nil {
				weight = *updated.ReceivedWeightKg
			}
			if updated.ReceivedBags != nil {
				count = *updated.ReceivedBags
			}
			if updated.DestinationSiteID == domain.WarehouseID {
				_, err = tx.AppendPressedStockMovement(PressedStockMovement{
					Date:          date,
					SiteID:        domain.WarehouseID,
					SeaweedTypeID: updated.SeaweedTypeID,
					Type:          domain.PressedBulkInFromSite,
					Designation:   fmt.Sprintf("Transfer from %s", siteName(tx.Snapshot(), updated.SourceSiteID)),
					InKg:          &weight,
					InBales:       &count,
					RelatedID:     &relatedID,
				})
			} else {
				_, err = tx.AppendStockMovement(StockMovement{
					Date:          date,
					SiteID:        updated.DestinationSiteID,
					SeaweedTypeID: updated.SeaweedTypeID,
					Type:          domain.StockTransferIn,
					Designation:   fmt.Sprintf("Transfer from %s", siteName(tx.Snapshot(), updated.SourceSiteID)),
					InKg:          &weight,
					InBags:        &count,
					RelatedID:     &relatedID,
				})
			}
		case domain.TransferCancelled:
			if transferDispatched(current) {
				weight := updated.WeightKg
				bags := updated.Bags
				_, err = tx.AppendStockMovement(StockMovement{
					Date:          date,
					SiteID:        updated.SourceSiteID,
					SeaweedTypeID: updated.SeaweedTypeID,
					Type:          domain.StockTransferIn,
					Designation:   "Transfer cancelled, stock returned",
					InKg:          &weight,
					InBags:        &bags,
					RelatedID:     &relatedID,
				})
			}
		}
		return err
	})
	return transfer, res, err
}

// ReceiveSiteTransfer records received quantities and completes the
// transfer. The received figures, not the dispatched ones, feed the
// destination ledger entry.
func (s *Service) ReceiveSiteTransfer(ctx context.Context, transferID string, date time.Time, receivedWeightKg float64, receivedBags int, notes string) (SiteTransfer, Result, error) {
	var transfer SiteTransfer
	res, err := s.run(ctx, "receive_site_transfer", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindSiteTransfer(transferID); !ok {
			return ErrNotFound{Entity: EntitySiteTransfer, ID: transferID}
		}
		if _, err := tx.UpdateSiteTransfer(transferID, func(t *SiteTransfer) error {
			t.ReceivedWeightKg = &receivedWeightKg
			t.ReceivedBags = &receivedBags
			return nil
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return transfer, res, err
	}
	return s.AdvanceSiteTransfer(ctx, transferID, domain.TransferCompleted, date, notes)
}

// RecordReturnFromPressing moves pressed stock back from the warehouse to a
// site: a RETURN_TO_SITE exit in the pressed ledger paired with a
// PRESSING_IN entry in the site ledger referencing it.
func (s *Service) RecordReturnFromPressing(ctx context.Context, siteID, seaweedTypeID string, date time.Time, weightKg float64, count int, notes string) (Result, error) {
	return s.run(ctx, "record_return_from_pressing", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindSite(siteID); !ok {
			return ErrNotFound{Entity: EntitySite, ID: siteID}
		}
		if _, ok := tx.Snapshot().FindSeaweedType(seaweedTypeID); !ok {
			return ErrNotFound{Entity: EntitySeaweedType, ID: seaweedTypeID}
		}
		weight := weightKg
		bales := count
		exit, err := tx.AppendPressedStockMovement(PressedStockMovement{
			Date:          date,
			SiteID:        domain.WarehouseID,
			SeaweedTypeID: seaweedTypeID,
			Type:          domain.PressedReturnToSite,
			Designation:   fmt.Sprintf("Return to %s", siteName(tx.Snapshot(), siteID)),
			OutKg:         &weight,
			OutBales:      &bales,
		})
		if err != nil {
			return err
		}
		inWeight := weightKg
		inBags := count
		relatedID := exit.ID
		_, err = tx.AppendStockMovement(StockMovement{
			Date:          date,
			SiteID:        siteID,
			SeaweedTypeID: seaweedTypeID,
			Type:          domain.StockPressingIn,
			Designation:   notes,
			InKg:          &inWeight,
			InBags:        &inBags,
			RelatedID:     &relatedID,
		})
		return err
	})
}

// transferStepAllowed encodes the transfer status graph. Reception data may
// arrive before completion, so PENDING_RECEPTION sits between IN_TRANSIT and
// COMPLETED; cancellation is allowed from any open status.
func transferStepAllowed(from, to TransferStatus) bool {
	if from == domain.TransferCompleted || from == domain.TransferCancelled {
		return false
	}
	if to == domain.TransferCancelled {
		return true
	}
	switch from {
	case domain.TransferAwaitingOutbound:
		return to == domain.TransferInTransit
	case domain.TransferInTransit:
		return to == domain.TransferPendingReception || to == domain.TransferCompleted
	case domain.TransferPendingReception:
		return to == domain.TransferCompleted
	}
	return false
}

// transferDispatched reports whether the stock has already left the source
// site, which decides whether cancelling needs a compensating entry.
func transferDispatched(t SiteTransfer) bool {
	switch t.Status {
	case domain.TransferInTransit, domain.TransferPendingReception:
		return true
	}
	return false
}

func transferDestinationName(view TransactionView, t SiteTransfer) string {
	if t.DestinationSiteID == domain.WarehouseID {
		return "pressing warehouse"
	}
	return siteName(view, t.DestinationSiteID)
}

func siteName(view TransactionView, siteID string) string {
	if site, ok := view.FindSite(siteID); ok {
		return site.Name
	}
	return siteID
}
