package core

import (
	"context"
	"fmt"
	"time"

	"github.com/assamipatrick/seaweed-ambanifony-sub000/internal/infra/persistence/memory"
	"github.com/assamipatrick/seaweed-ambanifony-sub000/pkg/domain"
)

// Service exposes the transactional mutation and query surface of the
// engine. Every mutation runs its full cascade inside one store transaction;
// consistency gaps encountered mid-cascade are reported on the Result, never
// thrown.
type Service struct {
	store   PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	nowFn   func() time.Time
}

// ServiceOption customizes service construction.
type ServiceOption func(*Service)

// WithLogger attaches a structured logger to the service.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder attaches a metrics recorder observing every operation.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) {
		s.metrics = recorder
	}
}

// WithTracer attaches a tracer wrapping every operation in a span.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithNowFunc overrides the service clock, used by tests for deterministic
// fallback dates.
func WithNowFunc(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: noopLogger{},
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine. A nil engine gets the default policy set.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

func (s *Service) now() time.Time {
	return s.nowFn()
}

// run executes one service operation inside a store transaction with
// observability wrapping. Gaps recorded on the result are logged as warnings.
func (s *Service) run(ctx context.Context, operation string, fn func(Transaction) error) (Result, error) {
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	started := time.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, time.Since(started))
	}
	if span != nil {
		span.End(err)
	}
	s.report(operation, res, err)
	return res, err
}

func (s *Service) report(operation string, res Result, err error) {
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "error", err)
		return
	}
	for _, gap := range res.Gaps() {
		s.logger.Warn("referential integrity gap",
			"operation", operation,
			"entity", string(gap.Entity),
			"entity_id", gap.EntityID,
			"message", gap.Message,
		)
	}
}

// ErrNotFound is returned when reference validation fails within
// transactional helpers.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Reference data -------------------------------------------------------------

// CreateSite persists a new site.
func (s *Service) CreateSite(ctx context.Context, site Site) (Site, Result, error) {
	var created Site
	res, err := s.run(ctx, "create_site", func(tx Transaction) error {
		var err error
		created, err = tx.CreateSite(site)
		return err
	})
	return created, res, err
}

// CreateFarmer persists a new farmer.
func (s *Service) CreateFarmer(ctx context.Context, farmer Farmer) (Farmer, Result, error) {
	var created Farmer
	res, err := s.run(ctx, "create_farmer", func(tx Transaction) error {
		var err error
		created, err = tx.CreateFarmer(farmer)
		return err
	})
	return created, res, err
}

// CreateServiceProvider persists a new service provider.
func (s *Service) CreateServiceProvider(ctx context.Context, provider ServiceProvider) (ServiceProvider, Result, error) {
	var created ServiceProvider
	res, err := s.run(ctx, "create_service_provider", func(tx Transaction) error {
		var err error
		created, err = tx.CreateServiceProvider(provider)
		return err
	})
	return created, res, err
}

// CreateSeaweedType persists a new seaweed type.
func (s *Service) CreateSeaweedType(ctx context.Context, st SeaweedType) (SeaweedType, Result, error) {
	var created SeaweedType
	res, err := s.run(ctx, "create_seaweed_type", func(tx Transaction) error {
		var err error
		created, err = tx.CreateSeaweedType(st)
		return err
	})
	return created, res, err
}

// UpdateSeaweedTypePrices sets the current wet/dry prices and appends the
// pair to the type's price history.
func (s *Service) UpdateSeaweedTypePrices(ctx context.Context, id string, wet, dry float64, date time.Time) (SeaweedType, Result, error) {
	var updated SeaweedType
	res, err := s.run(ctx, "update_seaweed_type_prices", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateSeaweedType(id, func(t *SeaweedType) error {
			t.WetPrice = wet
			t.DryPrice = dry
			t.PriceHistory = append(t.PriceHistory, domain.SeaweedPrice{Date: date, WetPrice: wet, DryPrice: dry})
			return nil
		})
		return err
	})
	return updated, res, err
}

// CreateCreditType persists a new credit type.
func (s *Service) CreateCreditType(ctx context.Context, ct CreditType) (CreditType, Result, error) {
	var created CreditType
	res, err := s.run(ctx, "create_credit_type", func(tx Transaction) error {
		var err error
		created, err = tx.CreateCreditType(ct)
		return err
	})
	return created, res, err
}

// RecordRepayment appends a credit repayment for a farmer.
func (s *Service) RecordRepayment(ctx context.Context, repayment Repayment) (Repayment, Result, error) {
	var created Repayment
	res, err := s.run(ctx, "record_repayment", func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindFarmer(repayment.FarmerID); !ok {
			return ErrNotFound{Entity: EntityFarmer, ID: repayment.FarmerID}
		}
		var err error
		created, err = tx.AppendRepayment(repayment)
		return err
	})
	return created, res, err
}

// State exchange -------------------------------------------------------------

// ExportState clones the full engine state for the sync collaborator.
func (s *Service) ExportState() Snapshot {
	return s.store.ExportState()
}

// ImportState replaces engine state wholesale from a remote snapshot. The
// remote copy wins; a local mutation racing this call is silently overwritten.
func (s *Service) ImportState(snapshot Snapshot) {
	s.store.ImportState(snapshot)
	s.logger.Info("state imported from remote snapshot")
}

// View executes a read-only function against current state.
func (s *Service) View(ctx context.Context, fn func(TransactionView) error) error {
	return s.store.View(ctx, fn)
}
