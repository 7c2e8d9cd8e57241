package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/marginlens/marginlens/internal/clock"
	customerdomain "github.com/marginlens/marginlens/internal/customer/domain"
	eventdomain "github.com/marginlens/marginlens/internal/event/domain"
	obsmetrics "github.com/marginlens/marginlens/internal/observability/metrics"
	pkgdb "github.com/marginlens/marginlens/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultPlan     = "standard"
	defaultCurrency = "USD"

	skipReasonValidation = "validation"
	skipReasonCustomer   = "customer"
	skipReasonDuplicate  = "duplicate"
	skipReasonDB         = "db"

	eventKindUsage   = "usage"
	eventKindRevenue = "revenue"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         eventdomain.Repository
	CustomerRepo customerdomain.Repository
	Metrics      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         eventdomain.Repository
	customerRepo customerdomain.Repository
	metrics      *obsmetrics.Metrics
}

func New(p Params) eventdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("event.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		metrics:      p.Metrics,
	}
}

// IngestUsage persists a batch of usage records. Malformed records are
// skipped and logged so one bad record cannot poison the batch.
func (s *Service) IngestUsage(ctx context.Context, req eventdomain.IngestUsageRequest) (eventdomain.IngestResponse, error) {
	if len(req.Records) == 0 {
		return eventdomain.IngestResponse{}, eventdomain.ErrEmptyBatch
	}

	resolved := make(map[string]*customerdomain.Customer, len(req.Records))
	var resp eventdomain.IngestResponse
	for i, rec := range req.Records {
		if err := validateUsageRecord(rec); err != nil {
			s.skip(ctx, eventKindUsage, skipReasonValidation, i, err)
			resp.Skipped++
			continue
		}

		customer, err := s.resolveCustomer(ctx, resolved, rec.CustomerExternalID, rec.CustomerName, rec.Plan)
		if err != nil {
			s.skip(ctx, eventKindUsage, skipReasonCustomer, i, err)
			resp.Skipped++
			continue
		}

		metadata := rec.Metadata
		if metadata == nil {
			metadata = datatypes.JSONMap{}
		}
		event := eventdomain.UsageEvent{
			ID:         s.genID.Generate(),
			CustomerID: customer.ID,
			Feature:    strings.TrimSpace(rec.Feature),
			Quantity:   rec.Quantity,
			UnitCost:   rec.UnitCost,
			Timestamp:  rec.Timestamp.UTC(),
			Source:     strings.TrimSpace(rec.Source),
			Metadata:   metadata,
			CreatedAt:  s.clock.Now(),
		}
		if err := s.repo.InsertUsageEvent(ctx, s.db, &event); err != nil {
			s.skip(ctx, eventKindUsage, skipReasonDB, i, err)
			resp.Skipped++
			continue
		}

		resp.Ingested++
		if s.metrics != nil {
			s.metrics.RecordEventIngested(ctx, eventKindUsage)
		}
	}

	s.log.Info("usage batch ingested",
		zap.Int("ingested", resp.Ingested),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}

// IngestRevenue persists a batch of revenue records. Records whose external
// identifier was seen before are counted as skipped, not failed.
func (s *Service) IngestRevenue(ctx context.Context, req eventdomain.IngestRevenueRequest) (eventdomain.IngestResponse, error) {
	if len(req.Records) == 0 {
		return eventdomain.IngestResponse{}, eventdomain.ErrEmptyBatch
	}

	resolved := make(map[string]*customerdomain.Customer, len(req.Records))
	var resp eventdomain.IngestResponse
	for i, rec := range req.Records {
		eventType, err := validateRevenueRecord(rec)
		if err != nil {
			s.skip(ctx, eventKindRevenue, skipReasonValidation, i, err)
			resp.Skipped++
			continue
		}

		customer, err := s.resolveCustomer(ctx, resolved, rec.CustomerExternalID, rec.CustomerName, rec.Plan)
		if err != nil {
			s.skip(ctx, eventKindRevenue, skipReasonCustomer, i, err)
			resp.Skipped++
			continue
		}

		currency := strings.ToUpper(strings.TrimSpace(rec.Currency))
		if currency == "" {
			currency = defaultCurrency
		}
		event := eventdomain.RevenueEvent{
			ID:         s.genID.Generate(),
			CustomerID: customer.ID,
			Amount:     rec.Amount,
			Currency:   currency,
			EventType:  eventType,
			ExternalID: strings.TrimSpace(rec.ExternalID),
			Timestamp:  rec.Timestamp.UTC(),
			CreatedAt:  s.clock.Now(),
		}
		inserted, err := s.repo.InsertRevenueEvent(ctx, s.db, &event)
		if err != nil {
			s.skip(ctx, eventKindRevenue, skipReasonDB, i, err)
			resp.Skipped++
			continue
		}
		if !inserted {
			s.skip(ctx, eventKindRevenue, skipReasonDuplicate, i, eventdomain.ErrDuplicateExternalID)
			resp.Skipped++
			continue
		}

		resp.Ingested++
		if s.metrics != nil {
			s.metrics.RecordEventIngested(ctx, eventKindRevenue)
		}
	}

	s.log.Info("revenue batch ingested",
		zap.Int("ingested", resp.Ingested),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}

func (s *Service) Statistics(ctx context.Context, req eventdomain.StatisticsRequest) (eventdomain.StatisticsResponse, error) {
	from := req.From.UTC()
	to := req.To.UTC()
	if req.To.IsZero() {
		to = s.clock.Now()
	}
	if !from.Before(to) {
		return eventdomain.StatisticsResponse{}, eventdomain.ErrInvalidRange
	}

	usageCount, err := s.repo.CountUsageEvents(ctx, s.db, from, to)
	if err != nil {
		return eventdomain.StatisticsResponse{}, err
	}
	revenueCount, err := s.repo.CountRevenueEvents(ctx, s.db, from, to)
	if err != nil {
		return eventdomain.StatisticsResponse{}, err
	}
	customerCount, err := s.repo.CountCustomers(ctx, s.db)
	if err != nil {
		return eventdomain.StatisticsResponse{}, err
	}

	return eventdomain.StatisticsResponse{
		UsageEvents:   usageCount,
		RevenueEvents: revenueCount,
		Customers:     customerCount,
	}, nil
}

// resolveCustomer looks a customer up by external id and lazily creates it on
// first sight. The per-batch cache avoids refetching the same customer.
func (s *Service) resolveCustomer(ctx context.Context, cache map[string]*customerdomain.Customer, externalID, name, plan string) (*customerdomain.Customer, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, eventdomain.ErrInvalidCustomer
	}
	if customer, ok := cache[externalID]; ok {
		return customer, nil
	}

	customer, err := s.customerRepo.FindByExternalID(ctx, s.db, externalID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		customer, err = s.createCustomer(ctx, externalID, name, plan)
		if err != nil {
			return nil, err
		}
	}

	cache[externalID] = customer
	return customer, nil
}

func (s *Service) createCustomer(ctx context.Context, externalID, name, plan string) (*customerdomain.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = externalID
	}
	plan = strings.TrimSpace(plan)
	if plan == "" {
		plan = defaultPlan
	}

	now := s.clock.Now()
	customer := customerdomain.Customer{
		ID:         s.genID.Generate(),
		ExternalID: externalID,
		Name:       name,
		Plan:       plan,
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.customerRepo.Insert(ctx, s.db, &customer); err != nil {
		// Concurrent ingest may have created it first.
		if pkgdb.IsDuplicateKeyErr(err) {
			existing, findErr := s.customerRepo.FindByExternalID(ctx, s.db, externalID)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.log.Info("customer created",
		zap.String("external_id", externalID),
		zap.String("plan", plan),
	)
	return &customer, nil
}

func (s *Service) skip(ctx context.Context, kind, reason string, index int, err error) {
	s.log.Warn("event record skipped",
		zap.String("kind", kind),
		zap.String("reason", reason),
		zap.Int("index", index),
		zap.Error(err),
	)
	if s.metrics != nil {
		s.metrics.RecordEventSkipped(ctx, kind, reason)
	}
}

func validateUsageRecord(rec eventdomain.IngestUsageRecord) error {
	if strings.TrimSpace(rec.Feature) == "" {
		return eventdomain.ErrInvalidFeature
	}
	if rec.Quantity <= 0 {
		return eventdomain.ErrInvalidQuantity
	}
	if rec.UnitCost < 0 {
		return eventdomain.ErrInvalidUnitCost
	}
	if rec.Timestamp.IsZero() {
		return eventdomain.ErrInvalidTimestamp
	}
	return nil
}

func validateRevenueRecord(rec eventdomain.IngestRevenueRecord) (eventdomain.EventType, error) {
	if strings.TrimSpace(rec.ExternalID) == "" {
		return "", eventdomain.ErrInvalidExternalID
	}
	if rec.Amount < 0 {
		return "", eventdomain.ErrInvalidAmount
	}
	if rec.Timestamp.IsZero() {
		return "", eventdomain.ErrInvalidTimestamp
	}
	eventType, ok := eventdomain.ParseEventType(rec.EventType)
	if !ok {
		return "", eventdomain.ErrInvalidEventType
	}
	return eventType, nil
}
