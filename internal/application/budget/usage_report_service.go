package budget

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/budget"
	"github.com/procure/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// UsageReportService produces traceable consumption reports over the ledger.
// It is read-only and runs outside any transaction scope: a report is a
// point-in-time snapshot, never a lock against concurrent ledger writes.
type UsageReportService struct {
	budgetRepo      budget.BudgetRepository
	allocationRepo  budget.AllocationRepository
	transferRepo    budget.TransferRepository
	consumptionRepo budget.ConsumptionRepository
	logger          *zap.Logger
}

// NewUsageReportService creates a new UsageReportService
func NewUsageReportService(
	budgetRepo budget.BudgetRepository,
	allocationRepo budget.AllocationRepository,
	transferRepo budget.TransferRepository,
	consumptionRepo budget.ConsumptionRepository,
	logger *zap.Logger,
) *UsageReportService {
	return &UsageReportService{
		budgetRepo:      budgetRepo,
		allocationRepo:  allocationRepo,
		transferRepo:    transferRepo,
		consumptionRepo: consumptionRepo,
		logger:          logger,
	}
}

// Report aggregates a budget's allocations, inbound and outbound transfers,
// and consumption records, optionally narrowed to a single trace ID or a
// date range
func (s *UsageReportService) Report(ctx context.Context, tenantID, budgetID uuid.UUID, filter UsageReportFilter) (*UsageReportDTO, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrTenantUnbound
	}

	b, err := s.budgetRepo.FindByIDForTenant(ctx, tenantID, budgetID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, budget.ErrBudgetNotFound
		}
		s.logger.Error("Failed to find budget for report", zap.Error(err))
		return nil, err
	}

	allocations, err := s.allocationRepo.FindBySourceBudget(ctx, tenantID, budgetID)
	if err != nil {
		s.logger.Error("Failed to load allocations", zap.Error(err))
		return nil, err
	}

	transfers, err := s.transferRepo.FindByBudget(ctx, tenantID, budgetID)
	if err != nil {
		s.logger.Error("Failed to load transfers", zap.Error(err))
		return nil, err
	}

	consumptions, err := s.consumptionRepo.FindByBudget(ctx, tenantID, budgetID, budget.ConsumptionFilter{
		TraceID:   filter.TraceID,
		StartDate: filter.StartDate,
		EndDate:   filter.EndDate,
	})
	if err != nil {
		s.logger.Error("Failed to load consumptions", zap.Error(err))
		return nil, err
	}

	report := &UsageReportDTO{
		Budget:      *toBudgetDTO(b),
		ConsumedSum: b.ConsumedAmount(),
		GeneratedAt: time.Now(),
	}

	for i := range allocations {
		allocation := &allocations[i]
		if !s.matches(filter, allocation.TraceID, allocation.CreatedAt) {
			continue
		}
		report.Allocations = append(report.Allocations, toAllocationDTO(allocation))
	}

	for i := range transfers {
		transfer := &transfers[i]
		if !s.matches(filter, transfer.TraceID(), transfer.CreatedAt) {
			continue
		}
		dto := toTransferDTO(transfer)
		if transfer.TargetBudgetID == budgetID {
			report.TransfersIn = append(report.TransfersIn, dto)
		} else {
			report.TransfersOut = append(report.TransfersOut, dto)
		}
	}

	for i := range consumptions {
		report.Consumptions = append(report.Consumptions, toConsumptionDTO(&consumptions[i]))
	}

	return report, nil
}

// matches applies the trace and date filters to one record
func (s *UsageReportService) matches(filter UsageReportFilter, traceID string, createdAt time.Time) bool {
	if filter.TraceID != "" && traceID != filter.TraceID {
		return false
	}
	if filter.StartDate != nil && createdAt.Before(*filter.StartDate) {
		return false
	}
	if filter.EndDate != nil && createdAt.After(*filter.EndDate) {
		return false
	}
	return true
}
