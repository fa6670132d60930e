package budget

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/budget"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService is the budget ledger engine. Every mutating operation runs
// inside one TransactionScope.Execute call: balance changes, record rows, and
// outbox entries commit or roll back together. Balance decrements are
// delegated to the repository's conditional update so concurrent callers
// cannot overdraw a budget.
type LedgerService struct {
	txScope    TransactionScope
	budgetRepo budget.BudgetRepository
	auditSink  shared.AuditSink
	logger     *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	txScope TransactionScope,
	budgetRepo budget.BudgetRepository,
	auditSink shared.AuditSink,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		txScope:    txScope,
		budgetRepo: budgetRepo,
		auditSink:  auditSink,
		logger:     logger,
	}
}

// Create creates a budget for an org unit and fiscal year with the full
// amount available
func (s *LedgerService) Create(ctx context.Context, tenantID uuid.UUID, input CreateBudgetInput) (*BudgetDTO, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrTenantUnbound
	}

	b, err := budget.NewBudget(tenantID, input.FiscalYear, input.OrgUnitID, input.TotalAmount, budget.BudgetType(input.Type))
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		if _, err := repos.OrgUnits().FindByIDForTenant(ctx, tenantID, input.OrgUnitID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return budget.ErrOrgUnitNotFound
			}
			return err
		}

		exists, err := repos.Budgets().ExistsByOwner(ctx, tenantID, input.FiscalYear, input.OrgUnitID)
		if err != nil {
			return err
		}
		if exists {
			return budget.ErrDuplicateBudget
		}

		if err := repos.Budgets().Create(ctx, b); err != nil {
			return err
		}

		return s.publishEvents(ctx, repos, tenantID, b.GetDomainEvents())
	})
	if err != nil {
		return nil, err
	}
	b.ClearDomainEvents()

	s.logger.Info("Budget created",
		zap.String("budget_id", b.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("fiscal_year", b.FiscalYear))

	s.audit(ctx, shared.NewAuditRecord("budget.create", "Budget", b.ID, tenantID).
		WithKeyFigures(map[string]any{
			"fiscal_year":  b.FiscalYear,
			"org_unit_id":  b.OrgUnitID.String(),
			"total_amount": b.TotalAmount.String(),
		}))

	return toBudgetDTO(b), nil
}

// Allocate distributes funds from a source budget to target org units.
// All allocation rows and the source decrement commit atomically; on any
// failure the source balance is unchanged.
func (s *LedgerService) Allocate(ctx context.Context, tenantID uuid.UUID, input AllocateInput) ([]AllocationDTO, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrTenantUnbound
	}
	if len(input.Targets) == 0 {
		return nil, shared.NewDomainError("INVALID_ALLOCATION", "At least one allocation target is required")
	}

	traceID := input.TraceID
	if traceID == "" {
		traceID = uuid.New().String()
	}

	totalRequested := decimal.Zero
	for _, target := range input.Targets {
		if !target.Amount.IsPositive() {
			return nil, shared.NewDomainError("INVALID_AMOUNT", "Allocation amount must be positive")
		}
		totalRequested = totalRequested.Add(target.Amount)
	}

	var dtos []AllocationDTO
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		source, err := repos.Budgets().FindByIDForTenant(ctx, tenantID, input.SourceBudgetID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return budget.ErrBudgetNotFound
			}
			return err
		}

		targetIDs := make([]uuid.UUID, len(input.Targets))
		for i, target := range input.Targets {
			targetIDs[i] = target.OrgUnitID
		}
		units, err := repos.OrgUnits().FindByIDsForTenant(ctx, tenantID, targetIDs)
		if err != nil {
			return err
		}
		found := make(map[uuid.UUID]bool, len(units))
		for _, unit := range units {
			found[unit.ID] = true
		}
		for _, id := range targetIDs {
			if !found[id] {
				return budget.ErrOrgUnitNotFound
			}
		}

		allocations := make([]*budget.BudgetAllocation, 0, len(input.Targets))
		lines := make([]budget.AllocationLine, 0, len(input.Targets))
		for _, target := range input.Targets {
			allocation, err := budget.NewBudgetAllocation(tenantID, source.ID, source.OrgUnitID, target.OrgUnitID, target.Amount, input.Reason, traceID)
			if err != nil {
				return err
			}
			allocations = append(allocations, allocation)
			lines = append(lines, budget.AllocationLine{
				AllocationID: allocation.ID,
				ToOrgUnitID:  allocation.ToOrgUnitID,
				Amount:       allocation.Amount,
			})
		}

		if err := repos.Budgets().DecrementAvailable(ctx, tenantID, source.ID, totalRequested); err != nil {
			return err
		}
		if err := repos.Allocations().CreateBatch(ctx, allocations); err != nil {
			return err
		}

		event := budget.NewBudgetAllocatedEvent(source, totalRequested, traceID, lines)
		if err := s.publishEvents(ctx, repos, tenantID, []shared.DomainEvent{event}); err != nil {
			return err
		}

		dtos = make([]AllocationDTO, len(allocations))
		for i, allocation := range allocations {
			dtos[i] = toAllocationDTO(allocation)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Budget allocated",
		zap.String("source_budget_id", input.SourceBudgetID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("total_amount", totalRequested.String()),
		zap.Int("targets", len(input.Targets)))

	s.audit(ctx, shared.NewAuditRecord("budget.allocate", "Budget", input.SourceBudgetID, tenantID).
		WithKeyFigures(map[string]any{
			"total_amount": totalRequested.String(),
			"targets":      len(input.Targets),
			"trace_id":     traceID,
		}))

	return dtos, nil
}

// Transfer moves funds between two budgets of the same fiscal year. The
// decrement and increment commit atomically, so the combined available
// balance of the pair is conserved. The transfer's ID becomes the trace ID
// propagated to downstream consumption records.
func (s *LedgerService) Transfer(ctx context.Context, tenantID uuid.UUID, input TransferInput) (*TransferDTO, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrTenantUnbound
	}

	var dto *TransferDTO
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		source, err := repos.Budgets().FindByIDForTenant(ctx, tenantID, input.SourceBudgetID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return budget.ErrBudgetNotFound
			}
			return err
		}
		target, err := repos.Budgets().FindByIDForTenant(ctx, tenantID, input.TargetBudgetID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return budget.ErrBudgetNotFound
			}
			return err
		}

		transfer, err := budget.NewBudgetTransfer(source, target, input.Amount, budget.TransferType(input.Type), input.Traced)
		if err != nil {
			return err
		}

		if err := repos.Budgets().DecrementAvailable(ctx, tenantID, source.ID, input.Amount); err != nil {
			return err
		}
		if err := repos.Budgets().IncrementAvailable(ctx, tenantID, target.ID, input.Amount); err != nil {
			return err
		}
		if err := repos.Transfers().Create(ctx, transfer); err != nil {
			return err
		}

		event := budget.NewBudgetTransferredEvent(transfer)
		if err := s.publishEvents(ctx, repos, tenantID, []shared.DomainEvent{event}); err != nil {
			return err
		}

		result := toTransferDTO(transfer)
		dto = &result
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Budget transferred",
		zap.String("source_budget_id", input.SourceBudgetID.String()),
		zap.String("target_budget_id", input.TargetBudgetID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("amount", input.Amount.String()))

	s.audit(ctx, shared.NewAuditRecord("budget.transfer", "BudgetTransfer", dto.ID, tenantID).
		WithKeyFigures(map[string]any{
			"source_budget_id": input.SourceBudgetID.String(),
			"target_budget_id": input.TargetBudgetID.String(),
			"amount":           input.Amount.String(),
			"trace_id":         dto.TraceID,
		}))

	return dto, nil
}

// Deduct consumes budget funds against the line items of a purchase order or
// invoice. Each item is keyed by (tenant, document, item number): when an
// item was already deducted, only the difference between the new and the
// recorded amount moves the balance, so re-submitting a document never
// double-deducts.
func (s *LedgerService) Deduct(ctx context.Context, tenantID uuid.UUID, input DeductInput) ([]ConsumptionDTO, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrTenantUnbound
	}
	if len(input.Items) == 0 {
		return nil, shared.NewDomainError("INVALID_DEDUCTION", "At least one document item is required")
	}
	// A duplicated item number would charge the budget twice while the
	// upsert keeps a single row, so the decrement would stop matching the
	// recorded consumption
	seen := make(map[int]struct{}, len(input.Items))
	for _, item := range input.Items {
		if _, dup := seen[item.ItemNumber]; dup {
			return nil, shared.NewDomainError("INVALID_DEDUCTION", "Duplicate item numbers in one deduction")
		}
		seen[item.ItemNumber] = struct{}{}
	}

	var dtos []ConsumptionDTO
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		b, err := repos.Budgets().FindByIDForTenant(ctx, tenantID, input.BudgetID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return budget.ErrBudgetNotFound
			}
			return err
		}

		totalAmount := decimal.Zero
		netDelta := decimal.Zero
		consumptions := make([]*budget.BudgetConsumption, 0, len(input.Items))
		for _, item := range input.Items {
			consumption, err := budget.NewBudgetConsumption(tenantID, b.ID, budget.DocumentType(input.DocumentType), input.DocumentID, item.ItemNumber, item.Amount, input.TransferTraceID)
			if err != nil {
				return err
			}
			consumptions = append(consumptions, consumption)
			totalAmount = totalAmount.Add(item.Amount)

			existing, err := repos.Consumptions().FindByDocumentItem(ctx, tenantID, input.DocumentID, item.ItemNumber)
			switch {
			case err == nil:
				if existing.BudgetID != b.ID {
					return budget.ErrDeductionMismatch
				}
				netDelta = netDelta.Add(item.Amount.Sub(existing.ConsumedAmount))
			case errors.Is(err, shared.ErrNotFound):
				netDelta = netDelta.Add(item.Amount)
			default:
				return err
			}
		}

		switch {
		case netDelta.IsPositive():
			if err := repos.Budgets().DecrementAvailable(ctx, tenantID, b.ID, netDelta); err != nil {
				return err
			}
		case netDelta.IsNegative():
			if err := repos.Budgets().IncrementAvailable(ctx, tenantID, b.ID, netDelta.Neg()); err != nil {
				return err
			}
		}

		for _, consumption := range consumptions {
			if err := repos.Consumptions().Upsert(ctx, consumption); err != nil {
				return err
			}
		}

		event := budget.NewBudgetDeductedEvent(b, budget.DocumentType(input.DocumentType), input.DocumentID, totalAmount, len(input.Items), input.TransferTraceID)
		if err := s.publishEvents(ctx, repos, tenantID, []shared.DomainEvent{event}); err != nil {
			return err
		}

		dtos = make([]ConsumptionDTO, len(consumptions))
		for i, consumption := range consumptions {
			dtos[i] = toConsumptionDTO(consumption)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Budget deducted",
		zap.String("budget_id", input.BudgetID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.String("document_id", input.DocumentID),
		zap.Int("items", len(input.Items)))

	s.audit(ctx, shared.NewAuditRecord("budget.deduct", "Budget", input.BudgetID, tenantID).
		WithKeyFigures(map[string]any{
			"document_type":     input.DocumentType,
			"document_id":       input.DocumentID,
			"items":             len(input.Items),
			"transfer_trace_id": input.TransferTraceID,
		}))

	return dtos, nil
}

// GetByID retrieves a single budget
func (s *LedgerService) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*BudgetDTO, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrTenantUnbound
	}

	b, err := s.budgetRepo.FindByIDForTenant(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, budget.ErrBudgetNotFound
		}
		s.logger.Error("Failed to find budget", zap.Error(err))
		return nil, err
	}
	return toBudgetDTO(b), nil
}

// List retrieves a paginated list of the tenant's budgets
func (s *LedgerService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (*BudgetListResult, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrTenantUnbound
	}

	budgets, err := s.budgetRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		s.logger.Error("Failed to list budgets", zap.Error(err))
		return nil, err
	}
	total, err := s.budgetRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		s.logger.Error("Failed to count budgets", zap.Error(err))
		return nil, err
	}

	dtos := make([]BudgetDTO, len(budgets))
	for i := range budgets {
		dtos[i] = *toBudgetDTO(&budgets[i])
	}

	paginated := shared.NewPaginated(dtos, total, filter.Page, filter.PageSize)
	return &BudgetListResult{
		Budgets:    paginated.Items,
		Total:      paginated.Total,
		Page:       paginated.Page,
		PageSize:   paginated.PageSize,
		TotalPages: paginated.TotalPages,
	}, nil
}

// publishEvents persists domain events as outbox entries within the current
// transaction
func (s *LedgerService) publishEvents(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, events []shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	entries := make([]*shared.OutboxEntry, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Error("Failed to marshal event", zap.Error(err))
			continue
		}
		entries = append(entries, shared.NewOutboxEntry(tenantID, event, payload))
	}

	if len(entries) == 0 {
		return nil
	}
	return repos.Outbox().Save(ctx, entries...)
}

// audit records the mutation in the audit sink. Sink failures are logged and
// never roll back the mutation they describe.
func (s *LedgerService) audit(ctx context.Context, record shared.AuditRecord) {
	if err := s.auditSink.Record(ctx, record); err != nil {
		s.logger.Warn("Audit sink failed",
			zap.String("action", record.Action),
			zap.Error(err))
	}
}
