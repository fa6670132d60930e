package budget

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procure/backend/internal/domain/budget"
	"github.com/procure/backend/internal/domain/org"
	"github.com/procure/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// In-memory fakes
// =============================================================================

type fakeBudgetRepo struct {
	budgets map[uuid.UUID]*budget.Budget
}

func newFakeBudgetRepo() *fakeBudgetRepo {
	return &fakeBudgetRepo{budgets: make(map[uuid.UUID]*budget.Budget)}
}

func (r *fakeBudgetRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*budget.Budget, error) {
	b, ok := r.budgets[id]
	if !ok || b.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *fakeBudgetRepo) FindByOwner(_ context.Context, tenantID uuid.UUID, fiscalYear string, orgUnitID uuid.UUID) (*budget.Budget, error) {
	for _, b := range r.budgets {
		if b.TenantID == tenantID && b.FiscalYear == fiscalYear && b.OrgUnitID == orgUnitID {
			copied := *b
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeBudgetRepo) ExistsByOwner(ctx context.Context, tenantID uuid.UUID, fiscalYear string, orgUnitID uuid.UUID) (bool, error) {
	_, err := r.FindByOwner(ctx, tenantID, fiscalYear, orgUnitID)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (r *fakeBudgetRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]budget.Budget, error) {
	var result []budget.Budget
	for _, b := range r.budgets {
		if b.TenantID == tenantID {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (r *fakeBudgetRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	items, _ := r.FindAllForTenant(ctx, tenantID, filter)
	return int64(len(items)), nil
}

func (r *fakeBudgetRepo) Create(_ context.Context, b *budget.Budget) error {
	copied := *b
	r.budgets[b.ID] = &copied
	return nil
}

func (r *fakeBudgetRepo) DecrementAvailable(_ context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) error {
	b, ok := r.budgets[id]
	if !ok || b.TenantID != tenantID {
		return budget.ErrBudgetNotFound
	}
	if b.AvailableAmount.LessThan(amount) {
		return budget.NewInsufficientFundsError(amount, b.AvailableAmount)
	}
	b.AvailableAmount = b.AvailableAmount.Sub(amount)
	return nil
}

func (r *fakeBudgetRepo) IncrementAvailable(_ context.Context, tenantID, id uuid.UUID, amount decimal.Decimal) error {
	b, ok := r.budgets[id]
	if !ok || b.TenantID != tenantID {
		return budget.ErrBudgetNotFound
	}
	b.AvailableAmount = b.AvailableAmount.Add(amount)
	return nil
}

func (r *fakeBudgetRepo) DeleteForTenant(_ context.Context, tenantID, id uuid.UUID) error {
	b, ok := r.budgets[id]
	if !ok || b.TenantID != tenantID {
		return shared.ErrNotFound
	}
	delete(r.budgets, id)
	return nil
}

func (r *fakeBudgetRepo) available(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	b, ok := r.budgets[id]
	require.True(t, ok)
	return b.AvailableAmount
}

type fakeAllocationRepo struct {
	rows []*budget.BudgetAllocation
}

func (r *fakeAllocationRepo) CreateBatch(_ context.Context, allocations []*budget.BudgetAllocation) error {
	r.rows = append(r.rows, allocations...)
	return nil
}

func (r *fakeAllocationRepo) FindBySourceBudget(_ context.Context, tenantID, sourceBudgetID uuid.UUID) ([]budget.BudgetAllocation, error) {
	var result []budget.BudgetAllocation
	for _, a := range r.rows {
		if a.TenantID == tenantID && a.SourceBudgetID == sourceBudgetID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (r *fakeAllocationRepo) FindByTraceID(_ context.Context, tenantID uuid.UUID, traceID string) ([]budget.BudgetAllocation, error) {
	var result []budget.BudgetAllocation
	for _, a := range r.rows {
		if a.TenantID == tenantID && a.TraceID == traceID {
			result = append(result, *a)
		}
	}
	return result, nil
}

type fakeTransferRepo struct {
	rows []*budget.BudgetTransfer
}

func (r *fakeTransferRepo) Create(_ context.Context, transfer *budget.BudgetTransfer) error {
	r.rows = append(r.rows, transfer)
	return nil
}

func (r *fakeTransferRepo) FindByBudget(_ context.Context, tenantID, budgetID uuid.UUID) ([]budget.BudgetTransfer, error) {
	var result []budget.BudgetTransfer
	for _, tr := range r.rows {
		if tr.TenantID == tenantID && (tr.SourceBudgetID == budgetID || tr.TargetBudgetID == budgetID) {
			result = append(result, *tr)
		}
	}
	return result, nil
}

func (r *fakeTransferRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*budget.BudgetTransfer, error) {
	for _, tr := range r.rows {
		if tr.TenantID == tenantID && tr.ID == id {
			copied := *tr
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

type fakeConsumptionRepo struct {
	rows map[string]*budget.BudgetConsumption
}

func newFakeConsumptionRepo() *fakeConsumptionRepo {
	return &fakeConsumptionRepo{rows: make(map[string]*budget.BudgetConsumption)}
}

func consumptionKey(tenantID uuid.UUID, documentID string, itemNumber int) string {
	return fmt.Sprintf("%s/%s/%d", tenantID, documentID, itemNumber)
}

func (r *fakeConsumptionRepo) Upsert(_ context.Context, c *budget.BudgetConsumption) error {
	copied := *c
	r.rows[consumptionKey(c.TenantID, c.DocumentID, c.ItemNumber)] = &copied
	return nil
}

func (r *fakeConsumptionRepo) FindByDocumentItem(_ context.Context, tenantID uuid.UUID, documentID string, itemNumber int) (*budget.BudgetConsumption, error) {
	c, ok := r.rows[consumptionKey(tenantID, documentID, itemNumber)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeConsumptionRepo) FindByBudget(_ context.Context, tenantID, budgetID uuid.UUID, filter budget.ConsumptionFilter) ([]budget.BudgetConsumption, error) {
	var result []budget.BudgetConsumption
	for _, c := range r.rows {
		if c.TenantID != tenantID || c.BudgetID != budgetID {
			continue
		}
		if filter.TraceID != "" && c.TransferTraceID != filter.TraceID {
			continue
		}
		result = append(result, *c)
	}
	return result, nil
}

func (r *fakeConsumptionRepo) SumByBudget(_ context.Context, tenantID, budgetID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, c := range r.rows {
		if c.TenantID == tenantID && c.BudgetID == budgetID {
			sum = sum.Add(c.ConsumedAmount)
		}
	}
	return sum, nil
}

type fakeOrgUnitRepo struct {
	units map[uuid.UUID]*org.OrgUnit
}

func newFakeOrgUnitRepo() *fakeOrgUnitRepo {
	return &fakeOrgUnitRepo{units: make(map[uuid.UUID]*org.OrgUnit)}
}

func (r *fakeOrgUnitRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*org.OrgUnit, error) {
	u, ok := r.units[id]
	if !ok || u.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

func (r *fakeOrgUnitRepo) FindByIDsForTenant(_ context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]org.OrgUnit, error) {
	var result []org.OrgUnit
	for _, id := range ids {
		if u, ok := r.units[id]; ok && u.TenantID == tenantID {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (r *fakeOrgUnitRepo) FindByCode(_ context.Context, tenantID uuid.UUID, code string) (*org.OrgUnit, error) {
	for _, u := range r.units {
		if u.TenantID == tenantID && u.Code == code {
			return u, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeOrgUnitRepo) FindChildren(_ context.Context, tenantID, parentID uuid.UUID) ([]org.OrgUnit, error) {
	var result []org.OrgUnit
	for _, u := range r.units {
		if u.TenantID == tenantID && u.ParentID != nil && *u.ParentID == parentID {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (r *fakeOrgUnitRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]org.OrgUnit, error) {
	var result []org.OrgUnit
	for _, u := range r.units {
		if u.TenantID == tenantID {
			result = append(result, *u)
		}
	}
	return result, nil
}

func (r *fakeOrgUnitRepo) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	units, _ := r.FindAllForTenant(ctx, tenantID, shared.Filter{})
	return int64(len(units)), nil
}

func (r *fakeOrgUnitRepo) Save(_ context.Context, unit *org.OrgUnit) error {
	r.units[unit.ID] = unit
	return nil
}

func (r *fakeOrgUnitRepo) DeleteForTenant(_ context.Context, tenantID, id uuid.UUID) error {
	u, ok := r.units[id]
	if !ok || u.TenantID != tenantID {
		return shared.ErrNotFound
	}
	delete(r.units, id)
	return nil
}

type fakeOutboxRepo struct {
	entries []*shared.OutboxEntry
}

func (r *fakeOutboxRepo) Save(_ context.Context, entries ...*shared.OutboxEntry) error {
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *fakeOutboxRepo) FindPending(_ context.Context, limit int) ([]*shared.OutboxEntry, error) {
	if limit > len(r.entries) {
		limit = len(r.entries)
	}
	return r.entries[:limit], nil
}

func (r *fakeOutboxRepo) FindByID(_ context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	for _, e := range r.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeOutboxRepo) FindRetryable(_ context.Context, _ time.Time, _ int) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) FindDead(_ context.Context, _, _ int) ([]*shared.OutboxEntry, int64, error) {
	return nil, 0, nil
}

func (r *fakeOutboxRepo) MarkProcessing(_ context.Context, _ []uuid.UUID) ([]*shared.OutboxEntry, error) {
	return nil, nil
}

func (r *fakeOutboxRepo) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func (r *fakeOutboxRepo) FindByAggregateID(_ context.Context, aggregateID uuid.UUID) ([]*shared.OutboxEntry, error) {
	var result []*shared.OutboxEntry
	for _, e := range r.entries {
		if e.AggregateID == aggregateID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *fakeOutboxRepo) Update(_ context.Context, _ *shared.OutboxEntry) error {
	return nil
}

func (r *fakeOutboxRepo) CountByStatus(_ context.Context) (map[shared.OutboxStatus]int64, error) {
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *fakeOutboxRepo) topics() []string {
	result := make([]string, len(r.entries))
	for i, e := range r.entries {
		result[i] = e.EventType
	}
	return result
}

// =============================================================================
// Test harness
// =============================================================================

type ledgerFixture struct {
	service      *LedgerService
	budgets      *fakeBudgetRepo
	allocations  *fakeAllocationRepo
	transfers    *fakeTransferRepo
	consumptions *fakeConsumptionRepo
	orgUnits     *fakeOrgUnitRepo
	outbox       *fakeOutboxRepo
	tenantID     uuid.UUID
}

func newLedgerFixture() *ledgerFixture {
	budgets := newFakeBudgetRepo()
	allocations := &fakeAllocationRepo{}
	transfers := &fakeTransferRepo{}
	consumptions := newFakeConsumptionRepo()
	orgUnits := newFakeOrgUnitRepo()
	outbox := &fakeOutboxRepo{}

	scope := NewNoOpTransactionScope(budgets, allocations, transfers, consumptions, orgUnits, outbox)
	service := NewLedgerService(scope, budgets, shared.NopAuditSink{}, zap.NewNop())

	return &ledgerFixture{
		service:      service,
		budgets:      budgets,
		allocations:  allocations,
		transfers:    transfers,
		consumptions: consumptions,
		orgUnits:     orgUnits,
		outbox:       outbox,
		tenantID:     uuid.New(),
	}
}

func (f *ledgerFixture) addOrgUnit(t *testing.T, code string) *org.OrgUnit {
	t.Helper()
	unit, err := org.NewOrgUnit(f.tenantID, code, code, org.OrgUnitTypeDepartment)
	require.NoError(t, err)
	require.NoError(t, f.orgUnits.Save(context.Background(), unit))
	return unit
}

func (f *ledgerFixture) addBudget(t *testing.T, fiscalYear string, orgUnitID uuid.UUID, total int64) *budget.Budget {
	t.Helper()
	b, err := budget.NewBudget(f.tenantID, fiscalYear, orgUnitID, decimal.NewFromInt(total), budget.BudgetTypeDepartment)
	require.NoError(t, err)
	require.NoError(t, f.budgets.Create(context.Background(), b))
	return b
}

// =============================================================================
// Tests
// =============================================================================

func TestLedgerServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates budget with full amount available", func(t *testing.T) {
		f := newLedgerFixture()
		unit := f.addOrgUnit(t, "FINANCE")

		dto, err := f.service.Create(ctx, f.tenantID, CreateBudgetInput{
			FiscalYear:  "2026",
			OrgUnitID:   unit.ID,
			TotalAmount: decimal.NewFromInt(50000000),
			Type:        "department",
		})

		require.NoError(t, err)
		assert.True(t, dto.AvailableAmount.Equal(decimal.NewFromInt(50000000)))
		assert.True(t, dto.ConsumedAmount.IsZero())
		assert.Equal(t, []string{budget.EventTypeBudgetCreated}, f.outbox.topics())
	})

	t.Run("rejects duplicate owner", func(t *testing.T) {
		f := newLedgerFixture()
		unit := f.addOrgUnit(t, "FINANCE")
		f.addBudget(t, "2026", unit.ID, 1000)

		_, err := f.service.Create(ctx, f.tenantID, CreateBudgetInput{
			FiscalYear:  "2026",
			OrgUnitID:   unit.ID,
			TotalAmount: decimal.NewFromInt(500),
			Type:        "department",
		})

		assert.ErrorIs(t, err, budget.ErrDuplicateBudget)
	})

	t.Run("rejects unknown org unit", func(t *testing.T) {
		f := newLedgerFixture()

		_, err := f.service.Create(ctx, f.tenantID, CreateBudgetInput{
			FiscalYear:  "2026",
			OrgUnitID:   uuid.New(),
			TotalAmount: decimal.NewFromInt(500),
			Type:        "department",
		})

		assert.ErrorIs(t, err, budget.ErrOrgUnitNotFound)
	})

	t.Run("fails closed without a tenant", func(t *testing.T) {
		f := newLedgerFixture()

		_, err := f.service.Create(ctx, uuid.Nil, CreateBudgetInput{
			FiscalYear:  "2026",
			OrgUnitID:   uuid.New(),
			TotalAmount: decimal.NewFromInt(500),
			Type:        "department",
		})

		assert.ErrorIs(t, err, shared.ErrTenantUnbound)
	})
}

func TestLedgerServiceTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("conserves combined available balance", func(t *testing.T) {
		f := newLedgerFixture()
		unitA := f.addOrgUnit(t, "UNIT-A")
		unitB := f.addOrgUnit(t, "UNIT-B")
		a := f.addBudget(t, "2026", unitA.ID, 50000000)
		b := f.addBudget(t, "2026", unitB.ID, 50000000)

		dto, err := f.service.Transfer(ctx, f.tenantID, TransferInput{
			SourceBudgetID: a.ID,
			TargetBudgetID: b.ID,
			Amount:         decimal.NewFromInt(10000000),
			Type:           "same_level",
			Traced:         true,
		})

		require.NoError(t, err)
		assert.True(t, f.budgets.available(t, a.ID).Equal(decimal.NewFromInt(40000000)))
		assert.True(t, f.budgets.available(t, b.ID).Equal(decimal.NewFromInt(60000000)))
		assert.Equal(t, dto.ID.String(), dto.TraceID)
		assert.Equal(t, []string{budget.EventTypeBudgetTransferred}, f.outbox.topics())
	})

	t.Run("insufficient funds leaves both balances unchanged", func(t *testing.T) {
		f := newLedgerFixture()
		unitA := f.addOrgUnit(t, "UNIT-A")
		unitB := f.addOrgUnit(t, "UNIT-B")
		a := f.addBudget(t, "2026", unitA.ID, 40000000)
		b := f.addBudget(t, "2026", unitB.ID, 60000000)

		_, err := f.service.Transfer(ctx, f.tenantID, TransferInput{
			SourceBudgetID: a.ID,
			TargetBudgetID: b.ID,
			Amount:         decimal.NewFromInt(99999999999),
			Type:           "same_level",
			Traced:         true,
		})

		var insufficientErr *budget.InsufficientFundsError
		require.ErrorAs(t, err, &insufficientErr)
		assert.True(t, insufficientErr.Requested.Equal(decimal.NewFromInt(99999999999)))
		assert.True(t, insufficientErr.Available.Equal(decimal.NewFromInt(40000000)))
		assert.True(t, f.budgets.available(t, a.ID).Equal(decimal.NewFromInt(40000000)))
		assert.True(t, f.budgets.available(t, b.ID).Equal(decimal.NewFromInt(60000000)))
		assert.Empty(t, f.transfers.rows)
	})

	t.Run("rejects cross-year transfer without mutating either budget", func(t *testing.T) {
		f := newLedgerFixture()
		unitA := f.addOrgUnit(t, "UNIT-A")
		unitB := f.addOrgUnit(t, "UNIT-B")
		a := f.addBudget(t, "2025", unitA.ID, 1000)
		b := f.addBudget(t, "2026", unitB.ID, 1000)

		_, err := f.service.Transfer(ctx, f.tenantID, TransferInput{
			SourceBudgetID: a.ID,
			TargetBudgetID: b.ID,
			Amount:         decimal.NewFromInt(100),
			Type:           "same_level",
		})

		assert.ErrorIs(t, err, budget.ErrFiscalYearMismatch)
		assert.True(t, f.budgets.available(t, a.ID).Equal(decimal.NewFromInt(1000)))
		assert.True(t, f.budgets.available(t, b.ID).Equal(decimal.NewFromInt(1000)))
	})

	t.Run("rejects missing target budget", func(t *testing.T) {
		f := newLedgerFixture()
		unitA := f.addOrgUnit(t, "UNIT-A")
		a := f.addBudget(t, "2026", unitA.ID, 1000)

		_, err := f.service.Transfer(ctx, f.tenantID, TransferInput{
			SourceBudgetID: a.ID,
			TargetBudgetID: uuid.New(),
			Amount:         decimal.NewFromInt(100),
			Type:           "same_level",
		})

		assert.ErrorIs(t, err, budget.ErrBudgetNotFound)
	})
}

func TestLedgerServiceAllocate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates one row per target and decrements once", func(t *testing.T) {
		f := newLedgerFixture()
		parent := f.addOrgUnit(t, "PARENT")
		childA := f.addOrgUnit(t, "CHILD-A")
		childB := f.addOrgUnit(t, "CHILD-B")
		source := f.addBudget(t, "2026", parent.ID, 40000000)

		dtos, err := f.service.Allocate(ctx, f.tenantID, AllocateInput{
			SourceBudgetID: source.ID,
			Targets: []AllocationTarget{
				{OrgUnitID: childA.ID, Amount: decimal.NewFromInt(5000000)},
				{OrgUnitID: childB.ID, Amount: decimal.NewFromInt(3000000)},
			},
			Reason: "Quarterly distribution",
		})

		require.NoError(t, err)
		require.Len(t, dtos, 2)
		assert.True(t, f.budgets.available(t, source.ID).Equal(decimal.NewFromInt(32000000)))
		assert.Len(t, f.allocations.rows, 2)
		assert.Equal(t, dtos[0].TraceID, dtos[1].TraceID, "All rows of one call share a trace id")
		assert.Equal(t, []string{budget.EventTypeBudgetAllocated}, f.outbox.topics())
	})

	t.Run("insufficient funds leaves the balance unchanged", func(t *testing.T) {
		f := newLedgerFixture()
		parent := f.addOrgUnit(t, "PARENT")
		child := f.addOrgUnit(t, "CHILD")
		source := f.addBudget(t, "2026", parent.ID, 1000)

		_, err := f.service.Allocate(ctx, f.tenantID, AllocateInput{
			SourceBudgetID: source.ID,
			Targets: []AllocationTarget{
				{OrgUnitID: child.ID, Amount: decimal.NewFromInt(600)},
				{OrgUnitID: child.ID, Amount: decimal.NewFromInt(600)},
			},
		})

		var insufficientErr *budget.InsufficientFundsError
		require.ErrorAs(t, err, &insufficientErr)
		assert.True(t, f.budgets.available(t, source.ID).Equal(decimal.NewFromInt(1000)))
		assert.Empty(t, f.allocations.rows)
	})

	t.Run("rejects unknown target org unit before any write", func(t *testing.T) {
		f := newLedgerFixture()
		parent := f.addOrgUnit(t, "PARENT")
		source := f.addBudget(t, "2026", parent.ID, 1000)

		_, err := f.service.Allocate(ctx, f.tenantID, AllocateInput{
			SourceBudgetID: source.ID,
			Targets: []AllocationTarget{
				{OrgUnitID: uuid.New(), Amount: decimal.NewFromInt(100)},
			},
		})

		assert.ErrorIs(t, err, budget.ErrOrgUnitNotFound)
		assert.True(t, f.budgets.available(t, source.ID).Equal(decimal.NewFromInt(1000)))
	})

	t.Run("rejects empty target list", func(t *testing.T) {
		f := newLedgerFixture()

		_, err := f.service.Allocate(ctx, f.tenantID, AllocateInput{SourceBudgetID: uuid.New()})

		assert.Error(t, err)
	})
}

func TestLedgerServiceDeduct(t *testing.T) {
	ctx := context.Background()

	t.Run("repeating the same item deducts only once", func(t *testing.T) {
		f := newLedgerFixture()
		unit := f.addOrgUnit(t, "UNIT-B")
		b := f.addBudget(t, "2026", unit.ID, 60000000)

		input := DeductInput{
			BudgetID:     b.ID,
			DocumentType: "purchase_order",
			DocumentID:   "PO-1001",
			Items:        []DeductItem{{ItemNumber: 1, Amount: decimal.NewFromInt(5000)}},
		}

		_, err := f.service.Deduct(ctx, f.tenantID, input)
		require.NoError(t, err)
		_, err = f.service.Deduct(ctx, f.tenantID, input)
		require.NoError(t, err)

		assert.True(t, f.budgets.available(t, b.ID).Equal(decimal.NewFromInt(59995000)))
		assert.Len(t, f.consumptions.rows, 1)

		row, err := f.consumptions.FindByDocumentItem(ctx, f.tenantID, "PO-1001", 1)
		require.NoError(t, err)
		assert.True(t, row.ConsumedAmount.Equal(decimal.NewFromInt(5000)))
	})

	t.Run("rejects duplicate item numbers without charging the budget", func(t *testing.T) {
		f := newLedgerFixture()
		unit := f.addOrgUnit(t, "UNIT-B")
		b := f.addBudget(t, "2026", unit.ID, 10000)

		_, err := f.service.Deduct(ctx, f.tenantID, DeductInput{
			BudgetID:     b.ID,
			DocumentType: "purchase_order",
			DocumentID:   "PO-2002",
			Items: []DeductItem{
				{ItemNumber: 1, Amount: decimal.NewFromInt(100)},
				{ItemNumber: 1, Amount: decimal.NewFromInt(100)},
			},
		})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_DEDUCTION", domainErr.Code)
		assert.True(t, f.budgets.available(t, b.ID).Equal(decimal.NewFromInt(10000)))
		assert.Empty(t, f.consumptions.rows)
	})

	t.Run("resubmitting with a new amount applies only the difference", func(t *testing.T) {
		f := newLedgerFixture()
		unit := f.addOrgUnit(t, "UNIT-B")
		b := f.addBudget(t, "2026", unit.ID, 10000)

		_, err := f.service.Deduct(ctx, f.tenantID, DeductInput{
			BudgetID:     b.ID,
			DocumentType: "invoice",
			DocumentID:   "INV-7",
			Items:        []DeductItem{{ItemNumber: 1, Amount: decimal.NewFromInt(4000)}},
		})
		require.NoError(t, err)

		_, err = f.service.Deduct(ctx, f.tenantID, DeductInput{
			BudgetID:     b.ID,
			DocumentType: "invoice",
			DocumentID:   "INV-7",
			Items:        []DeductItem{{ItemNumber: 1, Amount: decimal.NewFromInt(2500)}},
		})
		require.NoError(t, err)

		assert.True(t, f.budgets.available(t, b.ID).Equal(decimal.NewFromInt(7500)))
		row, err := f.consumptions.FindByDocumentItem(ctx, f.tenantID, "INV-7", 1)
		require.NoError(t, err)
		assert.True(t, row.ConsumedAmount.Equal(decimal.NewFromInt(2500)))
	})

	t.Run("rejects moving a charged item to a different budget", func(t *testing.T) {
		f := newLedgerFixture()
		unitA := f.addOrgUnit(t, "UNIT-A")
		unitB := f.addOrgUnit(t, "UNIT-B")
		a := f.addBudget(t, "2026", unitA.ID, 10000)
		b := f.addBudget(t, "2026", unitB.ID, 10000)

		_, err := f.service.Deduct(ctx, f.tenantID, DeductInput{
			BudgetID:     a.ID,
			DocumentType: "invoice",
			DocumentID:   "INV-12",
			Items:        []DeductItem{{ItemNumber: 1, Amount: decimal.NewFromInt(3000)}},
		})
		require.NoError(t, err)

		_, err = f.service.Deduct(ctx, f.tenantID, DeductInput{
			BudgetID:     b.ID,
			DocumentType: "invoice",
			DocumentID:   "INV-12",
			Items:        []DeductItem{{ItemNumber: 1, Amount: decimal.NewFromInt(3000)}},
		})

		assert.ErrorIs(t, err, budget.ErrDeductionMismatch)
		assert.True(t, f.budgets.available(t, a.ID).Equal(decimal.NewFromInt(7000)))
		assert.True(t, f.budgets.available(t, b.ID).Equal(decimal.NewFromInt(10000)))

		row, err := f.consumptions.FindByDocumentItem(ctx, f.tenantID, "INV-12", 1)
		require.NoError(t, err)
		assert.Equal(t, a.ID, row.BudgetID)
	})

	t.Run("propagates the transfer trace id to consumption rows", func(t *testing.T) {
		f := newLedgerFixture()
		unitA := f.addOrgUnit(t, "UNIT-A")
		unitB := f.addOrgUnit(t, "UNIT-B")
		a := f.addBudget(t, "2026", unitA.ID, 100000)
		b := f.addBudget(t, "2026", unitB.ID, 100000)

		transfer, err := f.service.Transfer(ctx, f.tenantID, TransferInput{
			SourceBudgetID: a.ID,
			TargetBudgetID: b.ID,
			Amount:         decimal.NewFromInt(50000),
			Type:           "same_level",
			Traced:         true,
		})
		require.NoError(t, err)

		_, err = f.service.Deduct(ctx, f.tenantID, DeductInput{
			BudgetID:        b.ID,
			DocumentType:    "purchase_order",
			DocumentID:      "PO-9",
			Items:           []DeductItem{{ItemNumber: 1, Amount: decimal.NewFromInt(100)}},
			TransferTraceID: transfer.TraceID,
		})
		require.NoError(t, err)

		row, err := f.consumptions.FindByDocumentItem(ctx, f.tenantID, "PO-9", 1)
		require.NoError(t, err)
		assert.Equal(t, transfer.TraceID, row.TransferTraceID)
	})

	t.Run("insufficient funds rejects the whole call", func(t *testing.T) {
		f := newLedgerFixture()
		unit := f.addOrgUnit(t, "UNIT-B")
		b := f.addBudget(t, "2026", unit.ID, 100)

		_, err := f.service.Deduct(ctx, f.tenantID, DeductInput{
			BudgetID:     b.ID,
			DocumentType: "purchase_order",
			DocumentID:   "PO-1",
			Items:        []DeductItem{{ItemNumber: 1, Amount: decimal.NewFromInt(500)}},
		})

		var insufficientErr *budget.InsufficientFundsError
		require.ErrorAs(t, err, &insufficientErr)
		assert.True(t, f.budgets.available(t, b.ID).Equal(decimal.NewFromInt(100)))
	})
}

func TestLedgerServiceTenantIsolation(t *testing.T) {
	ctx := context.Background()

	t.Run("a foreign tenant id never reaches another tenant's budget", func(t *testing.T) {
		f := newLedgerFixture()
		unit := f.addOrgUnit(t, "UNIT-A")
		b := f.addBudget(t, "2026", unit.ID, 1000)

		otherTenant := uuid.New()

		_, err := f.service.GetByID(ctx, otherTenant, b.ID)
		assert.ErrorIs(t, err, budget.ErrBudgetNotFound)

		_, err = f.service.Deduct(ctx, otherTenant, DeductInput{
			BudgetID:     b.ID,
			DocumentType: "invoice",
			DocumentID:   "INV-1",
			Items:        []DeductItem{{ItemNumber: 1, Amount: decimal.NewFromInt(10)}},
		})
		assert.ErrorIs(t, err, budget.ErrBudgetNotFound)
		assert.True(t, f.budgets.available(t, b.ID).Equal(decimal.NewFromInt(1000)))
	})
}

func TestUsageReportService(t *testing.T) {
	ctx := context.Background()

	newReportService := func(f *ledgerFixture) *UsageReportService {
		return NewUsageReportService(f.budgets, f.allocations, f.transfers, f.consumptions, zap.NewNop())
	}

	t.Run("aggregates movements and consumption", func(t *testing.T) {
		f := newLedgerFixture()
		parent := f.addOrgUnit(t, "PARENT")
		child := f.addOrgUnit(t, "CHILD")
		peerUnit := f.addOrgUnit(t, "PEER")
		source := f.addBudget(t, "2026", parent.ID, 100000)
		peer := f.addBudget(t, "2026", peerUnit.ID, 100000)

		_, err := f.service.Allocate(ctx, f.tenantID, AllocateInput{
			SourceBudgetID: source.ID,
			Targets:        []AllocationTarget{{OrgUnitID: child.ID, Amount: decimal.NewFromInt(20000)}},
		})
		require.NoError(t, err)

		_, err = f.service.Transfer(ctx, f.tenantID, TransferInput{
			SourceBudgetID: peer.ID,
			TargetBudgetID: source.ID,
			Amount:         decimal.NewFromInt(5000),
			Type:           "same_level",
		})
		require.NoError(t, err)

		_, err = f.service.Deduct(ctx, f.tenantID, DeductInput{
			BudgetID:     source.ID,
			DocumentType: "purchase_order",
			DocumentID:   "PO-1",
			Items:        []DeductItem{{ItemNumber: 1, Amount: decimal.NewFromInt(300)}},
		})
		require.NoError(t, err)

		report, err := newReportService(f).Report(ctx, f.tenantID, source.ID, UsageReportFilter{})

		require.NoError(t, err)
		assert.Len(t, report.Allocations, 1)
		assert.Len(t, report.TransfersIn, 1)
		assert.Empty(t, report.TransfersOut)
		assert.Len(t, report.Consumptions, 1)
		assert.True(t, report.Budget.AvailableAmount.Equal(decimal.NewFromInt(84700)))
	})

	t.Run("filters by trace id", func(t *testing.T) {
		f := newLedgerFixture()
		parent := f.addOrgUnit(t, "PARENT")
		child := f.addOrgUnit(t, "CHILD")
		source := f.addBudget(t, "2026", parent.ID, 100000)

		first, err := f.service.Allocate(ctx, f.tenantID, AllocateInput{
			SourceBudgetID: source.ID,
			Targets:        []AllocationTarget{{OrgUnitID: child.ID, Amount: decimal.NewFromInt(100)}},
		})
		require.NoError(t, err)
		_, err = f.service.Allocate(ctx, f.tenantID, AllocateInput{
			SourceBudgetID: source.ID,
			Targets:        []AllocationTarget{{OrgUnitID: child.ID, Amount: decimal.NewFromInt(200)}},
		})
		require.NoError(t, err)

		report, err := newReportService(f).Report(ctx, f.tenantID, source.ID, UsageReportFilter{TraceID: first[0].TraceID})

		require.NoError(t, err)
		require.Len(t, report.Allocations, 1)
		assert.Equal(t, first[0].TraceID, report.Allocations[0].TraceID)
	})

	t.Run("rejects unknown budget", func(t *testing.T) {
		f := newLedgerFixture()

		_, err := newReportService(f).Report(ctx, f.tenantID, uuid.New(), UsageReportFilter{})

		assert.ErrorIs(t, err, budget.ErrBudgetNotFound)
	})
}
