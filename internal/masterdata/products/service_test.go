package products

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-inventory/internal/audit"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/references"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/shared"
)

// memoryRepo is a transactional in-memory store. Transactions are
// serialized, work on a copy of the rows and are discarded on error.
type memoryRepo struct {
	mu         sync.Mutex
	nextID     int64
	products   map[int64]Product
	entries    []audit.Entry
	categories map[int64]bool
	suppliers  map[int64]bool
	auditErr   error
	txCount    int
	// lockedReads counts GetForUpdate calls.
	lockedReads int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID:     1,
		products:   make(map[int64]Product),
		categories: map[int64]bool{7: true},
		suppliers:  map[int64]bool{3: true},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++

	tx := &memoryTx{repo: m, nextID: m.nextID, products: make(map[int64]Product, len(m.products))}
	for id, p := range m.products {
		tx.products[id] = p
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.products = tx.products
	m.nextID = tx.nextID
	m.entries = append(m.entries, tx.entries...)
	return nil
}

func (m *memoryRepo) List(ctx context.Context) ([]ProductView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ProductView, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, ProductView{Product: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (ProductView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return ProductView{}, ErrProductNotFound
	}
	return ProductView{Product: p}, nil
}

func (m *memoryRepo) actions() []audit.Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Action, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

type memoryTx struct {
	repo     *memoryRepo
	nextID   int64
	products map[int64]Product
	entries  []audit.Entry
}

func (t *memoryTx) SKUTaken(ctx context.Context, sku string, excludeID int64) (bool, error) {
	for id, p := range t.products {
		if p.SKU == sku && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) Insert(ctx context.Context, p Product) (int64, error) {
	p.ID = t.nextID
	t.nextID++
	t.products[p.ID] = p
	return p.ID, nil
}

func (t *memoryTx) Update(ctx context.Context, id int64, c Changes) (int64, error) {
	p, ok := t.products[id]
	if !ok {
		return 0, nil
	}
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.SKU != nil {
		p.SKU = *c.SKU
	}
	if c.CategoryID.Set {
		p.CategoryID = c.CategoryID.Value
	}
	if c.SupplierID.Set {
		p.SupplierID = c.SupplierID.Value
	}
	if c.Quantity != nil {
		p.Quantity = *c.Quantity
	}
	if c.Price != nil {
		p.Price = *c.Price
	}
	if c.Location.Set {
		p.Location = c.Location.Value
	}
	t.products[id] = p
	return 1, nil
}

func (t *memoryTx) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := t.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Product, error) {
	t.repo.lockedReads++
	return t.Get(ctx, id)
}

func (t *memoryTx) Delete(ctx context.Context, id int64) (int64, error) {
	if _, ok := t.products[id]; !ok {
		return 0, nil
	}
	delete(t.products, id)
	return 1, nil
}

func (t *memoryTx) SetQuantity(ctx context.Context, id int64, quantity int64) error {
	p := t.products[id]
	p.Quantity = quantity
	t.products[id] = p
	return nil
}

func (t *memoryTx) Exists(ctx context.Context, kind references.Kind, id int64) (bool, error) {
	if kind == references.KindCategory {
		return t.repo.categories[id], nil
	}
	return t.repo.suppliers[id], nil
}

func (t *memoryTx) Append(ctx context.Context, entry audit.Entry) error {
	if t.repo.auditErr != nil {
		return t.repo.auditErr
	}
	entry.ID = int64(len(t.repo.entries) + len(t.entries) + 1)
	t.entries = append(t.entries, entry)
	return nil
}

func (t *memoryTx) References() references.Lookup { return t }

func (t *memoryTx) Audit() audit.Writer { return t }

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *recordingObserver) ObserveMutation(action, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, action+":"+outcome)
}

func newTestService(repo *memoryRepo, observer MutationObserver) *Service {
	return NewService(repo, nil, nil, observer, ServiceConfig{})
}

func widget() AddInput {
	return AddInput{Name: "Widget", SKU: "SKU-1", Quantity: 5, Price: decimal.RequireFromString("9.99"), Actor: "alice"}
}

func details(t *testing.T, e audit.Entry) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(e.Details, &out))
	return out
}

func TestAddCreatesRowAndAuditEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	in := widget()
	in.CategoryID = "7"
	in.SupplierID = "not-a-number"
	id, err := svc.Add(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	require.Len(t, repo.products, 1)
	stored := repo.products[id]
	require.Equal(t, int64(7), *stored.CategoryID)
	require.Nil(t, stored.SupplierID)

	require.Len(t, repo.entries, 1)
	entry := repo.entries[0]
	require.Equal(t, audit.ActionAdd, entry.Action)
	require.Equal(t, "alice", entry.Actor)
	require.Equal(t, id, *entry.ProductID)
	d := details(t, entry)
	require.Equal(t, "SKU-1", d["sku"])
	require.Equal(t, "9.99", d["price"])
	require.EqualValues(t, 7, d["category_id"])
	require.Nil(t, d["supplier_id"])
}

func TestAddDuplicateSKUIsConflict(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	_, err := svc.Add(context.Background(), widget())
	require.NoError(t, err)

	dup := widget()
	dup.Name = "Gadget"
	_, err = svc.Add(context.Background(), dup)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, repo.products, 1)
	require.Len(t, repo.entries, 1)
}

func TestAddValidation(t *testing.T) {
	cases := map[string]func(*AddInput){
		"blank name":      func(in *AddInput) { in.Name = "   " },
		"blank sku":       func(in *AddInput) { in.SKU = "" },
		"negative qty":    func(in *AddInput) { in.Quantity = -1 },
		"negative price":  func(in *AddInput) { in.Price = decimal.NewFromInt(-1) },
		"price too large": func(in *AddInput) { in.Price = decimal.New(1, 12) },
		"price scale":     func(in *AddInput) { in.Price = decimal.RequireFromString("9.999") },
		"price exponent":  func(in *AddInput) { in.Price = decimal.New(1, 50000000) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := newMemoryRepo()
			in := widget()
			mutate(&in)
			_, err := newTestService(repo, nil).Add(context.Background(), in)
			require.ErrorIs(t, err, shared.ErrValidation)
			require.Zero(t, repo.txCount)
		})
	}
}

func TestWidgetLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	observer := &recordingObserver{}
	svc := newTestService(repo, observer)
	ctx := context.Background()

	id, err := svc.Add(ctx, widget())
	require.NoError(t, err)
	require.Equal(t, int64(1), id)

	gadget := widget()
	gadget.Name = "Gadget"
	_, err = svc.Add(ctx, gadget)
	require.ErrorIs(t, err, shared.ErrConflict)

	qty, err := svc.AdjustQuantity(ctx, id, decimal.NewFromInt(-10), "alice")
	require.NoError(t, err)
	require.Zero(t, qty)

	require.NoError(t, svc.Delete(ctx, id, "alice"))

	_, err = svc.AdjustQuantity(ctx, id, decimal.NewFromInt(1), "alice")
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.Equal(t, []audit.Action{audit.ActionAdd, audit.ActionQuantityAdjust, audit.ActionDelete}, repo.actions())
	adjust := details(t, repo.entries[1])
	require.EqualValues(t, 5, adjust["previous_quantity"])
	require.EqualValues(t, 0, adjust["new_quantity"])
	require.EqualValues(t, -10, adjust["delta"])
	require.Equal(t, map[string]any{"name": "Widget", "sku": "SKU-1"}, details(t, repo.entries[2]))

	require.Equal(t, []string{
		"ADD:committed",
		"ADD:rejected",
		"QUANTITY_ADJUST:committed",
		"DELETE:committed",
		"QUANTITY_ADJUST:rejected",
	}, observer.outcomes)
}

func TestUpdateMissingProductHasNoSideEffects(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	qty := int64(20)
	err := svc.Update(context.Background(), 1, Patch{Quantity: &qty}, "alice")
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.products)
	require.Empty(t, repo.entries)
}

func TestUpdateEmptyPatchRejectedBeforeTransaction(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	patch, err := DecodePatch([]byte(`{"id": 9, "created_at": "now"}`))
	require.NoError(t, err)

	err = svc.Update(context.Background(), 1, patch, "alice")
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Zero(t, repo.txCount)
}

func TestUpdateAppliesPatchAndAuditsSubmittedValues(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	in := widget()
	in.Location = ptr("A-1")
	id, err := svc.Add(ctx, in)
	require.NoError(t, err)

	patch, err := DecodePatch([]byte(`{"quantity": 20, "location": null, "categoryId": "7", "supplier_id": 99, "owner": "x"}`))
	require.NoError(t, err)
	require.NoError(t, svc.Update(ctx, id, patch, "bob"))

	stored := repo.products[id]
	require.Equal(t, "Widget", stored.Name)
	require.Equal(t, int64(20), stored.Quantity)
	require.Nil(t, stored.Location)
	require.Equal(t, int64(7), *stored.CategoryID)
	require.Nil(t, stored.SupplierID)

	require.Len(t, repo.entries, 2)
	entry := repo.entries[1]
	require.Equal(t, audit.ActionUpdate, entry.Action)
	require.Equal(t, "bob", entry.Actor)
	require.JSONEq(t, `{"quantity": 20, "location": null, "category_id": "7", "supplier_id": 99}`, string(entry.Details))
}

func TestUpdateSKUTakenByAnotherProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	first, err := svc.Add(ctx, widget())
	require.NoError(t, err)
	second := widget()
	second.SKU = "SKU-2"
	id, err := svc.Add(ctx, second)
	require.NoError(t, err)

	sku := "SKU-1"
	require.ErrorIs(t, svc.Update(ctx, id, Patch{SKU: &sku}, "bob"), shared.ErrConflict)

	// Keeping its own sku is not a conflict.
	require.NoError(t, svc.Update(ctx, first, Patch{SKU: &sku}, "bob"))
}

func TestDeleteMissingProduct(t *testing.T) {
	repo := newMemoryRepo()
	err := newTestService(repo, nil).Delete(context.Background(), 42, "alice")
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.entries)
}

func TestConcurrentAdjustmentsAreSerialized(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	in := widget()
	in.Quantity = 10
	id, err := svc.Add(ctx, in)
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 25; i++ {
		g.Go(func() error {
			_, err := svc.AdjustQuantity(ctx, id, decimal.NewFromInt(2), "worker")
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, int64(60), repo.products[id].Quantity)

	for i := 0; i < 40; i++ {
		g.Go(func() error {
			_, err := svc.AdjustQuantity(ctx, id, decimal.NewFromInt(-3), "worker")
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.Zero(t, repo.products[id].Quantity)
	require.Len(t, repo.entries, 1+25+40)
	require.Equal(t, 25+40, repo.lockedReads)
}

func TestAdjustRejectsOutOfRangeDelta(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	id, err := svc.Add(ctx, widget())
	require.NoError(t, err)

	for _, delta := range []decimal.Decimal{
		decimal.New(1, 50000000),
		decimal.New(-1, 19),
		decimal.New(1, -19),
		decimal.RequireFromString("99999999999999999999"),
	} {
		_, err := svc.AdjustQuantity(ctx, id, delta, "alice")
		require.ErrorIs(t, err, shared.ErrValidation, delta.String())
	}
	require.Equal(t, 1, repo.txCount)
	require.Equal(t, int64(5), repo.products[id].Quantity)
	require.Len(t, repo.entries, 1)
}

func TestAddAcceptsPriceWithTrailingZeros(t *testing.T) {
	repo := newMemoryRepo()
	in := widget()
	in.Price = decimal.RequireFromString("9.990")

	_, err := newTestService(repo, nil).Add(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, repo.products, 1)
}

func TestUpdateRejectsUnstorablePrice(t *testing.T) {
	for _, body := range []string{
		`{"price": 9.999}`,
		`{"price": 1000000000000}`,
		`{"price": 1e50000000}`,
	} {
		repo := newMemoryRepo()
		svc := newTestService(repo, nil)

		patch, err := DecodePatch([]byte(body))
		require.NoError(t, err)

		err = svc.Update(context.Background(), 1, patch, "alice")
		require.ErrorIs(t, err, shared.ErrValidation, body)
		require.Zero(t, repo.txCount)
	}
}

func TestAdjustRoundsHalfAwayFromZero(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	id, err := svc.Add(ctx, widget())
	require.NoError(t, err)

	qty, err := svc.AdjustQuantity(ctx, id, decimal.RequireFromString("2.5"), "alice")
	require.NoError(t, err)
	require.Equal(t, int64(8), qty)

	qty, err = svc.AdjustQuantity(ctx, id, decimal.RequireFromString("-5.5"), "alice")
	require.NoError(t, err)
	require.Equal(t, int64(3), qty)
}

func TestAuditFailureRollsBackMutation(t *testing.T) {
	repo := newMemoryRepo()
	repo.auditErr = errors.New("disk full")
	observer := &recordingObserver{}
	svc := newTestService(repo, observer)

	_, err := svc.Add(context.Background(), widget())
	require.ErrorIs(t, err, shared.ErrStorage)
	require.Empty(t, repo.products)
	require.Empty(t, repo.entries)
	require.Equal(t, []string{"ADD:failed"}, observer.outcomes)
}

func TestMutationSurvivesCallerCancellation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id, err := svc.Add(ctx, widget())
	require.NoError(t, err)
	require.Contains(t, repo.products, id)
	require.Len(t, repo.entries, 1)
}

func TestGetAndList(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	first, err := svc.Add(ctx, widget())
	require.NoError(t, err)
	second := widget()
	second.SKU = "SKU-2"
	secondID, err := svc.Add(ctx, second)
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, secondID, list[0].ID)

	got, err := svc.Get(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "SKU-1", got.SKU)

	_, err = svc.Get(ctx, 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func ptr[T any](v T) *T { return &v }
