// server/internal/surplus/engine_test.go
package surplus

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"ecoset-logistics-api-server/config"
	"ecoset-logistics-api-server/internal/models"
	"ecoset-logistics-api-server/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.CreateProject(context.Background(), models.Project{
		ProjectID:  "PRJ-NIGHTSHOOT",
		Name:       "Night Shoot",
		Production: "Lumen Films",
		Status:     "WRAPPED",
	}))
	engine := NewEngine(st, config.PlatformConfig{})
	return engine, st
}

func seedItem(t *testing.T, st *store.MemoryStore, item models.ConsumableItem) models.ConsumableItem {
	t.Helper()
	if item.ItemID == "" {
		item.ItemID = NewItemID()
	}
	if item.ProjectID == "" {
		item.ProjectID = "PRJ-NIGHTSHOOT"
	}
	if item.Unit == "" {
		item.Unit = "bottle"
	}
	if item.Status == "" {
		item.Status = models.StatusNew
	}
	if item.SurplusAction == "" {
		item.SurplusAction = models.ActionNone
	}
	require.NoError(t, st.CreateItem(context.Background(), item))
	return item
}

func getItem(t *testing.T, st *store.MemoryStore, projectID, itemID string) models.ConsumableItem {
	t.Helper()
	item, err := st.GetItem(context.Background(), projectID, itemID)
	require.NoError(t, err)
	return item
}

func totalQuantity(t *testing.T, st *store.MemoryStore, projectID string) int {
	t.Helper()
	items, err := st.ListItems(context.Background(), projectID)
	require.NoError(t, err)
	total := 0
	for _, it := range items {
		total += it.QuantityCurrent
	}
	return total
}

func TestRouteItem(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	item := seedItem(t, st, models.ConsumableItem{
		Name:            "Gaffer tape",
		QuantityInitial: 10,
		QuantityCurrent: 10,
	})

	report, err := engine.RouteItem(ctx, item.ProjectID, item.ItemID, models.ActionDonation)
	require.NoError(t, err)
	assert.Equal(t, []string{item.ItemID}, report.UpdatedItems)
	assert.Equal(t, 1, report.Moved)

	got := getItem(t, st, item.ProjectID, item.ItemID)
	assert.Equal(t, models.ActionDonation, got.SurplusAction)
	assert.Equal(t, 10, got.QuantityCurrent, "routing must never change quantity")

	// Route lại vào cùng bucket là no-op.
	report, err = engine.RouteItem(ctx, item.ProjectID, item.ItemID, models.ActionDonation)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Moved)
	assert.Empty(t, report.UpdatedItems)
}

func TestRouteItemErrors(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)
	item := seedItem(t, st, models.ConsumableItem{Name: "Batteries", QuantityCurrent: 4})

	t.Run("invalid action", func(t *testing.T) {
		_, err := engine.RouteItem(ctx, item.ProjectID, item.ItemID, models.SurplusAction("RECYCLE"))
		assert.True(t, IsKind(err, KindValidation))
	})

	t.Run("unknown item", func(t *testing.T) {
		_, err := engine.RouteItem(ctx, item.ProjectID, "ITEM-MISSING", models.ActionStorage)
		assert.True(t, IsKind(err, KindNotFound))
	})
}

func TestRouteItemMarketplaceSeedsPrices(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	t.Run("originalPrice seeded from price", func(t *testing.T) {
		item := seedItem(t, st, models.ConsumableItem{
			Name:            "LED panel",
			QuantityCurrent: 2,
			Price:           models.Float64Ptr(120),
		})

		_, err := engine.RouteItem(ctx, item.ProjectID, item.ItemID, models.ActionMarketplace)
		require.NoError(t, err)

		got := getItem(t, st, item.ProjectID, item.ItemID)
		require.NotNil(t, got.OriginalPrice)
		assert.Equal(t, 120.0, *got.OriginalPrice)
		require.NotNil(t, got.Price)
		assert.Equal(t, 120.0, *got.Price)
	})

	t.Run("unpriced item gets zero prices", func(t *testing.T) {
		item := seedItem(t, st, models.ConsumableItem{Name: "Clamps", QuantityCurrent: 5})

		_, err := engine.RouteItem(ctx, item.ProjectID, item.ItemID, models.ActionMarketplace)
		require.NoError(t, err)

		got := getItem(t, st, item.ProjectID, item.ItemID)
		require.NotNil(t, got.OriginalPrice)
		assert.Equal(t, 0.0, *got.OriginalPrice)
		require.NotNil(t, got.Price)
		assert.Equal(t, 0.0, *got.Price)
	})

	t.Run("re-route never overwrites seeded prices", func(t *testing.T) {
		item := seedItem(t, st, models.ConsumableItem{
			Name:            "Fog fluid",
			QuantityCurrent: 3,
			Price:           models.Float64Ptr(30),
		})

		_, err := engine.RouteItem(ctx, item.ProjectID, item.ItemID, models.ActionMarketplace)
		require.NoError(t, err)

		// Người bán hạ giá sau khi lên marketplace.
		got := getItem(t, st, item.ProjectID, item.ItemID)
		require.NoError(t, st.UpdateItem(ctx, item.ProjectID, item.ItemID, got.Version,
			map[string]interface{}{"price": 15.0}))

		_, err = engine.RouteItem(ctx, item.ProjectID, item.ItemID, models.ActionStorage)
		require.NoError(t, err)
		_, err = engine.RouteItem(ctx, item.ProjectID, item.ItemID, models.ActionMarketplace)
		require.NoError(t, err)

		got = getItem(t, st, item.ProjectID, item.ItemID)
		assert.Equal(t, 30.0, *got.OriginalPrice, "originalPrice is seeded once")
		assert.Equal(t, 15.0, *got.Price, "discounted price survives re-routing")
	})
}

func TestSplitAndRoute(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	item := seedItem(t, st, models.ConsumableItem{
		Name:            "Water 1.5L",
		Department:      "CANTINE",
		QuantityInitial: 10,
		QuantityCurrent: 10,
		QuantityStarted: 3,
		Price:           models.Float64Ptr(2),
	})

	report, err := engine.SplitAndRoute(ctx, item.ProjectID, item.ItemID, 4, models.ActionDonation)
	require.NoError(t, err)
	require.Len(t, report.CreatedItems, 1)
	assert.Equal(t, []string{item.ItemID}, report.UpdatedItems)

	parent := getItem(t, st, item.ProjectID, item.ItemID)
	sibling := getItem(t, st, item.ProjectID, report.CreatedItems[0])

	assert.Equal(t, 6, parent.QuantityCurrent)
	assert.Equal(t, models.ActionNone, parent.SurplusAction, "parent keeps its bucket")
	assert.Equal(t, 4, sibling.QuantityCurrent)
	assert.Equal(t, 4, sibling.QuantityInitial)
	assert.Equal(t, models.ActionDonation, sibling.SurplusAction)
	assert.Equal(t, "CANTINE", sibling.Department)
	assert.Equal(t, 3, sibling.QuantityStarted, "donation split carries the started units")
	assert.Equal(t, 2.0, *sibling.Price)

	assert.Equal(t, 10, totalQuantity(t, st, item.ProjectID), "split conserves total quantity")
}

func TestSplitAndRouteClampsParentStarted(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	item := seedItem(t, st, models.ConsumableItem{
		Name:            "Coffee",
		QuantityCurrent: 10,
		QuantityStarted: 8,
	})

	report, err := engine.SplitAndRoute(ctx, item.ProjectID, item.ItemID, 4, models.ActionStorage)
	require.NoError(t, err)

	parent := getItem(t, st, item.ProjectID, item.ItemID)
	assert.Equal(t, 6, parent.QuantityCurrent)
	assert.Equal(t, 6, parent.QuantityStarted, "quantityStarted never exceeds quantityCurrent")

	sibling := getItem(t, st, item.ProjectID, report.CreatedItems[0])
	assert.Equal(t, 4, sibling.QuantityStarted)
}

func TestSplitAndRouteDegeneratesToRoute(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	item := seedItem(t, st, models.ConsumableItem{Name: "Gels", QuantityCurrent: 5})

	for _, move := range []int{5, 9} {
		report, err := engine.SplitAndRoute(ctx, item.ProjectID, item.ItemID, move, models.ActionShortFilm)
		require.NoError(t, err)
		assert.Empty(t, report.CreatedItems, "full transfer must not create a sibling")
	}

	items, err := st.ListItems(ctx, item.ProjectID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, models.ActionShortFilm, items[0].SurplusAction)
	assert.Equal(t, 5, items[0].QuantityCurrent)
}

func TestSplitAndRouteValidation(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)
	item := seedItem(t, st, models.ConsumableItem{Name: "Rope", QuantityCurrent: 5})

	for _, move := range []int{0, -3} {
		_, err := engine.SplitAndRoute(ctx, item.ProjectID, item.ItemID, move, models.ActionStorage)
		assert.True(t, IsKind(err, KindValidation), "move=%d", move)
	}
}

func TestSplitToMarketplaceLeavesStartedBehind(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	item := seedItem(t, st, models.ConsumableItem{
		Name:            "Sunscreen",
		QuantityCurrent: 8,
		QuantityStarted: 2,
		Price:           models.Float64Ptr(9),
	})

	report, err := engine.SplitAndRoute(ctx, item.ProjectID, item.ItemID, 3, models.ActionMarketplace)
	require.NoError(t, err)

	sibling := getItem(t, st, item.ProjectID, report.CreatedItems[0])
	assert.Equal(t, 0, sibling.QuantityStarted, "marketplace lots are always unopened")
}

func TestBuybackPartial(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	item := seedItem(t, st, models.ConsumableItem{
		Name:            "Makeup wipes",
		QuantityCurrent: 5,
		OriginalPrice:   models.Float64Ptr(100),
		Price:           models.Float64Ptr(60),
	})

	report, err := engine.Buyback(ctx, item.ProjectID, item.ItemID, 3)
	require.NoError(t, err)
	require.Len(t, report.CreatedTransactions, 1)
	require.Len(t, report.CreatedItems, 1)

	txn, err := st.GetTransaction(ctx, report.CreatedTransactions[0])
	require.NoError(t, err)
	assert.Equal(t, models.TxnPending, txn.Status)
	assert.Equal(t, "PRJ-NIGHTSHOOT", txn.SellerID)
	assert.Equal(t, "Night Shoot", txn.SellerName)
	assert.Equal(t, "PLATFORM", txn.BuyerID)
	require.Len(t, txn.Items, 1)
	assert.Equal(t, item.ItemID, txn.Items[0].ItemID)
	assert.Equal(t, 3, txn.Items[0].Quantity)
	assert.Equal(t, 50.0, txn.Items[0].Price, "unit price is referencePrice x rate")
	assert.Equal(t, 150.0, txn.TotalAmount)

	parent := getItem(t, st, item.ProjectID, item.ItemID)
	sibling := getItem(t, st, item.ProjectID, report.CreatedItems[0])
	assert.Equal(t, 2, parent.QuantityCurrent)
	assert.Equal(t, 3, sibling.QuantityCurrent)
	assert.Equal(t, models.ActionBuyback, sibling.SurplusAction)
	assert.Equal(t, 5, totalQuantity(t, st, item.ProjectID), "buyback does not destroy quantity")
}

func TestBuybackFullClampsQuantity(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	item := seedItem(t, st, models.ConsumableItem{
		Name:            "Paint",
		QuantityCurrent: 4,
		Price:           models.Float64Ptr(10),
	})

	report, err := engine.Buyback(ctx, item.ProjectID, item.ItemID, 99)
	require.NoError(t, err)
	assert.Empty(t, report.CreatedItems, "full buyback must not split")

	txn, err := st.GetTransaction(ctx, report.CreatedTransactions[0])
	require.NoError(t, err)
	assert.Equal(t, 4, txn.Items[0].Quantity, "quantity clamps to remaining stock")

	got := getItem(t, st, item.ProjectID, item.ItemID)
	assert.Equal(t, models.ActionBuyback, got.SurplusAction)
	assert.Equal(t, 4, got.QuantityCurrent)
}

func TestBuybackRateFromConfig(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	engine := NewEngine(st, config.PlatformConfig{BuybackRate: 0.25})
	assert.Equal(t, 0.25, engine.BuybackRate())

	item := seedItem(t, st, models.ConsumableItem{
		Name:            "Tape",
		QuantityCurrent: 2,
		OriginalPrice:   models.Float64Ptr(100),
	})

	report, err := engine.Buyback(ctx, item.ProjectID, item.ItemID, 2)
	require.NoError(t, err)

	txn, err := st.GetTransaction(ctx, report.CreatedTransactions[0])
	require.NoError(t, err)
	assert.Equal(t, 25.0, txn.Items[0].Price)
}

func TestBuybackFreeItem(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	// originalPrice 0 là giá chủ đích (đồ cho không), không fallback sang price.
	item := seedItem(t, st, models.ConsumableItem{
		Name:            "Donated props",
		QuantityCurrent: 3,
		OriginalPrice:   models.Float64Ptr(0),
		Price:           models.Float64Ptr(60),
	})

	report, err := engine.Buyback(ctx, item.ProjectID, item.ItemID, 3)
	require.NoError(t, err)

	txn, err := st.GetTransaction(ctx, report.CreatedTransactions[0])
	require.NoError(t, err)
	assert.Equal(t, 0.0, txn.Items[0].Price)
	assert.Equal(t, 0.0, txn.TotalAmount)
}

func TestNewEngineRejectsBadRate(t *testing.T) {
	st := store.NewMemoryStore()
	for _, rate := range []float64{0, -1, 1.5} {
		engine := NewEngine(st, config.PlatformConfig{BuybackRate: rate})
		assert.Equal(t, DefaultBuybackRate, engine.BuybackRate(), "rate=%v", rate)
	}
}

func TestBuybackEmptyItem(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)
	item := seedItem(t, st, models.ConsumableItem{Name: "Empty", QuantityCurrent: 0})

	_, err := engine.Buyback(ctx, item.ProjectID, item.ItemID, 1)
	assert.True(t, IsKind(err, KindInvariant))
}

func TestBulkRoute(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	a := seedItem(t, st, models.ConsumableItem{Name: "A", QuantityCurrent: 1})
	b := seedItem(t, st, models.ConsumableItem{Name: "B", QuantityCurrent: 2, SurplusAction: models.ActionStorage})

	report, err := engine.BulkRoute(ctx, a.ProjectID, []string{a.ItemID, b.ItemID}, models.ActionStorage)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Moved, "already-routed item is skipped")
	assert.Equal(t, []string{a.ItemID}, report.UpdatedItems)

	assert.Equal(t, models.ActionStorage, getItem(t, st, a.ProjectID, a.ItemID).SurplusAction)
}

func TestBulkRouteIsAtomic(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	a := seedItem(t, st, models.ConsumableItem{Name: "A", QuantityCurrent: 1})
	b := seedItem(t, st, models.ConsumableItem{Name: "B", QuantityCurrent: 2})

	st.FailNextCommit = errors.New("connection reset")
	_, err := engine.BulkRoute(ctx, a.ProjectID, []string{a.ItemID, b.ItemID}, models.ActionDonation)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindPersistence))

	// Không item nào được route một nửa.
	assert.Equal(t, models.ActionNone, getItem(t, st, a.ProjectID, a.ItemID).SurplusAction)
	assert.Equal(t, models.ActionNone, getItem(t, st, b.ProjectID, b.ItemID).SurplusAction)

	report, err := engine.BulkRoute(ctx, a.ProjectID, []string{a.ItemID, b.ItemID}, models.ActionDonation)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Moved)
}

func TestBulkRouteUnknownItemAborts(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)
	a := seedItem(t, st, models.ConsumableItem{Name: "A", QuantityCurrent: 1})

	_, err := engine.BulkRoute(ctx, a.ProjectID, []string{a.ItemID, "ITEM-GHOST"}, models.ActionDonation)
	assert.True(t, IsKind(err, KindNotFound))
	assert.Equal(t, models.ActionNone, getItem(t, st, a.ProjectID, a.ItemID).SurplusAction)
}

func TestBulkBuyback(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	nan := math.NaN()
	priced := seedItem(t, st, models.ConsumableItem{
		Name:            "Priced",
		QuantityCurrent: 2,
		OriginalPrice:   models.Float64Ptr(40),
	})
	corrupt := seedItem(t, st, models.ConsumableItem{
		Name:            "Corrupt",
		QuantityCurrent: 3,
		Price:           &nan,
	})
	negative := seedItem(t, st, models.ConsumableItem{
		Name:            "Negative",
		QuantityCurrent: -7,
	})

	report, err := engine.BulkBuyback(ctx, priced.ProjectID, []string{priced.ItemID, corrupt.ItemID, negative.ItemID})
	require.NoError(t, err)
	require.Len(t, report.CreatedTransactions, 1)

	txn, err := st.GetTransaction(ctx, report.CreatedTransactions[0])
	require.NoError(t, err)
	require.Len(t, txn.Items, 3, "one aggregate transaction, one line per item")

	byID := map[string]models.TransactionItem{}
	for _, line := range txn.Items {
		byID[line.ItemID] = line
	}
	assert.Equal(t, 20.0, byID[priced.ItemID].Price)
	assert.Equal(t, 0.0, byID[corrupt.ItemID].Price, "NaN price contributes zero")
	assert.Equal(t, 0, byID[negative.ItemID].Quantity, "negative stock contributes zero")
	assert.Equal(t, 40.0, txn.TotalAmount)
	assert.False(t, math.IsNaN(txn.TotalAmount))

	for _, id := range []string{priced.ItemID, corrupt.ItemID, negative.ItemID} {
		assert.Equal(t, models.ActionBuyback, getItem(t, st, priced.ProjectID, id).SurplusAction)
	}
}

func TestBulkBuybackIsAtomic(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	a := seedItem(t, st, models.ConsumableItem{Name: "A", QuantityCurrent: 2, Price: models.Float64Ptr(10)})

	st.FailNextCommit = errors.New("write conflict")
	_, err := engine.BulkBuyback(ctx, a.ProjectID, []string{a.ItemID})
	require.Error(t, err)

	assert.Equal(t, models.ActionNone, getItem(t, st, a.ProjectID, a.ItemID).SurplusAction)
	txns, err := st.ListTransactions(ctx, store.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns, "failed bulk buyback leaves no transaction behind")
}

func TestValidateTransaction(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	item := seedItem(t, st, models.ConsumableItem{Name: "Gloves", QuantityCurrent: 6, Price: models.Float64Ptr(4)})
	report, err := engine.Buyback(ctx, item.ProjectID, item.ItemID, 6)
	require.NoError(t, err)
	txnID := report.CreatedTransactions[0]

	before := time.Now()
	report, err = engine.ValidateTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Equal(t, []string{txnID}, report.UpdatedTransactions)

	txn, err := st.GetTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnValidated, txn.Status)
	require.NotNil(t, txn.InvoicedAt)
	assert.False(t, txn.InvoicedAt.Before(before))

	// Terminal status là điểm dừng.
	_, err = engine.ValidateTransaction(ctx, txnID)
	assert.True(t, IsKind(err, KindInvariant))
	_, err = engine.RejectTransaction(ctx, txnID)
	assert.True(t, IsKind(err, KindInvariant))
}

func TestRejectTransactionRestoresStock(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	item := seedItem(t, st, models.ConsumableItem{
		Name:            "Snacks",
		QuantityCurrent: 9,
		OriginalPrice:   models.Float64Ptr(10),
	})

	buyback, err := engine.Buyback(ctx, item.ProjectID, item.ItemID, 4)
	require.NoError(t, err)
	require.Equal(t, 5, getItem(t, st, item.ProjectID, item.ItemID).QuantityCurrent)

	txnID := buyback.CreatedTransactions[0]
	report, err := engine.RejectTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Equal(t, []string{txnID}, report.UpdatedTransactions)
	assert.Equal(t, []string{item.ItemID}, report.UpdatedItems)

	txn, err := st.GetTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnCancelled, txn.Status)
	assert.True(t, txn.Restored)

	got := getItem(t, st, item.ProjectID, item.ItemID)
	assert.Equal(t, 9, got.QuantityCurrent, "rejection restores exactly the transacted quantity")

	// Cancelled là terminal: không thể reject lần hai để double-credit.
	_, err = engine.RejectTransaction(ctx, txnID)
	assert.True(t, IsKind(err, KindInvariant))
	assert.Equal(t, 9, getItem(t, st, item.ProjectID, item.ItemID).QuantityCurrent)
}

func TestRejectTransactionIsAtomic(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)

	item := seedItem(t, st, models.ConsumableItem{Name: "Foam", QuantityCurrent: 5, Price: models.Float64Ptr(8)})
	buyback, err := engine.Buyback(ctx, item.ProjectID, item.ItemID, 2)
	require.NoError(t, err)
	txnID := buyback.CreatedTransactions[0]

	st.FailNextCommit = errors.New("session aborted")
	_, err = engine.RejectTransaction(ctx, txnID)
	require.Error(t, err)

	txn, err := st.GetTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnPending, txn.Status, "failed rejection leaves the transaction pending")
	assert.False(t, txn.Restored)
	assert.Equal(t, 3, getItem(t, st, item.ProjectID, item.ItemID).QuantityCurrent)

	// Retry sau lỗi thoáng qua thành công trọn vẹn.
	_, err = engine.RejectTransaction(ctx, txnID)
	require.NoError(t, err)
	assert.Equal(t, 5, getItem(t, st, item.ProjectID, item.ItemID).QuantityCurrent)
}

func TestRejectUnknownTransaction(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)
	_, err := engine.RejectTransaction(ctx, "TXN-GHOST")
	assert.True(t, IsKind(err, KindNotFound))
}
