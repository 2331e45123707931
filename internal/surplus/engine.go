// server/internal/surplus/engine.go
package surplus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecoset-logistics-api-server/config"
	"ecoset-logistics-api-server/internal/models"
	"ecoset-logistics-api-server/internal/store"

	"github.com/google/uuid"
)

// DefaultBuybackRate là tỷ lệ mua lại chuẩn của platform: 50% giá tham chiếu.
// Chỉ được override qua config, không hard-code ở call site nào khác.
const DefaultBuybackRate = 0.5

// Engine quyết định, cho một surplus item hay một nhóm item, các mutation
// và transaction nào sinh ra từ một action, trong khi bảo toàn tổng số lượng
// và price floor. Mọi thao tác nhiều document đi qua một batch nguyên tử
// của store: hoặc tất cả được ghi, hoặc không gì cả.
type Engine struct {
	store     store.Store
	buyerID   string
	buyerName string
	rate      float64
}

func NewEngine(st store.Store, cfg config.PlatformConfig) *Engine {
	rate := cfg.BuybackRate
	if rate <= 0 || rate > 1 {
		rate = DefaultBuybackRate
	}
	buyerID := cfg.BuyerID
	if buyerID == "" {
		buyerID = "PLATFORM"
	}
	buyerName := cfg.BuyerName
	if buyerName == "" {
		buyerName = buyerID
	}
	return &Engine{store: st, buyerID: buyerID, buyerName: buyerName, rate: rate}
}

// BuybackRate trả về tỷ lệ chiết khấu đang áp dụng.
func (e *Engine) BuybackRate() float64 { return e.rate }

// MutationReport liệt kê chính xác các document đã bị thay đổi bởi một
// operation thành công. Vì mọi multi-write đều nguyên tử, một operation
// thất bại không thay đổi gì.
type MutationReport struct {
	CreatedItems        []string `json:"createdItems,omitempty"`
	UpdatedItems        []string `json:"updatedItems,omitempty"`
	CreatedTransactions []string `json:"createdTransactions,omitempty"`
	UpdatedTransactions []string `json:"updatedTransactions,omitempty"`
	Moved               int      `json:"moved"`
}

// NewItemID sinh ID ngắn dạng "ITEM-A1B2C3D4".
func NewItemID() string {
	return fmt.Sprintf("ITEM-%s", strings.ToUpper(uuid.New().String()[:8]))
}

// NewTxnID sinh ID ngắn dạng "TXN-A1B2C3D4".
func NewTxnID() string {
	return fmt.Sprintf("TXN-%s", strings.ToUpper(uuid.New().String()[:8]))
}

// RouteItem chuyển item vào một action bucket. Không thay đổi số lượng.
// Idempotent: route lại vào cùng action là no-op (ngoài price seeding guard
// của MARKETPLACE).
func (e *Engine) RouteItem(ctx context.Context, projectID, itemID string, action models.SurplusAction) (MutationReport, error) {
	if !action.IsValid() {
		return MutationReport{}, errValidationf("invalid surplus action %q", action)
	}

	item, err := e.loadItem(ctx, projectID, itemID)
	if err != nil {
		return MutationReport{}, err
	}

	patch, changed := routePatch(item, action)
	if !changed {
		return MutationReport{}, nil
	}

	if err := e.store.UpdateItem(ctx, projectID, itemID, item.Version, patch); err != nil {
		return MutationReport{}, wrapStore(err, "route item "+itemID)
	}
	return MutationReport{UpdatedItems: []string{itemID}, Moved: 1}, nil
}

// routePatch tính patch cho một lần route. Với MARKETPLACE, seed originalPrice
// (fallback price, fallback 0) và price (fallback 0) để mọi item trên
// marketplace luôn có đơn giá xác định trước khi bán được.
func routePatch(item models.ConsumableItem, action models.SurplusAction) (map[string]interface{}, bool) {
	patch := map[string]interface{}{}
	if item.SurplusAction != action {
		patch["surplusAction"] = action
	}
	if action == models.ActionMarketplace {
		if item.OriginalPrice == nil {
			patch["originalPrice"] = item.UnitPrice()
		}
		if item.Price == nil {
			patch["price"] = 0.0
		}
	}
	return patch, len(patch) > 0
}

// SplitAndRoute tách moveQuantity đơn vị ra một item mới mang action đích,
// giảm quantityCurrent của item gốc tương ứng. moveQuantity >= quantityCurrent
// suy biến thành RouteItem trên cả item (không split). Cả hai nửa được ghi
// trong một batch nguyên tử.
func (e *Engine) SplitAndRoute(ctx context.Context, projectID, itemID string, moveQuantity int, action models.SurplusAction) (MutationReport, error) {
	if !action.IsValid() {
		return MutationReport{}, errValidationf("invalid surplus action %q", action)
	}
	if moveQuantity < 1 {
		return MutationReport{}, errValidationf("move quantity must be at least 1, got %d", moveQuantity)
	}

	item, err := e.loadItem(ctx, projectID, itemID)
	if err != nil {
		return MutationReport{}, err
	}

	if moveQuantity >= item.QuantityCurrent {
		return e.RouteItem(ctx, projectID, itemID, action)
	}

	sibling := splitOff(item, moveQuantity, action)
	remaining := item.QuantityCurrent - moveQuantity

	patch := map[string]interface{}{"quantityCurrent": remaining}
	if item.QuantityStarted > remaining {
		// Giữ invariant quantityStarted <= quantityCurrent trên item gốc.
		patch["quantityStarted"] = remaining
	}

	batch := e.store.NewBatch()
	batch.UpdateItem(projectID, itemID, item.Version, patch)
	batch.CreateItem(sibling)
	if err := batch.Commit(ctx); err != nil {
		return MutationReport{}, wrapStore(err, "split item "+itemID)
	}

	return MutationReport{
		UpdatedItems: []string{itemID},
		CreatedItems: []string{sibling.ItemID},
		Moved:        1,
	}, nil
}

// splitOff dựng item mới mang phần số lượng tách ra. department, unit,
// originalPrice được copy nguyên văn từ parent tại thời điểm split; hai item
// độc lập từ đó về sau, không giữ back-reference.
func splitOff(parent models.ConsumableItem, moveQuantity int, action models.SurplusAction) models.ConsumableItem {
	started := 0
	if carriesStarted(action) {
		started = parent.QuantityStarted
		if started > moveQuantity {
			started = moveQuantity
		}
	}

	now := time.Now()
	return models.ConsumableItem{
		ItemID:          NewItemID(),
		ProjectID:       parent.ProjectID,
		Name:            parent.Name,
		Department:      parent.Department,
		QuantityInitial: moveQuantity,
		QuantityCurrent: moveQuantity,
		QuantityStarted: started,
		Unit:            parent.Unit,
		Status:          parent.Status,
		SurplusAction:   action,
		Price:           models.Float64Ptr(parent.UnitPrice()),
		OriginalPrice:   models.Float64Ptr(parent.ReferencePrice()),
		Purchased:       parent.Purchased,
		IsBought:        parent.IsBought,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// carriesStarted: split kiểu donation mang theo phần đã mở; BUYBACK và
// MARKETPLACE luôn tách một lô chưa mở.
func carriesStarted(action models.SurplusAction) bool {
	return action != models.ActionBuyback && action != models.ActionMarketplace
}

// Buyback phát một transaction PENDING bán quantity đơn vị cho platform với
// đơn giá = referencePrice × rate, rồi route phần đó sang BUYBACK (split nếu
// một phần). Transaction và item mutation nằm trong cùng một batch nguyên tử,
// với transaction đứng trước để một crash giữa chừng không bao giờ để lại
// item đã mất mà không có dấu vết audit.
func (e *Engine) Buyback(ctx context.Context, projectID, itemID string, quantity int) (MutationReport, error) {
	if quantity < 1 {
		return MutationReport{}, errValidationf("buyback quantity must be at least 1, got %d", quantity)
	}

	item, err := e.loadItem(ctx, projectID, itemID)
	if err != nil {
		return MutationReport{}, err
	}
	if item.QuantityCurrent < 1 {
		return MutationReport{}, errInvariantf("item %s has no remaining quantity to buy back", itemID)
	}

	full := quantity >= item.QuantityCurrent
	if full {
		quantity = item.QuantityCurrent
	}

	unitPrice := item.ReferencePrice() * e.rate
	txn := e.newTransaction(ctx, projectID, []models.TransactionItem{{
		ItemID:   item.ItemID,
		Name:     item.Name,
		Quantity: quantity,
		Price:    unitPrice,
	}})

	batch := e.store.NewBatch()
	batch.CreateTransaction(txn)

	report := MutationReport{
		CreatedTransactions: []string{txn.TxnID},
		UpdatedItems:        []string{itemID},
		Moved:               1,
	}

	if full {
		patch, changed := routePatch(item, models.ActionBuyback)
		if changed {
			batch.UpdateItem(projectID, itemID, item.Version, patch)
		} else {
			report.UpdatedItems = nil
			report.Moved = 0
		}
	} else {
		sibling := splitOff(item, quantity, models.ActionBuyback)
		remaining := item.QuantityCurrent - quantity
		patch := map[string]interface{}{"quantityCurrent": remaining}
		if item.QuantityStarted > remaining {
			patch["quantityStarted"] = remaining
		}
		batch.UpdateItem(projectID, itemID, item.Version, patch)
		batch.CreateItem(sibling)
		report.CreatedItems = []string{sibling.ItemID}
	}

	if err := batch.Commit(ctx); err != nil {
		return MutationReport{}, wrapStore(err, "buyback item "+itemID)
	}
	return report, nil
}

// BulkRoute áp dụng RouteItem semantics cho cả danh sách trong MỘT batch
// nguyên tử: hoặc tất cả item chuyển bucket, hoặc không item nào.
func (e *Engine) BulkRoute(ctx context.Context, projectID string, itemIDs []string, action models.SurplusAction) (MutationReport, error) {
	if !action.IsValid() {
		return MutationReport{}, errValidationf("invalid surplus action %q", action)
	}
	if len(itemIDs) == 0 {
		return MutationReport{}, errValidationf("no items to route")
	}

	batch := e.store.NewBatch()
	report := MutationReport{}
	for _, itemID := range itemIDs {
		item, err := e.loadItem(ctx, projectID, itemID)
		if err != nil {
			return MutationReport{}, err
		}
		patch, changed := routePatch(item, action)
		if !changed {
			continue
		}
		batch.UpdateItem(projectID, itemID, item.Version, patch)
		report.UpdatedItems = append(report.UpdatedItems, itemID)
		report.Moved++
	}

	if err := batch.Commit(ctx); err != nil {
		return MutationReport{}, wrapStore(err, fmt.Sprintf("bulk route %d items", len(itemIDs)))
	}
	return report, nil
}

// BulkBuyback phát MỘT transaction gộp cho cả danh sách (một dòng mỗi item,
// đơn giá = referencePrice × rate, dữ liệu xấu bị ép về 0 thay vì làm hỏng
// batch hay sinh NaN), rồi set BUYBACK lên mọi item: bulk buyback luôn lấy
// toàn bộ số lượng còn lại, không split. Tất cả trong một batch nguyên tử.
func (e *Engine) BulkBuyback(ctx context.Context, projectID string, itemIDs []string) (MutationReport, error) {
	if len(itemIDs) == 0 {
		return MutationReport{}, errValidationf("no items to buy back")
	}

	lines := make([]models.TransactionItem, 0, len(itemIDs))
	type target struct {
		itemID  string
		version int64
		patch   map[string]interface{}
	}
	targets := make([]target, 0, len(itemIDs))

	for _, itemID := range itemIDs {
		item, err := e.loadItem(ctx, projectID, itemID)
		if err != nil {
			return MutationReport{}, err
		}

		quantity := item.QuantityCurrent
		if quantity < 0 {
			quantity = 0
		}
		lines = append(lines, models.TransactionItem{
			ItemID:   item.ItemID,
			Name:     item.Name,
			Quantity: quantity,
			Price:    item.ReferencePrice() * e.rate,
		})

		if patch, changed := routePatch(item, models.ActionBuyback); changed {
			targets = append(targets, target{itemID: itemID, version: item.Version, patch: patch})
		}
	}

	txn := e.newTransaction(ctx, projectID, lines)

	batch := e.store.NewBatch()
	batch.CreateTransaction(txn)
	report := MutationReport{CreatedTransactions: []string{txn.TxnID}}
	for _, t := range targets {
		batch.UpdateItem(projectID, t.itemID, t.version, t.patch)
		report.UpdatedItems = append(report.UpdatedItems, t.itemID)
		report.Moved++
	}

	if err := batch.Commit(ctx); err != nil {
		return MutationReport{}, wrapStore(err, fmt.Sprintf("bulk buyback %d items", len(itemIDs)))
	}
	return report, nil
}

// ValidateTransaction chuyển một transaction PENDING sang VALIDATED và đóng
// dấu invoicedAt. Không đụng đến stock: stock đã được trừ lúc tạo
// transaction/split. Transaction terminal bị từ chối, không bao giờ re-apply.
func (e *Engine) ValidateTransaction(ctx context.Context, txnID string) (MutationReport, error) {
	txn, err := e.loadTransaction(ctx, txnID)
	if err != nil {
		return MutationReport{}, err
	}
	if txn.Status != models.TxnPending {
		return MutationReport{}, errInvariantf("transaction %s is %s, only PENDING transactions can be validated", txnID, txn.Status)
	}

	patch := map[string]interface{}{
		"status":     models.TxnValidated,
		"invoicedAt": time.Now(),
	}
	if err := e.store.UpdateTransaction(ctx, txnID, patch); err != nil {
		return MutationReport{}, wrapStore(err, "validate transaction "+txnID)
	}
	return MutationReport{UpdatedTransactions: []string{txnID}}, nil
}

// RejectTransaction hủy một transaction PENDING và hoàn stock: mỗi dòng hàng
// cộng lại đúng số lượng đã giao dịch vào item tương ứng. Cờ restored chặn
// double-credit nếu rejection được retry sau một lần fail dở chừng; hoàn
// stock và đổi status nằm trong cùng một batch nguyên tử.
func (e *Engine) RejectTransaction(ctx context.Context, txnID string) (MutationReport, error) {
	txn, err := e.loadTransaction(ctx, txnID)
	if err != nil {
		return MutationReport{}, err
	}
	if txn.Status != models.TxnPending {
		return MutationReport{}, errInvariantf("transaction %s is %s, only PENDING transactions can be rejected", txnID, txn.Status)
	}
	if txn.Restored {
		return MutationReport{}, errInvariantf("transaction %s stock has already been restored", txnID)
	}

	batch := e.store.NewBatch()
	batch.UpdateTransaction(txnID, map[string]interface{}{
		"status":   models.TxnCancelled,
		"restored": true,
	})

	report := MutationReport{UpdatedTransactions: []string{txnID}}
	for _, line := range txn.Items {
		if line.Quantity <= 0 {
			continue
		}
		batch.IncrementItemQuantity(txn.ProjectID, line.ItemID, line.Quantity)
		report.UpdatedItems = append(report.UpdatedItems, line.ItemID)
	}

	if err := batch.Commit(ctx); err != nil {
		return MutationReport{}, wrapStore(err, "reject transaction "+txnID)
	}
	return report, nil
}

// --- Helpers ---

func (e *Engine) loadItem(ctx context.Context, projectID, itemID string) (models.ConsumableItem, error) {
	item, err := e.store.GetItem(ctx, projectID, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.ConsumableItem{}, errNotFound("item", itemID)
		}
		return models.ConsumableItem{}, wrapStore(err, "load item "+itemID)
	}
	item.Sanitize()
	return item, nil
}

func (e *Engine) loadTransaction(ctx context.Context, txnID string) (models.Transaction, error) {
	txn, err := e.store.GetTransaction(ctx, txnID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Transaction{}, errNotFound("transaction", txnID)
		}
		return models.Transaction{}, wrapStore(err, "load transaction "+txnID)
	}
	return txn, nil
}

func (e *Engine) newTransaction(ctx context.Context, projectID string, lines []models.TransactionItem) models.Transaction {
	sellerName := projectID
	if project, err := e.store.GetProject(ctx, projectID); err == nil {
		sellerName = project.Name
	}
	return models.Transaction{
		TxnID:       NewTxnID(),
		ProjectID:   projectID,
		SellerID:    projectID,
		SellerName:  sellerName,
		BuyerID:     e.buyerID,
		BuyerName:   e.buyerName,
		Items:       lines,
		TotalAmount: models.ComputeTotal(lines),
		Status:      models.TxnPending,
		CreatedAt:   time.Now(),
	}
}
