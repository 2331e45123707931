// server/internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ecoset-logistics-api-server/internal/models"
)

// MemoryStore là bản in-memory của Store, dùng cho test và chế độ demo.
// Batch mô phỏng đúng semantics all-or-nothing của MongoDB: mọi op được
// áp dụng lên bản copy trước, chỉ khi tất cả thành công mới swap vào state.
type MemoryStore struct {
	mu           sync.RWMutex
	projects     map[string]models.Project
	items        map[string]map[string]models.ConsumableItem // projectID -> itemID -> item
	transactions map[string]models.Transaction
	notify       Notifier

	// FailNextCommit, nếu khác nil, làm batch Commit kế tiếp thất bại với lỗi
	// này mà không áp dụng op nào. Dùng để test bulk atomicity.
	FailNextCommit error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		projects:     make(map[string]models.Project),
		items:        make(map[string]map[string]models.ConsumableItem),
		transactions: make(map[string]models.Transaction),
	}
}

func (s *MemoryStore) SetNotifier(fn Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notify = fn
}

func (s *MemoryStore) emit(ev ChangeEvent) {
	if s.notify != nil {
		s.notify(ev)
	}
}

// --- Projects ---

func (s *MemoryStore) GetProject(ctx context.Context, projectID string) (models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projects[projectID]
	if !ok {
		return models.Project{}, ErrNotFound
	}
	return project, nil
}

func (s *MemoryStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	projects := make([]models.Project, 0, len(s.projects))
	for _, p := range s.projects {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].ProjectID < projects[j].ProjectID })
	return projects, nil
}

func (s *MemoryStore) CreateProject(ctx context.Context, project models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.projects[project.ProjectID]; exists {
		return ErrDuplicateID
	}
	s.projects[project.ProjectID] = project
	s.emit(ChangeEvent{Event: "project_created", ProjectID: project.ProjectID, Payload: project})
	return nil
}

func (s *MemoryStore) UpdateProject(ctx context.Context, projectID string, patch map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	project, ok := s.projects[projectID]
	if !ok {
		return ErrNotFound
	}
	applyProjectPatch(&project, patch)
	project.UpdatedAt = time.Now()
	s.projects[projectID] = project
	s.emit(ChangeEvent{Event: "project_updated", ProjectID: projectID, Payload: patch})
	return nil
}

func (s *MemoryStore) DeleteProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[projectID]; !ok {
		return ErrNotFound
	}
	delete(s.projects, projectID)
	s.emit(ChangeEvent{Event: "project_deleted", ProjectID: projectID})
	return nil
}

// --- Items ---

func (s *MemoryStore) GetItem(ctx context.Context, projectID, itemID string) (models.ConsumableItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[projectID][itemID]
	if !ok {
		return models.ConsumableItem{}, ErrNotFound
	}
	return item, nil
}

func (s *MemoryStore) ListItems(ctx context.Context, projectID string) ([]models.ConsumableItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.ConsumableItem, 0, len(s.items[projectID]))
	for _, it := range s.items[projectID] {
		items = append(items, it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	return items, nil
}

func (s *MemoryStore) CreateItem(ctx context.Context, item models.ConsumableItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.insertItemLocked(item); err != nil {
		return err
	}
	s.emit(ChangeEvent{Event: "item_created", ProjectID: item.ProjectID, Payload: item})
	return nil
}

func (s *MemoryStore) insertItemLocked(item models.ConsumableItem) error {
	if _, exists := s.items[item.ProjectID][item.ItemID]; exists {
		return ErrDuplicateID
	}
	if s.items[item.ProjectID] == nil {
		s.items[item.ProjectID] = make(map[string]models.ConsumableItem)
	}
	s.items[item.ProjectID][item.ItemID] = item
	return nil
}

func (s *MemoryStore) UpdateItem(ctx context.Context, projectID, itemID string, version int64, patch map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.updateItemLocked(projectID, itemID, version, patch); err != nil {
		return err
	}
	s.emit(ChangeEvent{Event: "item_updated", ProjectID: projectID, Payload: map[string]interface{}{"itemID": itemID, "patch": patch}})
	return nil
}

func (s *MemoryStore) updateItemLocked(projectID, itemID string, version int64, patch map[string]interface{}) error {
	item, ok := s.items[projectID][itemID]
	if !ok {
		return ErrNotFound
	}
	if item.Version != version {
		return ErrVersionConflict
	}
	applyItemPatch(&item, patch)
	item.Version++
	item.UpdatedAt = time.Now()
	s.items[projectID][itemID] = item
	return nil
}

func (s *MemoryStore) DeleteItem(ctx context.Context, projectID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[projectID][itemID]; !ok {
		return ErrNotFound
	}
	delete(s.items[projectID], itemID)
	s.emit(ChangeEvent{Event: "item_deleted", ProjectID: projectID, Payload: map[string]interface{}{"itemID": itemID}})
	return nil
}

// --- Transactions ---

func (s *MemoryStore) GetTransaction(ctx context.Context, txnID string) (models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.transactions[txnID]
	if !ok {
		return models.Transaction{}, ErrNotFound
	}
	return txn, nil
}

func (s *MemoryStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txns := make([]models.Transaction, 0, len(s.transactions))
	for _, txn := range s.transactions {
		if filter.Status != "" && txn.Status != filter.Status {
			continue
		}
		if filter.SellerID != "" && txn.SellerID != filter.SellerID {
			continue
		}
		txns = append(txns, txn)
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].TxnID < txns[j].TxnID })
	return txns, nil
}

func (s *MemoryStore) CreateTransaction(ctx context.Context, txn models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[txn.TxnID]; exists {
		return ErrDuplicateID
	}
	s.transactions[txn.TxnID] = txn
	s.emit(ChangeEvent{Event: "transaction_created", ProjectID: txn.ProjectID, Payload: txn})
	return nil
}

func (s *MemoryStore) UpdateTransaction(ctx context.Context, txnID string, patch map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.transactions[txnID]
	if !ok {
		return ErrNotFound
	}
	applyTransactionPatch(&txn, patch)
	s.transactions[txnID] = txn
	s.emit(ChangeEvent{Event: "transaction_updated", Payload: map[string]interface{}{"txnID": txnID, "patch": patch}})
	return nil
}

// --- Batch ---

type memoryBatchOp struct {
	apply func(staged *stagedState) error
	event ChangeEvent
}

// stagedState là bản copy của state dùng trong lúc commit batch.
type stagedState struct {
	items        map[string]map[string]models.ConsumableItem
	transactions map[string]models.Transaction
}

type memoryBatch struct {
	store *MemoryStore
	ops   []memoryBatchOp
}

func (s *MemoryStore) NewBatch() Batch {
	return &memoryBatch{store: s}
}

func (b *memoryBatch) CreateItem(item models.ConsumableItem) {
	b.ops = append(b.ops, memoryBatchOp{
		apply: func(staged *stagedState) error {
			if _, exists := staged.items[item.ProjectID][item.ItemID]; exists {
				return ErrDuplicateID
			}
			if staged.items[item.ProjectID] == nil {
				staged.items[item.ProjectID] = make(map[string]models.ConsumableItem)
			}
			staged.items[item.ProjectID][item.ItemID] = item
			return nil
		},
		event: ChangeEvent{Event: "item_created", ProjectID: item.ProjectID, Payload: item},
	})
}

func (b *memoryBatch) UpdateItem(projectID, itemID string, version int64, patch map[string]interface{}) {
	b.ops = append(b.ops, memoryBatchOp{
		apply: func(staged *stagedState) error {
			item, ok := staged.items[projectID][itemID]
			if !ok {
				return ErrNotFound
			}
			if item.Version != version {
				return ErrVersionConflict
			}
			applyItemPatch(&item, patch)
			item.Version++
			item.UpdatedAt = time.Now()
			staged.items[projectID][itemID] = item
			return nil
		},
		event: ChangeEvent{Event: "item_updated", ProjectID: projectID, Payload: map[string]interface{}{"itemID": itemID, "patch": patch}},
	})
}

func (b *memoryBatch) IncrementItemQuantity(projectID, itemID string, delta int) {
	b.ops = append(b.ops, memoryBatchOp{
		apply: func(staged *stagedState) error {
			item, ok := staged.items[projectID][itemID]
			if !ok {
				return fmt.Errorf("restore stock for item %s: %w", itemID, ErrNotFound)
			}
			item.QuantityCurrent += delta
			item.Version++
			item.UpdatedAt = time.Now()
			staged.items[projectID][itemID] = item
			return nil
		},
		event: ChangeEvent{Event: "item_updated", ProjectID: projectID, Payload: map[string]interface{}{"itemID": itemID, "quantityDelta": delta}},
	})
}

func (b *memoryBatch) CreateTransaction(txn models.Transaction) {
	b.ops = append(b.ops, memoryBatchOp{
		apply: func(staged *stagedState) error {
			if _, exists := staged.transactions[txn.TxnID]; exists {
				return ErrDuplicateID
			}
			staged.transactions[txn.TxnID] = txn
			return nil
		},
		event: ChangeEvent{Event: "transaction_created", ProjectID: txn.ProjectID, Payload: txn},
	})
}

func (b *memoryBatch) UpdateTransaction(txnID string, patch map[string]interface{}) {
	b.ops = append(b.ops, memoryBatchOp{
		apply: func(staged *stagedState) error {
			txn, ok := staged.transactions[txnID]
			if !ok {
				return fmt.Errorf("transaction %s: %w", txnID, ErrNotFound)
			}
			applyTransactionPatch(&txn, patch)
			staged.transactions[txnID] = txn
			return nil
		},
		event: ChangeEvent{Event: "transaction_updated", Payload: map[string]interface{}{"txnID": txnID, "patch": patch}},
	})
}

func (b *memoryBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}

	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	if err := b.store.FailNextCommit; err != nil {
		b.store.FailNextCommit = nil
		return err
	}

	staged := &stagedState{
		items:        make(map[string]map[string]models.ConsumableItem, len(b.store.items)),
		transactions: make(map[string]models.Transaction, len(b.store.transactions)),
	}
	for projectID, byID := range b.store.items {
		staged.items[projectID] = make(map[string]models.ConsumableItem, len(byID))
		for id, it := range byID {
			staged.items[projectID][id] = it
		}
	}
	for id, txn := range b.store.transactions {
		staged.transactions[id] = txn
	}

	for _, op := range b.ops {
		if err := op.apply(staged); err != nil {
			return err
		}
	}

	b.store.items = staged.items
	b.store.transactions = staged.transactions

	for _, op := range b.ops {
		b.store.emit(op.event)
	}
	return nil
}

// --- Patch appliers ---
// Mô phỏng partial-field merge của document store trên struct Go. Chỉ các
// field mà engine/handler thực sự patch mới được hỗ trợ.

func applyItemPatch(item *models.ConsumableItem, patch map[string]interface{}) {
	for key, value := range patch {
		switch key {
		case "name":
			item.Name = value.(string)
		case "department":
			item.Department = value.(string)
		case "unit":
			item.Unit = value.(string)
		case "quantityInitial":
			item.QuantityInitial = toInt(value)
		case "quantityCurrent":
			item.QuantityCurrent = toInt(value)
		case "quantityStarted":
			item.QuantityStarted = toInt(value)
		case "status":
			item.Status = toItemStatus(value)
		case "surplusAction":
			item.SurplusAction = toSurplusAction(value)
		case "price":
			item.Price = toPricePtr(value)
		case "originalPrice":
			item.OriginalPrice = toPricePtr(value)
		case "purchased":
			item.Purchased = value.(bool)
		case "isBought":
			item.IsBought = value.(bool)
		case "photoURL":
			item.PhotoURL = value.(string)
		}
	}
}

func applyTransactionPatch(txn *models.Transaction, patch map[string]interface{}) {
	for key, value := range patch {
		switch key {
		case "status":
			txn.Status = toTxnStatus(value)
		case "restored":
			txn.Restored = value.(bool)
		case "invoicedAt":
			t := value.(time.Time)
			txn.InvoicedAt = &t
		}
	}
}

func applyProjectPatch(project *models.Project, patch map[string]interface{}) {
	for key, value := range patch {
		switch key {
		case "name":
			project.Name = value.(string)
		case "production":
			project.Production = value.(string)
		case "status":
			project.Status = value.(string)
		}
	}
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func toPricePtr(v interface{}) *float64 {
	switch p := v.(type) {
	case *float64:
		return p
	case float64:
		return &p
	}
	return nil
}

func toSurplusAction(v interface{}) models.SurplusAction {
	switch a := v.(type) {
	case models.SurplusAction:
		return a
	case string:
		return models.SurplusAction(a)
	}
	return models.ActionNone
}

func toItemStatus(v interface{}) models.ItemStatus {
	switch s := v.(type) {
	case models.ItemStatus:
		return s
	case string:
		return models.ItemStatus(s)
	}
	return models.StatusNew
}

func toTxnStatus(v interface{}) models.TransactionStatus {
	switch s := v.(type) {
	case models.TransactionStatus:
		return s
	case string:
		return models.TransactionStatus(s)
	}
	return models.TxnPending
}
