// server/internal/store/mongo.go
package store

import (
	"context"
	"fmt"
	"time"

	"ecoset-logistics-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	collProjects     = "projects"
	collItems        = "items"
	collTransactions = "transactions"
)

// MongoStore là bản MongoDB của Store. Items được lưu phẳng trong collection
// "items" với trường projectID làm scope (tương đương subcollection
// projects/{id}/items của layout logic). Batch dùng multi-document
// transaction của MongoDB nên cần replica set.
type MongoStore struct {
	db     *mongo.Database
	notify Notifier
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) SetNotifier(fn Notifier) {
	s.notify = fn
}

func (s *MongoStore) emit(ev ChangeEvent) {
	if s.notify != nil {
		s.notify(ev)
	}
}

// --- Projects ---

func (s *MongoStore) GetProject(ctx context.Context, projectID string) (models.Project, error) {
	var project models.Project
	err := s.db.Collection(collProjects).FindOne(ctx, bson.M{"projectID": projectID}).Decode(&project)
	if err == mongo.ErrNoDocuments {
		return models.Project{}, ErrNotFound
	}
	return project, err
}

func (s *MongoStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	cursor, err := s.db.Collection(collProjects).Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var projects []models.Project
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return projects, nil
}

func (s *MongoStore) CreateProject(ctx context.Context, project models.Project) error {
	coll := s.db.Collection(collProjects)
	count, err := coll.CountDocuments(ctx, bson.M{"projectID": project.ProjectID})
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateID
	}
	if _, err := coll.InsertOne(ctx, project); err != nil {
		return err
	}
	s.emit(ChangeEvent{Event: "project_created", ProjectID: project.ProjectID, Payload: project})
	return nil
}

func (s *MongoStore) UpdateProject(ctx context.Context, projectID string, patch map[string]interface{}) error {
	set := bson.M{"updatedAt": time.Now()}
	for k, v := range patch {
		set[k] = v
	}
	result, err := s.db.Collection(collProjects).UpdateOne(ctx, bson.M{"projectID": projectID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	s.emit(ChangeEvent{Event: "project_updated", ProjectID: projectID, Payload: patch})
	return nil
}

func (s *MongoStore) DeleteProject(ctx context.Context, projectID string) error {
	result, err := s.db.Collection(collProjects).DeleteOne(ctx, bson.M{"projectID": projectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	s.emit(ChangeEvent{Event: "project_deleted", ProjectID: projectID})
	return nil
}

// --- Items ---

func (s *MongoStore) GetItem(ctx context.Context, projectID, itemID string) (models.ConsumableItem, error) {
	var item models.ConsumableItem
	err := s.db.Collection(collItems).FindOne(ctx, bson.M{"projectID": projectID, "itemID": itemID}).Decode(&item)
	if err == mongo.ErrNoDocuments {
		return models.ConsumableItem{}, ErrNotFound
	}
	return item, err
}

func (s *MongoStore) ListItems(ctx context.Context, projectID string) ([]models.ConsumableItem, error) {
	cursor, err := s.db.Collection(collItems).Find(ctx, bson.M{"projectID": projectID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []models.ConsumableItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.ConsumableItem{}
	}
	return items, nil
}

func (s *MongoStore) CreateItem(ctx context.Context, item models.ConsumableItem) error {
	if err := s.insertItem(ctx, s.db.Collection(collItems), item); err != nil {
		return err
	}
	s.emit(ChangeEvent{Event: "item_created", ProjectID: item.ProjectID, Payload: item})
	return nil
}

func (s *MongoStore) insertItem(ctx context.Context, coll *mongo.Collection, item models.ConsumableItem) error {
	count, err := coll.CountDocuments(ctx, bson.M{"projectID": item.ProjectID, "itemID": item.ItemID})
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateID
	}
	_, err = coll.InsertOne(ctx, item)
	return err
}

func (s *MongoStore) UpdateItem(ctx context.Context, projectID, itemID string, version int64, patch map[string]interface{}) error {
	if err := s.updateItemCAS(ctx, s.db.Collection(collItems), projectID, itemID, version, patch); err != nil {
		return err
	}
	s.emit(ChangeEvent{Event: "item_updated", ProjectID: projectID, Payload: bson.M{"itemID": itemID, "patch": patch}})
	return nil
}

// updateItemCAS là compare-and-swap trên trường version: filter khớp cả version
// hiện tại, nếu không khớp thì phân biệt not-found với conflict bằng một lần đọc.
func (s *MongoStore) updateItemCAS(ctx context.Context, coll *mongo.Collection, projectID, itemID string, version int64, patch map[string]interface{}) error {
	set := bson.M{"updatedAt": time.Now()}
	for k, v := range patch {
		set[k] = v
	}
	filter := bson.M{"projectID": projectID, "itemID": itemID, "version": version}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}

	result, err := coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		count, err := coll.CountDocuments(ctx, bson.M{"projectID": projectID, "itemID": itemID})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	return nil
}

func (s *MongoStore) DeleteItem(ctx context.Context, projectID, itemID string) error {
	result, err := s.db.Collection(collItems).DeleteOne(ctx, bson.M{"projectID": projectID, "itemID": itemID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	s.emit(ChangeEvent{Event: "item_deleted", ProjectID: projectID, Payload: bson.M{"itemID": itemID}})
	return nil
}

// --- Transactions ---

func (s *MongoStore) GetTransaction(ctx context.Context, txnID string) (models.Transaction, error) {
	var txn models.Transaction
	err := s.db.Collection(collTransactions).FindOne(ctx, bson.M{"txnID": txnID}).Decode(&txn)
	if err == mongo.ErrNoDocuments {
		return models.Transaction{}, ErrNotFound
	}
	return txn, err
}

func (s *MongoStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.SellerID != "" {
		query["sellerID"] = filter.SellerID
	}

	cursor, err := s.db.Collection(collTransactions).Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txns []models.Transaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []models.Transaction{}
	}
	return txns, nil
}

func (s *MongoStore) CreateTransaction(ctx context.Context, txn models.Transaction) error {
	if _, err := s.db.Collection(collTransactions).InsertOne(ctx, txn); err != nil {
		return err
	}
	s.emit(ChangeEvent{Event: "transaction_created", ProjectID: txn.ProjectID, Payload: txn})
	return nil
}

func (s *MongoStore) UpdateTransaction(ctx context.Context, txnID string, patch map[string]interface{}) error {
	set := bson.M{}
	for k, v := range patch {
		set[k] = v
	}
	result, err := s.db.Collection(collTransactions).UpdateOne(ctx, bson.M{"txnID": txnID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	s.emit(ChangeEvent{Event: "transaction_updated", Payload: bson.M{"txnID": txnID, "patch": patch}})
	return nil
}

// --- Batch ---

type mongoBatchOp struct {
	apply func(sessCtx mongo.SessionContext) error
	event ChangeEvent
}

// mongoBatch chạy toàn bộ các op trong một session transaction: hoặc tất cả
// được commit, hoặc không gì cả. Event chỉ được phát sau khi commit thành công.
type mongoBatch struct {
	store *MongoStore
	ops   []mongoBatchOp
}

func (s *MongoStore) NewBatch() Batch {
	return &mongoBatch{store: s}
}

func (b *mongoBatch) CreateItem(item models.ConsumableItem) {
	b.ops = append(b.ops, mongoBatchOp{
		apply: func(sessCtx mongo.SessionContext) error {
			return b.store.insertItem(sessCtx, b.store.db.Collection(collItems), item)
		},
		event: ChangeEvent{Event: "item_created", ProjectID: item.ProjectID, Payload: item},
	})
}

func (b *mongoBatch) UpdateItem(projectID, itemID string, version int64, patch map[string]interface{}) {
	b.ops = append(b.ops, mongoBatchOp{
		apply: func(sessCtx mongo.SessionContext) error {
			return b.store.updateItemCAS(sessCtx, b.store.db.Collection(collItems), projectID, itemID, version, patch)
		},
		event: ChangeEvent{Event: "item_updated", ProjectID: projectID, Payload: bson.M{"itemID": itemID, "patch": patch}},
	})
}

func (b *mongoBatch) IncrementItemQuantity(projectID, itemID string, delta int) {
	b.ops = append(b.ops, mongoBatchOp{
		apply: func(sessCtx mongo.SessionContext) error {
			filter := bson.M{"projectID": projectID, "itemID": itemID}
			update := bson.M{
				"$inc": bson.M{"quantityCurrent": delta, "version": 1},
				"$set": bson.M{"updatedAt": time.Now()},
			}
			result, err := b.store.db.Collection(collItems).UpdateOne(sessCtx, filter, update)
			if err != nil {
				return err
			}
			if result.MatchedCount == 0 {
				return fmt.Errorf("restore stock for item %s: %w", itemID, ErrNotFound)
			}
			return nil
		},
		event: ChangeEvent{Event: "item_updated", ProjectID: projectID, Payload: bson.M{"itemID": itemID, "quantityDelta": delta}},
	})
}

func (b *mongoBatch) CreateTransaction(txn models.Transaction) {
	b.ops = append(b.ops, mongoBatchOp{
		apply: func(sessCtx mongo.SessionContext) error {
			_, err := b.store.db.Collection(collTransactions).InsertOne(sessCtx, txn)
			return err
		},
		event: ChangeEvent{Event: "transaction_created", ProjectID: txn.ProjectID, Payload: txn},
	})
}

func (b *mongoBatch) UpdateTransaction(txnID string, patch map[string]interface{}) {
	b.ops = append(b.ops, mongoBatchOp{
		apply: func(sessCtx mongo.SessionContext) error {
			set := bson.M{}
			for k, v := range patch {
				set[k] = v
			}
			result, err := b.store.db.Collection(collTransactions).UpdateOne(sessCtx, bson.M{"txnID": txnID}, bson.M{"$set": set})
			if err != nil {
				return err
			}
			if result.MatchedCount == 0 {
				return fmt.Errorf("transaction %s: %w", txnID, ErrNotFound)
			}
			return nil
		},
		event: ChangeEvent{Event: "transaction_updated", Payload: bson.M{"txnID": txnID, "patch": patch}},
	})
}

func (b *mongoBatch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}

	session, err := b.store.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		for _, op := range b.ops {
			if err := op.apply(sessCtx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	for _, op := range b.ops {
		b.store.emit(op.event)
	}
	return nil
}
