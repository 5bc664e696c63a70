package notificaties

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("failed notification not found")

// Attempt records one failed delivery.
type Attempt struct {
	At         time.Time `json:"at" bson:"at"`
	StatusCode int       `json:"statusCode,omitempty" bson:"statusCode,omitempty"`
	Exception  string    `json:"exception" bson:"exception"`
}

// FailedNotification is a message that could not be delivered.
type FailedNotification struct {
	ID        string     `json:"id" bson:"id"`
	Message   Message    `json:"message" bson:"message"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	RetriedAt *time.Time `json:"retriedAt" bson:"retriedAt,omitempty"`
	Attempts  []Attempt  `json:"attempts" bson:"attempts"`
}

func (f *FailedNotification) clone() *FailedNotification {
	c := *f
	c.Attempts = append([]Attempt(nil), f.Attempts...)
	return &c
}

// FailedStore keeps failed notifications for later resending.
type FailedStore interface {
	Save(ctx context.Context, f *FailedNotification) error
	Get(ctx context.Context, id string) (*FailedNotification, error)
	List(ctx context.Context, pendingOnly bool) ([]*FailedNotification, error)
}

type MemoryFailedStore struct {
	mu    sync.RWMutex
	items map[string]*FailedNotification
}

func NewMemoryFailedStore() *MemoryFailedStore {
	return &MemoryFailedStore{items: map[string]*FailedNotification{}}
}

func (m *MemoryFailedStore) Save(ctx context.Context, f *FailedNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[f.ID] = f.clone()
	return nil
}

func (m *MemoryFailedStore) Get(ctx context.Context, id string) (*FailedNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return f.clone(), nil
}

func (m *MemoryFailedStore) List(ctx context.Context, pendingOnly bool) ([]*FailedNotification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*FailedNotification, 0, len(m.items))
	for _, f := range m.items {
		if pendingOnly && f.RetriedAt != nil {
			continue
		}
		out = append(out, f.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MongoFailedStore persists failed notifications in the failed_notifications collection.
type MongoFailedStore struct {
	col *mongo.Collection
}

func NewMongoFailedStore(ctx context.Context, db *mongo.Database) (*MongoFailedStore, error) {
	col := db.Collection("failed_notifications")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := col.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("failed_notifications index: %w", err)
	}
	return &MongoFailedStore{col: col}, nil
}

func (s *MongoFailedStore) Save(ctx context.Context, f *FailedNotification) error {
	opts := options.Update().SetUpsert(true)
	if _, err := s.col.UpdateOne(ctx, bson.M{"id": f.ID}, bson.M{"$set": f}, opts); err != nil {
		return fmt.Errorf("save failed notification: %w", err)
	}
	return nil
}

func (s *MongoFailedStore) Get(ctx context.Context, id string) (*FailedNotification, error) {
	var f FailedNotification
	if err := s.col.FindOne(ctx, bson.M{"id": id}).Decode(&f); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &f, nil
}

func (s *MongoFailedStore) List(ctx context.Context, pendingOnly bool) ([]*FailedNotification, error) {
	filter := bson.M{}
	if pendingOnly {
		filter["retriedAt"] = bson.M{"$exists": false}
	}
	cur, err := s.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*FailedNotification{}
	for cur.Next(ctx) {
		var f FailedNotification
		if err := cur.Decode(&f); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, cur.Err()
}
