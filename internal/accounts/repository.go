package accounts

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Repository defines persistence operations for admin accounts
type Repository interface {
	UpsertBySub(ctx context.Context, a *Account) (*Account, error)
	GetBySub(ctx context.Context, sub string) (*Account, error)
	List(ctx context.Context) ([]*Account, error)
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

const collection = "accounts"

// NewMongoRepository uses the accounts collection of db.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{col: db.Collection(collection)}
}

func (r *MongoRepository) UpsertBySub(ctx context.Context, a *Account) (*Account, error) {
	now := time.Now().UTC()
	filter := bson.M{"sub": a.Sub}
	update := bson.M{
		"$set": bson.M{
			"username":  a.Username,
			"email":     a.Email,
			"name":      a.Name,
			"groups":    a.Groups,
			"lastLogin": now,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var updated Account
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *MongoRepository) GetBySub(ctx context.Context, sub string) (*Account, error) {
	var a Account
	if err := r.col.FindOne(ctx, bson.M{"sub": sub}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *MongoRepository) List(ctx context.Context) ([]*Account, error) {
	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "sub", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*Account
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MemoryRepository keeps accounts in memory; used when no MongoDB is configured and in tests.
type MemoryRepository struct {
	mu    sync.Mutex
	bySub map[string]*Account
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{bySub: map[string]*Account{}, now: func() time.Time { return time.Now().UTC() }}
}

func (r *MemoryRepository) UpsertBySub(_ context.Context, a *Account) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	existing, ok := r.bySub[a.Sub]
	if !ok {
		existing = &Account{ID: uuid.NewString(), Sub: a.Sub, CreatedAt: now}
		r.bySub[a.Sub] = existing
	}
	existing.Username = a.Username
	existing.Email = a.Email
	existing.Name = a.Name
	existing.Groups = append([]string(nil), a.Groups...)
	existing.LastLogin = now
	existing.UpdatedAt = now
	cp := *existing
	return &cp, nil
}

func (r *MemoryRepository) GetBySub(_ context.Context, sub string) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.bySub[sub]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Account, 0, len(r.bySub))
	for _, a := range r.bySub {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sub < out[j].Sub })
	return out, nil
}
