package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten"
)

// MongoRepo stores canonicals and versions in two collections. Versions are unique
// on (uuid, versie).
type MongoRepo struct {
	canonicals *mongo.Collection
	versions   *mongo.Collection
}

func NewMongoRepo(ctx context.Context, db *mongo.Database) (*MongoRepo, error) {
	versions := db.Collection("enkelvoudiginformatieobjecten")
	_, err := versions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "uuid", Value: 1}, {Key: "versie", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "canonical", Value: 1}, {Key: "versie", Value: -1}}},
	})
	if err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return &MongoRepo{canonicals: db.Collection("canonicals"), versions: versions}, nil
}

func (m *MongoRepo) CreateCanonical(ctx context.Context) (*documenten.Canonical, error) {
	c := &documenten.Canonical{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	if _, err := m.canonicals.InsertOne(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (m *MongoRepo) GetCanonical(ctx context.Context, id string) (*documenten.Canonical, error) {
	var c documenten.Canonical
	err := m.canonicals.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("canonical %s: %w", id, documenten.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *MongoRepo) AddVersion(ctx context.Context, e *documenten.EnkelvoudigInformatieObject) error {
	if _, err := m.GetCanonical(ctx, e.CanonicalID); err != nil {
		return err
	}
	e.PK = uuid.NewString()
	e.BeginRegistratie = time.Now().UTC()
	if _, err := m.versions.InsertOne(ctx, e); err != nil {
		e.PK = ""
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("version %d of %s: %w", e.Versie, e.UUID, documenten.ErrVersionConflict)
		}
		return err
	}
	return nil
}

func (m *MongoRepo) findOne(ctx context.Context, filter bson.M) (*documenten.EnkelvoudigInformatieObject, error) {
	var e documenten.EnkelvoudigInformatieObject
	opts := options.FindOne().SetSort(bson.D{{Key: "versie", Value: -1}})
	if err := m.versions.FindOne(ctx, filter, opts).Decode(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (m *MongoRepo) LatestVersion(ctx context.Context, canonicalID string) (*documenten.EnkelvoudigInformatieObject, error) {
	e, err := m.findOne(ctx, bson.M{"canonical": canonicalID})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("canonical %s: %w", canonicalID, documenten.ErrNoVersions)
	}
	return e, err
}

func (m *MongoRepo) Get(ctx context.Context, id string, versie int) (*documenten.EnkelvoudigInformatieObject, error) {
	filter := bson.M{"uuid": id}
	if versie > 0 {
		filter["versie"] = versie
	}
	e, err := m.findOne(ctx, filter)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%s versie %d: %w", id, versie, documenten.ErrNotFound)
	}
	return e, err
}

// List groups versions by canonical and keeps the highest versie of each.
func (m *MongoRepo) List(ctx context.Context, f documenten.ListFilter) ([]*documenten.EnkelvoudigInformatieObject, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "canonical", Value: 1}, {Key: "versie", Value: -1}}}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$canonical"}, {Key: "doc", Value: bson.D{{Key: "$first", Value: "$$ROOT"}}}}}},
		{{Key: "$replaceRoot", Value: bson.D{{Key: "newRoot", Value: "$doc"}}}},
	}
	match := bson.M{}
	if f.Bronorganisatie != "" {
		match["bronorganisatie"] = f.Bronorganisatie
	}
	if f.Identificatie != "" {
		match["identificatie"] = f.Identificatie
	}
	if len(match) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: match}})
	}
	pipeline = append(pipeline, bson.D{{Key: "$sort", Value: bson.D{{Key: "uuid", Value: 1}}}})

	cur, err := m.versions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*documenten.EnkelvoudigInformatieObject{}
	for cur.Next(ctx) {
		var e documenten.EnkelvoudigInformatieObject
		if err := cur.Decode(&e); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, cur.Err()
}

func (m *MongoRepo) DeleteCanonical(ctx context.Context, id string) error {
	res, err := m.canonicals.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("canonical %s: %w", id, documenten.ErrNotFound)
	}
	_, err = m.versions.DeleteMany(ctx, bson.M{"canonical": id})
	return err
}
