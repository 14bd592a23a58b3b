package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/nativepkg/pkg/manifest"
)

// MongoConfig configures a [MongoStore].
type MongoConfig struct {
	URI        string // mongodb:// connection string
	Database   string // default "nativepkg"
	Collection string // default "manifests"
}

// MongoStore keeps one document per published version:
//
//	{_id: "<id>@<canonical version>", pkg: "<lower id>", version: "<version>", body: "<manifest JSON>"}
//
// The manifest is stored as its wire JSON so extension data round-trips
// exactly as clients sent it.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type mongoDoc struct {
	Key     string `bson:"_id"`
	Pkg     string `bson:"pkg"`
	Version string `bson:"version"`
	Body    string `bson:"body"`
}

// NewMongoStore connects to MongoDB and ensures the package index exists.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = "nativepkg"
	}
	if cfg.Collection == "" {
		cfg.Collection = "manifests"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "pkg", Value: 1}}})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &MongoStore{client: client, coll: coll}, nil
}

// Versions implements [Store].
func (s *MongoStore) Versions(ctx context.Context, id string) ([]string, error) {
	cur, err := s.coll.Find(ctx, bson.M{"pkg": strings.ToLower(id)},
		options.Find().SetProjection(bson.M{"version": 1}))
	if err != nil {
		return nil, err
	}
	var docs []mongoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	raw := make([]string, len(docs))
	for i, d := range docs {
		raw[i] = d.Version
	}
	return sortDesc(raw), nil
}

// Get implements [Store].
func (s *MongoStore) Get(ctx context.Context, id, ver string) (*manifest.Manifest, error) {
	k, err := key(id, ver)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc mongoDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": k}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeBody(doc.Body)
}

// Put implements [Store].
func (s *MongoStore) Put(ctx context.Context, m *manifest.Manifest) (bool, error) {
	doc, err := newMongoDoc(m)
	if err != nil {
		return false, err
	}
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func newMongoDoc(m *manifest.Manifest) (mongoDoc, error) {
	k, err := key(m.ID, m.Version)
	if err != nil {
		return mongoDoc{}, err
	}
	body, err := json.Marshal(m)
	if err != nil {
		return mongoDoc{}, err
	}
	return mongoDoc{Key: k, Pkg: strings.ToLower(m.ID), Version: m.Version, Body: string(body)}, nil
}

func decodeBody(body string) (*manifest.Manifest, error) {
	var m manifest.Manifest
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, fmt.Errorf("decode stored manifest: %w", err)
	}
	if err := m.NormalizeExtensions(); err != nil {
		return nil, err
	}
	return &m, nil
}

var _ Store = (*MongoStore)(nil)
